package matchmaking

import "encoding/json"

// EventType names an outbound notification on the wire.
type EventType string

const (
	EventWaitingForMatch EventType = "waitingForMatch"
	EventMatchFound      EventType = "matchFound"
	EventOpponentLeft    EventType = "opponentLeft"
	EventMatchEnded      EventType = "matchEnded"
	EventError           EventType = "error"
)

// Role is the side a player takes in a match.
type Role string

const (
	RoleHost   Role = "host"
	RoleClient Role = "client"
)

// Reason codes carried by opponentLeft and matchEnded events and by match status results.
const (
	ReasonDisconnect         = "disconnect"
	ReasonOpponentDisconnect = "opponent_disconnect"
	ReasonPlayerQuit         = "player_quit"
	ReasonQuit               = "quit"
	ReasonHeartbeatTimeout   = "heartbeat_timeout"
	ReasonMatchTimeout       = "match_timeout"
	ReasonMatchNotFound      = "match_not_found"
)

// Event is a notification pushed to a single player.
type Event struct {
	Type         EventType
	MatchID      string
	OpponentID   string
	OpponentName string
	Role         Role
	Reason       string
	Message      string
}

// WaitingForMatch tells a player they were queued.
func WaitingForMatch() Event { return Event{Type: EventWaitingForMatch} }

// MatchFound tells a player who they were paired with.
func MatchFound(matchID string, opponent Player, role Role) Event {
	return Event{
		Type:         EventMatchFound,
		MatchID:      matchID,
		OpponentID:   opponent.UserID,
		OpponentName: opponent.DisplayName,
		Role:         role,
	}
}

// OpponentLeft tells the remaining player the match is over because the other side left.
func OpponentLeft(matchID, reason string) Event {
	return Event{Type: EventOpponentLeft, MatchID: matchID, Reason: reason}
}

// MatchEnded tells a player their match is over.
func MatchEnded(matchID, reason string) Event {
	return Event{Type: EventMatchEnded, MatchID: matchID, Reason: reason}
}

// ErrorEvent reports a rejected request back to the client.
func ErrorEvent(message string) Event {
	return Event{Type: EventError, Message: message}
}

type matchFoundPayload struct {
	MatchID    string `json:"matchId"`
	Opponent   string `json:"opponent"`
	OpponentID string `json:"opponentId"`
	Role       Role   `json:"role"`
}

type reasonPayload struct {
	MatchID string `json:"matchId,omitempty"`
	Reason  string `json:"reason"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// MarshalJSON encodes the event as {"type": ..., "payload": {...}}.
func (e Event) MarshalJSON() ([]byte, error) {
	var payload any
	switch e.Type {
	case EventMatchFound:
		payload = matchFoundPayload{
			MatchID:    e.MatchID,
			Opponent:   e.OpponentName,
			OpponentID: e.OpponentID,
			Role:       e.Role,
		}
	case EventOpponentLeft, EventMatchEnded:
		payload = reasonPayload{MatchID: e.MatchID, Reason: e.Reason}
	case EventError:
		payload = errorPayload{Message: e.Message}
	default:
		payload = struct{}{}
	}

	return json.Marshal(struct {
		Type    EventType `json:"type"`
		Payload any       `json:"payload"`
	}{Type: e.Type, Payload: payload})
}
