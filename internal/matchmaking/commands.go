package matchmaking

import (
	"errors"
	"fmt"
)

// Command types accepted by Execute. All but CommandConnectionClosed are also the client
// message types of the WebSocket protocol.
const (
	CommandFindMatch        = "findMatch"
	CommandCancelMatch      = "cancelMatch"
	CommandLeaveMatch       = "leaveMatch"
	CommandHeartbeat        = "heartbeat"
	CommandConnectionClosed = "connectionClosed"
)

// Command is a request from a client on a persistent connection, addressed by the
// connection id its gateway issued. Gateways running in other processes send commands
// to the service over the command channel.
type Command struct {
	Type     string `json:"type"`
	ConnID   string `json:"connId"`
	UserID   string `json:"userId,omitempty"`
	Username string `json:"username,omitempty"`
	MatchID  string `json:"matchId,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// Execute runs cmd. A findMatch from a player already in a match does not fail, since
// Pair has already told the client.
func (s *Service) Execute(cmd Command) error {
	switch cmd.Type {
	case CommandFindMatch:
		_, err := s.Pair(cmd.UserID, cmd.Username, cmd.ConnID)
		if errors.Is(err, ErrAlreadyInMatch) {
			return nil
		}
		return err
	case CommandCancelMatch:
		return s.CancelWaitConn(cmd.ConnID)
	case CommandLeaveMatch:
		return s.LeaveMatch(cmd.MatchID, cmd.UserID, cmd.Reason)
	case CommandHeartbeat:
		_, err := s.Heartbeat(cmd.MatchID, cmd.UserID)
		return err
	case CommandConnectionClosed:
		if cmd.ConnID == "" {
			return fmt.Errorf("%w: connection id is required", ErrInvalidRequest)
		}
		s.ConnectionClosed(cmd.ConnID)
		return nil
	default:
		return fmt.Errorf("%w: unknown command type %q", ErrInvalidRequest, cmd.Type)
	}
}
