package apigateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/cheildo/nexus-clash-matchmaking/internal/auth"
	"github.com/cheildo/nexus-clash-matchmaking/internal/matchmaking"
)

const writeWait = 10 * time.Second

// Inbound message types.
const (
	MessageFindMatch   = matchmaking.CommandFindMatch
	MessageCancelMatch = matchmaking.CommandCancelMatch
	MessageLeaveMatch  = matchmaking.CommandLeaveMatch
	MessageHeartbeat   = matchmaking.CommandHeartbeat
)

var errIdentityMismatch = errors.New("connection is already bound to another player")

type inboundMessage struct {
	Type    string         `json:"type"`
	Payload inboundPayload `json:"payload"`
}

type inboundPayload struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	MatchID  string `json:"matchId"`
	Reason   string `json:"reason"`
}

// WebsocketHandler accepts persistent client connections and turns their messages and
// their closure into matchmaking commands.
type WebsocketHandler struct {
	dispatcher    Dispatcher
	cm            *ConnectionManager
	probeInterval time.Duration
	upgrader      websocket.Upgrader
}

// NewWebsocketHandler creates a handler that pings every connection each probeInterval
// and drops connections that miss two probes.
func NewWebsocketHandler(dispatcher Dispatcher, cm *ConnectionManager, probeInterval time.Duration) *WebsocketHandler {
	if probeInterval <= 0 {
		probeInterval = matchmaking.DefaultLivenessProbeInterval
	}
	return &WebsocketHandler{
		dispatcher:    dispatcher,
		cm:            cm,
		probeInterval: probeInterval,
		upgrader: websocket.Upgrader{
			// Origin checks belong to the edge proxy in front of this service.
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// ServeHTTP upgrades the connection and serves it until it closes.
func (h *WebsocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.FromContext(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}

	client := newClient(uuid.NewString(), conn, defaultSendBufferSz)
	h.cm.Add(client)
	slog.Info("WebSocket connection established", "connID", client.id, "userID", identity.UserID)

	go h.writePump(client)
	h.readPump(client, identity)
}

// readPump reads client messages until the connection breaks, then reports the closure
// to the matchmaking core.
func (h *WebsocketHandler) readPump(c *Client, identity auth.Identity) {
	defer func() {
		slog.Info("Closing WebSocket connection", "connID", c.id)
		closed := matchmaking.Command{Type: matchmaking.CommandConnectionClosed, ConnID: c.id}
		if err := h.dispatcher.Submit(context.Background(), closed); err != nil {
			slog.Error("Failed to report closed connection", "connID", c.id, "error", err)
		}
		h.cm.Remove(c.id)
		c.conn.Close()
	}()

	pongWait := 2 * h.probeInterval
	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	s := session{client: c, identity: identity}
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("WebSocket connection closed unexpectedly", "connID", c.id, "error", err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		h.handleMessage(&s, data)
	}
}

// writePump writes queued frames and liveness pings. It closes the connection on the
// first write error, which ends the read pump.
func (h *WebsocketHandler) writePump(c *Client) {
	ticker := time.NewTicker(h.probeInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				slog.Debug("WebSocket write failed", "connID", c.id, "error", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				slog.Debug("WebSocket ping failed", "connID", c.id, "error", err)
				return
			}
		}
	}
}

// session is the per-connection state of the read pump.
type session struct {
	client   *Client
	identity auth.Identity
	userID   string
}

// player returns the caller's identity. A verified token wins over the payload. Once a
// connection has asked for a match it stays bound to that user id and a payload naming
// anyone else is refused.
func (s *session) player(p inboundPayload) (string, string, error) {
	if s.identity.UserID != "" {
		return s.identity.UserID, s.identity.DisplayName, nil
	}
	if s.userID == "" {
		return p.UserID, p.Username, nil
	}
	if p.UserID != "" && p.UserID != s.userID {
		return "", "", errIdentityMismatch
	}
	return s.userID, p.Username, nil
}

func (h *WebsocketHandler) handleMessage(s *session, data []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		slog.Warn("Discarding malformed WebSocket message", "connID", s.client.id, "error", err)
		return
	}

	switch msg.Type {
	case MessageFindMatch, MessageCancelMatch, MessageLeaveMatch, MessageHeartbeat:
	default:
		slog.Warn("Unknown WebSocket message type", "connID", s.client.id, "type", msg.Type)
		h.reply(s.client, matchmaking.ErrorEvent("unknown message type: "+msg.Type))
		return
	}

	userID, name, err := s.player(msg.Payload)
	if err != nil {
		slog.Warn("Rejected message for another player", "connID", s.client.id, "boundUserID", s.userID, "userID", msg.Payload.UserID)
		h.reply(s.client, matchmaking.ErrorEvent(err.Error()))
		return
	}

	cmd := matchmaking.Command{
		Type:     msg.Type,
		ConnID:   s.client.id,
		UserID:   userID,
		Username: name,
		MatchID:  msg.Payload.MatchID,
		Reason:   msg.Payload.Reason,
	}
	if err := h.dispatcher.Submit(context.Background(), cmd); err != nil {
		h.reply(s.client, matchmaking.ErrorEvent(err.Error()))
		return
	}
	if msg.Type == MessageFindMatch && userID != "" {
		s.userID = userID
	}
}

func (h *WebsocketHandler) reply(c *Client, ev matchmaking.Event) {
	frame, err := json.Marshal(ev)
	if err != nil {
		slog.Error("Failed to encode reply", "connID", c.id, "error", err)
		return
	}
	if err := c.enqueue(frame); err != nil {
		slog.Debug("Failed to queue reply", "connID", c.id, "error", err)
	}
}
