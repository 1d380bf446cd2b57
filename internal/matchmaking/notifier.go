package matchmaking

import (
	"context"
	"errors"
	"log/slog"
)

// Delivery is an event addressed to one connection.
type Delivery struct {
	ConnID string
	UserID string
	Event  Event
}

// Transport carries deliveries to clients. Deliver must not block; a delivery that
// cannot be made right away is dropped and reported with an error wrapping
// ErrDeliveryFailed.
type Transport interface {
	Deliver(d Delivery) error
}

// Notifier addresses events to users through the connection registry and hands them to
// a Transport. Addressing happens while the state change is committed; delivery happens
// afterwards, outside the Service lock.
type Notifier struct {
	registry  *Registry
	transport Transport
}

func NewNotifier(registry *Registry, transport Transport) *Notifier {
	return &Notifier{registry: registry, transport: transport}
}

// address resolves the connection currently bound to userID.
func (n *Notifier) address(userID string, ev Event) (Delivery, bool) {
	connID, ok := n.registry.ConnFor(userID)
	if !ok {
		slog.Debug("Player not reachable, dropping notification", "userID", userID, "event", ev.Type)
		return Delivery{}, false
	}
	return Delivery{ConnID: connID, UserID: userID, Event: ev}, true
}

// Dispatch hands each delivery to the transport. Failures are logged and otherwise
// ignored; they never undo the state change that produced the event.
func (n *Notifier) Dispatch(deliveries []Delivery) {
	if n.transport == nil {
		return
	}
	for _, d := range deliveries {
		if err := n.transport.Deliver(d); err != nil {
			level := slog.LevelWarn
			if errors.Is(err, ErrDeliveryFailed) {
				level = slog.LevelDebug
			}
			slog.Log(context.Background(), level, "Failed to deliver notification",
				"userID", d.UserID, "connID", d.ConnID, "event", d.Event.Type, "error", err)
		}
	}
}
