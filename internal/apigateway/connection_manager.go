package apigateway

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/cheildo/nexus-clash-matchmaking/internal/matchmaking"
)

const defaultSendBufferSz = 32

var (
	ErrNotConnected   = fmt.Errorf("%w: connection not open", matchmaking.ErrDeliveryFailed)
	ErrSendBufferFull = fmt.Errorf("%w: send buffer full", matchmaking.ErrDeliveryFailed)
)

// Client is one open WebSocket connection. Outbound frames go through send and are
// written by the connection's write pump.
type Client struct {
	id        string
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(id string, conn *websocket.Conn, buffer int) *Client {
	if buffer <= 0 {
		buffer = defaultSendBufferSz
	}
	return &Client{
		id:   id,
		conn: conn,
		send: make(chan []byte, buffer),
		done: make(chan struct{}),
	}
}

func (c *Client) ID() string { return c.id }

// enqueue queues a frame without blocking.
func (c *Client) enqueue(frame []byte) error {
	select {
	case <-c.done:
		return ErrNotConnected
	default:
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// ConnectionManager safely stores and retrieves open WebSocket connections by
// connection id. It is the local matchmaking.Transport.
type ConnectionManager struct {
	connections sync.Map // map[connID]*Client
}

func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{}
}

func (cm *ConnectionManager) Add(c *Client) {
	cm.connections.Store(c.id, c)
}

func (cm *ConnectionManager) Remove(connID string) {
	if c, ok := cm.connections.LoadAndDelete(connID); ok {
		c.(*Client).close()
	}
}

func (cm *ConnectionManager) Get(connID string) (*Client, bool) {
	c, ok := cm.connections.Load(connID)
	if !ok {
		return nil, false
	}
	return c.(*Client), true
}

func (cm *ConnectionManager) Count() int {
	n := 0
	cm.connections.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Deliver encodes the event and queues it on the addressed connection.
func (cm *ConnectionManager) Deliver(d matchmaking.Delivery) error {
	frame, err := json.Marshal(d.Event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", d.Event.Type, err)
	}
	return cm.DeliverRaw(d.ConnID, frame)
}

// DeliverRaw queues an already encoded frame on connID.
func (cm *ConnectionManager) DeliverRaw(connID string, frame []byte) error {
	c, ok := cm.Get(connID)
	if !ok {
		return ErrNotConnected
	}
	return c.enqueue(frame)
}
