package apigateway

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cheildo/nexus-clash-matchmaking/internal/matchmaking"
)

func TestConnectionManager_Deliver(t *testing.T) {
	cm := NewConnectionManager()
	c := newClient("conn-1", nil, 2)
	cm.Add(c)
	require.Equal(t, 1, cm.Count())

	err := cm.Deliver(matchmaking.Delivery{ConnID: "conn-1", UserID: "u1", Event: matchmaking.WaitingForMatch()})
	require.NoError(t, err)

	var frame map[string]any
	require.NoError(t, json.Unmarshal(<-c.send, &frame))
	assert.Equal(t, "waitingForMatch", frame["type"])
}

func TestConnectionManager_DeliverFailures(t *testing.T) {
	cm := NewConnectionManager()
	c := newClient("conn-1", nil, 1)
	cm.Add(c)

	ev := matchmaking.Delivery{ConnID: "conn-1", Event: matchmaking.WaitingForMatch()}
	require.NoError(t, cm.Deliver(ev))

	err := cm.Deliver(ev)
	assert.ErrorIs(t, err, ErrSendBufferFull)
	assert.ErrorIs(t, err, matchmaking.ErrDeliveryFailed)

	err = cm.Deliver(matchmaking.Delivery{ConnID: "conn-unknown", Event: matchmaking.WaitingForMatch()})
	assert.ErrorIs(t, err, ErrNotConnected)

	cm.Remove("conn-1")
	cm.Remove("conn-1")
	assert.Equal(t, 0, cm.Count())
	assert.ErrorIs(t, c.enqueue([]byte("{}")), ErrNotConnected)
}
