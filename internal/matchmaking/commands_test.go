package matchmaking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_Execute(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.svc.Execute(Command{Type: CommandFindMatch, ConnID: "conn-a", UserID: "alice", Username: "Alice"}))
	require.NoError(t, env.svc.Execute(Command{Type: CommandFindMatch, ConnID: "conn-b", UserID: "bob", Username: "Bob"}))

	st, err := env.svc.CheckQueueStatus("alice")
	require.NoError(t, err)
	require.NotEmpty(t, st.MatchID)

	// Asking again while matched is answered with an error event, not an error.
	require.NoError(t, env.svc.Execute(Command{Type: CommandFindMatch, ConnID: "conn-a", UserID: "alice"}))

	require.NoError(t, env.svc.Execute(Command{Type: CommandHeartbeat, ConnID: "conn-a", UserID: "alice", MatchID: st.MatchID}))
	require.NoError(t, env.svc.Execute(Command{Type: CommandLeaveMatch, ConnID: "conn-b", UserID: "bob", MatchID: st.MatchID}))
	assert.Equal(t, 0, env.svc.Stats().ActiveMatches)

	require.NoError(t, env.svc.Execute(Command{Type: CommandFindMatch, ConnID: "conn-a", UserID: "alice"}))
	require.NoError(t, env.svc.Execute(Command{Type: CommandCancelMatch, ConnID: "conn-a"}))
	assert.Equal(t, 0, env.svc.Stats().Queued)

	require.NoError(t, env.svc.Execute(Command{Type: CommandConnectionClosed, ConnID: "conn-a"}))
	require.NoError(t, env.svc.Execute(Command{Type: CommandConnectionClosed, ConnID: "conn-b"}))
	assert.Equal(t, Stats{}, env.svc.Stats())
}

func TestService_ExecuteRejects(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		cmd  Command
	}{
		{"unknown type", Command{Type: "dance", ConnID: "conn-a"}},
		{"find without user", Command{Type: CommandFindMatch, ConnID: "conn-a"}},
		{"close without connection", Command{Type: CommandConnectionClosed}},
		{"heartbeat without match", Command{Type: CommandHeartbeat, ConnID: "conn-a", UserID: "alice"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, env.svc.Execute(tt.cmd), ErrInvalidRequest)
		})
	}
}
