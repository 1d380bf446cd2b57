package matchmaking

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvent_MarshalJSON(t *testing.T) {
	tests := []struct {
		name  string
		event Event
		want  string
	}{
		{
			name:  "waiting",
			event: WaitingForMatch(),
			want:  `{"type":"waitingForMatch","payload":{}}`,
		},
		{
			name:  "match found",
			event: MatchFound("match_1", Player{UserID: "u2", DisplayName: "Bob"}, RoleHost),
			want:  `{"type":"matchFound","payload":{"matchId":"match_1","opponent":"Bob","opponentId":"u2","role":"host"}}`,
		},
		{
			name:  "opponent left",
			event: OpponentLeft("match_1", ReasonDisconnect),
			want:  `{"type":"opponentLeft","payload":{"matchId":"match_1","reason":"disconnect"}}`,
		},
		{
			name:  "match ended",
			event: MatchEnded("match_1", ReasonHeartbeatTimeout),
			want:  `{"type":"matchEnded","payload":{"matchId":"match_1","reason":"heartbeat_timeout"}}`,
		},
		{
			name:  "error",
			event: ErrorEvent("already in a match"),
			want:  `{"type":"error","payload":{"message":"already in a match"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(tt.event)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}
