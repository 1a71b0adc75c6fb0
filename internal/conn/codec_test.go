package conn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maugonzalezv/OS-Scheduler-ClientServer/pkg/model"
)

func TestEncode_TerminatesFrame(t *testing.T) {
	msg, err := model.NewMessage(model.MsgAckSubscribe, "news")
	require.NoError(t, err)

	frame, err := Encode(msg)
	require.NoError(t, err)
	assert.Equal(t, `{"type":"ACK_SUB","payload":"news"}`+"\n", string(frame))
}

func TestEncode_EmptyPayloadIsNull(t *testing.T) {
	frame, err := Encode(model.Message{Type: model.MsgServerShuttingDown})
	require.NoError(t, err)
	assert.Equal(t, `{"type":"SERVER_SHUTTING_DOWN","payload":null}`+"\n", string(frame))
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    model.MessageType
		wantErr bool
	}{
		{"subscribe", `{"type":"SUB","payload":"news"}`, model.MsgSubscribe, false},
		{"no payload", `{"type":"UNSUB"}`, model.MsgUnsubscribe, false},
		{"not json", `hello`, "", true},
		{"missing type", `{"payload":"x"}`, "", true},
		{"truncated", `{"type":"SUB"`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Decode([]byte(tt.line))
			if tt.wantErr {
				var perr *model.ProtocolError
				assert.ErrorAs(t, err, &perr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, msg.Type)
		})
	}
}
