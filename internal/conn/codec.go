// Package conn implements the newline-delimited JSON protocol spoken with clients.
package conn

import (
	"encoding/json"
	"fmt"

	"github.com/maugonzalezv/OS-Scheduler-ClientServer/pkg/model"
)

// MaxLineBytes is the longest frame accepted from a client.
const MaxLineBytes = 1 << 20

// Encode renders msg as one frame, including the trailing newline.
func Encode(msg model.Message) ([]byte, error) {
	if len(msg.Payload) == 0 {
		msg.Payload = json.RawMessage("null")
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", msg.Type, err)
	}
	return append(b, '\n'), nil
}

// Decode parses one frame (without its newline).
func Decode(line []byte) (model.Message, error) {
	var msg model.Message
	if err := json.Unmarshal(line, &msg); err != nil {
		return model.Message{}, &model.ProtocolError{Message: fmt.Sprintf("invalid JSON: %v", err)}
	}
	if msg.Type == "" {
		return model.Message{}, &model.ProtocolError{Message: "missing message type"}
	}
	return msg, nil
}
