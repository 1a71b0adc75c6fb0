package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MessageType identifies a wire message.
type MessageType string

// Inbound message types.
const (
	MsgSetConfig    MessageType = "SET_CONFIG"
	MsgSubscribe    MessageType = "SUB"
	MsgUnsubscribe  MessageType = "UNSUB"
	MsgProcessFiles MessageType = "PROCESS_FILES"
)

// Outbound message types.
const (
	MsgWelcome            MessageType = "WELCOME"
	MsgAckConfig          MessageType = "ACK_CONFIG"
	MsgAckSubscribe       MessageType = "ACK_SUB"
	MsgAckUnsubscribe     MessageType = "ACK_UNSUB"
	MsgStartProcessing    MessageType = "START_PROCESSING"
	MsgProcessingComplete MessageType = "PROCESSING_COMPLETE"
	MsgServerShuttingDown MessageType = "SERVER_SHUTTING_DOWN"
	MsgError              MessageType = "ERROR"
)

// Message is one newline-delimited frame on the wire.
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// NewMessage marshals payload into a Message of type t.
func NewMessage(t MessageType, payload any) (Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	return Message{Type: t, Payload: raw}, nil
}

// ServerInfo is sent in the welcome message.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// WelcomePayload greets a freshly connected client.
type WelcomePayload struct {
	ServerInfo ServerInfo `json:"server_info"`
	SessionID  int64      `json:"session_id"`
}

// SetConfigPayload is the body of SET_CONFIG.
type SetConfigPayload struct {
	Mode  string `json:"mode"`
	Count int    `json:"count"`
}

// AckConfigPayload answers SET_CONFIG. Config is set on success, Message on error.
type AckConfigPayload struct {
	Status  string         `json:"status"`
	Config  *SessionConfig `json:"config,omitempty"`
	Message string         `json:"message,omitempty"`
}

// ProcessFilesPayload is the body of PROCESS_FILES.
type ProcessFilesPayload struct {
	Event string   `json:"event"`
	Files []string `json:"files"`
}

// StartProcessingPayload announces that a batch has started executing.
type StartProcessingPayload struct {
	Event string   `json:"event"`
	Files []string `json:"files"`
}

// ProcessingCompletePayload reports a finished (or empty, or failed) batch.
type ProcessingCompletePayload struct {
	Event           string       `json:"event"`
	Status          BatchStatus  `json:"status"`
	Results         []FileResult `json:"results"`
	Message         string       `json:"message,omitempty"`
	DurationSeconds float64      `json:"duration_seconds,omitempty"`
}

// ErrorPayload carries a protocol-level rejection.
type ErrorPayload struct {
	Message string `json:"message"`
}

// DecodeEventName accepts either a bare JSON string or {"eventName": "..."}.
func DecodeEventName(raw json.RawMessage) (string, error) {
	var name string
	if err := json.Unmarshal(raw, &name); err != nil {
		var obj struct {
			EventName string `json:"eventName"`
			Event     string `json:"event"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return "", &ProtocolError{Message: "event name must be a string"}
		}
		name = obj.EventName
		if name == "" {
			name = obj.Event
		}
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", &ProtocolError{Message: "event name is empty"}
	}
	return name, nil
}
