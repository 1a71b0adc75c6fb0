package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"

	"github.com/maugonzalezv/OS-Scheduler-ClientServer/internal/conn"
	"github.com/maugonzalezv/OS-Scheduler-ClientServer/pkg/model"
)

// Session is the client side of one TCP connection to the scheduler server.
type Session struct {
	ID     int64
	Server model.ServerInfo

	conn    net.Conn
	scanner *bufio.Scanner
	pending []model.Message
	logger  *slog.Logger
}

// Dial connects to addr and waits for the server's WELCOME.
func Dial(ctx context.Context, addr string, logger *slog.Logger) (*Session, error) {
	var d net.Dialer
	c, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", addr, err)
	}
	sc := bufio.NewScanner(c)
	sc.Buffer(make([]byte, 0, 64*1024), conn.MaxLineBytes)
	s := &Session{conn: c, scanner: sc, logger: logger}

	msg, err := s.read()
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("read welcome: %w", err)
	}
	if msg.Type != model.MsgWelcome {
		c.Close()
		return nil, fmt.Errorf("expected %s, got %s", model.MsgWelcome, msg.Type)
	}
	var w model.WelcomePayload
	if err := json.Unmarshal(msg.Payload, &w); err != nil {
		c.Close()
		return nil, fmt.Errorf("decode welcome: %w", err)
	}
	s.ID, s.Server = w.SessionID, w.ServerInfo
	logger.Debug("connected", "session_id", s.ID, "server", s.Server.Name, "version", s.Server.Version)
	return s, nil
}

// Send writes one frame.
func (s *Session) Send(t model.MessageType, payload any) error {
	msg, err := model.NewMessage(t, payload)
	if err != nil {
		return err
	}
	frame, err := conn.Encode(msg)
	if err != nil {
		return err
	}
	_, err = s.conn.Write(frame)
	return err
}

// Configure sends SET_CONFIG and waits for the acknowledgement.
func (s *Session) Configure(mode string, workers int) (model.SessionConfig, error) {
	if err := s.Send(model.MsgSetConfig, model.SetConfigPayload{Mode: mode, Count: workers}); err != nil {
		return model.SessionConfig{}, err
	}
	msg, err := s.await(model.MsgAckConfig)
	if err != nil {
		return model.SessionConfig{}, err
	}
	var ack model.AckConfigPayload
	if err := json.Unmarshal(msg.Payload, &ack); err != nil {
		return model.SessionConfig{}, fmt.Errorf("decode %s: %w", msg.Type, err)
	}
	if ack.Status != "success" || ack.Config == nil {
		return model.SessionConfig{}, fmt.Errorf("config rejected: %s", ack.Message)
	}
	return *ack.Config, nil
}

// Subscribe sends SUB and waits for the acknowledgement.
func (s *Session) Subscribe(event string) error {
	if err := s.Send(model.MsgSubscribe, event); err != nil {
		return err
	}
	_, err := s.await(model.MsgAckSubscribe)
	return err
}

// Unsubscribe sends UNSUB and waits for the acknowledgement.
func (s *Session) Unsubscribe(event string) error {
	if err := s.Send(model.MsgUnsubscribe, event); err != nil {
		return err
	}
	_, err := s.await(model.MsgAckUnsubscribe)
	return err
}

// ProcessFiles asks the server to process the named files directly.
func (s *Session) ProcessFiles(event string, files []string) error {
	return s.Send(model.MsgProcessFiles, model.ProcessFilesPayload{Event: event, Files: files})
}

// Next returns the next server message, including any that arrived while
// waiting for an acknowledgement.
func (s *Session) Next() (model.Message, error) {
	if len(s.pending) > 0 {
		msg := s.pending[0]
		s.pending = s.pending[1:]
		return msg, nil
	}
	return s.read()
}

// Close closes the connection.
func (s *Session) Close() error {
	return s.conn.Close()
}

// await reads until a message of type t arrives. ERROR fails the wait;
// anything else is kept for Next.
func (s *Session) await(t model.MessageType) (model.Message, error) {
	for {
		msg, err := s.read()
		if err != nil {
			return model.Message{}, err
		}
		switch msg.Type {
		case t:
			return msg, nil
		case model.MsgError:
			var p model.ErrorPayload
			json.Unmarshal(msg.Payload, &p)
			return model.Message{}, fmt.Errorf("server error: %s", p.Message)
		case model.MsgServerShuttingDown:
			return model.Message{}, fmt.Errorf("server is shutting down")
		}
		s.pending = append(s.pending, msg)
	}
}

func (s *Session) read() (model.Message, error) {
	for s.scanner.Scan() {
		line := s.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		msg, err := conn.Decode(line)
		if err != nil {
			s.logger.Warn("skipping frame", "error", err)
			continue
		}
		return msg, nil
	}
	if err := s.scanner.Err(); err != nil {
		return model.Message{}, err
	}
	return model.Message{}, io.EOF
}
