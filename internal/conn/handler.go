package conn

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/maugonzalezv/OS-Scheduler-ClientServer/internal/hub"
	"github.com/maugonzalezv/OS-Scheduler-ClientServer/pkg/model"
)

// Handler serves one client connection at a time per call to Serve.
type Handler struct {
	hub          *hub.Hub
	info         model.ServerInfo
	writeTimeout time.Duration
	logger       *slog.Logger
}

// NewHandler creates a connection handler.
func NewHandler(h *hub.Hub, info model.ServerInfo, writeTimeout time.Duration, logger *slog.Logger) *Handler {
	return &Handler{
		hub:          h,
		info:         info,
		writeTimeout: writeTimeout,
		logger:       logger.With("component", "conn"),
	}
}

// Serve registers a session for c, greets the client and processes frames until the
// connection fails. The session is removed exactly once on the way out.
func (h *Handler) Serve(c net.Conn) {
	peer := NewPeer(c, h.writeTimeout)
	reg := h.hub.Registry()
	id := reg.Register(peer)
	log := h.logger.With("session_id", id, "remote", peer.RemoteAddr())
	log.Info("session opened")

	defer func() {
		if reg.RemoveSession(id) {
			log.Info("session closed")
		}
		peer.Close()
	}()

	if err := h.reply(peer, model.MsgWelcome, model.WelcomePayload{ServerInfo: h.info, SessionID: id}); err != nil {
		log.Warn("send welcome", "error", err)
		return
	}

	scanner := bufio.NewScanner(c)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxLineBytes)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		msg, err := Decode(line)
		if err != nil {
			log.Warn("skipping frame", "error", err)
			continue
		}
		h.route(id, peer, msg, log)
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, net.ErrClosed) && !errors.Is(err, io.EOF) {
		log.Warn("read failed", "error", err)
	}
}

func (h *Handler) route(id int64, peer *Peer, msg model.Message, log *slog.Logger) {
	reg := h.hub.Registry()
	log.Debug("frame received", "type", msg.Type)

	switch msg.Type {
	case model.MsgSetConfig:
		h.setConfig(id, peer, msg.Payload, log)

	case model.MsgSubscribe:
		name, err := model.DecodeEventName(msg.Payload)
		if err != nil {
			h.replyError(peer, "invalid SUB payload", log)
			return
		}
		if err := reg.Subscribe(id, name); err != nil {
			log.Warn("subscribe", "event", name, "error", err)
			h.replyError(peer, "subscribe to "+name+" failed: "+err.Error(), log)
			return
		}
		log.Info("subscribed", "event", name)
		h.replyOrLog(peer, model.MsgAckSubscribe, name, log)

	case model.MsgUnsubscribe:
		name, err := model.DecodeEventName(msg.Payload)
		if err != nil {
			h.replyError(peer, "invalid UNSUB payload", log)
			return
		}
		reg.Unsubscribe(id, name)
		log.Info("unsubscribed", "event", name)
		h.replyOrLog(peer, model.MsgAckUnsubscribe, name, log)

	case model.MsgProcessFiles:
		var p model.ProcessFilesPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			h.replyError(peer, "invalid PROCESS_FILES payload", log)
			return
		}
		if err := h.hub.ProcessFiles(id, p.Event, p.Files); err != nil {
			log.Warn("process files", "error", err)
		}

	default:
		log.Warn("skipping frame", "error", &model.ProtocolError{Message: "unknown message type " + string(msg.Type)})
	}
}

func (h *Handler) setConfig(id int64, peer *Peer, raw json.RawMessage, log *slog.Logger) {
	var p model.SetConfigPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.replyOrLog(peer, model.MsgAckConfig, model.AckConfigPayload{Status: "error", Message: "invalid SET_CONFIG payload"}, log)
		return
	}
	mode, err := model.ParseMode(p.Mode)
	if err == nil {
		cfg := model.SessionConfig{Mode: mode, WorkerCount: p.Count}
		if err = h.hub.Registry().SetConfig(id, cfg); err == nil {
			log.Info("config updated", "mode", cfg.Mode, "workers", cfg.WorkerCount)
			h.replyOrLog(peer, model.MsgAckConfig, model.AckConfigPayload{Status: "success", Config: &cfg}, log)
			return
		}
	}
	log.Info("config rejected", "error", err)
	h.replyOrLog(peer, model.MsgAckConfig, model.AckConfigPayload{Status: "error", Message: err.Error()}, log)
}

func (h *Handler) reply(peer *Peer, t model.MessageType, payload any) error {
	msg, err := model.NewMessage(t, payload)
	if err != nil {
		return err
	}
	return peer.Send(msg)
}

func (h *Handler) replyOrLog(peer *Peer, t model.MessageType, payload any, log *slog.Logger) {
	if err := h.reply(peer, t, payload); err != nil {
		log.Warn("reply failed", "type", t, "error", err)
	}
}

func (h *Handler) replyError(peer *Peer, message string, log *slog.Logger) {
	log.Info("rejecting frame", "reason", message)
	h.replyOrLog(peer, model.MsgError, model.ErrorPayload{Message: message}, log)
}
