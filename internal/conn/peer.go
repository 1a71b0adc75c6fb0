package conn

import (
	"net"
	"sync"
	"time"

	"github.com/maugonzalezv/OS-Scheduler-ClientServer/pkg/model"
)

// DefaultWriteTimeout bounds a single frame write to a slow client.
const DefaultWriteTimeout = 10 * time.Second

// Peer is the write side of one client connection. Sends are serialized so
// frames from the dispatcher and the handler never interleave.
type Peer struct {
	conn         net.Conn
	writeTimeout time.Duration

	mu        sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// NewPeer wraps c. A zero timeout disables write deadlines.
func NewPeer(c net.Conn, writeTimeout time.Duration) *Peer {
	return &Peer{conn: c, writeTimeout: writeTimeout}
}

// Send writes one frame. A failed write closes the connection, which ends the
// read loop and triggers the session cleanup.
func (p *Peer) Send(msg model.Message) error {
	frame, err := Encode(msg)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writeTimeout > 0 {
		_ = p.conn.SetWriteDeadline(time.Now().Add(p.writeTimeout))
	}
	if _, err := p.conn.Write(frame); err != nil {
		p.Close()
		return err
	}
	return nil
}

// RemoteAddr returns the client address.
func (p *Peer) RemoteAddr() string {
	if a := p.conn.RemoteAddr(); a != nil {
		return a.String()
	}
	return ""
}

// Close closes the connection once.
func (p *Peer) Close() error {
	p.closeOnce.Do(func() { p.closeErr = p.conn.Close() })
	return p.closeErr
}
