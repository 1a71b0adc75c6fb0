// Package hub owns the shared session and event state of the server and turns
// operator triggers into per-session batches.
package hub

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/maugonzalezv/OS-Scheduler-ClientServer/pkg/model"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrEventNotFound   = errors.New("event not found")
	ErrEventExists     = errors.New("event already exists")
)

// Sender delivers messages to one connected client.
type Sender interface {
	Send(msg model.Message) error
	RemoteAddr() string
	Close() error
}

type session struct {
	sender Sender
	config model.SessionConfig
}

type event struct {
	subscribers map[int64]struct{}
	waitQueue   []int64
}

func newEvent() *event {
	return &event{subscribers: make(map[int64]struct{})}
}

// TriggerPlan is the outcome of partitioning a file pool for one trigger.
type TriggerPlan struct {
	Event   string
	Batches []model.Batch
	// Empty lists waiting sessions that were assigned no files.
	Empty []int64
	// Skipped lists queued sessions that had already disconnected.
	Skipped []int64
	// NoFiles is set when the pool itself was empty.
	NoFiles bool
}

// Sessions returns the number of sessions that were served by the trigger.
func (p TriggerPlan) Sessions() int {
	return len(p.Batches) + len(p.Empty)
}

// Sizes returns the number of files in each queued batch, in queue order.
func (p TriggerPlan) Sizes() []int {
	out := make([]int, len(p.Batches))
	for i, b := range p.Batches {
		out[i] = len(b.Files)
	}
	return out
}

// Registry is the single exclusion domain for sessions, configs, events and wait queues.
// The lock is held only for map mutation, never across a network send.
type Registry struct {
	mu       sync.Mutex
	nextID   int64
	defaults model.SessionConfig
	sessions map[int64]*session
	events   map[string]*event
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		defaults: model.DefaultSessionConfig(),
		sessions: make(map[int64]*session),
		events:   make(map[string]*event),
	}
}

// SetDefaultConfig changes the configuration given to sessions registered afterwards.
func (r *Registry) SetDefaultConfig(cfg model.SessionConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	r.defaults = cfg
	r.mu.Unlock()
	return nil
}

// Register adds a connection and returns its session id.
// Ids increase monotonically and are never reused.
func (r *Registry) Register(s Sender) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	r.sessions[r.nextID] = &session{sender: s, config: r.defaults}
	return r.nextID
}

// SetConfig replaces the worker pool configuration of a session.
// An invalid config leaves the previous one in place.
func (r *Registry) SetConfig(id int64, cfg model.SessionConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return fmt.Errorf("set config for session %d: %w", id, ErrSessionNotFound)
	}
	s.config = cfg
	return nil
}

// Subscribe adds the session to the event's subscribers and wait queue,
// creating the event on first use. Repeating it has no further effect.
func (r *Registry) Subscribe(id int64, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return fmt.Errorf("subscribe session %d: %w", id, ErrSessionNotFound)
	}
	ev, ok := r.events[name]
	if !ok {
		ev = newEvent()
		r.events[name] = ev
	}
	ev.subscribers[id] = struct{}{}
	if !containsID(ev.waitQueue, id) {
		ev.waitQueue = append(ev.waitQueue, id)
	}
	return nil
}

// Unsubscribe removes the session from the event's subscribers and wait queue.
// Unknown events are ignored.
func (r *Registry) Unsubscribe(id int64, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev, ok := r.events[name]
	if !ok {
		return
	}
	delete(ev.subscribers, id)
	ev.waitQueue = removeID(ev.waitQueue, id)
}

// AddEvent creates an event with no subscribers.
func (r *Registry) AddEvent(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.events[name]; ok {
		return fmt.Errorf("add event %q: %w", name, ErrEventExists)
	}
	r.events[name] = newEvent()
	return nil
}

// RemoveEvent deletes an event together with its subscribers and wait queue.
func (r *Registry) RemoveEvent(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.events[name]; !ok {
		return fmt.Errorf("remove event %q: %w", name, ErrEventNotFound)
	}
	delete(r.events, name)
	return nil
}

// RemoveSession drops a session and every reference to it. It reports true only
// for the call that actually removed it, so concurrent cleanups run once.
func (r *Registry) RemoveSession(id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return false
	}
	delete(r.sessions, id)
	for _, ev := range r.events {
		delete(ev.subscribers, id)
		ev.waitQueue = removeID(ev.waitQueue, id)
	}
	return true
}

// Lookup returns the sender and current config of a session.
func (r *Registry) Lookup(id int64) (Sender, model.SessionConfig, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, model.SessionConfig{}, false
	}
	return s.sender, s.config, true
}

// Exists reports whether the session is still registered.
func (r *Registry) Exists(id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[id]
	return ok
}

// Senders returns every registered session's sender keyed by id.
func (r *Registry) Senders() map[int64]Sender {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[int64]Sender, len(r.sessions))
	for id, s := range r.sessions {
		out[id] = s.sender
	}
	return out
}

// Trigger snapshots and clears the event's wait queue, then partitions files across
// the sessions that are still registered. Files are split as evenly as possible;
// the remainder goes one each to the earliest queued sessions.
func (r *Registry) Trigger(name string, files []string) (TriggerPlan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	plan := TriggerPlan{Event: name, NoFiles: len(files) == 0}
	ev, ok := r.events[name]
	if !ok {
		return plan, fmt.Errorf("trigger %q: %w", name, ErrEventNotFound)
	}

	queued := ev.waitQueue
	ev.waitQueue = nil

	var active []int64
	for _, id := range queued {
		if _, ok := r.sessions[id]; ok {
			active = append(active, id)
		} else {
			plan.Skipped = append(plan.Skipped, id)
		}
	}
	if len(active) == 0 {
		return plan, nil
	}

	now := time.Now().UTC()
	n, total := len(active), len(files)
	start := 0
	for i, id := range active {
		size := total / n
		if i < total%n {
			size++
		}
		assigned := files[start : start+size]
		start += size
		if len(assigned) == 0 {
			plan.Empty = append(plan.Empty, id)
			continue
		}
		plan.Batches = append(plan.Batches, model.Batch{
			ID:        uuid.NewString(),
			SessionID: id,
			Files:     append([]string(nil), assigned...),
			Event:     name,
			Config:    r.sessions[id].config,
			CreatedAt: now,
		})
	}
	return plan, nil
}

// Sessions lists connected sessions ordered by id.
func (r *Registry) Sessions() []model.SessionInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs := make(map[int64][]string)
	for name, ev := range r.events {
		for id := range ev.subscribers {
			subs[id] = append(subs[id], name)
		}
	}

	out := make([]model.SessionInfo, 0, len(r.sessions))
	for id, s := range r.sessions {
		events := subs[id]
		sort.Strings(events)
		if events == nil {
			events = []string{}
		}
		out = append(out, model.SessionInfo{
			ID:         id,
			RemoteAddr: s.sender.RemoteAddr(),
			Config:     s.config,
			Events:     events,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Events lists events ordered by name.
func (r *Registry) Events() []model.EventInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]model.EventInfo, 0, len(r.events))
	for name, ev := range r.events {
		subs := make([]int64, 0, len(ev.subscribers))
		for id := range ev.subscribers {
			subs = append(subs, id)
		}
		sort.Slice(subs, func(i, j int) bool { return subs[i] < subs[j] })
		out = append(out, model.EventInfo{
			Name:        name,
			Subscribers: subs,
			WaitQueue:   append([]int64{}, ev.waitQueue...),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func removeID(ids []int64, id int64) []int64 {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
