// Package rooms owns the authoritative state of every active room. Each room
// is served by one actor goroutine, so all events of a room are handled one
// at a time and in arrival order.
package rooms

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/priorities/backend/internal/storage"
	"github.com/MarcoPoloResearchLab/priorities/backend/internal/workshop"
	"go.uber.org/zap"
)

const (
	defaultMailboxSize = 64
	maxApplyAttempts   = 3
	summaryFailureText = "Failed to generate AI summary"
)

var (
	errMissingStore      = errors.New("rooms: store dependency required")
	errMissingConnection = errors.New("rooms: connection required")

	// ErrHubClosed is returned once Close has been called.
	ErrHubClosed = errors.New("rooms: hub closed")
	// ErrNotJoined is returned when a connection delivers to a room it is not
	// currently joined to.
	ErrNotJoined = errors.New("rooms: connection has not joined room")
	// ErrSummaryUnavailable is reported to the requester when no summarizer is wired.
	ErrSummaryUnavailable = errors.New("rooms: summary generation unavailable")
)

// Connection is one participant's outbound channel. Send must not block; a
// connection that cannot accept a frame returns an error and the frame is lost.
type Connection interface {
	ID() string
	Send(payload []byte) error
}

// ParticipantConnection is a Connection authenticated as a workshop
// participant. Messages it sends about itself are bound to that identity.
type ParticipantConnection interface {
	Connection
	Participant() (workshop.Participant, bool)
}

// Summarizer produces the AI summary for a room.
type Summarizer interface {
	Summarize(ctx context.Context, room *workshop.Room) (workshop.Summary, error)
}

// HubConfig describes the dependencies of a Hub.
type HubConfig struct {
	Store       storage.Store
	Summarizer  Summarizer
	Clock       func() time.Time
	Logger      *zap.Logger
	MailboxSize int
}

// Hub routes connection events to per-room actors, starting an actor with the
// first connection of a room and retiring it after the last one leaves.
type Hub struct {
	store       storage.Store
	summarizer  Summarizer
	clock       func() time.Time
	logger      *zap.Logger
	mailboxSize int

	mu       sync.Mutex
	actors   map[string]*roomActor
	draining map[string]chan struct{}
	closed   bool
	shutdown chan struct{}
	wg       sync.WaitGroup
}

// NewHub validates cfg and returns a ready hub.
func NewHub(cfg HubConfig) (*Hub, error) {
	if cfg.Store == nil {
		return nil, errMissingStore
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	mailboxSize := cfg.MailboxSize
	if mailboxSize <= 0 {
		mailboxSize = defaultMailboxSize
	}
	return &Hub{
		store:       cfg.Store,
		summarizer:  cfg.Summarizer,
		clock:       clock,
		logger:      logger,
		mailboxSize: mailboxSize,
		actors:      make(map[string]*roomActor),
		draining:    make(map[string]chan struct{}),
		shutdown:    make(chan struct{}),
	}, nil
}

// Join registers conn with the room and sends it the current state. Every
// successful Join must be paired with exactly one Leave.
func (h *Hub) Join(ctx context.Context, roomID string, conn Connection) error {
	if err := storage.ValidateRoomID(roomID); err != nil {
		return err
	}
	if conn == nil {
		return errMissingConnection
	}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrHubClosed
	}
	actor, ok := h.actors[roomID]
	if !ok {
		actor = newRoomActor(h, roomID, h.draining[roomID])
		h.actors[roomID] = actor
		h.wg.Add(1)
		go actor.run()
	}
	actor.members[conn.ID()]++
	h.mu.Unlock()

	if err := actor.enqueue(ctx, roomEvent{kind: eventJoin, conn: conn}); err != nil {
		h.Leave(roomID, conn.ID())
		return err
	}
	return nil
}

// Deliver hands a raw inbound frame from connID to the room's actor. connID
// must currently be joined to roomID.
func (h *Hub) Deliver(ctx context.Context, roomID, connID string, raw []byte) error {
	h.mu.Lock()
	actor, ok := h.actors[roomID]
	if ok && actor.members[connID] == 0 {
		ok = false
	}
	h.mu.Unlock()
	if !ok {
		return ErrNotJoined
	}
	payload := make([]byte, len(raw))
	copy(payload, raw)
	return actor.enqueue(ctx, roomEvent{kind: eventMessage, connID: connID, raw: payload})
}

// Leave unregisters connID. The actor stops once its last connection leaves
// and every queued event has been handled.
func (h *Hub) Leave(roomID, connID string) {
	h.mu.Lock()
	actor, ok := h.actors[roomID]
	if !ok || actor.members[connID] == 0 {
		h.mu.Unlock()
		return
	}
	actor.members[connID]--
	if actor.members[connID] == 0 {
		delete(actor.members, connID)
	}
	last := len(actor.members) == 0
	if last {
		delete(h.actors, roomID)
		h.draining[roomID] = actor.done
	}
	h.mu.Unlock()

	_ = actor.enqueue(context.Background(), roomEvent{kind: eventLeave, connID: connID, last: last})
}

// Done is closed when the hub starts shutting down.
func (h *Hub) Done() <-chan struct{} {
	return h.shutdown
}

// Close stops accepting connections, signals running actors to finish their
// queued events and waits for them until ctx expires.
func (h *Hub) Close(ctx context.Context) error {
	h.mu.Lock()
	if !h.closed {
		h.closed = true
		close(h.shutdown)
	}
	h.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ActiveRooms reports how many room actors are currently running.
func (h *Hub) ActiveRooms() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.actors)
}

func (h *Hub) retire(actor *roomActor) {
	h.mu.Lock()
	if h.draining[actor.roomID] == actor.done {
		delete(h.draining, actor.roomID)
	}
	if h.actors[actor.roomID] == actor {
		delete(h.actors, actor.roomID)
	}
	h.mu.Unlock()
	h.wg.Done()
}
