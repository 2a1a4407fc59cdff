package rooms

import (
	"context"
	"errors"

	"github.com/MarcoPoloResearchLab/priorities/backend/internal/storage"
	"github.com/MarcoPoloResearchLab/priorities/backend/internal/workshop"
	"go.uber.org/zap"
)

const (
	opJoin      = "rooms.join"
	opMessage   = "rooms.message"
	opSummary   = "rooms.summary"
	opBroadcast = "rooms.broadcast"

	reasonLoadFailed      = "load_failed"
	reasonSaveFailed      = "save_failed"
	reasonEncodeFailed    = "encode_failed"
	reasonConflictsExceed = "conflict_retries_exhausted"
	reasonGenerateFailed  = "generate_failed"
	reasonSendFailed      = "send_failed"
)

type eventKind int

const (
	eventJoin eventKind = iota
	eventMessage
	eventLeave
)

type roomEvent struct {
	kind   eventKind
	conn   Connection
	connID string
	raw    []byte
	last   bool
}

type roomActor struct {
	hub         *Hub
	roomID      string
	inbox       chan roomEvent
	done        chan struct{}
	predecessor <-chan struct{}
	logger      *zap.Logger

	// guarded by hub.mu; join count per connection id
	members map[string]int

	// owned by the actor goroutine
	connections map[string]Connection
}

func newRoomActor(hub *Hub, roomID string, predecessor <-chan struct{}) *roomActor {
	return &roomActor{
		hub:         hub,
		roomID:      roomID,
		inbox:       make(chan roomEvent, hub.mailboxSize),
		done:        make(chan struct{}),
		predecessor: predecessor,
		logger:      hub.logger.With(zap.String("room_id", roomID)),
		members:     make(map[string]int),
		connections: make(map[string]Connection),
	}
}

func (a *roomActor) enqueue(ctx context.Context, event roomEvent) error {
	select {
	case a.inbox <- event:
		return nil
	case <-a.done:
		return ErrHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *roomActor) run() {
	defer a.hub.retire(a)
	defer close(a.done)

	if a.predecessor != nil {
		<-a.predecessor
	}

	// Accepted events always run to completion.
	ctx := context.Background()
	for {
		select {
		case event := <-a.inbox:
			a.handle(ctx, event)
			if event.kind == eventLeave && event.last {
				a.drain(ctx)
				return
			}
		case <-a.hub.shutdown:
			a.drain(ctx)
			return
		}
	}
}

func (a *roomActor) drain(ctx context.Context) {
	for {
		select {
		case event := <-a.inbox:
			a.handle(ctx, event)
		default:
			return
		}
	}
}

func (a *roomActor) handle(ctx context.Context, event roomEvent) {
	switch event.kind {
	case eventJoin:
		a.handleJoin(ctx, event.conn)
	case eventMessage:
		a.handleMessage(ctx, event.connID, event.raw)
	case eventLeave:
		delete(a.connections, event.connID)
	}
}

func (a *roomActor) handleJoin(ctx context.Context, conn Connection) {
	a.connections[conn.ID()] = conn
	snapshot, err := a.load(ctx)
	if err != nil {
		a.logError(opJoin, reasonLoadFailed, err, zap.String("connection_id", conn.ID()))
		return
	}
	a.sendState(conn.ID(), snapshot.Room)
}

func (a *roomActor) handleMessage(ctx context.Context, connID string, raw []byte) {
	message, err := workshop.DecodeMessage(raw)
	if err != nil {
		a.logger.Warn("dropping inbound message",
			zap.String("connection_id", connID),
			zap.Error(err),
		)
		return
	}
	if identified, ok := a.connections[connID].(ParticipantConnection); ok {
		if participant, ok := identified.Participant(); ok {
			message = workshop.BindParticipant(message, participant)
		}
	}

	for attempt := 1; attempt <= maxApplyAttempts; attempt++ {
		snapshot, err := a.load(ctx)
		if err != nil {
			a.logError(opMessage, reasonLoadFailed, err, zap.String("message_type", string(message.Type())))
			return
		}
		outcome := workshop.Reduce(snapshot.Room, message, workshop.ReduceEnv{
			RoomID: a.roomID,
			Now:    a.hub.clock(),
		})

		switch outcome.Effect {
		case workshop.EffectReplyState:
			a.sendState(connID, outcome.State)
			return
		case workshop.EffectGenerateSummary:
			a.generateSummary(ctx, connID, snapshot)
			return
		}
		if !outcome.Changed {
			return
		}

		_, err = a.hub.store.Save(ctx, a.roomID, outcome.State, snapshot.Version)
		if errors.Is(err, storage.ErrVersionConflict) {
			a.logger.Debug("room version moved, reapplying message",
				zap.String("message_type", string(message.Type())),
				zap.Int("attempt", attempt),
			)
			continue
		}
		if err != nil {
			a.logError(opMessage, reasonSaveFailed, err, zap.String("message_type", string(message.Type())))
			return
		}
		a.broadcastState(outcome.State)
		return
	}
	a.logError(opMessage, reasonConflictsExceed, storage.ErrVersionConflict, zap.String("message_type", string(message.Type())))
}

// generateSummary asks the summarizer once. Failures reach only the requester
// and leave the stored room untouched.
func (a *roomActor) generateSummary(ctx context.Context, connID string, snapshot storage.Snapshot) {
	if a.hub.summarizer == nil {
		a.logError(opSummary, reasonGenerateFailed, ErrSummaryUnavailable)
		a.sendError(connID, summaryFailureText)
		return
	}
	summary, err := a.hub.summarizer.Summarize(ctx, snapshot.Room)
	if err != nil {
		a.logError(opSummary, reasonGenerateFailed, err, zap.String("connection_id", connID))
		a.sendError(connID, summaryFailureText)
		return
	}

	for attempt := 1; attempt <= maxApplyAttempts; attempt++ {
		if attempt > 1 {
			reloaded, err := a.load(ctx)
			if err != nil {
				a.logError(opSummary, reasonLoadFailed, err)
				return
			}
			snapshot = reloaded
		}
		outcome := workshop.ApplySummary(snapshot.Room, summary)
		if !outcome.Changed {
			return
		}
		_, err := a.hub.store.Save(ctx, a.roomID, outcome.State, snapshot.Version)
		if errors.Is(err, storage.ErrVersionConflict) {
			continue
		}
		if err != nil {
			a.logError(opSummary, reasonSaveFailed, err)
			return
		}
		a.broadcastState(outcome.State)
		return
	}
	a.logError(opSummary, reasonConflictsExceed, storage.ErrVersionConflict)
}

func (a *roomActor) load(ctx context.Context) (storage.Snapshot, error) {
	snapshot, err := a.hub.store.Load(ctx, a.roomID)
	if errors.Is(err, storage.ErrRoomNotFound) {
		return storage.Snapshot{}, nil
	}
	return snapshot, err
}

func (a *roomActor) sendState(connID string, room *workshop.Room) {
	payload, err := workshop.EncodeState(room)
	if err != nil {
		a.logError(opBroadcast, reasonEncodeFailed, err)
		return
	}
	a.send(connID, payload)
}

func (a *roomActor) sendError(connID, text string) {
	payload, err := workshop.EncodeError(text)
	if err != nil {
		a.logError(opBroadcast, reasonEncodeFailed, err)
		return
	}
	a.send(connID, payload)
}

func (a *roomActor) broadcastState(room *workshop.Room) {
	payload, err := workshop.EncodeState(room)
	if err != nil {
		a.logError(opBroadcast, reasonEncodeFailed, err)
		return
	}
	for connID := range a.connections {
		a.send(connID, payload)
	}
}

func (a *roomActor) send(connID string, payload []byte) {
	conn, ok := a.connections[connID]
	if !ok {
		return
	}
	if err := conn.Send(payload); err != nil {
		a.logger.Warn("dropping outbound frame",
			zap.String("operation", opBroadcast),
			zap.String("reason", reasonSendFailed),
			zap.String("connection_id", connID),
			zap.Error(err),
		)
	}
}

func (a *roomActor) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	a.logger.Error("room actor error", attrs...)
}
