package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/priorities/backend/internal/workshop"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	socketPingInterval   = 15 * time.Second
	socketPongWait       = 2 * socketPingInterval
	socketWriteWait      = 10 * time.Second
	socketMaxMessageSize = 1 << 20
	socketBufferSize     = 1024
)

var errSendBufferFull = errors.New("socket send buffer full")

type socketUpgrader struct {
	websocket.Upgrader
}

func newUpgrader(origins []string) socketUpgrader {
	return socketUpgrader{Upgrader: websocket.Upgrader{
		ReadBufferSize:  socketBufferSize,
		WriteBufferSize: socketBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(origins, r.Header.Get("Origin"))
		},
	}}
}

// socketConnection adapts one websocket to rooms.Connection. Frames queue in
// a bounded buffer drained by the write pump.
type socketConnection struct {
	id          string
	participant *workshop.Participant
	stream      chan []byte
	closed      chan struct{}
	once        sync.Once
}

func newSocketConnection(id string, bufferSize int) *socketConnection {
	return &socketConnection{
		id:     id,
		stream: make(chan []byte, bufferSize),
		closed: make(chan struct{}),
	}
}

func (s *socketConnection) ID() string {
	return s.id
}

// Participant implements rooms.ParticipantConnection.
func (s *socketConnection) Participant() (workshop.Participant, bool) {
	if s.participant == nil {
		return workshop.Participant{}, false
	}
	return *s.participant, true
}

func (s *socketConnection) Send(payload []byte) error {
	select {
	case <-s.closed:
		return net.ErrClosed
	default:
	}
	select {
	case s.stream <- payload:
		return nil
	default:
		return errSendBufferFull
	}
}

func (s *socketConnection) close() {
	s.once.Do(func() { close(s.closed) })
}

func (h *httpHandler) handleRoomSocket(c *gin.Context) {
	roomID := c.Param(roomIDParam)

	connectionID, err := uuid.NewV7()
	if err != nil {
		h.logger.Error("failed to allocate connection id", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "connection_id_failed"})
		return
	}

	socket, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.String("room_id", roomID), zap.Error(err))
		return
	}
	defer socket.Close()

	fields := []zap.Field{
		zap.String("room_id", roomID),
		zap.String("connection_id", connectionID.String()),
	}
	conn := newSocketConnection(connectionID.String(), h.sendBuffer)
	defer conn.close()
	if claims, ok := participantFromContext(c); ok {
		participant := claims.Participant()
		conn.participant = &participant
		fields = append(fields, zap.String("user_id", claims.UserID))
	}
	logger := h.logger.With(fields...)

	ctx := c.Request.Context()
	if err := h.hub.Join(ctx, roomID, conn); err != nil {
		logger.Warn("room join rejected", zap.Error(err))
		closeSocket(socket, websocket.CloseTryAgainLater, "room unavailable")
		return
	}
	defer h.hub.Leave(roomID, conn.ID())
	logger.Debug("participant connected")

	readDone := make(chan struct{})
	go h.readFrames(ctx, socket, roomID, conn, readDone, logger)

	h.writeFrames(socket, conn, readDone, logger)
	_ = socket.Close()
	<-readDone
	logger.Debug("participant disconnected")
}

func (h *httpHandler) readFrames(ctx context.Context, socket *websocket.Conn, roomID string, conn *socketConnection, done chan struct{}, logger *zap.Logger) {
	defer close(done)

	socket.SetReadLimit(socketMaxMessageSize)
	_ = socket.SetReadDeadline(time.Now().Add(socketPongWait))
	socket.SetPongHandler(func(string) error {
		return socket.SetReadDeadline(time.Now().Add(socketPongWait))
	})

	for {
		messageType, payload, err := socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("websocket read ended", zap.Error(err))
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		if err := h.hub.Deliver(ctx, roomID, conn.ID(), payload); err != nil {
			logger.Warn("failed to deliver frame", zap.Error(err))
			return
		}
	}
}

func (h *httpHandler) writeFrames(socket *websocket.Conn, conn *socketConnection, readDone <-chan struct{}, logger *zap.Logger) {
	ticker := time.NewTicker(socketPingInterval)
	defer ticker.Stop()

	for {
		select {
		case payload := <-conn.stream:
			_ = socket.SetWriteDeadline(time.Now().Add(socketWriteWait))
			if err := socket.WriteMessage(websocket.TextMessage, payload); err != nil {
				logger.Debug("websocket write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = socket.SetWriteDeadline(time.Now().Add(socketWriteWait))
			if err := socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-h.hub.Done():
			closeSocket(socket, websocket.CloseGoingAway, "server shutting down")
			return
		case <-readDone:
			return
		}
	}
}

func closeSocket(socket *websocket.Conn, code int, reason string) {
	message := websocket.FormatCloseMessage(code, reason)
	_ = socket.WriteControl(websocket.CloseMessage, message, time.Now().Add(socketWriteWait))
}
