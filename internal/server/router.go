package server

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/priorities/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/priorities/backend/internal/rooms"
	"github.com/MarcoPoloResearchLab/priorities/backend/internal/storage"
	"github.com/MarcoPoloResearchLab/priorities/backend/internal/summary"
	"github.com/MarcoPoloResearchLab/priorities/backend/internal/workshop"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	roomIDParam             = "roomId"
	participantContextKey   = "priorities_participant"
	defaultConnectionBuffer = 32
	healthPingTimeout       = 2 * time.Second
)

var (
	errMissingHub   = errors.New("room hub dependency required")
	errMissingStore = errors.New("room store dependency required")
	// errWildcardSessionOrigins guards cookie sessions against cross-site sockets.
	errWildcardSessionOrigins = errors.New("session validation requires an explicit origin allow-list")
)

// SessionValidator authenticates websocket upgrades. It is optional.
type SessionValidator interface {
	ValidateRequest(r *http.Request) (auth.SessionClaims, error)
}

// Dependencies wires the HTTP surface.
type Dependencies struct {
	Hub              *rooms.Hub
	Store            storage.Store
	SessionValidator SessionValidator
	AllowedOrigins   []string
	SendBuffer       int
	Logger           *zap.Logger
}

// NewHTTPHandler builds the gin engine serving room sockets and read-only
// room endpoints.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Hub == nil {
		return nil, errMissingHub
	}
	if deps.Store == nil {
		return nil, errMissingStore
	}
	if deps.SessionValidator != nil && allowsAnyOrigin(deps.AllowedOrigins) {
		return nil, errWildcardSessionOrigins
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	sendBuffer := deps.SendBuffer
	if sendBuffer <= 0 {
		sendBuffer = defaultConnectionBuffer
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware(deps.AllowedOrigins...))

	handler := &httpHandler{
		hub:        deps.Hub,
		store:      deps.Store,
		sessions:   deps.SessionValidator,
		upgrader:   newUpgrader(deps.AllowedOrigins),
		sendBuffer: sendBuffer,
		logger:     logger,
	}

	router.GET("/healthz", handler.handleHealth)

	socket := router.Group("/")
	socket.Use(handler.authorizeSocket)
	socket.GET("/parties/main/:"+roomIDParam, handler.handleRoomSocket)
	socket.GET("/rooms/:"+roomIDParam+"/ws", handler.handleRoomSocket)

	router.GET("/rooms/:"+roomIDParam+"/state", handler.handleRoomState)
	router.GET("/rooms/:"+roomIDParam+"/results", handler.handleRoomResults)
	router.GET("/rooms/:"+roomIDParam+"/export", handler.handleRoomExport)

	return router, nil
}

// corsMiddleware only allows credentialed requests from listed origins; a
// wildcard configuration serves anonymous reads to any site.
func corsMiddleware(origins ...string) gin.HandlerFunc {
	config := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}
	if allowsAnyOrigin(origins) {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = origins
		config.AllowCredentials = true
	}
	return cors.New(config)
}

func allowsAnyOrigin(origins []string) bool {
	return len(origins) == 0 || slices.Contains(origins, "*")
}

type httpHandler struct {
	hub        *rooms.Hub
	store      storage.Store
	sessions   SessionValidator
	upgrader   socketUpgrader
	sendBuffer int
	logger     *zap.Logger
}

type resultsResponsePayload struct {
	RoomID  string                `json:"roomId"`
	Results []workshop.CardResult `json:"results"`
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	if pinger, ok := h.store.(storage.Pinger); ok {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthPingTimeout)
		defer cancel()
		if err := pinger.Ping(ctx); err != nil {
			h.logger.Warn("room store unreachable",
				zap.String("code", storage.ErrorCode(err)),
				zap.Error(err),
			)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *httpHandler) handleRoomState(c *gin.Context) {
	snapshot, ok := h.loadRoom(c)
	if !ok {
		return
	}
	payload, err := workshop.EncodeState(snapshot.Room)
	if err != nil {
		h.logger.Error("failed to encode room state", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "encode_failed"})
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", payload)
}

func (h *httpHandler) handleRoomResults(c *gin.Context) {
	snapshot, ok := h.loadRoom(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, resultsResponsePayload{
		RoomID:  snapshot.Room.ID,
		Results: workshop.Results(snapshot.Room),
	})
}

func (h *httpHandler) handleRoomExport(c *gin.Context) {
	snapshot, ok := h.loadRoom(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, summary.BuildExport(snapshot.Room))
}

func (h *httpHandler) loadRoom(c *gin.Context) (storage.Snapshot, bool) {
	roomID := c.Param(roomIDParam)
	if err := storage.ValidateRoomID(roomID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_room_id"})
		return storage.Snapshot{}, false
	}
	snapshot, err := h.store.Load(c.Request.Context(), roomID)
	if errors.Is(err, storage.ErrRoomNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "room_not_found"})
		return storage.Snapshot{}, false
	}
	if err != nil {
		h.logger.Error("failed to load room",
			zap.String("room_id", roomID),
			zap.String("code", storage.ErrorCode(err)),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load_failed"})
		return storage.Snapshot{}, false
	}
	return snapshot, true
}

// authorizeSocket checks the participant session when a validator is wired;
// without one every participant may connect.
func (h *httpHandler) authorizeSocket(c *gin.Context) {
	if h.sessions == nil {
		c.Next()
		return
	}
	claims, err := h.sessions.ValidateRequest(c.Request)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredSessionToken) {
			h.logger.Info("session validation failed", zap.Error(err))
		} else {
			h.logger.Warn("session validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(participantContextKey, claims)
	c.Next()
}

func participantFromContext(c *gin.Context) (auth.SessionClaims, bool) {
	value, ok := c.Get(participantContextKey)
	if !ok {
		return auth.SessionClaims{}, false
	}
	claims, ok := value.(auth.SessionClaims)
	return claims, ok
}

func originAllowed(origins []string, origin string) bool {
	if origin == "" || len(origins) == 0 {
		return true
	}
	for _, allowed := range origins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}
