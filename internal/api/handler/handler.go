package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"pawchat/backend/internal/auth"
	"pawchat/backend/internal/chat"
	"pawchat/backend/internal/chathub"

	"github.com/gin-gonic/gin"
)

// Handler містить посилання на ChatHub та сервіси чату
type Handler struct {
	Chat   *chat.Service
	Issuer *auth.Issuer
	Hub    *chathub.ManagerService
	// DevTokens mounts POST /token. Off in production, where tokens come from
	// the admin CLI.
	DevTokens bool
}

func NewHandler(svc *chat.Service, issuer *auth.Issuer, hub *chathub.ManagerService) *Handler {
	return &Handler{Chat: svc, Issuer: issuer, Hub: hub}
}

// RegisterRoutes mounts the public and the authenticated routes on r.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/healthz", h.Healthz)
	if h.DevTokens {
		log.Println("WARNING: POST /token is enabled, anyone can mint an anonymous identity")
		r.POST("/token", h.IssueToken)
	}

	authed := r.Group("/", h.AuthRequired())
	authed.POST("/rooms", h.EnsureRoom)
	authed.GET("/rooms", h.ListRooms)
	authed.GET("/rooms/:id/messages", h.GetMessages)
	authed.POST("/rooms/:id/messages", h.SendMessage)
	authed.GET("/rooms/:id/unread", h.GetUnread)
	authed.GET("/ws/rooms", h.ServeRoomListSocket)
	authed.GET("/ws/rooms/:id", h.ServeRoomSocket)
}

// NewRouter builds the gin engine with every route of the service.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	h.RegisterRoutes(r)
	return r
}

func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "connections": h.Hub.Total()})
}

// statusFor maps chat errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, chat.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, chat.ErrInvalidTarget), errors.Is(err, chat.ErrEmptyMessage):
		return http.StatusBadRequest
	case errors.Is(err, chat.ErrNotMember):
		return http.StatusForbidden
	case errors.Is(err, chat.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, chat.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Printf("ERROR: %s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

// intQuery reads a non-negative integer query parameter, 0 when absent.
func intQuery(c *gin.Context, name string) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": name + " must be a non-negative integer"})
		return 0, false
	}
	return n, true
}
