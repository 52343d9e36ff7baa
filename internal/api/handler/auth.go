package handler

import (
	"log"
	"net/http"
	"strings"

	"pawchat/backend/internal/chat"
	"pawchat/backend/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const sessionKey = "session"

type tokenRequest struct {
	UserID   string `json:"user_id"`
	Nickname string `json:"nickname"`
}

// IssueToken видає JWT для нового анонімного користувача. Only fresh random ids
// are minted; a token for a named user_id is refused, operators issue those
// with the admin CLI. A nickname, if given, becomes the new user's profile.
func (h *Handler) IssueToken(c *gin.Context) {
	var req tokenRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if req.UserID != "" {
		log.Printf("WARNING: Refused token request for existing id %s", req.UserID)
		c.JSON(http.StatusForbidden, gin.H{"error": "tokens are only issued for new anonymous ids"})
		return
	}
	userID := uuid.NewString()

	if req.Nickname != "" {
		user := &models.User{ID: userID, Nickname: req.Nickname}
		if err := h.Chat.Directory.Storage.SaveUser(c.Request.Context(), user); err != nil {
			respondError(c, chat.ErrStoreUnavailable)
			return
		}
	}

	token, expiresAt, err := h.Issuer.Issue(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "user_id": userID, "expires_at": expiresAt})
}

// AuthRequired verifies the bearer token and stores the caller's chat.Session
// on the context. Browsers cannot set headers on a websocket handshake, so a
// "token" query parameter is accepted as well.
func (h *Handler) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization token missing"})
			return
		}

		claims, err := h.Issuer.Parse(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token or expired"})
			return
		}

		sess, err := h.Chat.Session(c.Request.Context(), claims.UserID, claims.ExpiresAt)
		if err != nil {
			respondError(c, err)
			return
		}
		c.Set(sessionKey, sess)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return c.Query("token")
}

func sessionFrom(c *gin.Context) chat.Session {
	sess, _ := c.MustGet(sessionKey).(chat.Session)
	return sess
}
