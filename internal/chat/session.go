// Package chat implements direct messaging between two dog owners:
// room identity, the ordered message log, read tracking and the live room list.
//
// Every operation receives the caller as an explicit Session instead of reading
// a global "current user".
package chat

import (
	"context"
	"time"

	"pawchat/backend/internal/models"
)

// Session is the authenticated caller of a chat operation.
type Session struct {
	UserID string
	// DisplayName is copied onto every message the caller sends.
	DisplayName string
	// ExpiresAt is when the caller's sign-in ends. Zero means no expiry.
	ExpiresAt time.Time
}

// Authenticated reports whether the session carries a user id.
func (s Session) Authenticated() bool {
	return s.UserID != ""
}

// Bind returns a context that ends when the session's sign-in expires,
// so live feeds stop once the caller is signed out.
func (s Session) Bind(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.ExpiresAt.IsZero() {
		return context.WithCancel(ctx)
	}
	return context.WithDeadline(ctx, s.ExpiresAt)
}

// NewSession resolves the caller's display name and builds a Session.
// A missing profile or a failed lookup leaves models.AnonymousName rather than
// failing the sign-in. The name is stored on every message the caller sends.
func NewSession(ctx context.Context, userID string, expiresAt time.Time, profiles ProfileLookup) (Session, error) {
	if userID == "" {
		return Session{}, ErrUnauthenticated
	}
	name := models.AnonymousName
	if profiles != nil {
		if resolved, err := profiles.DisplayName(ctx, userID); err == nil {
			name = resolved
		}
	}
	return Session{UserID: userID, DisplayName: name, ExpiresAt: expiresAt}, nil
}
