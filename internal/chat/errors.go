package chat

import (
	"errors"
	"fmt"

	"pawchat/backend/internal/storage"
)

var (
	// ErrUnauthenticated means the call carries no caller identity.
	ErrUnauthenticated = errors.New("chat: unauthenticated")
	// ErrInvalidTarget means the counterpart is missing or is the caller.
	ErrInvalidTarget = errors.New("chat: invalid target")
	// ErrEmptyMessage means the text is blank after trimming.
	ErrEmptyMessage = errors.New("chat: empty message")
	// ErrNotFound means a room or message id no longer resolves.
	ErrNotFound = errors.New("chat: not found")
	// ErrNotMember means the caller is not one of the room's two members.
	ErrNotMember = errors.New("chat: not a room member")
	// ErrStoreUnavailable wraps any I/O failure of the document store.
	ErrStoreUnavailable = errors.New("chat: store unavailable")
)

// storeErr maps a storage error onto the chat taxonomy.
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
