package chathub

import (
	"pawchat/backend/internal/chat"
	"pawchat/backend/internal/models"
)

// RoomListFrames turns room list snapshots into "rooms" frames.
func RoomListFrames(feed *chat.Feed[[]models.RoomSummary]) <-chan models.LiveFrame {
	return frames(feed, func(s chat.Snapshot[[]models.RoomSummary]) models.LiveFrame {
		if s.Err != nil {
			return ErrorFrame("", s.Err)
		}
		return models.LiveFrame{Type: models.FrameRooms, Rooms: s.Value}
	})
}

// RoomFrames turns message windows of roomID into "messages" frames.
func RoomFrames(roomID string, feed *chat.Feed[[]models.Message]) <-chan models.LiveFrame {
	return frames(feed, func(s chat.Snapshot[[]models.Message]) models.LiveFrame {
		if s.Err != nil {
			return ErrorFrame(roomID, s.Err)
		}
		return models.LiveFrame{Type: models.FrameMessages, RoomID: roomID, Messages: s.Value}
	})
}

// ErrorFrame reports a failed action or a degraded snapshot to the peer.
func ErrorFrame(roomID string, err error) models.LiveFrame {
	return models.LiveFrame{Type: models.FrameError, RoomID: roomID, Error: err.Error()}
}

// frames forwards snapshots until the feed stops, then closes the returned channel.
func frames[T any](feed *chat.Feed[T], convert func(chat.Snapshot[T]) models.LiveFrame) <-chan models.LiveFrame {
	out := make(chan models.LiveFrame, 1)
	go func() {
		defer close(out)
		for snap := range feed.Updates() {
			select {
			case out <- convert(snap):
			case <-feed.Done():
				return
			}
		}
	}()
	return out
}
