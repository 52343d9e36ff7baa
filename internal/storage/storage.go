package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"pawchat/backend/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a room, message or user id does not resolve.
	ErrNotFound = errors.New("storage: not found")
	// ErrDuplicateRoom is returned by CreateRoom when a room for the pair already exists.
	ErrDuplicateRoom = errors.New("storage: room for pair already exists")
)

// Storage is the document store the chat core is written against.
// Every successful write publishes a change Event on the affected topics.
type Storage interface {
	// FindRoomsForMember returns rooms containing userID, most recently updated first.
	FindRoomsForMember(ctx context.Context, userID string) ([]models.ChatRoom, error)
	GetRoomByID(ctx context.Context, roomID string) (*models.ChatRoom, error)
	GetRoomByPairKey(ctx context.Context, pairKey string) (*models.ChatRoom, error)
	// CreateRoom inserts the room; ErrDuplicateRoom when PairKey is taken.
	CreateRoom(ctx context.Context, room *models.ChatRoom) error
	// TouchRoom sets last_message and bumps updated_at (never backwards).
	TouchRoom(ctx context.Context, roomID, lastMessage string) error

	// AppendMessage inserts msg, filling ID, Seq and SentAt from the store.
	AppendMessage(ctx context.Context, msg *models.Message) error
	// RecentMessages returns the newest limit messages in ascending order.
	RecentMessages(ctx context.Context, roomID string, limit int) ([]models.Message, error)
	// AddReader appends userID to read_by if absent. Reports whether it was added.
	// A message id that does not resolve in roomID yields ErrNotFound.
	AddReader(ctx context.Context, roomID, messageID, userID string) (bool, error)

	GetUserByID(ctx context.Context, userID string) (*models.User, error)
	SaveUser(ctx context.Context, user *models.User) error

	// Watch delivers change events for the given topics until ctx ends or Close is called.
	Watch(ctx context.Context, topics ...string) (Watcher, error)
}

// Service is the production Storage: PostgreSQL for documents, Redis Pub/Sub for change events.
type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
	}
}

var _ Storage = (*Service)(nil)

// Migrate creates the chat tables.
func (s *Service) Migrate() error {
	return s.DB.AutoMigrate(
		&models.ChatRoom{},
		&models.Message{},
		&models.User{},
	)
}

// FindRoomsForMember знаходить усі кімнати, де користувач є учасником.
func (s *Service) FindRoomsForMember(ctx context.Context, userID string) ([]models.ChatRoom, error) {
	var rooms []models.ChatRoom
	err := s.DB.WithContext(ctx).
		Where("? = ANY(members)", userID).
		Order("updated_at desc").
		Order("id asc").
		Find(&rooms).Error
	if err != nil {
		log.Printf("ERROR: Failed to find rooms for user %s: %v", userID, err)
		return nil, err
	}
	return rooms, nil
}

func (s *Service) GetRoomByID(ctx context.Context, roomID string) (*models.ChatRoom, error) {
	return s.firstRoom(ctx, "id = ?", roomID)
}

func (s *Service) GetRoomByPairKey(ctx context.Context, pairKey string) (*models.ChatRoom, error) {
	return s.firstRoom(ctx, "pair_key = ?", pairKey)
}

func (s *Service) firstRoom(ctx context.Context, query string, arg string) (*models.ChatRoom, error) {
	var room models.ChatRoom
	err := s.DB.WithContext(ctx).Where(query, arg).First(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		log.Printf("ERROR: Failed to get room (%s %s): %v", query, arg, err)
		return nil, err
	}
	return &room, nil
}

// CreateRoom зберігає нову кімнату. Унікальний індекс pair_key гарантує одну кімнату на пару.
func (s *Service) CreateRoom(ctx context.Context, room *models.ChatRoom) error {
	if err := s.DB.WithContext(ctx).Create(room).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateRoom
		}
		log.Printf("ERROR: Failed to create room for pair %s: %v", room.PairKey, err)
		return err
	}

	topics := make([]string, 0, len(room.Members))
	for _, m := range room.Members {
		topics = append(topics, MemberTopic(m))
	}
	s.publish(ctx, Event{Kind: EventRoomCreated, RoomID: room.ID}, topics...)
	return nil
}

// TouchRoom оновлює last_message та updated_at після нового повідомлення.
func (s *Service) TouchRoom(ctx context.Context, roomID, lastMessage string) error {
	var room models.ChatRoom
	result := s.DB.WithContext(ctx).Model(&room).
		Where("id = ?", roomID).
		Updates(map[string]interface{}{
			"last_message": lastMessage,
			"updated_at":   gorm.Expr("GREATEST(updated_at, NOW())"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}

	if err := s.DB.WithContext(ctx).Select("members").Where("id = ?", roomID).First(&room).Error; err != nil {
		return err
	}
	topics := make([]string, 0, len(room.Members))
	for _, m := range room.Members {
		topics = append(topics, MemberTopic(m))
	}
	s.publish(ctx, Event{Kind: EventRoomTouched, RoomID: roomID}, topics...)
	return nil
}

// AppendMessage зберігає повідомлення; sent_at та seq призначає PostgreSQL.
func (s *Service) AppendMessage(ctx context.Context, msg *models.Message) error {
	if err := s.DB.WithContext(ctx).Omit("sent_at").Create(msg).Error; err != nil {
		log.Printf("ERROR: Failed to save message for room %s: %v", msg.RoomID, err)
		return err
	}
	// Omit skips the RETURNING of sent_at, so read the store-assigned values back.
	if err := s.DB.WithContext(ctx).Select("seq", "sent_at").Where("id = ?", msg.ID).First(msg).Error; err != nil {
		return err
	}
	s.publish(ctx, Event{Kind: EventMessageAppended, RoomID: msg.RoomID, MessageID: msg.ID}, RoomTopic(msg.RoomID))
	return nil
}

// RecentMessages повертає останні limit повідомлень кімнати у зростаючому порядку.
func (s *Service) RecentMessages(ctx context.Context, roomID string, limit int) ([]models.Message, error) {
	var newestFirst []models.Message
	err := s.DB.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("sent_at desc").
		Order("seq desc").
		Limit(limit).
		Find(&newestFirst).Error
	if err != nil {
		log.Printf("ERROR: Failed to get messages for room %s: %v", roomID, err)
		return nil, err
	}

	messages := make([]models.Message, len(newestFirst))
	for i := range newestFirst {
		messages[len(newestFirst)-1-i] = newestFirst[i]
	}
	return messages, nil
}

// AddReader додає userID до read_by лише якщо його там ще немає.
func (s *Service) AddReader(ctx context.Context, roomID, messageID, userID string) (bool, error) {
	result := s.DB.WithContext(ctx).Model(&models.Message{}).
		Where("id = ? AND room_id = ?", messageID, roomID).
		Where("NOT (? = ANY(read_by))", userID).
		Update("read_by", gorm.Expr("array_append(read_by, ?)", userID))
	if result.Error != nil {
		log.Printf("ERROR: Failed to mark message %s read by %s: %v", messageID, userID, result.Error)
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		// Either already read or the id is stale.
		var count int64
		if err := s.DB.WithContext(ctx).Model(&models.Message{}).
			Where("id = ? AND room_id = ?", messageID, roomID).
			Count(&count).Error; err != nil {
			return false, err
		}
		if count == 0 {
			return false, ErrNotFound
		}
		return false, nil
	}
	s.publish(ctx, Event{Kind: EventMessageRead, RoomID: roomID, MessageID: messageID, UserID: userID},
		RoomTopic(roomID), MemberTopic(userID))
	return true, nil
}

func (s *Service) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	err := s.DB.WithContext(ctx).Where("id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// SaveUser зберігає користувача в PostgreSQL
func (s *Service) SaveUser(ctx context.Context, user *models.User) error {
	return s.DB.WithContext(ctx).Save(user).Error
}

// publish розсилає подію в Redis Pub/Sub. Помилка публікації не відкочує запис.
func (s *Service) publish(ctx context.Context, ev Event, topics ...string) {
	if s.Redis == nil {
		return
	}
	for _, topic := range topics {
		ev.Topic = topic
		payload, err := json.Marshal(ev)
		if err != nil {
			log.Printf("ERROR: Failed to encode event for %s: %v", topic, err)
			continue
		}
		if err := s.Redis.Publish(ctx, topic, payload).Err(); err != nil {
			log.Printf("WARNING: Failed to publish %s on %s: %v", ev.Kind, topic, err)
		}
	}
}

// Watch підписується на канали Redis для заданих тем.
func (s *Service) Watch(ctx context.Context, topics ...string) (Watcher, error) {
	if s.Redis == nil {
		return nil, fmt.Errorf("storage: change notifications need redis")
	}
	pubsub := s.Redis.Subscribe(ctx, topics...)
	// Wait for the subscription confirmation so no event published after Watch returns is lost.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	w := newRedisWatcher(pubsub)
	go w.run(ctx)
	return w, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "duplicate key")
}
