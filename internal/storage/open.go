package storage

import (
	"context"
	"fmt"
	"log"

	"pawchat/backend/internal/config"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open builds the store selected by cfg.StoreBackend. The returned close
// function releases its connections.
func Open(ctx context.Context, cfg config.Config) (Storage, func(), error) {
	if cfg.StoreBackend == config.BackendMemory {
		log.Println("WARNING: Using in-memory store, data is lost on restart")
		return NewMemoryStore(), func() {}, nil
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	// Перевірка з'єднання Redis
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		closeDB(db)
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}

	s := NewStorageService(db, rdb)
	if err := s.Migrate(); err != nil {
		closeDB(db)
		rdb.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}

	log.Println("Database and Redis connections established, migrations complete.")
	return s, func() {
		if err := rdb.Close(); err != nil {
			log.Printf("WARNING: Closing redis: %v", err)
		}
		closeDB(db)
	}, nil
}

func closeDB(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Printf("WARNING: Closing postgres: %v", err)
	}
}
