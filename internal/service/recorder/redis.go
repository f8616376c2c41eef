// Package recorder persists completed turns. Writes are best-effort: the
// pipeline never waits on them and never surfaces their failures.
package recorder

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/averylane/ar-companion/backend/internal/config"
	"github.com/averylane/ar-companion/backend/internal/model/turn"
)

const (
	recordKeyPrefix = "interaction:"
	indexKey        = "interactions"
)

// Service 交互记录存储。client 为 nil 时表示存储未配置，所有写入为空操作。
type Service struct {
	client *redis.Client
}

// NewService probes the configured Redis instance. An unreachable or
// unconfigured store yields a disabled recorder, not an error; the turn
// pipeline keeps working without persistence.
func NewService(ctx context.Context, cfg config.RecorderConfig) *Service {
	if !cfg.Enabled() {
		log.Println("[recorder] store not configured, interaction history disabled")
		return &Service{}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("[recorder] store unreachable, interaction history disabled: %v", err)
		return &Service{}
	}

	return &Service{client: client}
}

// Enabled 返回记录存储是否可用。
func (s *Service) Enabled() bool {
	return s != nil && s.client != nil
}

// Record writes one interaction. Each record is a fresh key, so concurrent
// independent writes never contend.
func (s *Service) Record(ctx context.Context, rec turn.InteractionRecord) error {
	if !s.Enabled() {
		return nil
	}

	id := uuid.NewString()
	key := recordKeyPrefix + id

	if err := s.client.HSet(ctx, key, map[string]interface{}{
		"userId":       rec.UserID,
		"timestamp":    rec.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"),
		"userInput":    rec.UserInput,
		"responseText": rec.ReplyText,
		"emotion":      string(rec.Emotion),
		"animation":    string(rec.Animation),
	}).Err(); err != nil {
		return fmt.Errorf("store interaction %s: %w", id, err)
	}

	if err := s.client.SAdd(ctx, indexKey, id).Err(); err != nil {
		return fmt.Errorf("index interaction %s: %w", id, err)
	}

	log.Printf("[recorder] stored interaction %s for user=%s", id, rec.UserID)
	return nil
}

// Close releases the underlying connection pool.
func (s *Service) Close() error {
	if !s.Enabled() {
		return nil
	}
	return s.client.Close()
}
