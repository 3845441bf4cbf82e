package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/mmo7amed2010/swenam-sis-sub001/pkg/logger"
	"go.uber.org/zap"
)

const (
	EventAttemptGraded         = "quiz.attempt_graded"
	EventModuleProgressChanged = "module.progress_changed"
	EventAssignmentSubmitted   = "assignment.submitted"
	EventGradeRecorded         = "grade.recorded"
	EventGradePublished        = "grade.published"
	EventCourseGradeRecomputed = "course_grade.recomputed"
)

// Event 对外发布的领域事件
type Event struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	UserID     uint                   `json:"userId"`
	OccurredAt time.Time              `json:"occurredAt"`
	Payload    map[string]interface{} `json:"payload"`
}

// EventPublisher 在事务提交后调用，不阻塞调用方
type EventPublisher interface {
	Publish(eventType string, userID uint, payload map[string]interface{})
}

type NopEventPublisher struct{}

func (NopEventPublisher) Publish(string, uint, map[string]interface{}) {}

type RedisEventPublisher struct {
	Client  *redis.Client
	Channel string
}

// NewEventPublisher Redis 未启用时退化为 NopEventPublisher
func NewEventPublisher(rdb *redis.Client, channel string) EventPublisher {
	if rdb == nil {
		return NopEventPublisher{}
	}
	return &RedisEventPublisher{Client: rdb, Channel: channel}
}

func (p *RedisEventPublisher) Publish(eventType string, userID uint, payload map[string]interface{}) {
	evt := Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		UserID:     userID,
		OccurredAt: nowFunc(),
		Payload:    payload,
	}
	go func() {
		data, err := json.Marshal(evt)
		if err != nil {
			logger.Log.Error("marshal event failed", zap.String("type", eventType), zap.Error(err))
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := p.Client.Publish(ctx, p.Channel, data).Err(); err != nil {
			logger.Log.Warn("publish event failed",
				zap.String("type", eventType),
				zap.String("id", evt.ID),
				zap.Error(err))
		}
	}()
}
