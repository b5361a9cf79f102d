package kafka

import (
	"context"

	"github.com/admin/astro-apps/timeline-api/internal/domain"
	"github.com/google/uuid"
)

// IKafkaProducer интерфейс для отправки доменных событий в Kafka
type IKafkaProducer interface {
	// PublishLevelUp отправляет уведомление о повышении уровня
	PublishLevelUp(ctx context.Context, userID uuid.UUID, levelUp domain.LevelUp) error
	// PublishTimelineGenerated отправляет событие успешной генерации таймлайна
	PublishTimelineGenerated(ctx context.Context, timelineID uuid.UUID, ownerID string, actionCount int) error
	// Send отправляет произвольное сообщение
	Send(ctx context.Context, key string, value []byte) error
	// Close закрывает producer
	Close() error
}
