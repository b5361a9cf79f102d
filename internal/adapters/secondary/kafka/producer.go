package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"log/slog"

	"github.com/IBM/sarama"
	"github.com/admin/astro-apps/timeline-api/internal/domain"
	"github.com/google/uuid"
)

// Producer реализация Kafka producer для доменных событий
type Producer struct {
	producer sarama.SyncProducer
	cfg      *Config
	log      *slog.Logger
}

// NewProducer создаёт новый Kafka producer
func NewProducer(cfg *Config, log *slog.Logger) (*Producer, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5

	// Настройка безопасности (если указано)
	if cfg.SecurityProtocol == "SASL_SSL" || cfg.SecurityProtocol == "SASL_PLAINTEXT" {
		config.Net.SASL.Enable = true
		config.Net.SASL.Mechanism = sarama.SASLTypePlaintext
		if cfg.SASLMechanism == "SCRAM-SHA-256" {
			config.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA256
		}
		config.Net.SASL.User = cfg.SASLUsername
		config.Net.SASL.Password = cfg.SASLPassword
		if cfg.SecurityProtocol == "SASL_SSL" {
			config.Net.TLS.Enable = true
		}
	}

	producer, err := sarama.NewSyncProducer(cfg.GetBrokers(), config)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	log.Info("kafka producer created",
		"brokers", cfg.Brokers,
		"topic", cfg.Topic,
	)

	return &Producer{
		producer: producer,
		cfg:      cfg,
		log:      log,
	}, nil
}

// levelUpMessage тело события повышения уровня
type levelUpMessage struct {
	UserID        string    `json:"user_id"`
	PreviousLevel int       `json:"previous_level"`
	NewLevel      int       `json:"new_level"`
	LevelName     string    `json:"level_name"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// PublishLevelUp отправляет уведомление о повышении уровня
func (p *Producer) PublishLevelUp(ctx context.Context, userID uuid.UUID, levelUp domain.LevelUp) error {
	msg := levelUpMessage{
		UserID:        userID.String(),
		PreviousLevel: levelUp.PreviousLevel,
		NewLevel:      levelUp.NewLevel,
		LevelName:     levelUp.LevelName,
		OccurredAt:    time.Now().UTC(),
	}

	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal level-up event: %w", err)
	}

	return p.send(userID.String(), value, "level_up")
}

// timelineGeneratedMessage тело события генерации таймлайна
type timelineGeneratedMessage struct {
	TimelineID  string    `json:"timeline_id"`
	OwnerID     string    `json:"owner_id"`
	ActionCount int       `json:"action_count"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// PublishTimelineGenerated отправляет событие успешной генерации таймлайна
func (p *Producer) PublishTimelineGenerated(ctx context.Context, timelineID uuid.UUID, ownerID string, actionCount int) error {
	msg := timelineGeneratedMessage{
		TimelineID:  timelineID.String(),
		OwnerID:     ownerID,
		ActionCount: actionCount,
		OccurredAt:  time.Now().UTC(),
	}

	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal timeline-generated event: %w", err)
	}

	return p.send(timelineID.String(), value, "timeline_generated")
}

// Send отправляет произвольное сообщение
func (p *Producer) Send(ctx context.Context, key string, value []byte) error {
	return p.send(key, value, "")
}

func (p *Producer) send(key string, value []byte, eventType string) error {
	msg := &sarama.ProducerMessage{
		Topic: p.cfg.Topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(value),
	}

	if eventType != "" {
		msg.Headers = []sarama.RecordHeader{
			{
				Key:   []byte("event_type"),
				Value: []byte(eventType),
			},
		}
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.log.Debug("kafka send failed",
			"error", err,
			"topic", p.cfg.Topic,
			"key", key,
		)
		return fmt.Errorf("kafka send failed [topic=%s, key=%s]: %w", p.cfg.Topic, key, err)
	}

	p.log.Debug("message sent to kafka",
		"topic", p.cfg.Topic,
		"partition", partition,
		"offset", offset,
		"key", key,
		"event_type", eventType,
	)

	return nil
}

// Close закрывает producer
func (p *Producer) Close() error {
	return p.producer.Close()
}
