package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"log/slog"

	"github.com/admin/astro-apps/timeline-api/internal/domain"
	"github.com/google/uuid"

	kafkaPorts "github.com/admin/astro-apps/timeline-api/internal/ports/kafka"
	pointsUsecase "github.com/admin/astro-apps/timeline-api/internal/usecases/points"
)

// RewardEventHandler обрабатывает внешние reward-события (рефералы, шаринг,
// фидбек), которые публикуют смежные сервисы в топик rewards.events.
// Дедуп на стороне Points Engine делает повторную доставку безопасной.
type RewardEventHandler struct {
	PointsService *pointsUsecase.Service
	Log           *slog.Logger
}

// NewRewardEventHandler создаёт новый handler внешних reward-событий
func NewRewardEventHandler(pointsService *pointsUsecase.Service, log *slog.Logger) kafkaPorts.MessageHandler {
	return &RewardEventHandler{
		PointsService: pointsService,
		Log:           log,
	}
}

// HandleMessage обрабатывает одно сообщение топика rewards.events
func (h *RewardEventHandler) HandleMessage(ctx context.Context, key string, value []byte) error {
	var message RewardEventMessage
	if err := json.Unmarshal(value, &message); err != nil {
		return domain.WrapBusinessError(fmt.Errorf("failed to unmarshal reward event: %w", err))
	}

	userID, err := uuid.Parse(message.UserID)
	if err != nil {
		return domain.WrapBusinessError(fmt.Errorf("invalid user_id in reward event: %w", err))
	}

	occurredAt, err := time.Parse(time.RFC3339, message.OccurredAt)
	if err != nil {
		return domain.WrapBusinessError(fmt.Errorf("invalid occurred_at in reward event: %w", err))
	}

	event, err := domain.NewExternalReward(userID, domain.RewardEventType(message.EventType), occurredAt)
	if err != nil {
		return domain.WrapBusinessError(err)
	}

	h.Log.Debug("processing external reward event",
		"user_id", userID,
		"event_type", message.EventType,
	)

	outcome, err := h.PointsService.Process(ctx, event)
	if err != nil {
		return fmt.Errorf("failed to process external reward: %w", err)
	}

	if outcome.AlreadyRecorded {
		h.Log.Debug("external reward already recorded",
			"user_id", userID,
			"event_type", message.EventType,
		)
	}

	return nil
}

// RewardEventMessage структура сообщения топика rewards.events
type RewardEventMessage struct {
	UserID     string `json:"user_id"`
	EventType  string `json:"event_type"`
	OccurredAt string `json:"occurred_at"`
}
