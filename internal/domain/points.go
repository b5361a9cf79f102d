package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RewardEventType тип события начисления баллов (закрытое множество)
type RewardEventType string

const (
	RewardAffirmationConfirmed RewardEventType = "affirmation_confirmed"
	RewardActionCompleted      RewardEventType = "action_completed"
	RewardTimelineFinished     RewardEventType = "timeline_finished"
	RewardDailyLogin           RewardEventType = "daily_login"
	RewardReferral             RewardEventType = "referral"
	RewardSocialShare          RewardEventType = "social_share"
	RewardFeedback             RewardEventType = "feedback"
	RewardFirstGeneration      RewardEventType = "first_generation"
	RewardStreak7              RewardEventType = "streak_7"
	RewardStreak30             RewardEventType = "streak_30"
	RewardMilestone10Actions   RewardEventType = "milestone_10_actions"
	RewardMilestone50Actions   RewardEventType = "milestone_50_actions"
	RewardMilestone100Actions  RewardEventType = "milestone_100_actions"
)

// Points фиксированная стоимость события в баллах
func (t RewardEventType) Points() int {
	switch t {
	case RewardAffirmationConfirmed:
		return 5
	case RewardActionCompleted:
		return 10
	case RewardTimelineFinished:
		return 50
	case RewardDailyLogin:
		return 5
	case RewardReferral:
		return 50
	case RewardSocialShare:
		return 10
	case RewardFeedback:
		return 15
	case RewardFirstGeneration:
		return 25
	case RewardStreak7:
		return 25
	case RewardStreak30:
		return 100
	case RewardMilestone10Actions:
		return 30
	case RewardMilestone50Actions:
		return 100
	case RewardMilestone100Actions:
		return 250
	}
	return 0
}

func (t RewardEventType) IsValid() bool {
	return t.Points() > 0
}

// RewardEvent событие начисления баллов. Конструкторы ниже — единственный
// способ собрать валидный вариант; Points Engine диспетчеризует по Type
// исчерпывающим switch.
type RewardEvent struct {
	UserID      uuid.UUID
	Type        RewardEventType
	TimelineID  *uuid.UUID
	DayKey      string // формат 2006-01-02, для событий с дневным дедупом
	ActionIndex *int
	OccurredAt  time.Time
}

// DedupeKey ключ at-most-once начисления.
// Повторяемые-но-ограниченные события (аффирмация дня, логин дня) дедупятся
// по дню; стрики и майлстоуны — по порогу, чтобы бонус сработал один раз
// на пересечение, а не каждый день выше порога.
func (e RewardEvent) DedupeKey() string {
	switch e.Type {
	case RewardAffirmationConfirmed:
		return fmt.Sprintf("%s:%s:%s:%s", e.UserID, e.Type, e.TimelineID, e.DayKey)
	case RewardActionCompleted:
		return fmt.Sprintf("%s:%s:%s:%d", e.UserID, e.Type, e.TimelineID, *e.ActionIndex)
	case RewardTimelineFinished, RewardFirstGeneration:
		return fmt.Sprintf("%s:%s:%s", e.UserID, e.Type, e.TimelineID)
	case RewardDailyLogin:
		return fmt.Sprintf("%s:%s:%s", e.UserID, e.Type, e.DayKey)
	case RewardStreak7, RewardStreak30, RewardMilestone10Actions,
		RewardMilestone50Actions, RewardMilestone100Actions:
		return fmt.Sprintf("%s:%s", e.UserID, e.Type)
	case RewardReferral, RewardSocialShare, RewardFeedback:
		return fmt.Sprintf("%s:%s:%s", e.UserID, e.Type, e.OccurredAt.UTC().Format(time.RFC3339Nano))
	}
	return fmt.Sprintf("%s:%s", e.UserID, e.Type)
}

// Validate проверяет, что у варианта заполнены обязательные поля
func (e RewardEvent) Validate() error {
	if e.UserID == uuid.Nil {
		return fmt.Errorf("reward event: user id is required")
	}
	if !e.Type.IsValid() {
		return fmt.Errorf("reward event: unknown type %q", e.Type)
	}
	switch e.Type {
	case RewardAffirmationConfirmed:
		if e.TimelineID == nil || e.DayKey == "" {
			return fmt.Errorf("reward event %s: timeline id and day key are required", e.Type)
		}
	case RewardActionCompleted:
		if e.TimelineID == nil || e.ActionIndex == nil {
			return fmt.Errorf("reward event %s: timeline id and action index are required", e.Type)
		}
		if *e.ActionIndex < 0 {
			return fmt.Errorf("reward event %s: action index must not be negative", e.Type)
		}
	case RewardTimelineFinished, RewardFirstGeneration:
		if e.TimelineID == nil {
			return fmt.Errorf("reward event %s: timeline id is required", e.Type)
		}
	case RewardDailyLogin:
		if e.DayKey == "" {
			return fmt.Errorf("reward event %s: day key is required", e.Type)
		}
	}
	return nil
}

// NewAffirmationConfirmed подтверждение аффирмации дня
func NewAffirmationConfirmed(userID, timelineID uuid.UUID, dayKey string, occurredAt time.Time) RewardEvent {
	return RewardEvent{
		UserID:     userID,
		Type:       RewardAffirmationConfirmed,
		TimelineID: &timelineID,
		DayKey:     dayKey,
		OccurredAt: occurredAt,
	}
}

// NewActionCompleted выполнение действия таймлайна
func NewActionCompleted(userID, timelineID uuid.UUID, actionIndex int, occurredAt time.Time) RewardEvent {
	return RewardEvent{
		UserID:      userID,
		Type:        RewardActionCompleted,
		TimelineID:  &timelineID,
		ActionIndex: &actionIndex,
		OccurredAt:  occurredAt,
	}
}

// NewTimelineFinished завершение всех действий таймлайна
func NewTimelineFinished(userID, timelineID uuid.UUID, occurredAt time.Time) RewardEvent {
	return RewardEvent{
		UserID:     userID,
		Type:       RewardTimelineFinished,
		TimelineID: &timelineID,
		OccurredAt: occurredAt,
	}
}

// NewDailyLogin ежедневный вход
func NewDailyLogin(userID uuid.UUID, dayKey string, occurredAt time.Time) RewardEvent {
	return RewardEvent{
		UserID:     userID,
		Type:       RewardDailyLogin,
		DayKey:     dayKey,
		OccurredAt: occurredAt,
	}
}

// NewFirstGeneration первая генерация таймлайна пользователем
func NewFirstGeneration(userID, timelineID uuid.UUID, occurredAt time.Time) RewardEvent {
	return RewardEvent{
		UserID:     userID,
		Type:       RewardFirstGeneration,
		TimelineID: &timelineID,
		OccurredAt: occurredAt,
	}
}

// NewExternalReward реферал, шаринг или фидбек из внешней системы
func NewExternalReward(userID uuid.UUID, eventType RewardEventType, occurredAt time.Time) (RewardEvent, error) {
	switch eventType {
	case RewardReferral, RewardSocialShare, RewardFeedback:
	default:
		return RewardEvent{}, fmt.Errorf("reward event %q is not an external reward", eventType)
	}
	return RewardEvent{
		UserID:     userID,
		Type:       eventType,
		OccurredAt: occurredAt,
	}, nil
}

// PointsLedgerEntry неизменяемая запись одного начисления (append-only)
type PointsLedgerEntry struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	UserID     uuid.UUID       `json:"user_id" db:"user_id"`
	EventType  RewardEventType `json:"event_type" db:"event_type"`
	Points     int             `json:"points" db:"points"`
	DedupeKey  string          `json:"dedupe_key" db:"dedupe_key"`
	OccurredAt time.Time       `json:"occurred_at" db:"occurred_at"`
}

// UserLevelState денормализованное состояние уровня пользователя.
// LifetimePoints всегда восстановимо как сумма записей леджера;
// джоба-реконсайлер проверяет это ночью.
type UserLevelState struct {
	UserID           uuid.UUID `json:"user_id" db:"user_id"`
	LifetimePoints   int       `json:"lifetime_points" db:"lifetime_points"`
	CurrentLevel     int       `json:"current_level" db:"current_level"`
	LevelAchievedAt  time.Time `json:"level_achieved_at" db:"level_achieved_at"`
	StreakLength     int       `json:"streak_length" db:"streak_length"`
	LastActivityDay  string    `json:"last_activity_day" db:"last_activity_day"` // формат 2006-01-02
	ActionsCompleted int       `json:"actions_completed" db:"actions_completed"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// LevelUp уведомление о повышении уровня
type LevelUp struct {
	PreviousLevel int    `json:"previous_level"`
	NewLevel      int    `json:"new_level"`
	LevelName     string `json:"level_name"`
}

// RewardOutcome результат обработки события Points Engine
type RewardOutcome struct {
	PointsAwarded   int      `json:"points_awarded"`
	AlreadyRecorded bool     `json:"already_recorded"`
	LifetimePoints  int      `json:"lifetime_points"`
	StreakLength    int      `json:"streak_length"`
	LevelUp         *LevelUp `json:"level_up,omitempty"`
}
