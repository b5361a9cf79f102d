package points

import (
	"context"
	"fmt"
	"time"

	"github.com/admin/astro-apps/timeline-api/internal/domain"
	"github.com/admin/astro-apps/timeline-api/internal/ports/persistence"
	"github.com/google/uuid"
)

// Process обрабатывает одно reward-событие целиком в одной транзакции:
// блокировка состояния пользователя, дедуп-вставка в леджер, каскады
// (стрики, майлстоуны, завершение таймлайна), пересчёт уровня. Повторная
// доставка того же события возвращает AlreadyRecorded без изменений.
// Kafka-уведомление о повышении уровня уходит после коммита.
func (s *Service) Process(ctx context.Context, event domain.RewardEvent) (*domain.RewardOutcome, error) {
	if err := event.Validate(); err != nil {
		return nil, domain.WrapBusinessError(err)
	}
	if err := s.validateActionTarget(ctx, event); err != nil {
		return nil, err
	}

	outcome := &domain.RewardOutcome{}

	err := s.Repo.WithTransaction(ctx, func(ctx context.Context, tx persistence.Transaction) error {
		state, err := s.Repo.GetLevelStateForUpdateTx(ctx, tx, event.UserID)
		if err != nil {
			return err
		}

		awarded, err := s.insertEntry(ctx, tx, event)
		if err != nil {
			return err
		}
		if awarded == 0 {
			outcome.AlreadyRecorded = true
			outcome.LifetimePoints = state.LifetimePoints
			outcome.StreakLength = state.StreakLength
			return nil
		}

		state.LifetimePoints += awarded
		outcome.PointsAwarded = awarded

		bonus, err := s.applyCascades(ctx, tx, event, state)
		if err != nil {
			return err
		}
		state.LifetimePoints += bonus
		outcome.PointsAwarded += bonus

		if levelUp := s.recomputeLevel(state); levelUp != nil {
			outcome.LevelUp = levelUp
		}

		state.UpdatedAt = s.now().UTC()
		if err := s.Repo.UpsertLevelStateTx(ctx, tx, state); err != nil {
			return err
		}

		outcome.LifetimePoints = state.LifetimePoints
		outcome.StreakLength = state.StreakLength
		return nil
	})
	if err != nil {
		s.Log.Error("failed to process reward event",
			"error", err,
			"user_id", event.UserID,
			"event_type", event.Type)
		return nil, err
	}

	if outcome.AlreadyRecorded {
		s.Log.Debug("reward event already recorded",
			"user_id", event.UserID,
			"event_type", event.Type,
			"dedupe_key", event.DedupeKey())
		return outcome, nil
	}

	s.Log.Info("reward event processed",
		"user_id", event.UserID,
		"event_type", event.Type,
		"points", outcome.PointsAwarded,
		"lifetime_points", outcome.LifetimePoints)

	if outcome.LevelUp != nil {
		s.publishLevelUp(ctx, event.UserID, *outcome.LevelUp)
	}

	return outcome, nil
}

// validateActionTarget сверяет action_completed с самим таймлайном до любой
// записи в леджер: чужой таймлайн и индекс за пределами списка действий
// отклоняются, иначе каждый выдуманный индекс чеканил бы свежий dedupe-ключ
// и баллы без ограничений. Удалённый таймлайн пропускается: действие было
// выполнено, пока таймлайн ещё существовал.
func (s *Service) validateActionTarget(ctx context.Context, event domain.RewardEvent) error {
	if event.Type != domain.RewardActionCompleted {
		return nil
	}

	tl, err := s.TimelineRepo.GetByID(ctx, *event.TimelineID)
	if err != nil {
		return nil
	}

	if tl.OwnerType == domain.OwnerTypeUser && tl.OwnerID != event.UserID.String() {
		return domain.WrapBusinessError(
			fmt.Errorf("timeline %s does not belong to user %s", tl.ID, event.UserID))
	}
	if *event.ActionIndex >= len(tl.Actions) {
		return domain.WrapBusinessError(
			fmt.Errorf("action index %d is out of range for timeline with %d actions",
				*event.ActionIndex, len(tl.Actions)))
	}
	return nil
}

// insertEntry вставляет запись леджера; 0 баллов = дубликат
func (s *Service) insertEntry(ctx context.Context, tx persistence.Transaction, event domain.RewardEvent) (int, error) {
	entry := &domain.PointsLedgerEntry{
		ID:         uuid.New(),
		UserID:     event.UserID,
		EventType:  event.Type,
		Points:     event.Type.Points(),
		DedupeKey:  event.DedupeKey(),
		OccurredAt: event.OccurredAt.UTC(),
	}

	inserted, err := s.Repo.InsertEntryTx(ctx, tx, entry)
	if err != nil {
		return 0, err
	}
	if !inserted {
		return 0, nil
	}
	return entry.Points, nil
}

// applyCascades производные начисления, которые тянет за собой базовое событие:
// стрик от дневной активности, майлстоуны по числу действий, завершение
// таймлайна последним действием. Возвращает сумму бонусных баллов.
func (s *Service) applyCascades(ctx context.Context, tx persistence.Transaction, event domain.RewardEvent, state *domain.UserLevelState) (int, error) {
	bonus := 0

	switch event.Type {
	case domain.RewardDailyLogin, domain.RewardAffirmationConfirmed:
		streakBonus, err := s.advanceStreak(ctx, tx, event, state)
		if err != nil {
			return 0, err
		}
		bonus += streakBonus

	case domain.RewardActionCompleted:
		state.ActionsCompleted++

		milestoneBonus, err := s.checkMilestones(ctx, tx, event, state)
		if err != nil {
			return 0, err
		}
		bonus += milestoneBonus

		finishBonus, err := s.checkTimelineFinished(ctx, tx, event)
		if err != nil {
			return 0, err
		}
		bonus += finishBonus
	}

	return bonus, nil
}

// advanceStreak обновляет стрик по дню активности: вчера = +1, сегодня = без
// изменений, иначе сброс в 1. Пересечение порогов 7 и 30 даёт разовый бонус.
func (s *Service) advanceStreak(ctx context.Context, tx persistence.Transaction, event domain.RewardEvent, state *domain.UserLevelState) (int, error) {
	dayKey := event.DayKey
	if dayKey == "" {
		dayKey = event.OccurredAt.UTC().Format("2006-01-02")
	}
	if dayKey == state.LastActivityDay {
		return 0, nil
	}

	day, err := time.Parse("2006-01-02", dayKey)
	if err != nil {
		return 0, nil
	}

	if state.LastActivityDay == day.AddDate(0, 0, -1).Format("2006-01-02") {
		state.StreakLength++
	} else {
		state.StreakLength = 1
	}
	state.LastActivityDay = dayKey

	bonus := 0
	if state.StreakLength == 7 {
		b, err := s.awardBonus(ctx, tx, event.UserID, domain.RewardStreak7, event.OccurredAt)
		if err != nil {
			return 0, err
		}
		bonus += b
	}
	if state.StreakLength == 30 {
		b, err := s.awardBonus(ctx, tx, event.UserID, domain.RewardStreak30, event.OccurredAt)
		if err != nil {
			return 0, err
		}
		bonus += b
	}
	return bonus, nil
}

// checkMilestones разовые бонусы на порогах 10/50/100 выполненных действий
func (s *Service) checkMilestones(ctx context.Context, tx persistence.Transaction, event domain.RewardEvent, state *domain.UserLevelState) (int, error) {
	var milestone domain.RewardEventType
	switch state.ActionsCompleted {
	case 10:
		milestone = domain.RewardMilestone10Actions
	case 50:
		milestone = domain.RewardMilestone50Actions
	case 100:
		milestone = domain.RewardMilestone100Actions
	default:
		return 0, nil
	}

	return s.awardBonus(ctx, tx, event.UserID, milestone, event.OccurredAt)
}

// checkTimelineFinished начисляет бонус завершения, если это действие было
// последним невыполненным в таймлайне. Дедуп по timeline id защищает от
// двойного бонуса при гонке двух последних действий.
func (s *Service) checkTimelineFinished(ctx context.Context, tx persistence.Transaction, event domain.RewardEvent) (int, error) {
	if event.TimelineID == nil {
		return 0, nil
	}

	tl, err := s.TimelineRepo.GetByID(ctx, *event.TimelineID)
	if err != nil {
		// таймлайн мог быть удалён владельцем; действие уже начислено
		return 0, nil
	}
	if len(tl.Actions) == 0 {
		return 0, nil
	}

	completed, err := s.Repo.CountActionEntriesTx(ctx, tx, event.UserID, *event.TimelineID)
	if err != nil {
		return 0, err
	}
	if completed < len(tl.Actions) {
		return 0, nil
	}

	finish := domain.NewTimelineFinished(event.UserID, *event.TimelineID, event.OccurredAt)
	return s.insertEntry(ctx, tx, finish)
}

// awardBonus вставляет каскадную запись; дубликат даёт 0 без ошибки
func (s *Service) awardBonus(ctx context.Context, tx persistence.Transaction, userID uuid.UUID, eventType domain.RewardEventType, occurredAt time.Time) (int, error) {
	bonus := domain.RewardEvent{
		UserID:     userID,
		Type:       eventType,
		OccurredAt: occurredAt,
	}
	awarded, err := s.insertEntry(ctx, tx, bonus)
	if err != nil {
		return 0, err
	}
	if awarded > 0 {
		s.Log.Info("bonus awarded",
			"user_id", userID,
			"event_type", eventType,
			"points", awarded)
	}
	return awarded, nil
}

// recomputeLevel сверяет уровень с пожизненными баллами.
// Уровень монотонен: вниз не пересчитывается.
func (s *Service) recomputeLevel(state *domain.UserLevelState) *domain.LevelUp {
	level := domain.LevelForPoints(state.LifetimePoints)
	if level.Level <= state.CurrentLevel {
		return nil
	}

	levelUp := &domain.LevelUp{
		PreviousLevel: state.CurrentLevel,
		NewLevel:      level.Level,
		LevelName:     level.Name,
	}
	state.CurrentLevel = level.Level
	state.LevelAchievedAt = s.now().UTC()
	return levelUp
}

// publishLevelUp событие повышения уровня в Kafka, best-effort
func (s *Service) publishLevelUp(ctx context.Context, userID uuid.UUID, levelUp domain.LevelUp) {
	if s.Producer == nil {
		return
	}
	if err := s.Producer.PublishLevelUp(ctx, userID, levelUp); err != nil {
		s.Log.Warn("failed to publish level up event",
			"error", err,
			"user_id", userID,
			"new_level", levelUp.NewLevel)
	}
}
