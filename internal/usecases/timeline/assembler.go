package timeline

import (
	"context"
	"errors"
	"time"

	"github.com/admin/astro-apps/timeline-api/internal/domain"
	"github.com/admin/astro-apps/timeline-api/internal/pkg/retry"
	"github.com/admin/astro-apps/timeline-api/internal/ports/service"
	"github.com/google/uuid"
)

var errEmptyGoal = errors.New("outcome goal is required")

// GenerateRequest запрос генерации таймлайна.
// Для анонимов UserID нулевой, OwnerID — fingerprint устройства;
// Birth обязателен для анонимов и для пользователей без сохранённого профиля.
type GenerateRequest struct {
	OwnerID         string
	OwnerType       domain.OwnerType
	UserID          uuid.UUID
	Tier            domain.TierName
	Birth           *domain.BirthData
	OutcomeGoal     string
	Context         string
	Approach        string
	TimeframeMonths int
}

// GenerateResult собранный таймлайн плюс предупреждение о вырожденности
// и результат начисления баллов за первую генерацию, если оно случилось
type GenerateResult struct {
	Timeline *domain.Timeline
	Warning  *domain.DegenerateTimelineWarning
	Points   *domain.RewardOutcome
}

// Generate выполняет полный цикл генерации: валидация, списание кредита,
// натальный профиль, сканирование транзитов, ранжирование, синтез текста,
// сохранение. Кредит списывается сразу после локальной валидации, до любых
// внешних вызовов: исчерпавший квоту запрос не ходит в оракул. Любой отказ
// после списания компенсируется возвратом кредита. Таймлайн сохраняется
// только целиком.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	if err := s.checkTimeframe(req.Tier, req.TimeframeMonths); err != nil {
		return nil, err
	}
	if req.OutcomeGoal == "" {
		return nil, domain.WrapBusinessError(errEmptyGoal)
	}
	if req.Birth == nil && req.OwnerType != domain.OwnerTypeUser {
		return nil, &domain.InvalidBirthDataError{Reason: "birth data is required"}
	}
	if req.Birth != nil {
		if _, err := req.Birth.ResolveInstant(); err != nil {
			return nil, err
		}
	}

	if err := s.debitCredit(ctx, req.OwnerID, req.OwnerType, req.Tier); err != nil {
		return nil, err
	}

	natal, err := s.resolveNatalForRequest(ctx, req)
	if err != nil {
		s.refundCredit(ctx, req.OwnerID)
		return nil, err
	}

	result, err := s.assemble(ctx, req, natal)
	if err != nil {
		s.refundCredit(ctx, req.OwnerID)
		return nil, err
	}

	s.publishGenerated(ctx, result.Timeline)
	s.awardFirstGeneration(ctx, req, result)

	return result, nil
}

// resolveNatalForRequest натальные позиции для запроса: сохранённый профиль
// пользователя, либо свежий расчёт. Анонимный расчёт не персистится —
// fingerprint не пользователь.
func (s *Service) resolveNatalForRequest(ctx context.Context, req GenerateRequest) (domain.PlanetLongitudes, error) {
	if req.OwnerType == domain.OwnerTypeUser && req.Birth == nil {
		profile, err := s.GetProfile(ctx, req.UserID)
		if err != nil {
			return nil, err
		}
		return profile.PlanetLongitudes, nil
	}

	if req.Birth == nil {
		return nil, &domain.InvalidBirthDataError{Reason: "birth data is required"}
	}

	if req.OwnerType == domain.OwnerTypeUser {
		profile, err := s.ResolveProfile(ctx, req.UserID, *req.Birth)
		if err != nil {
			return nil, err
		}
		return profile.PlanetLongitudes, nil
	}

	longitudes, _, err := s.computeNatalLongitudes(ctx, *req.Birth)
	if err != nil {
		return nil, err
	}
	return longitudes, nil
}

// assemble всё, что происходит после списания кредита: ошибка отсюда
// означает возврат кредита вызывающей стороной
func (s *Service) assemble(ctx context.Context, req GenerateRequest, natal domain.PlanetLongitudes) (*GenerateResult, error) {
	now := s.now().UTC()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	end := start.AddDate(0, req.TimeframeMonths, 0).AddDate(0, 0, -1)

	events, err := s.scanTransits(ctx, natal, start, end)
	if err != nil {
		return nil, err
	}

	target := req.TimeframeMonths * s.Cfg.ActionsPerMonth
	selected, warning := s.rankAndSelect(events, start, end, target)

	actions, err := s.synthesizeActions(ctx, req, selected)
	if err != nil {
		return nil, err
	}

	affirmations, err := s.generateAffirmations(ctx, req.OutcomeGoal, start, end)
	if err != nil {
		return nil, err
	}

	tl := &domain.Timeline{
		ID:              uuid.New(),
		OwnerID:         req.OwnerID,
		OwnerType:       req.OwnerType,
		OutcomeGoal:     req.OutcomeGoal,
		Context:         req.Context,
		Approach:        req.Approach,
		TimeframeMonths: req.TimeframeMonths,
		Actions:         actions,
		Affirmations:    affirmations,
		CreditsUsed:     1,
		CreatedAt:       now,
	}

	if err := s.TimelineRepo.Create(ctx, tl); err != nil {
		return nil, err
	}

	if warning != nil {
		s.Log.Warn("degenerate timeline generated",
			"timeline_id", tl.ID,
			"requested", warning.Requested,
			"selected", warning.Selected)
	}
	s.Log.Info("timeline generated",
		"timeline_id", tl.ID,
		"owner_id", tl.OwnerID,
		"actions", len(tl.Actions),
		"timeframe_months", tl.TimeframeMonths)

	return &GenerateResult{Timeline: tl, Warning: warning}, nil
}

// synthesizeActions генерирует текст действия под каждую выбранную дату.
// Отказ синтезатора фатален для всей генерации.
func (s *Service) synthesizeActions(ctx context.Context, req GenerateRequest, selected []domain.TransitEvent) (domain.ActionSlots, error) {
	actions := make(domain.ActionSlots, 0, len(selected))
	for _, event := range selected {
		synthReq := service.SynthesisRequest{
			Goal:           req.OutcomeGoal,
			Context:        req.Context,
			Approach:       req.Approach,
			Date:           event.Date,
			TransitSummary: event.Summary(),
		}

		var result *service.SynthesisResult
		err := s.RetryPolicy.Do(ctx, func(ctx context.Context) error {
			var callErr error
			result, callErr = s.Synthesizer.SynthesizeAction(ctx, synthReq)
			return callErr
		}, retry.Always)
		if err != nil {
			return nil, &domain.ActionSynthesisFailedError{
				Date: event.Date.Format("2006-01-02"),
				Err:  err,
			}
		}

		actions = append(actions, domain.ActionSlot{
			Date:           event.Date,
			TransitSummary: event.Summary(),
			ActionText:     result.ActionText,
			StrategyText:   result.StrategyText,
			ResourceLinks:  result.ResourceLinks,
		})
	}
	return actions, nil
}

// generateAffirmations пул аффирмаций: по одной на день окна,
// но не больше максимума хранения
func (s *Service) generateAffirmations(ctx context.Context, goal string, start, end time.Time) (domain.StringList, error) {
	count := int(end.Sub(start).Hours()/24) + 1
	if count > domain.MaxStoredAffirmations {
		count = domain.MaxStoredAffirmations
	}
	if count <= 0 {
		count = 1
	}

	var affirmations []string
	err := s.RetryPolicy.Do(ctx, func(ctx context.Context) error {
		var callErr error
		affirmations, callErr = s.Synthesizer.GenerateAffirmations(ctx, goal, count)
		return callErr
	}, retry.Always)
	if err != nil {
		return nil, &domain.ActionSynthesisFailedError{Err: err}
	}

	return affirmations, nil
}

// publishGenerated событие генерации в Kafka, best-effort
func (s *Service) publishGenerated(ctx context.Context, tl *domain.Timeline) {
	if s.Producer == nil {
		return
	}
	if err := s.Producer.PublishTimelineGenerated(ctx, tl.ID, tl.OwnerID, len(tl.Actions)); err != nil {
		s.Log.Warn("failed to publish timeline generated event", "error", err, "timeline_id", tl.ID)
	}
}

// awardFirstGeneration начисляет бонус за первый таймлайн аутентифицированного
// пользователя. Дедуп по timeline id на стороне Points Engine; best-effort —
// отказ начисления не портит уже созданный таймлайн.
func (s *Service) awardFirstGeneration(ctx context.Context, req GenerateRequest, result *GenerateResult) {
	if s.Rewards == nil || req.OwnerType != domain.OwnerTypeUser || req.UserID == uuid.Nil {
		return
	}

	count, err := s.TimelineRepo.CountByOwner(ctx, req.OwnerID)
	if err != nil || count != 1 {
		return
	}

	event := domain.NewFirstGeneration(req.UserID, result.Timeline.ID, s.now().UTC())
	outcome, err := s.Rewards.Process(ctx, event)
	if err != nil {
		s.Log.Warn("failed to award first generation bonus", "error", err, "user_id", req.UserID)
		return
	}
	result.Points = outcome
}

// GetTimeline получает таймлайн, проверяя владельца
func (s *Service) GetTimeline(ctx context.Context, id uuid.UUID, ownerID string) (*domain.Timeline, error) {
	tl, err := s.TimelineRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tl.OwnerID != ownerID {
		return nil, domain.ErrTimelineNotFound
	}
	return tl, nil
}

// ListTimelines таймлайны владельца, новые первыми
func (s *Service) ListTimelines(ctx context.Context, ownerID string) ([]domain.Timeline, error) {
	return s.TimelineRepo.ListByOwner(ctx, ownerID)
}

// DeleteTimeline удаляет таймлайн по явному запросу владельца
func (s *Service) DeleteTimeline(ctx context.Context, id uuid.UUID, ownerID string) error {
	return s.TimelineRepo.Delete(ctx, id, ownerID)
}

// DailyAffirmation аффирмация дня для таймлайна
func (s *Service) DailyAffirmation(ctx context.Context, id uuid.UUID, ownerID string) (string, error) {
	tl, err := s.GetTimeline(ctx, id, ownerID)
	if err != nil {
		return "", err
	}
	return tl.AffirmationForDay(s.now().UTC()), nil
}
