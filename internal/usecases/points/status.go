package points

import (
	"context"

	"github.com/admin/astro-apps/timeline-api/internal/domain"
	"github.com/google/uuid"
)

// Status агрегированное состояние пользователя для выдачи наружу
type Status struct {
	LifetimePoints  int                        `json:"lifetime_points"`
	Level           domain.AchievementLevel    `json:"level"`
	NextLevel       *domain.AchievementLevel   `json:"next_level,omitempty"`
	ProgressPercent int                        `json:"progress_percent"`
	StreakLength    int                        `json:"streak_length"`
	RecentEntries   []domain.PointsLedgerEntry `json:"recent_entries"`
}

const recentEntriesLimit = 20

// GetStatus состояние уровня, прогресс до следующего и последние начисления
func (s *Service) GetStatus(ctx context.Context, userID uuid.UUID) (*Status, error) {
	state, err := s.Repo.GetLevelState(ctx, userID)
	if err != nil {
		return nil, err
	}

	entries, err := s.Repo.ListEntries(ctx, userID, recentEntriesLimit)
	if err != nil {
		return nil, err
	}

	level, _ := domain.LevelByNumber(state.CurrentLevel)
	status := &Status{
		LifetimePoints:  state.LifetimePoints,
		Level:           level,
		ProgressPercent: domain.ProgressPercent(state.LifetimePoints),
		StreakLength:    state.StreakLength,
		RecentEntries:   entries,
	}

	if next, ok := domain.LevelByNumber(state.CurrentLevel + 1); ok {
		status.NextLevel = &next
	}

	return status, nil
}

// Levels таблица уровней для выдачи наружу
func (s *Service) Levels() []domain.AchievementLevel {
	return domain.AchievementLevels()
}
