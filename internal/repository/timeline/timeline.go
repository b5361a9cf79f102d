package timelineRepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"log/slog"

	"github.com/admin/astro-apps/timeline-api/internal/domain"
	"github.com/admin/astro-apps/timeline-api/internal/ports/persistence"
	ports "github.com/admin/astro-apps/timeline-api/internal/ports/repository"
	"github.com/google/uuid"
)

type Repository struct {
	db  persistence.Persistence
	Log *slog.Logger
}

// New создаёт новый репозиторий таймлайнов
func New(db persistence.Persistence, log *slog.Logger) ports.ITimelineRepo {
	return &Repository{
		db:  db,
		Log: log,
	}
}

// Create сохраняет полностью собранный таймлайн одной записью.
// Частичных таймлайнов не бывает: либо запись целиком, либо ничего.
func (r *Repository) Create(ctx context.Context, timeline *domain.Timeline) error {
	query := `INSERT INTO timelines
		(id, owner_id, owner_type, outcome_goal, context, approach, timeframe_months, actions, affirmations, credits_used, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	err := r.db.Exec(ctx, query,
		timeline.ID,
		timeline.OwnerID,
		timeline.OwnerType,
		timeline.OutcomeGoal,
		timeline.Context,
		timeline.Approach,
		timeline.TimeframeMonths,
		timeline.Actions,
		timeline.Affirmations,
		timeline.CreditsUsed,
		timeline.CreatedAt)
	if err != nil {
		r.Log.Error("failed to create timeline",
			"error", err,
			"timeline_id", timeline.ID,
			"owner_id", timeline.OwnerID)
		return fmt.Errorf("failed to create timeline: %w", err)
	}

	r.Log.Debug("timeline created",
		"timeline_id", timeline.ID,
		"owner_id", timeline.OwnerID,
		"actions", len(timeline.Actions))
	return nil
}

// GetByID получает таймлайн по идентификатору
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Timeline, error) {
	var timeline domain.Timeline
	query := `SELECT id, owner_id, owner_type, outcome_goal, context, approach, timeframe_months, actions, affirmations, credits_used, created_at
		FROM timelines WHERE id = $1`

	err := r.db.Get(ctx, &timeline, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrTimelineNotFound
	}
	if err != nil {
		r.Log.Error("failed to get timeline", "error", err, "timeline_id", id)
		return nil, fmt.Errorf("failed to get timeline: %w", err)
	}

	return &timeline, nil
}

// ListByOwner получает таймлайны владельца, новые первыми
func (r *Repository) ListByOwner(ctx context.Context, ownerID string) ([]domain.Timeline, error) {
	var timelines []domain.Timeline
	query := `SELECT id, owner_id, owner_type, outcome_goal, context, approach, timeframe_months, actions, affirmations, credits_used, created_at
		FROM timelines WHERE owner_id = $1 ORDER BY created_at DESC`

	if err := r.db.Select(ctx, &timelines, query, ownerID); err != nil {
		r.Log.Error("failed to list timelines", "error", err, "owner_id", ownerID)
		return nil, fmt.Errorf("failed to list timelines: %w", err)
	}

	return timelines, nil
}

// CountByOwner количество таймлайнов владельца
func (r *Repository) CountByOwner(ctx context.Context, ownerID string) (int64, error) {
	var count int64
	query := `SELECT COUNT(*) FROM timelines WHERE owner_id = $1`

	if err := r.db.Get(ctx, &count, query, ownerID); err != nil {
		return 0, fmt.Errorf("failed to count timelines: %w", err)
	}

	return count, nil
}

// Delete удаляет таймлайн владельца
func (r *Repository) Delete(ctx context.Context, id uuid.UUID, ownerID string) error {
	query := `DELETE FROM timelines WHERE id = $1 AND owner_id = $2`

	affected, err := r.db.ExecWithResult(ctx, query, id, ownerID)
	if err != nil {
		r.Log.Error("failed to delete timeline", "error", err, "timeline_id", id)
		return fmt.Errorf("failed to delete timeline: %w", err)
	}
	if affected == 0 {
		return domain.ErrTimelineNotFound
	}

	r.Log.Debug("timeline deleted", "timeline_id", id, "owner_id", ownerID)
	return nil
}
