package pointsRepo

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
	db  persistence.TransactionalPersistence
	Log *slog.Logger
}

// New создаёт новый репозиторий леджера баллов
func New(db persistence.TransactionalPersistence, log *slog.Logger) ports.IPointsRepo {
	return &Repository{
		db:  db,
		Log: log,
	}
}

// WithTransaction выполняет функцию в транзакции с автоматическим commit/rollback
func (r *Repository) WithTransaction(ctx context.Context, fn func(context.Context, persistence.Transaction) error) error {
	return r.db.WithTransaction(ctx, fn)
}

// InsertEntryTx вставляет запись леджера внутри транзакции.
// ON CONFLICT DO NOTHING по dedupe_key: false без ошибки = начисление уже было.
func (r *Repository) InsertEntryTx(ctx context.Context, tx persistence.Transaction, entry *domain.PointsLedgerEntry) (bool, error) {
	query := `INSERT INTO points_ledger (id, user_id, event_type, points, dedupe_key, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (dedupe_key) DO NOTHING`

	affected, err := tx.ExecWithResult(ctx, query,
		entry.ID,
		entry.UserID,
		entry.EventType,
		entry.Points,
		entry.DedupeKey,
		entry.OccurredAt)
	if err != nil {
		r.Log.Error("failed to insert ledger entry",
			"error", err,
			"user_id", entry.UserID,
			"dedupe_key", entry.DedupeKey)
		return false, fmt.Errorf("failed to insert ledger entry: %w", err)
	}

	return affected > 0, nil
}

// GetLevelStateForUpdateTx читает состояние уровня с блокировкой строки.
// Отсутствующее состояние возвращается нулевым, не ошибкой.
func (r *Repository) GetLevelStateForUpdateTx(ctx context.Context, tx persistence.Transaction, userID uuid.UUID) (*domain.UserLevelState, error) {
	var state domain.UserLevelState
	query := `SELECT user_id, lifetime_points, current_level, level_achieved_at, streak_length, last_activity_day, actions_completed, updated_at
		FROM user_level_state WHERE user_id = $1 FOR UPDATE`

	err := tx.Get(ctx, &state, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return &domain.UserLevelState{UserID: userID, CurrentLevel: 1}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get level state: %w", err)
	}

	return &state, nil
}

// UpsertLevelStateTx сохраняет состояние уровня внутри транзакции
func (r *Repository) UpsertLevelStateTx(ctx context.Context, tx persistence.Transaction, state *domain.UserLevelState) error {
	query := `INSERT INTO user_level_state
		(user_id, lifetime_points, current_level, level_achieved_at, streak_length, last_activity_day, actions_completed, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id) DO UPDATE SET
			lifetime_points = EXCLUDED.lifetime_points,
			current_level = EXCLUDED.current_level,
			level_achieved_at = EXCLUDED.level_achieved_at,
			streak_length = EXCLUDED.streak_length,
			last_activity_day = EXCLUDED.last_activity_day,
			actions_completed = EXCLUDED.actions_completed,
			updated_at = EXCLUDED.updated_at`

	err := tx.Exec(ctx, query,
		state.UserID,
		state.LifetimePoints,
		state.CurrentLevel,
		state.LevelAchievedAt,
		state.StreakLength,
		state.LastActivityDay,
		state.ActionsCompleted,
		state.UpdatedAt)
	if err != nil {
		r.Log.Error("failed to upsert level state", "error", err, "user_id", state.UserID)
		return fmt.Errorf("failed to upsert level state: %w", err)
	}

	return nil
}

// SumPointsTx сумма баллов леджера пользователя внутри транзакции
func (r *Repository) SumPointsTx(ctx context.Context, tx persistence.Transaction, userID uuid.UUID) (int, error) {
	var sum int
	query := `SELECT COALESCE(SUM(points), 0) FROM points_ledger WHERE user_id = $1`

	if err := tx.Get(ctx, &sum, query, userID); err != nil {
		return 0, fmt.Errorf("failed to sum ledger points: %w", err)
	}

	return sum, nil
}

// CountActionEntriesTx число начисленных action_completed по таймлайну.
// Считает по префиксу dedupe_key: "<user>:action_completed:<timeline>:".
func (r *Repository) CountActionEntriesTx(ctx context.Context, tx persistence.Transaction, userID uuid.UUID, timelineID uuid.UUID) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM points_ledger
		WHERE user_id = $1 AND event_type = $2 AND dedupe_key LIKE $3`

	prefix := fmt.Sprintf("%s:%s:%s:%%", userID, domain.RewardActionCompleted, timelineID)
	if err := tx.Get(ctx, &count, query, userID, domain.RewardActionCompleted, prefix); err != nil {
		return 0, fmt.Errorf("failed to count action entries: %w", err)
	}

	return count, nil
}

// GetLevelState читает состояние уровня без блокировки
func (r *Repository) GetLevelState(ctx context.Context, userID uuid.UUID) (*domain.UserLevelState, error) {
	var state domain.UserLevelState
	query := `SELECT user_id, lifetime_points, current_level, level_achieved_at, streak_length, last_activity_day, actions_completed, updated_at
		FROM user_level_state WHERE user_id = $1`

	err := r.db.Get(ctx, &state, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return &domain.UserLevelState{UserID: userID, CurrentLevel: 1}, nil
	}
	if err != nil {
		r.Log.Error("failed to get level state", "error", err, "user_id", userID)
		return nil, fmt.Errorf("failed to get level state: %w", err)
	}

	return &state, nil
}

// ListEntries последние записи леджера пользователя
func (r *Repository) ListEntries(ctx context.Context, userID uuid.UUID, limit int) ([]domain.PointsLedgerEntry, error) {
	var entries []domain.PointsLedgerEntry
	query := `SELECT id, user_id, event_type, points, dedupe_key, occurred_at
		FROM points_ledger WHERE user_id = $1 ORDER BY occurred_at DESC LIMIT $2`

	if err := r.db.Select(ctx, &entries, query, userID, limit); err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}

	return entries, nil
}

// ListUserIDs все пользователи с состоянием уровня (для ночной сверки)
func (r *Repository) ListUserIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	query := `SELECT user_id FROM user_level_state`

	if err := r.db.Select(ctx, &ids, query); err != nil {
		return nil, fmt.Errorf("failed to list user ids: %w", err)
	}

	return ids, nil
}

// SumPoints сумма баллов леджера пользователя
func (r *Repository) SumPoints(ctx context.Context, userID uuid.UUID) (int, error) {
	var sum int
	query := `SELECT COALESCE(SUM(points), 0) FROM points_ledger WHERE user_id = $1`

	if err := r.db.Get(ctx, &sum, query, userID); err != nil {
		return 0, fmt.Errorf("failed to sum ledger points: %w", err)
	}

	return sum, nil
}
