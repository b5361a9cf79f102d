package creditsRepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"log/slog"

	"github.com/admin/astro-apps/timeline-api/internal/domain"
	"github.com/admin/astro-apps/timeline-api/internal/ports/persistence"
	ports "github.com/admin/astro-apps/timeline-api/internal/ports/repository"
)

type Repository struct {
	db  persistence.Persistence
	Log *slog.Logger
}

// New создаёт новый репозиторий кредитов генерации
func New(db persistence.Persistence, log *slog.Logger) ports.ICreditRepo {
	return &Repository{
		db:  db,
		Log: log,
	}
}

// Get получает баланс владельца; sql.ErrNoRows пробрасывается как есть,
// вызывающая сторона создаёт баланс лениво
func (r *Repository) Get(ctx context.Context, ownerID string) (*domain.CreditBalance, error) {
	var balance domain.CreditBalance
	query := `SELECT owner_id, owner_type, tier, remaining, period_key, version, updated_at
		FROM credit_balances WHERE owner_id = $1`

	err := r.db.Get(ctx, &balance, query, ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		r.Log.Error("failed to get credit balance", "error", err, "owner_id", ownerID)
		return nil, fmt.Errorf("failed to get credit balance: %w", err)
	}

	return &balance, nil
}

// Insert создаёт баланс владельца
func (r *Repository) Insert(ctx context.Context, balance *domain.CreditBalance) error {
	query := `INSERT INTO credit_balances (owner_id, owner_type, tier, remaining, period_key, version, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	err := r.db.Exec(ctx, query,
		balance.OwnerID,
		balance.OwnerType,
		balance.Tier,
		balance.Remaining,
		balance.PeriodKey,
		balance.Version,
		balance.UpdatedAt)
	if err != nil {
		r.Log.Error("failed to insert credit balance", "error", err, "owner_id", balance.OwnerID)
		return fmt.Errorf("failed to insert credit balance: %w", err)
	}

	return nil
}

// UpdateCAS применяет обновление баланса только если версия строки
// не изменилась с момента чтения. Возвращает число затронутых строк:
// 0 = проигранная гонка, вызывающая сторона перечитывает и повторяет.
func (r *Repository) UpdateCAS(ctx context.Context, balance *domain.CreditBalance, expectedVersion int64) (int64, error) {
	query := `UPDATE credit_balances
		SET tier = $1, remaining = $2, period_key = $3, version = version + 1, updated_at = $4
		WHERE owner_id = $5 AND version = $6`

	affected, err := r.db.ExecWithResult(ctx, query,
		balance.Tier,
		balance.Remaining,
		balance.PeriodKey,
		balance.UpdatedAt,
		balance.OwnerID,
		expectedVersion)
	if err != nil {
		r.Log.Error("failed to update credit balance",
			"error", err,
			"owner_id", balance.OwnerID,
			"expected_version", expectedVersion)
		return 0, fmt.Errorf("failed to update credit balance: %w", err)
	}

	return affected, nil
}

// DeleteStaleAnonymous удаляет анонимные балансы, не обновлявшиеся с указанного момента
func (r *Repository) DeleteStaleAnonymous(ctx context.Context, before time.Time) (int64, error) {
	query := `DELETE FROM credit_balances WHERE owner_type = $1 AND updated_at < $2`

	affected, err := r.db.ExecWithResult(ctx, query, domain.OwnerTypeAnonymous, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale anonymous balances: %w", err)
	}

	return affected, nil
}
