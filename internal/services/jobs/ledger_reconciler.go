package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/admin/astro-apps/timeline-api/internal/ports/persistence"
	"github.com/admin/astro-apps/timeline-api/internal/ports/repository"
	"github.com/admin/astro-apps/timeline-api/internal/ports/service"
	"github.com/google/uuid"
)

const ledgerReconcilerName = "ledger-reconciler"

// LedgerReconciler джоба ночной сверки: lifetime_points каждого пользователя
// должен равняться сумме его записей леджера. Расхождение чинится в пользу
// леджера (он источник истины) и алертится.
type LedgerReconciler struct {
	pointsRepo     repository.IPointsRepo
	alerterService service.IAlerterService
	log            *slog.Logger
}

// NewLedgerReconciler создаёт новую джобу сверки леджера
func NewLedgerReconciler(
	pointsRepo repository.IPointsRepo,
	alerterService service.IAlerterService,
	log *slog.Logger,
) *LedgerReconciler {
	return &LedgerReconciler{
		pointsRepo:     pointsRepo,
		alerterService: alerterService,
		log:            log,
	}
}

func (j *LedgerReconciler) Name() string {
	return ledgerReconcilerName
}

// NextRun каждый день в 03:00 UTC
func (j *LedgerReconciler) NextRun(now time.Time) time.Time {
	nowUTC := now.UTC()

	next := time.Date(nowUTC.Year(), nowUTC.Month(), nowUTC.Day(), 3, 0, 0, 0, time.UTC)
	if next.Before(nowUTC) || next.Equal(nowUTC) {
		next = next.Add(24 * time.Hour)
	}
	return next
}

// Run сверяет всех пользователей с состоянием уровня
func (j *LedgerReconciler) Run(ctx context.Context) error {
	userIDs, err := j.pointsRepo.ListUserIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users for reconciliation: %w", err)
	}

	repaired := 0
	for _, userID := range userIDs {
		fixed, err := j.reconcileUser(ctx, userID)
		if err != nil {
			return err
		}
		if fixed {
			repaired++
		}
	}

	j.log.Info("ledger reconciliation finished",
		"users_checked", len(userIDs),
		"users_repaired", repaired)

	if repaired > 0 && j.alerterService != nil {
		msg := fmt.Sprintf("ledger reconciler repaired %d of %d users: lifetime_points diverged from ledger sum", repaired, len(userIDs))
		if alertErr := j.alerterService.SendAlert(ctx, msg); alertErr != nil {
			j.log.Warn("failed to send reconciliation alert", "error", alertErr)
		}
	}

	return nil
}

// reconcileUser сверяет одного пользователя под блокировкой его состояния
func (j *LedgerReconciler) reconcileUser(ctx context.Context, userID uuid.UUID) (bool, error) {
	repaired := false

	err := j.pointsRepo.WithTransaction(ctx, func(ctx context.Context, tx persistence.Transaction) error {
		state, err := j.pointsRepo.GetLevelStateForUpdateTx(ctx, tx, userID)
		if err != nil {
			return err
		}

		sum, err := j.pointsRepo.SumPointsTx(ctx, tx, userID)
		if err != nil {
			return err
		}

		if state.LifetimePoints == sum {
			return nil
		}

		j.log.Warn("lifetime points diverged from ledger",
			"user_id", userID,
			"state_points", state.LifetimePoints,
			"ledger_sum", sum)

		state.LifetimePoints = sum
		state.UpdatedAt = time.Now().UTC()
		if err := j.pointsRepo.UpsertLevelStateTx(ctx, tx, state); err != nil {
			return err
		}

		repaired = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to reconcile user %s: %w", userID, err)
	}

	return repaired, nil
}
