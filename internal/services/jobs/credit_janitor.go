package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/admin/astro-apps/timeline-api/internal/ports/repository"
)

const creditJanitorName = "credit-janitor"

// staleAnonymousAge анонимные балансы без активности дольше этого срока
// считаются брошенными
const staleAnonymousAge = 90 * 24 * time.Hour

// CreditJanitor джоба очистки брошенных анонимных балансов кредитов.
// Анонимный fingerprint без активности три месяца больше не вернётся,
// его баланс просто занимает место.
type CreditJanitor struct {
	creditRepo repository.ICreditRepo
	log        *slog.Logger
}

// NewCreditJanitor создаёт новую джобу очистки анонимных балансов
func NewCreditJanitor(creditRepo repository.ICreditRepo, log *slog.Logger) *CreditJanitor {
	return &CreditJanitor{
		creditRepo: creditRepo,
		log:        log,
	}
}

func (j *CreditJanitor) Name() string {
	return creditJanitorName
}

// NextRun каждый день в 04:00 UTC
func (j *CreditJanitor) NextRun(now time.Time) time.Time {
	nowUTC := now.UTC()

	next := time.Date(nowUTC.Year(), nowUTC.Month(), nowUTC.Day(), 4, 0, 0, 0, time.UTC)
	if next.Before(nowUTC) || next.Equal(nowUTC) {
		next = next.Add(24 * time.Hour)
	}
	return next
}

// Run удаляет устаревшие анонимные балансы
func (j *CreditJanitor) Run(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-staleAnonymousAge)

	deleted, err := j.creditRepo.DeleteStaleAnonymous(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to clean stale anonymous balances: %w", err)
	}

	j.log.Info("stale anonymous balances cleaned",
		"deleted", deleted,
		"cutoff", cutoff.Format("2006-01-02"))
	return nil
}
