package repository

import (
	"context"
	"time"

	"github.com/admin/astro-apps/timeline-api/internal/domain"
)

// ICreditRepo интерфейс для работы с кредитами генерации.
// Update — optimistic CAS: запись применяется только если version
// не изменилась с момента чтения (иначе 0 затронутых строк).
type ICreditRepo interface {
	Get(ctx context.Context, ownerID string) (*domain.CreditBalance, error)
	Insert(ctx context.Context, balance *domain.CreditBalance) error
	UpdateCAS(ctx context.Context, balance *domain.CreditBalance, expectedVersion int64) (int64, error)
	DeleteStaleAnonymous(ctx context.Context, before time.Time) (int64, error)
}
