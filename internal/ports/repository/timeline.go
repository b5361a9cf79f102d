package repository

import (
	"context"

	"github.com/admin/astro-apps/timeline-api/internal/domain"
	"github.com/google/uuid"
)

// ITimelineRepo интерфейс для работы с таймлайнами
type ITimelineRepo interface {
	Create(ctx context.Context, timeline *domain.Timeline) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Timeline, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Timeline, error)
	CountByOwner(ctx context.Context, ownerID string) (int64, error)
	Delete(ctx context.Context, id uuid.UUID, ownerID string) error
}
