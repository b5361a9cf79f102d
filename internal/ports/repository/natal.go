package repository

import (
	"context"

	"github.com/admin/astro-apps/timeline-api/internal/domain"
	"github.com/google/uuid"
)

// INatalRepo интерфейс для работы с натальными профилями
type INatalRepo interface {
	Upsert(ctx context.Context, profile *domain.NatalProfile) error
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.NatalProfile, error)
}
