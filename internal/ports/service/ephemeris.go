package service

import (
	"context"
	"time"

	"github.com/admin/astro-apps/timeline-api/internal/domain"
)

// IEphemerisService оракул эфемерид: эклиптическая долгота планеты в момент времени.
// Чистая функция времени, детерминированная и без побочных эффектов.
type IEphemerisService interface {
	GetLongitude(ctx context.Context, planet domain.Planet, instant time.Time) (float64, error)
	GetLongitudes(ctx context.Context, planets []domain.Planet, instant time.Time) (map[domain.Planet]float64, error)
}
