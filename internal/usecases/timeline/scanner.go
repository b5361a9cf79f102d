package timeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/admin/astro-apps/timeline-api/internal/domain"
)

const (
	positionsCacheTTL       = 7 * 24 * time.Hour
	positionsCacheKeyPrefix = "ephemeris:positions:"
)

// scanTransits сканирует окно по дням и возвращает все совпадения аспектов
// между транзитными и натальными планетами. Каждый день оценивается в 12:00 UTC.
// Результат упорядочен по дате, внутри дня — по возрастанию отклонения
// от точного угла, поэтому сканирование детерминировано при одинаковом входе.
func (s *Service) scanTransits(ctx context.Context, natal domain.PlanetLongitudes, start, end time.Time) ([]domain.TransitEvent, error) {
	var events []domain.TransitEvent
	planets := domain.AllPlanets()
	specs := domain.AspectSpecs()

	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		noon := time.Date(day.Year(), day.Month(), day.Day(), 12, 0, 0, 0, time.UTC)

		positions, err := s.positionsForDay(ctx, planets, noon)
		if err != nil {
			return nil, &domain.EphemerisUnavailableError{Err: err}
		}

		for _, transiting := range planets {
			transitLon, ok := positions[transiting]
			if !ok {
				continue
			}
			for _, natalPlanet := range planets {
				natalLon, ok := natal[natalPlanet]
				if !ok {
					continue
				}

				separation := domain.AngularSeparation(transitLon, natalLon)
				for _, spec := range specs {
					exactness := separation - spec.Angle
					if exactness < 0 {
						exactness = -exactness
					}
					if exactness <= spec.Orb {
						events = append(events, domain.TransitEvent{
							Date:       noon,
							Transiting: transiting,
							Natal:      natalPlanet,
							Aspect:     spec.Type,
							Exactness:  exactness,
						})
					}
				}
			}
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Date.Equal(events[j].Date) {
			return events[i].Exactness < events[j].Exactness
		}
		return events[i].Date.Before(events[j].Date)
	})

	s.Log.Debug("transit scan finished",
		"start", start.Format("2006-01-02"),
		"end", end.Format("2006-01-02"),
		"events", len(events))
	return events, nil
}

// positionsForDay позиции планет на полдень дня; дневной срез кэшируется,
// так как одинаков для всех пользователей
func (s *Service) positionsForDay(ctx context.Context, planets []domain.Planet, noon time.Time) (map[domain.Planet]float64, error) {
	cacheKey := positionsCacheKeyPrefix + noon.Format("2006-01-02")

	if s.Cache != nil {
		if raw, err := s.Cache.Get(ctx, cacheKey); err == nil && raw != "" {
			var positions map[domain.Planet]float64
			if err := json.Unmarshal([]byte(raw), &positions); err == nil && len(positions) == len(planets) {
				return positions, nil
			}
		}
	}

	var positions map[domain.Planet]float64
	err := s.RetryPolicy.Do(ctx, func(ctx context.Context) error {
		var callErr error
		positions, callErr = s.Ephemeris.GetLongitudes(ctx, planets, noon)
		return callErr
	}, retryableEphemeris)
	if err != nil {
		return nil, fmt.Errorf("failed to get positions for %s: %w", noon.Format("2006-01-02"), err)
	}

	if s.Cache != nil {
		if raw, err := json.Marshal(positions); err == nil {
			if err := s.Cache.Set(ctx, cacheKey, string(raw), positionsCacheTTL); err != nil {
				s.Log.Warn("failed to cache planet positions", "error", err, "day", noon.Format("2006-01-02"))
			}
		}
	}

	return positions, nil
}
