package timeline

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/admin/astro-apps/timeline-api/internal/domain"
	"github.com/google/uuid"
)

const (
	natalCacheTTL       = 24 * time.Hour
	natalCacheKeyPrefix = "natal:"
)

// ResolveProfile вычисляет и фиксирует натальный профиль пользователя.
// Идемпотентен: повторный вызов с теми же данными рождения перезаписывает
// профиль теми же позициями. Вызывается при первом вводе данных рождения
// и при их редактировании.
func (s *Service) ResolveProfile(ctx context.Context, userID uuid.UUID, birth domain.BirthData) (*domain.NatalProfile, error) {
	longitudes, instant, err := s.computeNatalLongitudes(ctx, birth)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	profile := &domain.NatalProfile{
		ID:               uuid.New(),
		UserID:           userID,
		BirthInstant:     instant,
		Latitude:         birth.Latitude,
		Longitude:        birth.Longitude,
		PlanetLongitudes: longitudes,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.NatalRepo.Upsert(ctx, profile); err != nil {
		return nil, err
	}

	s.cacheProfile(ctx, profile)

	s.Log.Info("natal profile resolved",
		"user_id", userID,
		"birth_instant", instant)
	return profile, nil
}

// GetProfile получает профиль пользователя, сперва из кэша
func (s *Service) GetProfile(ctx context.Context, userID uuid.UUID) (*domain.NatalProfile, error) {
	if s.Cache != nil {
		if raw, err := s.Cache.Get(ctx, natalCacheKeyPrefix+userID.String()); err == nil && raw != "" {
			var profile domain.NatalProfile
			if err := json.Unmarshal([]byte(raw), &profile); err == nil {
				return &profile, nil
			}
		}
	}

	profile, err := s.NatalRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	s.cacheProfile(ctx, profile)
	return profile, nil
}

// computeNatalLongitudes валидирует данные рождения и запрашивает у оракула
// позиции всех десяти планет на момент рождения
func (s *Service) computeNatalLongitudes(ctx context.Context, birth domain.BirthData) (domain.PlanetLongitudes, time.Time, error) {
	instant, err := birth.ResolveInstant()
	if err != nil {
		return nil, time.Time{}, err
	}

	var positions map[domain.Planet]float64
	err = s.RetryPolicy.Do(ctx, func(ctx context.Context) error {
		var callErr error
		positions, callErr = s.Ephemeris.GetLongitudes(ctx, domain.AllPlanets(), instant)
		return callErr
	}, retryableEphemeris)
	if err != nil {
		s.Log.Error("failed to compute natal positions", "error", err, "birth_instant", instant)
		return nil, time.Time{}, &domain.EphemerisUnavailableError{Err: err}
	}

	return positions, instant, nil
}

// cacheProfile кладёт профиль в кэш best-effort: промах кэша не ошибка
func (s *Service) cacheProfile(ctx context.Context, profile *domain.NatalProfile) {
	if s.Cache == nil {
		return
	}

	raw, err := json.Marshal(profile)
	if err != nil {
		return
	}
	if err := s.Cache.Set(ctx, natalCacheKeyPrefix+profile.UserID.String(), string(raw), natalCacheTTL); err != nil {
		s.Log.Warn("failed to cache natal profile", "error", err, "user_id", profile.UserID)
	}
}

// retryableEphemeris все ошибки оракула считаются транзиентными:
// валидация входа происходит до вызова
func retryableEphemeris(err error) bool {
	if err == nil {
		return false
	}
	var invalid *domain.InvalidBirthDataError
	return !errors.As(err, &invalid)
}
