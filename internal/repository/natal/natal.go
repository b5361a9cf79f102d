package natalRepo

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

type natalColumns struct {
	TableName        string
	ID               string
	UserID           string
	BirthInstant     string
	Latitude         string
	Longitude        string
	PlanetLongitudes string
	CreatedAt        string
	UpdatedAt        string
}

type Repository struct {
	db      persistence.Persistence
	Log     *slog.Logger
	columns natalColumns
}

// New создаёт новый репозиторий натальных профилей
func New(db persistence.Persistence, log *slog.Logger) ports.INatalRepo {
	cols := natalColumns{
		TableName:        "natal_profiles",
		ID:               "id",
		UserID:           "user_id",
		BirthInstant:     "birth_instant",
		Latitude:         "latitude",
		Longitude:        "longitude",
		PlanetLongitudes: "planet_longitudes",
		CreatedAt:        "created_at",
		UpdatedAt:        "updated_at",
	}
	return &Repository{
		db:      db,
		Log:     log,
		columns: cols,
	}
}

// allColumns возвращает строку со всеми колонками (8 колонок)
func (r *Repository) allColumns() string {
	return fmt.Sprintf("%s, %s, %s, %s, %s, %s, %s, %s",
		r.columns.ID,
		r.columns.UserID,
		r.columns.BirthInstant,
		r.columns.Latitude,
		r.columns.Longitude,
		r.columns.PlanetLongitudes,
		r.columns.CreatedAt,
		r.columns.UpdatedAt)
}

// Upsert создаёт профиль или пересчитывает существующий при изменении данных рождения.
// Идемпотентен на одинаковом входе.
func (r *Repository) Upsert(ctx context.Context, profile *domain.NatalProfile) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (%s) DO UPDATE SET
			%s = EXCLUDED.%s,
			%s = EXCLUDED.%s,
			%s = EXCLUDED.%s,
			%s = EXCLUDED.%s,
			%s = EXCLUDED.%s`,
		r.columns.TableName,
		r.allColumns(),
		r.columns.UserID,
		r.columns.BirthInstant, r.columns.BirthInstant,
		r.columns.Latitude, r.columns.Latitude,
		r.columns.Longitude, r.columns.Longitude,
		r.columns.PlanetLongitudes, r.columns.PlanetLongitudes,
		r.columns.UpdatedAt, r.columns.UpdatedAt)

	err := r.db.Exec(ctx, query,
		profile.ID,
		profile.UserID,
		profile.BirthInstant,
		profile.Latitude,
		profile.Longitude,
		profile.PlanetLongitudes,
		profile.CreatedAt,
		profile.UpdatedAt)
	if err != nil {
		r.Log.Error("failed to upsert natal profile",
			"error", err,
			"user_id", profile.UserID)
		return fmt.Errorf("failed to upsert natal profile: %w", err)
	}

	r.Log.Debug("natal profile upserted",
		"user_id", profile.UserID,
		"birth_instant", profile.BirthInstant)
	return nil
}

// GetByUserID получает профиль пользователя
func (r *Repository) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.NatalProfile, error) {
	var profile domain.NatalProfile
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`,
		r.allColumns(),
		r.columns.TableName,
		r.columns.UserID)

	err := r.db.Get(ctx, &profile, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrProfileNotFound
	}
	if err != nil {
		r.Log.Error("failed to get natal profile",
			"error", err,
			"user_id", userID)
		return nil, fmt.Errorf("failed to get natal profile: %w", err)
	}

	return &profile, nil
}
