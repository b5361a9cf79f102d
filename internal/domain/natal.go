package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PlanetLongitudes натальные долготы планет (JSONB) с поддержкой sql.Scanner
type PlanetLongitudes map[Planet]float64

// Scan реализует sql.Scanner для сканирования JSONB из БД
func (pl *PlanetLongitudes) Scan(value interface{}) error {
	if value == nil {
		*pl = make(PlanetLongitudes)
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("unsupported type for planet longitudes: %T", value)
	}

	if len(bytes) == 0 {
		*pl = make(PlanetLongitudes)
		return nil
	}

	return json.Unmarshal(bytes, pl)
}

// Value реализует driver.Valuer для сохранения в БД
func (pl PlanetLongitudes) Value() (driver.Value, error) {
	if len(pl) == 0 {
		return "{}", nil
	}
	return json.Marshal(pl)
}

// NatalProfile зафиксированные натальные позиции пользователя.
// Создаётся один раз при первом вводе данных рождения; пересчитывается
// только при редактировании этих данных.
type NatalProfile struct {
	ID               uuid.UUID        `json:"id" db:"id"`
	UserID           uuid.UUID        `json:"user_id" db:"user_id"`
	BirthInstant     time.Time        `json:"birth_instant" db:"birth_instant"` // UTC
	Latitude         float64          `json:"latitude" db:"latitude"`
	Longitude        float64          `json:"longitude" db:"longitude"`
	PlanetLongitudes PlanetLongitudes `json:"planet_longitudes" db:"planet_longitudes"`
	CreatedAt        time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at" db:"updated_at"`
}

// BirthData входные данные рождения до резолва в профиль
type BirthData struct {
	Date      string  // формат 2006-01-02
	Time      string  // формат 15:04, пустая строка = 12:00 местного
	Timezone  string  // IANA, например "Europe/Berlin"
	Latitude  float64
	Longitude float64
}

const defaultBirthTime = "12:00"

// ResolveInstant парсит дату/время рождения и переводит в UTC по таймзоне места.
// Время по умолчанию 12:00 местного, если не указано.
func (b BirthData) ResolveInstant() (time.Time, error) {
	if b.Latitude < -90 || b.Latitude > 90 {
		return time.Time{}, &InvalidBirthDataError{Reason: fmt.Sprintf("latitude %v out of range [-90, 90]", b.Latitude)}
	}
	if b.Longitude < -180 || b.Longitude > 180 {
		return time.Time{}, &InvalidBirthDataError{Reason: fmt.Sprintf("longitude %v out of range [-180, 180]", b.Longitude)}
	}

	loc := time.UTC
	if b.Timezone != "" {
		var err error
		loc, err = time.LoadLocation(b.Timezone)
		if err != nil {
			return time.Time{}, &InvalidBirthDataError{Reason: fmt.Sprintf("unknown timezone %q", b.Timezone)}
		}
	}

	birthTime := b.Time
	if birthTime == "" {
		birthTime = defaultBirthTime
	}

	instant, err := time.ParseInLocation("2006-01-02 15:04", b.Date+" "+birthTime, loc)
	if err != nil {
		return time.Time{}, &InvalidBirthDataError{Reason: fmt.Sprintf("unparseable birth date/time %q %q", b.Date, birthTime)}
	}

	return instant.UTC(), nil
}
