package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TransitEvent совпадение аспекта между транзитной и натальной планетой.
// Производная сущность: живёт только внутри одного сканирования,
// в БД попадает лишь выбранное подмножество внутри Timeline.
type TransitEvent struct {
	Date       time.Time  `json:"date"`
	Transiting Planet     `json:"transiting"`
	Natal      Planet     `json:"natal"`
	Aspect     AspectType `json:"aspect"`
	Exactness  float64    `json:"exactness"` // градусы отклонения от точного угла, 0 = точный
}

// Summary человекочитаемое описание транзита
func (e TransitEvent) Summary() string {
	return fmt.Sprintf("Transiting %s %s natal %s", e.Transiting, e.Aspect, e.Natal)
}

// ActionSlot одно действие таймлайна, привязанное к благоприятной дате
type ActionSlot struct {
	Date           time.Time `json:"date"`
	TransitSummary string    `json:"transit_summary"`
	ActionText     string    `json:"action_text"`
	StrategyText   *string   `json:"strategy_text,omitempty"`
	ResourceLinks  []string  `json:"resource_links,omitempty"`
}

// ActionSlots слайс действий (JSONB) с поддержкой sql.Scanner
type ActionSlots []ActionSlot

func (s *ActionSlots) Scan(value interface{}) error {
	if value == nil {
		*s = ActionSlots{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("unsupported type for action slots: %T", value)
	}

	if len(bytes) == 0 {
		*s = ActionSlots{}
		return nil
	}

	return json.Unmarshal(bytes, s)
}

func (s ActionSlots) Value() (driver.Value, error) {
	if len(s) == 0 {
		return "[]", nil
	}
	return json.Marshal(s)
}

// StringList слайс строк (JSONB) с поддержкой sql.Scanner
type StringList []string

func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = StringList{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("unsupported type for string list: %T", value)
	}

	if len(bytes) == 0 {
		*l = StringList{}
		return nil
	}

	return json.Unmarshal(bytes, l)
}

func (l StringList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return "[]", nil
	}
	return json.Marshal(l)
}

// OwnerType тип владельца таймлайна
type OwnerType string

const (
	OwnerTypeUser      OwnerType = "user"
	OwnerTypeAnonymous OwnerType = "anonymous"
)

// ValidTimeframes допустимые сроки таймлайна в месяцах
var ValidTimeframes = []int{1, 3, 6, 12}

func IsValidTimeframe(months int) bool {
	for _, m := range ValidTimeframes {
		if m == months {
			return true
		}
	}
	return false
}

// MaxStoredAffirmations максимум аффирмаций, сохраняемых в таймлайне
const MaxStoredAffirmations = 30

// Timeline персонализированная последовательность действий под цель пользователя,
// привязанная к благоприятным транзитным датам. Иммутабельна после создания,
// удаляется только явным запросом владельца.
type Timeline struct {
	ID              uuid.UUID   `json:"id" db:"id"`
	OwnerID         string      `json:"owner_id" db:"owner_id"` // UUID пользователя или анонимный fingerprint
	OwnerType       OwnerType   `json:"owner_type" db:"owner_type"`
	OutcomeGoal     string      `json:"outcome_goal" db:"outcome_goal"`
	Context         string      `json:"context" db:"context"`
	Approach        string      `json:"approach" db:"approach"`
	TimeframeMonths int         `json:"timeframe_months" db:"timeframe_months"`
	Actions         ActionSlots `json:"actions" db:"actions"`
	Affirmations    StringList  `json:"affirmations" db:"affirmations"`
	CreditsUsed     int         `json:"credits_used" db:"credits_used"`
	CreatedAt       time.Time   `json:"created_at" db:"created_at"`
}

// AffirmationForDay аффирмация дня: чистая функция от (createdAt, today),
// ротация по кругу без какого-либо таймера
func (t *Timeline) AffirmationForDay(today time.Time) string {
	if len(t.Affirmations) == 0 {
		return ""
	}
	days := int(today.Sub(t.CreatedAt).Hours() / 24)
	if days < 0 {
		days = 0
	}
	return t.Affirmations[days%len(t.Affirmations)]
}

// DegenerateTimelineWarning найдено меньше благоприятных дат, чем запрошено.
// Не ошибка: таймлайн создаётся, но вызывающая сторона должна показать предупреждение.
type DegenerateTimelineWarning struct {
	Requested int `json:"requested"`
	Selected  int `json:"selected"`
}

func (w *DegenerateTimelineWarning) Message() string {
	return fmt.Sprintf("only %d of %d favorable dates found in the requested timeframe", w.Selected, w.Requested)
}
