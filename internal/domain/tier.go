package domain

import (
	"time"
)

// TierName название тарифа подписки
type TierName string

const (
	TierAnonymous TierName = "anonymous"
	TierFree      TierName = "free"
	TierPremium   TierName = "premium"
)

// SubscriptionTier статическая конфигурация тарифа
type SubscriptionTier struct {
	Name               TierName
	MaxTimeframeMonths int
	MonthlyCredits     int
	CanSeeAllActions   bool
}

// DefaultTiers тарифная сетка продукта
func DefaultTiers() map[TierName]SubscriptionTier {
	return map[TierName]SubscriptionTier{
		TierAnonymous: {
			Name:               TierAnonymous,
			MaxTimeframeMonths: 3,
			MonthlyCredits:     1,
			CanSeeAllActions:   false,
		},
		TierFree: {
			Name:               TierFree,
			MaxTimeframeMonths: 3,
			MonthlyCredits:     3,
			CanSeeAllActions:   false,
		},
		TierPremium: {
			Name:               TierPremium,
			MaxTimeframeMonths: 12,
			MonthlyCredits:     30,
			CanSeeAllActions:   true,
		},
	}
}

// CreditBalance остаток кредитов генерации за период.
// Version используется для optimistic CAS-обновлений: списание и возврат
// кредита выполняются только если версия не изменилась с момента чтения.
type CreditBalance struct {
	OwnerID   string    `json:"owner_id" db:"owner_id"`
	OwnerType OwnerType `json:"owner_type" db:"owner_type"`
	Tier      TierName  `json:"tier" db:"tier"`
	Remaining int       `json:"remaining" db:"remaining"`
	PeriodKey string    `json:"period_key" db:"period_key"`
	Version   int64     `json:"version" db:"version"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// PeriodKeyFor ключ расчётного периода кредитов (месяц)
func PeriodKeyFor(t time.Time) string {
	return t.UTC().Format("2006-01")
}
