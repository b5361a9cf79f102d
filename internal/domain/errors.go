package domain

import (
	"errors"
	"fmt"
)

// BusinessError ошибка бизнес-логики, которая уже залогирована в UseCase
type BusinessError struct {
	Err error
}

func (e *BusinessError) Error() string {
	return e.Err.Error()
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func WrapBusinessError(err error) error {
	if err == nil {
		return nil
	}
	return &BusinessError{Err: err}
}

func IsBusinessError(err error) bool {
	var businessErr *BusinessError
	return errors.As(err, &businessErr)
}

var (
	ErrTimelineNotFound = errors.New("timeline not found")
	ErrProfileNotFound  = errors.New("natal profile not found")
)

// InvalidBirthDataError невалидные данные рождения: отклоняется до любых
// внешних вызовов и до списания кредита
type InvalidBirthDataError struct {
	Reason string
}

func (e *InvalidBirthDataError) Error() string {
	return fmt.Sprintf("invalid birth data: %s", e.Reason)
}

// InsufficientCreditsError нет кредитов генерации в текущем периоде
type InsufficientCreditsError struct {
	OwnerID   string
	PeriodKey string
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("no generation credits remaining for period %s", e.PeriodKey)
}

// TimeframeNotAllowedError запрошенный срок превышает максимум тарифа
type TimeframeNotAllowedError struct {
	Requested  int
	MaxAllowed int
	Tier       TierName
}

func (e *TimeframeNotAllowedError) Error() string {
	return fmt.Sprintf("timeframe %d months exceeds %s tier maximum of %d months", e.Requested, e.Tier, e.MaxAllowed)
}

// EphemerisUnavailableError оракул эфемерид недоступен после всех ретраев
type EphemerisUnavailableError struct {
	Err error
}

func (e *EphemerisUnavailableError) Error() string {
	return fmt.Sprintf("ephemeris oracle unavailable: %v", e.Err)
}

func (e *EphemerisUnavailableError) Unwrap() error {
	return e.Err
}

// ActionSynthesisFailedError генерация текста действия не удалась.
// Фатальна для всей генерации: таймлайн не сохраняется, кредит возвращается.
type ActionSynthesisFailedError struct {
	Date string
	Err  error
}

func (e *ActionSynthesisFailedError) Error() string {
	if e.Date != "" {
		return fmt.Sprintf("action synthesis failed for %s: %v", e.Date, e.Err)
	}
	return fmt.Sprintf("action synthesis failed: %v", e.Err)
}

func (e *ActionSynthesisFailedError) Unwrap() error {
	return e.Err
}

// ConcurrentModificationError CAS-обновление не прошло за отведённое число попыток
type ConcurrentModificationError struct {
	Resource string
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("concurrent modification of %s exceeded retry budget", e.Resource)
}
