package timeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/admin/astro-apps/timeline-api/internal/domain"
)

const creditCASAttempts = 5

// checkTimeframe проверяет срок таймлайна против тарифа владельца
func (s *Service) checkTimeframe(tier domain.TierName, months int) error {
	if !domain.IsValidTimeframe(months) {
		return domain.WrapBusinessError(fmt.Errorf("invalid timeframe: %d months", months))
	}

	t, ok := s.Tiers[tier]
	if !ok {
		return domain.WrapBusinessError(fmt.Errorf("unknown subscription tier: %s", tier))
	}
	if months > t.MaxTimeframeMonths {
		return &domain.TimeframeNotAllowedError{
			Requested:  months,
			MaxAllowed: t.MaxTimeframeMonths,
			Tier:       tier,
		}
	}
	return nil
}

// debitCredit атомарно списывает один кредит генерации через optimistic CAS.
// Баланс создаётся лениво при первом обращении; при смене расчётного периода
// остаток обновляется на месячную квоту тарифа прямо в этой же записи.
// Проигранная CAS-гонка перечитывает баланс и повторяет, максимум
// creditCASAttempts раз.
func (s *Service) debitCredit(ctx context.Context, ownerID string, ownerType domain.OwnerType, tier domain.TierName) error {
	now := s.now().UTC()
	period := domain.PeriodKeyFor(now)
	quota := s.Tiers[tier].MonthlyCredits

	for attempt := 1; attempt <= creditCASAttempts; attempt++ {
		balance, err := s.CreditRepo.Get(ctx, ownerID)
		if errors.Is(err, sql.ErrNoRows) {
			balance = &domain.CreditBalance{
				OwnerID:   ownerID,
				OwnerType: ownerType,
				Tier:      tier,
				Remaining: quota,
				PeriodKey: period,
				Version:   1,
				UpdatedAt: now,
			}
			if insertErr := s.CreditRepo.Insert(ctx, balance); insertErr != nil {
				// гонка на создании: другой запрос успел первым, перечитываем
				continue
			}
		} else if err != nil {
			return err
		}

		expectedVersion := balance.Version

		// ленивый переход на новый период: квота восстанавливается
		if balance.PeriodKey != period {
			balance.PeriodKey = period
			balance.Remaining = quota
		}
		// апгрейд/даунгрейд тарифа подхватывается при следующем списании
		balance.Tier = tier

		if balance.Remaining <= 0 {
			return &domain.InsufficientCreditsError{OwnerID: ownerID, PeriodKey: period}
		}

		balance.Remaining--
		balance.UpdatedAt = now

		affected, err := s.CreditRepo.UpdateCAS(ctx, balance, expectedVersion)
		if err != nil {
			return err
		}
		if affected > 0 {
			s.Log.Debug("generation credit debited",
				"owner_id", ownerID,
				"remaining", balance.Remaining,
				"period", period)
			return nil
		}

		s.Log.Debug("credit debit lost CAS race, retrying",
			"owner_id", ownerID,
			"attempt", attempt)
	}

	return &domain.ConcurrentModificationError{Resource: "credit balance"}
}

// refundCredit компенсирующий возврат кредита после неудачной генерации.
// Best-effort с тем же CAS-циклом; неудача возврата логируется как ошибка,
// но исходная причина отказа генерации для вызывающей стороны важнее.
// Возврат через границу расчётного периода не выполняется: списали из
// прошлой квоты, а пополнили бы свежую.
func (s *Service) refundCredit(ctx context.Context, ownerID string) {
	now := s.now().UTC()
	period := domain.PeriodKeyFor(now)

	for attempt := 1; attempt <= creditCASAttempts; attempt++ {
		balance, err := s.CreditRepo.Get(ctx, ownerID)
		if err != nil {
			s.Log.Error("failed to read balance for credit refund", "error", err, "owner_id", ownerID)
			return
		}

		if balance.PeriodKey != period {
			s.Log.Warn("credit refund skipped, period rolled over",
				"owner_id", ownerID,
				"debited_period", balance.PeriodKey,
				"current_period", period)
			return
		}

		expectedVersion := balance.Version
		balance.Remaining++
		balance.UpdatedAt = now

		affected, err := s.CreditRepo.UpdateCAS(ctx, balance, expectedVersion)
		if err != nil {
			s.Log.Error("failed to refund credit", "error", err, "owner_id", ownerID)
			return
		}
		if affected > 0 {
			s.Log.Info("generation credit refunded", "owner_id", ownerID)
			return
		}
	}

	s.Log.Error("credit refund exceeded retry budget", "owner_id", ownerID)
}
