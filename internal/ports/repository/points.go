package repository

import (
	"context"

	"github.com/admin/astro-apps/timeline-api/internal/domain"
	"github.com/admin/astro-apps/timeline-api/internal/ports/persistence"
	"github.com/google/uuid"
)

// IPointsRepo интерфейс леджера баллов и состояния уровня.
// Обработка одного события выполняется целиком внутри WithTransaction:
// блокировка состояния, дедуп-вставка, пересчёт — один атомарный юнит.
type IPointsRepo interface {
	WithTransaction(ctx context.Context, fn func(context.Context, persistence.Transaction) error) error

	// InsertEntryTx вставляет запись леджера; false без ошибки, если dedupe_key уже есть
	InsertEntryTx(ctx context.Context, tx persistence.Transaction, entry *domain.PointsLedgerEntry) (bool, error)
	// GetLevelStateForUpdateTx читает состояние уровня с блокировкой строки
	GetLevelStateForUpdateTx(ctx context.Context, tx persistence.Transaction, userID uuid.UUID) (*domain.UserLevelState, error)
	UpsertLevelStateTx(ctx context.Context, tx persistence.Transaction, state *domain.UserLevelState) error
	SumPointsTx(ctx context.Context, tx persistence.Transaction, userID uuid.UUID) (int, error)
	// CountActionEntriesTx число начисленных действий по конкретному таймлайну
	CountActionEntriesTx(ctx context.Context, tx persistence.Transaction, userID uuid.UUID, timelineID uuid.UUID) (int, error)

	GetLevelState(ctx context.Context, userID uuid.UUID) (*domain.UserLevelState, error)
	ListEntries(ctx context.Context, userID uuid.UUID, limit int) ([]domain.PointsLedgerEntry, error)
	// ListUserIDs все пользователи с состоянием уровня (для ночной сверки)
	ListUserIDs(ctx context.Context) ([]uuid.UUID, error)
	SumPoints(ctx context.Context, userID uuid.UUID) (int, error)
}
