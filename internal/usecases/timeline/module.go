package timeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/admin/astro-apps/timeline-api/internal/domain"
	"github.com/admin/astro-apps/timeline-api/internal/pkg/retry"
	"github.com/admin/astro-apps/timeline-api/internal/ports/cache"
	"github.com/admin/astro-apps/timeline-api/internal/ports/kafka"
	"github.com/admin/astro-apps/timeline-api/internal/ports/repository"
	"github.com/admin/astro-apps/timeline-api/internal/ports/service"
)

// RewardSink приёмник reward-событий (Points Engine).
// Узкий интерфейс, чтобы не тянуть сюда весь points usecase.
type RewardSink interface {
	Process(ctx context.Context, event domain.RewardEvent) (*domain.RewardOutcome, error)
}

// Config настройки генерации таймлайна.
// Веса аспектов конфигурируемые: точного правила в продукте нет,
// порядок conjunction < trine < sextile < square зафиксирован как дефолт.
type Config struct {
	ActionsPerMonth   int     `envconfig:"ACTIONS_PER_MONTH" default:"4"`
	WeightConjunction float64 `envconfig:"WEIGHT_CONJUNCTION" default:"0"`
	WeightTrine       float64 `envconfig:"WEIGHT_TRINE" default:"0.5"`
	WeightSextile     float64 `envconfig:"WEIGHT_SEXTILE" default:"1"`
	WeightSquare      float64 `envconfig:"WEIGHT_SQUARE" default:"2"`
}

// AspectWeights веса аспектов для ранжирования (меньше = благоприятнее)
func (c *Config) AspectWeights() map[domain.AspectType]float64 {
	if c == nil {
		c = &Config{ActionsPerMonth: 4, WeightTrine: 0.5, WeightSextile: 1, WeightSquare: 2}
	}
	return map[domain.AspectType]float64{
		domain.AspectConjunction: c.WeightConjunction,
		domain.AspectTrine:       c.WeightTrine,
		domain.AspectSextile:     c.WeightSextile,
		domain.AspectSquare:      c.WeightSquare,
	}
}

// Service бизнес-логика генерации таймлайнов
type Service struct {
	NatalRepo    repository.INatalRepo
	TimelineRepo repository.ITimelineRepo
	CreditRepo   repository.ICreditRepo
	Ephemeris    service.IEphemerisService
	Synthesizer  service.ISynthesizerService
	Cache        cache.Cache          // опционален
	Producer     kafka.IKafkaProducer // опционален
	Rewards      RewardSink           // опционален
	Cfg          *Config
	Tiers        map[domain.TierName]domain.SubscriptionTier
	RetryPolicy  retry.Policy
	Log          *slog.Logger

	now func() time.Time
}

// New создаёт новый сервис генерации таймлайнов
func New(
	natalRepo repository.INatalRepo,
	timelineRepo repository.ITimelineRepo,
	creditRepo repository.ICreditRepo,
	ephemeris service.IEphemerisService,
	synthesizer service.ISynthesizerService,
	cacheClient cache.Cache,
	producer kafka.IKafkaProducer,
	rewards RewardSink,
	cfg *Config,
	log *slog.Logger,
) *Service {
	if cfg == nil {
		cfg = &Config{ActionsPerMonth: 4, WeightTrine: 0.5, WeightSextile: 1, WeightSquare: 2}
	}
	if cfg.ActionsPerMonth <= 0 {
		cfg.ActionsPerMonth = 4
	}

	return &Service{
		NatalRepo:    natalRepo,
		TimelineRepo: timelineRepo,
		CreditRepo:   creditRepo,
		Ephemeris:    ephemeris,
		Synthesizer:  synthesizer,
		Cache:        cacheClient,
		Producer:     producer,
		Rewards:      rewards,
		Cfg:          cfg,
		Tiers:        domain.DefaultTiers(),
		RetryPolicy:  retry.DefaultPolicy(),
		Log:          log,
		now:          time.Now,
	}
}

// WithClock подменяет источник времени (для тестов)
func (s *Service) WithClock(now func() time.Time) {
	s.now = now
}
