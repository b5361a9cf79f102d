package points

import (
	"log/slog"
	"time"

	"github.com/admin/astro-apps/timeline-api/internal/ports/kafka"
	"github.com/admin/astro-apps/timeline-api/internal/ports/repository"
)

// Service движок баллов и уровней: единственная точка записи в леджер
type Service struct {
	Repo         repository.IPointsRepo
	TimelineRepo repository.ITimelineRepo
	Producer     kafka.IKafkaProducer // опционален
	Log          *slog.Logger

	now func() time.Time
}

// New создаёт новый движок баллов
func New(
	repo repository.IPointsRepo,
	timelineRepo repository.ITimelineRepo,
	producer kafka.IKafkaProducer,
	log *slog.Logger,
) *Service {
	return &Service{
		Repo:         repo,
		TimelineRepo: timelineRepo,
		Producer:     producer,
		Log:          log,
		now:          time.Now,
	}
}

// WithClock подменяет источник времени (для тестов)
func (s *Service) WithClock(now func() time.Time) {
	s.now = now
}

// Now текущее время по часам сервиса
func (s *Service) Now() time.Time {
	return s.now().UTC()
}
