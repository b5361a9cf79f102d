package app

import (
	"context"
	"fmt"
	"net/http"

	server "github.com/admin/astro-apps/timeline-api/internal/adapters/primary/http"
	healthcheckController "github.com/admin/astro-apps/timeline-api/internal/adapters/primary/http/controllers/healthcheck"
	pointsController "github.com/admin/astro-apps/timeline-api/internal/adapters/primary/http/controllers/points"
	timelineController "github.com/admin/astro-apps/timeline-api/internal/adapters/primary/http/controllers/timeline"
	kafkaConsumerAdapter "github.com/admin/astro-apps/timeline-api/internal/adapters/primary/kafka"
	kafkaHandlers "github.com/admin/astro-apps/timeline-api/internal/adapters/primary/kafka/handlers"
	alerterAdapter "github.com/admin/astro-apps/timeline-api/internal/adapters/secondary/alerter"
	ephemerisAdapter "github.com/admin/astro-apps/timeline-api/internal/adapters/secondary/ephemeris"
	kafkaAdapter "github.com/admin/astro-apps/timeline-api/internal/adapters/secondary/kafka"
	"github.com/admin/astro-apps/timeline-api/internal/adapters/secondary/storage/pg"
	redisAdapter "github.com/admin/astro-apps/timeline-api/internal/adapters/secondary/storage/redis"
	synthesizerAdapter "github.com/admin/astro-apps/timeline-api/internal/adapters/secondary/synthesizer"
	"github.com/admin/astro-apps/timeline-api/internal/ports/cache"
	kafkaPorts "github.com/admin/astro-apps/timeline-api/internal/ports/kafka"
	"github.com/admin/astro-apps/timeline-api/internal/ports/repository"
	"github.com/admin/astro-apps/timeline-api/internal/ports/service"
	creditsRepo "github.com/admin/astro-apps/timeline-api/internal/repository/credits"
	natalRepo "github.com/admin/astro-apps/timeline-api/internal/repository/natal"
	pointsRepo "github.com/admin/astro-apps/timeline-api/internal/repository/points"
	timelineRepo "github.com/admin/astro-apps/timeline-api/internal/repository/timeline"
	jobScheduler "github.com/admin/astro-apps/timeline-api/internal/services/jobs"
	pointsUsecase "github.com/admin/astro-apps/timeline-api/internal/usecases/points"
	timelineUsecase "github.com/admin/astro-apps/timeline-api/internal/usecases/timeline"
	"github.com/jmoiron/sqlx"
)

type Dependencies struct {
	DB            *sqlx.DB
	HTTPServer    *http.Server
	KafkaProducer *kafkaAdapter.Producer
	KafkaConsumer *kafkaConsumerAdapter.Consumer
	Cache         cache.Cache
	JobScheduler  *jobScheduler.Scheduler
}

// initDependencies инициализирует все зависимости приложения
func (a *App) initDependencies(ctx context.Context) (*Dependencies, error) {
	db, err := a.initPostgres()
	if err != nil {
		return nil, fmt.Errorf("failed to init postgres: %w", err)
	}

	repos := a.initRepositories(db)
	cacheClient := a.initCache()
	alerter := a.initAlerter()

	producer, err := a.initKafkaProducer()
	if err != nil {
		return nil, fmt.Errorf("failed to init kafka producer: %w", err)
	}

	pointsService := pointsUsecase.New(repos.Points, repos.Timeline, producerPort(producer), a.Log)

	timelineService := timelineUsecase.New(
		repos.Natal,
		repos.Timeline,
		repos.Credits,
		ephemerisAdapter.NewClient(a.Cfg.Ephemeris, a.Log),
		synthesizerAdapter.NewClient(a.Cfg.Synthesizer, a.Log),
		cacheClient,
		producerPort(producer),
		pointsService,
		a.Cfg.Timeline,
		a.Log,
	)

	consumer, err := a.initKafkaConsumer(pointsService)
	if err != nil {
		return nil, fmt.Errorf("failed to init kafka consumer: %w", err)
	}

	httpServer := a.initHTTP(db, timelineService, pointsService)
	scheduler := a.initJobScheduler(alerter, repos)

	return &Dependencies{
		DB:            db,
		HTTPServer:    httpServer,
		KafkaProducer: producer,
		KafkaConsumer: consumer,
		Cache:         cacheClient,
		JobScheduler:  scheduler,
	}, nil
}

// repositories содержит инициализированные репозитории
type repositories struct {
	Natal    repository.INatalRepo
	Timeline repository.ITimelineRepo
	Credits  repository.ICreditRepo
	Points   repository.IPointsRepo
}

// initRepositories инициализирует репозитории для работы с БД
func (a *App) initRepositories(db *sqlx.DB) *repositories {
	persistenceLayer := pg.NewDB(db)
	return &repositories{
		Natal:    natalRepo.New(persistenceLayer, a.Log),
		Timeline: timelineRepo.New(persistenceLayer, a.Log),
		Credits:  creditsRepo.New(persistenceLayer, a.Log),
		Points:   pointsRepo.New(persistenceLayer, a.Log),
	}
}

// initCache подключает Redis; без кэша сервис работает, но каждое
// сканирование ходит в оракул за позициями заново
func (a *App) initCache() cache.Cache {
	if a.Cfg.Redis == nil {
		return nil
	}

	client, err := a.Cfg.Redis.NewConnection()
	if err != nil {
		a.Log.Warn("redis unavailable, continuing without cache", "error", err)
		return nil
	}

	a.Log.Info("redis connected successfully")
	return redisAdapter.NewClient(client)
}

// initAlerter вебхук-алертер для джоб; без настройки алерты не отправляются
func (a *App) initAlerter() service.IAlerterService {
	if a.Cfg.Alerter == nil || a.Cfg.Alerter.WebhookURL == "" {
		a.Log.Info("alerter not configured")
		return nil
	}
	return alerterAdapter.NewClient(a.Cfg.Alerter, a.Log)
}

// initKafkaProducer producer доменных событий; без брокеров события не публикуются
func (a *App) initKafkaProducer() (*kafkaAdapter.Producer, error) {
	if a.Cfg.Kafka.Events == nil || a.Cfg.Kafka.Events.Brokers == "" {
		a.Log.Info("kafka events producer not configured")
		return nil, nil
	}
	return kafkaAdapter.NewProducer(a.Cfg.Kafka.Events, a.Log)
}

// initKafkaConsumer consumer внешних reward-событий
func (a *App) initKafkaConsumer(pointsService *pointsUsecase.Service) (*kafkaConsumerAdapter.Consumer, error) {
	if a.Cfg.Kafka.Rewards == nil || a.Cfg.Kafka.Rewards.Brokers == "" {
		a.Log.Info("kafka rewards consumer not configured")
		return nil, nil
	}

	handler := kafkaHandlers.NewRewardEventHandler(pointsService, a.Log)
	return kafkaConsumerAdapter.NewConsumer(a.Cfg.Kafka.Rewards, handler, a.Log)
}

// initHTTP собирает HTTP-сервер со всеми контроллерами
func (a *App) initHTTP(db *sqlx.DB, timelineService *timelineUsecase.Service, pointsService *pointsUsecase.Service) *http.Server {
	return server.NewHTTPServer(a.Cfg.Server, a.Log,
		healthcheckController.New(db, a.Log),
		timelineController.New(timelineService, a.Log),
		pointsController.New(pointsService, a.Log),
	)
}

// initJobScheduler регистрирует фоновые джобы
func (a *App) initJobScheduler(alerter service.IAlerterService, repos *repositories) *jobScheduler.Scheduler {
	scheduler := jobScheduler.NewScheduler(a.Log, alerter)
	scheduler.Register(jobScheduler.NewLedgerReconciler(repos.Points, alerter, a.Log))
	scheduler.Register(jobScheduler.NewCreditJanitor(repos.Credits, a.Log))
	return scheduler
}

// producerPort типизированный nil *Producer за интерфейсом перестаёт быть nil,
// поэтому приводим явно
func producerPort(p *kafkaAdapter.Producer) kafkaPorts.IKafkaProducer {
	if p == nil {
		return nil
	}
	return p
}
