package app

import (
	server "github.com/admin/astro-apps/timeline-api/internal/adapters/primary/http"
	alerterAdapter "github.com/admin/astro-apps/timeline-api/internal/adapters/secondary/alerter"
	ephemerisAdapter "github.com/admin/astro-apps/timeline-api/internal/adapters/secondary/ephemeris"
	kafkaAdapter "github.com/admin/astro-apps/timeline-api/internal/adapters/secondary/kafka"
	"github.com/admin/astro-apps/timeline-api/internal/adapters/secondary/storage/pg"
	redisAdapter "github.com/admin/astro-apps/timeline-api/internal/adapters/secondary/storage/redis"
	synthesizerAdapter "github.com/admin/astro-apps/timeline-api/internal/adapters/secondary/synthesizer"
	"github.com/admin/astro-apps/timeline-api/internal/pkg/logger"
	timelineUsecase "github.com/admin/astro-apps/timeline-api/internal/usecases/timeline"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Postgres    *pg.Config                 `envconfig:"POSTGRES"`
	Redis       *redisAdapter.Config       `envconfig:"REDIS"`
	Log         *logger.Config             `envconfig:"LOG"`
	Server      *server.Config             `envconfig:"APISERVER"`
	Ephemeris   *ephemerisAdapter.Config   `envconfig:"EPHEMERIS"`
	Synthesizer *synthesizerAdapter.Config `envconfig:"SYNTHESIZER"`
	Timeline    *timelineUsecase.Config    `envconfig:"TIMELINE"`
	Kafka       kafkaAdapter.Configs       `envconfig:"KAFKA"`
	Alerter     *alerterAdapter.Config     `envconfig:"ALERTER"`
}

func NewEnvConfig(envPrefix string) (*Config, error) {
	cfg := &Config{}

	_ = godotenv.Load("deployments/local/.env")

	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
