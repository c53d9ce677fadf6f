package setup

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/LavaJover/shvark-settlement-service/internal/config"
	"github.com/LavaJover/shvark-settlement-service/internal/domain"
	"github.com/LavaJover/shvark-settlement-service/internal/infrastructure/cache"
	publisher "github.com/LavaJover/shvark-settlement-service/internal/infrastructure/kafka"
	"github.com/LavaJover/shvark-settlement-service/internal/infrastructure/logger"
	"github.com/LavaJover/shvark-settlement-service/internal/infrastructure/metrics"
	"github.com/LavaJover/shvark-settlement-service/internal/infrastructure/migrate"
	"github.com/LavaJover/shvark-settlement-service/internal/infrastructure/postgres"
	"github.com/LavaJover/shvark-settlement-service/internal/infrastructure/postgres/repository"
	"github.com/LavaJover/shvark-settlement-service/internal/security"
)

type Dependencies struct {
	Config       *config.SettlementConfig
	Logger       *zap.Logger
	DB           *gorm.DB
	Redis        *redis.Client
	Registry     *prometheus.Registry
	Metrics      *metrics.SettlementMetrics
	Publisher    *publisher.DefaultKafkaPublisher
	QueueStore   *cache.QueueStore
	ReplayGuard  domain.ReplayGuard
	Repositories *Repositories
}

type Repositories struct {
	OrderRepo      *repository.DefaultOrderRepository
	CourseFileRepo domain.CourseFileRepository
	SecurityEvents *logger.PGSecurityEventLogger
}

func InitializeDependencies(cfg *config.SettlementConfig, log *zap.Logger) (*Dependencies, error) {
	db := postgres.MustInitDB(cfg)
	if err := migrate.RunMigrations(db, cfg.SettlementDB.MigrationsPath, log); err != nil {
		return nil, fmt.Errorf("migrations: %w", err)
	}

	rdb, err := cache.InitRedis(cfg.Redis, log)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	var pub *publisher.DefaultKafkaPublisher
	if cfg.KafkaService.Enabled() {
		pub = publisher.NewDefaultKafkaPublisher([]string{cfg.KafkaService.Broker()})
		log.Info("kafka publisher enabled", zap.String("broker", cfg.KafkaService.Broker()), zap.String("topic", cfg.KafkaService.Topic))
	}

	return &Dependencies{
		Config:      cfg,
		Logger:      log,
		DB:          db,
		Redis:       rdb,
		Registry:    reg,
		Metrics:     metrics.NewSettlementMetrics(reg),
		Publisher:   pub,
		QueueStore:  cache.NewQueueStore(rdb),
		ReplayGuard: initReplayGuard(cfg.Security, rdb, log),
		Repositories: &Repositories{
			OrderRepo:      repository.NewDefaultOrderRepository(db),
			CourseFileRepo: repository.NewDefaultCourseFileRepository(db),
			SecurityEvents: logger.NewPGSecurityEventLogger(db),
		},
	}, nil
}

func initReplayGuard(cfg config.Security, rdb redis.UniversalClient, log *zap.Logger) domain.ReplayGuard {
	if cfg.ReplayBackend == "memory" {
		log.Warn("replay guard is process local; run a single instance")
		return security.NewMemoryReplayGuard(cfg.ReplayTTL)
	}
	return cache.NewReplayGuard(rdb, cfg.ReplayTTL)
}

// Close releases connections in reverse order of creation.
func (d *Dependencies) Close(ctx context.Context) {
	if d.Publisher != nil {
		if err := d.Publisher.Close(); err != nil {
			d.Logger.Error("failed to close kafka publisher", zap.Error(err))
		}
	}
	if err := d.Redis.Close(); err != nil {
		d.Logger.Error("failed to close redis", zap.Error(err))
	}
	if sqlDB, err := d.DB.WithContext(ctx).DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			d.Logger.Error("failed to close database", zap.Error(err))
		}
	}
}
