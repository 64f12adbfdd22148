// Package main - точка входа движка прогресса обучения SkillPath.
//
// Процесс собирает все слои движка:
// - PostgreSQL-хранилище прогресса, бейджей и серий
// - Redis-кэш контента и (опционально) распределённая шина событий
// - Командные обработчики (start/complete/update/reset) и запросы
// - Каталоги бейджей и таблицы мастерства
//
// Движок - бэкенд-сервис без собственного UI: команды приходят от
// вышестоящего API-слоя, наружу уходят только доменные события.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/skillpath/skillpath-engine/config"
	"github.com/skillpath/skillpath-engine/internal/application/command"
	"github.com/skillpath/skillpath-engine/internal/application/query"
	"github.com/skillpath/skillpath-engine/internal/domain/badge"
	"github.com/skillpath/skillpath-engine/internal/domain/content"
	"github.com/skillpath/skillpath-engine/internal/domain/mastery"
	"github.com/skillpath/skillpath-engine/internal/domain/shared"
	infracontent "github.com/skillpath/skillpath-engine/internal/infrastructure/content"
	"github.com/skillpath/skillpath-engine/internal/infrastructure/messaging"
	"github.com/skillpath/skillpath-engine/internal/infrastructure/persistence/postgres"
	"github.com/skillpath/skillpath-engine/internal/infrastructure/persistence/redis"
	"github.com/skillpath/skillpath-engine/pkg/logger"

	"github.com/google/uuid"
)

// engine объединяет собранные обработчики движка. Вышестоящий транспорт
// (gRPC/HTTP-слой) получает этот набор целиком.
type engine struct {
	StartModule    *command.StartModuleHandler
	CompleteLesson *command.CompleteLessonHandler
	UpdatePosition *command.UpdateLessonPositionHandler
	ResetModule    *command.ResetModuleProgressHandler
	GetProgress    *query.GetModuleProgressHandler
	GetRank        *query.GetLearningRankHandler

	// Content отдаёт определения модулей и уроков читающим ручкам.
	// Кэшированная реплика: мутирующие пути им не пользуются.
	Content content.Repository
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. КОНФИГУРАЦИЯ
	// ─────────────────────────────────────────────────────────────────────────
	_ = godotenv.Load() // .env опционален, окружение главнее

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. ЛОГИРОВАНИЕ
	// ─────────────────────────────────────────────────────────────────────────
	log := logger.New(logger.Options{
		Output:    os.Stdout,
		Level:     logger.ParseLevel(cfg.Observability.LogLevel),
		AddCaller: cfg.App.Debug,
	})
	log.Info("starting skillpath engine",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. POSTGRESQL
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database")
	dbConn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection")
		dbConn.Close()
	}()

	if cfg.Database.Migrate {
		log.Info("running database migrations")
		migrator := postgres.NewMigrator(dbConn)
		if err := migrator.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}
	log.Info("database ready")

	// ─────────────────────────────────────────────────────────────────────────
	// 4. REDIS (опционально)
	// ─────────────────────────────────────────────────────────────────────────
	var redisCache *redis.Cache
	if !cfg.Redis.Disabled {
		log.Info("connecting to redis")
		redisCfg := redis.DefaultConfig()
		redisCfg.Host = cfg.Redis.Host
		redisCfg.Port = cfg.Redis.Port
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB
		redisCfg.PoolSize = cfg.Redis.PoolSize
		redisCfg.MinIdleConns = cfg.Redis.MinIdleConns
		redisCfg.DialTimeout = cfg.Redis.DialTimeout
		redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
		redisCfg.WriteTimeout = cfg.Redis.WriteTimeout

		redisCache, err = redis.NewCache(redisCfg)
		if err != nil {
			log.Warn("failed to connect to redis, caching disabled", logger.Err(err))
			redisCache = nil
		} else {
			defer redisCache.Close()
			log.Info("redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. КОНТЕНТ
	// ─────────────────────────────────────────────────────────────────────────
	contentSource := infracontent.NewDefaultRepository()

	// Кэшированный контент для читающих путей; мутирующие обработчики
	// ходят в источник напрямую, минуя кэш.
	var contentRepo content.Repository = contentSource
	if redisCache != nil {
		contentRepo = redis.NewContentCache(redisCache, contentSource, log)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. РЕПОЗИТОРИИ
	// ─────────────────────────────────────────────────────────────────────────
	progressRepo := postgres.NewProgressRepository(dbConn)
	badgeRepo := postgres.NewBadgeRepository(dbConn)
	streakRepo := postgres.NewStreakRepository(dbConn)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. ШИНА СОБЫТИЙ
	// ─────────────────────────────────────────────────────────────────────────
	busConfig := messaging.DefaultInMemoryEventBusConfig()
	busConfig.WorkerPoolSize = cfg.EventBus.WorkerPoolSize

	var bus shared.EventBus
	if cfg.EventBus.Distributed && redisCache != nil {
		redisBus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
			Client:         redisCache.Client(),
			ChannelName:    cfg.EventBus.ChannelName,
			LocalBusConfig: busConfig,
		})
		if err != nil {
			return fmt.Errorf("failed to create redis event bus: %w", err)
		}
		defer redisBus.Close()
		bus = redisBus
		log.Info("distributed event bus enabled", logger.String("channel", cfg.EventBus.ChannelName))
	} else {
		memBus := messaging.NewInMemoryEventBus(busConfig)
		defer memBus.Close()
		bus = memBus
	}

	publisher := messaging.NewIntegrationPublisher(bus, log)

	// ─────────────────────────────────────────────────────────────────────────
	// 8. ДОМЕННЫЕ СЕРВИСЫ
	// ─────────────────────────────────────────────────────────────────────────
	badgeCatalog, err := badge.NewCatalog(infracontent.DefaultBadges())
	if err != nil {
		return fmt.Errorf("failed to build badge catalog: %w", err)
	}
	log.Info("badge catalog loaded", logger.Int("badges", badgeCatalog.Size()))

	facts := command.NewProgressFacts(progressRepo)
	badgeEngine := badge.NewEngine(badgeCatalog, badgeRepo, facts, uuid.NewString)
	aggregator := mastery.NewAggregator(infracontent.DefaultTierTables(), infracontent.DefaultCapabilities(), badgeRepo)

	// ─────────────────────────────────────────────────────────────────────────
	// 9. ОБРАБОТЧИКИ
	// ─────────────────────────────────────────────────────────────────────────
	eng := &engine{
		// Мутирующие пути читают контент напрямую, минуя кеш: протухшее
		// определение модуля не должно породить неверные строки уроков.
		StartModule: command.NewStartModuleHandler(progressRepo, contentSource, publisher, log),
		CompleteLesson: command.NewCompleteLessonHandler(
			progressRepo, contentSource, streakRepo, badgeEngine, aggregator, publisher, log,
		),
		UpdatePosition: command.NewUpdateLessonPositionHandler(progressRepo, publisher, log),
		ResetModule:    command.NewResetModuleProgressHandler(progressRepo, publisher, log),
		GetProgress:    query.NewGetModuleProgressHandler(progressRepo, log),
		GetRank:        query.NewGetLearningRankHandler(progressRepo, badgeRepo, streakRepo, log),
		Content:        contentRepo,
	}
	_ = eng // транспортный слой подключается здесь

	// ─────────────────────────────────────────────────────────────────────────
	// 10. HEALTH LOOP + GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	healthTicker := time.NewTicker(time.Minute)
	defer healthTicker.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-healthTicker.C:
				reportHealth(ctx, dbConn, redisCache, log)
			}
		}
	}()

	log.Info("skillpath engine is running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	sig := <-sigCh
	log.Info("received shutdown signal", logger.String("signal", sig.String()))
	log.Info("starting graceful shutdown", logger.String("timeout", cfg.App.ShutdownTimeout.String()))

	return nil
}

// reportHealth логирует состояние внешних зависимостей.
func reportHealth(ctx context.Context, db *postgres.Connection, cache *redis.Cache, log *logger.Logger) {
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	status, err := db.Health(checkCtx)
	switch {
	case err != nil:
		log.Warn("database health check failed", logger.Err(err))
	case !status.Healthy:
		log.Warn("database unhealthy", logger.String("error", status.Error))
	default:
		log.Debug("database healthy",
			logger.Latency(status.PingLatency),
			logger.Int("total_conns", int(status.TotalConns)),
			logger.Int("idle_conns", int(status.IdleConns)),
		)
	}

	if cache != nil {
		if err := cache.Ping(checkCtx); err != nil {
			log.Warn("redis health check failed", logger.Err(err))
		}
	}
}
