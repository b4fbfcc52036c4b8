package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/shenikar/tourist_safety_system/internal/anomaly"
	"github.com/shenikar/tourist_safety_system/internal/config"
	"github.com/shenikar/tourist_safety_system/internal/geo"
	"github.com/shenikar/tourist_safety_system/internal/geofence"
	v1 "github.com/shenikar/tourist_safety_system/internal/handler/http/v1"
	"github.com/shenikar/tourist_safety_system/internal/identity"
	"github.com/shenikar/tourist_safety_system/internal/ingest"
	"github.com/shenikar/tourist_safety_system/internal/ledger"
	"github.com/shenikar/tourist_safety_system/internal/metrics"
	"github.com/shenikar/tourist_safety_system/internal/notify"
	"github.com/shenikar/tourist_safety_system/internal/orchestrator"
	"github.com/shenikar/tourist_safety_system/internal/repository"
	"github.com/shenikar/tourist_safety_system/internal/service"
	"github.com/shenikar/tourist_safety_system/internal/tracker"
	"github.com/shenikar/tourist_safety_system/pkg/logger"
	"github.com/shenikar/tourist_safety_system/pkg/postgres"
	redisclient "github.com/shenikar/tourist_safety_system/pkg/redis"
	"github.com/sirupsen/logrus"

	_ "github.com/shenikar/tourist_safety_system/docs"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title Tourist Safety System API
// @version 1.0
// @description Safety core: geofence evaluation, anomaly detection, incident orchestration, responder verification ledger and dispatch tracking.
// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
func runMigrations(cfg *config.Config, log *logrus.Logger) error {
	log.Info("Running database migrations...")

	migrationURL := cfg.DatabaseURL
	if !strings.HasPrefix(migrationURL, "pgx5://") {
		migrationURL = strings.Replace(migrationURL, "postgres://", "pgx5://", 1)
	}

	m, err := migrate.New(
		"file://migrations",
		migrationURL,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Info("Database migrations applied successfully")
	return nil
}

func main() {
	// Загрузка конфигурации
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	// Инициализация логгера
	log := logger.New(cfg.LogLevel)

	// Контекст для graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Запуск миграций
	if err := runMigrations(cfg, log); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	// Подключение к PostgreSQL
	dbpool, err := postgres.NewPostgresDB(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer dbpool.Close()
	log.Info("Successfully connected to PostgreSQL")

	// Инициализация Redis клиента
	redisClient, err := redisclient.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Info("Successfully connected to Redis")

	// Инициализация репозиториев
	zoneRepo := repository.NewZoneRepository(dbpool)
	incidentRepo := repository.NewIncidentRepository(dbpool, redisClient)
	eventRepo := repository.NewEventRepository(dbpool)
	ledgerRepo := repository.NewLedgerRepository(dbpool)
	trackerRepo := repository.NewTrackerRepository(dbpool)
	subjectRepo := repository.NewSubjectRepository(dbpool)

	// Индекс геозон: начальный снапшот загружается до приёма телеметрии
	zoneIndex := geo.NewIndex(zoneRepo, log)
	if err := zoneIndex.Refresh(ctx); err != nil {
		log.Fatalf("Failed to load zone snapshot: %v", err)
	}

	// Транспорт рассылки и уведомления о статусе
	transport := notify.NewRedisTransportPublisher(redisClient)
	statusNotifier := notify.NewRedisStatusNotifier(redisClient, log)

	// Трекер реагирующих (он же архиватор строк трекинга при резолве)
	trackerSvc := tracker.NewService(cfg, trackerRepo, incidentRepo, log)

	// Оркестратор инцидентов; источник истории пингов подключается ниже,
	// после сборки менеджера пайплайнов
	orch := orchestrator.New(cfg, incidentRepo, transport, subjectRepo, nil, statusNotifier, trackerSvc, log)

	// Геозонная оценка и детекция аномалий
	evaluator := geofence.NewEvaluator(zoneIndex, cfg, log)
	detector := anomaly.NewDetector(cfg, orch, log)

	// Менеджер пайплайнов субъектов
	ingestManager := ingest.NewManager(ctx, cfg, evaluator, detector, orch, subjectRepo, eventRepo, log)
	orch.SetHistoryProvider(ingestManager)

	// Восстановление открытых инцидентов после рестарта
	if err := orch.Recover(ctx); err != nil {
		log.Fatalf("Failed to recover open incidents: %v", err)
	}

	// Свип детектора бездействия
	sweeper := anomaly.NewSweeper(detector, cfg.InactivitySweep, ingestManager.ForwardAnomaly, log)
	sweeper.Start(ctx)

	// Воркер доставки заданий в транспортный шлюз
	transportWorker := notify.NewTransportWorker(redisClient, log, cfg, orch)
	transportWorker.Start(ctx)

	// Леджер верификации реагирующих
	signatureVerifier, err := identity.NewVerifier(cfg.ResponderKeysFile, log)
	if err != nil {
		log.Fatalf("Failed to load responder keys: %v", err)
	}
	ledgerSvc := ledger.NewService(ledgerRepo, signatureVerifier, orch, log)

	// Инициализация сервисов
	locationService := service.NewLocationService(ingestManager, log)
	incidentService := service.NewIncidentService(orch, incidentRepo, eventRepo, log)
	ledgerService := service.NewLedgerService(ledgerSvc, log)
	trackerService := service.NewTrackerService(trackerSvc, log)
	zoneService := service.NewZoneService(zoneIndex, log)

	// Инициализация хэндлеров
	handler := v1.NewHandler(locationService, incidentService, ledgerService, trackerService, zoneService, statusNotifier, log, cfg)

	// Настройка Gin роутера: health регистрируется до middleware аутентификации
	router := gin.Default()
	api := router.Group("/api/v1")
	handler.RegisterPublicRoutes(api)
	api.Use(v1.APIKeyAuthMiddleware(cfg, log))
	handler.RegisterRoutes(api)

	// Метрики Prometheus
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Добавление маршрута для Swagger UI
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Запуск HTTP-сервера
	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)

	srv := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	// Запуск сервера в горутине
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Error starting HTTP server: %v", err)
		}
	}()
	log.Infof("HTTP server started on port %s", cfg.HTTPPort)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Received shutdown signal, shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Info("Server gracefully stopped")
}
