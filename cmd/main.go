package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"crop-claim-service/internal/ai/gemini"
	"crop-claim-service/internal/config"
	"crop-claim-service/internal/database/minio"
	"crop-claim-service/internal/database/postgres"
	"crop-claim-service/internal/database/redis"
	"crop-claim-service/internal/event"
	"crop-claim-service/internal/handlers"
	"crop-claim-service/internal/repository"
	"crop-claim-service/internal/services"
	"crop-claim-service/internal/worker"

	"github.com/gofiber/fiber/v3"
	"github.com/jmoiron/sqlx"
)

const (
	janitorInterval  = 5 * time.Minute
	bootRetryTimeout = 2 * time.Minute
	shutdownTimeout  = 10 * time.Second
)

func setupLogging(logDir string) (*os.File, error) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("Recovered from panic: %v\n", r)
		}
	}()

	fmt.Println("Log directory:", logDir)
	err := os.MkdirAll(logDir, 0o755)
	if err != nil {
		return nil, fmt.Errorf("failed to create log directory: %v", err)
	}

	currentTime := time.Now()
	logFileName := fmt.Sprintf("log_%s.log", currentTime.Format("2006-01-02"))
	logFile := filepath.Join(logDir, logFileName)

	file, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %v", err)
	}

	if absPath, err := filepath.Abs(logFile); err == nil {
		fmt.Printf("Log file at absolute path: %s\n", absPath)
	}

	log.SetOutput(file)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	slog.SetDefault(slog.New(slog.NewTextHandler(file, nil)))

	return file, nil
}

func main() {
	cfg := config.New()

	logFile, err := setupLogging(cfg.LogDir)
	if err != nil {
		log.Printf("Failed to set up file logging, using stderr: %v", err)
	} else {
		defer logFile.Close()
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---- inference ----
	geminiClients, err := gemini.NewGenAIClients(rootCtx, cfg.GeminiAPICfg.APIKeys, cfg.GeminiAPICfg.FlashName)
	if err != nil {
		log.Fatalf("Failed to create Gemini clients: %v", err)
	}
	selector := gemini.NewGeminiClientSelector(geminiClients)
	defer selector.Close()
	provider := gemini.NewProvider(selector, cfg.GeminiAPICfg.Temperature)
	analysisService := services.NewAnalysisService(provider, gemini.BuildCropDiagnosisPrompt)

	deps := services.SessionDeps{
		Analyzer:           analysisService,
		Claims:             services.NewClaimService(services.NewClaimIDGenerator(cfg.ClaimCfg.YearToken), cfg.ClaimCfg.EstimatedAmount),
		SubmitDelay:        cfg.ClaimCfg.SubmitDelay,
		HistorySwitchDelay: cfg.ClaimCfg.HistorySwitchDelay,
		SessionTTL:         cfg.SessionCfg.TTL,
	}

	// ---- optional backends ----
	if cfg.PostgresCfg.Enabled {
		if db := connectPostgres(rootCtx, cfg.PostgresCfg); db != nil {
			defer db.Close()
			deps.Store = repository.NewClaimRepository(db)
		}
	}

	var redisClient *redis.Client
	if cfg.RedisCfg.Enabled {
		client, err := redis.NewRedisClient(cfg.RedisCfg)
		if err != nil {
			log.Printf("Redis unavailable, sessions stay in memory only: %v", err)
		} else {
			redisClient = client
			defer redisClient.Close()
			deps.Snapshots = repository.NewSessionRepository(redisClient.GetClient(), cfg.SessionCfg.TTL)
		}
	}

	if cfg.MinioCfg.Enabled {
		minioClient, err := minio.NewMinioClient(cfg.MinioCfg)
		if err != nil {
			log.Printf("MinIO unavailable, crop evidence will not be stored: %v", err)
		} else {
			deps.Evidence = minio.NewEvidenceStore(minioClient)
		}
	}

	var publisher *event.Publisher
	if cfg.RabbitMQCfg.Enabled {
		rabbitConn, err := event.ConnectRabbitMQ(cfg.RabbitMQCfg, event.ClaimQueues...)
		if err != nil {
			log.Printf("RabbitMQ unavailable, claim events disabled: %v", err)
		} else {
			defer rabbitConn.Close()
			publisher = event.NewPublisher(rabbitConn)
			deps.Events = event.NewClaimEventPublisher(publisher)
		}
	}

	// ---- workers ----
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	var managerWg sync.WaitGroup
	pool := worker.NewWorkingPool(cfg.WorkerCfg.AnalysisWorkers, cfg.WorkerCfg.AnalysisQueueSize)
	managerWg.Add(1)
	go pool.Start(workerCtx, &managerWg)
	deps.Jobs = pool

	sessionService := services.NewSessionService(deps)
	managerWg.Add(1)
	go sessionService.RunJanitor(workerCtx, janitorInterval, &managerWg)

	// ---- http ----
	app := fiber.New(fiber.Config{
		AppName:   "crop-claim-service",
		BodyLimit: 12 << 20,
	})
	app.Get("/checkhealth", func(c fiber.Ctx) error {
		status := map[string]any{
			"status":         "healthy",
			"gemini_clients": selector.GetClientCount(),
		}
		if publisher != nil {
			status["event_publisher"] = publisher.HealthCheck()
		}
		if redisClient != nil {
			status["session_snapshots"] = redisClient.Ping(c.Context()) == nil
		}
		return c.Status(fiber.StatusOK).JSON(status)
	})
	handlers.NewCropSessionHandler(sessionService).Register(app)

	go func() {
		log.Printf("Starting server on port %s", cfg.Port)
		if err := app.Listen(fmt.Sprintf("0.0.0.0:%s", cfg.Port)); err != nil {
			log.Printf("Server stopped: %v", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Println("Shutting down server...")

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		log.Printf("error during server shutdown: %v", err)
	}
	sessionService.Shutdown()
	cancelWorkers()
	managerWg.Wait()
	log.Println("Server exited")
}

// connectPostgres retries for a bounded time at boot. A nil result means claims are
// kept in session history only.
func connectPostgres(ctx context.Context, cfg config.PostgresConfig) *sqlx.DB {
	log.Printf("Connecting to PostgreSQL with: host=%s, port=%s, user=%s, dbname=%s",
		cfg.Host, cfg.Port, cfg.Username, cfg.DBname)

	db, err := postgres.ConnectAndCreateDB(cfg)
	if err == nil {
		return db
	}
	log.Printf("error connect to database: %s", err)

	retryCtx, cancel := context.WithTimeout(ctx, bootRetryTimeout)
	defer cancel()
	if err := postgres.RetryConnectOnFailed(retryCtx, 10*time.Second, &db, cfg); err != nil {
		log.Printf("PostgreSQL unavailable, durable claim store disabled: %v", err)
		return nil
	}
	return db
}
