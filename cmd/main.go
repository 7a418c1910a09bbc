package main

import (
	"fmt"
	"os"

	"github.com/splitlearn/splitlearn-backend/internal/data/repos"
	"github.com/splitlearn/splitlearn-backend/internal/db"
	httpS "github.com/splitlearn/splitlearn-backend/internal/http"
	httpH "github.com/splitlearn/splitlearn-backend/internal/http/handlers"
	httpMW "github.com/splitlearn/splitlearn-backend/internal/http/middleware"
	"github.com/splitlearn/splitlearn-backend/internal/modules/extraction"
	"github.com/splitlearn/splitlearn-backend/internal/platform/envutil"
	"github.com/splitlearn/splitlearn-backend/internal/platform/gcp"
	"github.com/splitlearn/splitlearn-backend/internal/platform/gemini"
	"github.com/splitlearn/splitlearn-backend/internal/platform/logger"
	"github.com/splitlearn/splitlearn-backend/internal/platform/youtube"
)

func main() {
	// Logger
	logMode := envutil.String("LOG_MODE", "development")
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Env
	log.Info("Loading environment variables from main...")
	jwtSecretKey := envutil.String("JWT_SECRET_KEY", "")
	cfg := extraction.ConfigFromEnv()

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Warn("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up repos from main...")
	slideRepo := repos.NewSlideRepo(thePG, log)
	topicRepo := repos.NewTopicRepo(thePG, log)
	videoRepo := repos.NewVideoRepo(thePG, log)

	// Platform services
	log.Info("Setting up services from main...")
	bucketService, err := gcp.NewBucketService(log)
	if err != nil {
		log.Error("Could not init BucketService", "error", err)
		os.Exit(1)
	}
	finder, err := youtube.NewFinder(log)
	if err != nil {
		log.Error("Could not init YouTube finder", "error", err)
		os.Exit(1)
	}

	// The generative client may be unconfigured in local setups; the exam
	// handler then reports it per request instead of killing the process.
	var orchestrator *extraction.Orchestrator
	var picker *extraction.VideoPicker
	geminiClient, err := gemini.NewClientWithModel(log, cfg.Model)
	if err != nil {
		log.Warn("Could not init generative client, extraction disabled", "error", err)
	} else {
		pacer := gemini.NewPacer(log, nil)
		fetcher := extraction.NewDocumentFetcher(log, bucketService)
		extractor := extraction.NewExtractor(log, geminiClient, pacer)
		picker = extraction.NewVideoPicker(log, finder, geminiClient, pacer, cfg.Rerank)
		processor := extraction.NewSlideProcessor(log, fetcher, extractor, picker, slideRepo, topicRepo, videoRepo)
		strategy := extraction.NewStrategy(log, cfg, processor, fetcher, extractor)
		orchestrator = extraction.NewOrchestrator(log, slideRepo, strategy)
	}

	// Handlers
	log.Info("Setting up handlers from main...")
	examHandler := httpH.NewExamHandler(log, orchestrator)
	var videoHandler *httpH.VideoHandler
	if picker != nil {
		videoHandler = httpH.NewVideoHandler(log, picker)
	}
	healthHandler := httpH.NewHealthHandler()

	// Middleware
	var authMiddleware *httpMW.AuthMiddleware
	if jwtSecretKey != "" {
		authMiddleware = httpMW.NewAuthMiddleware(log, jwtSecretKey)
	} else {
		log.Warn("JWT_SECRET_KEY not set; API endpoints are unauthenticated")
	}

	// Router
	log.Info("Setting up router from main...")
	server := httpS.NewServer(httpS.RouterConfig{
		AuthMiddleware: authMiddleware,
		ExamHandler:    examHandler,
		VideoHandler:   videoHandler,
		HealthHandler:  healthHandler,
	})

	addr := ":" + envutil.String("PORT", "8080")
	log.Info("Starting server", "addr", addr)
	if err := server.Run(addr); err != nil {
		log.Fatal("Server exited", "error", err)
	}
}
