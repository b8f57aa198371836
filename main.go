package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"codesense/internal/analysis"
	"codesense/internal/auth"
	"codesense/internal/config"
	"codesense/internal/handlers"
	"codesense/internal/logging"
	"codesense/internal/middleware"
	"codesense/internal/sandbox"
	"codesense/internal/store"
)

func main() {
	cfg := config.Load()
	logging.Init()
	defer logging.Sync()
	log := logging.S()

	st, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalw("database connection failed", "error", err)
	}

	blobs, err := store.NewBlobStore(cfg.SubmissionsDir)
	if err != nil {
		log.Fatalw("blob store init failed", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// A missing daemon is not fatal: analyze still works, sandbox runs just
	// report docker_unavailable.
	var engine sandbox.Engine
	if eng, err := sandbox.NewDockerEngine(ctx); err != nil {
		log.Warnw("docker unavailable, sandbox execution disabled", "error", err)
	} else {
		engine = eng
	}

	executor := sandbox.NewExecutor(engine, cfg.SandboxTimeout)
	executor.StartSweeper(ctx)

	var (
		aiClient analysis.AIClient
		lister   handlers.ModelLister
	)
	gemini := analysis.NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiModel)
	aiClient = gemini
	if cfg.GeminiAPIKey != "" {
		lister = gemini
	}

	authSvc := auth.NewService(cfg.SecretKey)
	orchestrator := analysis.NewOrchestrator(executor, aiClient, st, blobs)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.RateLimit(rate.Limit(20), 40))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	hasTemplates := false
	if _, err := os.Stat("templates/index.html"); err == nil {
		router.LoadHTMLGlob("templates/*.html")
		hasTemplates = true
	}

	h := handlers.New(authSvc, st, blobs, orchestrator, lister, cfg.GeminiAPIKey != "", hasTemplates)
	h.Register(router)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  35 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Infow("server listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	log.Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("shutdown incomplete", "error", err)
	}
}
