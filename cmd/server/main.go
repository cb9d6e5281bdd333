package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"hybridhouse/internal/cache"
	"hybridhouse/internal/config"
	"hybridhouse/internal/db"
	"hybridhouse/internal/handlers"
	"hybridhouse/internal/interview"
	"hybridhouse/internal/llm"
	"hybridhouse/internal/logger"
	mw "hybridhouse/internal/middleware"
	"hybridhouse/internal/ranking"
	"hybridhouse/internal/scoring"
	"hybridhouse/internal/store"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		// No logger yet.
		_, _ = os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogJSON, cfg.LogDebug)
	if err != nil {
		_, _ = os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx := context.Background()

	var dbConn *sqlx.DB
	if cfg.DatabaseURL == "" {
		log.Warn("DATABASE_URL not set; API will run but DB is unavailable")
	} else {
		dbConn, err = db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal("failed to open db", zap.Error(err))
		}
		defer dbConn.Close()
		if err := db.RunMigrations(ctx, dbConn); err != nil {
			log.Fatal("failed migrations", zap.Error(err))
		}
	}

	identities := store.NewIdentities(dbConn, log)
	artifacts := store.NewArtifacts(dbConn, log)
	sessions := store.NewSessions(dbConn, log)

	var (
		boardCache cache.Cache = cache.NewMemory()
		cachePing  handlers.Pinger
	)
	if cfg.RedisAddr != "" {
		rc, err := cache.NewRedis(cfg.RedisAddr, "hybridhouse:")
		if err != nil {
			log.Warn("redis unavailable, using in-process leaderboard cache", zap.Error(err))
		} else {
			defer rc.Close()
			boardCache, cachePing = rc, rc
		}
	}
	board := ranking.NewService(artifacts, identities, boardCache, cfg.LeaderboardCacheTTL, log)

	dispatcher := scoring.NewDispatcher(cfg.ScoringWebhookURL, cfg.ScoringTimeout, artifacts, board, log)
	var scorer interview.Scorer
	if dispatcher.Configured() {
		scorer = dispatcher
	} else {
		log.Warn("SCORING_WEBHOOK_URL not set; completed interviews stay unscored")
	}

	client := llm.NewClient(llm.Options{
		APIKey:     cfg.OpenAIAPIKey,
		BaseURL:    cfg.OpenAIBaseURL,
		Model:      cfg.OpenAIModel,
		Timeout:    cfg.OpenAITimeout,
		MaxRetries: cfg.OpenAIMaxRetries,
	}, log)
	engine := interview.NewEngine(sessions, identities, artifacts, client, scorer, interview.Config{
		PromptID:     cfg.OpenAIPromptID,
		AsyncScoring: cfg.ScoringAsync,
	}, log)

	var dbPing handlers.Pinger
	if dbConn != nil {
		dbPing = handlers.PingFunc(dbConn.PingContext)
	}

	router := handlers.NewRouter(handlers.Deps{
		Identities:  identities,
		Artifacts:   artifacts,
		Ranker:      board,
		Interviewer: engine,
		Scores:      dispatcher,
		Auth:        mw.NewAuthMiddleware([]byte(cfg.JWTSecret), cfg.JWTAudience),
		DB:          dbPing,
		Cache:       cachePing,
		Status: handlers.StatusConfig{
			Version:           version,
			JWTSecretSet:      cfg.JWTSecret != "",
			LLMConfigured:     cfg.OpenAIAPIKey != "",
			ScoringConfigured: dispatcher.Configured(),
		},
		CORSOrigins: cfg.CORSOrigins,
		Log:         log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("server starting", zap.String("addr", srv.Addr), zap.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutdown initiated")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	engine.Wait()
	log.Info("server stopped")
}
