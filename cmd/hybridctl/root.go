package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"hybridhouse/internal/cache"
	"hybridhouse/internal/db"
	"hybridhouse/internal/logger"
	"hybridhouse/internal/ranking"
	"hybridhouse/internal/store"
)

const app = "hybridctl"

// Actual version can be specified in build command.
var version = "unknown"

var (
	cfgFile string

	rootCmd = &cobra.Command{
		Use:           app,
		Short:         "hybridctl is the operator CLI for the Hybrid House backend",
		SilenceUsage:  true,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is hybridctl.yaml in current directory, optional)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	rootCmd.PersistentFlags().String("database-url", "", "postgres connection string")
	rootCmd.PersistentFlags().String("redis-addr", "", "redis address of the leaderboard cache")

	for key, env := range map[string]string{
		"database-url":        "DATABASE_URL",
		"redis-addr":          "REDIS_ADDR",
		"scoring-webhook-url": "SCORING_WEBHOOK_URL",
		"scoring-timeout":     "SCORING_TIMEOUT_SECONDS",
		"jwt-secret":          "JWT_SECRET",
		"jwt-audience":        "JWT_AUDIENCE",
	} {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}
	viper.SetDefault("scoring-timeout", 150)
	viper.SetDefault("jwt-audience", "authenticated")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	viper.BindPFlag("database-url", rootCmd.PersistentFlags().Lookup("database-url"))
	viper.BindPFlag("redis-addr", rootCmd.PersistentFlags().Lookup("redis-addr"))

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("%s version: %s\n", app, version)
		},
	})
}

func initConfig() {
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
	}
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func newLogger() *zap.Logger {
	l, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	return l
}

// backend holds the stores a command works against.
type backend struct {
	db         *sqlx.DB
	identities *store.Identities
	artifacts  *store.Artifacts
	board      *ranking.Service
	cache      cache.Cache
}

func openBackend(ctx context.Context, log *zap.Logger) (*backend, error) {
	url := viper.GetString("database-url")
	if url == "" {
		return nil, errors.New("database url is required (--database-url or DATABASE_URL)")
	}
	conn, err := db.Open(ctx, url)
	if err != nil {
		return nil, err
	}
	b := &backend{
		db:         conn,
		identities: store.NewIdentities(conn, log),
		artifacts:  store.NewArtifacts(conn, log),
	}
	// Without redis there is no shared snapshot to invalidate.
	if addr := viper.GetString("redis-addr"); addr != "" {
		rc, err := cache.NewRedis(addr, "hybridhouse:")
		if err != nil {
			log.Warn("redis unavailable, leaderboard cache will not be invalidated", zap.Error(err))
		} else {
			b.cache = rc
		}
	}
	b.board = ranking.NewService(b.artifacts, b.identities, b.cache, 0, log)
	return b, nil
}

func (b *backend) Close() {
	if b.cache != nil {
		_ = b.cache.Close()
	}
	_ = b.db.Close()
}
