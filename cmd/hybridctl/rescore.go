package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"hybridhouse/internal/scoring"
)

var rescoreCmd = &cobra.Command{
	Use:   "rescore",
	Short: "Send score-less athlete profiles to the scoring webhook again",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return rescore(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(rescoreCmd)

	rescoreCmd.Flags().String("scoring-webhook-url", "", "scoring webhook url")
	rescoreCmd.Flags().IntP("limit", "n", 100, "maximum number of artifacts to rescore")
	rescoreCmd.Flags().IntP("workers", "w", 4, "concurrent scoring requests")

	viper.BindPFlag("scoring-webhook-url", rescoreCmd.Flags().Lookup("scoring-webhook-url"))
	viper.BindPFlag("rescore.limit", rescoreCmd.Flags().Lookup("limit"))
	viper.BindPFlag("rescore.workers", rescoreCmd.Flags().Lookup("workers"))
}

func rescore(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log := newLogger()
	defer func() { _ = log.Sync() }()

	b, err := openBackend(ctx, log)
	if err != nil {
		return err
	}
	defer b.Close()

	timeout := time.Duration(viper.GetInt("scoring-timeout")) * time.Second
	d := scoring.NewDispatcher(viper.GetString("scoring-webhook-url"), timeout, b.artifacts, b.board, log)

	log.Info("starting rescore", zap.String("version", version), zap.Int("limit", viper.GetInt("rescore.limit")))
	res, err := d.Rescore(ctx, b.artifacts, b.identities, viper.GetInt("rescore.limit"), viper.GetInt("rescore.workers"))
	if err != nil {
		return err
	}
	log.Info("rescore finished", zap.Int("attempted", res.Attempted), zap.Int("scored", res.Scored), zap.Int("failed", len(res.Failed)))

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
