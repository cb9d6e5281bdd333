package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"hybridhouse/internal/projection"
	"hybridhouse/internal/ranking"
)

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard",
	Short: "Print the public leaderboard",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		return printLeaderboard(ctx, os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(leaderboardCmd)

	leaderboardCmd.Flags().IntP("limit", "n", 25, "rows to print (0 for all)")
	leaderboardCmd.Flags().String("gender", "", "male, female or unspecified")
	leaderboardCmd.Flags().String("country", "", "country code or name")
	leaderboardCmd.Flags().Bool("as-json", false, "print rows as json")

	viper.BindPFlag("leaderboard.limit", leaderboardCmd.Flags().Lookup("limit"))
	viper.BindPFlag("leaderboard.gender", leaderboardCmd.Flags().Lookup("gender"))
	viper.BindPFlag("leaderboard.country", leaderboardCmd.Flags().Lookup("country"))
	viper.BindPFlag("leaderboard.as-json", leaderboardCmd.Flags().Lookup("as-json"))
}

func printLeaderboard(ctx context.Context, out io.Writer) error {
	log := newLogger()
	defer func() { _ = log.Sync() }()

	b, err := openBackend(ctx, log)
	if err != nil {
		return err
	}
	defer b.Close()

	f := ranking.Filter{
		Country: viper.GetString("leaderboard.country"),
		Limit:   viper.GetInt("leaderboard.limit"),
	}
	if g := viper.GetString("leaderboard.gender"); g != "" {
		f.Gender, _ = projection.NormalizeGender(g)
	}
	lb, err := b.board.Leaderboard(ctx, f)
	if err != nil {
		return err
	}

	if viper.GetBool("leaderboard.as-json") {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(lb.Rows)
	}
	return writeBoard(out, lb)
}

func writeBoard(out io.Writer, lb *ranking.Leaderboard) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tSCORE\tATHLETE\tAGE\tGENDER\tCOUNTRY\tARTIFACT")
	for _, r := range lb.Rows {
		age := "-"
		if r.Age != nil {
			age = fmt.Sprint(*r.Age)
		}
		fmt.Fprintf(tw, "%d\t%.1f\t%s\t%s\t%s\t%s %s\t%s\n",
			r.Rank, r.Score, r.DisplayName, age, orDash(r.Gender), r.CountryFlag, orDash(r.Country), r.ArtifactID)
	}
	fmt.Fprintf(tw, "\n%d of %d public athletes; avg %.1f, range %.1f-%.1f\n",
		lb.Total, lb.TotalPublic, lb.Stats.Avg, lb.Stats.Min, lb.Stats.Max)
	return tw.Flush()
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}
