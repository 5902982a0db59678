package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"yojana-backend/internal/config"
	"yojana-backend/internal/scraper"
)

var rootCmd = &cobra.Command{
	Use:   "scrape [schemes|details]",
	Short: "Download the myScheme catalogue",
	Long: `scrape schemes  fetches the full scheme listing into <data>/schemes.json.
scrape details  fetches the details of every listed scheme in batches into
                <data>/scheme-details/schemes-details-<n>.json.`,
	ValidArgs:     []string{"schemes", "details"},
	Args:          validateTarget,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runScrape,
}

// validateTarget requires exactly one known target. Usage is silenced for
// runtime failures, so it is printed here for argument mistakes.
func validateTarget(cmd *cobra.Command, args []string) error {
	if err := cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs)(cmd, args); err != nil {
		cmd.PrintErr(cmd.UsageString())
		return err
	}
	return nil
}

func runScrape(cmd *cobra.Command, args []string) error {
	cfg := config.LoadScraper()

	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s := scraper.New(scraper.NewClient(cfg.APIKey, logger), cfg.DataDir, logger)

	switch args[0] {
	case "schemes":
		n, err := s.FetchSchemes(ctx)
		if err != nil {
			return err
		}
		logger.Info("✓ schemes fetched", zap.Int("count", n))
	case "details":
		n, err := s.FetchDetails(ctx)
		if err != nil {
			logger.Error("details fetch stopped", zap.Int("batches_written", n), zap.Error(err))
			return err
		}
		logger.Info("✓ details fetched", zap.Int("batches", n))
	}
	return nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "✗", err)
		os.Exit(1)
	}
}
