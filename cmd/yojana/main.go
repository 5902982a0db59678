package main

import (
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"yojana-backend/internal/config"
	"yojana-backend/internal/conversation"
	"yojana-backend/internal/services"
	"yojana-backend/internal/tui"
)

var (
	hostFlag    string
	nameFlag    string
	logFileFlag string
)

var rootCmd = &cobra.Command{
	Use:          "yojana",
	Short:        "Chat with Yojana AI about government schemes",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runChat,
}

func init() {
	rootCmd.Flags().StringVar(&hostFlag, "host", "", "host the client acts as; localhost selects the local recommendation service")
	rootCmd.Flags().StringVar(&nameFlag, "name", "", "name used in the welcome message")
	rootCmd.Flags().StringVar(&logFileFlag, "log-file", "", "write debug logs to this file")
}

func newLogger(path string) (*zap.Logger, error) {
	if path == "" {
		return zap.NewNop(), nil
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{path}
	cfg.ErrorOutputPaths = []string{path}
	return cfg.Build()
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg := config.LoadClient()
	if hostFlag != "" {
		cfg.Host = hostFlag
	}
	if nameFlag != "" {
		cfg.UserName = nameFlag
	}

	logger, err := newLogger(logFileFlag)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logger.Sync()

	firstName, _, _ := strings.Cut(strings.TrimSpace(cfg.UserName), " ")

	updates := tui.NewUpdates()
	session := conversation.NewSession(uuid.New(), firstName, conversation.Deps{
		Tokens:    conversation.StaticToken(cfg.IDToken),
		Builder:   services.NewRequestBuilder(cfg.Host, services.Endpoints{Local: cfg.LocalURL, Production: cfg.ProdURL}),
		Client:    services.NewRecommendClient(1, logger, services.WithTimeout(cfg.Timeout)),
		Publisher: updates,
		Logger:    logger,
	})
	defer session.Close()

	logger.Info("chat started", zap.String("host", cfg.Host))

	p := tea.NewProgram(tui.New(session, updates), tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err = p.Run()
	return err
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗", err)
		os.Exit(1)
	}
}
