package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chattu-app/chattu-server/internal/app"
	"github.com/chattu-app/chattu-server/internal/config"
	"github.com/chattu-app/chattu-server/internal/log"
)

var (
	flagConfig   string
	flagAddr     string
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:   "chattu-server",
	Short: "Chattu backend server",
	Long:  "Chattu is a chat backend with direct and group chats, friend requests and real-time event delivery over WebSocket.",
	RunE: func(cmd *cobra.Command, args []string) error {
		bootLog := log.New(flagLogLevel)

		cfg, path, err := config.Load(bootLog, flagConfig)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if flagAddr != "" {
			cfg.Addr = flagAddr
		}
		if flagLogLevel != "" {
			cfg.LogLevel = flagLogLevel
		}

		logger := log.New(cfg.LogLevel)
		logger.Info().Str("config", path).Str("addr", cfg.Addr).Msg("starting chattu server")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		application, err := app.New(&cfg, logger)
		if err != nil {
			return fmt.Errorf("init app: %w", err)
		}

		if err := application.Run(ctx); err != nil {
			return fmt.Errorf("server exited: %w", err)
		}
		logger.Info().Msg("server stopped")
		return nil
	},
}

func init() {
	rootCmd.Flags().StringVarP(&flagConfig, "config", "c", "", "path to config file")
	rootCmd.Flags().StringVar(&flagAddr, "addr", "", "HTTP listen address, overrides config")
	rootCmd.Flags().StringVar(&flagLogLevel, "log-level", "", "log level: trace, debug, info, warn, error")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
