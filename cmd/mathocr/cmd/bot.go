package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/MeKo-Tech/mathocr/internal/telegram"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"
)

// botCmd runs the Telegram bot.
var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Run the Telegram bot",
	Long: `Answer photos sent to a Telegram bot with the detected expression and
its value. The token comes from telegram.token or MATHOCR_TELEGRAM_TOKEN.

Examples:
  MATHOCR_TELEGRAM_TOKEN=123:abc mathocr bot
  mathocr bot --public-url https://calc.example.com`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		if cfg.Telegram.Token == "" {
			return errors.New("telegram token is required (telegram.token or MATHOCR_TELEGRAM_TOKEN)")
		}

		api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
		if err != nil {
			return fmt.Errorf("failed to connect to telegram: %w", err)
		}
		slog.Info("Telegram bot authorized", "username", api.Self.UserName)

		p, pool, err := openPipeline(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = pool.Close() }()

		bot := telegram.New(api, p, telegram.Config{
			PublicBaseURL: cfg.Telegram.PublicBaseURL,
			Timeout:       time.Duration(cfg.Telegram.TimeoutSec) * time.Second,
		})

		parent := cmd.Context()
		if parent == nil {
			parent = context.Background()
		}
		ctx, cancel := signal.NotifyContext(parent, syscall.SIGTERM, syscall.SIGINT)
		defer cancel()

		if err := bot.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		slog.Info("Telegram bot stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(botCmd)
	botCmd.Flags().String("public-url", "", "public base URL used for debug image links")
	bindFlag(botCmd, "telegram.public_base_url", "public-url")
}
