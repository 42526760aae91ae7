// Package telegram answers photos sent to a Telegram bot with the evaluated
// arithmetic expression.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MeKo-Tech/mathocr/internal/pipeline"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	usageText = "Envíame una foto de una operación (por ejemplo 6 x 7) y te devuelvo el resultado.\n" +
		"Comandos: /start, /help"
	unknownCommandText = "Comando desconocido. Usa /help."
	notImageText       = "Solo entiendo fotos o imágenes."
)

// API is the part of tgbotapi.BotAPI the bot uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
}

// Processor runs the pipeline on image bytes.
type Processor interface {
	ProcessBytes(ctx context.Context, data []byte) (*pipeline.Result, error)
}

// Config configures a Bot.
type Config struct {
	// PublicBaseURL prefixes annotated_url in replies; empty omits the link.
	PublicBaseURL string
	// Timeout bounds download plus pipeline run per photo.
	Timeout time.Duration
	// MaxDownloadBytes caps the photo size.
	MaxDownloadBytes int64
}

// Bot routes updates to commands and the pipeline.
type Bot struct {
	api    API
	proc   Processor
	cfg    Config
	client *http.Client
}

// New creates a bot. Zero config values get defaults.
func New(api API, proc Processor, cfg Config) *Bot {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxDownloadBytes <= 0 {
		cfg.MaxDownloadBytes = 20 << 20
	}
	return &Bot{api: api, proc: proc, cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

// HandleUpdate answers one update. Updates without a message are ignored.
func (b *Bot) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	msg := upd.Message
	if msg == nil {
		return
	}
	chatID := msg.Chat.ID

	switch {
	case msg.IsCommand():
		b.handleCommand(chatID, msg.Command())
	case len(msg.Photo) > 0:
		// Telegram lists sizes smallest first.
		b.handleImage(ctx, chatID, msg.Photo[len(msg.Photo)-1].FileID)
	case msg.Document != nil && strings.HasPrefix(msg.Document.MimeType, "image/"):
		b.handleImage(ctx, chatID, msg.Document.FileID)
	default:
		b.send(chatID, notImageText)
	}
}

func (b *Bot) handleCommand(chatID int64, cmd string) {
	switch cmd {
	case "start", "help":
		b.send(chatID, usageText)
	default:
		b.send(chatID, unknownCommandText)
	}
}

func (b *Bot) handleImage(ctx context.Context, chatID int64, fileID string) {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	start := time.Now()
	data, err := b.download(ctx, fileID)
	if err != nil {
		slog.Warn("Telegram download failed", "chat_id", chatID, "error", err)
		b.send(chatID, "❌ No se pudo descargar la imagen.")
		return
	}

	res, err := b.proc.ProcessBytes(ctx, data)
	pipeline.Observe(pipeline.SourceTelegram, err)
	if err != nil {
		slog.Info("Telegram detection failed", "chat_id", chatID, "error", err)
		b.send(chatID, "❌ "+ErrorText(err))
		return
	}
	slog.Info("Telegram detection completed",
		"chat_id", chatID,
		"expression", res.Expression,
		"duration_ms", time.Since(start).Milliseconds())
	b.send(chatID, FormatResult(res, b.cfg.PublicBaseURL))
}

func (b *Bot) download(ctx context.Context, fileID string) ([]byte, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("resolve file: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, b.cfg.MaxDownloadBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > b.cfg.MaxDownloadBytes {
		return nil, errors.New("file too large")
	}
	return data, nil
}

func (b *Bot) send(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		slog.Warn("Telegram send failed", "chat_id", chatID, "error", err)
	}
}

// FormatResult renders a pipeline result as a chat reply.
func FormatResult(res *pipeline.Result, publicBaseURL string) string {
	var sb strings.Builder
	expr := res.Expression
	if expr == "" {
		expr = "(sin texto)"
	}
	fmt.Fprintf(&sb, "🧮 Expresión: %s\n", expr)
	fmt.Fprintf(&sb, "✅ Resultado: %s", res.Value.String())
	if publicBaseURL != "" && res.AnnotatedURL != "" {
		fmt.Fprintf(&sb, "\n🔍 Debug: %s%s", strings.TrimRight(publicBaseURL, "/"), res.AnnotatedURL)
	}
	return sb.String()
}

// ErrorText describes a pipeline error for chat users.
func ErrorText(err error) string {
	switch pipeline.Status(err) {
	case pipeline.StatusInvalidImage:
		return "No se pudo decodificar la imagen"
	case pipeline.StatusTimeout:
		return "Tiempo de detección agotado"
	default:
		return "Error al procesar la imagen"
	}
}
