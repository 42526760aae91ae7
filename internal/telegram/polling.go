package telegram

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	pollTimeoutSec = 30
	minRetryDelay  = time.Second
	maxRetryDelay  = 15 * time.Second
)

var reRetryAfter = regexp.MustCompile(`(?i)retry after\s+(\d+)`)

// Run long-polls for updates until ctx is cancelled. Updates are handled one
// at a time in arrival order.
func (b *Bot) Run(ctx context.Context) error {
	offset := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		u := tgbotapi.NewUpdate(offset)
		u.Timeout = pollTimeoutSec
		updates, err := b.api.GetUpdates(u)
		if err != nil {
			d := min(max(retryDelay(err), minRetryDelay), maxRetryDelay)
			slog.Warn("Telegram polling failed", "error", err, "retry_in", d)
			if !sleep(ctx, d) {
				return ctx.Err()
			}
			continue
		}

		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			b.HandleUpdate(ctx, upd)
		}
	}
}

// retryDelay derives a backoff from a polling error. Telegram's 429 replies
// carry "retry after N".
func retryDelay(err error) time.Duration {
	s := strings.ToLower(err.Error())
	if strings.Contains(s, "too many requests") {
		if m := reRetryAfter.FindStringSubmatch(s); len(m) == 2 {
			if n, _ := strconv.Atoi(m[1]); n > 0 {
				return time.Duration(n) * time.Second
			}
		}
		return 3 * time.Second
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return 2 * time.Second
	}
	return time.Second
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
