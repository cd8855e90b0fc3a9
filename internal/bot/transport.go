// AngelaMos | 2026
// transport.go

package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const maxUpdateBytes = 1 << 20

// Poll feeds long-polling updates to d until ctx ends. Any webhook still
// registered with Telegram is removed first.
func Poll(ctx context.Context, api *tgbotapi.BotAPI, d *Dispatcher, timeout int, logger *slog.Logger) error {
	if _, err := api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = timeout

	updates := api.GetUpdatesChan(u)
	defer api.StopReceivingUpdates()

	logger.Info("telegram long polling started", "timeout_s", timeout)

	for {
		select {
		case <-ctx.Done():
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			if !d.Enqueue(ctx, upd) {
				return nil
			}
		}
	}
}

// RegisterWebhook points Telegram at url.
func RegisterWebhook(api *tgbotapi.BotAPI, url string) error {
	wh, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return fmt.Errorf("build webhook config: %w", err)
	}

	if _, err := api.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}

	return nil
}

// WebhookHandler accepts updates pushed by Telegram. Updates are queued
// and acknowledged at once; Telegram only needs a 2xx.
func WebhookHandler(d *Dispatcher, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxUpdateBytes))
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		var upd tgbotapi.Update
		if err := json.Unmarshal(body, &upd); err != nil {
			logger.Warn("malformed telegram update", "error", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		if !d.Enqueue(r.Context(), upd) {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		w.WriteHeader(http.StatusOK)
	}
}
