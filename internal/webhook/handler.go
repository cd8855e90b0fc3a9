// AngelaMos | 2026
// handler.go

package webhook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/notesbot/internal/core"
	"github.com/carterperez-dev/notesbot/internal/lifecycle"
	"github.com/carterperez-dev/notesbot/internal/payment"
)

const maxNotificationBytes = 64 << 10

type Confirmer interface {
	ConfirmPayment(ctx context.Context, ev *payment.Event) (lifecycle.Outcome, error)
}

type Handler struct {
	confirmer Confirmer
	logger    *slog.Logger
}

func NewHandler(confirmer Confirmer, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{confirmer: confirmer, logger: logger}
}

// RegisterRoutes mounts the gateway callback at path. The gateway is
// unauthenticated, so the route gets its own limiter when one is given.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	path string,
	limiter func(http.Handler) http.Handler,
) {
	r.Group(func(r chi.Router) {
		if limiter != nil {
			r.Use(limiter)
		}
		r.Post(path, h.PaymentNotification)
	})
}

type NotificationResponse struct {
	Outcome lifecycle.Outcome `json:"outcome"`
}

// PaymentNotification answers 200 for every notification it could apply,
// including no-ops, 400 for payloads that fail the schema and 500 when
// the store or gateway failed so the gateway retries later.
func (h *Handler) PaymentNotification(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxNotificationBytes))
	if err != nil {
		core.BadRequest(w, "unreadable notification body")
		return
	}

	ev, err := payment.ParseNotification(body)
	if err != nil {
		h.logger.Warn("rejected payment notification", "error", err)
		core.BadRequest(w, "malformed notification")
		return
	}

	outcome, err := h.confirmer.ConfirmPayment(r.Context(), ev)
	if err != nil {
		h.logger.Error("apply payment notification",
			"payment_ref", ev.Reference,
			"status", ev.Status,
			"error", err,
		)
		if errors.Is(err, payment.ErrMalformedNotification) {
			core.BadRequest(w, "malformed notification")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	h.logger.Info("payment notification applied",
		"payment_ref", ev.Reference,
		"status", ev.Status,
		"outcome", outcome,
	)

	core.OK(w, NotificationResponse{Outcome: outcome})
}
