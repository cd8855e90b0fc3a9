// AngelaMos | 2026
// audit.go

// Package audit writes the operational trail of note and role changes.
// Records carry ids, categories, amounts and pseudonymised handles; they
// never carry the names written in a note.
package audit

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/carterperez-dev/notesbot/internal/config"
	"github.com/carterperez-dev/notesbot/internal/core"
)

type Logger struct {
	log    *slog.Logger
	pseudo *core.Pseudonymizer
	closer io.Closer
}

func New(cfg config.AuditConfig) (*Logger, error) {
	if cfg.Path == "" {
		return NewWithWriter(os.Stdout, cfg.Salt), nil
	}

	f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}

	l := NewWithWriter(f, cfg.Salt)
	l.closer = f
	return l, nil
}

func NewWithWriter(w io.Writer, salt string) *Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo})

	return &Logger{
		log:    slog.New(handler).With("log", "operations"),
		pseudo: core.NewPseudonymizer(salt),
	}
}

// Discard returns a logger that drops every record.
func Discard() *Logger {
	return NewWithWriter(io.Discard, "")
}

func (l *Logger) Close() error {
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}

func (l *Logger) NoteCreated(
	ctx context.Context,
	noteID int64,
	category string,
	names int,
	amount float64,
) {
	l.log.InfoContext(ctx, "note created",
		"note_id", noteID,
		"category", category,
		"names_count", names,
		"amount", formatAmount(amount),
	)
}

func (l *Logger) PaymentCreated(ctx context.Context, noteID int64, ref string, amount float64) {
	l.log.InfoContext(ctx, "payment created",
		"note_id", noteID,
		"payment_ref", ref,
		"amount", formatAmount(amount),
	)
}

func (l *Logger) PaymentStatus(ctx context.Context, ref, status string, amount float64) {
	l.log.InfoContext(ctx, "payment status",
		"payment_ref", ref,
		"status", status,
		"amount", formatAmount(amount),
	)
}

func (l *Logger) NoteQueued(ctx context.Context, noteID int64, ref string) {
	l.log.InfoContext(ctx, "note queued",
		"note_id", noteID,
		"payment_ref", ref,
	)
}

func (l *Logger) NoteRead(ctx context.Context, noteID int64, category, readerRole string) {
	l.log.InfoContext(ctx, "note read",
		"note_id", noteID,
		"category", category,
		"reader_role", readerRole,
	)
}

func (l *Logger) NoteRetired(ctx context.Context, noteID int64) {
	l.log.InfoContext(ctx, "note retired", "note_id", noteID)
}

func (l *Logger) NoteAbandoned(ctx context.Context, noteID int64, reason string) {
	l.log.InfoContext(ctx, "note abandoned",
		"note_id", noteID,
		"reason", reason,
	)
}

func (l *Logger) NotesAbandoned(ctx context.Context, count int64, reason string) {
	l.log.InfoContext(ctx, "notes abandoned",
		"count", count,
		"reason", reason,
	)
}

func (l *Logger) RoleChanged(ctx context.Context, handle int64, oldRole, newRole string) {
	l.log.InfoContext(ctx, "role changed",
		"subject", l.pseudo.Handle(handle),
		"old_role", oldRole,
		"new_role", newRole,
	)
}

func (l *Logger) Error(ctx context.Context, operation string, err error) {
	l.log.ErrorContext(ctx, "operation failed",
		"operation", operation,
		"error", err.Error(),
	)
}

func formatAmount(amount float64) string {
	return fmt.Sprintf("%.2f", amount)
}
