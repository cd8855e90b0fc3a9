// AngelaMos | 2026
// orchestrator.go

// Package lifecycle drives a note through payment, the reading queue and
// retirement. It is the only caller of the note store's status-changing
// methods.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/notesbot/internal/audit"
	"github.com/carterperez-dev/notesbot/internal/core"
	"github.com/carterperez-dev/notesbot/internal/identity"
	"github.com/carterperez-dev/notesbot/internal/metrics"
	"github.com/carterperez-dev/notesbot/internal/note"
	"github.com/carterperez-dev/notesbot/internal/payment"
)

const (
	notifyTimeout   = 15 * time.Second
	amountTolerance = 0.005
)

var (
	// ErrAlreadyTaken means another reader marked the note read first.
	ErrAlreadyTaken = errors.New("note already taken")
	ErrNotPending   = errors.New("note is not pending")
)

type Gateway interface {
	CreateIntent(
		ctx context.Context,
		amount float64,
		noteID, ownerID int64,
		returnURL string,
	) (*payment.Intent, error)
	QueryStatus(ctx context.Context, ref string) (*payment.PaymentStatus, error)
}

// Notifier tells a note's owner that it has been read.
type Notifier interface {
	NotifyRead(ctx context.Context, n *note.Note) error
}

type Config struct {
	MinDonation         float64
	MaxDonation         float64
	MaxNames            int
	ReturnURL           string
	VerifyNotifications bool
}

type Orchestrator struct {
	notes    note.Repository
	gateway  Gateway
	notifier Notifier
	audit    *audit.Logger
	metrics  metrics.Recorder
	logger   *slog.Logger
	cfg      Config

	notifying sync.WaitGroup
}

type Deps struct {
	Notes    note.Repository
	Gateway  Gateway
	Notifier Notifier
	Audit    *audit.Logger
	Metrics  metrics.Recorder
	Logger   *slog.Logger
}

func New(deps Deps, cfg Config) *Orchestrator {
	if deps.Metrics == nil {
		deps.Metrics = metrics.Noop()
	}
	if deps.Audit == nil {
		deps.Audit = audit.Discard()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	return &Orchestrator{
		notes:    deps.Notes,
		gateway:  deps.Gateway,
		notifier: deps.Notifier,
		audit:    deps.Audit,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
		cfg:      cfg,
	}
}

// SetNotifier wires the owner notifier once the chat transport exists.
func (o *Orchestrator) SetNotifier(n Notifier) {
	o.notifier = n
}

type Submission struct {
	Category    note.Category
	HealthNames []string
	ReposeNames []string
	Amount      float64
}

type SubmitResult struct {
	Note   *note.Note
	Intent *payment.Intent
}

// Submit persists a pending note and opens a payment for it. When the
// gateway call fails the note still exists: the result carries it next to
// the returned error, which wraps *payment.GatewayError where the gateway
// answered.
func (o *Orchestrator) Submit(
	ctx context.Context,
	owner *identity.Identity,
	in Submission,
) (res *SubmitResult, err error) {
	ctx, span := core.StartSpan(ctx, "lifecycle.Submit",
		attribute.String("note.category", string(in.Category)),
	)
	defer func() { core.EndSpan(span, err) }()

	if owner == nil {
		return nil, fmt.Errorf("submit: %w", core.ErrUnauthorized)
	}

	if err := o.validate(in); err != nil {
		return nil, err
	}

	n, err := o.notes.CreateNote(ctx, note.NewNote{
		OwnerID:     owner.ID,
		Category:    in.Category,
		HealthNames: in.HealthNames,
		ReposeNames: in.ReposeNames,
		Amount:      in.Amount,
	})
	if err != nil {
		return nil, fmt.Errorf("submit: %w", err)
	}
	n.Owner = owner

	o.audit.NoteCreated(ctx, n.ID, string(n.Category), len(n.Names), n.Amount)
	o.metrics.NoteCreated(string(n.Category))
	span.SetAttributes(attribute.Int64("note.id", n.ID))

	res = &SubmitResult{Note: n}

	intent, err := o.gateway.CreateIntent(ctx, n.Amount, n.ID, owner.ID, o.cfg.ReturnURL)
	if err != nil {
		o.audit.Error(ctx, "create_payment", err)
		return res, fmt.Errorf("submit: create payment: %w", err)
	}

	if err := o.notes.RecordPaymentIntent(ctx, n.ID, intent.Reference); err != nil {
		o.audit.Error(ctx, "record_payment_intent", err)
		return res, fmt.Errorf("submit: %w", err)
	}

	ref := intent.Reference
	n.PaymentRef = &ref
	res.Intent = intent

	o.audit.PaymentCreated(ctx, n.ID, ref, n.Amount)

	return res, nil
}

func (o *Orchestrator) validate(in Submission) error {
	if !in.Category.Valid() {
		return fmt.Errorf("submit: unknown category %q: %w", in.Category, core.ErrInvalidInput)
	}

	total := len(in.HealthNames) + len(in.ReposeNames)
	if total == 0 {
		return fmt.Errorf("submit: no names: %w", core.ErrInvalidInput)
	}
	if total > o.cfg.MaxNames {
		return fmt.Errorf("submit: %d names exceeds %d: %w", total, o.cfg.MaxNames, core.ErrInvalidInput)
	}

	for _, list := range [][]string{in.HealthNames, in.ReposeNames} {
		for _, name := range list {
			if strings.TrimSpace(name) == "" {
				return fmt.Errorf("submit: blank name: %w", core.ErrInvalidInput)
			}
		}
	}

	if in.Amount < o.cfg.MinDonation {
		return fmt.Errorf("submit: amount below minimum: %w", core.ErrInvalidInput)
	}
	if o.cfg.MaxDonation > 0 && in.Amount > o.cfg.MaxDonation {
		return fmt.Errorf("submit: amount above maximum: %w", core.ErrInvalidInput)
	}

	return nil
}

// Outcome reports what a payment notification did to its note.
type Outcome string

const (
	OutcomeQueued    Outcome = "queued"
	OutcomeAbandoned Outcome = "abandoned"
	OutcomeIgnored   Outcome = "ignored"
)

// ConfirmPayment applies a gateway notification. Replays, unknown
// references and events for notes that already moved on are ignored
// without error; only store or gateway failures are returned.
func (o *Orchestrator) ConfirmPayment(
	ctx context.Context,
	ev *payment.Event,
) (outcome Outcome, err error) {
	ctx, span := core.StartSpan(ctx, "lifecycle.ConfirmPayment",
		attribute.String("payment.ref", ev.Reference),
		attribute.String("payment.status", ev.Status),
	)
	defer func() {
		span.SetAttributes(attribute.String("lifecycle.outcome", string(outcome)))
		core.EndSpan(span, err)
	}()

	o.audit.PaymentStatus(ctx, ev.Reference, ev.Status, ev.Amount)
	o.metrics.PaymentNotification(ev.Status)

	if !ev.IsPayment() {
		return OutcomeIgnored, nil
	}

	switch ev.Status {
	case payment.StatusSucceeded:
		return o.applySucceeded(ctx, ev)
	case payment.StatusCanceled:
		return o.applyCanceled(ctx, ev)
	default:
		return OutcomeIgnored, nil
	}
}

func (o *Orchestrator) applySucceeded(ctx context.Context, ev *payment.Event) (Outcome, error) {
	n, err := o.resolve(ctx, ev)
	if err != nil || n == nil {
		return OutcomeIgnored, err
	}

	if n.Status != note.StatusPending {
		return OutcomeIgnored, nil
	}

	if math.Abs(n.Amount-ev.Amount) > amountTolerance {
		o.logger.Warn("payment amount does not match note",
			"note_id", n.ID,
			"payment_ref", ev.Reference,
			"expected", n.Amount,
			"received", ev.Amount,
		)
		return OutcomeIgnored, nil
	}

	if o.cfg.VerifyNotifications {
		st, err := o.gateway.QueryStatus(ctx, ev.Reference)
		if err != nil {
			return OutcomeIgnored, fmt.Errorf("confirm payment: verify: %w", err)
		}
		if !st.Settled {
			o.logger.Warn("notification not confirmed by gateway",
				"note_id", n.ID,
				"payment_ref", ev.Reference,
				"gateway_status", st.Status,
			)
			return OutcomeIgnored, nil
		}
	}

	applied, err := o.notes.ConfirmPayment(ctx, n.ID, ev.Reference)
	if err != nil {
		return OutcomeIgnored, fmt.Errorf("confirm payment: %w", err)
	}
	if !applied {
		return OutcomeIgnored, nil
	}

	o.audit.NoteQueued(ctx, n.ID, ev.Reference)
	o.metrics.NoteTransition(string(note.StatusQueued))

	return OutcomeQueued, nil
}

func (o *Orchestrator) applyCanceled(ctx context.Context, ev *payment.Event) (Outcome, error) {
	n, err := o.resolve(ctx, ev)
	if err != nil || n == nil {
		return OutcomeIgnored, err
	}

	if n.Status != note.StatusPending {
		return OutcomeIgnored, nil
	}

	applied, err := o.notes.Abandon(ctx, n.ID)
	if err != nil {
		return OutcomeIgnored, fmt.Errorf("abandon note: %w", err)
	}
	if !applied {
		return OutcomeIgnored, nil
	}

	o.audit.NoteAbandoned(ctx, n.ID, "payment_canceled")
	o.metrics.NoteTransition(string(note.StatusAbandoned))

	return OutcomeAbandoned, nil
}

// resolve finds the note a notification refers to. A reference the store
// has never seen is accepted only when the metadata names a pending note
// whose intent was never recorded; that reference is then recorded.
func (o *Orchestrator) resolve(ctx context.Context, ev *payment.Event) (*note.Note, error) {
	n, err := o.notes.FindByPaymentReference(ctx, ev.Reference)
	if err == nil {
		return n, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return nil, fmt.Errorf("confirm payment: %w", err)
	}

	if ev.NoteID == 0 {
		o.logger.Info("notification for unknown payment", "payment_ref", ev.Reference)
		return nil, nil
	}

	n, err = o.notes.FindByID(ctx, ev.NoteID)
	if errors.Is(err, core.ErrNotFound) {
		o.logger.Info("notification names unknown note",
			"payment_ref", ev.Reference,
			"note_id", ev.NoteID,
		)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("confirm payment: %w", err)
	}

	if n.Status != note.StatusPending || n.PaymentRef != nil {
		return nil, nil
	}

	if err := o.notes.RecordPaymentIntent(ctx, n.ID, ev.Reference); err != nil {
		if errors.Is(err, core.ErrConflict) || errors.Is(err, core.ErrDuplicateKey) {
			return nil, nil
		}
		return nil, fmt.Errorf("confirm payment: recover reference: %w", err)
	}

	ref := ev.Reference
	n.PaymentRef = &ref
	o.logger.Info("recovered payment reference from metadata",
		"note_id", n.ID,
		"payment_ref", ref,
	)

	return n, nil
}

func requireReader(actor *identity.Identity) error {
	if actor == nil || !actor.IsReader() {
		return core.ErrForbidden
	}
	return nil
}

// QueueStats is open to readers and administrators.
func (o *Orchestrator) QueueStats(ctx context.Context, actor *identity.Identity) (note.QueueStats, error) {
	if actor == nil || (!actor.IsReader() && !actor.IsAdmin()) {
		return note.QueueStats{}, fmt.Errorf("queue stats: %w", core.ErrForbidden)
	}

	stats, err := o.notes.QueueStats(ctx)
	if err != nil {
		return note.QueueStats{}, err
	}

	return stats, nil
}

// NextInQueue shows a reader the oldest queued note of a category. It does
// not claim the note.
func (o *Orchestrator) NextInQueue(
	ctx context.Context,
	reader *identity.Identity,
	category note.Category,
) (*note.Note, error) {
	if err := requireReader(reader); err != nil {
		return nil, fmt.Errorf("next in queue: %w", err)
	}
	if !category.Valid() {
		return nil, fmt.Errorf("next in queue: unknown category %q: %w", category, core.ErrInvalidInput)
	}

	return o.notes.DequeueOldest(ctx, category)
}

// MarkRead moves a queued note to read. Of several readers racing on the
// same note exactly one succeeds; the rest get ErrAlreadyTaken.
func (o *Orchestrator) MarkRead(
	ctx context.Context,
	reader *identity.Identity,
	noteID int64,
) (n *note.Note, err error) {
	if err := requireReader(reader); err != nil {
		return nil, fmt.Errorf("mark read: %w", err)
	}

	ctx, span := core.StartSpan(ctx, "lifecycle.MarkRead", attribute.Int64("note.id", noteID))
	defer func() { core.EndSpan(span, err) }()

	applied, err := o.notes.MarkRead(ctx, noteID, reader.Role.String())
	if err != nil {
		return nil, fmt.Errorf("mark read: %w", err)
	}

	n, err = o.notes.FindByID(ctx, noteID)
	if err != nil {
		return nil, fmt.Errorf("mark read: %w", err)
	}

	if !applied {
		return nil, fmt.Errorf("mark read: note %d is %s: %w", noteID, n.Status, ErrAlreadyTaken)
	}

	o.audit.NoteRead(ctx, n.ID, string(n.Category), reader.Role.String())
	o.metrics.NoteTransition(string(note.StatusRead))

	return n, nil
}

// Retire closes a read note. Retiring an already retired note is a no-op.
func (o *Orchestrator) Retire(
	ctx context.Context,
	reader *identity.Identity,
	noteID int64,
) (err error) {
	if err := requireReader(reader); err != nil {
		return fmt.Errorf("retire: %w", err)
	}

	ctx, span := core.StartSpan(ctx, "lifecycle.Retire", attribute.Int64("note.id", noteID))
	defer func() { core.EndSpan(span, err) }()

	applied, err := o.notes.Retire(ctx, noteID)
	if err != nil {
		return fmt.Errorf("retire: %w", err)
	}

	if !applied {
		n, err := o.notes.FindByID(ctx, noteID)
		if err != nil {
			return fmt.Errorf("retire: %w", err)
		}
		if n.Status == note.StatusRetired {
			return nil
		}
		return fmt.Errorf("retire: note %d is %s: %w", noteID, n.Status, core.ErrConflict)
	}

	o.audit.NoteRetired(ctx, noteID)
	o.metrics.NoteTransition(string(note.StatusRetired))

	return nil
}

// ConfirmRead is the reader's single action: mark read, tell the owner in
// the background, retire. A failed notification changes nothing.
func (o *Orchestrator) ConfirmRead(
	ctx context.Context,
	reader *identity.Identity,
	noteID int64,
) (*note.Note, error) {
	n, err := o.MarkRead(ctx, reader, noteID)
	if err != nil {
		return nil, err
	}

	o.notifyOwner(ctx, n)

	if err := o.Retire(ctx, reader, noteID); err != nil {
		return n, err
	}
	n.Status = note.StatusRetired

	return n, nil
}

func (o *Orchestrator) notifyOwner(ctx context.Context, n *note.Note) {
	if o.notifier == nil || n.Owner == nil {
		return
	}

	snapshot := *n
	n = &snapshot

	o.notifying.Add(1)
	go func() {
		defer o.notifying.Done()

		notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		defer cancel()

		if err := o.notifier.NotifyRead(notifyCtx, n); err != nil {
			o.metrics.NotifyFailed()
			o.logger.Warn("owner notification failed",
				"note_id", n.ID,
				"error", err,
			)
		}
	}()
}

// Wait blocks until every background owner notification has finished.
func (o *Orchestrator) Wait() {
	o.notifying.Wait()
}

// AbandonStale closes pending notes whose payment never completed.
func (o *Orchestrator) AbandonStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	count, err := o.notes.AbandonStalePending(ctx, olderThan)
	if err != nil {
		return 0, err
	}

	if count > 0 {
		o.audit.NotesAbandoned(ctx, count, "payment_expired")
		o.metrics.NotesAbandoned(count)
	}

	return count, nil
}
