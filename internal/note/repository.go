// AngelaMos | 2026
// repository.go

package note

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/carterperez-dev/notesbot/internal/core"
	"github.com/carterperez-dev/notesbot/internal/identity"
)

// Repository owns note rows and their names. Status-changing methods are
// conditional updates: they report false, not an error, when the note is
// not in the state the transition starts from.
type Repository interface {
	CreateNote(ctx context.Context, in NewNote) (*Note, error)
	RecordPaymentIntent(ctx context.Context, noteID int64, ref string) error
	ConfirmPayment(ctx context.Context, noteID int64, ref string) (bool, error)
	QueueDepth(ctx context.Context, category Category) (int, error)
	QueueStats(ctx context.Context) (QueueStats, error)
	DequeueOldest(ctx context.Context, category Category) (*Note, error)
	MarkRead(ctx context.Context, noteID int64, readerRole string) (bool, error)
	Retire(ctx context.Context, noteID int64) (bool, error)
	Abandon(ctx context.Context, noteID int64) (bool, error)
	AbandonStalePending(ctx context.Context, olderThan time.Duration) (int64, error)
	FindByPaymentReference(ctx context.Context, ref string) (*Note, error)
	FindByID(ctx context.Context, noteID int64) (*Note, error)
	CountByStatus(ctx context.Context) (map[Status]int, error)
	ListQueued(ctx context.Context, category Category, limit int) ([]Summary, error)
}

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

const noteColumns = `id, owner_id, category, status, payment_ref, amount::float8 AS amount,
		created_at, queued_at, read_at, reader_role, closed_at`

const noteWithOwner = `
		SELECT n.id, n.owner_id, n.category, n.status, n.payment_ref,
		       n.amount::float8 AS amount, n.created_at, n.queued_at, n.read_at,
		       n.reader_role, n.closed_at,
		       i.handle AS owner_handle, i.label AS owner_label, i.role AS owner_role
		FROM notes n
		JOIN identities i ON i.id = n.owner_id`

type noteRow struct {
	Note
	OwnerHandle int64         `db:"owner_handle"`
	OwnerLabel  *string       `db:"owner_label"`
	OwnerRole   identity.Role `db:"owner_role"`
}

func (r noteRow) toNote() *Note {
	n := r.Note
	n.Owner = &identity.Identity{
		ID:     n.OwnerID,
		Handle: r.OwnerHandle,
		Label:  r.OwnerLabel,
		Role:   r.OwnerRole,
	}
	return &n
}

// CreateNote persists the note and every name in one transaction.
func (r *repository) CreateNote(ctx context.Context, in NewNote) (*Note, error) {
	if in.NameCount() == 0 {
		return nil, fmt.Errorf("create note: no names: %w", core.ErrInvalidInput)
	}

	var created Note
	err := core.InTx(ctx, r.db, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO notes (owner_id, category, amount)
			VALUES ($1, $2, $3)
			RETURNING ` + noteColumns

		if err := tx.GetContext(ctx, &created, query, in.OwnerID, in.Category, in.Amount); err != nil {
			return fmt.Errorf("insert note: %w", err)
		}

		position := 0
		insert := func(label string, c Category) error {
			name := Name{NoteID: created.ID, Label: label, Category: c, Position: position}
			err := tx.GetContext(ctx, &name.ID, `
				INSERT INTO note_names (note_id, label, category, position)
				VALUES ($1, $2, $3, $4)
				RETURNING id`,
				name.NoteID, name.Label, name.Category, name.Position,
			)
			if err != nil {
				return fmt.Errorf("insert note name: %w", err)
			}
			created.Names = append(created.Names, name)
			position++
			return nil
		}

		for _, label := range in.HealthNames {
			if err := insert(label, CategoryHealth); err != nil {
				return err
			}
		}
		for _, label := range in.ReposeNames {
			if err := insert(label, CategoryRepose); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create note: %w", err)
	}

	return &created, nil
}

// RecordPaymentIntent stores the gateway reference on a pending note. It
// is idempotent for the same reference and refuses to overwrite another.
func (r *repository) RecordPaymentIntent(ctx context.Context, noteID int64, ref string) error {
	query := `
		UPDATE notes
		SET payment_ref = $2
		WHERE id = $1 AND status = 'pending'
		  AND (payment_ref IS NULL OR payment_ref = $2)`

	result, err := r.db.ExecContext(ctx, query, noteID, ref)
	if err != nil {
		if core.IsDuplicateKeyError(err) {
			return fmt.Errorf("record payment intent: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("record payment intent: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("record payment intent: %w", err)
	}

	if rows == 0 {
		exists, err := r.exists(ctx, noteID)
		if err != nil {
			return fmt.Errorf("record payment intent: %w", err)
		}
		if !exists {
			return fmt.Errorf("record payment intent: %w", core.ErrNotFound)
		}
		return fmt.Errorf("record payment intent: %w", core.ErrConflict)
	}

	return nil
}

func (r *repository) ConfirmPayment(ctx context.Context, noteID int64, ref string) (bool, error) {
	query := `
		UPDATE notes
		SET status = 'queued', queued_at = NOW()
		WHERE id = $1 AND status = 'pending' AND payment_ref = $2`

	return r.transition(ctx, "confirm payment", query, noteID, ref)
}

// QueueDepth counts queued notes. An empty category counts all of them.
func (r *repository) QueueDepth(ctx context.Context, category Category) (int, error) {
	query := `SELECT COUNT(*) FROM notes WHERE status = 'queued'`
	args := []any{}
	if category != "" {
		query += ` AND category = $1`
		args = append(args, category)
	}

	var depth int
	if err := r.db.GetContext(ctx, &depth, query, args...); err != nil {
		return 0, fmt.Errorf("queue depth: %w", err)
	}

	return depth, nil
}

func (r *repository) QueueStats(ctx context.Context) (QueueStats, error) {
	query := `
		SELECT category, COUNT(*) AS count
		FROM notes
		WHERE status = 'queued'
		GROUP BY category`

	var rows []struct {
		Category Category `db:"category"`
		Count    int      `db:"count"`
	}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return QueueStats{}, fmt.Errorf("queue stats: %w", err)
	}

	var stats QueueStats
	for _, row := range rows {
		switch row.Category {
		case CategoryHealth:
			stats.Health = row.Count
		case CategoryRepose:
			stats.Repose = row.Count
		}
		stats.Total += row.Count
	}

	return stats, nil
}

// DequeueOldest returns the oldest queued note of a category without
// changing it. Concurrent callers see the same note until one of them
// marks it read.
func (r *repository) DequeueOldest(ctx context.Context, category Category) (*Note, error) {
	query := noteWithOwner + `
		WHERE n.status = 'queued' AND n.category = $1
		ORDER BY n.created_at, n.id
		LIMIT 1`

	return r.getOne(ctx, "dequeue oldest", query, category)
}

func (r *repository) MarkRead(ctx context.Context, noteID int64, readerRole string) (bool, error) {
	query := `
		UPDATE notes
		SET status = 'read', read_at = NOW(), reader_role = $2
		WHERE id = $1 AND status = 'queued'`

	return r.transition(ctx, "mark read", query, noteID, readerRole)
}

// Retire closes a read note and purges its names.
func (r *repository) Retire(ctx context.Context, noteID int64) (bool, error) {
	return r.close(ctx, "retire", noteID, StatusRead, StatusRetired)
}

// Abandon closes a pending note and purges its names.
func (r *repository) Abandon(ctx context.Context, noteID int64) (bool, error) {
	return r.close(ctx, "abandon", noteID, StatusPending, StatusAbandoned)
}

func (r *repository) close(
	ctx context.Context,
	op string,
	noteID int64,
	from, to Status,
) (bool, error) {
	var applied bool
	err := core.InTx(ctx, r.db, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE notes
			SET status = $3, closed_at = NOW()
			WHERE id = $1 AND status = $2`,
			noteID, from, to,
		)
		if err != nil {
			return err
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return nil
		}
		applied = true

		_, err = tx.ExecContext(ctx, `DELETE FROM note_names WHERE note_id = $1`, noteID)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return applied, nil
}

func (r *repository) AbandonStalePending(ctx context.Context, olderThan time.Duration) (int64, error) {
	query := `
		WITH stale AS (
			UPDATE notes
			SET status = 'abandoned', closed_at = NOW()
			WHERE status = 'pending' AND created_at < NOW() - make_interval(secs => $1)
			RETURNING id
		), purged AS (
			DELETE FROM note_names WHERE note_id IN (SELECT id FROM stale)
		)
		SELECT COUNT(*) FROM stale`

	var count int64
	if err := r.db.GetContext(ctx, &count, query, olderThan.Seconds()); err != nil {
		return 0, fmt.Errorf("abandon stale pending: %w", err)
	}

	return count, nil
}

func (r *repository) FindByPaymentReference(ctx context.Context, ref string) (*Note, error) {
	return r.getOne(ctx, "find by payment reference", noteWithOwner+` WHERE n.payment_ref = $1`, ref)
}

func (r *repository) FindByID(ctx context.Context, noteID int64) (*Note, error) {
	return r.getOne(ctx, "find note", noteWithOwner+` WHERE n.id = $1`, noteID)
}

func (r *repository) CountByStatus(ctx context.Context) (map[Status]int, error) {
	query := `SELECT status, COUNT(*) AS count FROM notes GROUP BY status`

	var rows []struct {
		Status Status `db:"status"`
		Count  int    `db:"count"`
	}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("count notes by status: %w", err)
	}

	counts := make(map[Status]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}

	return counts, nil
}

func (r *repository) ListQueued(ctx context.Context, category Category, limit int) ([]Summary, error) {
	query := `
		SELECT n.id, n.category, n.status, n.amount::float8 AS amount, n.created_at,
		       (SELECT COUNT(*) FROM note_names nn WHERE nn.note_id = n.id) AS name_count
		FROM notes n
		WHERE n.status = 'queued' AND ($1 = '' OR n.category = $1)
		ORDER BY n.created_at, n.id
		LIMIT $2`

	var out []Summary
	if err := r.db.SelectContext(ctx, &out, query, string(category), limit); err != nil {
		return nil, fmt.Errorf("list queued notes: %w", err)
	}

	return out, nil
}

func (r *repository) getOne(ctx context.Context, op, query string, args ...any) (*Note, error) {
	var row noteRow
	err := r.db.GetContext(ctx, &row, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	n := row.toNote()
	if err := r.db.SelectContext(ctx, &n.Names, `
		SELECT id, note_id, label, category, position
		FROM note_names
		WHERE note_id = $1
		ORDER BY position`, n.ID); err != nil {
		return nil, fmt.Errorf("%s: load names: %w", op, err)
	}

	return n, nil
}

func (r *repository) transition(ctx context.Context, op, query string, args ...any) (bool, error) {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return rows == 1, nil
}

func (r *repository) exists(ctx context.Context, noteID int64) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM notes WHERE id = $1)`, noteID)
	return exists, err
}
