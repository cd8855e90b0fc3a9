// AngelaMos | 2026
// entity.go

package note

import (
	"fmt"
	"time"

	"github.com/carterperez-dev/notesbot/internal/core"
	"github.com/carterperez-dev/notesbot/internal/identity"
)

type Category string

const (
	CategoryHealth Category = "for_health"
	CategoryRepose Category = "for_repose"
)

func (c Category) Valid() bool {
	return c == CategoryHealth || c == CategoryRepose
}

func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", fmt.Errorf("parse category %q: %w", s, core.ErrInvalidInput)
	}
	return c, nil
}

// Status is the lifecycle position of a note:
// pending -> queued -> read -> retired, or pending -> abandoned.
type Status string

const (
	StatusPending   Status = "pending"
	StatusQueued    Status = "queued"
	StatusRead      Status = "read"
	StatusRetired   Status = "retired"
	StatusAbandoned Status = "abandoned"
)

type Name struct {
	ID       int64    `db:"id"`
	NoteID   int64    `db:"note_id"`
	Label    string   `db:"label"`
	Category Category `db:"category"`
	Position int      `db:"position"`
}

type Note struct {
	ID         int64      `db:"id"`
	OwnerID    int64      `db:"owner_id"`
	Category   Category   `db:"category"`
	Status     Status     `db:"status"`
	PaymentRef *string    `db:"payment_ref"`
	Amount     float64    `db:"amount"`
	CreatedAt  time.Time  `db:"created_at"`
	QueuedAt   *time.Time `db:"queued_at"`
	ReadAt     *time.Time `db:"read_at"`
	ReaderRole *string    `db:"reader_role"`
	ClosedAt   *time.Time `db:"closed_at"`

	Names []Name             `db:"-"`
	Owner *identity.Identity `db:"-"`
}

func (n *Note) NamesFor(c Category) []string {
	var out []string
	for _, name := range n.Names {
		if name.Category == c {
			out = append(out, name.Label)
		}
	}
	return out
}

func (n *Note) Reference() string {
	if n.PaymentRef == nil {
		return ""
	}
	return *n.PaymentRef
}

// NewNote is the validated input for CreateNote.
type NewNote struct {
	OwnerID     int64
	Category    Category
	HealthNames []string
	ReposeNames []string
	Amount      float64
}

func (n NewNote) NameCount() int {
	return len(n.HealthNames) + len(n.ReposeNames)
}

type QueueStats struct {
	Total  int `json:"total"`
	Health int `json:"for_health"`
	Repose int `json:"for_repose"`
}

// Summary is a note without its names, safe to expose to operators.
type Summary struct {
	ID        int64     `db:"id"         json:"id"`
	Category  Category  `db:"category"   json:"category"`
	Status    Status    `db:"status"     json:"status"`
	Amount    float64   `db:"amount"     json:"amount"`
	NameCount int       `db:"name_count" json:"name_count"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
