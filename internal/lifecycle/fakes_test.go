// AngelaMos | 2026
// fakes_test.go

package lifecycle

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/carterperez-dev/notesbot/internal/core"
	"github.com/carterperez-dev/notesbot/internal/identity"
	"github.com/carterperez-dev/notesbot/internal/note"
	"github.com/carterperez-dev/notesbot/internal/payment"
)

type memStore struct {
	mu        sync.Mutex
	nextID    int64
	nextName  int64
	notes     map[int64]*note.Note
	owners    map[int64]*identity.Identity
	clock     time.Time
	mutations int
}

func newMemStore(owners ...*identity.Identity) *memStore {
	s := &memStore{
		notes:  make(map[int64]*note.Note),
		owners: make(map[int64]*identity.Identity),
		clock:  time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC),
	}
	for _, o := range owners {
		s.owners[o.ID] = o
	}
	return s
}

func (s *memStore) copyOf(n *note.Note) *note.Note {
	cp := *n
	cp.Names = append([]note.Name(nil), n.Names...)
	if o, ok := s.owners[n.OwnerID]; ok {
		oc := *o
		cp.Owner = &oc
	}
	return &cp
}

func (s *memStore) CreateNote(_ context.Context, in note.NewNote) (*note.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	s.clock = s.clock.Add(time.Second)
	n := &note.Note{
		ID:        s.nextID,
		OwnerID:   in.OwnerID,
		Category:  in.Category,
		Status:    note.StatusPending,
		Amount:    in.Amount,
		CreatedAt: s.clock,
	}

	pos := 0
	add := func(labels []string, c note.Category) {
		for _, l := range labels {
			s.nextName++
			n.Names = append(n.Names, note.Name{ID: s.nextName, NoteID: n.ID, Label: l, Category: c, Position: pos})
			pos++
		}
	}
	add(in.HealthNames, note.CategoryHealth)
	add(in.ReposeNames, note.CategoryRepose)

	s.notes[n.ID] = n
	return s.copyOf(n), nil
}

func (s *memStore) RecordPaymentIntent(_ context.Context, noteID int64, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notes[noteID]
	if !ok {
		return fmt.Errorf("record payment intent: %w", core.ErrNotFound)
	}
	if n.Status != note.StatusPending || (n.PaymentRef != nil && *n.PaymentRef != ref) {
		return fmt.Errorf("record payment intent: %w", core.ErrConflict)
	}
	r := ref
	n.PaymentRef = &r
	return nil
}

func (s *memStore) ConfirmPayment(_ context.Context, noteID int64, ref string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notes[noteID]
	if !ok || n.Status != note.StatusPending || n.PaymentRef == nil || *n.PaymentRef != ref {
		return false, nil
	}
	now := s.clock
	n.Status = note.StatusQueued
	n.QueuedAt = &now
	s.mutations++
	return true, nil
}

func (s *memStore) QueueDepth(_ context.Context, c note.Category) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	depth := 0
	for _, n := range s.notes {
		if n.Status == note.StatusQueued && (c == "" || n.Category == c) {
			depth++
		}
	}
	return depth, nil
}

func (s *memStore) QueueStats(ctx context.Context) (note.QueueStats, error) {
	h, _ := s.QueueDepth(ctx, note.CategoryHealth)
	r, _ := s.QueueDepth(ctx, note.CategoryRepose)
	return note.QueueStats{Total: h + r, Health: h, Repose: r}, nil
}

func (s *memStore) DequeueOldest(_ context.Context, c note.Category) (*note.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var queued []*note.Note
	for _, n := range s.notes {
		if n.Status == note.StatusQueued && n.Category == c {
			queued = append(queued, n)
		}
	}
	if len(queued) == 0 {
		return nil, fmt.Errorf("dequeue oldest: %w", core.ErrNotFound)
	}
	sort.Slice(queued, func(i, j int) bool {
		if queued[i].CreatedAt.Equal(queued[j].CreatedAt) {
			return queued[i].ID < queued[j].ID
		}
		return queued[i].CreatedAt.Before(queued[j].CreatedAt)
	})
	return s.copyOf(queued[0]), nil
}

func (s *memStore) MarkRead(_ context.Context, noteID int64, role string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notes[noteID]
	if !ok || n.Status != note.StatusQueued {
		return false, nil
	}
	now := s.clock.Add(time.Hour)
	n.Status = note.StatusRead
	n.ReadAt = &now
	n.ReaderRole = &role
	s.mutations++
	return true, nil
}

func (s *memStore) closeNote(noteID int64, from, to note.Status) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notes[noteID]
	if !ok || n.Status != from {
		return false
	}
	now := s.clock
	n.Status = to
	n.ClosedAt = &now
	n.Names = nil
	s.mutations++
	return true
}

func (s *memStore) Retire(_ context.Context, noteID int64) (bool, error) {
	return s.closeNote(noteID, note.StatusRead, note.StatusRetired), nil
}

func (s *memStore) Abandon(_ context.Context, noteID int64) (bool, error) {
	return s.closeNote(noteID, note.StatusPending, note.StatusAbandoned), nil
}

func (s *memStore) AbandonStalePending(_ context.Context, olderThan time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.clock.Add(-olderThan)
	var count int64
	for _, n := range s.notes {
		if n.Status == note.StatusPending && n.CreatedAt.Before(cutoff) {
			n.Status = note.StatusAbandoned
			n.Names = nil
			count++
		}
	}
	return count, nil
}

func (s *memStore) FindByPaymentReference(_ context.Context, ref string) (*note.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range s.notes {
		if n.PaymentRef != nil && *n.PaymentRef == ref {
			return s.copyOf(n), nil
		}
	}
	return nil, fmt.Errorf("find by payment reference: %w", core.ErrNotFound)
}

func (s *memStore) FindByID(_ context.Context, noteID int64) (*note.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notes[noteID]
	if !ok {
		return nil, fmt.Errorf("find note: %w", core.ErrNotFound)
	}
	return s.copyOf(n), nil
}

func (s *memStore) CountByStatus(_ context.Context) (map[note.Status]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := map[note.Status]int{}
	for _, n := range s.notes {
		counts[n.Status]++
	}
	return counts, nil
}

func (s *memStore) ListQueued(_ context.Context, c note.Category, limit int) ([]note.Summary, error) {
	return nil, nil
}

func (s *memStore) status(noteID int64) note.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notes[noteID].Status
}

func (s *memStore) advance(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = s.clock.Add(d)
}

type fakeGateway struct {
	mu        sync.Mutex
	createErr error
	created   []int64
	statuses  map[string]*payment.PaymentStatus
}

func (g *fakeGateway) CreateIntent(_ context.Context, _ float64, noteID, _ int64, _ string) (*payment.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.createErr != nil {
		return nil, g.createErr
	}
	g.created = append(g.created, noteID)
	return &payment.Intent{
		Reference:   fmt.Sprintf("pay-%d", noteID),
		Status:      payment.StatusPending,
		RedirectURL: fmt.Sprintf("https://pay.example/%d", noteID),
	}, nil
}

func (g *fakeGateway) QueryStatus(_ context.Context, ref string) (*payment.PaymentStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	st, ok := g.statuses[ref]
	if !ok {
		return nil, &payment.GatewayError{StatusCode: 404, Code: "not_found"}
	}
	return st, nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	err      error
	notified []int64
}

func (f *fakeNotifier) NotifyRead(_ context.Context, n *note.Note) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.notified = append(f.notified, n.ID)
	return f.err
}

func (f *fakeNotifier) calls() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.notified...)
}
