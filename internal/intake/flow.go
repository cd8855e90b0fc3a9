// AngelaMos | 2026
// flow.go

// Package intake holds the per-person conversation state used to collect a
// note, and the admin role dialogue, between chat messages.
package intake

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/carterperez-dev/notesbot/internal/lifecycle"
	"github.com/carterperez-dev/notesbot/internal/note"
)

type Step string

const (
	StepIdle           Step = "idle"
	StepChoosingType   Step = "choosing_type"
	StepHealthNames    Step = "health_names"
	StepReposeNames    Step = "repose_names"
	StepAmount         Step = "amount"
	StepConfirming     Step = "confirming"
	StepAwaitingHandle Step = "admin_awaiting_handle"
	StepAwaitingRole   Step = "admin_awaiting_role"
)

// ErrUnexpectedStep means an input arrived that the current step does not
// accept, such as a stale category button.
var ErrUnexpectedStep = errors.New("unexpected step")

type Limits struct {
	MaxNames  int
	MinAmount float64
	MaxAmount float64
}

type Flow struct {
	Step         Step          `json:"step"`
	Category     note.Category `json:"category,omitempty"`
	HealthNames  []string      `json:"health_names,omitempty"`
	ReposeNames  []string      `json:"repose_names,omitempty"`
	Amount       float64       `json:"amount,omitempty"`
	TargetHandle int64         `json:"target_handle,omitempty"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

func NewFlow() *Flow {
	return &Flow{Step: StepIdle}
}

func (f *Flow) Reset() {
	*f = Flow{Step: StepIdle}
}

func (f *Flow) Idle() bool {
	return f.Step == "" || f.Step == StepIdle
}

func (f *Flow) expect(steps ...Step) error {
	for _, s := range steps {
		if f.Step == s {
			return nil
		}
	}
	return ErrUnexpectedStep
}

// Begin starts a new note, discarding anything collected before.
func (f *Flow) Begin() {
	f.Reset()
	f.Step = StepChoosingType
}

// ChooseCategory records the category picked from the keyboard. Names are
// always collected health first, then repose.
func (f *Flow) ChooseCategory(c note.Category) error {
	if err := f.expect(StepChoosingType); err != nil {
		return err
	}
	if !c.Valid() {
		return invalid("Неизвестный тип записки")
	}

	f.Category = c
	f.HealthNames = nil
	f.ReposeNames = nil
	f.Step = StepHealthNames
	return nil
}

func (f *Flow) NameCount() int {
	return len(f.HealthNames) + len(f.ReposeNames)
}

// AddNames appends the names in text to the list of the current step and
// returns the size of that list.
func (f *Flow) AddNames(text string, limits Limits) (int, error) {
	if err := f.expect(StepHealthNames, StepReposeNames); err != nil {
		return 0, err
	}

	names, err := ParseNames(text)
	if err != nil {
		return 0, err
	}

	if f.NameCount()+len(names) > limits.MaxNames {
		return 0, invalid("Превышено максимальное количество имен: %d", limits.MaxNames)
	}

	if f.Step == StepHealthNames {
		f.HealthNames = append(f.HealthNames, names...)
		return len(f.HealthNames), nil
	}

	f.ReposeNames = append(f.ReposeNames, names...)
	return len(f.ReposeNames), nil
}

// Advance moves from health names to repose names, and from repose names
// to the amount once at least one name exists.
func (f *Flow) Advance() error {
	switch f.Step {
	case StepHealthNames:
		f.Step = StepReposeNames
		return nil
	case StepReposeNames:
		if f.NameCount() == 0 {
			return invalid("Необходимо указать хотя бы одно имя.")
		}
		f.Step = StepAmount
		return nil
	default:
		return ErrUnexpectedStep
	}
}

// SetAmount records the donation and settles the primary category: the
// chosen one when both lists have names, otherwise the non-empty list's.
func (f *Flow) SetAmount(text string, limits Limits) error {
	if err := f.expect(StepAmount); err != nil {
		return err
	}

	amount, err := ParseAmount(text, limits)
	if err != nil {
		return err
	}

	f.Amount = amount
	switch {
	case len(f.HealthNames) > 0 && len(f.ReposeNames) > 0:
	case len(f.HealthNames) > 0:
		f.Category = note.CategoryHealth
	case len(f.ReposeNames) > 0:
		f.Category = note.CategoryRepose
	}
	f.Step = StepConfirming
	return nil
}

// Submission returns the collected note once the flow reached confirmation.
func (f *Flow) Submission() (lifecycle.Submission, error) {
	if err := f.expect(StepConfirming); err != nil {
		return lifecycle.Submission{}, err
	}

	return lifecycle.Submission{
		Category:    f.Category,
		HealthNames: append([]string(nil), f.HealthNames...),
		ReposeNames: append([]string(nil), f.ReposeNames...),
		Amount:      f.Amount,
	}, nil
}

func (f *Flow) BeginRoleChange() {
	f.Reset()
	f.Step = StepAwaitingHandle
}

// SetTarget parses the chat handle whose role is about to change.
func (f *Flow) SetTarget(text string) error {
	if err := f.expect(StepAwaitingHandle); err != nil {
		return err
	}

	handle, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil || handle <= 0 {
		return invalid("❌ Неверный формат ID. Введите числовой ID.")
	}

	f.TargetHandle = handle
	f.Step = StepAwaitingRole
	return nil
}
