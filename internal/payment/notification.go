// AngelaMos | 2026
// notification.go

package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var ErrMalformedNotification = errors.New("malformed payment notification")

// Event is a gateway notification reduced to what the note lifecycle needs.
// NoteID is zero when the payment metadata does not name a note.
type Event struct {
	Kind      string
	Reference string
	Status    string
	Paid      bool
	Amount    float64
	Currency  string
	NoteID    int64
}

func (e *Event) IsPayment() bool {
	return strings.HasPrefix(e.Kind, "payment.")
}

type notificationBody struct {
	Type   string             `json:"type"   validate:"required,eq=notification"`
	Event  string             `json:"event"  validate:"required"`
	Object notificationObject `json:"object" validate:"required"`
}

type notificationObject struct {
	ID       string            `json:"id"       validate:"required,max=64"`
	Status   string            `json:"status"   validate:"required,oneof=pending waiting_for_capture succeeded canceled"`
	Paid     bool              `json:"paid"`
	Amount   amountBody        `json:"amount"   validate:"required"`
	Metadata map[string]string `json:"metadata"`
}

var notificationValidator = validator.New(validator.WithRequiredStructEnabled())

// ParseNotification checks a webhook payload against the notification
// schema. Every failure wraps ErrMalformedNotification.
func ParseNotification(raw []byte) (*Event, error) {
	var body notificationBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedNotification, err)
	}

	if err := notificationValidator.Struct(body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedNotification, err)
	}

	amount, err := strconv.ParseFloat(body.Object.Amount.Value, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: amount %q", ErrMalformedNotification, body.Object.Amount.Value)
	}

	event := &Event{
		Kind:      body.Event,
		Reference: body.Object.ID,
		Status:    body.Object.Status,
		Paid:      body.Object.Paid,
		Amount:    amount,
		Currency:  body.Object.Amount.Currency,
	}

	if raw, ok := body.Object.Metadata["note_id"]; ok && raw != "" {
		noteID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || noteID <= 0 {
			return nil, fmt.Errorf("%w: note_id %q", ErrMalformedNotification, raw)
		}
		event.NoteID = noteID
	}

	return event, nil
}
