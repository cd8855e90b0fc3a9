// AngelaMos | 2026
// notifier.go

package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/carterperez-dev/notesbot/internal/note"
)

var errNoOwner = errors.New("note has no owner")

// Notifier tells note owners that their note was read.
type Notifier struct {
	msg Messenger
	loc *time.Location
}

// NewNotifier renders read times in loc; nil means UTC.
func NewNotifier(msg Messenger, loc *time.Location) *Notifier {
	if loc == nil {
		loc = time.UTC
	}
	return &Notifier{msg: msg, loc: loc}
}

func (n *Notifier) NotifyRead(ctx context.Context, nt *note.Note) error {
	if nt.Owner == nil {
		return errNoOwner
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	shown := *nt
	if nt.ReadAt != nil {
		t := nt.ReadAt.In(n.loc)
		shown.ReadAt = &t
	}

	if _, err := n.msg.Send(tgbotapi.NewMessage(nt.Owner.Handle, readNoticeText(&shown))); err != nil {
		return fmt.Errorf("notify owner of note %d: %w", nt.ID, err)
	}

	return nil
}
