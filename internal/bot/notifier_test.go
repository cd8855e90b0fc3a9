// AngelaMos | 2026
// notifier_test.go

package bot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/notesbot/internal/identity"
	"github.com/carterperez-dev/notesbot/internal/note"
)

func TestNotifier_SendsReadNoticeInLocation(t *testing.T) {
	msg := &fakeMessenger{}
	loc := time.FixedZone("MSK", 3*60*60)
	n := NewNotifier(msg, loc)

	readAt := time.Date(2026, 3, 8, 7, 30, 0, 0, time.UTC)
	nt := &note.Note{
		ID:       12,
		Category: note.CategoryRepose,
		ReadAt:   &readAt,
		Owner:    &identity.Identity{ID: 1, Handle: 4242},
	}

	require.NoError(t, n.NotifyRead(context.Background(), nt))

	m := msg.lastMessage(t)
	assert.Equal(t, int64(4242), m.ChatID)
	assert.Equal(t, "✅ Ваша записка прочитана на богослужении.\n\n"+
		"Тип: Об упокоении\n"+
		"Дата прочтения: 08.03.2026 10:30", m.Text)

	assert.Equal(t, time.UTC, nt.ReadAt.Location())
}

func TestNotifier_DefaultsToUTC(t *testing.T) {
	msg := &fakeMessenger{}
	n := NewNotifier(msg, nil)

	readAt := time.Date(2026, 3, 8, 7, 30, 0, 0, time.UTC)
	require.NoError(t, n.NotifyRead(context.Background(), &note.Note{
		Category: note.CategoryHealth,
		ReadAt:   &readAt,
		Owner:    &identity.Identity{Handle: 1},
	}))

	assert.Contains(t, msg.lastMessage(t).Text, "Дата прочтения: 08.03.2026 07:30")
}

func TestNotifier_Errors(t *testing.T) {
	msg := &fakeMessenger{}
	n := NewNotifier(msg, nil)

	err := n.NotifyRead(context.Background(), &note.Note{ID: 1})
	assert.ErrorIs(t, err, errNoOwner)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = n.NotifyRead(ctx, &note.Note{ID: 1, Owner: &identity.Identity{Handle: 1}})
	assert.ErrorIs(t, err, context.Canceled)

	msg.sendErr = errors.New("telegram down")
	err = n.NotifyRead(context.Background(), &note.Note{ID: 1, Owner: &identity.Identity{Handle: 1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notify owner of note 1")

	assert.Empty(t, msg.messages())
}
