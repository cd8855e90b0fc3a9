// AngelaMos | 2026
// repository_test.go

package note

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/notesbot/internal/core"
	"github.com/carterperez-dev/notesbot/internal/identity"
)

var (
	noteCols = []string{
		"id", "owner_id", "category", "status", "payment_ref", "amount",
		"created_at", "queued_at", "read_at", "reader_role", "closed_at",
	}
	noteOwnerCols = append(append([]string{}, noteCols...), "owner_handle", "owner_label", "owner_role")
	nameCols      = []string{"id", "note_id", "label", "category", "position"}
)

func newRepoWithMock(t *testing.T) (Repository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewRepository(sqlx.NewDb(db, "postgres")), mock
}

func TestCreateNote_PersistsNamesInOneTransaction(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)INSERT INTO notes \(owner_id, category, amount\).*RETURNING`).
		WithArgs(int64(4), "for_health", 150.0).
		WillReturnRows(sqlmock.NewRows(noteCols).
			AddRow(10, 4, "for_health", "pending", nil, 150.0, now, nil, nil, nil, nil))
	for i, label := range []string{"Анна", "Пётр", "Иоанн"} {
		category := "for_health"
		if i == 2 {
			category = "for_repose"
		}
		mock.ExpectQuery(`(?s)INSERT INTO note_names`).
			WithArgs(int64(10), label, category, i).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(100 + i))
	}
	mock.ExpectCommit()

	n, err := repo.CreateNote(context.Background(), NewNote{
		OwnerID:     4,
		Category:    CategoryHealth,
		HealthNames: []string{"Анна", "Пётр"},
		ReposeNames: []string{"Иоанн"},
		Amount:      150,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, n.Status)
	require.Len(t, n.Names, 3)
	assert.Equal(t, []string{"Анна", "Пётр"}, n.NamesFor(CategoryHealth))
	assert.Equal(t, []string{"Иоанн"}, n.NamesFor(CategoryRepose))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateNote_RollsBackWhenNameInsertFails(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)INSERT INTO notes`).
		WillReturnRows(sqlmock.NewRows(noteCols).
			AddRow(10, 4, "for_health", "pending", nil, 150.0, now, nil, nil, nil, nil))
	mock.ExpectQuery(`(?s)INSERT INTO note_names`).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := repo.CreateNote(context.Background(), NewNote{
		OwnerID:     4,
		Category:    CategoryHealth,
		HealthNames: []string{"Анна"},
		Amount:      150,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateNote_RequiresNames(t *testing.T) {
	repo, _ := newRepoWithMock(t)

	_, err := repo.CreateNote(context.Background(), NewNote{OwnerID: 1, Category: CategoryHealth, Amount: 100})
	require.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestRecordPaymentIntent(t *testing.T) {
	t.Run("stored", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectExec(`(?s)UPDATE notes\s+SET payment_ref = \$2`).
			WithArgs(int64(10), "pay-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.RecordPaymentIntent(context.Background(), 10, "pay-1"))
	})

	t.Run("missing note", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectExec(`(?s)UPDATE notes\s+SET payment_ref`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT EXISTS`).
			WithArgs(int64(10)).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		err := repo.RecordPaymentIntent(context.Background(), 10, "pay-1")
		require.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("other reference already set", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectExec(`(?s)UPDATE notes\s+SET payment_ref`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT EXISTS`).
			WithArgs(int64(10)).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		err := repo.RecordPaymentIntent(context.Background(), 10, "pay-2")
		require.ErrorIs(t, err, core.ErrConflict)
	})
}

func TestConfirmPayment_GuardedByStatusAndReference(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`(?s)SET status = 'queued', queued_at = NOW\(\)\s+WHERE id = \$1 AND status = 'pending' AND payment_ref = \$2`).
		WithArgs(int64(10), "pay-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`(?s)SET status = 'queued'`).
		WithArgs(int64(10), "pay-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	applied, err := repo.ConfirmPayment(context.Background(), 10, "pay-1")
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = repo.ConfirmPayment(context.Background(), 10, "pay-1")
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestMarkRead_ConditionalOnQueued(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`(?s)SET status = 'read', read_at = NOW\(\), reader_role = \$2\s+WHERE id = \$1 AND status = 'queued'`).
		WithArgs(int64(10), "priest").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`(?s)SET status = 'read'`).
		WithArgs(int64(10), "altar_server").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.MarkRead(context.Background(), 10, "priest")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkRead(context.Background(), 10, "altar_server")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDequeueOldest_LoadsNamesAndOwner(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now()

	mock.ExpectQuery(`(?s)FROM notes n\s+JOIN identities i.*WHERE n.status = 'queued' AND n.category = \$1\s+ORDER BY n.created_at, n.id\s+LIMIT 1`).
		WithArgs("for_health").
		WillReturnRows(sqlmock.NewRows(noteOwnerCols).
			AddRow(10, 4, "for_health", "queued", "pay-1", 150.0, now, now, nil, nil, nil, 555, "anna", "requester"))
	mock.ExpectQuery(`(?s)FROM note_names\s+WHERE note_id = \$1\s+ORDER BY position`).
		WithArgs(int64(10)).
		WillReturnRows(sqlmock.NewRows(nameCols).
			AddRow(1, 10, "Анна", "for_health", 0).
			AddRow(2, 10, "Иоанн", "for_repose", 1))

	n, err := repo.DequeueOldest(context.Background(), CategoryHealth)
	require.NoError(t, err)
	assert.Equal(t, int64(10), n.ID)
	assert.Equal(t, "pay-1", n.Reference())
	require.NotNil(t, n.Owner)
	assert.Equal(t, int64(555), n.Owner.Handle)
	assert.Equal(t, identity.RoleRequester, n.Owner.Role)
	assert.Len(t, n.Names, 2)
}

func TestDequeueOldest_EmptyQueue(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)WHERE n.status = 'queued'`).
		WithArgs("for_repose").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.DequeueOldest(context.Background(), CategoryRepose)
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestQueueDepthAndStats(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM notes WHERE status = 'queued' AND category = \$1`).
		WithArgs("for_health").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(`(?s)SELECT category, COUNT\(\*\) AS count\s+FROM notes\s+WHERE status = 'queued'\s+GROUP BY category`).
		WillReturnRows(sqlmock.NewRows([]string{"category", "count"}).
			AddRow("for_health", 3).
			AddRow("for_repose", 2))

	depth, err := repo.QueueDepth(context.Background(), CategoryHealth)
	require.NoError(t, err)
	assert.Equal(t, 3, depth)

	stats, err := repo.QueueStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, QueueStats{Total: 5, Health: 3, Repose: 2}, stats)
}

func TestRetire_PurgesNames(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`(?s)UPDATE notes\s+SET status = \$3, closed_at = NOW\(\)\s+WHERE id = \$1 AND status = \$2`).
		WithArgs(int64(10), "read", "retired").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM note_names WHERE note_id = \$1`).
		WithArgs(int64(10)).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	ok, err := repo.Retire(context.Background(), 10)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRetire_NotRead(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`(?s)UPDATE notes`).
		WithArgs(int64(10), "read", "retired").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	ok, err := repo.Retire(context.Background(), 10)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAbandonStalePending(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)WITH stale AS \(.*status = 'pending' AND created_at < NOW\(\) - make_interval\(secs => \$1\).*SELECT COUNT\(\*\) FROM stale`).
		WithArgs(float64(3600)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	n, err := repo.AbandonStalePending(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
