// AngelaMos | 2026
// repository.go

package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/carterperez-dev/notesbot/internal/core"
)

type Repository interface {
	GetOrCreate(ctx context.Context, handle int64, label *string) (*Identity, error)
	GetByID(ctx context.Context, id int64) (*Identity, error)
	GetByHandle(ctx context.Context, handle int64) (*Identity, error)
	UpdateRole(ctx context.Context, id int64, role Role) (*RoleChange, error)
	ListByRole(ctx context.Context, role Role) ([]Identity, error)
	CountByRole(ctx context.Context) (RoleCounts, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const identityColumns = `id, handle, label, role, created_at, updated_at`

// GetOrCreate never touches the label of an existing row.
func (r *repository) GetOrCreate(
	ctx context.Context,
	handle int64,
	label *string,
) (*Identity, error) {
	query := `
		INSERT INTO identities (handle, label)
		VALUES ($1, $2)
		ON CONFLICT (handle) DO NOTHING
		RETURNING ` + identityColumns

	var identity Identity
	err := r.db.GetContext(ctx, &identity, query, handle, label)
	if errors.Is(err, sql.ErrNoRows) {
		return r.GetByHandle(ctx, handle)
	}
	if err != nil {
		return nil, fmt.Errorf("get or create identity: %w", err)
	}

	return &identity, nil
}

func (r *repository) GetByID(ctx context.Context, id int64) (*Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE id = $1`

	var identity Identity
	err := r.db.GetContext(ctx, &identity, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get identity: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get identity: %w", err)
	}

	return &identity, nil
}

func (r *repository) GetByHandle(
	ctx context.Context,
	handle int64,
) (*Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE handle = $1`

	var identity Identity
	err := r.db.GetContext(ctx, &identity, query, handle)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get identity by handle: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get identity by handle: %w", err)
	}

	return &identity, nil
}

// UpdateRole overwrites the role and reports the value it replaced, read
// under the same row lock.
func (r *repository) UpdateRole(
	ctx context.Context,
	id int64,
	role Role,
) (*RoleChange, error) {
	query := `
		UPDATE identities AS i
		SET role = $2, updated_at = NOW()
		FROM (SELECT id, role FROM identities WHERE id = $1 FOR UPDATE) AS prev
		WHERE i.id = prev.id
		RETURNING i.id, i.handle, prev.role`

	change := RoleChange{NewRole: role}
	err := r.db.QueryRowxContext(ctx, query, id, role).
		Scan(&change.IdentityID, &change.Handle, &change.OldRole)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("update role: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("update role: %w", err)
	}

	return &change, nil
}

func (r *repository) ListByRole(ctx context.Context, role Role) ([]Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE role = $1 ORDER BY id`

	var identities []Identity
	if err := r.db.SelectContext(ctx, &identities, query, role); err != nil {
		return nil, fmt.Errorf("list identities by role: %w", err)
	}

	return identities, nil
}

func (r *repository) CountByRole(ctx context.Context) (RoleCounts, error) {
	query := `SELECT role, COUNT(*) AS count FROM identities GROUP BY role`

	var rows []struct {
		Role  Role `db:"role"`
		Count int  `db:"count"`
	}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("count identities by role: %w", err)
	}

	counts := make(RoleCounts, len(Roles))
	for _, role := range Roles {
		counts[role] = 0
	}
	for _, row := range rows {
		counts[row.Role] = row.Count
	}

	return counts, nil
}
