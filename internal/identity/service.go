// AngelaMos | 2026
// service.go

package identity

import (
	"context"
	"fmt"
	"strings"

	"github.com/carterperez-dev/notesbot/internal/audit"
	"github.com/carterperez-dev/notesbot/internal/core"
)

type Service struct {
	repo  Repository
	audit *audit.Logger
}

func NewService(repo Repository, auditLog *audit.Logger) *Service {
	return &Service{repo: repo, audit: auditLog}
}

// GetOrCreate registers an identity on first contact with role requester.
// Later calls return the stored record unchanged.
func (s *Service) GetOrCreate(
	ctx context.Context,
	handle int64,
	label string,
) (*Identity, error) {
	var labelPtr *string
	if trimmed := strings.TrimSpace(label); trimmed != "" {
		labelPtr = &trimmed
	}

	return s.repo.GetOrCreate(ctx, handle, labelPtr)
}

func (s *Service) FindByHandle(ctx context.Context, handle int64) (*Identity, error) {
	return s.repo.GetByHandle(ctx, handle)
}

func (s *Service) FindByID(ctx context.Context, id int64) (*Identity, error) {
	return s.repo.GetByID(ctx, id)
}

// SetRole overwrites the role of identityID and returns the role it had
// before. Every change is written to the audit log.
func (s *Service) SetRole(
	ctx context.Context,
	identityID int64,
	role Role,
) (Role, error) {
	if !role.Valid() {
		return "", fmt.Errorf("set role: invalid role %q: %w", role, core.ErrInvalidInput)
	}

	change, err := s.repo.UpdateRole(ctx, identityID, role)
	if err != nil {
		return "", err
	}

	s.audit.RoleChanged(ctx, change.Handle, change.OldRole.String(), change.NewRole.String())
	return change.OldRole, nil
}

// ChangeRole is the administrator action behind the role dialogue. The
// actor must hold the admin role; any admin may change any role, their
// own included.
func (s *Service) ChangeRole(
	ctx context.Context,
	actor *Identity,
	targetHandle int64,
	role Role,
) (*RoleChange, error) {
	if actor == nil || !actor.IsAdmin() {
		return nil, fmt.Errorf("change role: %w", core.ErrForbidden)
	}

	target, err := s.repo.GetByHandle(ctx, targetHandle)
	if err != nil {
		return nil, err
	}

	old, err := s.SetRole(ctx, target.ID, role)
	if err != nil {
		return nil, err
	}

	return &RoleChange{
		IdentityID: target.ID,
		Handle:     target.Handle,
		OldRole:    old,
		NewRole:    role,
	}, nil
}

// Bootstrap assigns a role without an acting admin. It backs the CLI used
// to appoint the first administrator.
func (s *Service) Bootstrap(
	ctx context.Context,
	handle int64,
	role Role,
) (*RoleChange, error) {
	target, err := s.repo.GetOrCreate(ctx, handle, nil)
	if err != nil {
		return nil, err
	}

	old, err := s.SetRole(ctx, target.ID, role)
	if err != nil {
		return nil, err
	}

	return &RoleChange{
		IdentityID: target.ID,
		Handle:     target.Handle,
		OldRole:    old,
		NewRole:    role,
	}, nil
}

func (s *Service) ListByRole(ctx context.Context, role Role) ([]Identity, error) {
	return s.repo.ListByRole(ctx, role)
}

func (s *Service) CountByRole(ctx context.Context) (RoleCounts, error) {
	return s.repo.CountByRole(ctx)
}

// ListReaders returns priests followed by altar servers.
func (s *Service) ListReaders(ctx context.Context) ([]Identity, []Identity, error) {
	priests, err := s.repo.ListByRole(ctx, RolePriest)
	if err != nil {
		return nil, nil, err
	}

	servers, err := s.repo.ListByRole(ctx, RoleAltarServer)
	if err != nil {
		return nil, nil, err
	}

	return priests, servers, nil
}
