// AngelaMos | 2026
// entity.go

package identity

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/carterperez-dev/notesbot/internal/core"
)

type Role string

const (
	RoleRequester   Role = "requester"
	RolePriest      Role = "priest"
	RoleAltarServer Role = "altar_server"
	RoleAdmin       Role = "admin"
)

// Roles lists every role in the order the admin dialogue numbers them.
var Roles = []Role{RoleRequester, RolePriest, RoleAltarServer, RoleAdmin}

func (r Role) Valid() bool {
	switch r {
	case RoleRequester, RolePriest, RoleAltarServer, RoleAdmin:
		return true
	}
	return false
}

func (r Role) String() string {
	return string(r)
}

func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("parse role %q: %w", s, core.ErrInvalidInput)
	}
	return r, nil
}

// ParseRoleChoice accepts either the 1-based position in Roles or a role
// name. "user" is kept as an alias of requester.
func ParseRoleChoice(s string) (Role, error) {
	s = strings.ToLower(strings.TrimSpace(s))

	if n, err := strconv.Atoi(s); err == nil {
		if n < 1 || n > len(Roles) {
			return "", fmt.Errorf("parse role choice %q: %w", s, core.ErrInvalidInput)
		}
		return Roles[n-1], nil
	}

	if s == "user" {
		return RoleRequester, nil
	}

	return ParseRole(s)
}

type Identity struct {
	ID        int64     `db:"id"`
	Handle    int64     `db:"handle"`
	Label     *string   `db:"label"`
	Role      Role      `db:"role"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (i *Identity) IsReader() bool {
	return i.Role == RolePriest || i.Role == RoleAltarServer
}

func (i *Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

func (i *Identity) DisplayName() string {
	if i.Label != nil && *i.Label != "" {
		return *i.Label
	}
	return "ID: " + strconv.FormatInt(i.Handle, 10)
}

type RoleChange struct {
	IdentityID int64
	Handle     int64
	OldRole    Role
	NewRole    Role
}

type RoleCounts map[Role]int

func (c RoleCounts) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}
