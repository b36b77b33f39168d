package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role is a marketplace role name. Roles are flat strings rather than a
// separate table because the service only ever gates on membership.
type Role string

const (
	RoleAdmin           Role = "ADMIN"
	RoleFacilityManager Role = "FACILITY_MANAGER"
	RoleContractor      Role = "CONTRACTOR"
	RoleCustomer        Role = "CUSTOMER"
	RoleInvestor        Role = "INVESTOR"
)

// AllRoles lists every role the platform recognises.
var AllRoles = []Role{
	RoleAdmin,
	RoleFacilityManager,
	RoleContractor,
	RoleCustomer,
	RoleInvestor,
}

// ValidRole reports whether name is a recognised role.
func ValidRole(name Role) bool {
	for _, r := range AllRoles {
		if r == name {
			return true
		}
	}
	return false
}

// RoleSet is an allow-list used by the authorization guard. One predicate
// replaces per-role wrapper functions.
type RoleSet map[Role]struct{}

func NewRoleSet(roles ...Role) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return set
}

func (s RoleSet) Contains(r Role) bool {
	_, ok := s[r]
	return ok
}

// User is the canonical authentication identity aggregate.
// It carries only auth-relevant state; marketplace profiles live elsewhere.
type User struct {
	UserID              uuid.UUID
	Email               string
	Username            string
	FirstName           string
	LastName            string
	Phone               string
	PasswordHash        string
	Role                Role
	EmailVerified       bool
	IsActive            bool
	FailedLoginAttempts int
	AccountLockedUntil  *time.Time
	LastLoginAt         *time.Time
	LastLoginIP         string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// IsLocked is the lockout predicate. Lock state is never stored as a
// boolean; it is always derived from account_locked_until against now.
func (u User) IsLocked(now time.Time) bool {
	return u.AccountLockedUntil != nil && u.AccountLockedUntil.After(now)
}
