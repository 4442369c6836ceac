// AngelaMos | 2026
// entity.go

package user

import (
	"time"
)

type User struct {
	ID                  string     `db:"id"`
	Email               string     `db:"email"`
	PasswordHash        string     `db:"password_hash"`
	Name                string     `db:"name"`
	Role                string     `db:"role"`
	IsActive            bool       `db:"is_active"`
	TokenVersion        int        `db:"token_version"`
	DeletionRequestedAt *time.Time `db:"deletion_requested_at"`
	DeletionScheduledAt *time.Time `db:"deletion_scheduled_at"`
	DeletionFailedAt    *time.Time `db:"deletion_failed_at"`
	CreatedAt           time.Time  `db:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at"`
}

// Lifecycle reports where the account sits in the erasure lifecycle.
func (u *User) Lifecycle() string {
	switch {
	case u.DeletionRequestedAt == nil:
		return LifecycleActive
	case u.DeletionFailedAt != nil:
		return LifecycleFailed
	default:
		return LifecyclePending
	}
}

// Usable is true when no deletion is in flight. is_active is kept in step
// with the deletion columns by the erasure store.
func (u *User) Usable() bool {
	return u.IsActive && u.DeletionRequestedAt == nil
}

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

const (
	LifecycleActive  = "active"
	LifecyclePending = "pending"
	LifecycleFailed  = "failed"
)

const userColumns = `id, email, password_hash, name, role, is_active, token_version,
		       deletion_requested_at, deletion_scheduled_at, deletion_failed_at,
		       created_at, updated_at`
