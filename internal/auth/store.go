package auth

import "context"

// Store describes the persistence operations the security core consumes.
// Accounts, roles and the department tree are owned by the admin CRUD
// services; everything here is read-only.
type Store interface {
	// FindAccountByUsername returns ErrNotFound for unknown usernames.
	FindAccountByUsername(ctx context.Context, username string) (*Account, error)
	// RolesForAccount returns every role held by the account, enabled or not.
	RolesForAccount(ctx context.Context, accountID string) ([]Role, error)
	// ScopeDepartments returns the department ids configured for a
	// custom-scope role.
	ScopeDepartments(ctx context.Context, roleID string) ([]string, error)
	// DepartmentDescendants returns the ids of every department below
	// deptID, excluding deptID itself.
	DepartmentDescendants(ctx context.Context, deptID string) ([]string, error)
}
