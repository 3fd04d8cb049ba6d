package auth

import (
	"context"
	"database/sql"
	"errors"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store over the platform's PostgreSQL schema.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) FindAccountByUsername(ctx context.Context, username string) (*Account, error) {
	row := s.db.QueryRowContext(ctx, `
		select id, username, nickname, password_hash, status, coalesce(dept_id, ''), created_at, updated_at
		from accounts
		where username = $1 and deleted = false
	`, username)
	var a Account
	if err := row.Scan(&a.ID, &a.Username, &a.Nickname, &a.PasswordHash, &a.Status, &a.DeptID, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (s *PGStore) RolesForAccount(ctx context.Context, accountID string) ([]Role, error) {
	rows, err := s.db.QueryContext(ctx, `
		select r.id, r.name, r.role_key, r.data_scope, r.status
		from roles r
		join account_roles ar on ar.role_id = r.id
		where ar.account_id = $1 and r.deleted = false
		order by r.id
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		var (
			role  Role
			scope string
		)
		if err := rows.Scan(&role.ID, &role.Name, &role.Key, &scope, &role.Status); err != nil {
			return nil, err
		}
		role.DataScope = DataScope(scope)
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func (s *PGStore) ScopeDepartments(ctx context.Context, roleID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		select dept_id from role_departments where role_id = $1 order by dept_id
	`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectIDs(rows)
}

// DepartmentDescendants resolves the subtree below deptID using the
// ancestors path column maintained by the org-management service.
func (s *PGStore) DepartmentDescendants(ctx context.Context, deptID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id from departments
		where $1 = any(string_to_array(ancestors, ',')) and deleted = false
		order by id
	`, deptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectIDs(rows)
}

func collectIDs(rows *sql.Rows) ([]string, error) {
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
