// Package residents exposes the resident roster, the primary
// data-bearing entity of the platform. Listing is always constrained by
// the caller's data-scope predicate.
package residents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrNotFound = errors.New("residents: not found")

// Resident is one person in care.
type Resident struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Gender    string    `json:"gender"`
	DeptID    string    `json:"dept_id"`
	Room      string    `json:"room"`
	Bed       string    `json:"bed"`
	Status    string    `json:"status"`
	CreateBy  string    `json:"create_by"`
	CreatedAt time.Time `json:"created_at"`
}

// Query narrows a listing. Limit defaults to 50 and is capped at 200.
type Query struct {
	Name   string
	Limit  int
	Offset int
}

func (q Query) limit() int {
	switch {
	case q.Limit <= 0:
		return 50
	case q.Limit > 200:
		return 200
	default:
		return q.Limit
	}
}

// Store reads residents from PostgreSQL.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// List returns residents visible through the given scope predicate. The
// predicate is produced by the authorization layer against alias "r" and
// is ANDed into the WHERE clause verbatim.
func (s *Store) List(ctx context.Context, scopePredicate string, q Query) ([]Resident, error) {
	scopePredicate = strings.TrimSpace(scopePredicate)
	if scopePredicate == "" {
		return nil, errors.New("residents: scope predicate is required")
	}

	query := fmt.Sprintf(`
		select r.id, r.name, r.gender, r.dept_id, r.room, r.bed, r.status, r.create_by, r.created_at
		from residents r
		where r.deleted = false and (%s)`, scopePredicate)
	args := []any{}
	if name := strings.TrimSpace(q.Name); name != "" {
		args = append(args, "%"+name+"%")
		query += fmt.Sprintf(" and r.name like $%d", len(args))
	}
	query += " order by r.id"
	args = append(args, q.limit())
	query += fmt.Sprintf(" limit $%d", len(args))
	args = append(args, q.Offset)
	query += fmt.Sprintf(" offset $%d", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Resident
	for rows.Next() {
		var r Resident
		if err := rows.Scan(&r.ID, &r.Name, &r.Gender, &r.DeptID, &r.Room, &r.Bed, &r.Status, &r.CreateBy, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Count returns the number of residents visible through the predicate.
func (s *Store) Count(ctx context.Context, scopePredicate string) (int, error) {
	scopePredicate = strings.TrimSpace(scopePredicate)
	if scopePredicate == "" {
		return 0, errors.New("residents: scope predicate is required")
	}
	var n int
	query := fmt.Sprintf(`select count(*) from residents r where r.deleted = false and (%s)`, scopePredicate)
	if err := s.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Get returns a single resident when the predicate admits it.
func (s *Store) Get(ctx context.Context, scopePredicate, id string) (*Resident, error) {
	scopePredicate = strings.TrimSpace(scopePredicate)
	if scopePredicate == "" {
		return nil, errors.New("residents: scope predicate is required")
	}
	query := fmt.Sprintf(`
		select r.id, r.name, r.gender, r.dept_id, r.room, r.bed, r.status, r.create_by, r.created_at
		from residents r
		where r.id = $1 and r.deleted = false and (%s)`, scopePredicate)
	var r Resident
	err := s.db.QueryRowContext(ctx, query, id).
		Scan(&r.ID, &r.Name, &r.Gender, &r.DeptID, &r.Room, &r.Bed, &r.Status, &r.CreateBy, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}
