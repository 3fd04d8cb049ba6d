package auth

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// ScopeFilter describes the row restriction a query must honor. Exactly
// one of three shapes: unrestricted, or a union of department ids and/or
// an owner restriction. An empty filter (no departments, no owner) denies
// everything.
type ScopeFilter struct {
	Unrestricted  bool
	DeptIDs       []string
	SelfAccountID string
}

// Predicate renders the filter as a SQL fragment against the given table
// alias, suitable for ANDing into a WHERE clause. Department rows are
// matched on <alias>.dept_id, owner rows on <alias>.create_by.
func (f ScopeFilter) Predicate(alias string) string {
	if f.Unrestricted {
		return "1 = 1"
	}
	var parts []string
	if len(f.DeptIDs) > 0 {
		quoted := make([]string, len(f.DeptIDs))
		for i, id := range f.DeptIDs {
			quoted[i] = quoteSQL(id)
		}
		parts = append(parts, fmt.Sprintf("%s.dept_id in (%s)", alias, strings.Join(quoted, ", ")))
	}
	if f.SelfAccountID != "" {
		parts = append(parts, fmt.Sprintf("%s.create_by = %s", alias, quoteSQL(f.SelfAccountID)))
	}
	switch len(parts) {
	case 0:
		return "1 = 0"
	case 1:
		return parts[0]
	default:
		return "(" + strings.Join(parts, " or ") + ")"
	}
}

// ScopeResolver computes the filter for an account from the data scopes
// of its roles. Descendant sets come from the org-management side of the
// store; the resolver never walks the department tree itself.
type ScopeResolver struct {
	store Store
}

func NewScopeResolver(store Store) *ScopeResolver {
	return &ScopeResolver{store: store}
}

// Resolve combines the scopes of all enabled roles by set union: a user
// holding an operational role plus a broader oversight role gets the
// broader grant. ScopeAll short-circuits the union to unrestricted.
// Accounts with no enabled roles resolve to the empty (deny-all) filter.
func (r *ScopeResolver) Resolve(ctx context.Context, account *Account, roles []Role) (ScopeFilter, error) {
	deptSet := make(map[string]struct{})
	var filter ScopeFilter

	for _, role := range roles {
		if role.Status != StatusNormal {
			continue
		}
		switch role.DataScope {
		case ScopeAll:
			return ScopeFilter{Unrestricted: true}, nil
		case ScopeCustom:
			deptIDs, err := r.store.ScopeDepartments(ctx, role.ID)
			if err != nil {
				return ScopeFilter{}, fmt.Errorf("custom scope for role %s: %w", role.ID, err)
			}
			for _, id := range deptIDs {
				deptSet[id] = struct{}{}
			}
		case ScopeDept:
			if account.DeptID != "" {
				deptSet[account.DeptID] = struct{}{}
			}
		case ScopeDeptAndChild:
			if account.DeptID == "" {
				continue
			}
			deptSet[account.DeptID] = struct{}{}
			descendants, err := r.store.DepartmentDescendants(ctx, account.DeptID)
			if err != nil {
				return ScopeFilter{}, fmt.Errorf("descendants of %s: %w", account.DeptID, err)
			}
			for _, id := range descendants {
				deptSet[id] = struct{}{}
			}
		case ScopeSelf:
			filter.SelfAccountID = account.ID
		default:
			// Unknown scope codes grant nothing.
		}
	}

	if len(deptSet) > 0 {
		filter.DeptIDs = make([]string, 0, len(deptSet))
		for id := range deptSet {
			filter.DeptIDs = append(filter.DeptIDs, id)
		}
		sort.Strings(filter.DeptIDs)
	}
	return filter, nil
}

// quoteSQL single-quotes a literal for predicate rendering.
func quoteSQL(v string) string {
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}
