package auth

import "time"

// Status codes shared by accounts and roles, mirroring the platform's
// dictionary values ("0" normal, "1" disabled).
const (
	StatusNormal   = "0"
	StatusDisabled = "1"
)

// DataScope is a role attribute controlling which department-scoped rows
// the holder may see.
type DataScope string

const (
	ScopeAll          DataScope = "1" // no restriction
	ScopeCustom       DataScope = "2" // explicitly configured departments
	ScopeDept         DataScope = "3" // own department only
	ScopeDeptAndChild DataScope = "4" // own department and all descendants
	ScopeSelf         DataScope = "5" // rows created by the account itself
)

// Account is a staff login identity. Owned by the persistence layer; the
// security core only reads it.
type Account struct {
	ID           string
	Username     string
	Nickname     string
	PasswordHash string
	Status       string
	DeptID       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Disabled reports whether the account may not log in.
func (a *Account) Disabled() bool {
	return a.Status != StatusNormal
}

// Role groups permissions and carries the data scope.
type Role struct {
	ID        string
	Name      string
	Key       string
	DataScope DataScope
	Status    string
}

// Department is a node of the organization forest. Ancestors holds the
// comma-joined ids of all ancestors, root first; it is maintained by the
// org-management service and consumed read-only here.
type Department struct {
	ID        string
	ParentID  string
	Ancestors string
	Name      string
	Status    string
}

// Session is the verified identity derived from a valid token. It has no
// server-side storage; validity is determined purely by signature and
// expiry.
type Session struct {
	AccountID string
	Username  string
	RoleKeys  []string
	Token     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}
