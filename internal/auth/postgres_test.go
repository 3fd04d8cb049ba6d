package auth

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPGStoreFindAccountByUsername(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	created := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
	mock.ExpectQuery("select id, username, nickname, password_hash, status.*from accounts").
		WithArgs("zhangwei").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "nickname", "password_hash", "status", "dept_id", "created_at", "updated_at"}).
			AddRow("acc-1", "zhangwei", "Zhang Wei", "$argon2id$...", "0", "D7", created, created))

	store := NewPGStore(db)
	account, err := store.FindAccountByUsername(context.Background(), "zhangwei")
	if err != nil {
		t.Fatalf("FindAccountByUsername: %v", err)
	}
	if account.ID != "acc-1" || account.DeptID != "D7" {
		t.Fatalf("unexpected account %+v", account)
	}
	if account.Disabled() {
		t.Fatalf("status 0 must not read as disabled")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGStoreFindAccountNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("select id, username, nickname, password_hash, status.*from accounts").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "nickname", "password_hash", "status", "dept_id", "created_at", "updated_at"}))

	store := NewPGStore(db)
	if _, err := store.FindAccountByUsername(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGStoreRolesForAccount(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("select r.id, r.name, r.role_key, r.data_scope, r.status.*from roles r").
		WithArgs("acc-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "role_key", "data_scope", "status"}).
			AddRow("r1", "Head Nurse", "head_nurse", "4", "0").
			AddRow("r2", "Auditor", "auditor", "1", "1"))

	store := NewPGStore(db)
	roles, err := store.RolesForAccount(context.Background(), "acc-1")
	if err != nil {
		t.Fatalf("RolesForAccount: %v", err)
	}
	if len(roles) != 2 {
		t.Fatalf("expected 2 roles, got %v", roles)
	}
	if roles[0].DataScope != ScopeDeptAndChild {
		t.Fatalf("DataScope=%q", roles[0].DataScope)
	}
	if roles[1].Status != StatusDisabled {
		t.Fatalf("Status=%q", roles[1].Status)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGStoreScopeDepartments(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("select dept_id from role_departments").
		WithArgs("r2").
		WillReturnRows(sqlmock.NewRows([]string{"dept_id"}).AddRow("D3").AddRow("D5"))

	store := NewPGStore(db)
	ids, err := store.ScopeDepartments(context.Background(), "r2")
	if err != nil {
		t.Fatalf("ScopeDepartments: %v", err)
	}
	if !reflect.DeepEqual(ids, []string{"D3", "D5"}) {
		t.Fatalf("ids=%v", ids)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGStoreDepartmentDescendants(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("select id from departments").
		WithArgs("D7").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("D9").AddRow("D12"))

	store := NewPGStore(db)
	ids, err := store.DepartmentDescendants(context.Background(), "D7")
	if err != nil {
		t.Fatalf("DepartmentDescendants: %v", err)
	}
	if !reflect.DeepEqual(ids, []string{"D9", "D12"}) {
		t.Fatalf("ids=%v", ids)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
