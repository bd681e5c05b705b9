package pg

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"foliocms.org/internal/auth"
)

func accountColumns() []string {
	return []string{"id", "name", "email", "password_hash", "role", "bio", "avatar_url", "created_at", "last_login_at"}
}

func TestCreateAssignsIDAndScansCreatedAt(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	created := time.Now().UTC()
	mock.ExpectQuery("insert into accounts").
		WithArgs(sqlmock.AnyArg(), "Ana", "a@x.com", "hash", "user", "", "").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(created))

	store := NewAccountStore(db)
	account := &auth.Account{Name: "Ana", Email: "a@x.com", PasswordHash: "hash", Role: auth.RoleUser}
	if err := store.Create(context.Background(), account); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if account.ID == "" {
		t.Fatal("expected id to be assigned")
	}
	if !account.CreatedAt.Equal(created) {
		t.Fatalf("unexpected created_at: %v", account.CreatedAt)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateMapsUniqueViolationToConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("insert into accounts").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "accounts_email_key"})

	store := NewAccountStore(db)
	account := &auth.Account{Name: "Ana", Email: "a@x.com", PasswordHash: "hash", Role: auth.RoleUser}
	if err := store.Create(context.Background(), account); !errors.Is(err, auth.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestFindByEmailNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("select id, name, email").
		WithArgs("missing@x.com").
		WillReturnError(sql.ErrNoRows)

	store := NewAccountStore(db)
	if _, err := store.FindByEmail(context.Background(), "missing@x.com"); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFindScansAccount(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	created := time.Now().UTC()
	lastLogin := created.Add(time.Minute)
	mock.ExpectQuery("select id, name, email").
		WithArgs("acc-1").
		WillReturnRows(sqlmock.NewRows(accountColumns()).
			AddRow("acc-1", "Ana", "a@x.com", "hash", "admin", "bio", "http://img", created, lastLogin))

	store := NewAccountStore(db)
	account, err := store.Find(context.Background(), "acc-1")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if account.Role != auth.RoleAdmin {
		t.Fatalf("unexpected role: %s", account.Role)
	}
	if account.LastLoginAt == nil || !account.LastLoginAt.Equal(lastLogin) {
		t.Fatalf("unexpected last login: %v", account.LastLoginAt)
	}
}

func TestFindHandlesNullLastLogin(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("select id, name, email").
		WithArgs("acc-1").
		WillReturnRows(sqlmock.NewRows(accountColumns()).
			AddRow("acc-1", "Ana", "a@x.com", "hash", "user", "", "", time.Now().UTC(), nil))

	store := NewAccountStore(db)
	account, err := store.Find(context.Background(), "acc-1")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if account.LastLoginAt != nil {
		t.Fatalf("expected nil last login, got %v", account.LastLoginAt)
	}
}

func TestDeleteMissingAccount(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("delete from accounts").
		WithArgs("gone").
		WillReturnResult(sqlmock.NewResult(0, 0))

	store := NewAccountStore(db)
	if err := store.Delete(context.Background(), "gone"); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdatePassword(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("update accounts set password_hash").
		WithArgs("acc-1", "new-hash").
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := NewAccountStore(db)
	if err := store.UpdatePassword(context.Background(), "acc-1", "new-hash"); err != nil {
		t.Fatalf("UpdatePassword: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
