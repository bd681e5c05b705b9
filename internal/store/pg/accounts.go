// Package pg implements the account store on PostgreSQL.
package pg

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"foliocms.org/internal/auth"
	"foliocms.org/internal/ids"
)

const uniqueViolation = "23505"

var _ auth.AccountStore = (*AccountStore)(nil)

// AccountStore persists accounts using PostgreSQL. The unique index on
// lower(email) is the only guard against duplicate-registration races.
type AccountStore struct {
	db *sql.DB
}

// NewAccountStore constructs an AccountStore on an open connection pool.
func NewAccountStore(db *sql.DB) *AccountStore {
	return &AccountStore{db: db}
}

func (s *AccountStore) Create(ctx context.Context, account *auth.Account) error {
	if account.ID == "" {
		account.ID = ids.New()
	}
	row := s.db.QueryRowContext(ctx,
		`insert into accounts(id, name, email, password_hash, role, bio, avatar_url)
		 values($1,$2,$3,$4,$5,$6,$7)
		 returning created_at`,
		account.ID, account.Name, account.Email, account.PasswordHash,
		string(account.Role), account.Bio, account.AvatarURL,
	)
	if err := row.Scan(&account.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return auth.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (s *AccountStore) Find(ctx context.Context, id string) (*auth.Account, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, name, email, password_hash, role, bio, avatar_url, created_at, last_login_at
		 from accounts where id=$1`, id)
	return scanAccount(row)
}

func (s *AccountStore) FindByEmail(ctx context.Context, email string) (*auth.Account, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, name, email, password_hash, role, bio, avatar_url, created_at, last_login_at
		 from accounts where lower(email)=lower($1)`, email)
	return scanAccount(row)
}

func (s *AccountStore) List(ctx context.Context) ([]*auth.Account, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, name, email, password_hash, role, bio, avatar_url, created_at, last_login_at
		 from accounts order by created_at asc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*auth.Account
	for rows.Next() {
		account, err := scanAccountRow(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

func (s *AccountStore) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		`update accounts set password_hash=$2 where id=$1`, id, passwordHash)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *AccountStore) UpdateLastLogin(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`update accounts set last_login_at=now() where id=$1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *AccountStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from accounts where id=$1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row *sql.Row) (*auth.Account, error) {
	account, err := scanAccountRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrNotFound
		}
		return nil, err
	}
	return account, nil
}

func scanAccountRow(row rowScanner) (*auth.Account, error) {
	var (
		account   auth.Account
		role      string
		lastLogin sql.NullTime
	)
	if err := row.Scan(&account.ID, &account.Name, &account.Email, &account.PasswordHash,
		&role, &account.Bio, &account.AvatarURL, &account.CreatedAt, &lastLogin); err != nil {
		return nil, err
	}
	account.Role = auth.Role(role)
	if lastLogin.Valid {
		t := lastLogin.Time
		account.LastLoginAt = &t
	}
	return &account, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
