// Package pg implements the persistence collaborators of the auth core on
// PostgreSQL: the user directory, the tenant directory and the refresh
// token store.
package pg

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"drouple.org/internal/auth"
	"drouple.org/internal/authz"
	"drouple.org/internal/tenancy"
	"drouple.org/internal/token"
)

// Store wraps one *sql.DB and satisfies the collaborator interfaces.
type Store struct {
	db *sql.DB
}

var _ auth.UserDirectory = (*Store)(nil)
var _ tenancy.TenantDirectory = (*Store)(nil)
var _ token.RefreshTokenStore = (*Store)(nil)

// Open connects with pooled defaults tuned for the API workload.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// New wraps an existing handle (used by tests with sqlmock).
func New(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// Ping supports the readiness probe.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Users ---------------------------------------------------------------

const userColumns = `id, email, password_hash, role, tenant_id, church_id, status, created_at, updated_at`

func (s *Store) FindByIdentifier(ctx context.Context, identifier string) (*auth.User, error) {
	identifier = strings.TrimSpace(strings.ToLower(identifier))
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where email = $1`, identifier)
	return scanUser(row)
}

func (s *Store) FindByID(ctx context.Context, id string) (*auth.User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where id = $1`, id)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*auth.User, error) {
	var (
		u        auth.User
		role     string
		tenantID sql.NullString
		churchID sql.NullString
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &role, &tenantID, &churchID, &u.Status, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrNotFound
		}
		return nil, err
	}
	u.Role = authz.Role(role)
	u.TenantID = tenantID.String
	u.ChurchID = churchID.String
	return &u, nil
}

// Tenant directory ----------------------------------------------------

func (s *Store) ListAllTenantIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `select id from churches order by id asc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

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

// Refresh tokens ------------------------------------------------------

func (s *Store) Create(ctx context.Context, tok *token.RefreshToken) error {
	_, err := s.db.ExecContext(ctx, `
		insert into refresh_tokens(id, user_id, token_hash, expires_at, created_at, revoked, rotated_from)
		values ($1, $2, $3, $4, $5, false, nullif($6, ''))`,
		tok.ID, tok.UserID, tok.TokenHash, tok.ExpiresAt, tok.CreatedAt, tok.RotatedFrom,
	)
	return err
}

func (s *Store) Find(ctx context.Context, id string) (*token.RefreshToken, error) {
	row := s.db.QueryRowContext(ctx, `
		select id, user_id, token_hash, expires_at, created_at, revoked, coalesce(rotated_from, '')
		from refresh_tokens where id = $1`, id)

	var rec token.RefreshToken
	err := row.Scan(&rec.ID, &rec.UserID, &rec.TokenHash, &rec.ExpiresAt, &rec.CreatedAt, &rec.Revoked, &rec.RotatedFrom)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, token.ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// Rotate marks id revoked and inserts successor in one transaction. The
// conditional update decides the winner under concurrent rotation: the
// loser sees zero affected rows and reports ErrAlreadyRotated.
func (s *Store) Rotate(ctx context.Context, id string, successor *token.RefreshToken) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`update refresh_tokens set revoked = true where id = $1 and revoked = false`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`select exists(select 1 from refresh_tokens where id = $1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return token.ErrNotFound
		}
		return token.ErrAlreadyRotated
	}

	if _, err := tx.ExecContext(ctx, `
		insert into refresh_tokens(id, user_id, token_hash, expires_at, created_at, revoked, rotated_from)
		values ($1, $2, $3, $4, $5, false, nullif($6, ''))`,
		successor.ID, successor.UserID, successor.TokenHash, successor.ExpiresAt, successor.CreatedAt, successor.RotatedFrom,
	); err != nil {
		return err
	}
	return tx.Commit()
}

// RevokeChain revokes every token reachable from id through rotated_from
// links, in both directions.
func (s *Store) RevokeChain(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
		with recursive chain as (
			select id, rotated_from from refresh_tokens where id = $1
			union
			select rt.id, rt.rotated_from
			from refresh_tokens rt
			join chain c on rt.rotated_from = c.id or rt.id = c.rotated_from
		)
		update refresh_tokens set revoked = true where id in (select id from chain)`, id)
	return err
}

func (s *Store) RevokeAllForUser(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`update refresh_tokens set revoked = true where user_id = $1 and revoked = false`, userID)
	return err
}

// PurgeExpired removes refresh tokens whose expiry is long past. Safe to
// run from a maintenance job; verification never consults expired rows.
func (s *Store) PurgeExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`delete from refresh_tokens where expires_at < $1`, olderThan)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
