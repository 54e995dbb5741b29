package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/SKB-CADDep/authentication-service/internal/core/domain"
	"github.com/SKB-CADDep/authentication-service/internal/core/port"
	"github.com/SKB-CADDep/authentication-service/internal/repository"
)

type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// pgPool is the executor plus transaction support; satisfied by
// *pgxpool.Pool and by pgxmock pools in tests.
type pgPool interface {
	pgExecutor
	Begin(ctx context.Context) (pgx.Tx, error)
}

var identityColumns = []string{
	"username",
	"email",
	"display_name",
	"common_name",
	"department",
	"title",
	"phone",
	"groups",
	"is_active",
	"is_privileged",
	"first_seen",
	"last_login",
	"last_directory_sync",
}

// IdentityRepository implements port.IdentityRepository using PostgreSQL.
type IdentityRepository struct {
	pool    pgPool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewIdentityRepository wires a PostgreSQL-backed identity repository.
func NewIdentityRepository(pool pgPool) *IdentityRepository {
	return &IdentityRepository{
		pool:    pool,
		exec:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *IdentityRepository) WithTx(tx pgx.Tx) *IdentityRepository {
	if tx == nil {
		return r
	}
	return &IdentityRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

// GetByUsername retrieves an identity by its login name.
func (r *IdentityRepository) GetByUsername(ctx context.Context, username string) (*domain.LocalIdentity, error) {
	return r.get(ctx, username, false)
}

func (r *IdentityRepository) get(ctx context.Context, username string, forUpdate bool) (*domain.LocalIdentity, error) {
	query := r.builder.
		Select(identityColumns...).
		From("identities").
		Where(squirrel.Eq{"username": username})
	if forUpdate {
		query = query.Suffix("FOR UPDATE")
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select identity sql: %w", err)
	}

	row := r.exec.QueryRow(ctx, stmt, args...)

	var identity domain.LocalIdentity
	if err := row.Scan(
		&identity.Username,
		&identity.Email,
		&identity.DisplayName,
		&identity.CommonName,
		&identity.Department,
		&identity.Title,
		&identity.Phone,
		&identity.Groups,
		&identity.IsActive,
		&identity.IsPrivileged,
		&identity.FirstSeen,
		&identity.LastLogin,
		&identity.LastDirectorySync,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan identity: %w", err)
	}

	return &identity, nil
}

// Create inserts a new identity row.
func (r *IdentityRepository) Create(ctx context.Context, identity domain.LocalIdentity) error {
	stmt, args, err := r.builder.Insert("identities").
		Columns(identityColumns...).
		Values(
			identity.Username,
			identity.Email,
			identity.DisplayName,
			identity.CommonName,
			identity.Department,
			identity.Title,
			identity.Phone,
			identity.Groups,
			identity.IsActive,
			identity.IsPrivileged,
			identity.FirstSeen,
			identity.LastLogin,
			identity.LastDirectorySync,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert identity sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert identity: %w", err)
	}

	return nil
}

// SyncProfile overwrites the directory mirror columns and advances the login
// and sync timestamps. Status flags are deliberately not touched.
func (r *IdentityRepository) SyncProfile(ctx context.Context, username string, profile domain.DirectoryProfile, at time.Time) error {
	stmt, args, err := r.builder.Update("identities").
		Set("email", profile.Email).
		Set("display_name", profile.DisplayName).
		Set("common_name", profile.CommonName).
		Set("department", profile.Department).
		Set("title", profile.Title).
		Set("phone", profile.Phone).
		Set("groups", profile.Groups).
		Set("last_login", at).
		Set("last_directory_sync", at).
		Where(squirrel.Eq{"username": username}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build sync identity sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("sync identity: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// Upsert reconciles the directory profile against the identity store inside a
// single transaction: the existing row is locked and its mirror columns
// overwritten, or a fresh active identity is created on first sight. Either
// the whole update commits or none of it does.
func (r *IdentityRepository) Upsert(ctx context.Context, profile domain.DirectoryProfile, at time.Time) (*domain.LocalIdentity, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin upsert tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txRepo := r.WithTx(tx)

	identity, err := txRepo.get(ctx, profile.Username, true)
	switch {
	case err == nil:
		identity.ApplyProfile(profile, at)
		if err := txRepo.SyncProfile(ctx, profile.Username, profile, at); err != nil {
			return nil, err
		}
	case errors.Is(err, repository.ErrNotFound):
		created := domain.NewLocalIdentity(profile, at)
		if err := txRepo.Create(ctx, created); err != nil {
			return nil, err
		}
		identity = &created
	default:
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit upsert tx: %w", err)
	}

	return identity, nil
}

var _ port.IdentityRepository = (*IdentityRepository)(nil)
