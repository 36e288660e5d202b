package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arklim/access-gateway/internal/core/domain"
	"github.com/arklim/access-gateway/internal/repository"
)

var userColumns = []string{
	"id",
	"username",
	"email",
	"password_hash",
	"nickname",
	"status",
	"last_login_time",
	"last_login_ip",
	"login_count",
	"created_at",
	"updated_at",
}

// UserRepository implements port.UserRepository using PostgreSQL.
type UserRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewUserRepository wires a user repository backed by any executor that satisfies pgExecutor.
func NewUserRepository(exec pgExecutor) *UserRepository {
	repo := &UserRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *UserRepository) WithTx(tx pgx.Tx) *UserRepository {
	if tx == nil {
		return r
	}
	return &UserRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

// Create inserts a new user row. Duplicate usernames or emails surface as repository.ErrConflict.
func (r *UserRepository) Create(ctx context.Context, user domain.User) error {
	var emailValue any
	if user.Email != "" {
		emailValue = user.Email
	}

	stmt, args, err := r.builder.Insert("users").
		Columns(
			"id",
			"username",
			"email",
			"password_hash",
			"nickname",
			"status",
			"login_count",
			"created_at",
			"updated_at",
		).
		Values(
			user.ID,
			user.Username,
			emailValue,
			user.PasswordHash,
			user.Nickname,
			string(user.Status),
			user.LoginCount,
			user.CreatedAt,
			user.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert user sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return unavailable("insert user", err)
	}

	return nil
}

// GetByID retrieves a user by identifier.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	stmt, args, err := r.builder.
		Select(userColumns...).
		From("users").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user sql: %w", err)
	}

	return scanUser(r.exec.QueryRow(ctx, stmt, args...))
}

// GetByIdentifier retrieves a user by username or email.
func (r *UserRepository) GetByIdentifier(ctx context.Context, identifier string) (*domain.User, error) {
	stmt, args, err := r.builder.
		Select(userColumns...).
		From("users").
		Where(squirrel.Or{
			squirrel.Eq{"username": identifier},
			squirrel.Eq{"email": identifier},
		}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user by identifier sql: %w", err)
	}

	return scanUser(r.exec.QueryRow(ctx, stmt, args...))
}

// RecordLogin stamps the last login and increments the counter in a single statement.
func (r *UserRepository) RecordLogin(ctx context.Context, id string, ip string, at time.Time) error {
	stmt, args, err := r.builder.Update("users").
		Set("last_login_time", at).
		Set("last_login_ip", ip).
		Set("login_count", squirrel.Expr("login_count + 1")).
		Set("updated_at", at).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build record login sql: %w", err)
	}

	return r.execAffectingOne(ctx, "record login", stmt, args)
}

// UpdatePassword replaces the stored password digest.
func (r *UserRepository) UpdatePassword(ctx context.Context, id string, passwordHash string, changedAt time.Time) error {
	stmt, args, err := r.builder.Update("users").
		Set("password_hash", passwordHash).
		Set("updated_at", changedAt).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update password sql: %w", err)
	}

	return r.execAffectingOne(ctx, "update password", stmt, args)
}

// UpdateStatus toggles the account status.
func (r *UserRepository) UpdateStatus(ctx context.Context, id string, status domain.UserStatus) error {
	stmt, args, err := r.builder.Update("users").
		Set("status", string(status)).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update status sql: %w", err)
	}

	return r.execAffectingOne(ctx, "update status", stmt, args)
}

func (r *UserRepository) execAffectingOne(ctx context.Context, op, stmt string, args []any) error {
	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return unavailable(op, err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		user      domain.User
		email     sql.NullString
		nickname  sql.NullString
		status    string
		lastLogin sql.NullTime
		lastIP    sql.NullString
	)

	if err := row.Scan(
		&user.ID,
		&user.Username,
		&email,
		&user.PasswordHash,
		&nickname,
		&status,
		&lastLogin,
		&lastIP,
		&user.LoginCount,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, unavailable("scan user", err)
	}

	user.Email = email.String
	user.Nickname = nickname.String
	user.Status = domain.UserStatus(status)
	if lastLogin.Valid {
		at := lastLogin.Time
		user.LastLoginTime = &at
	}
	if lastIP.Valid {
		ip := lastIP.String
		user.LastLoginIP = &ip
	}

	return &user, nil
}
