package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/arklim/access-gateway/internal/core/domain"
	"github.com/arklim/access-gateway/internal/core/port"
)

const defaultAttemptPageSize = 50

// LoginAttemptRepository persists the append-only login audit trail in user_login_logs.
type LoginAttemptRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewLoginAttemptRepository constructs the audit repository.
func NewLoginAttemptRepository(exec pgExecutor) *LoginAttemptRepository {
	return &LoginAttemptRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Append inserts a login attempt row.
func (r *LoginAttemptRepository) Append(ctx context.Context, attempt domain.LoginAttempt) error {
	var userID any
	if attempt.UserID != nil && *attempt.UserID != "" {
		userID = *attempt.UserID
	}

	stmt, args, err := r.builder.Insert("user_login_logs").
		Columns("id", "user_id", "username", "ip_address", "user_agent", "outcome", "failure_reason", "created_at").
		Values(
			attempt.ID,
			userID,
			attempt.Username,
			attempt.IPAddress,
			attempt.UserAgent,
			string(attempt.Outcome),
			attempt.FailureReason,
			attempt.CreatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert login attempt sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return unavailable("insert login attempt", err)
	}
	return nil
}

// List returns attempts matching the filter, newest first.
func (r *LoginAttemptRepository) List(ctx context.Context, filter port.LoginAttemptFilter) ([]domain.LoginAttempt, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultAttemptPageSize
	}

	query := r.builder.
		Select("id", "user_id", "username", "ip_address", "user_agent", "outcome", "failure_reason", "created_at").
		From("user_login_logs").
		Where(attemptPredicate(filter)).
		OrderBy("created_at DESC").
		Limit(uint64(limit))
	if filter.Offset > 0 {
		query = query.Offset(uint64(filter.Offset))
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list login attempts sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, unavailable("list login attempts", err)
	}
	defer rows.Close()

	attempts := make([]domain.LoginAttempt, 0)
	for rows.Next() {
		var (
			attempt   domain.LoginAttempt
			userID    sql.NullString
			userAgent sql.NullString
			reason    sql.NullString
			outcome   string
			createdAt time.Time
		)
		if err := rows.Scan(
			&attempt.ID,
			&userID,
			&attempt.Username,
			&attempt.IPAddress,
			&userAgent,
			&outcome,
			&reason,
			&createdAt,
		); err != nil {
			return nil, unavailable("scan login attempt", err)
		}
		if userID.Valid {
			id := userID.String
			attempt.UserID = &id
		}
		attempt.UserAgent = userAgent.String
		attempt.FailureReason = reason.String
		attempt.Outcome = domain.LoginOutcome(outcome)
		attempt.CreatedAt = createdAt
		attempts = append(attempts, attempt)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate login attempts", err)
	}

	return attempts, nil
}

// Count returns how many attempts match the filter, ignoring paging.
func (r *LoginAttemptRepository) Count(ctx context.Context, filter port.LoginAttemptFilter) (int, error) {
	stmt, args, err := r.builder.
		Select("COUNT(*)").
		From("user_login_logs").
		Where(attemptPredicate(filter)).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count login attempts sql: %w", err)
	}

	var total int64
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&total); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, unavailable("count login attempts", err)
	}
	return int(total), nil
}

func attemptPredicate(filter port.LoginAttemptFilter) squirrel.And {
	predicate := squirrel.And{}
	if filter.UserID != "" {
		predicate = append(predicate, squirrel.Eq{"user_id": filter.UserID})
	}
	if filter.Username != "" {
		predicate = append(predicate, squirrel.Eq{"username": filter.Username})
	}
	if filter.Outcome != "" {
		predicate = append(predicate, squirrel.Eq{"outcome": string(filter.Outcome)})
	}
	if filter.Since != nil {
		predicate = append(predicate, squirrel.GtOrEq{"created_at": *filter.Since})
	}
	return predicate
}
