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
	"github.com/arklim/access-gateway/internal/repository"
)

var configColumns = []string{
	"config_key",
	"config_value",
	"config_name",
	"config_desc",
	"config_type",
	"module_name",
	"editable",
	"updated_at",
}

// ConfigRepository implements port.ConfigRepository over the sys_config table.
type ConfigRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewConfigRepository constructs the policy repository.
func NewConfigRepository(exec pgExecutor) *ConfigRepository {
	return &ConfigRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// ListAll loads every policy row.
func (r *ConfigRepository) ListAll(ctx context.Context) ([]domain.ConfigEntry, error) {
	stmt, args, err := r.builder.
		Select(configColumns...).
		From("sys_config").
		OrderBy("module_name", "config_key").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list config sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, unavailable("list config", err)
	}
	defer rows.Close()

	entries := make([]domain.ConfigEntry, 0)
	for rows.Next() {
		entry, err := scanConfigEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate config", err)
	}
	return entries, nil
}

// UpdateValue rewrites the value of an existing key and returns the stored row.
func (r *ConfigRepository) UpdateValue(ctx context.Context, key, value string) (*domain.ConfigEntry, error) {
	stmt, args, err := r.builder.Update("sys_config").
		Set("config_value", value).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"config_key": key}).
		Suffix("RETURNING config_key, config_value, config_name, config_desc, config_type, module_name, editable, updated_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update config sql: %w", err)
	}

	entry, err := scanConfigEntry(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Insert adds a new policy row. An existing key surfaces as repository.ErrConflict.
func (r *ConfigRepository) Insert(ctx context.Context, entry domain.ConfigEntry) (*domain.ConfigEntry, error) {
	stmt, args, err := r.builder.Insert("sys_config").
		Columns("config_key", "config_value", "config_name", "config_desc", "config_type", "module_name", "editable").
		Values(entry.Key, entry.Value, entry.DisplayName, entry.Description, entry.ValueType, entry.Module, entry.Editable).
		Suffix("RETURNING config_key, config_value, config_name, config_desc, config_type, module_name, editable, updated_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert config sql: %w", err)
	}

	stored, err := scanConfigEntry(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, repository.ErrConflict
		}
		return nil, err
	}
	return stored, nil
}

func scanConfigEntry(row pgx.Row) (*domain.ConfigEntry, error) {
	var (
		entry     domain.ConfigEntry
		name      sql.NullString
		desc      sql.NullString
		valueType sql.NullString
		module    sql.NullString
		updatedAt time.Time
	)
	if err := row.Scan(
		&entry.Key,
		&entry.Value,
		&name,
		&desc,
		&valueType,
		&module,
		&entry.Editable,
		&updatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		if isUniqueViolation(err) {
			return nil, err
		}
		return nil, unavailable("scan config entry", err)
	}
	entry.DisplayName = name.String
	entry.Description = desc.String
	entry.ValueType = valueType.String
	entry.Module = module.String
	entry.UpdatedAt = updatedAt
	return &entry, nil
}
