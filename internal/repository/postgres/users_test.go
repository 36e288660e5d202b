package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/arklim/access-gateway/internal/core/domain"
	"github.com/arklim/access-gateway/internal/repository"
)

func TestUserRepository_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)
	now := time.Now().UTC()
	user := domain.User{
		ID:           "user-1",
		Username:     "alice_1",
		Email:        "alice@example.com",
		PasswordHash: "argon2id$hash",
		Nickname:     "Alice",
		Status:       domain.UserStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	mock.ExpectExec(`INSERT INTO users`).
		WithArgs(user.ID, user.Username, user.Email, user.PasswordHash, user.Nickname, "active", int64(0), now, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_CreateDuplicateMapsToConflict(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)
	now := time.Now().UTC()

	mock.ExpectExec(`INSERT INTO users`).
		WithArgs("user-2", "alice_1", nil, "hash", "", "active", int64(0), now, now).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_username_key"})

	err = repo.Create(context.Background(), domain.User{
		ID:           "user-2",
		Username:     "alice_1",
		PasswordHash: "hash",
		Status:       domain.UserStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestUserRepository_GetByIdentifier(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)
	created := time.Now().UTC().Add(-time.Hour)
	lastLogin := created.Add(30 * time.Minute)

	rows := pgxmock.NewRows(userColumns).AddRow(
		"user-1", "alice_1", "alice@example.com", "hash", "Alice", "disabled",
		lastLogin, "198.51.100.7", int64(3), created, created,
	)
	mock.ExpectQuery(`SELECT .* FROM users WHERE \(username = \$1 OR email = \$2\) LIMIT 1`).
		WithArgs("alice_1", "alice_1").
		WillReturnRows(rows)

	user, err := repo.GetByIdentifier(context.Background(), "alice_1")
	if err != nil {
		t.Fatalf("GetByIdentifier returned error: %v", err)
	}
	if user.Status != domain.UserStatusDisabled {
		t.Fatalf("expected disabled status, got %q", user.Status)
	}
	if user.LastLoginIP == nil || *user.LastLoginIP != "198.51.100.7" {
		t.Fatalf("unexpected last login ip: %v", user.LastLoginIP)
	}
	if user.LoginCount != 3 {
		t.Fatalf("expected login count 3, got %d", user.LoginCount)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_GetByIDNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)
	mock.ExpectQuery(`SELECT .* FROM users WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	if _, err := repo.GetByID(context.Background(), "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUserRepository_RecordLoginIncrementsInSQL(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)
	at := time.Now().UTC()

	mock.ExpectExec(`UPDATE users SET last_login_time = \$1, last_login_ip = \$2, login_count = login_count \+ 1, updated_at = \$3 WHERE id = \$4`).
		WithArgs(at, "203.0.113.9", at, "user-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := repo.RecordLogin(context.Background(), "user-1", "203.0.113.9", at); err != nil {
		t.Fatalf("RecordLogin returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_UpdatePasswordMissingUser(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)
	at := time.Now().UTC()

	mock.ExpectExec(`UPDATE users SET password_hash`).
		WithArgs("new-hash", at, "ghost").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := repo.UpdatePassword(context.Background(), "ghost", "new-hash", at); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUserRepository_DriverFailureIsUnavailable(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)
	mock.ExpectExec(`UPDATE users SET status`).
		WithArgs("disabled", "user-1").
		WillReturnError(errors.New("connection reset"))

	if err := repo.UpdateStatus(context.Background(), "user-1", domain.UserStatusDisabled); !errors.Is(err, repository.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
