package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tweetyard/domain"
)

type UserStore struct {
	DB *sql.DB
}

// Create inserts u with the given password hash. A taken username yields domain.ErrDuplicate.
func (s *UserStore) Create(ctx context.Context, u *domain.User, passwordHash []byte) error {
	_, err := s.DB.ExecContext(ctx,
		"INSERT INTO users (id, username, password_hash, created_at) VALUES ($1, $2, $3, $4)",
		u.ID, u.Username, string(passwordHash), u.CreatedAt.UnixNano())
	if isUniqueViolation(err) {
		return domain.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *UserStore) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := s.DB.QueryRowContext(ctx, "SELECT id, username, created_at FROM users WHERE id = $1", id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// Exists reports whether username is taken, ignoring case.
func (s *UserStore) Exists(ctx context.Context, username string) (bool, error) {
	var count int
	err := s.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE lower(username) = lower($1)", username).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("count users: %w", err)
	}
	return count != 0, nil
}

// Credentials returns the user and stored password hash for username.
func (s *UserStore) Credentials(ctx context.Context, username string) (*domain.User, []byte, error) {
	var (
		u         domain.User
		hash      string
		createdAt int64
	)
	err := s.DB.QueryRowContext(ctx,
		"SELECT id, username, created_at, password_hash FROM users WHERE lower(username) = lower($1)", username).
		Scan(&u.ID, &u.Username, &createdAt, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get credentials: %w", err)
	}
	u.CreatedAt = time.Unix(0, createdAt).UTC()
	return &u, []byte(hash), nil
}

func scanUser(row scanner) (*domain.User, error) {
	var (
		u         domain.User
		createdAt int64
	)
	if err := row.Scan(&u.ID, &u.Username, &createdAt); err != nil {
		return nil, err
	}
	u.CreatedAt = time.Unix(0, createdAt).UTC()
	return &u, nil
}
