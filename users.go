package argot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrNotWhitelisted is returned when signing up with a name that is not
	// on the whitelist.
	ErrNotWhitelisted = errors.New("username is not whitelisted")
	// ErrUserExists is returned when signing up with a taken name.
	ErrUserExists = errors.New("username already taken")
	// ErrBadCredentials is returned when a login does not match.
	ErrBadCredentials = errors.New("invalid username or password")
)

// AddToWhitelist allows name to sign up. Adding a name twice is a no-op.
func (s *Store) AddToWhitelist(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO whitelist (name) VALUES (?)`, name)
	return err
}

// IsWhitelisted reports whether name may sign up.
func (s *Store) IsWhitelisted(ctx context.Context, name string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM whitelist WHERE name = ?`, name).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// CreateUser signs up a whitelisted user with a bcrypt hash of password.
func (s *Store) CreateUser(ctx context.Context, name, password string) (User, error) {
	ok, err := s.IsWhitelisted(ctx, name)
	if err != nil {
		return User{}, err
	}
	if !ok {
		return User{}, ErrNotWhitelisted
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	u := User{Name: name, PasswordHash: hash, Created: time.Now()}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (name, password_hash, created) VALUES (?, ?, ?) ON CONFLICT(name) DO NOTHING`,
		u.Name, u.PasswordHash, u.Created.UnixNano())
	if err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return User{}, ErrUserExists
	}
	return u, nil
}

// Authenticate returns the user when password matches.
func (s *Store) Authenticate(ctx context.Context, name, password string) (User, error) {
	var u User
	var created int64
	err := s.db.QueryRowContext(ctx, `SELECT name, password_hash, created FROM users WHERE name = ?`, name).
		Scan(&u.Name, &u.PasswordHash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrBadCredentials
	}
	if err != nil {
		return User{}, err
	}
	if bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)) != nil {
		return User{}, ErrBadCredentials
	}
	u.Created = time.Unix(0, created)
	return u, nil
}
