package userstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/authgate"
	"github.com/MrEthical07/authgate/password"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema creates the table the Postgres store reads.
const Schema = `CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	username      TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	first_name    TEXT NOT NULL DEFAULT '',
	last_name     TEXT NOT NULL DEFAULT '',
	email         TEXT NOT NULL DEFAULT '',
	verified      BOOLEAN NOT NULL DEFAULT FALSE
)`

const (
	selectByUsername = `SELECT id, password_hash, first_name, last_name, email, verified FROM users WHERE username = $1`
	selectByID       = `SELECT id, first_name, last_name, email, verified FROM users WHERE id = $1`
	insertUser       = `INSERT INTO users (id, username, password_hash, first_name, last_name, email, verified) VALUES ($1, $2, $3, $4, $5, $6, $7)`
)

// poolIface is the subset of *pgxpool.Pool the store needs.
type poolIface interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
}

// Postgres is a UserStore backed by the users table.
type Postgres struct {
	pool   poolIface
	hasher *password.Argon2
}

func NewPostgres(pool poolIface, hasher *password.Argon2) *Postgres {
	return &Postgres{pool: pool, hasher: hasher}
}

// OpenPostgres connects a pool to dsn and verifies the connection.
func OpenPostgres(ctx context.Context, dsn string, hasher *password.Argon2) (*Postgres, *pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return NewPostgres(pool, hasher), pool, nil
}

// Migrate applies Schema.
func (s *Postgres) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create users table: %w", err)
	}
	return nil
}

// Create inserts a user with a freshly hashed password.
func (s *Postgres) Create(ctx context.Context, username, plaintext string, p authgate.Principal) error {
	hash, err := s.hasher.Hash(plaintext)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, insertUser,
		p.UserID, normalizeUsername(username), hash, p.FirstName, p.LastName, p.Email, p.Verified)
	if err != nil {
		return fmt.Errorf("failed to insert user %s: %w", p.UserID, err)
	}
	return nil
}

func (s *Postgres) VerifyCredentials(ctx context.Context, username, plaintext string) (authgate.Principal, error) {
	var (
		p    authgate.Principal
		hash string
	)
	err := s.pool.QueryRow(ctx, selectByUsername, normalizeUsername(username)).
		Scan(&p.UserID, &hash, &p.FirstName, &p.LastName, &p.Email, &p.Verified)
	if errors.Is(err, pgx.ErrNoRows) {
		s.hasher.VerifyDummy(plaintext)
		return authgate.Principal{}, authgate.ErrUserNotFound
	}
	if err != nil {
		return authgate.Principal{}, fmt.Errorf("failed to query user: %w", err)
	}

	match, err := s.hasher.Verify(plaintext, hash)
	if err != nil {
		return authgate.Principal{}, fmt.Errorf("verify password for %s: %w", p.UserID, err)
	}
	if !match {
		return authgate.Principal{}, authgate.ErrInvalidCredentials
	}
	return p, nil
}

func (s *Postgres) FindByID(ctx context.Context, userID string) (authgate.Principal, error) {
	var p authgate.Principal
	err := s.pool.QueryRow(ctx, selectByID, userID).
		Scan(&p.UserID, &p.FirstName, &p.LastName, &p.Email, &p.Verified)
	if errors.Is(err, pgx.ErrNoRows) {
		return authgate.Principal{}, authgate.ErrUserNotFound
	}
	if err != nil {
		return authgate.Principal{}, fmt.Errorf("failed to query user %s: %w", userID, err)
	}
	return p, nil
}

// Ping checks database connectivity.
func (s *Postgres) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
