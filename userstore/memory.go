package userstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/MrEthical07/authgate"
	"github.com/MrEthical07/authgate/password"
)

// ErrDuplicateUser is returned when seeding a username or id twice.
var ErrDuplicateUser = errors.New("userstore: duplicate user")

type memoryRecord struct {
	principal    authgate.Principal
	passwordHash string
}

// Memory is a concurrency-safe in-memory user store.
type Memory struct {
	mu         sync.RWMutex
	hasher     *password.Argon2
	byUsername map[string]*memoryRecord
	byID       map[string]*memoryRecord
}

func NewMemory(hasher *password.Argon2) *Memory {
	return &Memory{
		hasher:     hasher,
		byUsername: make(map[string]*memoryRecord),
		byID:       make(map[string]*memoryRecord),
	}
}

// Add hashes plaintext and stores the user under username.
func (m *Memory) Add(username, plaintext string, p authgate.Principal) error {
	hash, err := m.hasher.Hash(plaintext)
	if err != nil {
		return err
	}
	return m.AddHashed(username, hash, p)
}

// AddHashed stores a user whose password is already a PHC argon2id string.
func (m *Memory) AddHashed(username, passwordHash string, p authgate.Principal) error {
	key := normalizeUsername(username)
	if key == "" || p.UserID == "" {
		return fmt.Errorf("userstore: username and user id are required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byUsername[key]; ok {
		return fmt.Errorf("%w: username %q", ErrDuplicateUser, key)
	}
	if _, ok := m.byID[p.UserID]; ok {
		return fmt.Errorf("%w: id %q", ErrDuplicateUser, p.UserID)
	}

	rec := &memoryRecord{principal: p, passwordHash: passwordHash}
	m.byUsername[key] = rec
	m.byID[p.UserID] = rec
	return nil
}

// Remove deletes the user with the given id.
func (m *Memory) Remove(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.byID[userID]
	if !ok {
		return
	}
	delete(m.byID, userID)
	for k, v := range m.byUsername {
		if v == rec {
			delete(m.byUsername, k)
		}
	}
}

func (m *Memory) VerifyCredentials(ctx context.Context, username, plaintext string) (authgate.Principal, error) {
	if err := ctx.Err(); err != nil {
		return authgate.Principal{}, err
	}

	m.mu.RLock()
	rec, ok := m.byUsername[normalizeUsername(username)]
	m.mu.RUnlock()

	if !ok {
		m.hasher.VerifyDummy(plaintext)
		return authgate.Principal{}, authgate.ErrUserNotFound
	}

	match, err := m.hasher.Verify(plaintext, rec.passwordHash)
	if err != nil {
		return authgate.Principal{}, fmt.Errorf("verify password for %s: %w", rec.principal.UserID, err)
	}
	if !match {
		return authgate.Principal{}, authgate.ErrInvalidCredentials
	}
	return rec.principal, nil
}

func (m *Memory) FindByID(ctx context.Context, userID string) (authgate.Principal, error) {
	if err := ctx.Err(); err != nil {
		return authgate.Principal{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.byID[userID]
	if !ok {
		return authgate.Principal{}, authgate.ErrUserNotFound
	}
	return rec.principal, nil
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
