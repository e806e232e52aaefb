package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authgate/internal"
	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps every Redis transport or server failure.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrSessionNotFound is returned for unknown, malformed or expired session ids.
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionIDCollision is returned when Save finds the id already taken.
var ErrSessionIDCollision = errors.New("session id collision")

const minSessionTTL = time.Second

// Store persists sessions under <prefix>:s:<sessionID> with a Redis TTL equal
// to the remaining lifetime.
type Store struct {
	redis   redis.UniversalClient
	prefix  string
	ttl     time.Duration
	sliding bool
	now     func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithClock overrides the clock used for CreatedAt, ExpiresAt and sliding
// refreshes.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore returns a Store. With sliding enabled every successful Get pushes
// the expiry to now+ttl.
func NewStore(
	redis redis.UniversalClient,
	prefix string,
	ttl time.Duration,
	sliding bool,
	opts ...StoreOption,
) *Store {
	s := &Store{
		redis:   redis,
		prefix:  prefix,
		ttl:     ttl,
		sliding: sliding,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) key(sessionID string) string {
	return s.prefix + ":s:" + sessionID
}

// TTL reports the configured session lifetime.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Create mints a fresh random id for principalID and saves the session.
func (s *Store) Create(ctx context.Context, principalID string) (*Session, error) {
	sid, err := internal.NewSessionID()
	if err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}

	now := s.now()
	sess := &Session{
		SessionID:   sid.String(),
		PrincipalID: principalID,
		CreatedAt:   now.Unix(),
		ExpiresAt:   now.Add(s.ttl).Unix(),
	}
	if err := s.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Save writes sess if its id is not already present.
func (s *Store) Save(ctx context.Context, sess *Session) error {
	data, err := Encode(sess)
	if err != nil {
		return err
	}

	ttl := sess.ExpiresAtTime().Sub(s.now())
	if ttl < minSessionTTL {
		return errors.New("session already expired")
	}

	ok, err := s.redis.SetNX(ctx, s.key(sess.SessionID), data, ttl).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if !ok {
		return ErrSessionIDCollision
	}
	return nil
}

// Get loads a live session. Ids that cannot have been minted by Create are
// rejected without a round trip.
func (s *Store) Get(ctx context.Context, sessionID string) (*Session, error) {
	if _, err := internal.ParseSessionID(sessionID); err != nil {
		return nil, ErrSessionNotFound
	}
	key := s.key(sessionID)

	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		// A blob we cannot read is treated as gone.
		_ = s.redis.Del(ctx, key).Err()
		return nil, ErrSessionNotFound
	}
	sess.SessionID = sessionID

	now := s.now()
	if sess.Expired(now) {
		if err := s.redis.Del(ctx, key).Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		return nil, ErrSessionNotFound
	}

	if s.sliding {
		sess.ExpiresAt = now.Add(s.ttl).Unix()
		refreshed, err := Encode(sess)
		if err != nil {
			return nil, err
		}
		if err := s.redis.SetXX(ctx, key, refreshed, s.ttl).Err(); err != nil && !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return sess, nil
}

// Delete removes the session. Deleting an unknown id is not an error.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if _, err := internal.ParseSessionID(sessionID); err != nil {
		return nil
	}
	if err := s.redis.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Ping measures a Redis round trip.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}
