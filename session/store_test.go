package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/authgate/internal"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newSessionStoreTest(t *testing.T, sliding bool) (*Store, *miniredis.Miniredis, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewStore(rdb, "ags", time.Hour, sliding)
	return store, mr, func() {
		rdb.Close()
		mr.Close()
	}
}

func TestCreateGetDelete(t *testing.T) {
	store, mr, done := newSessionStoreTest(t, false)
	defer done()
	ctx := context.Background()
	store.now = func() time.Time { return time.Unix(time.Now().Unix(), 0) }

	sess, err := store.Create(ctx, "u1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if sess.SessionID == "u1" || len(sess.SessionID) != 22 {
		t.Fatalf("unexpected session id %q", sess.SessionID)
	}
	if ttl := mr.TTL("ags:s:" + sess.SessionID); ttl != time.Hour {
		t.Fatalf("expected redis ttl of 1h, got %v", ttl)
	}

	got, err := store.Get(ctx, sess.SessionID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.PrincipalID != "u1" || got.ExpiresAt != sess.ExpiresAt {
		t.Fatalf("unexpected session %+v", got)
	}

	if err := store.Delete(ctx, sess.SessionID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(ctx, sess.SessionID); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if _, err := store.Get(ctx, sess.SessionID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after delete, got %v", err)
	}
}

func TestGetRejectsUnknownAndMalformedIDs(t *testing.T) {
	store, _, done := newSessionStoreTest(t, false)
	defer done()
	ctx := context.Background()

	sid, _ := internal.NewSessionID()
	for _, id := range []string{"", "u1", "not base64 !!", sid.String()} {
		if _, err := store.Get(ctx, id); !errors.Is(err, ErrSessionNotFound) {
			t.Fatalf("id %q: expected ErrSessionNotFound, got %v", id, err)
		}
	}
}

func TestGetTreatsExpiredSessionAsMissing(t *testing.T) {
	store, mr, done := newSessionStoreTest(t, false)
	defer done()
	ctx := context.Background()

	base := time.Unix(1_700_000_000, 0)
	store.now = func() time.Time { return base }
	sess, err := store.Create(ctx, "u1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	store.now = func() time.Time { return base.Add(time.Hour) }
	if _, err := store.Get(ctx, sess.SessionID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected expired session to be missing, got %v", err)
	}
	if mr.Exists("ags:s:" + sess.SessionID) {
		t.Fatal("expected expired session key to be removed")
	}
}

func TestRedisTTLEvictsSession(t *testing.T) {
	store, mr, done := newSessionStoreTest(t, false)
	defer done()
	ctx := context.Background()

	sess, err := store.Create(ctx, "u1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	mr.FastForward(time.Hour + time.Second)
	if _, err := store.Get(ctx, sess.SessionID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected evicted session to be missing, got %v", err)
	}
}

func TestSlidingGetExtendsExpiry(t *testing.T) {
	store, mr, done := newSessionStoreTest(t, true)
	defer done()
	ctx := context.Background()

	base := time.Unix(1_700_000_000, 0)
	store.now = func() time.Time { return base }
	sess, err := store.Create(ctx, "u1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	store.now = func() time.Time { return base.Add(45 * time.Minute) }
	mr.FastForward(45 * time.Minute)
	got, err := store.Get(ctx, sess.SessionID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if want := base.Add(105 * time.Minute).Unix(); got.ExpiresAt != want {
		t.Fatalf("expected sliding expiry %d, got %d", want, got.ExpiresAt)
	}
	if ttl := mr.TTL("ags:s:" + sess.SessionID); ttl != time.Hour {
		t.Fatalf("expected refreshed ttl of 1h, got %v", ttl)
	}
}

func TestCorruptBlobIsMissing(t *testing.T) {
	store, mr, done := newSessionStoreTest(t, false)
	defer done()

	sid, _ := internal.NewSessionID()
	if err := mr.Set("ags:s:"+sid.String(), "\x09garbage"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := store.Get(context.Background(), sid.String()); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestSaveRefusesCollision(t *testing.T) {
	store, _, done := newSessionStoreTest(t, false)
	defer done()
	ctx := context.Background()

	sess, err := store.Create(ctx, "u1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	dup := *sess
	dup.PrincipalID = "u2"
	if err := store.Save(ctx, &dup); !errors.Is(err, ErrSessionIDCollision) {
		t.Fatalf("expected collision, got %v", err)
	}
}

func TestRedisFailureIsWrapped(t *testing.T) {
	store, mr, done := newSessionStoreTest(t, false)
	defer done()
	mr.Close()

	sid, _ := internal.NewSessionID()
	if _, err := store.Get(context.Background(), sid.String()); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
	if _, err := store.Create(context.Background(), "u1"); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable on create, got %v", err)
	}
	if _, err := store.Ping(context.Background()); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable on ping, got %v", err)
	}
}
