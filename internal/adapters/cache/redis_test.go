package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*RedisSessionRevocationStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisSessionRevocationStore(client), mr
}

func TestMarkRevokedAndIsRevoked(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	ctx := context.Background()
	sessionID := uuid.New()

	revoked, err := store.IsRevoked(ctx, sessionID)
	if err != nil {
		t.Fatalf("is revoked failed: %v", err)
	}
	if revoked {
		t.Fatalf("unknown session should not read as revoked")
	}

	if err := store.MarkRevoked(ctx, sessionID, time.Now().Add(15*time.Minute)); err != nil {
		t.Fatalf("mark revoked failed: %v", err)
	}
	revoked, err = store.IsRevoked(ctx, sessionID)
	if err != nil {
		t.Fatalf("is revoked failed: %v", err)
	}
	if !revoked {
		t.Fatalf("marked session should read as revoked")
	}
}

func TestRevocationMarkerExpires(t *testing.T) {
	t.Parallel()

	store, mr := newTestStore(t)
	ctx := context.Background()
	sessionID := uuid.New()

	if err := store.MarkRevoked(ctx, sessionID, time.Now().Add(15*time.Minute)); err != nil {
		t.Fatalf("mark revoked failed: %v", err)
	}

	mr.FastForward(16 * time.Minute)

	revoked, err := store.IsRevoked(ctx, sessionID)
	if err != nil {
		t.Fatalf("is revoked failed: %v", err)
	}
	if revoked {
		t.Fatalf("marker should expire with the access-token window")
	}
}

func TestMarkRevokedPastExpiryStillSetsMarker(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	ctx := context.Background()
	sessionID := uuid.New()

	// A marker requested with an already-past expiry still gets a floor TTL.
	if err := store.MarkRevoked(ctx, sessionID, time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("mark revoked failed: %v", err)
	}
	revoked, err := store.IsRevoked(ctx, sessionID)
	if err != nil {
		t.Fatalf("is revoked failed: %v", err)
	}
	if !revoked {
		t.Fatalf("marker with floor ttl should be present")
	}
}

func TestConnectParsesRedisURL(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client, err := Connect(context.Background(), "redis://"+mr.Addr())
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("ping failed: %v", err)
	}
}
