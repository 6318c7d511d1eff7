package valkey

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giantswarm/storefront/storage"
)

// testStore creates a test store connected to a local Valkey instance.
// Tests are skipped if the connection fails.
// Each test gets a unique prefix to ensure test isolation.
func testStore(t *testing.T) *Store {
	t.Helper()

	addr := os.Getenv("VALKEY_TEST_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	prefix := fmt.Sprintf("storefronttest:%s:", t.Name())

	store, err := New(Config{
		Address:   addr,
		KeyPrefix: prefix,
	})
	if err != nil {
		t.Skipf("Skipping test: could not connect to Valkey at %s: %v", addr, err)
	}

	t.Cleanup(func() {
		cleanupTestKeys(t, store)
		store.Close()
	})

	cleanupTestKeys(t, store)
	return store
}

// cleanupTestKeys removes all test keys from Valkey
func cleanupTestKeys(t *testing.T, s *Store) {
	t.Helper()

	ctx := context.Background()
	pattern := s.prefix + "*"

	var cursor uint64
	for {
		result, err := s.client.Do(ctx,
			s.client.B().Scan().Cursor(cursor).Match(pattern).Count(100).Build(),
		).AsScanEntry()
		if err != nil {
			t.Logf("Warning: failed to scan for cleanup: %v", err)
			return
		}

		for _, key := range result.Elements {
			_ = s.client.Do(ctx, s.client.B().Del().Key(key).Build())
		}

		cursor = result.Cursor
		if cursor == 0 {
			break
		}
	}
}

func TestNew_RequiresAddress(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "address is required")
}

func TestStore_Increment(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	now := time.Now()

	c, err := s.Increment(ctx, "1.2.3.4", now, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), c.Count)
	assert.WithinDuration(t, now.Add(time.Minute), c.ResetAt, 2*time.Second)

	for i := 0; i < 4; i++ {
		c, err = s.Increment(ctx, "1.2.3.4", now, time.Minute)
		require.NoError(t, err)
	}
	assert.Equal(t, int64(5), c.Count)

	other, err := s.Increment(ctx, "5.6.7.8", now, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), other.Count, "keys must be isolated")
}

func TestStore_Increment_WindowExpires(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	_, err := s.Increment(ctx, "k", time.Now(), 100*time.Millisecond)
	require.NoError(t, err)
	_, err = s.Increment(ctx, "k", time.Now(), 100*time.Millisecond)
	require.NoError(t, err)

	time.Sleep(250 * time.Millisecond)

	c, err := s.Increment(ctx, "k", time.Now(), 100*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, int64(1), c.Count)
}

func TestStore_Increment_Concurrent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Increment(ctx, "shared", time.Now(), time.Minute)
		}()
	}
	wg.Wait()

	c, err := s.Increment(ctx, "shared", time.Now(), time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(21), c.Count)
}

func TestStore_Reset(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	_, _ = s.Increment(ctx, "k", time.Now(), time.Minute)
	_, _ = s.Increment(ctx, "k", time.Now(), time.Minute)
	require.NoError(t, s.Reset(ctx, "k"))

	c, err := s.Increment(ctx, "k", time.Now(), time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), c.Count)
}

func TestStore_Sessions(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	now := time.Now()

	err := s.SaveSession(ctx, &storage.Session{Token: "tok", CreatedAt: now, ExpiresAt: now.Add(time.Hour)})
	require.NoError(t, err)

	got, err := s.GetSession(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, "tok", got.Token)
	assert.WithinDuration(t, now.Add(time.Hour), got.ExpiresAt, time.Second)

	require.NoError(t, s.DeleteSession(ctx, "tok"))
	_, err = s.GetSession(ctx, "tok")
	assert.True(t, errors.Is(err, storage.ErrSessionNotFound))
}

func TestStore_SaveSession_Expired(t *testing.T) {
	s := testStore(t)
	past := time.Now().Add(-time.Minute)

	err := s.SaveSession(context.Background(), &storage.Session{Token: "old", CreatedAt: past, ExpiresAt: past})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
