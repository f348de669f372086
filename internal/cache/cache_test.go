package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/braintease/quizlink/internal/cache"
	"github.com/braintease/quizlink/internal/domain"
)

func TestStores(t *testing.T) {
	stores := map[string]func(t *testing.T) cache.Store{
		"memory": func(t *testing.T) cache.Store {
			return cache.NewMemory()
		},
		"redis": func(t *testing.T) cache.Store {
			mr := miniredis.RunT(t)
			rc := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
			t.Cleanup(func() { _ = rc.Close() })
			return cache.NewRedis(cache.RedisConfig{Redis: rc, Prefix: "test:u1"})
		},
	}

	for name, makeStore := range stores {
		makeStore := makeStore
		t.Run(name, func(t *testing.T) {
			t.Run("session round trip", func(t *testing.T) {
				s := makeStore(t)
				ctx := context.Background()

				_, ok, err := s.GetSession(ctx, cache.KeyCurrentSession)
				require.NoError(t, err)
				assert.False(t, ok)

				want := &domain.Session{
					SessionID:       "s1",
					JoinCode:        "ABC123",
					Status:          domain.StatusWaiting,
					NumberOfPlayers: 3,
					CurrentPlayers:  1,
					Players:         []string{"u1"},
				}
				require.NoError(t, s.PutSession(ctx, cache.KeyCurrentSession, want))

				got, ok, err := s.GetSession(ctx, cache.KeyCurrentSession)
				require.NoError(t, err)
				require.True(t, ok)
				assert.Equal(t, want, got)
			})

			t.Run("code round trip", func(t *testing.T) {
				s := makeStore(t)
				ctx := context.Background()

				_, ok, err := s.GetCode(ctx, cache.KeyCreatedCode)
				require.NoError(t, err)
				assert.False(t, ok)

				require.NoError(t, s.PutCode(ctx, cache.KeyCreatedCode, "XYZ789"))

				code, ok, err := s.GetCode(ctx, cache.KeyCreatedCode)
				require.NoError(t, err)
				require.True(t, ok)
				assert.Equal(t, "XYZ789", code)
			})

			t.Run("keys do not leak into each other", func(t *testing.T) {
				s := makeStore(t)
				ctx := context.Background()

				require.NoError(t, s.PutSession(ctx, cache.KeyCreatedSession, &domain.Session{SessionID: "s1"}))

				_, ok, err := s.GetSession(ctx, cache.KeyCurrentSession)
				require.NoError(t, err)
				assert.False(t, ok)
			})

			t.Run("clear empties every slot", func(t *testing.T) {
				s := makeStore(t)
				ctx := context.Background()

				require.NoError(t, s.PutSession(ctx, cache.KeyCurrentSession, &domain.Session{SessionID: "s1"}))
				require.NoError(t, s.PutCode(ctx, cache.KeyCurrentCode, "ABC123"))

				require.NoError(t, s.Clear(ctx))

				_, ok, err := s.GetSession(ctx, cache.KeyCurrentSession)
				require.NoError(t, err)
				assert.False(t, ok)

				_, ok, err = s.GetCode(ctx, cache.KeyCurrentCode)
				require.NoError(t, err)
				assert.False(t, ok)
			})
		})
	}
}

func TestMemory_CopiesOnReadAndWrite(t *testing.T) {
	m := cache.NewMemory()
	ctx := context.Background()

	orig := &domain.Session{SessionID: "s1", CurrentPlayers: 1}
	require.NoError(t, m.PutSession(ctx, cache.KeyCurrentSession, orig))

	// Mutating the caller's copy must not reach the cached snapshot.
	orig.CurrentPlayers = 9

	got, ok, err := m.GetSession(ctx, cache.KeyCurrentSession)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, got.CurrentPlayers)

	// Nor must mutating a read result.
	got.CurrentPlayers = 7

	again, _, err := m.GetSession(ctx, cache.KeyCurrentSession)
	require.NoError(t, err)
	assert.Equal(t, 1, again.CurrentPlayers)
}

func TestRedis_PrefixesIsolateUsers(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	t.Cleanup(func() { _ = rc.Close() })

	ctx := context.Background()
	u1 := cache.NewRedis(cache.RedisConfig{Redis: rc, Prefix: "quizlink:u1"})
	u2 := cache.NewRedis(cache.RedisConfig{Redis: rc, Prefix: "quizlink:u2"})

	require.NoError(t, u1.PutCode(ctx, cache.KeyCurrentCode, "AAAAAA"))

	_, ok, err := u2.GetCode(ctx, cache.KeyCurrentCode)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedis_EntriesExpire(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	t.Cleanup(func() { _ = rc.Close() })

	ctx := context.Background()
	s := cache.NewRedis(cache.RedisConfig{Redis: rc, Prefix: "quizlink:u1"})

	require.NoError(t, s.PutSession(ctx, cache.KeyCurrentSession, &domain.Session{SessionID: "s1"}))

	mr.FastForward(3 * time.Hour) // past the default TTL

	_, ok, err := s.GetSession(ctx, cache.KeyCurrentSession)
	require.NoError(t, err)
	assert.False(t, ok)
}
