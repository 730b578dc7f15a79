package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/custodia-labs/campus/internal/core/domain"
)

// startRedis runs a Redis container and returns its address.
// Skipped in short mode or without Docker.
func startRedis(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp"),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("redis container unavailable: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)
	return fmt.Sprintf("%s:%s", host, port.Port())
}

func TestNew_RequiresAddr(t *testing.T) {
	_, err := New(context.Background(), Config{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestNew_Unreachable(t *testing.T) {
	_, err := New(context.Background(), Config{Addr: "127.0.0.1:1", Timeout: 200 * time.Millisecond})
	assert.ErrorIs(t, err, domain.ErrCacheUnavailable)
}

func TestCache(t *testing.T) {
	addr := startRedis(t)
	ctx := context.Background()

	cache, err := New(ctx, Config{Addr: addr, KeyPrefix: "test:", Timeout: 2 * time.Second})
	require.NoError(t, err)
	defer cache.Close()

	t.Run("get set delete", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, "news:index", []byte("rendered"), 0))

		got, err := cache.Get(ctx, "news:index")
		require.NoError(t, err)
		assert.Equal(t, []byte("rendered"), got)

		require.NoError(t, cache.Delete(ctx, "news:index", "missing"))
		_, err = cache.Get(ctx, "news:index")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.NoError(t, cache.Delete(ctx))
	})

	t.Run("ttl", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, "short", []byte("x"), 50*time.Millisecond))
		assert.Eventually(t, func() bool {
			_, err := cache.Get(ctx, "short")
			return errors.Is(err, domain.ErrNotFound)
		}, 2*time.Second, 20*time.Millisecond)
	})

	t.Run("tag invalidation", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, "homepage:latest-news", []byte("a"), time.Minute, "news", "homepage"))
		require.NoError(t, cache.Set(ctx, "feed:news-rss", []byte("b"), time.Minute, "news"))
		require.NoError(t, cache.Set(ctx, "calendar:term", []byte("c"), time.Minute, "calendar"))

		require.NoError(t, cache.InvalidateTag(ctx, "news"))

		for _, key := range []string{"homepage:latest-news", "feed:news-rss"} {
			_, err := cache.Get(ctx, key)
			assert.ErrorIs(t, err, domain.ErrNotFound, key)
		}
		_, err := cache.Get(ctx, "calendar:term")
		assert.NoError(t, err)
		assert.NoError(t, cache.InvalidateTag(ctx, "never-used"))
	})

	t.Run("concurrent set keeps tag membership", func(t *testing.T) {
		const writers, perWriter = 4, 50
		var wg sync.WaitGroup
		stop := make(chan struct{})
		stopped := make(chan struct{})

		go func() {
			defer close(stopped)
			for {
				select {
				case <-stop:
					return
				default:
					_ = cache.InvalidateTag(ctx, "events")
				}
			}
		}()
		for w := 0; w < writers; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				for i := 0; i < perWriter; i++ {
					_ = cache.Set(ctx, fmt.Sprintf("event:%d:%d", w, i), []byte("x"), time.Minute, "events")
				}
			}(w)
		}
		wg.Wait()
		close(stop)
		<-stopped

		// Any entry that survived must still be reachable through its tag
		require.NoError(t, cache.InvalidateTag(ctx, "events"))
		for w := 0; w < writers; w++ {
			for i := 0; i < perWriter; i++ {
				key := fmt.Sprintf("event:%d:%d", w, i)
				_, err := cache.Get(ctx, key)
				assert.ErrorIs(t, err, domain.ErrNotFound, key)
			}
		}
	})
}
