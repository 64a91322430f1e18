package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/purrgrammer/grimoire-sub000/internal/cache"
	"github.com/purrgrammer/grimoire-sub000/internal/config"
	"github.com/purrgrammer/grimoire-sub000/internal/resolver"
)

func main() {
	settings, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	InitLogger(settings.LogLevel)

	store := newCacheBackend(settings)
	defer store.Close()

	a := &app{
		settings: settings,
		resolver: resolver.New(store, cache.DefaultConfig()),
		pool:     NewRelayPool(),
	}
	defer a.pool.CloseAll()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(a).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// newCacheBackend builds the resolver cache. Redis failures degrade to the
// in-memory cache instead of aborting.
func newCacheBackend(s *config.Settings) cache.Backend {
	if s.CacheBackend == "redis" {
		rc, err := cache.NewRedisCache(s.RedisURL, "grimoire:")
		if err == nil {
			return rc
		}
		slog.Warn("redis cache unavailable, using memory cache", "error", err)
	}
	return cache.NewMemoryCache(10000, 5*time.Minute)
}
