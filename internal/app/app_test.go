package app

import (
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/redis/go-redis/v9"

	"github.com/guttosm/fundpulse/config"
	"github.com/guttosm/fundpulse/internal/transport"
)

// offlineQueue returns a RedisQueue whose client points at a closed port;
// constructing the client performs no I/O, so wiring succeeds.
func offlineQueue(config.RedisConfig) (*transport.RedisQueue, error) {
	return transport.NewRedisQueueFromClient(redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})), nil
}

// TestInitializeApp_DBFailure ensures InitializeApp returns error when DB cannot connect.
func TestInitializeApp_DBFailure(t *testing.T) {
	old := postgresOpener
	postgresOpener = func(cfg config.Config) (*sql.DB, error) { return nil, errors.New("db unreachable") }
	t.Cleanup(func() { postgresOpener = old })

	router, cleanup, err := InitializeApp()
	if err == nil || router != nil || cleanup != nil {
		if cleanup != nil {
			cleanup()
		}
		t.Fatalf("expected error from InitializeApp when postgres init fails")
	}
}

// TestInitializeApp_RedisFailure ensures a redis init failure aborts wiring.
func TestInitializeApp_RedisFailure(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}

	oldPG, oldRedis := postgresOpener, redisOpener
	postgresOpener = func(cfg config.Config) (*sql.DB, error) { return db, nil }
	redisOpener = func(config.RedisConfig) (*transport.RedisQueue, error) {
		return nil, errors.New("redis unreachable")
	}
	t.Cleanup(func() {
		postgresOpener, redisOpener = oldPG, oldRedis
	})

	if _, _, err := InitializeApp(); err == nil {
		t.Fatalf("expected error from InitializeApp when redis init fails")
	}
}

func TestInitializeApp_HappyPath(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}

	oldPG, oldRedis := postgresOpener, redisOpener
	postgresOpener = func(cfg config.Config) (*sql.DB, error) { return db, nil }
	redisOpener = offlineQueue
	t.Cleanup(func() {
		postgresOpener, redisOpener = oldPG, oldRedis
	})

	router, cleanup, err := InitializeApp()
	if err != nil || router == nil || cleanup == nil {
		t.Fatalf("InitializeApp failed: %v", err)
	}
	t.Cleanup(cleanup)

	// Liveness must pass regardless of dependency state.
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("healthz: expected 200, got %d", w.Code)
	}

	// Readiness degrades because the queue points at a closed port.
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz: expected 503 with offline redis, got %d", w.Code)
	}
}
