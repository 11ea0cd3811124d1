package storage

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/blocke-ledger/internal/config"
)

// testContext creates a context with timeout for tests
func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// testRedis starts an in-process Redis and returns a cache bound to it
func testRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCacheFromClient(client), mr
}

// testMongo connects to the MongoDB named by TEST_MONGODB_URI using a
// throwaway database. The test is skipped when MongoDB is not reachable.
func testMongo(t *testing.T) *MongoDB {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	uri := os.Getenv("TEST_MONGODB_URI")
	if uri == "" {
		uri = "mongodb://localhost:27017"
	}

	db := NewMongoDB(&config.MongoConfig{
		URI:            uri,
		Database:       fmt.Sprintf("blocke_test_%d", time.Now().UnixNano()),
		ConnectTimeout: 2 * time.Second,
	})

	ctx := testContext(t)
	if err := db.Ping(ctx); err != nil {
		t.Skipf("Skipping test - MongoDB not available: %v", err)
	}
	if err := db.EnsureIndexes(ctx); err != nil {
		t.Fatalf("EnsureIndexes() error = %v", err)
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if database, err := db.Database(ctx); err == nil {
			_ = database.Drop(ctx)
		}
		_ = db.Close(ctx)
	})

	return db
}

// testPostgres connects to the Postgres described by TEST_POSTGRES_* and
// applies migrations. The test is skipped when Postgres is not reachable.
func testPostgres(t *testing.T) *PostgresDB {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	cfg := &config.PostgresConfig{
		Host:           envOr("TEST_POSTGRES_HOST", "localhost"),
		Port:           envOr("TEST_POSTGRES_PORT", "5432"),
		Database:       envOr("TEST_POSTGRES_DB", "blocke_test"),
		User:           envOr("TEST_POSTGRES_USER", "blocke"),
		Password:       envOr("TEST_POSTGRES_PASSWORD", "blocke"),
		MaxConnections: 4,
	}

	db, err := NewPostgresDB(context.Background(), cfg)
	if err != nil {
		t.Skipf("Skipping test - Postgres not available: %v", err)
	}
	t.Cleanup(db.Close)

	if err := RunMigrations(cfg.URL(), "../../migrations/postgres"); err != nil {
		t.Fatalf("RunMigrations() error = %v", err)
	}

	return db
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
