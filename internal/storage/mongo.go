package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"golang.org/x/sync/singleflight"

	"github.com/blocke-ledger/internal/config"
	apperrors "github.com/blocke-ledger/internal/errors"
)

// Collection names
const (
	CollectionAIBalances  = "ai_balances"
	CollectionStaking     = "staking"
	CollectionPreferences = "preferences"
	CollectionBEUIDs      = "beuids"
	CollectionCounters    = "counters"
)

// MongoDB permission-related server error codes
var mongoPermissionCodes = []int{
	13,   // Unauthorized
	18,   // AuthenticationFailed
	8000, // AtlasError (user lacks the privilege on Atlas)
}

type dialFunc func(ctx context.Context) (*mongo.Client, error)

// MongoDB is the process-wide document store handle.
// The client is created on first use; concurrent first callers share one
// in-flight connect and a failed connect is retried by the next caller.
type MongoDB struct {
	cfg  *config.MongoConfig
	dial dialFunc

	mu     sync.RWMutex
	client *mongo.Client
	db     *mongo.Database

	group singleflight.Group
}

// NewMongoDB creates a lazily connecting MongoDB handle
func NewMongoDB(cfg *config.MongoConfig) *MongoDB {
	m := &MongoDB{cfg: cfg}
	m.dial = m.defaultDial
	return m
}

func (m *MongoDB) defaultDial(ctx context.Context) (*mongo.Client, error) {
	opts := options.Client().
		ApplyURI(m.cfg.URI).
		SetConnectTimeout(m.cfg.ConnectTimeout).
		SetServerSelectionTimeout(m.cfg.ConnectTimeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client, nil
}

// Database returns the configured database, connecting on first use
func (m *MongoDB) Database(ctx context.Context) (*mongo.Database, error) {
	m.mu.RLock()
	db := m.db
	m.mu.RUnlock()
	if db != nil {
		return db, nil
	}

	ch := m.group.DoChan("connect", func() (interface{}, error) {
		m.mu.RLock()
		existing := m.db
		m.mu.RUnlock()
		if existing != nil {
			return existing, nil
		}

		// Detached from the caller so one cancelled request does not fail
		// every other request waiting on the same connect.
		dialCtx, cancel := context.WithTimeout(context.Background(), m.cfg.ConnectTimeout)
		defer cancel()

		client, err := m.dial(dialCtx)
		if err != nil {
			return nil, err
		}

		database := client.Database(m.cfg.Database)

		m.mu.Lock()
		m.client = client
		m.db = database
		m.mu.Unlock()

		return database, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, apperrors.NewDatabaseError("connect", res.Err)
		}
		return res.Val.(*mongo.Database), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Collection returns a handle to the named collection
func (m *MongoDB) Collection(ctx context.Context, name string) (*mongo.Collection, error) {
	db, err := m.Database(ctx)
	if err != nil {
		return nil, err
	}
	return db.Collection(name), nil
}

// Ping checks if MongoDB is reachable
func (m *MongoDB) Ping(ctx context.Context) error {
	if _, err := m.Database(ctx); err != nil {
		return err
	}

	m.mu.RLock()
	client := m.client
	m.mu.RUnlock()

	return client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client if one was created
func (m *MongoDB) Close(ctx context.Context) error {
	m.mu.Lock()
	client := m.client
	m.client = nil
	m.db = nil
	m.mu.Unlock()

	if client == nil {
		return nil
	}
	return client.Disconnect(ctx)
}

// EnsureIndexes creates the unique indexes the repositories rely on
func (m *MongoDB) EnsureIndexes(ctx context.Context) error {
	db, err := m.Database(ctx)
	if err != nil {
		return err
	}

	unique := func(keys bson.D) mongo.IndexModel {
		return mongo.IndexModel{Keys: keys, Options: options.Index().SetUnique(true)}
	}

	indexes := map[string][]mongo.IndexModel{
		CollectionAIBalances:  {unique(bson.D{{Key: "address", Value: 1}})},
		CollectionStaking:     {unique(bson.D{{Key: "address", Value: 1}})},
		CollectionPreferences: {unique(bson.D{{Key: "address", Value: 1}})},
		CollectionBEUIDs: {
			unique(bson.D{{Key: "uid", Value: 1}}),
			unique(bson.D{{Key: "address", Value: 1}}),
		},
	}

	for collection, models := range indexes {
		if _, err := db.Collection(collection).Indexes().CreateMany(ctx, models); err != nil {
			return wrapMongoError("create indexes on "+collection, err)
		}
	}

	return nil
}

// wrapMongoError converts driver errors into categorized errors.
// Permission failures get their own category so handlers can show a distinct message.
func wrapMongoError(operation string, err error) error {
	if err == nil {
		return nil
	}

	var catErr *apperrors.CategorizedError
	if errors.As(err, &catErr) {
		return err
	}

	if isPermissionError(err) {
		return apperrors.NewPermissionError(operation, err)
	}

	return apperrors.NewDatabaseError(operation, err)
}

func isPermissionError(err error) bool {
	var serverErr mongo.ServerError
	if !errors.As(err, &serverErr) {
		return false
	}
	for _, code := range mongoPermissionCodes {
		if serverErr.HasErrorCode(code) {
			return true
		}
	}
	return false
}
