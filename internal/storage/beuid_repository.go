package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	apperrors "github.com/blocke-ledger/internal/errors"
	"github.com/blocke-ledger/internal/models"
	"github.com/blocke-ledger/internal/types"
)

const beuidCounterID = "beuid"

// FormatBEUID renders a sequence number as a BEUID
func FormatBEUID(seq int64) string {
	return fmt.Sprintf("BE%06d", seq)
}

// BEUIDRepository maps short user identifiers to wallet addresses
type BEUIDRepository struct {
	db *MongoDB
}

// NewBEUIDRepository creates a new BEUID repository
func NewBEUIDRepository(db *MongoDB) *BEUIDRepository {
	return &BEUIDRepository{db: db}
}

// Lookup returns the BEUID registered for an address
func (r *BEUIDRepository) Lookup(ctx context.Context, address string) (*models.BEUID, error) {
	address = types.NormalizeAddress(address)
	return r.findOne(ctx, bson.M{"address": address}, "address", address)
}

// Resolve returns the BEUID record for a uid
func (r *BEUIDRepository) Resolve(ctx context.Context, uid string) (*models.BEUID, error) {
	return r.findOne(ctx, bson.M{"uid": uid}, "beuid", uid)
}

func (r *BEUIDRepository) findOne(ctx context.Context, filter bson.M, resource, id string) (*models.BEUID, error) {
	coll, err := r.db.Collection(ctx, CollectionBEUIDs)
	if err != nil {
		return nil, err
	}

	var rec models.BEUID
	if err := coll.FindOne(ctx, filter).Decode(&rec); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.NewNotFoundError(resource, id)
		}
		return nil, wrapMongoError("find beuid", err)
	}

	return &rec, nil
}

// Register assigns a BEUID to an address. Registering an address that
// already has one returns the existing record.
func (r *BEUIDRepository) Register(ctx context.Context, address string) (*models.BEUID, error) {
	address = types.NormalizeAddress(address)

	existing, err := r.Lookup(ctx, address)
	if err == nil {
		return existing, nil
	}
	if !apperrors.IsNotFound(err) {
		return nil, err
	}

	seq, err := r.nextSequence(ctx)
	if err != nil {
		return nil, err
	}

	coll, err := r.db.Collection(ctx, CollectionBEUIDs)
	if err != nil {
		return nil, err
	}

	rec := &models.BEUID{
		UID:       FormatBEUID(seq),
		Address:   address,
		CreatedAt: time.Now().UTC(),
	}

	if _, err := coll.InsertOne(ctx, rec); err != nil {
		// Lost a race with a concurrent registration of the same address.
		if mongo.IsDuplicateKeyError(err) {
			return r.Lookup(ctx, address)
		}
		return nil, wrapMongoError("insert beuid", err)
	}

	return rec, nil
}

func (r *BEUIDRepository) nextSequence(ctx context.Context) (int64, error) {
	coll, err := r.db.Collection(ctx, CollectionCounters)
	if err != nil {
		return 0, err
	}

	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err = coll.FindOneAndUpdate(ctx,
		bson.M{"_id": beuidCounterID},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, wrapMongoError("next beuid sequence", err)
	}

	return counter.Seq, nil
}
