package storage

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	apperrors "github.com/blocke-ledger/internal/errors"
	"github.com/blocke-ledger/internal/models"
	"github.com/blocke-ledger/internal/types"
)

// BalanceRepository stores AI credit balances in MongoDB.
// Every mutation is a single atomic document update.
type BalanceRepository struct {
	db *MongoDB
}

// NewBalanceRepository creates a new balance repository
func NewBalanceRepository(db *MongoDB) *BalanceRepository {
	return &BalanceRepository{db: db}
}

// Get returns the balance for an address, 0 when no record exists
func (r *BalanceRepository) Get(ctx context.Context, address string) (int64, error) {
	coll, err := r.db.Collection(ctx, CollectionAIBalances)
	if err != nil {
		return 0, err
	}

	var doc models.AIBalance
	err = coll.FindOne(ctx, bson.M{"address": types.NormalizeAddress(address)}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, nil
		}
		return 0, wrapMongoError("get balance", err)
	}

	return doc.Balance, nil
}

// Set overwrites the balance, creating the record if needed
func (r *BalanceRepository) Set(ctx context.Context, address string, balance int64) error {
	if balance < 0 {
		return apperrors.NewValidationError("balance", "must not be negative")
	}

	coll, err := r.db.Collection(ctx, CollectionAIBalances)
	if err != nil {
		return err
	}

	_, err = coll.UpdateOne(ctx,
		bson.M{"address": types.NormalizeAddress(address)},
		bson.M{"$set": bson.M{"balance": balance, "updatedAt": time.Now().UTC()}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return wrapMongoError("set balance", err)
	}

	return nil
}

// Deduct decrements the balance by one if it is positive and returns the new value.
// The positive-balance check and the decrement happen in the same update.
func (r *BalanceRepository) Deduct(ctx context.Context, address string) (int64, error) {
	address = types.NormalizeAddress(address)

	coll, err := r.db.Collection(ctx, CollectionAIBalances)
	if err != nil {
		return 0, err
	}

	var doc models.AIBalance
	err = coll.FindOneAndUpdate(ctx,
		bson.M{"address": address, "balance": bson.M{"$gt": 0}},
		bson.M{
			"$inc": bson.M{"balance": -1},
			"$set": bson.M{"updatedAt": time.Now().UTC()},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, apperrors.NewInsufficientBalanceError(address)
		}
		return 0, wrapMongoError("deduct balance", err)
	}

	return doc.Balance, nil
}

// Credit adds a positive delta and returns the new value
func (r *BalanceRepository) Credit(ctx context.Context, address string, delta int64) (int64, error) {
	if delta <= 0 {
		return 0, apperrors.NewValidationError("amount", "must be greater than zero")
	}

	coll, err := r.db.Collection(ctx, CollectionAIBalances)
	if err != nil {
		return 0, err
	}

	var doc models.AIBalance
	err = coll.FindOneAndUpdate(ctx,
		bson.M{"address": types.NormalizeAddress(address)},
		bson.M{
			"$inc": bson.M{"balance": delta},
			"$set": bson.M{"updatedAt": time.Now().UTC()},
		},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return 0, wrapMongoError("credit balance", err)
	}

	return doc.Balance, nil
}
