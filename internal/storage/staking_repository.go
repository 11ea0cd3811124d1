package storage

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/blocke-ledger/internal/models"
	"github.com/blocke-ledger/internal/types"
)

// StakingRepository stores per-address staking documents in MongoDB
type StakingRepository struct {
	db *MongoDB
}

// NewStakingRepository creates a new staking repository
func NewStakingRepository(db *MongoDB) *StakingRepository {
	return &StakingRepository{db: db}
}

// Get returns the staking document for an address, empty when absent
func (r *StakingRepository) Get(ctx context.Context, address string) (*models.StakingAccount, error) {
	address = types.NormalizeAddress(address)

	coll, err := r.db.Collection(ctx, CollectionStaking)
	if err != nil {
		return nil, err
	}

	var account models.StakingAccount
	err = coll.FindOne(ctx, bson.M{"address": address}).Decode(&account)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return &models.StakingAccount{Address: address, Stakes: []models.StakeRecord{}}, nil
		}
		return nil, wrapMongoError("get staking", err)
	}

	if account.Stakes == nil {
		account.Stakes = []models.StakeRecord{}
	}
	return &account, nil
}

// RecordStake appends a stake record. It returns false when the address
// already holds a record with the same transaction hash.
func (r *StakingRepository) RecordStake(ctx context.Context, address string, stake models.StakeRecord) (bool, error) {
	address = types.NormalizeAddress(address)
	stake.TransactionHash = types.NormalizeTxHash(stake.TransactionHash)
	stake.Claimed = false
	stake.Unstaked = false

	coll, err := r.db.Collection(ctx, CollectionStaking)
	if err != nil {
		return false, err
	}

	now := time.Now().UTC()

	// Create the parent document first so the push below never has to upsert.
	_, err = coll.UpdateOne(ctx,
		bson.M{"address": address},
		bson.M{"$setOnInsert": bson.M{
			"stakes":       bson.A{},
			"claimCount":   0,
			"unstakeCount": 0,
			"everClaimed":  false,
			"everUnstaked": false,
			"updatedAt":    now,
		}},
		options.Update().SetUpsert(true),
	)
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return false, wrapMongoError("create staking document", err)
	}

	res, err := coll.UpdateOne(ctx,
		bson.M{
			"address":                address,
			"stakes.transactionHash": bson.M{"$ne": stake.TransactionHash},
		},
		bson.M{
			"$push": bson.M{"stakes": stake},
			"$set":  bson.M{"updatedAt": now},
		},
	)
	if err != nil {
		return false, wrapMongoError("record stake", err)
	}

	return res.ModifiedCount == 1, nil
}

// MarkClaimed flips claimed on the matching unclaimed stake and bumps the
// claim counters. It returns false when nothing matched.
func (r *StakingRepository) MarkClaimed(ctx context.Context, address, txHash string) (bool, error) {
	return r.markStake(ctx, address, txHash, "claimed", "everClaimed", "claimCount")
}

// MarkUnstaked flips unstaked on the matching stake and bumps the unstake
// counters. It returns false when nothing matched.
func (r *StakingRepository) MarkUnstaked(ctx context.Context, address, txHash string) (bool, error) {
	return r.markStake(ctx, address, txHash, "unstaked", "everUnstaked", "unstakeCount")
}

func (r *StakingRepository) markStake(ctx context.Context, address, txHash, flag, everFlag, counter string) (bool, error) {
	coll, err := r.db.Collection(ctx, CollectionStaking)
	if err != nil {
		return false, err
	}

	// Only elements still false match, so the transition is one-way and the
	// counter moves at most once per stake.
	res, err := coll.UpdateOne(ctx,
		bson.M{
			"address": types.NormalizeAddress(address),
			"stakes": bson.M{"$elemMatch": bson.M{
				"transactionHash": types.NormalizeTxHash(txHash),
				flag:              false,
			}},
		},
		bson.M{
			"$set": bson.M{
				"stakes.$." + flag: true,
				everFlag:           true,
				"updatedAt":        time.Now().UTC(),
			},
			"$inc": bson.M{counter: 1},
		},
	)
	if err != nil {
		return false, wrapMongoError("mark stake "+flag, err)
	}

	return res.MatchedCount == 1, nil
}
