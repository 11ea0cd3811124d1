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

// PreferenceRepository stores per-address preferences in MongoDB
type PreferenceRepository struct {
	db *MongoDB
}

// NewPreferenceRepository creates a new preference repository
func NewPreferenceRepository(db *MongoDB) *PreferenceRepository {
	return &PreferenceRepository{db: db}
}

// Get returns the preferences for an address, empty when absent
func (r *PreferenceRepository) Get(ctx context.Context, address string) (*models.Preference, error) {
	address = types.NormalizeAddress(address)

	coll, err := r.db.Collection(ctx, CollectionPreferences)
	if err != nil {
		return nil, err
	}

	var pref models.Preference
	err = coll.FindOne(ctx, bson.M{"address": address}).Decode(&pref)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return &models.Preference{Address: address, Preferences: map[string]interface{}{}}, nil
		}
		return nil, wrapMongoError("get preferences", err)
	}

	if pref.Preferences == nil {
		pref.Preferences = map[string]interface{}{}
	}
	return &pref, nil
}

// Upsert merges prefs into the stored preferences key by key and sets the
// theme when non-empty. It returns the document after the write.
func (r *PreferenceRepository) Upsert(ctx context.Context, address string, prefs map[string]interface{}, theme string) (*models.Preference, error) {
	coll, err := r.db.Collection(ctx, CollectionPreferences)
	if err != nil {
		return nil, err
	}

	set := bson.M{"updatedAt": time.Now().UTC()}
	for key, value := range prefs {
		set["preferences."+key] = value
	}
	if theme != "" {
		set["theme"] = theme
	}

	var pref models.Preference
	err = coll.FindOneAndUpdate(ctx,
		bson.M{"address": types.NormalizeAddress(address)},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&pref)
	if err != nil {
		return nil, wrapMongoError("upsert preferences", err)
	}

	if pref.Preferences == nil {
		pref.Preferences = map[string]interface{}{}
	}
	return &pref, nil
}
