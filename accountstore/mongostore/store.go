// Package mongostore implements the account document store on MongoDB.
package mongostore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	onboarding "github.com/muhammadadmiral/growthify-onboarding"
)

// Store persists one account document per identity id, keyed by _id.
type Store struct {
	collection *mongo.Collection
}

// New wraps a collection. EnsureIndexes should be called once at
// startup.
func New(collection *mongo.Collection) *Store {
	return &Store{collection: collection}
}

// EnsureIndexes creates the secondary indexes sign-in lookups rely on.
// The _id uniqueness that makes Upsert idempotent needs no index of its
// own.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(false),
	})
	return err
}

// Get fetches the account document for an identity id.
func (s *Store) Get(ctx context.Context, id string) (*onboarding.Account, error) {
	var account onboarding.Account
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&account)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, onboarding.ErrAccountNotFound
		}
		return nil, fmt.Errorf("%w: %v", onboarding.ErrStoreUnavailable, err)
	}
	return &account, nil
}

// Upsert inserts the document if none exists for its id and reports
// whether this call created it. An existing document is never
// overwritten: $setOnInsert leaves it untouched, so concurrent
// first-sign-ins resolve to exactly one creation.
func (s *Store) Upsert(ctx context.Context, account *onboarding.Account) (bool, error) {
	doc, err := toSetOnInsert(account)
	if err != nil {
		return false, fmt.Errorf("%w: %v", onboarding.ErrStoreUnavailable, err)
	}

	result, err := s.collection.UpdateOne(
		ctx,
		bson.M{"_id": account.ID},
		bson.M{"$setOnInsert": doc},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return false, fmt.Errorf("%w: %v", onboarding.ErrStoreUnavailable, err)
	}
	return result.UpsertedCount > 0, nil
}

// Update applies a partial update and returns the updated document.
func (s *Store) Update(ctx context.Context, id string, input onboarding.UpdateAccountInput) (*onboarding.Account, error) {
	set := bson.M{}
	if input.DisplayName != nil {
		set["displayName"] = *input.DisplayName
	}
	if input.PhoneNumber != nil {
		set["phoneNumber"] = *input.PhoneNumber
	}
	if input.PhotoURL != nil {
		set["photoUrl"] = *input.PhotoURL
	}
	if input.EmailVerified != nil {
		set["emailVerified"] = *input.EmailVerified
	}
	if input.LastLoginAt != nil {
		set["lastLoginAt"] = *input.LastLoginAt
	}
	if input.Status != nil {
		set["status"] = *input.Status
	}
	if len(set) == 0 {
		return s.Get(ctx, id)
	}

	var account onboarding.Account
	err := s.collection.FindOneAndUpdate(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&account)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, onboarding.ErrAccountNotFound
		}
		return nil, fmt.Errorf("%w: %v", onboarding.ErrStoreUnavailable, err)
	}
	return &account, nil
}

// CompleteProfile writes the wizard's answers and flips the completed
// flag in one conditional update. The filter demands the flag still be
// false, so the flag only ever moves forward and exactly one commit per
// account succeeds.
func (s *Store) CompleteProfile(ctx context.Context, id string, profile onboarding.Profile, displayName string) (*onboarding.Account, error) {
	set := bson.M{
		"profile":          profile,
		"displayName":      displayName,
		"phoneNumber":      profile.Phone,
		"profileCompleted": true,
	}
	if profile.PhotoURL != "" {
		set["photoUrl"] = profile.PhotoURL
	}

	var account onboarding.Account
	err := s.collection.FindOneAndUpdate(
		ctx,
		bson.M{"_id": id, "profileCompleted": false},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&account)
	if err == nil {
		return &account, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %v", onboarding.ErrStoreUnavailable, err)
	}

	// No match: either the account is gone or the flag is already set.
	if _, getErr := s.Get(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, onboarding.ErrProfileAlreadyCompleted
}

// toSetOnInsert marshals the account through its bson tags so the
// inserted document matches what Get decodes.
func toSetOnInsert(account *onboarding.Account) (bson.M, error) {
	raw, err := bson.Marshal(account)
	if err != nil {
		return nil, err
	}
	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	// _id lives in the filter, not the update document.
	delete(doc, "_id")
	return doc, nil
}
