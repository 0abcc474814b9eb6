package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/jobhost/id"
	"github.com/xraph/jobhost/lease"
)

// validLock matches a document whose lock has not expired by server time.
func validLock(name string, extra ...bson.E) bson.D {
	f := bson.D{
		{Key: "_id", Value: name},
		{Key: "$expr", Value: bson.D{{Key: "$gt", Value: bson.A{"$locked_until", "$$NOW"}}}},
	}
	return append(f, extra...)
}

// lockUntil is a pipeline stage setting locked_until to server time plus d.
func lockUntil(d time.Duration, extra ...bson.E) mongod.Pipeline {
	set := bson.D{
		{Key: "locked_until", Value: bson.D{{Key: "$add", Value: bson.A{"$$NOW", d.Milliseconds()}}}},
		{Key: "updated_at", Value: "$$NOW"},
	}
	return mongod.Pipeline{{{Key: "$set", Value: append(set, extra...)}}}
}

// Exists implements lease.Store.
func (s *Store) Exists(ctx context.Context, name string) (bool, error) {
	n, err := s.leases().CountDocuments(ctx, bson.D{{Key: "_id", Value: name}})
	if err != nil {
		return false, fmt.Errorf("jobhost/mongo: exists: %w", err)
	}
	return n > 0, nil
}

// CreateIfAbsent implements lease.Store.
func (s *Store) CreateIfAbsent(ctx context.Context, name string, payload []byte) error {
	t := now()
	_, err := s.leases().UpdateOne(ctx,
		bson.D{{Key: "_id", Value: name}},
		bson.D{{Key: "$setOnInsert", Value: bson.D{
			{Key: "payload", Value: payload},
			{Key: "created_at", Value: t},
			{Key: "updated_at", Value: t},
		}}},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil && !mongod.IsDuplicateKeyError(err) {
		return fmt.Errorf("jobhost/mongo: create: %w", err)
	}
	return nil
}

// AcquireLock implements lease.Store.
func (s *Store) AcquireLock(ctx context.Context, name string, d time.Duration) (string, error) {
	token := id.NewLeaseToken().String()
	filter := bson.D{
		{Key: "_id", Value: name},
		{Key: "$expr", Value: bson.D{{Key: "$lte", Value: bson.A{"$locked_until", "$$NOW"}}}},
	}
	res, err := s.leases().UpdateOne(ctx, filter, lockUntil(d, bson.E{Key: "token", Value: token}))
	if err != nil {
		return "", fmt.Errorf("jobhost/mongo: acquire: %w", err)
	}
	if res.MatchedCount == 1 {
		return token, nil
	}
	if err := s.mustExist(ctx, name); err != nil {
		return "", err
	}
	return "", lease.ErrAlreadyHeld
}

// RenewLock implements lease.Store.
func (s *Store) RenewLock(ctx context.Context, name, token string, d time.Duration) error {
	if token == "" {
		return lease.ErrTokenMissing
	}
	res, err := s.leases().UpdateOne(ctx,
		validLock(name, bson.E{Key: "token", Value: token}),
		lockUntil(d),
	)
	if err != nil {
		return fmt.Errorf("jobhost/mongo: renew: %w", err)
	}
	if res.MatchedCount == 1 {
		return nil
	}
	if err := s.mustExist(ctx, name); err != nil {
		return err
	}
	return lease.ErrLost
}

// ReleaseLock implements lease.Store.
func (s *Store) ReleaseLock(ctx context.Context, name, token string) error {
	if token == "" {
		return lease.ErrTokenMissing
	}
	res, err := s.leases().UpdateOne(ctx,
		validLock(name, bson.E{Key: "token", Value: token}),
		bson.D{
			{Key: "$unset", Value: bson.D{{Key: "token", Value: ""}, {Key: "locked_until", Value: ""}}},
			{Key: "$currentDate", Value: bson.D{{Key: "updated_at", Value: true}}},
		},
	)
	if err != nil {
		return fmt.Errorf("jobhost/mongo: release: %w", err)
	}
	if res.MatchedCount == 1 {
		return nil
	}

	if err := s.mustExist(ctx, name); err != nil {
		return err
	}
	locked, err := s.leases().CountDocuments(ctx, validLock(name))
	if err != nil {
		return fmt.Errorf("jobhost/mongo: release check: %w", err)
	}
	if locked == 0 {
		return lease.ErrNotPresent
	}
	return lease.ErrLost
}

// Download implements lease.Store.
func (s *Store) Download(ctx context.Context, name string) ([]byte, error) {
	var m leaseModel
	err := s.leases().FindOne(ctx, bson.D{{Key: "_id", Value: name}}).Decode(&m)
	if isNoDocuments(err) {
		return nil, lease.ErrObjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("jobhost/mongo: download: %w", err)
	}
	return m.Payload, nil
}

// UploadIf implements lease.Store.
func (s *Store) UploadIf(ctx context.Context, name string, payload []byte, token string) error {
	if token == "" {
		return lease.ErrTokenMissing
	}
	res, err := s.leases().UpdateOne(ctx,
		validLock(name, bson.E{Key: "token", Value: token}),
		bson.D{
			{Key: "$set", Value: bson.D{{Key: "payload", Value: payload}}},
			{Key: "$currentDate", Value: bson.D{{Key: "updated_at", Value: true}}},
		},
	)
	if err != nil {
		return fmt.Errorf("jobhost/mongo: upload: %w", err)
	}
	if res.MatchedCount == 1 {
		return nil
	}
	if err := s.mustExist(ctx, name); err != nil {
		return err
	}
	return lease.ErrLost
}

// mustExist returns ErrObjectNotFound when the lease document is missing.
func (s *Store) mustExist(ctx context.Context, name string) error {
	exists, err := s.Exists(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return lease.ErrObjectNotFound
	}
	return nil
}
