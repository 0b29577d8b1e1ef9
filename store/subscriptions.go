package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"news-stream-service/metrics"
	"news-stream-service/model"
)

// ErrNotFound is returned when no subscription record exists for a user.
var ErrNotFound = errors.New("subscription not found")

// SubscriptionStore is the read/write surface over subscription records; the
// pipeline core only ever reads through Subscription.
type SubscriptionStore struct {
	collection *mongo.Collection
}

func NewSubscriptionStore(db *mongo.Database) *SubscriptionStore {
	return &SubscriptionStore{collection: db.Collection("subscriptions")}
}

// Subscription implements broadcaster.SubscriptionSource: (nil, nil) for an
// absent record, which the broadcaster treats as match-all.
func (s *SubscriptionStore) Subscription(ctx context.Context, userID string) (*model.Subscription, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var sub model.Subscription
	err := s.collection.FindOne(ctx, bson.M{"_id": userID}).Decode(&sub)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		metrics.MongoOperationsTotal.WithLabelValues("find", "subscriptions", "error").Inc()
		return nil, err
	}

	metrics.MongoOperationsTotal.WithLabelValues("find", "subscriptions", "ok").Inc()
	return &sub, nil
}

// Upsert creates or fully replaces the subscription for sub.UserID.
func (s *SubscriptionStore) Upsert(ctx context.Context, sub *model.Subscription) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	now := model.UnixNow()
	sub.UpdatedAt = now
	if sub.CreatedAt == 0 {
		sub.CreatedAt = now
	}
	if sub.ImpactThreshold == nil {
		threshold := model.DefaultImpactThreshold
		sub.ImpactThreshold = &threshold
	}
	if len(sub.AlertChannels) == 0 {
		sub.AlertChannels = []string{"terminal"}
	}

	_, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": sub.UserID},
		bson.M{"$set": sub},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		metrics.MongoOperationsTotal.WithLabelValues("upsert", "subscriptions", "error").Inc()
		return err
	}

	metrics.MongoOperationsTotal.WithLabelValues("upsert", "subscriptions", "ok").Inc()
	return nil
}

// Delete removes the subscription for userID; ErrNotFound when absent.
func (s *SubscriptionStore) Delete(ctx context.Context, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := s.collection.DeleteOne(ctx, bson.M{"_id": userID})
	if err != nil {
		metrics.MongoOperationsTotal.WithLabelValues("delete", "subscriptions", "error").Inc()
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}

	metrics.MongoOperationsTotal.WithLabelValues("delete", "subscriptions", "ok").Inc()
	return nil
}
