package notifications

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoStorage is a MongoDB-backed implementation of the Storage interface.
type MongoStorage struct {
	collection *mongo.Collection
}

// NewMongoStorage creates a notification storage on top of the given
// database. The collection name is "notifications".
func NewMongoStorage(db *mongo.Database) *MongoStorage {
	return &MongoStorage{
		collection: db.Collection("notifications"),
	}
}

// EnsureIndexes creates the indexes the listing and counting queries rely
// on. Call once at startup.
func (s *MongoStorage) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "tenant_id", Value: 1},
			{Key: "user_id", Value: 1},
			{Key: "created_at", Value: -1},
		}},
		{Keys: bson.D{
			{Key: "tenant_id", Value: 1},
			{Key: "user_id", Value: 1},
			{Key: "read", Value: 1},
		}},
	})
	if err != nil {
		return fmt.Errorf("failed to create notification indexes: %w", err)
	}
	return nil
}

func scopeFilter(scope Scope) bson.M {
	return bson.M{
		"tenant_id": scope.TenantID,
		"user_id":   scope.UserID,
	}
}

func (s *MongoStorage) Create(ctx context.Context, notif Notification) error {
	if notif.ID == "" {
		return ErrMissingID
	}
	if notif.UserID == "" {
		return ErrMissingUserID
	}
	if notif.TenantID == "" {
		return ErrMissingTenantID
	}

	if notif.CreatedAt.IsZero() {
		notif.CreatedAt = time.Now()
	}

	if _, err := s.collection.InsertOne(ctx, notif); err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (s *MongoStorage) Get(ctx context.Context, scope Scope, notifID string) (*Notification, error) {
	filter := scopeFilter(scope)
	filter["_id"] = notifID

	var notif Notification
	if err := s.collection.FindOne(ctx, filter).Decode(&notif); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotificationNotFound
		}
		return nil, fmt.Errorf("failed to fetch notification: %w", err)
	}
	return &notif, nil
}

func (s *MongoStorage) List(ctx context.Context, scope Scope, opts ListOptions) ([]Notification, error) {
	filter := scopeFilter(scope)
	if opts.OnlyUnread {
		filter["read"] = false
	}
	if len(opts.Types) > 0 {
		filter["type"] = bson.M{"$in": opts.Types}
	}
	if opts.Since != nil {
		filter["created_at"] = bson.M{"$gt": *opts.Since}
	}

	findOpts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64(opts.Offset))
	if opts.Limit > 0 {
		findOpts = findOpts.SetLimit(int64(opts.Limit))
	}

	cursor, err := s.collection.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch notifications: %w", err)
	}
	defer cursor.Close(ctx)

	notifications := []Notification{}
	if err := cursor.All(ctx, &notifications); err != nil {
		return nil, fmt.Errorf("failed to decode notifications: %w", err)
	}
	return notifications, nil
}

func (s *MongoStorage) MarkRead(ctx context.Context, scope Scope, notifID string) (bool, error) {
	filter := scopeFilter(scope)
	filter["_id"] = notifID
	// Matching only unread records makes the transition idempotent and lets
	// ModifiedCount reflect whether anything actually changed.
	filter["read"] = false

	res, err := s.collection.UpdateOne(ctx, filter, bson.M{
		"$set": bson.M{"read": true, "read_at": time.Now()},
	})
	if err != nil {
		return false, fmt.Errorf("failed to mark notification as read: %w", err)
	}
	return res.ModifiedCount > 0, nil
}

func (s *MongoStorage) Delete(ctx context.Context, scope Scope, notifIDs ...string) error {
	if len(notifIDs) == 0 {
		return nil
	}

	filter := scopeFilter(scope)
	filter["_id"] = bson.M{"$in": notifIDs}

	if _, err := s.collection.DeleteMany(ctx, filter); err != nil {
		return fmt.Errorf("failed to delete notifications: %w", err)
	}
	return nil
}

func (s *MongoStorage) Count(ctx context.Context, scope Scope) (int, error) {
	count, err := s.collection.CountDocuments(ctx, scopeFilter(scope))
	if err != nil {
		return 0, fmt.Errorf("failed to count notifications: %w", err)
	}
	return int(count), nil
}

func (s *MongoStorage) CountUnread(ctx context.Context, scope Scope) (int, error) {
	filter := scopeFilter(scope)
	filter["read"] = false

	count, err := s.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return int(count), nil
}
