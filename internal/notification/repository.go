package notification

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// NotificationRepository handles the notification log. It only ever inserts;
// the dedup lookup reads back recent inserts.
type NotificationRepository struct {
	collection *mongo.Collection
}

// NewNotificationRepository creates a new repository for notification logs.
func NewNotificationRepository(db *mongo.Database) *NotificationRepository {
	return &NotificationRepository{collection: db.Collection("notification_logs")}
}

// EnsureIndexes creates the compound index the dedup lookup relies on.
func (r *NotificationRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "ticket_id", Value: 1}, {Key: "notification_type", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "organization_id", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("create notification_logs indexes: %w", err)
	}
	return nil
}

// InsertLog appends one delivery record.
func (r *NotificationRepository) InsertLog(ctx context.Context, entry *LogEntry) error {
	res, err := r.collection.InsertOne(ctx, entry)
	if err != nil {
		return fmt.Errorf("insert notification log: %w", err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		entry.ID = oid
	}
	return nil
}

// WasRecentlyNotified reports whether any delivery attempt for the key was
// logged inside the cooldown window ending at now. Failed attempts count too,
// so a broken provider is not retried on every pass.
func (r *NotificationRepository) WasRecentlyNotified(ctx context.Context, key DedupKey, cooldown time.Duration, now time.Time) (bool, error) {
	filter := dedupFilter(key, now.Add(-cooldown))
	n, err := r.collection.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("count recent notifications: %w", err)
	}
	return n > 0, nil
}

func dedupFilter(key DedupKey, since time.Time) bson.M {
	filter := bson.M{
		"ticket_id":         key.TicketID,
		"notification_type": key.Type,
		"created_at":        bson.M{"$gte": since},
	}
	if key.DeadlineKind != "" {
		filter["metadata."+MetaDeadlineKind] = key.DeadlineKind
	}
	return filter
}

// RecentForTicket lists the latest log entries of a ticket, newest first.
func (r *NotificationRepository) RecentForTicket(ctx context.Context, ticketID primitive.ObjectID, limit int64) ([]*LogEntry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)
	cursor, err := r.collection.Find(ctx, bson.M{"ticket_id": ticketID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find ticket notifications: %w", err)
	}
	var entries []*LogEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("decode ticket notifications: %w", err)
	}
	return entries, nil
}
