package sla

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrTicketNotFound is returned when a ticket id matches nothing.
var ErrTicketNotFound = errors.New("ticket not found")

// TicketRepository reads tickets and their parties with the service's
// privileged handle; it is not scoped to any tenant.
type TicketRepository struct {
	tickets       *mongo.Collection
	users         *mongo.Collection
	organizations *mongo.Collection
}

func NewTicketRepository(db *mongo.Database) *TicketRepository {
	return &TicketRepository{
		tickets:       db.Collection("tickets"),
		users:         db.Collection("users"),
		organizations: db.Collection("organizations"),
	}
}

// EnsureIndexes backs the attention query.
func (r *TicketRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.tickets.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "first_response_due_at", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "resolution_due_at", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create tickets indexes: %w", err)
	}
	return nil
}

func (r *TicketRepository) FindTicket(ctx context.Context, id primitive.ObjectID) (*Ticket, error) {
	var t Ticket
	err := r.tickets.FindOne(ctx, bson.M{"_id": id}).Decode(&t)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrTicketNotFound
		}
		return nil, fmt.Errorf("find ticket %s: %w", id.Hex(), err)
	}
	return &t, nil
}

// FindUser returns nil, nil when the user does not exist.
func (r *TicketRepository) FindUser(ctx context.Context, id primitive.ObjectID) (*User, error) {
	var u User
	err := r.users.FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("find user %s: %w", id.Hex(), err)
	}
	return &u, nil
}

// FindOrganization returns nil, nil when the organization does not exist.
func (r *TicketRepository) FindOrganization(ctx context.Context, id primitive.ObjectID) (*Organization, error) {
	var o Organization
	err := r.organizations.FindOne(ctx, bson.M{"_id": id}).Decode(&o)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("find organization %s: %w", id.Hex(), err)
	}
	return &o, nil
}

// FindTicketsNeedingAttention returns open tickets with an unmet deadline
// that is past due or inside the warning window at now. The threshold math
// runs in the database; the monitor re-classifies each result.
func (r *TicketRepository) FindTicketsNeedingAttention(ctx context.Context, p Policy, now time.Time) ([]*Ticket, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := r.tickets.Find(ctx, attentionFilter(p, now), opts)
	if err != nil {
		return nil, fmt.Errorf("find tickets needing attention: %w", err)
	}
	var tickets []*Ticket
	if err := cursor.All(ctx, &tickets); err != nil {
		return nil, fmt.Errorf("decode tickets needing attention: %w", err)
	}
	return tickets, nil
}

func attentionFilter(p Policy, now time.Time) bson.M {
	return bson.M{
		"status":      bson.M{"$nin": bson.A{StatusResolved, StatusClosed}},
		"resolved_at": nil,
		"$or": bson.A{
			deadlineClause("first_response_due_at", "first_response_at", p, now),
			deadlineClause("resolution_due_at", "resolved_at", p, now),
		},
	}
}

// deadlineClause matches an unmet deadline whose remaining time is within
// the percentage or absolute warning window. Past-due deadlines have a
// negative remainder and always match.
func deadlineClause(dueField, actualField string, p Policy, now time.Time) bson.M {
	due := "$" + dueField
	remaining := bson.M{"$subtract": bson.A{due, now}}
	window := bson.M{"$subtract": bson.A{due, "$created_at"}}

	conds := bson.A{
		bson.M{"$lte": bson.A{window, 0}},
		bson.M{"$lte": bson.A{remaining, bson.M{"$multiply": bson.A{window, p.WarningThresholdPercent / 100}}}},
	}
	if p.WarningHoursBefore > 0 {
		conds = append(conds, bson.M{"$lte": bson.A{remaining, p.WarningHoursBefore.Milliseconds()}})
	}
	return bson.M{
		actualField: nil,
		dueField:    bson.M{"$ne": nil},
		"$expr":     bson.M{"$or": conds},
	}
}
