package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/plan2bill/access-service/internal/core/domain"
	"github.com/plan2bill/access-service/internal/core/ports"
)

// EventRepository implements ports.RoleRequestEventRepository using MongoDB.
type EventRepository struct {
	col     *mongo.Collection
	timeout time.Duration
}

// NewEventRepository creates a new EventRepository.
func NewEventRepository(db *mongo.Database, timeout time.Duration) ports.RoleRequestEventRepository {
	return &EventRepository{col: db.Collection(collectionEvents), timeout: timeout}
}

// InsertEvent appends an entry to the role_request_events audit collection.
func (r *EventRepository) InsertEvent(ctx context.Context, event *domain.RoleRequestEvent) error {
	ctx, cancel := bounded(ctx, r.timeout)
	defer cancel()

	doc := bson.M{
		"request_id":  event.RequestID,
		"user_id":     event.UserID,
		"actor_id":    event.ActorID,
		"type":        string(event.Type),
		"occurred_at": event.OccurredAt.UTC(),
	}
	if event.FromStatus != "" {
		doc["from_status"] = string(event.FromStatus)
	}
	if event.ToStatus != "" {
		doc["to_status"] = string(event.ToStatus)
	}

	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert role request event: %w", err)
	}
	return nil
}
