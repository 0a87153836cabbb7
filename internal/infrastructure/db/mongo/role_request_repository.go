package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/plan2bill/access-service/internal/core/domain"
	"github.com/plan2bill/access-service/internal/core/ports"
)

// RoleRequestRepository stores role-change requests. Resolve uses a
// multi-document transaction, so the deployment must be a replica set.
type RoleRequestRepository struct {
	db      *mongo.Database
	col     *mongo.Collection
	users   *mongo.Collection
	timeout time.Duration
}

func NewRoleRequestRepository(db *mongo.Database, timeout time.Duration) *RoleRequestRepository {
	return &RoleRequestRepository{
		db:      db,
		col:     db.Collection(collectionRoleRequests),
		users:   db.Collection(collectionUsers),
		timeout: timeout,
	}
}

type mongoRoleRequest struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	UserID        string             `bson:"user_id"`
	CurrentRole   string             `bson:"current_role"`
	RequestedRole string             `bson:"requested_role"`
	Status        string             `bson:"status"`
	Reason        string             `bson:"reason"`
	ReviewedBy    string             `bson:"reviewed_by,omitempty"`
	CreatedAt     time.Time          `bson:"created_at"`
	UpdatedAt     time.Time          `bson:"updated_at"`
}

func (m mongoRoleRequest) toDomain() *domain.RoleChangeRequest {
	return &domain.RoleChangeRequest{
		ID:            m.ID.Hex(),
		UserID:        m.UserID,
		CurrentRole:   m.CurrentRole,
		RequestedRole: m.RequestedRole,
		Status:        domain.RoleRequestStatus(m.Status),
		Reason:        m.Reason,
		ReviewedBy:    m.ReviewedBy,
		CreatedAt:     m.CreatedAt.UTC(),
		UpdatedAt:     m.UpdatedAt.UTC(),
	}
}

// Insert relies on the partial unique index to reject a second pending
// request for the same user.
func (r *RoleRequestRepository) Insert(ctx context.Context, req *domain.RoleChangeRequest) (*domain.RoleChangeRequest, error) {
	ctx, cancel := bounded(ctx, r.timeout)
	defer cancel()

	doc := mongoRoleRequest{
		ID:            primitive.NewObjectID(),
		UserID:        req.UserID,
		CurrentRole:   req.CurrentRole,
		RequestedRole: req.RequestedRole,
		Status:        string(req.Status),
		Reason:        req.Reason,
		CreatedAt:     req.CreatedAt,
		UpdatedAt:     req.UpdatedAt,
	}
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrDuplicatePending
		}
		return nil, fmt.Errorf("insert role request: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *RoleRequestRepository) FindPendingByUser(ctx context.Context, userID string) ([]*domain.RoleChangeRequest, error) {
	ctx, cancel := bounded(ctx, r.timeout)
	defer cancel()

	return r.find(ctx, bson.M{"user_id": userID, "status": string(domain.RoleRequestPending)})
}

// Resolve sets the decision and, on approval, the requester's role in one
// transaction. Only pending documents match the update filter.
func (r *RoleRequestRepository) Resolve(ctx context.Context, in ports.ResolveRoleRequestInput) (*domain.RoleChangeRequest, error) {
	oid, ok := objectID(in.ID)
	if !ok {
		return nil, domain.ErrRoleRequestNotFound
	}

	ctx, cancel := bounded(ctx, r.timeout)
	defer cancel()

	session, err := r.db.Client().StartSession()
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	result, err := session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		var doc mongoRoleRequest
		err := r.col.FindOneAndUpdate(sc,
			bson.M{"_id": oid, "status": string(domain.RoleRequestPending)},
			bson.M{"$set": bson.M{
				"status":      string(in.Status),
				"reviewed_by": in.ReviewedBy,
				"updated_at":  in.At,
			}},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&doc)
		if errors.Is(err, mongo.ErrNoDocuments) {
			var current mongoRoleRequest
			err := r.col.FindOne(sc, bson.M{"_id": oid},
				options.FindOne().SetProjection(bson.M{"status": 1}),
			).Decode(&current)
			if errors.Is(err, mongo.ErrNoDocuments) {
				return nil, domain.ErrRoleRequestNotFound
			}
			if err != nil {
				return nil, err
			}
			if !domain.RoleRequestStatus(current.Status).IsTerminal() {
				return nil, fmt.Errorf("role request %s has unexpected status %q", in.ID, current.Status)
			}
			return nil, domain.ErrAlreadyResolved
		}
		if err != nil {
			return nil, err
		}

		if in.Status == domain.RoleRequestApproved {
			userID, ok := objectID(doc.UserID)
			if !ok {
				return nil, domain.ErrUserNotFound
			}
			res, err := r.users.UpdateOne(sc,
				bson.M{"_id": userID},
				bson.M{"$set": bson.M{"role": doc.RequestedRole, "updated_at": in.At}},
			)
			if err != nil {
				return nil, fmt.Errorf("update requester role: %w", err)
			}
			if res.MatchedCount == 0 {
				return nil, domain.ErrUserNotFound
			}
		}
		return doc.toDomain(), nil
	})
	if err != nil {
		switch domain.KindOf(err) {
		case domain.KindNotFound, domain.KindConflict:
			return nil, err
		}
		return nil, fmt.Errorf("resolve role request: %w", err)
	}
	return result.(*domain.RoleChangeRequest), nil
}

func (r *RoleRequestRepository) ListByUser(ctx context.Context, userID string) ([]*domain.RoleChangeRequest, error) {
	ctx, cancel := bounded(ctx, r.timeout)
	defer cancel()

	return r.find(ctx, bson.M{"user_id": userID})
}

// ListAll joins requests with their requesters in a second query.
func (r *RoleRequestRepository) ListAll(ctx context.Context) ([]*domain.RoleChangeRequestView, error) {
	ctx, cancel := bounded(ctx, r.timeout)
	defer cancel()

	items, err := r.find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}

	ids := make([]primitive.ObjectID, 0, len(items))
	for _, it := range items {
		if oid, ok := objectID(it.UserID); ok {
			ids = append(ids, oid)
		}
	}

	requesters := make(map[string]mongoUser, len(ids))
	if len(ids) > 0 {
		cur, err := r.users.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
		if err != nil {
			return nil, fmt.Errorf("find requesters: %w", err)
		}
		var users []mongoUser
		if err := cur.All(ctx, &users); err != nil {
			return nil, fmt.Errorf("decode requesters: %w", err)
		}
		for _, u := range users {
			requesters[u.ID.Hex()] = u
		}
	}

	views := make([]*domain.RoleChangeRequestView, 0, len(items))
	for _, it := range items {
		v := &domain.RoleChangeRequestView{RoleChangeRequest: *it}
		if u, ok := requesters[it.UserID]; ok {
			v.RequesterEmail = u.Email
			v.RequesterName = u.Name
			v.RequesterRole = u.Role
		}
		views = append(views, v)
	}
	return views, nil
}

func (r *RoleRequestRepository) Delete(ctx context.Context, id string) (*domain.RoleChangeRequest, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, domain.ErrRoleRequestNotFound
	}

	ctx, cancel := bounded(ctx, r.timeout)
	defer cancel()

	var doc mongoRoleRequest
	if err := r.col.FindOneAndDelete(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrRoleRequestNotFound
		}
		return nil, fmt.Errorf("delete role request: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *RoleRequestRepository) find(ctx context.Context, filter bson.M) ([]*domain.RoleChangeRequest, error) {
	cur, err := r.col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("find role requests: %w", err)
	}

	var docs []mongoRoleRequest
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode role requests: %w", err)
	}

	out := make([]*domain.RoleChangeRequest, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}
