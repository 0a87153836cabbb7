package mongo

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/plan2bill/access-service/internal/core/domain"
	"github.com/plan2bill/access-service/internal/core/ports"
)

func TestUserRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("create maps duplicate key to ErrUserExists", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB, time.Second)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index: 0, Code: 11000, Message: "duplicate key error",
		}))

		_, err := repo.Create(context.Background(), &domain.User{Email: "a@example.com", Role: domain.RoleTeamMember})
		if !errors.Is(err, domain.ErrUserExists) {
			mt.Fatalf("expected ErrUserExists, got %v", err)
		}
	})

	mt.Run("create returns generated id", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB, time.Second)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		u, err := repo.Create(context.Background(), &domain.User{Email: "a@example.com", Role: domain.RoleTeamMember})
		if err != nil {
			mt.Fatalf("Create: %v", err)
		}
		if _, ok := objectID(u.ID); !ok {
			mt.Fatalf("expected hex object id, got %q", u.ID)
		}
	})

	mt.Run("find by id decodes profile", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB, time.Second)
		oid := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "plan2bill.users", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: oid},
			{Key: "email", Value: "pm@example.com"},
			{Key: "role", Value: domain.RoleProjectManager},
		}))

		u, err := repo.FindByID(context.Background(), oid.Hex())
		if err != nil {
			mt.Fatalf("FindByID: %v", err)
		}
		if u.ID != oid.Hex() || u.Role != domain.RoleProjectManager {
			mt.Fatalf("unexpected user: %+v", u)
		}
	})

	mt.Run("find by id with no document", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB, time.Second)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "plan2bill.users", mtest.FirstBatch))

		if _, err := repo.FindByID(context.Background(), primitive.NewObjectID().Hex()); !errors.Is(err, domain.ErrUserNotFound) {
			mt.Fatalf("expected ErrUserNotFound, got %v", err)
		}
	})

	mt.Run("malformed id never reaches the server", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB, time.Second)

		if _, err := repo.FindByID(context.Background(), "not-an-id"); !errors.Is(err, domain.ErrUserNotFound) {
			mt.Fatalf("expected ErrUserNotFound, got %v", err)
		}
		if _, err := repo.UpdateRole(context.Background(), "not-an-id", domain.RoleAdmin); !errors.Is(err, domain.ErrUserNotFound) {
			mt.Fatalf("expected ErrUserNotFound, got %v", err)
		}
	})
}

func TestRoleRequestRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("insert maps duplicate key to ErrDuplicatePending", func(mt *mtest.T) {
		repo := NewRoleRequestRepository(mt.DB, time.Second)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index: 0, Code: 11000, Message: "E11000 duplicate key error index: " + indexOnePending,
		}))

		_, err := repo.Insert(context.Background(), &domain.RoleChangeRequest{
			UserID:        primitive.NewObjectID().Hex(),
			CurrentRole:   domain.RoleTeamMember,
			RequestedRole: domain.RoleProjectManager,
			Status:        domain.RoleRequestPending,
		})
		if !errors.Is(err, domain.ErrDuplicatePending) {
			mt.Fatalf("expected ErrDuplicatePending, got %v", err)
		}
	})

	mt.Run("find pending decodes rows", func(mt *mtest.T) {
		repo := NewRoleRequestRepository(mt.DB, time.Second)
		oid := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "plan2bill.role_requests", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: oid},
			{Key: "user_id", Value: "u-1"},
			{Key: "current_role", Value: domain.RoleTeamMember},
			{Key: "requested_role", Value: domain.RoleProjectManager},
			{Key: "status", Value: "pending"},
		}))

		items, err := repo.FindPendingByUser(context.Background(), "u-1")
		if err != nil {
			mt.Fatalf("FindPendingByUser: %v", err)
		}
		if len(items) != 1 || items[0].ID != oid.Hex() || items[0].Status != domain.RoleRequestPending {
			mt.Fatalf("unexpected items: %+v", items)
		}
	})

	mt.Run("approve updates request and requester role in one transaction", func(mt *mtest.T) {
		repo := NewRoleRequestRepository(mt.DB, time.Second)
		reqID := primitive.NewObjectID()
		userID := primitive.NewObjectID()
		at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{
				{Key: "_id", Value: reqID},
				{Key: "user_id", Value: userID.Hex()},
				{Key: "current_role", Value: domain.RoleTeamMember},
				{Key: "requested_role", Value: domain.RoleProjectManager},
				{Key: "status", Value: "approved"},
				{Key: "reviewed_by", Value: "admin-1"},
				{Key: "updated_at", Value: at},
			}}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}),
			mtest.CreateSuccessResponse(),
		)

		got, err := repo.Resolve(context.Background(), ports.ResolveRoleRequestInput{
			ID:         reqID.Hex(),
			Status:     domain.RoleRequestApproved,
			ReviewedBy: "admin-1",
			At:         at,
		})
		if err != nil {
			mt.Fatalf("Resolve: %v", err)
		}
		if got.ID != reqID.Hex() || got.Status != domain.RoleRequestApproved || got.ReviewedBy != "admin-1" {
			mt.Fatalf("unexpected request: %+v", got)
		}
		if got.UserID != userID.Hex() {
			mt.Fatalf("expected user %s, got %s", userID.Hex(), got.UserID)
		}
	})

	mt.Run("approve fails when the requester is gone", func(mt *mtest.T) {
		repo := NewRoleRequestRepository(mt.DB, time.Second)
		reqID := primitive.NewObjectID()

		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{
				{Key: "_id", Value: reqID},
				{Key: "user_id", Value: primitive.NewObjectID().Hex()},
				{Key: "requested_role", Value: domain.RoleProjectManager},
				{Key: "status", Value: "approved"},
			}}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}),
		)

		_, err := repo.Resolve(context.Background(), ports.ResolveRoleRequestInput{
			ID:     reqID.Hex(),
			Status: domain.RoleRequestApproved,
			At:     time.Now(),
		})
		if !errors.Is(err, domain.ErrUserNotFound) {
			mt.Fatalf("expected ErrUserNotFound, got %v", err)
		}
	})

	mt.Run("second resolve reports already resolved", func(mt *mtest.T) {
		repo := NewRoleRequestRepository(mt.DB, time.Second)
		reqID := primitive.NewObjectID()

		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}),
			mtest.CreateCursorResponse(0, "plan2bill.role_requests", mtest.FirstBatch, bson.D{
				{Key: "_id", Value: reqID},
				{Key: "status", Value: "approved"},
			}),
		)

		_, err := repo.Resolve(context.Background(), ports.ResolveRoleRequestInput{
			ID:     reqID.Hex(),
			Status: domain.RoleRequestRejected,
			At:     time.Now(),
		})
		if !errors.Is(err, domain.ErrAlreadyResolved) {
			mt.Fatalf("expected ErrAlreadyResolved, got %v", err)
		}
	})

	mt.Run("resolving an unknown id is not found", func(mt *mtest.T) {
		repo := NewRoleRequestRepository(mt.DB, time.Second)

		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}),
			mtest.CreateCursorResponse(0, "plan2bill.role_requests", mtest.FirstBatch),
		)

		_, err := repo.Resolve(context.Background(), ports.ResolveRoleRequestInput{
			ID:     primitive.NewObjectID().Hex(),
			Status: domain.RoleRequestApproved,
			At:     time.Now(),
		})
		if !errors.Is(err, domain.ErrRoleRequestNotFound) {
			mt.Fatalf("expected ErrRoleRequestNotFound, got %v", err)
		}
	})

	mt.Run("malformed id is not found", func(mt *mtest.T) {
		repo := NewRoleRequestRepository(mt.DB, time.Second)

		if _, err := repo.Delete(context.Background(), "nope"); !errors.Is(err, domain.ErrRoleRequestNotFound) {
			mt.Fatalf("expected ErrRoleRequestNotFound, got %v", err)
		}
		_, err := repo.Resolve(context.Background(), ports.ResolveRoleRequestInput{ID: "nope", Status: domain.RoleRequestApproved})
		if !errors.Is(err, domain.ErrRoleRequestNotFound) {
			mt.Fatalf("expected ErrRoleRequestNotFound, got %v", err)
		}
	})
}

func TestEventRepository_Insert(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("insert", func(mt *mtest.T) {
		repo := NewEventRepository(mt.DB, time.Second)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		err := repo.InsertEvent(context.Background(), &domain.RoleRequestEvent{
			RequestID:  "rr-1",
			UserID:     "u-1",
			Type:       domain.RoleRequestEventCreated,
			ToStatus:   domain.RoleRequestPending,
			OccurredAt: time.Now(),
		})
		if err != nil {
			mt.Fatalf("InsertEvent: %v", err)
		}
	})
}
