package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/plan2bill/access-service/internal/core/domain"
	"github.com/plan2bill/access-service/internal/core/ports"
	"github.com/plan2bill/access-service/internal/metrics"
)

type roleRequestService struct {
	repo      ports.RoleRequestRepository
	publisher ports.RoleRequestEventPublisher
	log       zerolog.Logger
	now       func() time.Time
}

// NewRoleRequestService returns a RoleRequestService implementation.
// publisher may be nil, in which case no audit events are emitted.
func NewRoleRequestService(
	repo ports.RoleRequestRepository,
	publisher ports.RoleRequestEventPublisher,
	log zerolog.Logger,
) ports.RoleRequestService {
	return &roleRequestService{
		repo:      repo,
		publisher: publisher,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create opens a pending request for the caller.
func (s *roleRequestService) Create(ctx context.Context, actor domain.Identity, in ports.CreateRoleRequestInput) (*domain.RoleChangeRequest, error) {
	// 1. Only the self-service upgrade path is accepted.
	if in.RequestedRole != domain.SelfServiceRole {
		metrics.RoleRequestsRefusedTotal.WithLabelValues("invalid_role").Inc()
		return nil, domain.ErrInvalidRole
	}

	reason := strings.TrimSpace(in.Reason)
	if utf8.RuneCountInString(reason) > domain.MaxReasonLength {
		return nil, fmt.Errorf("%w: reason must be at most %d characters", domain.ErrInvalidInput, domain.MaxReasonLength)
	}

	// 2. actor.Role is the live profile role loaded by the auth middleware.
	if actor.Role == in.RequestedRole {
		metrics.RoleRequestsRefusedTotal.WithLabelValues("already_has_role").Inc()
		return nil, domain.ErrAlreadyHasRole
	}

	// 3. Pre-check for a pending request. The store's uniqueness guarantee
	// covers concurrent creates that slip past this read.
	pending, err := s.repo.FindPendingByUser(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("create role request: %w", err)
	}
	if len(pending) > 0 {
		metrics.RoleRequestsRefusedTotal.WithLabelValues("duplicate_pending").Inc()
		return nil, domain.ErrDuplicatePending
	}

	now := s.now()
	created, err := s.repo.Insert(ctx, &domain.RoleChangeRequest{
		UserID:        actor.ID,
		CurrentRole:   actor.Role,
		RequestedRole: in.RequestedRole,
		Status:        domain.RoleRequestPending,
		Reason:        reason,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		if domain.KindOf(err) == domain.KindConflict {
			metrics.RoleRequestsRefusedTotal.WithLabelValues("duplicate_pending").Inc()
			return nil, err
		}
		return nil, fmt.Errorf("create role request: %w", err)
	}

	metrics.RoleRequestsCreatedTotal.WithLabelValues(created.RequestedRole).Inc()
	s.publish(domain.RoleRequestEvent{
		RequestID:  created.ID,
		UserID:     created.UserID,
		ActorID:    actor.ID,
		Type:       domain.RoleRequestEventCreated,
		ToStatus:   domain.RoleRequestPending,
		OccurredAt: now,
	})

	s.log.Info().
		Str("request_id", created.ID).
		Str("user_id", actor.ID).
		Str("requested_role", created.RequestedRole).
		Msg("role request created")
	return created, nil
}

// Resolve applies an admin decision to a pending request.
func (s *roleRequestService) Resolve(ctx context.Context, actor domain.Identity, id, decision string) (*domain.RoleChangeRequest, error) {
	if err := domain.CheckRole(actor.Role, domain.RoleAdmin); err != nil {
		return nil, err
	}

	status, err := domain.ParseDecision(decision)
	if err != nil {
		return nil, err
	}

	resolved, err := s.repo.Resolve(ctx, ports.ResolveRoleRequestInput{
		ID:         id,
		Status:     status,
		ReviewedBy: actor.ID,
		At:         s.now(),
	})
	if err != nil {
		switch domain.KindOf(err) {
		case domain.KindNotFound, domain.KindConflict:
			return nil, err
		}
		s.log.Error().Err(err).
			Str("request_id", id).
			Str("status", string(status)).
			Msg("role request resolution failed")
		return nil, fmt.Errorf("resolve role request: %w", err)
	}

	metrics.RoleRequestsResolvedTotal.WithLabelValues(string(status)).Inc()

	eventType := domain.RoleRequestEventRejected
	if status == domain.RoleRequestApproved {
		eventType = domain.RoleRequestEventApproved
	}
	s.publish(domain.RoleRequestEvent{
		RequestID:  resolved.ID,
		UserID:     resolved.UserID,
		ActorID:    actor.ID,
		Type:       eventType,
		FromStatus: domain.RoleRequestPending,
		ToStatus:   status,
		OccurredAt: resolved.UpdatedAt,
	})

	s.log.Info().
		Str("request_id", resolved.ID).
		Str("user_id", resolved.UserID).
		Str("actor_id", actor.ID).
		Str("status", string(status)).
		Msg("role request resolved")
	return resolved, nil
}

// ListMine returns the caller's requests, newest first.
func (s *roleRequestService) ListMine(ctx context.Context, actor domain.Identity) ([]*domain.RoleChangeRequest, error) {
	items, err := s.repo.ListByUser(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("list own role requests: %w", err)
	}
	return items, nil
}

// ListAll returns every request joined with its requester. Admin only.
func (s *roleRequestService) ListAll(ctx context.Context, actor domain.Identity) ([]*domain.RoleChangeRequestView, error) {
	if err := domain.CheckRole(actor.Role, domain.RoleAdmin); err != nil {
		return nil, err
	}
	items, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list role requests: %w", err)
	}
	return items, nil
}

// Delete removes a request regardless of its status. Admin only.
func (s *roleRequestService) Delete(ctx context.Context, actor domain.Identity, id string) error {
	if err := domain.CheckRole(actor.Role, domain.RoleAdmin); err != nil {
		return err
	}

	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		if domain.KindOf(err) == domain.KindNotFound {
			return err
		}
		return fmt.Errorf("delete role request: %w", err)
	}

	s.publish(domain.RoleRequestEvent{
		RequestID:  deleted.ID,
		UserID:     deleted.UserID,
		ActorID:    actor.ID,
		Type:       domain.RoleRequestEventDeleted,
		FromStatus: deleted.Status,
		OccurredAt: s.now(),
	})

	s.log.Info().
		Str("request_id", deleted.ID).
		Str("actor_id", actor.ID).
		Msg("role request deleted")
	return nil
}

func (s *roleRequestService) publish(event domain.RoleRequestEvent) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(event)
}
