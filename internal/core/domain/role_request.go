package domain

import "time"

// RoleRequestStatus represents the lifecycle state of a role-change request.
type RoleRequestStatus string

const (
	RoleRequestPending  RoleRequestStatus = "pending"
	RoleRequestApproved RoleRequestStatus = "approved"
	RoleRequestRejected RoleRequestStatus = "rejected"
)

// SelfServiceRole is the only role a user may request for themselves.
const SelfServiceRole = RoleProjectManager

// MaxReasonLength bounds the free-text reason on a request.
const MaxReasonLength = 500

// validRoleRequestTransitions defines the allowed state machine transitions.
// Terminal states have no entry.
var validRoleRequestTransitions = map[RoleRequestStatus][]RoleRequestStatus{
	RoleRequestPending: {RoleRequestApproved, RoleRequestRejected},
}

// CanTransitionTo reports whether a transition from s to next is valid.
func (s RoleRequestStatus) CanTransitionTo(next RoleRequestStatus) bool {
	for _, allowed := range validRoleRequestTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible from s.
func (s RoleRequestStatus) IsTerminal() bool {
	return s == RoleRequestApproved || s == RoleRequestRejected
}

// ParseDecision converts an admin decision into the status a pending request
// moves to. Only transitions allowed out of pending are accepted.
func ParseDecision(v string) (RoleRequestStatus, error) {
	next := RoleRequestStatus(v)
	if !RoleRequestPending.CanTransitionTo(next) {
		return "", ErrInvalidDecision
	}
	return next, nil
}

// RoleChangeRequest is a user-initiated, admin-resolved proposal to move from
// CurrentRole to RequestedRole. At most one request per user may be pending.
type RoleChangeRequest struct {
	ID            string            `json:"id"`
	UserID        string            `json:"user_id"`
	CurrentRole   string            `json:"current_role"`
	RequestedRole string            `json:"requested_role"`
	Status        RoleRequestStatus `json:"status"`
	Reason        string            `json:"reason,omitempty"`
	ReviewedBy    string            `json:"reviewed_by,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// RoleChangeRequestView is a request joined with its requester's profile.
type RoleChangeRequestView struct {
	RoleChangeRequest
	RequesterEmail string `json:"requester_email"`
	RequesterName  string `json:"requester_name,omitempty"`
	RequesterRole  string `json:"requester_role"`
}

// RoleRequestEventType names an entry in the role-request audit trail.
type RoleRequestEventType string

const (
	RoleRequestEventCreated  RoleRequestEventType = "created"
	RoleRequestEventApproved RoleRequestEventType = "approved"
	RoleRequestEventRejected RoleRequestEventType = "rejected"
	RoleRequestEventDeleted  RoleRequestEventType = "deleted"
)

// RoleRequestEvent records a single lifecycle change for auditing.
type RoleRequestEvent struct {
	RequestID  string
	UserID     string
	ActorID    string
	Type       RoleRequestEventType
	FromStatus RoleRequestStatus
	ToStatus   RoleRequestStatus
	OccurredAt time.Time
}
