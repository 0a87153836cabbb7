// Package metrics defines and registers all custom Prometheus metrics for the
// plan2bill access service. It is the single source of truth for metric
// names, labels, and help strings.
//
// Metrics register with the default Prometheus registry on import through
// promauto; HTTP request metrics come from the echoprometheus middleware.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "plan2bill"

// ── Authorization metrics ─────────────────────────────────────────────────────

// AuthFailuresTotal counts requests rejected by the authorization chain.
// Label:
//   - reason: "missing_token", "invalid_token", "expired_token", "unknown_user", "forbidden"
var AuthFailuresTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_failures_total",
		Help:      "Total number of requests rejected by authentication or role checks.",
	},
	[]string{"reason"},
)

// RateLimitedTotal counts requests refused by the rate limiter.
// Label:
//   - scope: the limiter scope (e.g. "login", "role_request_create")
var RateLimitedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limited_total",
		Help:      "Total number of requests refused by the rate limiter, by scope.",
	},
	[]string{"scope"},
)

// ── Role request metrics ──────────────────────────────────────────────────────

// RoleRequestsCreatedTotal counts newly created role-change requests.
// Label:
//   - requested_role: the role asked for
var RoleRequestsCreatedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "role_requests_created_total",
		Help:      "Total number of role-change requests created.",
	},
	[]string{"requested_role"},
)

// RoleRequestsRefusedTotal counts create attempts refused by lifecycle rules.
// Label:
//   - reason: "invalid_role", "already_has_role", "duplicate_pending"
var RoleRequestsRefusedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "role_requests_refused_total",
		Help:      "Total number of role-change request creations refused, by reason.",
	},
	[]string{"reason"},
)

// RoleRequestsResolvedTotal counts admin decisions applied to requests.
// Label:
//   - status: "approved" or "rejected"
var RoleRequestsResolvedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "role_requests_resolved_total",
		Help:      "Total number of role-change requests resolved, by decision.",
	},
	[]string{"status"},
)

// ── Audit metrics ─────────────────────────────────────────────────────────────

// AuditEventsTotal counts audit events by outcome.
// Label:
//   - result: "written", "failed", "dropped"
var AuditEventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_events_total",
		Help:      "Total number of role-request audit events, by outcome.",
	},
	[]string{"result"},
)

// AuditQueueDepth tracks the number of events waiting in each dispatcher worker channel.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var AuditQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "audit_queue_depth",
		Help:      "Current number of audit events pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)
