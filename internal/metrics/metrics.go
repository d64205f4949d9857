// Package metrics defines the Prometheus metrics of the EcoSphere server.
// Metrics register with the default registry on package init (promauto) and
// are exposed at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ecosphere"

// ── HTTP metrics ──────────────────────────────────────────────────────────────

// HTTPRequestsTotal counts finished requests.
// Labels:
//   - method: HTTP method
//   - route: chi route pattern (e.g. "/like/{id}"), "unmatched" for 404s
//   - status: response status code
var HTTPRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests, by method, route pattern and status.",
	},
	[]string{"method", "route", "status"},
)

// HTTPRequestDuration measures request latency by route pattern.
var HTTPRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "route"},
)

// ── Domain metrics ────────────────────────────────────────────────────────────

// LoginsTotal counts login attempts.
// Labels:
//   - method: "google", "username" or "register"
//   - result: "success", "pending" (Google account without a username yet) or "failure"
var LoginsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logins_total",
		Help:      "Total number of login and registration attempts.",
	},
	[]string{"method", "result"},
)

// PostsCreatedTotal counts published posts.
var PostsCreatedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "posts_created_total",
		Help:      "Total number of posts published.",
	},
)

// PostsDeletedTotal counts posts removed by their author or by account deletion.
// Label:
//   - reason: "author" or "account_deleted"
var PostsDeletedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "posts_deleted_total",
		Help:      "Total number of posts deleted.",
	},
	[]string{"reason"},
)

// LikesToggledTotal counts like toggles.
// Label:
//   - action: "like" or "unlike"
var LikesToggledTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "likes_toggled_total",
		Help:      "Total number of like toggles.",
	},
	[]string{"action"},
)

// AccountsDeletedTotal counts deleted accounts.
var AccountsDeletedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "accounts_deleted_total",
		Help:      "Total number of user accounts deleted.",
	},
)

// AvatarsRenderedTotal counts generated avatar images.
var AvatarsRenderedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "avatars_rendered_total",
		Help:      "Total number of avatar images rendered.",
	},
)
