// Package metrics defines the Prometheus collectors exported by the auth
// client. Collectors are registered with the default registry on import.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "authclient"

// GatewayRequestsTotal counts requests issued through the API gateway client.
// Labels:
//   - method: HTTP method
//   - outcome: "ok" or the error kind (network, auth, validation, rate_limited, server, unknown)
var GatewayRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "gateway_requests_total",
		Help:      "Total number of API gateway requests by method and outcome.",
	},
	[]string{"method", "outcome"},
)

// TokenRefreshesTotal counts refresh attempts triggered by 401 responses.
// Label:
//   - result: "success", "failure" or "shared" (joined an in-flight refresh)
var TokenRefreshesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "token_refreshes_total",
		Help:      "Total number of session token refreshes by result.",
	},
	[]string{"result"},
)

// SessionTransitionsTotal counts applied session state transitions.
// Label:
//   - state: resulting state name
var SessionTransitionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_transitions_total",
		Help:      "Total number of session state transitions by resulting state.",
	},
	[]string{"state"},
)

// TokenStoreFallbacksTotal counts switches of the token store to in-memory mode.
var TokenStoreFallbacksTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "token_store_fallbacks_total",
		Help:      "Number of times the token store fell back to in-memory storage.",
	},
)
