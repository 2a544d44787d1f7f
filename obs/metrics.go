package obs

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	AuthorizeDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authorize_decisions_total",
			Help: "Authorization decisions grouped by module, action and outcome.",
		},
		[]string{"module", "action", "outcome"},
	)

	PropertyTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "property_transitions_total",
			Help: "Property status transitions grouped by target status.",
		},
		[]string{"to"},
	)

	LeadTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_transitions_total",
			Help: "Lead status transitions grouped by target status.",
		},
		[]string{"to"},
	)

	NotificationsDispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_dispatched_total",
			Help: "Notifications persisted by the dispatcher, grouped by type.",
		},
		[]string{"type"},
	)

	NotificationsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "notifications_push_dropped_total",
			Help: "Live pushes dropped because a subscriber was slow. The persisted record is unaffected.",
		},
	)
)

// Init registers the service metrics in the default registry.
func Init() {
	prometheus.MustRegister(
		AuthorizeDecisions,
		PropertyTransitions,
		LeadTransitions,
		NotificationsDispatched,
		NotificationsDropped,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
