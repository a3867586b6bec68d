package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "teamtask_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "teamtask_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	taskMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "teamtask_task_mutations_total",
		Help: "Count of task mutations by operation and result",
	}, []string{"operation", "result"})

	policyDenials = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "teamtask_policy_denials_total",
		Help: "Count of authorization denials by operation and role",
	}, []string{"operation", "role"})

	invitationsIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "teamtask_invitations_issued_total",
		Help: "Count of issued invitations by role",
	}, []string{"role"})

	invitationsConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "teamtask_invitations_consumed_total",
		Help: "Count of invitation consumption attempts by result",
	}, []string{"result"})

	invitationsSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "teamtask_invitations_swept_total",
		Help: "Count of expired invitation tokens removed by the sweep",
	})

	notificationResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "teamtask_notifications_total",
		Help: "Count of invitation email deliveries by result",
	}, []string{"result"})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveTaskMutation records a task create/update/delete outcome.
func ObserveTaskMutation(operation, result string) {
	taskMutations.WithLabelValues(operation, result).Inc()
}

// ObservePolicyDenial counts a Forbidden decision.
func ObservePolicyDenial(operation, role string) {
	policyDenials.WithLabelValues(operation, role).Inc()
}

// ObserveInvitationIssued counts an issued invitation.
func ObserveInvitationIssued(role string) {
	invitationsIssued.WithLabelValues(role).Inc()
}

// ObserveInvitationConsumed counts a consumption attempt outcome.
func ObserveInvitationConsumed(result string) {
	invitationsConsumed.WithLabelValues(result).Inc()
}

// ObserveSweep counts tokens removed by an expiry sweep.
func ObserveSweep(removed int) {
	if removed > 0 {
		invitationsSwept.Add(float64(removed))
	}
}

// ObserveNotification counts an invitation email delivery outcome.
func ObserveNotification(result string) {
	notificationResults.WithLabelValues(result).Inc()
}
