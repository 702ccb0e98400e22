package common

import "github.com/prometheus/client_golang/prometheus"

const (
	HTTPRequestTotal           = "http_requests_total"
	HTTPRequestDurationSeconds = "http_request_duration_seconds"
	AwardAttemptTotal          = "award_attempts_total"
	ChainFailureTotal          = "chain_failures_total"
	ReconcileFailureTotal      = "reconcile_failures_total"
	MarketplaceTransitionTotal = "marketplace_transitions_total"
	DepletionResolutionTotal   = "depletion_resolutions_total"
	ExpiredReservationRelease  = "expired_reservation_releases_total"
)

var (
	PromCounters = map[string]*prometheus.CounterVec{
		HTTPRequestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: HTTPRequestTotal,
			Help: "Count of all HTTP requests",
		}, []string{"path", "code"}),
		AwardAttemptTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: AwardAttemptTotal,
			Help: "Count of award attempts by terminal state",
		}, []string{"state"}),
		ChainFailureTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: ChainFailureTotal,
			Help: "Count of chain failures, transport or rejected on-chain",
		}, []string{"kind"}),
		ReconcileFailureTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: ReconcileFailureTotal,
			Help: "Count of off-chain commits which failed after a successful chain transfer",
		}, []string{"step"}),
		MarketplaceTransitionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MarketplaceTransitionTotal,
			Help: "Count of marketplace listing transitions",
		}, []string{"action", "result"}),
		DepletionResolutionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: DepletionResolutionTotal,
			Help: "Count of depletion trigger resolutions",
		}, []string{"resolution"}),
		ExpiredReservationRelease: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: ExpiredReservationRelease,
			Help: "Count of listing reservations released by timeout",
		}, []string{"result"}),
	}

	PromHistograms = map[string]*prometheus.HistogramVec{
		HTTPRequestDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: HTTPRequestDurationSeconds,
			Help: "Duration of all HTTP requests",
		}, []string{"path"}),
	}
)
