package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collectors groups the battle service's Prometheus instruments.
type Collectors struct {
	RoomsCreated        *prometheus.CounterVec
	MatchesStarted      *prometheus.CounterVec
	MatchesCompleted    *prometheus.CounterVec
	ActiveMatches       prometheus.Gauge
	ForcedFinalizations *prometheus.CounterVec
	Submissions         *prometheus.CounterVec
}

// New registers collectors on reg. Pass prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		RoomsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "battle",
			Name:      "rooms_created_total",
			Help:      "Rooms opened in the lobby.",
		}, []string{"mode", "visibility"}),
		MatchesStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "battle",
			Name:      "matches_started_total",
			Help:      "Matches started by a guest joining.",
		}, []string{"mode"}),
		MatchesCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "battle",
			Name:      "matches_completed_total",
			Help:      "Matches reconciled to a final outcome.",
		}, []string{"mode", "resolution"}),
		ActiveMatches: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "battle",
			Name:      "active_matches",
			Help:      "Matches currently awaiting results.",
		}),
		ForcedFinalizations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "battle",
			Name:      "forced_finalizations_total",
			Help:      "Player submissions sealed by the deadline watcher.",
		}, []string{"mode"}),
		Submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "battle",
			Name:      "submissions_total",
			Help:      "Player submissions sealed, by trigger.",
		}, []string{"trigger"}),
	}
	reg.MustRegister(
		c.RoomsCreated,
		c.MatchesStarted,
		c.MatchesCompleted,
		c.ActiveMatches,
		c.ForcedFinalizations,
		c.Submissions,
	)
	return c
}
