package session

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// sessionsIssuedTotal counts every issued refresh credential, including rotation successors.
	sessionsIssuedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mew_auth_sessions_issued_total",
			Help: "Total number of refresh credentials issued",
		},
	)

	// rotationsTotal counts rotation attempts by outcome.
	// Outcomes: ok, denied (not found/expired/race), reuse, error.
	rotationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mew_auth_refresh_rotations_total",
			Help: "Total number of refresh rotation attempts by outcome",
		},
		[]string{"outcome"},
	)

	// massRevocationsTotal counts revoke-all cascades (logout-everywhere and reuse detection).
	massRevocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mew_auth_mass_revocations_total",
			Help: "Total number of all-sessions revocations by reason",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(sessionsIssuedTotal)
	prometheus.MustRegister(rotationsTotal)
	prometheus.MustRegister(massRevocationsTotal)
}
