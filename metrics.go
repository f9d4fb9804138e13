package wander

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionValidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wander_client",
			Name:      "session_validations_total",
			Help:      "Periodic and out-of-band session validation checks.",
		},
		[]string{"result"},
	)

	cacheRefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wander_client",
			Name:      "cache_refreshes_total",
			Help:      "Collection refreshes by source query.",
		},
		[]string{"source", "result"},
	)

	mutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wander_client",
			Name:      "mutations_total",
			Help:      "Favorite and review mutations attempted against the backend.",
		},
		[]string{"op", "result"},
	)
)

const (
	resultOK    = "ok"
	resultError = "error"
)

func resultLabel(err error) string {
	if err != nil {
		return resultError
	}
	return resultOK
}
