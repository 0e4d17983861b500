package handler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	webhookUpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_webhook_updates_total",
		Help: "Total chat webhook updates processed, labeled by update kind",
	}, []string{"kind"})

	reconciliationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_reconciliations_total",
		Help: "Total gateway webhook reconciliations, labeled by outcome",
	}, []string{"outcome"})

	tokenIssuesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_token_issues_total",
		Help: "Total connection tokens issued over the internal API, labeled by outcome",
	}, []string{"outcome"})

	webhookDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bridge_webhook_duration_seconds",
		Help:    "Latency distribution of webhook processing",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"endpoint"})
)
