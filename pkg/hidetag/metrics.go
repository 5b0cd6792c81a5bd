// Copyright 2024-2026 Aiku AI

package hidetag

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Rewrite outcome labels.
const (
	RewriteSent             = "sent"
	RewriteResolutionFailed = "resolution_failed"
	RewriteDispatchFailed   = "dispatch_failed"
)

// Metrics holds the Prometheus collectors. A nil *Metrics records nothing.
type Metrics struct {
	transitions  *prometheus.CounterVec
	closes       *prometheus.CounterVec
	purges       prometheus.Counter
	rewrites     *prometheus.CounterVec
	participants prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "hidetag",
				Name:      "session_transitions_total",
				Help:      "Session state transitions by target state.",
			},
			[]string{"state"},
		),
		closes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "hidetag",
				Name:      "session_closes_total",
				Help:      "Connection closes by reason.",
			},
			[]string{"reason"},
		),
		purges: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "hidetag",
				Name:      "credential_purges_total",
				Help:      "Credential purges after a logout.",
			},
		),
		rewrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "hidetag",
				Name:      "rewrites_total",
				Help:      "Rewrite attempts by outcome.",
			},
			[]string{"result"},
		),
		participants: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "hidetag",
				Name:      "rewrite_mentions",
				Help:      "Number of mentions per sent rewrite.",
				Buckets:   prometheus.ExponentialBuckets(2, 2, 10),
			},
		),
	}
	if reg != nil {
		reg.MustRegister(m.transitions, m.closes, m.purges, m.rewrites, m.participants)
	}
	return m
}

func (m *Metrics) observeTransition(s State) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(s.String()).Inc()
}

func (m *Metrics) observeClose(r CloseReason) {
	if m == nil {
		return
	}
	m.closes.WithLabelValues(r.String()).Inc()
}

func (m *Metrics) observePurge() {
	if m == nil {
		return
	}
	m.purges.Inc()
}

func (m *Metrics) observeRewrite(result string, mentions int) {
	if m == nil {
		return
	}
	m.rewrites.WithLabelValues(result).Inc()
	if result == RewriteSent {
		m.participants.Observe(float64(mentions))
	}
}

// NewMetricsServer returns an HTTP server exposing gatherer on /metrics.
func NewMetricsServer(addr string, gatherer prometheus.Gatherer) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
