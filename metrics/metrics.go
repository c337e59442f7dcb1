// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package metrics provides the prometheus metrics recorded by the
// authorization flows. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "cap_identity"

// Outcome labels for transitions.
const (
	OutcomeRedirect = "redirect"
	OutcomeSuccess  = "success"
	OutcomeFail     = "fail"
	OutcomeError    = "error"
)

// Metrics are the flow metrics registered on one prometheus.Registerer.
type Metrics struct {
	// Transitions by name (login, authorize, logout) and outcome
	Transitions *prometheus.CounterVec

	// TransitionLatency by transition name
	TransitionLatency *prometheus.HistogramVec

	// ClaimErrors are provider error codes reported for a claim
	ClaimErrors *prometheus.CounterVec

	// ClientResolutionFailures by reason (configuration, registration)
	ClientResolutionFailures *prometheus.CounterVec
}

// New creates Metrics registered on reg. prometheus.DefaultRegisterer is used
// when reg is nil.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flow_transitions_total",
			Help:      "Total authorization flow transitions by transition and outcome",
		}, []string{"transition", "outcome"}),

		TransitionLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "flow_transition_duration_seconds",
			Help:      "Duration of authorization flow transitions, including provider requests",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"transition"}),

		ClaimErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "claim_errors_total",
			Help:      "Total claim error codes reported by the identity provider by claim",
		}, []string{"claim"}),

		ClientResolutionFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "client_resolution_failures_total",
			Help:      "Total failures to resolve an oidc client for a session by reason",
		}, []string{"reason"}),
	}
}

// IncrementTransition records the outcome of a transition.
func (m *Metrics) IncrementTransition(transition, outcome string) {
	if m != nil {
		m.Transitions.WithLabelValues(transition, outcome).Inc()
	}
}

// ObserveTransitionLatency records the duration of a transition.
func (m *Metrics) ObserveTransitionLatency(transition string, d time.Duration) {
	if m != nil {
		m.TransitionLatency.WithLabelValues(transition).Observe(d.Seconds())
	}
}

// IncrementClaimErrors records one error for each claim in errs.
func (m *Metrics) IncrementClaimErrors(errs map[string]int) {
	if m == nil {
		return
	}
	for name := range errs {
		m.ClaimErrors.WithLabelValues(name).Inc()
	}
}

// IncrementResolutionFailure records a failure to resolve a client.
func (m *Metrics) IncrementResolutionFailure(reason string) {
	if m != nil {
		m.ClientResolutionFailures.WithLabelValues(reason).Inc()
	}
}
