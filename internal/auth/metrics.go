// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the prometheus instruments the engine and the join
// pipeline record into. A nil *Metrics disables recording.
type Metrics struct {
	OperationOutcomes *prometheus.CounterVec
	JoinDenials       *prometheus.CounterVec
	OnlineIdentities  prometheus.Gauge
}

// NewMetrics creates and registers the auth metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OperationOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatehouse_auth_operations_total",
				Help: "Authentication operations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		JoinDenials: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatehouse_join_denials_total",
				Help: "Join attempts denied by the verification pipeline, by reason",
			},
			[]string{"reason"},
		),
		OnlineIdentities: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "gatehouse_online_identities",
				Help: "Identities currently present in the session cache",
			},
		),
	}

	reg.MustRegister(m.OperationOutcomes)
	reg.MustRegister(m.JoinDenials)
	reg.MustRegister(m.OnlineIdentities)

	return m
}

func (m *Metrics) recordOutcome(operation string, outcome Outcome) {
	if m == nil {
		return
	}
	m.OperationOutcomes.WithLabelValues(operation, outcome.String()).Inc()
}

func (m *Metrics) recordDenial(reason DenyReason) {
	if m == nil {
		return
	}
	m.JoinDenials.WithLabelValues(reason.String()).Inc()
}

func (m *Metrics) setOnline(n int) {
	if m == nil {
		return
	}
	m.OnlineIdentities.Set(float64(n))
}
