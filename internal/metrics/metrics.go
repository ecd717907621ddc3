// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	initOnce sync.Once

	recontactOutcomesCounter        *prometheus.CounterVec
	recontactDeliveriesCounter      *prometheus.CounterVec
	recontactDeliveryDurationMetric prometheus.Histogram
	statusUpdatesCounter            *prometheus.CounterVec
	outboxClaimLatencyMetric        prometheus.Histogram
)

// Init registers metrics on the default Prometheus registry exactly once.
func Init() {
	initOnce.Do(func() {
		recontactOutcomesCounter = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recontact_requests_total",
				Help: "Total number of re-contact requests by outcome.",
			},
			[]string{"outcome"},
		)

		recontactDeliveriesCounter = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recontact_deliveries_total",
				Help: "Total number of outbox delivery attempts by resulting status.",
			},
			[]string{"status"},
		)

		recontactDeliveryDurationMetric = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "recontact_delivery_duration_seconds",
				Help:    "Duration of successful re-contact webhook deliveries in seconds.",
				Buckets: prometheus.DefBuckets,
			},
		)

		statusUpdatesCounter = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "patient_status_updates_total",
				Help: "Total number of patient status field changes by stage.",
			},
			[]string{"stage"},
		)

		outboxClaimLatencyMetric = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "recontact_outbox_claim_latency_seconds",
				Help:    "Latency of worker outbox claim queries in seconds.",
				Buckets: prometheus.DefBuckets,
			},
		)

		prometheus.MustRegister(
			recontactOutcomesCounter,
			recontactDeliveriesCounter,
			recontactDeliveryDurationMetric,
			statusUpdatesCounter,
			outboxClaimLatencyMetric,
		)

		// Ensure counter vectors are visible at /metrics before first increment.
		for _, outcome := range []string{"issued", "suppressed", "ineligible", "failed"} {
			recontactOutcomesCounter.WithLabelValues(outcome)
		}
		for _, status := range []string{"SENT", "RETRY", "FAILED"} {
			recontactDeliveriesCounter.WithLabelValues(status)
		}
		for _, stage := range []string{"contact", "eligibility", "coverage"} {
			statusUpdatesCounter.WithLabelValues(stage)
		}
	})
}

func IncRecontactOutcome(outcome string) {
	Init()
	recontactOutcomesCounter.WithLabelValues(outcome).Inc()
}

func IncRecontactDelivery(status string) {
	Init()
	recontactDeliveriesCounter.WithLabelValues(status).Inc()
}

func ObserveRecontactDeliveryDuration(d time.Duration) {
	Init()
	recontactDeliveryDurationMetric.Observe(d.Seconds())
}

func IncStatusUpdate(stage string) {
	Init()
	statusUpdatesCounter.WithLabelValues(stage).Inc()
}

func ObserveOutboxClaimLatency(d time.Duration) {
	Init()
	outboxClaimLatencyMetric.Observe(d.Seconds())
}
