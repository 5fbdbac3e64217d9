// Package metrics holds the Prometheus collectors of the capture bridge.
// Collectors are registered globally via promauto; getters expose them to
// tests and to the /metrics handler.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	capturesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "capture_bridge",
		Name:      "captures_total",
		Help:      "Capture attempts by gateway and outcome (success, declined, redirect, error, skipped).",
	}, []string{"gateway", "outcome"})

	notificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "capture_bridge",
		Name:      "notifications_total",
		Help:      "Gateway notifications by gateway and resulting status.",
	}, []string{"gateway", "status"})

	gatewaySendDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "capture_bridge",
		Name:      "gateway_send_duration_seconds",
		Help:      "Latency of gateway calls.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"gateway", "operation"})

	breakerRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "capture_bridge",
		Name:      "breaker_rejections_total",
		Help:      "Gateway calls refused by an open circuit.",
	}, []string{"gateway"})

	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "capture_bridge",
		Name:      "requests_total",
		Help:      "Requests handled by the dispatcher, by request kind and result.",
	}, []string{"request", "result"})
)

// Outcome labels for CapturesTotal.
const (
	OutcomeSuccess  = "success"
	OutcomeDeclined = "declined"
	OutcomeRedirect = "redirect"
	OutcomeError    = "error"
	OutcomeSkipped  = "skipped"
)

func GetCapturesTotal() *prometheus.CounterVec { return capturesTotal }

func GetNotificationsTotal() *prometheus.CounterVec { return notificationsTotal }

func GetGatewaySendDuration() *prometheus.HistogramVec { return gatewaySendDuration }

func GetBreakerRejectionsTotal() *prometheus.CounterVec { return breakerRejectionsTotal }

func GetRequestsTotal() *prometheus.CounterVec { return requestsTotal }
