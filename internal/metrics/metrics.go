// Package metrics exposes the engine's Prometheus counters. Adapted
// from the teacher's metrics package: same construction style
// (namespaced CounterVecs registered at startup), but bound to a plain
// prometheus.Registry rather than controller-runtime's shared registry,
// since this engine runs no controller-manager process to own one.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const metricNamespace = "jit_access"

var (
	RequestsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "requests_created_total",
			Help:      "Number of activation requests created, by kind.",
		},
		[]string{"kind"},
	)

	ActivationsProvisioned = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "activations_provisioned_total",
			Help:      "Number of role bindings successfully provisioned, by kind and role.",
		},
		[]string{"kind", "role"},
	)

	ActivationErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "activation_errors_total",
			Help:      "Number of activation/approval attempts that failed, by error kind.",
		},
		[]string{"reason"},
	)

	TokensIssued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "tokens_issued_total",
			Help:      "Number of activation tokens signed.",
		},
	)

	TokenVerificationFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "token_verification_failures_total",
			Help:      "Number of activation tokens rejected during verification.",
		},
	)

	ProvisioningConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "provisioning_etag_conflicts_total",
			Help:      "Number of etag conflicts observed while writing a temporary IAM binding.",
		},
	)

	NotificationFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "notification_failures_total",
			Help:      "Number of notification dispatch attempts that failed, by transport.",
		},
		[]string{"transport"},
	)
)

// NewRegistry builds a fresh prometheus.Registry with every engine
// metric plus the standard build-info collector registered, ready to
// mount behind an HTTP handler by the (out-of-scope) REST façade.
func NewRegistry(version string) *prometheus.Registry {
	registry := prometheus.NewRegistry()

	buildInfo := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   metricNamespace,
		Name:        "build_info",
		Help:        "Build information.",
		ConstLabels: prometheus.Labels{"revision": version},
	})
	buildInfo.Set(1)

	registry.MustRegister(buildInfo)
	registry.MustRegister(collectors.NewBuildInfoCollector())
	registry.MustRegister(RequestsCreated)
	registry.MustRegister(ActivationsProvisioned)
	registry.MustRegister(ActivationErrors)
	registry.MustRegister(TokensIssued)
	registry.MustRegister(TokenVerificationFailures)
	registry.MustRegister(ProvisioningConflicts)
	registry.MustRegister(NotificationFailures)

	return registry
}
