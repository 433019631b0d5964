package platform

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	promEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "netcfgd",
		Subsystem: "platform",
		Name:      "events_total",
		Help:      "Cache transitions announced to observers",
	}, []string{"type", "change", "origin"})

	promBackendErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "netcfgd",
		Subsystem: "platform",
		Name:      "backend_errors_total",
		Help:      "Failed backend operations by operation and error kind",
	}, []string{"op", "kind"})

	promResyncs = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "netcfgd",
		Subsystem: "platform",
		Name:      "resyncs_total",
		Help:      "Full cache resynchronizations",
	})
)
