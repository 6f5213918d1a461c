package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sitedock/sitedock/pkg/proxy"
)

var (
	proxyStateGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sitedock_proxy_state",
		Help: "Current proxy state (0=stopped, 1=running, 2=unknown, 3=error).",
	})

	appliesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sitedock_applies_total",
		Help: "Configuration apply attempts by result.",
	}, []string{"result"})

	probesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sitedock_site_probes_total",
		Help: "Site availability probes by outcome.",
	}, []string{"outcome"})
)

// SetProxyState records the most recently derived proxy state.
func SetProxyState(state proxy.State) {
	switch state {
	case proxy.StateStopped:
		proxyStateGauge.Set(0)
	case proxy.StateRunning:
		proxyStateGauge.Set(1)
	case proxy.StateUnknown:
		proxyStateGauge.Set(2)
	default:
		proxyStateGauge.Set(3)
	}
}

// ObserveApply counts an apply attempt.
func ObserveApply(err error) {
	if err != nil {
		appliesTotal.WithLabelValues("error").Inc()
		return
	}
	appliesTotal.WithLabelValues("ok").Inc()
}

// ObserveProbe counts a site probe outcome.
func ObserveProbe(state proxy.SiteState) {
	probesTotal.WithLabelValues(string(state)).Inc()
}
