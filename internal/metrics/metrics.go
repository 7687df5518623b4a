// Package metrics exposes Prometheus collectors for supervisor and
// socket-client activity. Helpers no-op until Register is called.
package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	regOK atomic.Bool

	serviceStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "opsctl",
			Subsystem: "service",
			Name:      "starts_total",
			Help:      "Number of service launches.",
		}, []string{"service"},
	)
	serviceStops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "opsctl",
			Subsystem: "service",
			Name:      "stops_total",
			Help:      "Number of termination signals sent to recorded pids.",
		}, []string{"service"},
	)
	sweepKills = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "opsctl",
			Subsystem: "service",
			Name:      "sweep_kills_total",
			Help:      "Processes force-killed by the restart pattern sweep.",
		}, []string{"service"},
	)
	serviceUp = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "opsctl",
			Subsystem: "service",
			Name:      "up",
			Help:      "1 when the recorded pid answers a liveness probe.",
		}, []string{"service"},
	)

	socketReconnects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "opsctl",
			Subsystem: "socket",
			Name:      "reconnects_total",
			Help:      "Reconnect attempts scheduled after abnormal closures.",
		}, []string{"endpoint"},
	)
	socketQueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "opsctl",
			Subsystem: "socket",
			Name:      "queue_depth",
			Help:      "Messages queued while the connection is not open.",
		}, []string{"endpoint"},
	)
)

// Register registers all collectors with r. Safe to call repeatedly;
// an AlreadyRegisteredError is tolerated so the default registry can be
// shared with an embedding application.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	collectors := []prometheus.Collector{
		serviceStarts, serviceStops, sweepKills, serviceUp,
		socketReconnects, socketQueueDepth,
	}
	for _, c := range collectors {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler serves the default gatherer; callers wire the route.
func Handler() http.Handler { return promhttp.Handler() }

func IncStart(service string) {
	if regOK.Load() {
		serviceStarts.WithLabelValues(service).Inc()
	}
}

func IncStop(service string) {
	if regOK.Load() {
		serviceStops.WithLabelValues(service).Inc()
	}
}

func AddSweepKills(service string, n int) {
	if regOK.Load() && n > 0 {
		sweepKills.WithLabelValues(service).Add(float64(n))
	}
}

func SetUp(service string, up bool) {
	if regOK.Load() {
		v := 0.0
		if up {
			v = 1
		}
		serviceUp.WithLabelValues(service).Set(v)
	}
}

func IncSocketReconnect(endpoint string) {
	if regOK.Load() {
		socketReconnects.WithLabelValues(endpoint).Inc()
	}
}

func SetSocketQueueDepth(endpoint string, depth int) {
	if regOK.Load() {
		socketQueueDepth.WithLabelValues(endpoint).Set(float64(depth))
	}
}
