package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder exports engine metrics on a private registry.
// All methods are safe on a nil *Recorder.
type Recorder struct {
	registry *prometheus.Registry

	probesTotal     *prometheus.CounterVec
	probeLatency    *prometheus.HistogramVec
	serviceStatus   *prometheus.GaugeVec
	staleResults    *prometheus.CounterVec
	alertsTotal     *prometheus.CounterVec
	persistFailures *prometheus.CounterVec
	monitored       prometheus.Gauge
	httpDuration    *prometheus.HistogramVec
}

func New() *Recorder {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())

	return &Recorder{
		registry: registry,

		probesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "healthmon_probes_total",
				Help: "Probes applied, by service and error class",
			},
			[]string{"service", "class"},
		),

		probeLatency: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "healthmon_probe_latency_seconds",
				Help:    "Latency of successful probes",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"service"},
		),

		serviceStatus: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "healthmon_service_status",
				Help: "1 for the service's current status label, 0 otherwise",
			},
			[]string{"service", "status"},
		),

		staleResults: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "healthmon_discarded_results_total",
				Help: "Probe results dropped before application, by reason",
			},
			[]string{"reason"},
		),

		alertsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "healthmon_alerts_total",
				Help: "Alert notifications by notifier and outcome",
			},
			[]string{"notifier", "outcome"},
		),

		persistFailures: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "healthmon_persistence_failures_total",
				Help: "Failed persistence operations",
			},
			[]string{"op"},
		),

		monitored: promauto.With(registry).NewGauge(
			prometheus.GaugeOpts{
				Name: "healthmon_monitored_services",
				Help: "Number of monitored services",
			},
		),

		httpDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "healthmon_http_request_duration_seconds",
				Help:    "API request latency by route and status",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
	}
}

func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func (r *Recorder) ObserveProbe(service string, success bool, class string, latency time.Duration) {
	if r == nil {
		return
	}
	if class == "" {
		class = "ok"
	}
	r.probesTotal.WithLabelValues(service, class).Inc()
	if success {
		r.probeLatency.WithLabelValues(service).Observe(latency.Seconds())
	}
}

// SetStatus flags the current status of a service among all known statuses.
func (r *Recorder) SetStatus(service, status string, all []string) {
	if r == nil {
		return
	}
	for _, s := range all {
		v := 0.0
		if s == status {
			v = 1
		}
		r.serviceStatus.WithLabelValues(service, s).Set(v)
	}
}

func (r *Recorder) ForgetService(service string) {
	if r == nil {
		return
	}
	r.serviceStatus.DeletePartialMatch(prometheus.Labels{"service": service})
	r.probesTotal.DeletePartialMatch(prometheus.Labels{"service": service})
	r.probeLatency.DeletePartialMatch(prometheus.Labels{"service": service})
}

func (r *Recorder) DiscardedResult(reason string) {
	if r == nil {
		return
	}
	r.staleResults.WithLabelValues(reason).Inc()
}

func (r *Recorder) Alert(notifier, outcome string) {
	if r == nil {
		return
	}
	r.alertsTotal.WithLabelValues(notifier, outcome).Inc()
}

func (r *Recorder) PersistFailure(op string) {
	if r == nil {
		return
	}
	r.persistFailures.WithLabelValues(op).Inc()
}

func (r *Recorder) SetMonitored(n int) {
	if r == nil {
		return
	}
	r.monitored.Set(float64(n))
}

func (r *Recorder) ObserveHTTP(method, route string, status int, d time.Duration) {
	if r == nil {
		return
	}
	r.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}
