package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "hilink"

// Metrics holds the instruments for device traffic. A nil *Metrics records nothing.
type Metrics struct {
	LoginsTotal      *prometheus.CounterVec
	DeviceRequests   *prometheus.CounterVec
	RotationsTotal   *prometheus.CounterVec
	RotationDuration prometheus.Histogram
	HTTPRequests     *prometheus.CounterVec
	DiscoveryProbes  *prometheus.CounterVec
}

// New registers the instruments with reg
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		LoginsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Device login attempts by result.",
		}, []string{"result"}),
		DeviceRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "device_requests_total",
			Help:      "Device API calls by path and result.",
		}, []string{"path", "result"}),
		RotationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ip_rotations_total",
			Help:      "IP rotation procedures by result.",
		}, []string{"result"}),
		RotationDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ip_rotation_duration_seconds",
			Help:      "Wall time of IP rotation procedures.",
			Buckets:   []float64{5, 15, 30, 60, 90, 120, 180, 300},
		}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "REST API requests by route and status code.",
		}, []string{"route", "code"}),
		DiscoveryProbes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discovery_probes_total",
			Help:      "Modem discovery and connection test probes by result.",
		}, []string{"result"}),
	}
}

func (m *Metrics) Login(result string) {
	if m == nil {
		return
	}
	m.LoginsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) DeviceRequest(path, result string) {
	if m == nil {
		return
	}
	m.DeviceRequests.WithLabelValues(path, result).Inc()
}

func (m *Metrics) Rotation(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.RotationsTotal.WithLabelValues(result).Inc()
	m.RotationDuration.Observe(d.Seconds())
}

func (m *Metrics) APIRequest(route string, code int) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}


func (m *Metrics) DiscoveryProbe(result string) {
	if m == nil {
		return
	}
	m.DiscoveryProbes.WithLabelValues(result).Inc()
}
