package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mediagateway/internal/model"
)

// Transfer directions used as metric labels.
const (
	DirectionDownload = "download"
	DirectionHead     = "head"
	DirectionUpload   = "upload"
)

// Metrics records transfer outcomes. A nil *Metrics is valid and records nothing.
type Metrics struct {
	transfers *prometheus.CounterVec
	bytes     *prometheus.CounterVec
	inFlight  *prometheus.GaugeVec
	duration  *prometheus.HistogramVec
}

// NewMetrics registers the transfer collectors on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		transfers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "media_transfers_total",
				Help: "Media transfers by direction, category and terminal outcome.",
			},
			[]string{"direction", "category", "outcome"},
		),
		bytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "media_transfer_bytes_total",
				Help: "Bytes relayed between clients and the object store.",
			},
			[]string{"direction", "category"},
		),
		inFlight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "media_transfers_in_flight",
				Help: "Transfers currently holding an upstream stream or temp file.",
			},
			[]string{"direction"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "media_transfer_duration_seconds",
				Help:    "Wall time from request start to terminal state.",
				Buckets: []float64{.01, .05, .1, .5, 1, 5, 15, 60, 300, 1800},
			},
			[]string{"direction", "outcome"},
		),
	}

	for _, c := range []prometheus.Collector{m.transfers, m.bytes, m.inFlight, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observe(direction string, category model.Category, outcome string, n int64, d time.Duration) {
	if m == nil {
		return
	}
	m.transfers.WithLabelValues(direction, string(category), outcome).Inc()
	if n > 0 {
		m.bytes.WithLabelValues(direction, string(category)).Add(float64(n))
	}
	m.duration.WithLabelValues(direction, outcome).Observe(d.Seconds())
}

func (m *Metrics) inFlightAdd(direction string, delta float64) {
	if m == nil {
		return
	}
	m.inFlight.WithLabelValues(direction).Add(delta)
}
