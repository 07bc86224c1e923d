package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	bookingCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "booking_service",
			Name:      "booking_created_total",
			Help:      "Count of booking create attempts by result.",
		},
		[]string{"result"},
	)

	bookingDeleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "booking_service",
			Name:      "booking_deleted_total",
			Help:      "Count of booking deletions by result.",
		},
		[]string{"result"},
	)

	changesPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "booking_service",
			Name:      "changes_published_total",
			Help:      "Count of change notifications fanned out to subscribers.",
		},
		[]string{"kind"},
	)

	streamSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "booking_service",
			Name:      "stream_subscribers",
			Help:      "Number of live change stream subscribers.",
		},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(bookingCreated, bookingDeleted, changesPublished, streamSubscribers)
	})
}

func IncBookingCreated(result string) {
	bookingCreated.WithLabelValues(result).Inc()
}

func IncBookingDeleted(result string) {
	bookingDeleted.WithLabelValues(result).Inc()
}

func IncChangePublished(kind string) {
	changesPublished.WithLabelValues(kind).Inc()
}

func SetStreamSubscribers(n int) {
	streamSubscribers.Set(float64(n))
}
