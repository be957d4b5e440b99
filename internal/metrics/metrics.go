// Package metrics holds the Prometheus collectors of the acquisition core.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Interrupts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adxl345_watermark_interrupts_total",
			Help: "Watermark interrupts handled.",
		},
		[]string{"device"},
	)

	SamplesPushed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adxl345_samples_pushed_total",
			Help: "Samples drained from the hardware FIFO into the ring buffer.",
		},
		[]string{"device"},
	)

	SamplesDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adxl345_samples_dropped_total",
			Help: "Samples dropped because the ring buffer was full.",
		},
		[]string{"device"},
	)

	BusErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adxl345_bus_errors_total",
			Help: "Bus transactions that failed inside the interrupt handler.",
		},
		[]string{"device"},
	)

	Queued = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "adxl345_ring_queued_samples",
			Help: "Samples waiting in the ring buffer.",
		},
		[]string{"device"},
	)

	AttachedDevices = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "adxl345_attached_devices",
		Help: "Sensors currently attached.",
	})
)

func init() {
	prometheus.MustRegister(Interrupts)
	prometheus.MustRegister(SamplesPushed)
	prometheus.MustRegister(SamplesDropped)
	prometheus.MustRegister(BusErrors)
	prometheus.MustRegister(Queued)
	prometheus.MustRegister(AttachedDevices)
}

// Forget removes the per-device series of name.
func Forget(name string) {
	l := prometheus.Labels{"device": name}
	Interrupts.Delete(l)
	SamplesPushed.Delete(l)
	SamplesDropped.Delete(l)
	BusErrors.Delete(l)
	Queued.Delete(l)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
