package metrics

import (
	"context"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/cpu"
)

const timeObserve = 1 * time.Second

// Metrics holds the server collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	CPU              prometheus.Gauge
	AllocatedMemory  prometheus.Gauge
	RequestsNow      prometheus.Gauge
	Requests         *prometheus.CounterVec
	ResponseBodySize prometheus.Histogram
	HandleTime       prometheus.Histogram

	reg *prometheus.Registry
}

// NewMetrics creates the collectors and registers them on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		CPU: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fileserv_cpu_usage",
			Help: "CPU usage",
		}),
		AllocatedMemory: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fileserv_allocated_memory",
			Help: "Bytes of allocated heap objects",
		}),
		RequestsNow: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fileserv_requests_in_flight",
			Help: "How many connections are being handled",
		}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fileserv_requests_total",
			Help: "How many requests were answered, by status code",
		}, []string{"status"}),
		ResponseBodySize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fileserv_response_body_bytes",
			Help:    "Size of response bodies sent",
			Buckets: prometheus.ExponentialBuckets(64, 4, 10),
		}),
		HandleTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fileserv_handle_seconds",
			Help:    "Time from accept to connection close",
			Buckets: prometheus.DefBuckets,
		}),
		reg: reg,
	}
	reg.MustRegister(
		m.CPU,
		m.AllocatedMemory,
		m.RequestsNow,
		m.Requests,
		m.ResponseBodySize,
		m.HandleTime,
	)
	return m
}

// Registry returns the registry the collectors live in.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

func (m *Metrics) RequestStarted() {
	if m == nil {
		return
	}
	m.RequestsNow.Inc()
}

func (m *Metrics) RequestFinished() {
	if m == nil {
		return
	}
	m.RequestsNow.Dec()
}

// ObserveResponse counts a response and, when a body was sent, its size.
func (m *Metrics) ObserveResponse(code int, bodyBytes int64) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(strconv.Itoa(code)).Inc()
	if bodyBytes > 0 {
		m.ResponseBodySize.Observe(float64(bodyBytes))
	}
}

func (m *Metrics) ObserveHandleTime(d time.Duration) {
	if m == nil {
		return
	}
	m.HandleTime.Observe(d.Seconds())
}

func (m *Metrics) updateCPU() {
	p, err := cpu.Percent(0, false)
	if err == nil && len(p) > 0 {
		m.CPU.Set(p[0])
	}
}

func (m *Metrics) updateMemory() {
	ms := runtime.MemStats{}
	runtime.ReadMemStats(&ms)
	m.AllocatedMemory.Set(float64(ms.Alloc))
}

// Observe samples CPU and memory every second until ctx is done.
func (m *Metrics) Observe(ctx context.Context) {
	t := time.NewTicker(timeObserve)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.updateCPU()
			m.updateMemory()
		}
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}
