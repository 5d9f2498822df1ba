package debug

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Result labels for matrix calculations.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Profiler records framework activity as prometheus metrics.
type Profiler struct {
	registrations prometheus.Counter
	instances     *prometheus.GaugeVec
	messages      *prometheus.CounterVec
	blocks        *prometheus.CounterVec
	blockSeconds  *prometheus.HistogramVec
	matrixCalcs   *prometheus.CounterVec
}

// NewProfiler creates the metrics and registers them with reg. A nil reg
// leaves them unregistered, which is useful in tests.
func NewProfiler(reg prometheus.Registerer) *Profiler {
	p := &Profiler{
		registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gomedian_class_registrations_total",
			Help: "Total number of host classes registered",
		}),
		instances: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gomedian_live_instances",
			Help: "Number of live object instances",
		}, []string{"class"}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gomedian_messages_total",
			Help: "Total number of messages dispatched to objects",
		}, []string{"class", "selector"}),
		blocks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gomedian_perform_blocks_total",
			Help: "Total number of audio blocks rendered",
		}, []string{"class"}),
		blockSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gomedian_perform_duration_seconds",
			Help:    "Audio block render duration in seconds",
			Buckets: prometheus.ExponentialBuckets(1e-6, 4, 10),
		}, []string{"class"}),
		matrixCalcs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gomedian_matrix_calcs_total",
			Help: "Total number of matrix operator calculations",
		}, []string{"class", "result"}),
	}
	if reg != nil {
		reg.MustRegister(p.registrations, p.instances, p.messages, p.blocks, p.blockSeconds, p.matrixCalcs)
	}
	return p
}

// ClassRegistered counts a class registration.
func (p *Profiler) ClassRegistered() { p.registrations.Inc() }

// InstanceCreated counts a new live instance.
func (p *Profiler) InstanceCreated(class string) { p.instances.WithLabelValues(class).Inc() }

// InstanceFreed counts a freed instance.
func (p *Profiler) InstanceFreed(class string) { p.instances.WithLabelValues(class).Dec() }

// Message counts a dispatched message.
func (p *Profiler) Message(class, selector string) {
	p.messages.WithLabelValues(class, selector).Inc()
}

// MatrixCalc counts a matrix calculation.
func (p *Profiler) MatrixCalc(class string, err error) {
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	p.matrixCalcs.WithLabelValues(class, result).Inc()
}

// Block returns a meter for the audio blocks of one class. Resolve it when
// the DSP chain is compiled; using it does not allocate.
func (p *Profiler) Block(class string) BlockMeter {
	return BlockMeter{
		blocks:  p.blocks.WithLabelValues(class),
		seconds: p.blockSeconds.WithLabelValues(class),
	}
}

// BlockMeter times audio blocks.
type BlockMeter struct {
	blocks  prometheus.Counter
	seconds prometheus.Observer
}

// Start begins timing a block.
func (m BlockMeter) Start() time.Time { return time.Now() }

// Stop records a block started at start.
func (m BlockMeter) Stop(start time.Time) {
	if m.blocks == nil {
		return
	}
	m.blocks.Inc()
	m.seconds.Observe(time.Since(start).Seconds())
}
