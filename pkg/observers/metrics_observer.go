package observers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/anggasct/statechart"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the Prometheus collectors shared by every MetricsObserver
// registered on the same Registerer.
type Metrics struct {
	StateEntries    *prometheus.CounterVec
	Transitions     *prometheus.CounterVec
	UnhandledEvents *prometheus.CounterVec
	Errors          *prometheus.CounterVec
	StateDuration   *prometheus.HistogramVec
	Running         *prometheus.GaugeVec
}

// NewMetrics creates and registers the collectors on reg. A nil reg uses
// prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		StateEntries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "statechart_state_entries_total",
			Help: "Total number of state entries by machine and state",
		}, []string{"machine", "state"}),
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "statechart_transitions_total",
			Help: "Total number of transitions by machine, source and target",
		}, []string{"machine", "from_state", "to_state"}),
		UnhandledEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "statechart_unhandled_events_total",
			Help: "Total number of events consumed without a transition",
		}, []string{"machine", "event"}),
		Errors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "statechart_errors_total",
			Help: "Total number of fatal processor errors by error code",
		}, []string{"machine", "code"}),
		StateDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "statechart_state_duration_seconds",
			Help:    "Time spent in a state between its entry and exit",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30, 60, 300},
		}, []string{"machine", "state"}),
		Running: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "statechart_running_processors",
			Help: "Number of processors currently running",
		}, []string{"machine"}),
	}
}

// MetricsObserver records processor activity into Prometheus collectors.
// Use one observer per processor; the collectors can be shared.
type MetricsObserver[ID comparable] struct {
	metrics        *Metrics
	machine        string
	lastStateEntry map[ID]time.Time
	started        bool
	mutex          sync.Mutex
}

// NewMetricsObserver creates a new metrics observer labelled with machine
func NewMetricsObserver[ID comparable](metrics *Metrics, machine string) *MetricsObserver[ID] {
	return &MetricsObserver[ID]{
		metrics:        metrics,
		machine:        machine,
		lastStateEntry: make(map[ID]time.Time),
	}
}

// OnStateEnter records state entry metrics
func (o *MetricsObserver[ID]) OnStateEnter(_ context.Context, state ID) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	o.metrics.StateEntries.WithLabelValues(o.machine, fmt.Sprint(state)).Inc()
	o.lastStateEntry[state] = time.Now()
}

// OnStateExit records the time spent in the state
func (o *MetricsObserver[ID]) OnStateExit(_ context.Context, state ID) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	if entryTime, ok := o.lastStateEntry[state]; ok {
		o.metrics.StateDuration.WithLabelValues(o.machine, fmt.Sprint(state)).Observe(time.Since(entryTime).Seconds())
		delete(o.lastStateEntry, state)
	}
}

// OnTransition records transition metrics
func (o *MetricsObserver[ID]) OnTransition(_ context.Context, from ID, to ID, _ any) {
	o.metrics.Transitions.WithLabelValues(o.machine, fmt.Sprint(from), fmt.Sprint(to)).Inc()
}

// OnEventUnhandled records events consumed without a transition
func (o *MetricsObserver[ID]) OnEventUnhandled(_ context.Context, event any) {
	o.metrics.UnhandledEvents.WithLabelValues(o.machine, statechart.EventName(event)).Inc()
}

// OnError records error metrics
func (o *MetricsObserver[ID]) OnError(_ context.Context, err error) {
	o.metrics.Errors.WithLabelValues(o.machine, fmt.Sprint(int(statechart.GetErrorCode(err)))).Inc()
}

// OnMachineStarted increments the running gauge
func (o *MetricsObserver[ID]) OnMachineStarted(context.Context) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	o.started = true
	o.metrics.Running.WithLabelValues(o.machine).Inc()
}

// OnMachineStopped decrements the running gauge for processors that started
func (o *MetricsObserver[ID]) OnMachineStopped(context.Context, error) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	if o.started {
		o.metrics.Running.WithLabelValues(o.machine).Dec()
		o.started = false
	}
	clear(o.lastStateEntry)
}
