package collector

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/runtime/options"
)

type MetricType uint8

const (
	// Gauge is a metric that represents a single numerical value that can arbitrarily go up and down.
	// During metric Update the collected value is set, thus previous value is overwritten.
	Gauge MetricType = iota
	// Counter is a cumulative metric that represents a single numerical value that only ever goes up.
	// During metric Update the collected value is added to its current value.
	Counter
)

// Metric is a single metric that is registered to the prometheus registry. Its value is either pulled with the
// WithCollectFunc callback whenever prometheus scrapes, or pushed through Collector.Update and Collector.Increment
// from the event hooks installed by WithInitFunc.
type Metric struct {
	Name      string
	Type      MetricType
	Namespace string

	help        string
	labels      []string
	collectFunc func() (value float64, labelValues []string)
	initFunc    func()

	promMetric prometheus.Collector
}

// NewMetric creates a new metric with given name and options.
func NewMetric(name string, opts ...options.Option[Metric]) *Metric {
	return options.Apply(&Metric{
		Name: name,
	}, opts)
}

func (m *Metric) initPromMetric() {
	switch m.Type {
	case Gauge:
		opts := prometheus.GaugeOpts{Namespace: m.Namespace, Name: m.Name, Help: m.help}
		if len(m.labels) > 0 {
			m.promMetric = prometheus.NewGaugeVec(opts, m.labels)
		} else {
			m.promMetric = prometheus.NewGauge(opts)
		}
	case Counter:
		opts := prometheus.CounterOpts{Namespace: m.Namespace, Name: m.Name, Help: m.help}
		if len(m.labels) > 0 {
			m.promMetric = prometheus.NewCounterVec(opts, m.labels)
		} else {
			m.promMetric = prometheus.NewCounter(opts)
		}
	}
}

func (m *Metric) collect() {
	if m.collectFunc == nil {
		return
	}

	value, labelValues := m.collectFunc()
	_ = m.update(value, labelValues...)
}

func (m *Metric) update(value float64, labelValues ...string) error {
	if len(labelValues) != len(m.labels) {
		return ierrors.Wrapf(ErrLabelMismatch, "metric %s_%s expects %v, got %v", m.Namespace, m.Name, m.labels, labelValues)
	}

	switch metric := m.promMetric.(type) {
	case prometheus.Gauge:
		metric.Set(value)
	case *prometheus.GaugeVec:
		metric.WithLabelValues(labelValues...).Set(value)
	case prometheus.Counter:
		metric.Add(value)
	case *prometheus.CounterVec:
		metric.WithLabelValues(labelValues...).Add(value)
	}

	return nil
}

func (m *Metric) increment(labelValues ...string) error {
	if len(labelValues) != len(m.labels) {
		return ierrors.Wrapf(ErrLabelMismatch, "metric %s_%s expects %v, got %v", m.Namespace, m.Name, m.labels, labelValues)
	}

	switch metric := m.promMetric.(type) {
	case prometheus.Gauge:
		metric.Inc()
	case *prometheus.GaugeVec:
		metric.WithLabelValues(labelValues...).Inc()
	case prometheus.Counter:
		metric.Inc()
	case *prometheus.CounterVec:
		metric.WithLabelValues(labelValues...).Inc()
	}

	return nil
}

// WithType sets the metric type: Gauge or Counter.
func WithType(t MetricType) options.Option[Metric] {
	return func(m *Metric) {
		m.Type = t
	}
}

// WithHelp sets the help text for the metric.
func WithHelp(help string) options.Option[Metric] {
	return func(m *Metric) {
		m.help = help
	}
}

// WithLabels defines the labels of the metric, their values need to be passed in the same order to Update.
func WithLabels(labels ...string) options.Option[Metric] {
	return func(m *Metric) {
		m.labels = labels
	}
}

// WithCollectFunc defines a function that is called each time prometheus scrapes the data.
// Should be used when the value can be read at any time and does not need to be tracked through events.
func WithCollectFunc(collectFunc func() (metricValue float64, labelValues []string)) options.Option[Metric] {
	return func(m *Metric) {
		m.collectFunc = collectFunc
	}
}

// WithInitFunc defines a function that is called once when the metric is registered. It usually hooks to events and
// pushes values with Collector.Update or Collector.Increment.
func WithInitFunc(initFunc func()) options.Option[Metric] {
	return func(m *Metric) {
		m.initFunc = initFunc
	}
}
