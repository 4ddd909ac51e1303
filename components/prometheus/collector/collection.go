package collector

import (
	"github.com/iotaledger/hive.go/runtime/options"
)

// Collection groups the metrics of one namespace.
type Collection struct {
	Name    string
	metrics map[string]*Metric
}

func NewCollection(name string, opts ...options.Option[Collection]) *Collection {
	return options.Apply(&Collection{
		Name:    name,
		metrics: make(map[string]*Metric),
	}, opts, func(c *Collection) {
		for _, m := range c.metrics {
			m.Namespace = c.Name
			m.initPromMetric()
		}
	})
}

func WithMetric(metric *Metric) options.Option[Collection] {
	return func(c *Collection) {
		if metric != nil {
			c.metrics[metric.Name] = metric
		}
	}
}
