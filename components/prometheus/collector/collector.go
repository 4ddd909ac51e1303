package collector

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/runtime/syncutils"
)

var (
	// ErrUnknownMetric is returned when a metric is updated that was never registered.
	ErrUnknownMetric = ierrors.New("unknown metric")
	// ErrLabelMismatch is returned when the label values of an update do not match the labels of the metric.
	ErrLabelMismatch = ierrors.New("label values do not match the labels of the metric")
)

// Collector is responsible for creation and collection of metrics for the prometheus.
type Collector struct {
	Registry *prometheus.Registry

	collections map[string]*Collection
	mutex       syncutils.RWMutex
}

// New creates a Collector with its own prometheus registry.
func New() *Collector {
	return &Collector{
		Registry:    prometheus.NewRegistry(),
		collections: make(map[string]*Collection),
	}
}

// RegisterCollection registers all metrics of the collection and runs their init functions.
func (c *Collector) RegisterCollection(collection *Collection) error {
	c.mutex.Lock()
	if _, exists := c.collections[collection.Name]; exists {
		c.mutex.Unlock()

		return ierrors.Errorf("collection %s is already registered", collection.Name)
	}
	c.collections[collection.Name] = collection
	c.mutex.Unlock()

	for _, metric := range collection.metrics {
		if err := c.Registry.Register(metric.promMetric); err != nil {
			return ierrors.Wrapf(err, "failed to register metric %s_%s", collection.Name, metric.Name)
		}

		if metric.initFunc != nil {
			metric.initFunc()
		}
	}

	return nil
}

// Collect runs the collect functions of all registered metrics.
func (c *Collector) Collect() {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	for _, collection := range c.collections {
		for _, metric := range collection.metrics {
			metric.collect()
		}
	}
}

// Update sets a gauge or adds to a counter. The label values must be passed in the order the labels were defined.
func (c *Collector) Update(namespace string, metricName string, metricValue float64, labelValues ...string) error {
	metric, err := c.metric(namespace, metricName)
	if err != nil {
		return err
	}

	return metric.update(metricValue, labelValues...)
}

// Increment increments the metric by one. The label values must be passed in the order the labels were defined.
func (c *Collector) Increment(namespace string, metricName string, labelValues ...string) error {
	metric, err := c.metric(namespace, metricName)
	if err != nil {
		return err
	}

	return metric.increment(labelValues...)
}

func (c *Collector) metric(namespace string, metricName string) (*Metric, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	collection, exists := c.collections[namespace]
	if !exists {
		return nil, ierrors.Wrapf(ErrUnknownMetric, "namespace %s", namespace)
	}

	metric, exists := collection.metrics[metricName]
	if !exists {
		return nil, ierrors.Wrapf(ErrUnknownMetric, "%s_%s", namespace, metricName)
	}

	return metric, nil
}
