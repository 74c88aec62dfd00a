// Package obs bridges the event stream into prometheus collectors.
package obs

import (
	"strings"

	"github.com/Quantix-Lab/vnpy/pkg/event"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	eventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_events_total",
			Help: "Events delivered, by base event type",
		},
		[]string{"type"},
	)
	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "trader_event_queue_depth",
			Help: "Events waiting in the dispatcher queue",
		},
	)
)

func init() {
	prometheus.MustRegister(eventsTotal, queueDepth)
}

// Collector counts every delivered event and samples the queue backlog on
// each timer tick. It subscribes on the wildcard channel, so it observes
// exactly what subscribers observe.
type Collector struct {
	ee *event.Engine
}

// NewCollector builds a collector over the given engine.
func NewCollector(ee *event.Engine) *Collector {
	return &Collector{ee: ee}
}

// Start attaches the collector to the event stream.
func (c *Collector) Start() {
	c.ee.RegisterGeneral(c.onEvent)
}

// Stop detaches the collector.
func (c *Collector) Stop() {
	c.ee.UnregisterGeneral(c.onEvent)
}

func (c *Collector) onEvent(ev event.Event) {
	eventsTotal.WithLabelValues(baseType(ev.Type)).Inc()
	if ev.Type == event.EventTimer {
		queueDepth.Set(float64(c.ee.QueueDepth()))
	}
}

// baseType collapses keyed event types ("eTick.AAPL.NASDAQ") onto their
// general type ("eTick.") to keep label cardinality bounded.
func baseType(eventType string) string {
	if idx := strings.Index(eventType, "."); idx >= 0 {
		return eventType[:idx+1]
	}
	return eventType
}
