package metrics

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "webrtc_relay"

// Collector owns every Prometheus metric exported by the relay. It satisfies the
// observer interfaces of the queue store and the room broker.
type Collector struct {
	registry *prometheus.Registry

	queues    prometheus.Gauge
	queueOps  *prometheus.CounterVec
	evictions *prometheus.CounterVec

	rooms          prometheus.Gauge
	clients        prometheus.Gauge
	roomRejections prometheus.Counter
	relayedEvents  *prometheus.CounterVec

	requestCount    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	goRoutines      prometheus.GaugeFunc
}

func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		queues: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dss",
			Name:      "queues",
			Help:      "Number of live signaling queues.",
		}),
		queueOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dss",
			Name:      "operations_total",
			Help:      "Queue store operations by kind and result.",
		}, []string{"op", "result"}),
		evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dss",
			Name:      "queue_removals_total",
			Help:      "Queues removed from the store by reason.",
		}, []string{"reason"}),
		rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "rooms",
			Help:      "Number of live rooms.",
		}),
		clients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "clients",
			Help:      "Number of connected room members.",
		}),
		roomRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "room_full_rejections_total",
			Help:      "Join attempts rejected because the room already had two members.",
		}),
		relayedEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "events_total",
			Help:      "Inbound envelope events by name.",
		}, []string{"event"}),
		requestCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method and status code.",
		}, []string{"method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		goRoutines: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "go_routines",
			Help:      "Number of running goroutines.",
		}, func() float64 { return float64(runtime.NumGoroutine()) }),
	}

	c.registry.MustRegister(
		c.queues, c.queueOps, c.evictions,
		c.rooms, c.clients, c.roomRejections, c.relayedEvents,
		c.requestCount, c.requestDuration, c.goRoutines,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return c
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Queue store observer.

func (c *Collector) QueueCountChanged(n int) {
	c.queues.Set(float64(n))
}

func (c *Collector) QueueOp(op, result string) {
	c.queueOps.WithLabelValues(op, result).Inc()
}

func (c *Collector) QueueRemoved(reason string, n int) {
	c.evictions.WithLabelValues(reason).Add(float64(n))
}

// Room broker observer.

func (c *Collector) RoomCountChanged(n int) {
	c.rooms.Set(float64(n))
}

func (c *Collector) ClientJoined() {
	c.clients.Inc()
}

func (c *Collector) ClientLeft() {
	c.clients.Dec()
}

func (c *Collector) RoomRejected() {
	c.roomRejections.Inc()
}

func (c *Collector) EventReceived(event string) {
	c.relayedEvents.WithLabelValues(event).Inc()
}

// HTTP.

func (c *Collector) ObserveRequest(method string, status int, elapsed time.Duration) {
	c.requestCount.WithLabelValues(method, strconv.Itoa(status)).Inc()
	c.requestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}
