// AngelaMos | 2026
// metrics.go

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the lifecycle and payment code report into.
type Recorder interface {
	NoteCreated(category string)
	NoteTransition(to string)
	NotesAbandoned(count int64)
	PaymentNotification(status string)
	GatewayCall(operation string, success bool, duration time.Duration)
	NotifyFailed()
}

type Collector struct {
	notesCreated  *prometheus.CounterVec
	transitions   *prometheus.CounterVec
	abandoned     prometheus.Counter
	notifications *prometheus.CounterVec
	gatewayCalls  *prometheus.CounterVec
	gatewayTime   *prometheus.HistogramVec
	notifyFailed  prometheus.Counter
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		notesCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notesbot_notes_created_total",
			Help: "Notes submitted, by primary category.",
		}, []string{"category"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notesbot_note_transitions_total",
			Help: "Applied note status transitions, by target status.",
		}, []string{"to"}),
		abandoned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notesbot_notes_swept_total",
			Help: "Pending notes abandoned by the expiry sweeper.",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notesbot_payment_notifications_total",
			Help: "Accepted gateway notifications, by payment status.",
		}, []string{"status"}),
		gatewayCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notesbot_gateway_requests_total",
			Help: "Calls to the payment gateway.",
		}, []string{"operation", "outcome"}),
		gatewayTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "notesbot_gateway_request_seconds",
			Help:    "Payment gateway call latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		notifyFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notesbot_owner_notify_failed_total",
			Help: "Read notifications that could not be delivered to the owner.",
		}),
	}

	reg.MustRegister(
		c.notesCreated,
		c.transitions,
		c.abandoned,
		c.notifications,
		c.gatewayCalls,
		c.gatewayTime,
		c.notifyFailed,
	)

	return c
}

func (c *Collector) NoteCreated(category string) {
	c.notesCreated.WithLabelValues(category).Inc()
}

func (c *Collector) NoteTransition(to string) {
	c.transitions.WithLabelValues(to).Inc()
}

func (c *Collector) NotesAbandoned(count int64) {
	c.abandoned.Add(float64(count))
}

func (c *Collector) PaymentNotification(status string) {
	c.notifications.WithLabelValues(status).Inc()
}

func (c *Collector) GatewayCall(operation string, success bool, duration time.Duration) {
	outcome := "error"
	if success {
		outcome = "ok"
	}
	c.gatewayCalls.WithLabelValues(operation, outcome).Inc()
	c.gatewayTime.WithLabelValues(operation).Observe(duration.Seconds())
}

func (c *Collector) NotifyFailed() {
	c.notifyFailed.Inc()
}

// NewRegistry returns a registry preloaded with the Go runtime and process
// collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

type noop struct{}

// Noop discards every observation.
func Noop() Recorder { return noop{} }

func (noop) NoteCreated(string) {}
func (noop) NoteTransition(string) {}
func (noop) NotesAbandoned(int64) {}
func (noop) PaymentNotification(string) {}
func (noop) GatewayCall(string, bool, time.Duration) {}
func (noop) NotifyFailed() {}
