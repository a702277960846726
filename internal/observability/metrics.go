package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/cory-johannsen/kater/internal/game/action"
)

// Metric and label names.
const (
	namespace = "kater"

	LabelCategory = "category"
	LabelReason   = "reason"
	LabelOutcome  = "outcome"
	LabelMethod   = "method"
	LabelPath     = "path"
	LabelStatus   = "status"

	OutcomeStored    = "stored"
	OutcomeForfeited = "forfeited"
)

// Metrics holds the engine and HTTP collectors. It satisfies engine.Recorder.
type Metrics struct {
	ActionsStarted   *prometheus.CounterVec
	ActionsRejected  *prometheus.CounterVec
	ActionsCompleted *prometheus.CounterVec
	Energy           prometheus.Gauge
	Hitpoints        prometheus.Gauge
	SavesTotal       *prometheus.CounterVec

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics registers every collector with reg.
//
// Precondition: reg must not be nil and must not already hold these collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ActionsStarted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_started_total",
			Help:      "Actions accepted by try_start.",
		}, []string{LabelCategory}),
		ActionsRejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_rejected_total",
			Help:      "Start attempts rejected, by reason.",
		}, []string{LabelCategory, LabelReason}),
		ActionsCompleted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_completed_total",
			Help:      "Actions resolved by tick, by payout outcome.",
		}, []string{LabelCategory, LabelOutcome}),
		Energy: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "player_energy",
			Help:      "Current player energy.",
		}),
		Hitpoints: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "player_hitpoints",
			Help:      "Current player hit points.",
		}),
		SavesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "saves_total",
			Help:      "Save attempts, by result.",
		}, []string{LabelStatus}),
		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served.",
		}, []string{LabelMethod, LabelPath, LabelStatus}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{LabelMethod, LabelPath}),
	}
}

func (m *Metrics) ActionStarted(c action.Category) {
	m.ActionsStarted.WithLabelValues(c.String()).Inc()
}

func (m *Metrics) ActionRejected(c action.Category, reason string) {
	m.ActionsRejected.WithLabelValues(c.String(), reason).Inc()
}

func (m *Metrics) ActionCompleted(c action.Category, forfeited bool) {
	outcome := OutcomeStored
	if forfeited {
		outcome = OutcomeForfeited
	}
	m.ActionsCompleted.WithLabelValues(c.String(), outcome).Inc()
}

func (m *Metrics) ResourcesObserved(energy, hitpoints int) {
	m.Energy.Set(float64(energy))
	m.Hitpoints.Set(float64(hitpoints))
}

// SaveAttempted counts one save by outcome.
func (m *Metrics) SaveAttempted(err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.SavesTotal.WithLabelValues(status).Inc()
}

// Middleware records request counts and latency labelled by the chi route
// pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				path = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}
