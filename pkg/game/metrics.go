package game

import (
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns the process's Prometheus registry and the engine gauges.
// Counter methods are safe from any goroutine.
type Metrics struct {
	registry *prometheus.Registry
	started  time.Time

	messages      prometheus.Counter
	commands      prometheus.Counter
	handlerErrors prometheus.Counter

	waitsActive   prometheus.Gauge
	spawnersLive  prometheus.Gauge
	trainingLive  prometheus.Gauge
	recordsStored prometheus.Gauge
	uptimeSeconds prometheus.Gauge
	goroutines    prometheus.Gauge
}

// NewMetrics builds and registers the metric set.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		started:  time.Now(),
		messages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wildspawn_messages_total",
			Help: "Inbound chat messages seen by the engine.",
		}),
		commands: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wildspawn_commands_total",
			Help: "Messages that launched a command handler.",
		}),
		handlerErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wildspawn_handler_errors_total",
			Help: "Command handlers that terminated by panic.",
		}),
		waitsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wildspawn_waits_active",
			Help: "Live deadline-bound waits.",
		}),
		spawnersLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wildspawn_spawners_live",
			Help: "Channels with a running spawner loop.",
		}),
		trainingLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wildspawn_training_live",
			Help: "Users with a running training timer.",
		}),
		recordsStored: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wildspawn_records_stored",
			Help: "Creature records in the store.",
		}),
		uptimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wildspawn_uptime_seconds",
			Help: "Seconds since process start.",
		}),
		goroutines: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wildspawn_goroutines",
			Help: "Current goroutine count.",
		}),
	}
	m.registry.MustRegister(
		m.messages, m.commands, m.handlerErrors,
		m.waitsActive, m.spawnersLive, m.trainingLive,
		m.recordsStored, m.uptimeSeconds, m.goroutines,
	)
	return m
}

// Message counts one inbound chat message.
func (m *Metrics) Message() { m.messages.Inc() }

// Command counts one dispatched command.
func (m *Metrics) Command() { m.commands.Inc() }

// HandlerError counts one handler panic.
func (m *Metrics) HandlerError() { m.handlerErrors.Inc() }

// Update refreshes the gauges from the live engine state.
func (m *Metrics) Update(g *Game) {
	m.waitsActive.Set(float64(g.Waits.Active()))
	m.spawnersLive.Set(float64(g.Tasks.SpawnerCount()))
	m.trainingLive.Set(float64(g.Tasks.TrainingCount()))
	m.recordsStored.Set(float64(g.Store.Len()))
	m.uptimeSeconds.Set(time.Since(m.started).Seconds())
	m.goroutines.Set(float64(runtime.NumGoroutine()))
}

// Handler returns the scrape endpoint, refreshing gauges per scrape.
func (m *Metrics) Handler(g *Game) http.Handler {
	inner := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.Update(g)
		inner.ServeHTTP(w, r)
	})
}
