// Package metrics exposes Prometheus collectors for the crawl service.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	evaluationsTotal     *prometheus.CounterVec
	fetchFailuresTotal   prometheus.Counter
	resolutionsTotal     *prometheus.CounterVec
	broadcastTotal       *prometheus.CounterVec
	sendFailuresTotal    prometheus.Counter
	activeObserversGauge prometheus.Gauge
	activeCrawlsGauge    prometheus.Gauge
	sessionsGauge        prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus collectors. It is safe to call multiple
// times; recording functions are no-ops until it runs.
func Init() {
	once.Do(func() {
		evaluationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gtoapp_evaluations_total",
				Help: "Campaign evaluations, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		fetchFailuresTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "gtoapp_campaign_fetch_failures_total",
				Help: "Per-campaign fetch failures absorbed as exclusions.",
			},
		)

		resolutionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gtoapp_directory_resolutions_total",
				Help: "Directory resolution runs, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		broadcastTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gtoapp_broadcast_events_total",
				Help: "Events relayed to session observers, labeled by kind.",
			},
			[]string{"kind"},
		)

		sendFailuresTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "gtoapp_observer_send_failures_total",
				Help: "Event deliveries dropped because an observer send failed.",
			},
		)

		activeObserversGauge = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "gtoapp_active_observers",
				Help: "Currently connected observers across all sessions.",
			},
		)

		activeCrawlsGauge = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "gtoapp_active_crawls",
				Help: "Crawl tasks currently running.",
			},
		)

		sessionsGauge = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "gtoapp_sessions",
				Help: "Session states held in the registry.",
			},
		)
	})
}

// Evaluation outcome labels.
const (
	OutcomePublic   = "public"
	OutcomeHidden   = "hidden"
	OutcomeExcluded = "excluded"
)

// RecordEvaluation counts one campaign evaluation.
func RecordEvaluation(outcome string) {
	if evaluationsTotal != nil {
		evaluationsTotal.WithLabelValues(outcome).Inc()
	}
}

// RecordFetchFailure counts one absorbed per-campaign fetch failure.
func RecordFetchFailure() {
	if fetchFailuresTotal != nil {
		fetchFailuresTotal.Inc()
	}
}

// RecordResolution counts one directory resolution run.
func RecordResolution(ok bool) {
	if resolutionsTotal == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	resolutionsTotal.WithLabelValues(outcome).Inc()
}

// RecordBroadcast counts one event relayed to observers.
func RecordBroadcast(kind string) {
	if broadcastTotal != nil {
		broadcastTotal.WithLabelValues(kind).Inc()
	}
}

// RecordSendFailure counts one dropped observer delivery.
func RecordSendFailure() {
	if sendFailuresTotal != nil {
		sendFailuresTotal.Inc()
	}
}

// ObserverConnected adjusts the connected-observer gauge.
func ObserverConnected() {
	if activeObserversGauge != nil {
		activeObserversGauge.Inc()
	}
}

// ObserverDisconnected adjusts the connected-observer gauge.
func ObserverDisconnected() {
	if activeObserversGauge != nil {
		activeObserversGauge.Dec()
	}
}

// CrawlStarted adjusts the running-crawl gauge.
func CrawlStarted() {
	if activeCrawlsGauge != nil {
		activeCrawlsGauge.Inc()
	}
}

// CrawlFinished adjusts the running-crawl gauge.
func CrawlFinished() {
	if activeCrawlsGauge != nil {
		activeCrawlsGauge.Dec()
	}
}

// SessionCreated adjusts the session-registry gauge.
func SessionCreated() {
	if sessionsGauge != nil {
		sessionsGauge.Inc()
	}
}
