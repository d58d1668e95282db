package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "hoshizora", Name: "http_requests_total", Help: "HTTP requests."},
		[]string{"route", "method", "status"},
	)
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hoshizora", Name: "http_request_duration_seconds",
			Help:    "HTTP request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	ExternalRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "hoshizora", Name: "external_requests_total", Help: "Outbound request attempts."},
		[]string{"service", "status"},
	)
	ExternalLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hoshizora", Name: "external_request_duration_seconds",
			Help:    "Outbound attempt duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service"},
	)
	ExternalExhausted = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "hoshizora", Name: "external_retries_exhausted_total", Help: "Logical requests that failed every attempt."},
		[]string{"service"},
	)
	QuotaEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "hoshizora", Name: "quota_events_total", Help: "Shared provider quota admissions."},
		[]string{"service", "event"}, // event: admit|reject|error
	)
	Aggregations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "hoshizora", Name: "aggregations_total", Help: "Aggregation calls by outcome."},
		[]string{"outcome"}, // outcome: clear|cloudy|error
	)
)

// Serve starts a standalone metrics listener on addr; empty addr disables it.
func Serve(addr string, reg *prometheus.Registry) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", MetricsHandler(reg))

	go func() {
		srv := &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		log.Info().Str("addr", addr).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

func InitRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(HTTPRequests, HTTPLatency, ExternalRequests, ExternalLatency,
		ExternalExhausted, QuotaEvents, Aggregations)
	return reg
}

func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func ObserveHTTP(route, method string, status int, dur time.Duration) {
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPLatency.WithLabelValues(route, method).Observe(dur.Seconds())
}

// ObserveExternal records one attempt; status 0 means no response (transport
// error or timeout).
func ObserveExternal(service string, status int, dur time.Duration) {
	ExternalRequests.WithLabelValues(service, strconv.Itoa(status)).Inc()
	ExternalLatency.WithLabelValues(service).Observe(dur.Seconds())
}

func ObserveExhausted(service string) { ExternalExhausted.WithLabelValues(service).Inc() }

func ObserveQuota(service, event string) { QuotaEvents.WithLabelValues(service, event).Inc() }

func ObserveAggregation(outcome string) { Aggregations.WithLabelValues(outcome).Inc() }
