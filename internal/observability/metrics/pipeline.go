package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PipelineMetrics records per-stage and whole-pipeline telemetry for the
// search service. It implements usecase.StageObserver.
type PipelineMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	stageDuration   *prometheus.HistogramVec
	stageKept       *prometheus.HistogramVec
	pipelineTotal   *prometheus.CounterVec
	pipelineSeconds *prometheus.HistogramVec
	rerankFallbacks prometheus.Counter
	modelFailures   *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
}

func NewPipelineMetrics(service string) *PipelineMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docqa",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docqa",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "docqa",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docqa",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each retrieval stage in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "stage"},
	)
	stageKept := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docqa",
			Subsystem: "pipeline",
			Name:      "stage_kept_candidates",
			Help:      "Candidates surviving each retrieval stage.",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100},
		},
		[]string{"service", "stage"},
	)
	pipelineTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docqa",
			Subsystem: "pipeline",
			Name:      "searches_total",
			Help:      "Total search requests by outcome.",
		},
		[]string{"service", "status"},
	)
	pipelineSeconds := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docqa",
			Subsystem: "pipeline",
			Name:      "search_duration_seconds",
			Help:      "End-to-end search duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)
	rerankFallbacks := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "docqa",
			Subsystem: "pipeline",
			Name:      "rerank_fallbacks_total",
			Help:      "Searches that fell back to vector order after a rerank failure.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	modelFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docqa",
			Subsystem: "embedding",
			Name:      "model_failures_total",
			Help:      "Embedding model calls that failed or timed out.",
		},
		[]string{"service", "model"},
	)
	cacheLookups := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docqa",
			Subsystem: "embedding",
			Name:      "cache_lookups_total",
			Help:      "Embedding cache lookups by result.",
		},
		[]string{"service", "result"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		stageDuration,
		stageKept,
		pipelineTotal,
		pipelineSeconds,
		rerankFallbacks,
		modelFailures,
		cacheLookups,
	)

	return &PipelineMetrics{
		registry:        registry,
		requestTotal:    requestTotal,
		requestDuration: requestDuration,
		requestInFlight: requestInFlight,
		stageDuration:   stageDuration,
		stageKept:       stageKept,
		pipelineTotal:   pipelineTotal,
		pipelineSeconds: pipelineSeconds,
		rerankFallbacks: rerankFallbacks,
		modelFailures:   modelFailures,
		cacheLookups:    cacheLookups,
	}
}

func (m *PipelineMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *PipelineMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			r.URL.Path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

// ServiceObserver binds the metrics to a service label so the pipeline can
// report without knowing its own deployment name. It implements
// usecase.StageObserver.
type ServiceObserver struct {
	m       *PipelineMetrics
	service string
}

func (m *PipelineMetrics) Observer(service string) *ServiceObserver {
	return &ServiceObserver{m: m, service: service}
}

func (o *ServiceObserver) ObserveStage(stage string, duration time.Duration, kept int) {
	o.m.stageDuration.WithLabelValues(o.service, stage).Observe(duration.Seconds())
	o.m.stageKept.WithLabelValues(o.service, stage).Observe(float64(kept))
}

func (o *ServiceObserver) ObservePipeline(duration time.Duration, status string) {
	if status == "" {
		status = "unknown"
	}
	o.m.pipelineTotal.WithLabelValues(o.service, status).Inc()
	o.m.pipelineSeconds.WithLabelValues(o.service).Observe(duration.Seconds())
}

func (o *ServiceObserver) RerankFallback() {
	o.m.rerankFallbacks.Inc()
}

func (o *ServiceObserver) ModelFailure(modelID string) {
	if modelID == "" {
		modelID = "unknown"
	}
	o.m.modelFailures.WithLabelValues(o.service, modelID).Inc()
}

func (o *ServiceObserver) CacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	o.m.cacheLookups.WithLabelValues(o.service, result).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
