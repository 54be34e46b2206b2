// Package metrics exposes Prometheus counters for a crawl run.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"tweetcrawl/pkg/logger"
)

// Decision labels for ItemsTotal
const (
	DecisionPersisted    = "persisted"
	DecisionSkippedNewer = "skipped_newer"
	DecisionUndated      = "undated"
	DecisionUnreadable   = "skipped_unreadable"
	DecisionBoundary     = "boundary"
)

// Recorder holds the counters of one process. A nil *Recorder is valid and
// records nothing.
type Recorder struct {
	registry *prometheus.Registry

	ItemsTotal         *prometheus.CounterVec
	Timeouts           prometheus.Counter
	ReloadWorkarounds  prometheus.Counter
	ExtractionFailures prometheus.Counter
	ExtractDuration    prometheus.Histogram
	EmbeddingsTotal    *prometheus.CounterVec
}

// New registers the crawl metrics on a fresh registry
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		ItemsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tweetcrawl_items_total",
				Help: "Timeline items handled, by window decision.",
			},
			[]string{"decision"},
		),
		Timeouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "tweetcrawl_wait_timeouts_total",
			Help: "Waits for the front item that timed out.",
		}),
		ReloadWorkarounds: factory.NewCounter(prometheus.CounterOpts{
			Name: "tweetcrawl_reload_workarounds_total",
			Help: "Tab switches made to clear the reload banner.",
		}),
		ExtractionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "tweetcrawl_extraction_failures_total",
			Help: "Front items that could not be extracted.",
		}),
		ExtractDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "tweetcrawl_extract_duration_seconds",
			Help:    "Time from front item capture to extracted record.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
		EmbeddingsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tweetcrawl_embeddings_total",
				Help: "Embeddings computed or loaded from cache, by source.",
			},
			[]string{"source"},
		),
	}
}

// Item counts one window decision
func (r *Recorder) Item(decision string) {
	if r == nil {
		return
	}
	r.ItemsTotal.WithLabelValues(decision).Inc()
}

// Timeout counts one timed-out wait
func (r *Recorder) Timeout() {
	if r == nil {
		return
	}
	r.Timeouts.Inc()
}

// Reload counts one tab-switch workaround
func (r *Recorder) Reload() {
	if r == nil {
		return
	}
	r.ReloadWorkarounds.Inc()
}

// ExtractionFailure counts one failed extraction attempt
func (r *Recorder) ExtractionFailure() {
	if r == nil {
		return
	}
	r.ExtractionFailures.Inc()
}

// ObserveExtract records how long an extraction took
func (r *Recorder) ObserveExtract(d time.Duration) {
	if r == nil {
		return
	}
	r.ExtractDuration.Observe(d.Seconds())
}

// Embeddings counts n embeddings from source ("cache" or "model")
func (r *Recorder) Embeddings(source string, n int) {
	if r == nil {
		return
	}
	r.EmbeddingsTotal.WithLabelValues(source).Add(float64(n))
}

// Handler serves the registry in the Prometheus text format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Router serves /metrics and a /healthz probe
func (r *Recorder) Router() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(30 * time.Second))

	router.Method(http.MethodGet, "/metrics", r.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})
	return router
}

// Serve exposes Router on addr until ctx is done
func (r *Recorder) Serve(ctx context.Context, addr string, log logger.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           r.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).Info("Metrics listener started")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		log.Debug("Metrics listener stopped")
		return nil
	}
}
