// Package api exposes a running profiler over HTTP so a live orchestrator
// can push lifecycle events and fetch the report when the build ends.
package api

// If the profiler fails, the build MUST continue.
// If we are unsure, DO LESS.
// Observation only, never control.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/psantana5/buildtime-profiler/internal/profiler"
	"github.com/psantana5/buildtime-profiler/internal/report"
	"github.com/psantana5/buildtime-profiler/pkg/auth"
	"github.com/psantana5/buildtime-profiler/pkg/logging"
	"github.com/psantana5/buildtime-profiler/pkg/metrics"
	"github.com/psantana5/buildtime-profiler/pkg/models"
	"github.com/psantana5/buildtime-profiler/pkg/ratelimit"
	"github.com/psantana5/buildtime-profiler/pkg/tracing"
)

// MaxBatchSize bounds POST /events/batch
const MaxBatchSize = 10000

const maxBodyBytes = 16 << 20

// Janitor defaults: how often idle clients are swept and how long a client
// may stay quiet before its rate limit bucket is dropped.
const (
	DefaultSweepInterval = time.Minute
	DefaultClientIdle    = 10 * time.Minute
)

var (
	errRateLimited = errors.New("event rate limit exceeded")
	errFinished    = errors.New("build already finished")
)

// FinishFunc runs once after the first successful POST /finish
type FinishFunc func(ctx context.Context, result *report.Result)

// Options configures a Server. Tokens, Limiter and Tracer are optional.
type Options struct {
	Profiler     *profiler.Profiler
	IgnoreFields []string
	Registry     *prometheus.Registry
	Tokens       *auth.TokenManager
	Limiter      *ratelimit.Limiter
	Tracer       *tracing.Provider
	Logger       *logging.Logger
	OnFinish     FinishFunc
}

// Server handles the ingestion routes
type Server struct {
	profiler *profiler.Profiler
	ignore   []string
	registry *prometheus.Registry
	tokens   *auth.TokenManager
	limiter  *ratelimit.Limiter
	tracer   *tracing.Provider
	logger   *logging.Logger
	onFinish FinishFunc

	mu       sync.RWMutex
	finished bool
}

// NewServer creates the ingestion handler
func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.IgnoreFields == nil {
		opts.IgnoreFields = profiler.DefaultIgnoreFields
	}
	if opts.Tracer == nil {
		// disabled config: spans are created but never exported
		opts.Tracer, _ = tracing.InitTracer(context.Background(), tracing.Config{ServiceName: "btprof"}, opts.Logger)
	}
	return &Server{
		profiler: opts.Profiler,
		ignore:   opts.IgnoreFields,
		registry: opts.Registry,
		tokens:   opts.Tokens,
		limiter:  opts.Limiter,
		tracer:   opts.Tracer,
		logger:   opts.Logger.WithComponent("api"),
		onFinish: opts.OnFinish,
	}
}

// RegisterRoutes registers all ingestion routes
func (s *Server) RegisterRoutes(r *mux.Router) {
	if s.tokens != nil {
		r.Use(s.tokens.Middleware("/health"))
	}

	// Event ingestion
	r.HandleFunc("/events/batch", s.PostBatch).Methods("POST")
	r.HandleFunc("/events", s.PostEvent).Methods("POST")
	r.HandleFunc("/finish", s.PostFinish).Methods("POST")

	// Results
	r.HandleFunc("/report", s.GetReport).Methods("GET")
	r.HandleFunc("/document", s.GetDocument).Methods("GET")
	r.HandleFunc("/diagnostics", s.GetDiagnostics).Methods("GET")

	if s.registry != nil {
		r.Handle("/metrics", metrics.HTTPHandler(s.registry)).Methods("GET")
	}
	r.HandleFunc("/health", s.Health).Methods("GET")
}

// Router returns a fresh router with every route registered
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	s.RegisterRoutes(r)
	return r
}

// PostEvent handles POST /events
func (s *Server) PostEvent(w http.ResponseWriter, r *http.Request) {
	var event models.Event
	if err := decodeBody(w, r, &event); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_event", err.Error())
		return
	}
	s.ingest(w, r, []models.Event{event})
}

// PostBatch handles POST /events/batch. Events are applied in body order.
func (s *Server) PostBatch(w http.ResponseWriter, r *http.Request) {
	var events []models.Event
	if err := decodeBody(w, r, &events); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_batch", err.Error())
		return
	}
	if len(events) > MaxBatchSize {
		writeError(w, http.StatusRequestEntityTooLarge, "batch_too_large",
			fmt.Sprintf("batch of %d events exceeds %d", len(events), MaxBatchSize))
		return
	}
	s.ingest(w, r, events)
}

func (s *Server) ingest(w http.ResponseWriter, r *http.Request, events []models.Event) {
	ctx, span := s.tracer.StartSpan(r.Context(), "api.ingest", attribute.Int("events", len(events)))
	defer span.End()

	if len(events) == 0 {
		writeJSON(w, http.StatusAccepted, map[string]int{"accepted": 0})
		return
	}
	client := clientKey(r)
	if s.limiter != nil && len(events) > s.limiter.Burst() {
		// never admissible, retrying would not help
		writeError(w, http.StatusRequestEntityTooLarge, "batch_too_large",
			fmt.Sprintf("batch of %d events exceeds rate limit burst %d", len(events), s.limiter.Burst()))
		return
	}
	if s.limiter != nil && !s.limiter.AllowN(client, len(events)) {
		tracing.SetError(ctx, errRateLimited)
		s.logger.WithField("client", client).Debug("Batch rejected", map[string]interface{}{"events": len(events)})
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusTooManyRequests, "rate_limited", errRateLimited.Error())
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.finished {
		tracing.SetError(ctx, errFinished)
		writeError(w, http.StatusConflict, "finished", errFinished.Error())
		return
	}

	for _, e := range events {
		s.profiler.OnEvent(e)
	}
	writeJSON(w, http.StatusAccepted, map[string]int{"accepted": len(events)})
}

// PostFinish handles POST /finish. Later calls return the same result.
func (s *Server) PostFinish(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	first := !s.finished
	s.finished = true
	s.mu.Unlock()

	result := s.profiler.Finish()
	if first {
		s.logger.WithField("build_id", result.BuildID).Info("Build finished", map[string]interface{}{
			"client": auth.ClientFromContext(r.Context()),
		})
		if s.onFinish != nil {
			ctx, span := s.tracer.StartSpan(context.WithoutCancel(r.Context()), "api.finish",
				attribute.String("build_id", result.BuildID))
			s.onFinish(ctx, result)
			span.End()
		}
	}
	writeJSON(w, http.StatusOK, result)
}

// GetReport handles GET /report
func (s *Server) GetReport(w http.ResponseWriter, r *http.Request) {
	if !s.requireFinished(w) {
		return
	}
	text, err := s.profiler.Report()
	if err != nil {
		s.logger.Warn("Report incomplete", map[string]interface{}{"error": err.Error()})
		w.Header().Set("X-Report-Incomplete", "true")
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(text))
}

// GetDocument handles GET /document. ?prune=true drops the ignore fields.
func (s *Server) GetDocument(w http.ResponseWriter, r *http.Request) {
	if !s.requireFinished(w) {
		return
	}
	doc, err := s.profiler.Document()
	if err != nil {
		s.logger.Warn("Document incomplete", map[string]interface{}{"error": err.Error()})
		w.Header().Set("X-Report-Incomplete", "true")
	}
	if prune, _ := strconv.ParseBool(r.URL.Query().Get("prune")); prune {
		doc = doc.Clone().Prune(s.ignore...)
	}
	writeJSON(w, http.StatusOK, doc)
}

// GetDiagnostics handles GET /diagnostics?limit=N
func (s *Server) GetDiagnostics(w http.ResponseWriter, r *http.Request) {
	limit := report.DefaultDiagnosticsSize
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	diags := s.profiler.Diagnostics()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"counters": s.profiler.Counters().Snapshot(),
		"total":    diags.Total(),
		"recent":   diags.GetRecent(limit),
	})
}

// Health handles GET /health
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	finished := s.finished
	s.mu.RUnlock()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "healthy",
		"finished": finished,
	})
}

// Sweep drops rate limit buckets idle for longer than maxIdle and tokens
// past their expiry. It returns how many of each were removed.
func (s *Server) Sweep(maxIdle time.Duration) (clients, tokens int) {
	if s.limiter != nil {
		clients = s.limiter.CleanupOldLimiters(maxIdle)
	}
	if s.tokens != nil {
		tokens = s.tokens.CleanupExpiredTokens()
	}
	if clients > 0 || tokens > 0 {
		s.logger.Debug("Swept idle clients", map[string]interface{}{
			"clients": clients,
			"tokens":  tokens,
		})
	}
	return clients, tokens
}

// RunJanitor sweeps every interval until ctx is done
func (s *Server) RunJanitor(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(maxIdle)
		}
	}
}

func (s *Server) requireFinished(w http.ResponseWriter) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.finished {
		writeError(w, http.StatusConflict, "not_finished", "POST /finish first")
		return false
	}
	return true
}

func clientKey(r *http.Request) string {
	if id := auth.ClientFromContext(r.Context()); id != "" {
		return id
	}
	return ratelimit.IPKeyFunc(r)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": code, "message": message})
}
