package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/example/go-textsim/internal/config"
	"github.com/example/go-textsim/internal/similarity"
	"github.com/example/go-textsim/internal/tokenizer"
)

// ParseLogLevel converts a case-insensitive level string to slog.Level.
// An empty string returns slog.LevelInfo. Unknown strings return an error.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (want debug|info|warn|error)", s)
	}
}

// Scorer compares two texts.
type Scorer interface {
	ScoreDetailed(ctx context.Context, textA, textB string) (similarity.Result, error)
	Available() bool
}

// Encoder turns one text into model inputs.
type Encoder interface {
	Encode(text string) tokenizer.Encoding
}

// WidgetComparer compares widget attributes.
type WidgetComparer interface {
	Compare(ctx context.Context, a, b similarity.Attributes) similarity.AttributeResult
}

// ---------------------------------------------------------------------------
// Functional options
// ---------------------------------------------------------------------------

type options struct {
	maxTextBytes   int
	maxIconBytes   int
	workers        int
	requestTimeout time.Duration
	logger         *slog.Logger
}

func defaultOptions() options {
	return options{
		maxTextBytes:   4096,
		maxIconBytes:   1 << 20,
		workers:        2,
		requestTimeout: 60 * time.Second,
		logger:         slog.Default(),
	}
}

// Option configures the HTTP handler.
type Option func(*options)

// WithMaxTextBytes sets the maximum allowed length in bytes of each text field.
func WithMaxTextBytes(n int) Option {
	return func(o *options) { o.maxTextBytes = n }
}

// WithMaxIconBytes sets the maximum allowed length of each base64 icon.
func WithMaxIconBytes(n int) Option {
	return func(o *options) { o.maxIconBytes = n }
}

// WithWorkers sets the maximum number of concurrent model comparisons.
// Zero or less disables throttling.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithRequestTimeout sets the per-request comparison deadline.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) { o.requestTimeout = d }
}

// WithLogger sets the slog.Logger used for request logging.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// ---------------------------------------------------------------------------
// handler
// ---------------------------------------------------------------------------

type handler struct {
	scorer  Scorer
	encoder Encoder
	widgets WidgetComparer
	opts    options
	sem     chan struct{} // semaphore for worker pool
	flight  singleflight.Group
	log     *slog.Logger
}

// NewHandler returns an http.Handler that serves /health, POST /similarity,
// POST /tokenize and POST /widgets/similarity. widgets may be nil, in which
// case the widget endpoint answers 503.
func NewHandler(scorer Scorer, encoder Encoder, widgets WidgetComparer, optFns ...Option) http.Handler {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	h := &handler{
		scorer:  scorer,
		encoder: encoder,
		widgets: widgets,
		opts:    opts,
		log:     opts.logger,
	}
	if opts.workers > 0 {
		h.sem = make(chan struct{}, opts.workers)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/similarity", h.handleSimilarity)
	mux.HandleFunc("/tokenize", h.handleTokenize)
	mux.HandleFunc("/widgets/similarity", h.handleWidgets)
	return mux
}

func buildVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func (h *handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	model := "unavailable"
	if h.scorer.Available() {
		model = "loaded"
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": buildVersion(),
		"model":   model,
	})
}

type similarityRequest struct {
	TextA string `json:"text_a"`
	TextB string `json:"text_b"`
}

type similarityResponse struct {
	Score       float64 `json:"score"`
	SequenceLen int     `json:"sequence_len,omitempty"`
	Dimension   int     `json:"dimension,omitempty"`
	DurationMS  int64   `json:"duration_ms"`
	Reason      string  `json:"reason,omitempty"`
	Error       string  `json:"error,omitempty"`
}

// handleSimilarity always answers with a score: comparison failures yield
// 0.0 plus the failure reason, and only timeouts are reported as errors.
func (h *handler) handleSimilarity(w http.ResponseWriter, r *http.Request) {
	var req similarityRequest
	if !h.decodePost(w, r, &req) {
		return
	}

	if !h.checkTextSize(w, req.TextA, req.TextB) {
		return
	}

	release, ok := h.acquire(w, r)
	if !ok {
		return
	}
	defer release()

	key := strconv.Itoa(len(req.TextA)) + ":" + req.TextA + req.TextB

	// Identical in-flight comparisons share one model run. The shared run is
	// detached from any single caller's cancellation but keeps the timeout.
	v, _, shared := h.flight.Do(key, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), h.opts.requestTimeout)
		defer cancel()

		res, err := h.scorer.ScoreDetailed(ctx, req.TextA, req.TextB)

		return scoreOutcome{res: res, err: err}, nil
	})
	out := v.(scoreOutcome)

	resp := similarityResponse{
		Score:       out.res.Score,
		SequenceLen: out.res.SequenceLen,
		Dimension:   out.res.Dimension,
		DurationMS:  out.res.Duration.Milliseconds(),
	}

	attrs := []slog.Attr{
		slog.Int("text_a_len", len(req.TextA)),
		slog.Int("text_b_len", len(req.TextB)),
		slog.Int64("duration_ms", resp.DurationMS),
		slog.Bool("shared", shared),
	}

	if out.err != nil {
		resp.Reason = similarity.FailureReason(out.err)
		resp.Error = out.err.Error()
		attrs = append(attrs, slog.String("reason", resp.Reason), slog.String("error", resp.Error))

		if isTimeout(out.err) {
			h.log.LogAttrs(r.Context(), slog.LevelWarn, "similarity timed out", attrs...)
			writeError(w, http.StatusGatewayTimeout, "similarity timed out")
			return
		}
	}

	attrs = append(attrs, slog.Float64("score", resp.Score))
	h.log.LogAttrs(r.Context(), slog.LevelInfo, "similarity complete", attrs...)

	writeJSON(w, http.StatusOK, resp)
}

type scoreOutcome struct {
	res similarity.Result
	err error
}

type tokenizeRequest struct {
	Text string `json:"text"`
}

type tokenizeResponse struct {
	Tokens []string `json:"tokens"`
	IDs    []int64  `json:"ids"`
	Mask   []int64  `json:"mask"`
}

func (h *handler) handleTokenize(w http.ResponseWriter, r *http.Request) {
	var req tokenizeRequest
	if !h.decodePost(w, r, &req) {
		return
	}

	if !h.checkTextSize(w, req.Text) {
		return
	}

	enc := h.encoder.Encode(req.Text)

	writeJSON(w, http.StatusOK, tokenizeResponse{Tokens: enc.Tokens, IDs: enc.IDs, Mask: enc.Mask})
}

type widgetRequest struct {
	A similarity.Attributes `json:"a"`
	B similarity.Attributes `json:"b"`
}

func (h *handler) handleWidgets(w http.ResponseWriter, r *http.Request) {
	if h.widgets == nil {
		writeError(w, http.StatusServiceUnavailable, "widget comparison is not configured")
		return
	}

	var req widgetRequest
	if !h.decodePost(w, r, &req) {
		return
	}

	if !h.checkTextSize(w, req.A.Text, req.B.Text, req.A.ActivityName, req.B.ActivityName, req.A.ResourceID, req.B.ResourceID) {
		return
	}

	for _, icon := range []string{req.A.IconBase64, req.B.IconBase64} {
		if len(icon) > h.opts.maxIconBytes {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("icon exceeds maximum size of %d bytes", h.opts.maxIconBytes))
			return
		}
	}

	release, ok := h.acquire(w, r)
	if !ok {
		return
	}
	defer release()

	ctx, cancel := context.WithTimeout(r.Context(), h.opts.requestTimeout)
	defer cancel()

	start := time.Now()
	res := h.widgets.Compare(ctx, req.A, req.B)

	h.log.InfoContext(r.Context(), "widget similarity complete",
		slog.Float64("score", res.Score),
		slog.Bool("icons", res.Weights == similarity.WeightsWithIcon),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)

	writeJSON(w, http.StatusOK, res)
}

// decodePost enforces POST with a JSON body. It writes the error response and
// returns false on failure.
func (h *handler) decodePost(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}

	if r.Body == nil || r.Body == http.NoBody {
		writeError(w, http.StatusBadRequest, "request body is required")
		return false
	}

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return false
	}

	return true
}

func (h *handler) checkTextSize(w http.ResponseWriter, texts ...string) bool {
	for _, text := range texts {
		if len(text) > h.opts.maxTextBytes {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("text exceeds maximum size of %d bytes", h.opts.maxTextBytes))
			return false
		}
	}

	return true
}

// acquire takes a worker slot, honouring request cancellation while waiting.
func (h *handler) acquire(w http.ResponseWriter, r *http.Request) (func(), bool) {
	if h.sem == nil {
		return func() {}, true
	}

	select {
	case h.sem <- struct{}{}:
		return func() { <-h.sem }, true
	case <-r.Context().Done():
		writeError(w, http.StatusServiceUnavailable, "request cancelled while waiting for worker")
		return nil, false
	}
}

func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// ---------------------------------------------------------------------------
// Server
// ---------------------------------------------------------------------------

// Server wires the HTTP handler into a net/http.Server with graceful shutdown.
type Server struct {
	cfg             config.Config
	scorer          Scorer
	encoder         Encoder
	widgets         WidgetComparer
	logger          *slog.Logger
	shutdownTimeout time.Duration
}

// New builds a server from cfg. widgets may be nil.
func New(cfg config.Config, scorer Scorer, encoder Encoder, widgets WidgetComparer) *Server {
	timeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Server{
		cfg:             cfg,
		scorer:          scorer,
		encoder:         encoder,
		widgets:         widgets,
		logger:          slog.Default(),
		shutdownTimeout: timeout,
	}
}

// WithShutdownTimeout overrides the graceful-shutdown drain period.
func (s *Server) WithShutdownTimeout(d time.Duration) *Server {
	s.shutdownTimeout = d
	return s
}

// WithLogger overrides the request logger.
func (s *Server) WithLogger(l *slog.Logger) *Server {
	if l != nil {
		s.logger = l
	}
	return s
}

// Handler builds the HTTP handler from the server configuration.
func (s *Server) Handler() http.Handler {
	return NewHandler(s.scorer, s.encoder, s.widgets,
		WithWorkers(s.cfg.Server.Workers),
		WithMaxTextBytes(s.cfg.Server.MaxTextBytes),
		WithRequestTimeout(time.Duration(s.cfg.Server.RequestTimeout)*time.Second),
		WithLogger(s.logger),
	)
}

// Start serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Start(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.cfg.Server.ListenAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	s.logger.Info("http server listening",
		slog.String("addr", s.cfg.Server.ListenAddr),
		slog.Bool("model_loaded", s.scorer.Available()),
	)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http listen: %w", err)
	}
}

// ProbeHTTP checks that a server answers GET /health with 200.
func ProbeHTTP(ctx context.Context, addr string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+addr+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected health status: %s", resp.Status)
	}
	return nil
}
