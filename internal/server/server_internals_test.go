package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/go-textsim/internal/config"
	"github.com/example/go-textsim/internal/similarity"
)

// offlineScorer is a Scorer with no model attached.
type offlineScorer struct{}

func (offlineScorer) ScoreDetailed(context.Context, string, string) (similarity.Result, error) {
	return similarity.Result{}, similarity.ErrModelUnavailable
}

func (offlineScorer) Available() bool { return false }

// --- New & WithShutdownTimeout ---

func TestNew_ShutdownTimeoutFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.ShutdownTimeout = 12

	s := New(cfg, offlineScorer{}, nil, nil)
	if s == nil {
		t.Fatal("New() returned nil")
	}

	if s.shutdownTimeout != 12*time.Second {
		t.Errorf("shutdownTimeout = %v; want 12s", s.shutdownTimeout)
	}
}

func TestNew_DefaultShutdownTimeout(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.ShutdownTimeout = 0

	if s := New(cfg, offlineScorer{}, nil, nil); s.shutdownTimeout != 30*time.Second {
		t.Errorf("shutdownTimeout = %v; want 30s", s.shutdownTimeout)
	}
}

func TestWithShutdownTimeout_Chaining(t *testing.T) {
	s := New(config.DefaultConfig(), offlineScorer{}, nil, nil)

	returned := s.WithShutdownTimeout(10 * time.Second)
	// Must return the same *Server for chaining.
	if returned != s {
		t.Error("WithShutdownTimeout should return the same *Server")
	}

	if s.shutdownTimeout != 10*time.Second {
		t.Errorf("shutdownTimeout = %v; want 10s", s.shutdownTimeout)
	}
}

func TestWithLogger_IgnoresNil(t *testing.T) {
	s := New(config.DefaultConfig(), offlineScorer{}, nil, nil)
	before := s.logger

	if s.WithLogger(nil).logger != before {
		t.Error("WithLogger(nil) replaced the logger")
	}
}

// --- ProbeHTTP ---

func TestProbeHTTP_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	// ProbeHTTP uses "http://" prefix + addr, so strip the scheme.
	addr := srv.Listener.Addr().String()

	if err := ProbeHTTP(context.Background(), addr); err != nil {
		t.Errorf("ProbeHTTP(%q) = %v; want nil", addr, err)
	}
}

func TestProbeHTTP_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if err := ProbeHTTP(context.Background(), srv.Listener.Addr().String()); err == nil {
		t.Error("ProbeHTTP() = nil; want error for non-200 response")
	}
}

func TestProbeHTTP_ConnectionRefused(t *testing.T) {
	if err := ProbeHTTP(context.Background(), "127.0.0.1:1"); err == nil {
		t.Error("ProbeHTTP() = nil; want error for unreachable host")
	}
}

// --- Start: listen failure ---

func TestStart_InvalidListenAddr(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.ListenAddr = "256.0.0.1:bogus"

	err := New(cfg, offlineScorer{}, nil, nil).Start(context.Background())
	if err == nil {
		t.Fatal("Start() = nil; want listen error")
	}

	if errors.Is(err, http.ErrServerClosed) {
		t.Errorf("unexpected ErrServerClosed: %v", err)
	}
}

// --- Functional options ---

func TestOptions_Defaults(t *testing.T) {
	opts := defaultOptions()

	if opts.maxTextBytes != 4096 || opts.workers != 2 || opts.requestTimeout != 60*time.Second {
		t.Errorf("unexpected defaults: %+v", opts)
	}

	if opts.maxIconBytes != 1<<20 {
		t.Errorf("maxIconBytes = %d; want 1MiB", opts.maxIconBytes)
	}
}

func TestOptions_WithMaxTextBytes(t *testing.T) {
	opts := defaultOptions()
	WithMaxTextBytes(1024)(&opts)

	if opts.maxTextBytes != 1024 {
		t.Errorf("maxTextBytes = %d; want 1024", opts.maxTextBytes)
	}
}

func TestOptions_WithWorkers(t *testing.T) {
	opts := defaultOptions()
	WithWorkers(8)(&opts)

	if opts.workers != 8 {
		t.Errorf("workers = %d; want 8", opts.workers)
	}
}

func TestOptions_WithRequestTimeout(t *testing.T) {
	opts := defaultOptions()
	WithRequestTimeout(90 * time.Second)(&opts)

	if opts.requestTimeout != 90*time.Second {
		t.Errorf("requestTimeout = %v; want 90s", opts.requestTimeout)
	}
}

func TestNewHandler_ZeroWorkersDisablesThrottling(t *testing.T) {
	h := NewHandler(offlineScorer{}, nil, nil, WithWorkers(0))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/similarity",
		stringsReader(`{"text_a":"a","text_b":"b"}`))
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
}
