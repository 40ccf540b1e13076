// Package ingest implements ports.SignalSource over an inbound HTTP
// endpoint, following the go-chi router idiom used elsewhere in the
// retrieved corpus for control-plane HTTP surfaces. The upstream scanner
// process POSTs one `signal:enter` event per request; this adapter decodes
// it, normalizes it into a domain.Signal, and buffers it on a channel for
// the Bridge's Run loop to drain one at a time.
package ingest

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/alejandrodnm/polysignal/internal/domain"
)

// Server receives upstream signal:enter events over HTTP and exposes them
// through ports.SignalSource.
type Server struct {
	router *chi.Mux
	queue  chan domain.Signal
}

// NewServer creates a Server with a bounded backlog; a full backlog sheds
// the oldest queued signal rather than blocking the HTTP handler, since a
// stale admission decision is worse than a dropped one.
func NewServer(backlog int) *Server {
	if backlog <= 0 {
		backlog = 256
	}
	s := &Server{queue: make(chan domain.Signal, backlog)}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Second))
	r.Post("/signals", s.handleSignal)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	s.router = r

	return s
}

// Handler returns the http.Handler to mount on a listener.
func (s *Server) Handler() http.Handler { return s.router }

// Next implements ports.SignalSource, blocking until a signal arrives or
// ctx is cancelled.
func (s *Server) Next(ctx context.Context) (domain.Signal, error) {
	select {
	case <-ctx.Done():
		return domain.Signal{}, ctx.Err()
	case sig := <-s.queue:
		return sig, nil
	}
}

func (s *Server) handleSignal(w http.ResponseWriter, r *http.Request) {
	var wire wireSignal
	if err := json.NewDecoder(r.Body).Decode(&wire); err != nil {
		http.Error(w, "invalid signal payload", http.StatusBadRequest)
		return
	}

	sig := wire.toDomain()
	select {
	case s.queue <- sig:
	default:
		select {
		case <-s.queue:
		default:
		}
		select {
		case s.queue <- sig:
		default:
			slog.Warn("ingest: dropped signal, queue full", "signal_id", sig.SignalID, "market_id", sig.MarketID)
		}
	}

	w.WriteHeader(http.StatusAccepted)
}
