// Package api exposes the HTTP command surface: channel commands come in,
// get handed to the per-light handlers, and the result is reported back.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mlutz/deconzd/internal/light"
)

// ErrUnknownLight is returned by a CommandSink for an unconfigured light id.
var ErrUnknownLight = errors.New("unknown light")

// CommandSink accepts channel commands for dispatch.
type CommandSink interface {
	HandleCommand(ctx context.Context, lightID string, channel light.ChannelKind, cmd light.Command) error
}

// Server is an HTTP server that receives channel commands.
type Server struct {
	addr       string
	sink       CommandSink
	httpServer *http.Server
}

// NewServer creates a new command API server.
func NewServer(host string, port int, sink CommandSink) *Server {
	return &Server{
		addr: fmt.Sprintf("%s:%d", host, port),
		sink: sink,
	}
}

// Run starts the command API server. It blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /lights/{id}/{channel}", s.handleCommand)

	s.httpServer = &http.Server{
		Addr:    s.addr,
		Handler: mux,
	}

	log.Info().Str("addr", s.addr).Msg("Starting command API server")

	// Handle graceful shutdown
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Command API server shutdown error")
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	lightID := r.PathValue("id")

	channel, err := light.ParseChannelKind(r.PathValue("channel"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	cmd, err := ParseCommand(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	log.Debug().
		Str("light", lightID).
		Stringer("channel", channel).
		Msg("Received channel command")

	if err := s.sink.HandleCommand(r.Context(), lightID, channel, cmd); err != nil {
		if errors.Is(err, ErrUnknownLight) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
