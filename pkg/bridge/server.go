// Package bridge exposes the light to host collaborators. Smart-home
// frameworks integrate by calling the small HTTP API (or the MQTT topics)
// instead of linking against the client directly.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"isg-light-terminal/pkg/core"
	"isg-light-terminal/pkg/isg"
)

// Server serves the light over a small JSON API.
type Server struct {
	addr      string
	client    *isg.Client
	publisher *Publisher

	mu       sync.Mutex
	listener net.Listener
	httpSrv  *http.Server
	running  bool
}

type lightState struct {
	On bool `json:"on"`
}

type apiError struct {
	Error string `json:"error"`
}

func NewServer(addr string, client *isg.Client) *Server {
	return &Server{
		addr:   addr,
		client: client,
	}
}

// SetPublisher attaches an optional MQTT publisher that mirrors commanded
// state changes. Must be called before Start.
func (s *Server) SetPublisher(p *Publisher) {
	s.publisher = p
}

func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("bridge is already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/light", s.handleLight)
	mux.HandleFunc("/api/identify", s.handleIdentify)
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/log", s.handleLog)

	s.listener = listener
	s.httpSrv = &http.Server{Handler: mux}
	s.running = true

	core.Logger.Info().Str("addr", listener.Addr().String()).Msg("Bridge started")

	go func() {
		if err := s.httpSrv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			core.Logger.Error().Err(err).Msg("Bridge server stopped unexpectedly")
		}
	}()

	return nil
}

func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return errors.New("bridge is not running")
	}

	core.Logger.Info().Msg("Stopping bridge...")
	s.running = false

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if s.publisher != nil {
		s.publisher.Stop()
	}

	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Addr returns the bound address, useful when the configured port is 0.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

func (s *Server) handleLight(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, lightState{On: s.client.On()})

	case http.MethodPut, http.MethodPost:
		var req lightState
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid body, expected {\"on\":bool}"})
			return
		}

		if err := s.client.SetOn(r.Context(), req.On); err != nil {
			core.Logger.Error().Err(err).Bool("on", req.On).Msg("Light command failed")
			writeJSON(w, http.StatusBadGateway, apiError{Error: err.Error()})
			return
		}

		if s.publisher != nil {
			s.publisher.PublishState(req.On)
		}
		writeJSON(w, http.StatusOK, lightState{On: s.client.On()})

	default:
		w.Header().Set("Allow", "GET, PUT, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleIdentify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	s.client.Identify()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "light": s.client.Name()})
}

func (s *Server) handleLog(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if _, err := core.MemoryLog.WriteTo(w); err != nil {
		core.Logger.Debug().Err(err).Msg("Failed to stream memory log")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		core.Logger.Debug().Err(err).Msg("Failed to encode response")
	}
}
