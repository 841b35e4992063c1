// Package status serves health, Prometheus metrics, a snapshot of the HAL
// capabilities and, in sim mode, the simulated pins over HTTP.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"superkit-go/bus"
	"superkit-go/services/hal"
	"superkit-go/types"
)

const shutdownTimeout = 2 * time.Second

// SimPins is the simulator surface the pin endpoints need.
type SimPins interface {
	Pins() []hal.PinState
	Pin(n int) (hal.PinState, error)
	Drive(n int, level bool) error
}

type Options struct {
	Addr       string
	RatePerMin int     // per client IP; 0 disables limiting
	Sim        SimPins // nil outside sim mode
	Logger     zerolog.Logger
}

type Server struct {
	conn *bus.Connection
	opt  Options
	log  zerolog.Logger

	mu    sync.RWMutex
	caps  map[string]any // retained hal/cap/# payloads by topic
	state types.HALState
}

func New(conn *bus.Connection, opt Options) *Server {
	return &Server{conn: conn, opt: opt, log: opt.Logger, caps: map[string]any{}}
}

// Run listens on Options.Addr and serves until ctx ends.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opt.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx ends, mirroring retained HAL state from the
// bus meanwhile. A clean shutdown returns nil.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.mirror(gctx)
		return nil
	})
	g.Go(func() error {
		s.log.Info().Str("addr", ln.Addr().String()).Msg("status server listening")
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}

// mirror keeps the latest retained capability and HAL state payloads.
func (s *Server) mirror(ctx context.Context) {
	caps := s.conn.Subscribe(hal.TopicCapsAll())
	defer caps.Unsubscribe()
	state := s.conn.Subscribe(hal.TopicState())
	defer state.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case m := <-caps.Channel():
			if !m.Retained {
				continue
			}
			k := m.Topic.String()
			s.mu.Lock()
			if m.Payload == nil {
				delete(s.caps, k)
			} else {
				s.caps[k] = m.Payload
			}
			s.mu.Unlock()
		case m := <-state.Channel():
			if st, ok := m.Payload.(types.HALState); ok {
				s.mu.Lock()
				s.state = st
				s.mu.Unlock()
			}
		}
	}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	if s.opt.RatePerMin > 0 {
		r.Use(httprate.LimitByIP(s.opt.RatePerMin, time.Minute))
	}

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/caps", s.handleCaps)
		r.Route("/sim/pins", func(r chi.Router) {
			r.Use(s.requireSim)
			r.Get("/", s.handlePins)
			r.Get("/{pin}", s.handlePin)
			r.Put("/{pin}", s.handleDrive)
		})
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Str("req_id", middleware.GetReqID(r.Context())).
			Msg("http")
	})
}

func (s *Server) requireSim(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opt.Sim == nil {
			writeError(w, http.StatusNotFound, "not running in sim mode")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type healthResponse struct {
	Status string `json:"status"`
	HAL    string `json:"hal"`
}

// handleHealth is 200 once the HAL reports ready, 503 before and after.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	level := s.state.Level
	s.mu.RUnlock()
	if level == "" {
		level = "unknown"
	}
	if level != "ready" {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable", HAL: level})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", HAL: level})
}

type capsResponse struct {
	HAL  types.HALState `json:"hal"`
	Caps map[string]any `json:"caps"`
}

func (s *Server) handleCaps(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	resp := capsResponse{HAL: s.state, Caps: make(map[string]any, len(s.caps))}
	for k, v := range s.caps {
		resp.Caps[k] = v
	}
	s.mu.RUnlock()
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePins(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.opt.Sim.Pins())
}

func (s *Server) handlePin(w http.ResponseWriter, r *http.Request) {
	n, ok := pinParam(w, r)
	if !ok {
		return
	}
	st, err := s.opt.Sim.Pin(n)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type driveRequest struct {
	Level *bool `json:"level"`
}

// handleDrive sets a simulated input level, e.g. to press a button.
func (s *Server) handleDrive(w http.ResponseWriter, r *http.Request) {
	n, ok := pinParam(w, r)
	if !ok {
		return
	}
	var req driveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Level == nil {
		writeError(w, http.StatusBadRequest, `body must be {"level": true|false}`)
		return
	}
	if err := s.opt.Sim.Drive(n, *req.Level); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.log.Info().Int("pin", n).Bool("level", *req.Level).Msg("sim pin driven")
	st, err := s.opt.Sim.Pin(n)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func pinParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	n, err := strconv.Atoi(chi.URLParam(r, "pin"))
	if err != nil || n < 0 {
		writeError(w, http.StatusBadRequest, "pin must be a BCM number")
		return 0, false
	}
	return n, true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
