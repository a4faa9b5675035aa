// Package api exposes the simulation control surface over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/neg-0/overwatch-sub002/internal/alloc"
	"github.com/neg-0/overwatch-sub002/internal/logging"
	"github.com/neg-0/overwatch-sub002/internal/observability"
	"github.com/neg-0/overwatch-sub002/internal/scenario"
	"github.com/neg-0/overwatch-sub002/model"
	"github.com/neg-0/overwatch-sub002/simclock"
)

// ClockController is the slice of the simulation clock the API drives.
type ClockController interface {
	Start(ctx context.Context, scenarioID string, compressionRatio float64) (*model.SimulationRun, error)
	Pause(ctx context.Context) *model.SimulationRun
	Resume(ctx context.Context) (*model.SimulationRun, error)
	Stop(ctx context.Context) *model.SimulationRun
	Seek(ctx context.Context, instant time.Time) (*model.SimulationRun, error)
	SetSpeed(ctx context.Context, compressionRatio float64) (*model.SimulationRun, error)
	State() *model.SimulationRun
	Positions() map[string]model.Position
}

// AllocationRunner runs the space allocator for one scenario day.
type AllocationRunner interface {
	Allocate(ctx context.Context, scenarioID string, dayNumber int) (*alloc.Report, error)
}

// ScenarioSeeder seeds a scenario from a YAML document.
type ScenarioSeeder interface {
	Load(ctx context.Context, r io.Reader) (*scenario.Summary, error)
}

// AllocationReader serves persisted allocations.
type AllocationReader interface {
	AllocationsByScenarioDay(ctx context.Context, scenarioID string, dayNumber int) ([]*model.SpaceAllocation, error)
}

// Server bundles the HTTP handlers of the control surface.
type Server struct {
	clock     ClockController
	allocator AllocationRunner
	seeder    ScenarioSeeder
	reader    AllocationReader
	collector *observability.APICollector
	log       logging.Logger
}

// NewServer constructs the control surface. The collector may be nil, in
// which case requests are served without metrics.
func NewServer(clock ClockController, allocator AllocationRunner, seeder ScenarioSeeder, reader AllocationReader, collector *observability.APICollector, log logging.Logger) *Server {
	if log == nil {
		log = logging.Noop()
	}
	return &Server{
		clock:     clock,
		allocator: allocator,
		seeder:    seeder,
		reader:    reader,
		collector: collector,
		log:       log,
	}
}

// Register installs every route on the mux, wrapped in request metrics.
func (s *Server) Register(mux *http.ServeMux) {
	s.handle(mux, http.MethodPost, "/api/simulation/start", s.handleStart)
	s.handle(mux, http.MethodPost, "/api/simulation/pause", s.handlePause)
	s.handle(mux, http.MethodPost, "/api/simulation/resume", s.handleResume)
	s.handle(mux, http.MethodPost, "/api/simulation/stop", s.handleStop)
	s.handle(mux, http.MethodPost, "/api/simulation/seek", s.handleSeek)
	s.handle(mux, http.MethodPost, "/api/simulation/speed", s.handleSpeed)
	s.handle(mux, http.MethodGet, "/api/simulation", s.handleState)
	s.handle(mux, http.MethodPost, "/api/allocations/run", s.handleAllocate)
	s.handle(mux, http.MethodGet, "/api/allocations", s.handleAllocations)
	s.handle(mux, http.MethodPost, "/api/scenarios", s.handleSeed)
}

func (s *Server) handle(mux *http.ServeMux, method, pattern string, fn http.HandlerFunc) {
	var handler http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		fn(w, r)
	})
	if s.collector != nil {
		handler = s.collector.Middleware(pattern, handler)
	}
	mux.Handle(pattern, handler)
}

type startRequest struct {
	ScenarioID       string  `json:"scenario_id"`
	CompressionRatio float64 `json:"compression_ratio"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ScenarioID == "" {
		writeError(w, http.StatusBadRequest, "scenario_id is required")
		return
	}

	run, err := s.clock.Start(r.Context(), req.ScenarioID, req.CompressionRatio)
	if err != nil {
		s.writeClockError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, run)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	// A pause with nothing running is a no-op, reported as null.
	writeJSON(w, http.StatusOK, s.clock.Pause(r.Context()))
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	run, err := s.clock.Resume(r.Context())
	if err != nil {
		s.writeClockError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.clock.Stop(r.Context()))
}

type seekRequest struct {
	SimTime time.Time `json:"sim_time"`
}

func (s *Server) handleSeek(w http.ResponseWriter, r *http.Request) {
	var req seekRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SimTime.IsZero() {
		writeError(w, http.StatusBadRequest, "sim_time is required")
		return
	}
	run, err := s.clock.Seek(r.Context(), req.SimTime)
	if err != nil {
		s.writeClockError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

type speedRequest struct {
	CompressionRatio float64 `json:"compression_ratio"`
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	var req speedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	run, err := s.clock.SetSpeed(r.Context(), req.CompressionRatio)
	if err != nil {
		s.writeClockError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

type stateResponse struct {
	Run       *model.SimulationRun      `json:"run"`
	Positions map[string]model.Position `json:"positions,omitempty"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	resp := stateResponse{Run: s.clock.State()}
	if resp.Run != nil {
		resp.Positions = s.clock.Positions()
	}
	writeJSON(w, http.StatusOK, resp)
}

type allocateRequest struct {
	ScenarioID string `json:"scenario_id"`
	DayNumber  int    `json:"day_number"`
}

func (s *Server) handleAllocate(w http.ResponseWriter, r *http.Request) {
	var req allocateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ScenarioID == "" || req.DayNumber < 1 {
		writeError(w, http.StatusBadRequest, "scenario_id and a positive day_number are required")
		return
	}

	report, err := s.allocator.Allocate(r.Context(), req.ScenarioID, req.DayNumber)
	if err != nil {
		s.log.Error(r.Context(), "allocation run failed", logging.Err(err))
		writeError(w, http.StatusInternalServerError, "allocation run failed")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleAllocations(w http.ResponseWriter, r *http.Request) {
	scenarioID := r.URL.Query().Get("scenario")
	if scenarioID == "" {
		writeError(w, http.StatusBadRequest, "scenario parameter is required")
		return
	}
	day := 1
	if raw := r.URL.Query().Get("day"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "day must be a positive integer")
			return
		}
		day = parsed
	}

	allocations, err := s.reader.AllocationsByScenarioDay(r.Context(), scenarioID, day)
	if err != nil {
		s.log.Error(r.Context(), "allocation read failed", logging.Err(err))
		writeError(w, http.StatusInternalServerError, "allocation read failed")
		return
	}
	writeJSON(w, http.StatusOK, allocations)
}

func (s *Server) handleSeed(w http.ResponseWriter, r *http.Request) {
	summary, err := s.seeder.Load(r.Context(), r.Body)
	if err != nil {
		s.log.Warn(r.Context(), "scenario seed failed", logging.Err(err))
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.collector.SetScenarioCounts(summary.Missions, summary.Assets, summary.Needs)
	writeJSON(w, http.StatusCreated, summary)
}

func (s *Server) writeClockError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, simclock.ErrScenarioNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, simclock.ErrSimulationActive),
		errors.Is(err, simclock.ErrNoActiveRun),
		errors.Is(err, simclock.ErrNotPaused):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, simclock.ErrInvalidRatio):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.Error(r.Context(), "clock command failed", logging.Err(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}
