// Package simclock owns the single running simulation: it advances virtual
// time, drives mission state each tick, persists checkpoints, and emits
// snapshots.
package simclock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/neg-0/overwatch-sub002/core"
	"github.com/neg-0/overwatch-sub002/internal/logging"
	"github.com/neg-0/overwatch-sub002/internal/store"
	"github.com/neg-0/overwatch-sub002/model"
)

var (
	// ErrSimulationActive indicates Start was called while a run exists.
	ErrSimulationActive = errors.New("a simulation is already active")
	// ErrScenarioNotFound indicates the scenario has no rows in the store.
	ErrScenarioNotFound = errors.New("scenario not found")
	// ErrNoActiveRun indicates a command arrived with no run in memory.
	ErrNoActiveRun = errors.New("no active simulation run")
	// ErrNotPaused indicates Resume was called on a run that is not paused.
	ErrNotPaused = errors.New("simulation is not paused")
	// ErrInvalidRatio indicates a non-positive compression ratio.
	ErrInvalidRatio = errors.New("compression ratio must be positive")
)

// DefaultCompressionRatio is applied when Start receives a zero ratio:
// one real second advances one simulated minute.
const DefaultCompressionRatio = 60.0

// DefaultTickInterval is the wall-clock period of the tick loop.
const DefaultTickInterval = time.Second

// Store is the slice of persistence the clock needs. Implementations
// report a missing scenario from ScenarioStart with store.ErrScenarioNotFound
// and a missing checkpoint from LoadRun with store.ErrRunNotFound; the clock
// treats every other error as an infrastructure failure and propagates it.
type Store interface {
	ScenarioStart(ctx context.Context, scenarioID string) (time.Time, error)
	LoadRun(ctx context.Context, scenarioID string) (*model.SimulationRun, error)
	SaveRun(ctx context.Context, run *model.SimulationRun) error
	MissionsByScenario(ctx context.Context, scenarioID string) ([]*model.Mission, error)
	UpdateMissionStatus(ctx context.Context, missionID string, status model.MissionStatus) error
}

// EventApplicator reconciles scripted events with the current instant.
type EventApplicator interface {
	ApplyForTime(ctx context.Context, scenarioID string, instant time.Time) error
}

// Sink receives per-tick snapshots. Implementations must not block; the
// clock treats publication as fire-and-forget.
type Sink interface {
	Publish(scenarioID string, snap model.TickSnapshot)
}

// DayHook is invoked once per crossed day boundary, in its own goroutine.
// The clock never waits on its result.
type DayHook func(ctx context.Context, scenarioID string, dayNumber int)

// MetricsRecorder receives tick timings and run-state changes; satisfied by
// the Prometheus collector in internal/observability.
type MetricsRecorder interface {
	ObserveTick(d time.Duration)
	SetRunActive(active bool)
}

// Clock is the single-owner simulation actor. All commands and the tick
// body serialize on one mutex, so a command can never race a tick's read of
// run state, and no two ticks overlap.
type Clock struct {
	store      Store
	applicator EventApplicator
	sink       Sink
	dayHook    DayHook
	log        logging.Logger
	metrics    MetricsRecorder

	tickInterval time.Duration
	defaultRatio float64

	mu        sync.Mutex
	run       *model.SimulationRun
	positions map[string]model.Position
	lastWall  time.Time
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// Option customises Clock construction.
type Option func(*Clock)

// WithTickInterval overrides the wall-clock tick period.
func WithTickInterval(d time.Duration) Option {
	return func(c *Clock) {
		if d > 0 {
			c.tickInterval = d
		}
	}
}

// WithDefaultRatio overrides the compression ratio applied when Start
// receives a zero ratio.
func WithDefaultRatio(ratio float64) Option {
	return func(c *Clock) {
		if ratio > 0 {
			c.defaultRatio = ratio
		}
	}
}

// WithSink attaches a snapshot sink.
func WithSink(s Sink) Option {
	return func(c *Clock) { c.sink = s }
}

// WithDayHook attaches the day-boundary order-generation hook.
func WithDayHook(h DayHook) Option {
	return func(c *Clock) { c.dayHook = h }
}

// WithMetrics attaches a tick metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(c *Clock) { c.metrics = m }
}

// New constructs a Clock in the IDLE state.
func New(st Store, applicator EventApplicator, log logging.Logger, opts ...Option) *Clock {
	if log == nil {
		log = logging.Noop()
	}
	c := &Clock{
		store:        st,
		applicator:   applicator,
		log:          log,
		tickInterval: DefaultTickInterval,
		defaultRatio: DefaultCompressionRatio,
		positions:    make(map[string]model.Position),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Start creates or resumes a run for the scenario and begins ticking. It
// fails with ErrSimulationActive if any run is already in memory and with
// ErrScenarioNotFound before mutating any state when the scenario is
// unknown. Store failures are propagated without touching the checkpoint.
// A zero ratio selects DefaultCompressionRatio.
func (c *Clock) Start(ctx context.Context, scenarioID string, compressionRatio float64) (*model.SimulationRun, error) {
	ctx, span := otel.Tracer("simclock").Start(ctx, "Clock.Start")
	span.SetAttributes(attribute.String("scenario_id", scenarioID))
	defer span.End()

	if compressionRatio < 0 {
		return nil, ErrInvalidRatio
	}
	if compressionRatio == 0 {
		compressionRatio = c.defaultRatio
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.run != nil {
		return nil, fmt.Errorf("%w: scenario %q", ErrSimulationActive, c.run.ScenarioID)
	}

	scenarioStart, err := c.store.ScenarioStart(ctx, scenarioID)
	switch {
	case errors.Is(err, store.ErrScenarioNotFound):
		return nil, fmt.Errorf("%w: %q", ErrScenarioNotFound, scenarioID)
	case err != nil:
		return nil, fmt.Errorf("load scenario start: %w", err)
	}

	run, err := c.store.LoadRun(ctx, scenarioID)
	switch {
	case err == nil && run.Status != model.RunStopped:
		// Resume the checkpoint where it left off.
		run.Status = model.RunRunning
		run.CompressionRatio = compressionRatio
	case err == nil || errors.Is(err, store.ErrRunNotFound):
		// A stopped checkpoint or none at all: begin a fresh run. Any other
		// read failure must not reach SaveRun, or a live checkpoint would be
		// overwritten with a day-one reset.
		run = &model.SimulationRun{
			ID:               uuid.NewString(),
			ScenarioID:       scenarioID,
			Status:           model.RunRunning,
			SimTime:          scenarioStart,
			RealStartTime:    time.Now().UTC(),
			CompressionRatio: compressionRatio,
			CurrentDayNumber: 1,
		}
	default:
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}

	if err := c.store.SaveRun(ctx, run); err != nil {
		return nil, fmt.Errorf("checkpoint run: %w", err)
	}

	c.run = run
	c.lastWall = time.Now()
	c.stopCh = make(chan struct{})
	c.doneCh = make(chan struct{})
	go c.loop(c.stopCh, c.doneCh)

	if c.metrics != nil {
		c.metrics.SetRunActive(true)
	}
	c.log.Info(ctx, "simulation started",
		logging.String("scenario_id", scenarioID),
		logging.Time("sim_time", run.SimTime),
		logging.Float64("compression_ratio", run.CompressionRatio),
	)

	snapshot := *run
	return &snapshot, nil
}

// Pause halts time advancement. It returns nil when nothing is RUNNING;
// the caller must check.
func (c *Clock) Pause(ctx context.Context) *model.SimulationRun {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.run == nil || c.run.Status != model.RunRunning {
		return nil
	}
	c.run.Status = model.RunPaused
	if err := c.store.SaveRun(ctx, c.run); err != nil {
		c.log.Warn(ctx, "pause checkpoint failed", logging.Err(err))
	}
	c.log.Info(ctx, "simulation paused", logging.String("scenario_id", c.run.ScenarioID))

	snapshot := *c.run
	return &snapshot
}

// Resume restarts time advancement on a paused run.
func (c *Clock) Resume(ctx context.Context) (*model.SimulationRun, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.run == nil {
		return nil, ErrNoActiveRun
	}
	if c.run.Status != model.RunPaused {
		return nil, fmt.Errorf("%w: status %s", ErrNotPaused, c.run.Status)
	}

	c.run.Status = model.RunRunning
	// Discard wall time spent paused so the next tick doesn't jump.
	c.lastWall = time.Now()
	if err := c.store.SaveRun(ctx, c.run); err != nil {
		c.log.Warn(ctx, "resume checkpoint failed", logging.Err(err))
	}
	c.log.Info(ctx, "simulation resumed", logging.String("scenario_id", c.run.ScenarioID))

	snapshot := *c.run
	return &snapshot, nil
}

// Stop terminates the run from any non-IDLE state. After Stop returns, no
// further tick fires and no further snapshot is broadcast. Returns nil when
// nothing is active.
func (c *Clock) Stop(ctx context.Context) *model.SimulationRun {
	c.mu.Lock()

	if c.run == nil {
		c.mu.Unlock()
		return nil
	}

	c.run.Status = model.RunStopped
	if err := c.store.SaveRun(ctx, c.run); err != nil {
		c.log.Warn(ctx, "stop checkpoint failed", logging.Err(err))
	}
	snapshot := *c.run
	c.run = nil
	c.positions = make(map[string]model.Position)

	stopCh, doneCh := c.stopCh, c.doneCh
	c.stopCh, c.doneCh = nil, nil
	close(stopCh)
	c.mu.Unlock()

	// Wait for the loop goroutine to exit. Any tick that was waiting on
	// the mutex sees a nil run and does nothing.
	<-doneCh

	if c.metrics != nil {
		c.metrics.SetRunActive(false)
	}
	c.log.Info(ctx, "simulation stopped", logging.String("scenario_id", snapshot.ScenarioID))
	return &snapshot
}

// Seek repositions simulation time while RUNNING or PAUSED. The current day
// number is re-derived from the scenario start so a replayed tick stream
// stays consistent; day hooks fire only from forward ticking.
func (c *Clock) Seek(ctx context.Context, instant time.Time) (*model.SimulationRun, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.run == nil {
		return nil, ErrNoActiveRun
	}

	delta := daysBetween(c.run.SimTime, instant)
	c.run.SimTime = instant
	c.run.CurrentDayNumber += delta
	if c.run.CurrentDayNumber < 1 {
		c.run.CurrentDayNumber = 1
	}

	if err := c.store.SaveRun(ctx, c.run); err != nil {
		c.log.Warn(ctx, "seek checkpoint failed", logging.Err(err))
	}
	c.log.Info(ctx, "simulation time seeked",
		logging.String("scenario_id", c.run.ScenarioID),
		logging.Time("sim_time", instant),
	)

	snapshot := *c.run
	return &snapshot, nil
}

// SetSpeed changes the compression ratio while RUNNING or PAUSED without
// restarting the loop.
func (c *Clock) SetSpeed(ctx context.Context, compressionRatio float64) (*model.SimulationRun, error) {
	if compressionRatio <= 0 {
		return nil, ErrInvalidRatio
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.run == nil {
		return nil, ErrNoActiveRun
	}
	c.run.CompressionRatio = compressionRatio
	if err := c.store.SaveRun(ctx, c.run); err != nil {
		c.log.Warn(ctx, "speed checkpoint failed", logging.Err(err))
	}

	snapshot := *c.run
	return &snapshot, nil
}

// State returns a copy of the current run, or nil when no run is active.
func (c *Clock) State() *model.SimulationRun {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.run == nil {
		return nil
	}
	snapshot := *c.run
	return &snapshot
}

// Positions returns the derived mission positions from the most recent
// tick, keyed by mission ID.
func (c *Clock) Positions() map[string]model.Position {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]model.Position, len(c.positions))
	for id, pos := range c.positions {
		out[id] = pos
	}
	return out
}

func (c *Clock) loop(stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(c.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			c.tick()
		}
	}
}

// tick advances virtual time and recomputes all observable state. It runs
// under the same mutex as the command surface.
func (c *Clock) tick() {
	started := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.run == nil || c.run.Status != model.RunRunning {
		return
	}

	ctx := context.Background()
	now := time.Now()
	wallDelta := now.Sub(c.lastWall)
	c.lastWall = now

	prevSimTime := c.run.SimTime
	simDelta := time.Duration(float64(wallDelta) * c.run.CompressionRatio)
	c.run.SimTime = prevSimTime.Add(simDelta)

	if crossed := daysBetween(prevSimTime, c.run.SimTime); crossed > 0 {
		for i := 0; i < crossed; i++ {
			c.run.CurrentDayNumber++
			if c.dayHook != nil {
				day := c.run.CurrentDayNumber
				scenario := c.run.ScenarioID
				go c.dayHook(context.Background(), scenario, day)
			}
		}
	}

	c.advanceMissions(ctx)

	if c.applicator != nil {
		if err := c.applicator.ApplyForTime(ctx, c.run.ScenarioID, c.run.SimTime); err != nil {
			c.log.Warn(ctx, "event application failed", logging.Err(err))
		}
	}

	if err := c.store.SaveRun(ctx, c.run); err != nil {
		c.log.Warn(ctx, "tick checkpoint failed", logging.Err(err))
	}

	if c.sink != nil {
		c.sink.Publish(c.run.ScenarioID, model.TickSnapshot{
			ScenarioID:       c.run.ScenarioID,
			SimTime:          c.run.SimTime,
			RealTime:         now.UTC(),
			CompressionRatio: c.run.CompressionRatio,
			CurrentDayNumber: c.run.CurrentDayNumber,
		})
	}

	if c.metrics != nil {
		c.metrics.ObserveTick(time.Since(started))
	}
}

// advanceMissions runs the status machine and interpolator over every
// mission in the scenario. Caller holds c.mu.
func (c *Clock) advanceMissions(ctx context.Context) {
	missions, err := c.store.MissionsByScenario(ctx, c.run.ScenarioID)
	if err != nil {
		c.log.Warn(ctx, "mission load failed", logging.Err(err))
		return
	}

	for _, m := range missions {
		tot, ok := m.TimeOnTarget()
		if !ok {
			continue
		}
		hoursFromTOT := c.run.SimTime.Sub(tot).Hours()

		if next, changed := core.NextStatus(m.Status, hoursFromTOT); changed {
			if err := c.store.UpdateMissionStatus(ctx, m.ID, next); err != nil {
				c.log.Warn(ctx, "mission status update failed",
					logging.String("mission_id", m.ID), logging.Err(err))
			} else {
				m.Status = next
				c.log.Debug(ctx, "mission status advanced",
					logging.String("mission_id", m.ID),
					logging.String("status", string(next)))
			}
		}

		pos, err := core.InterpolatePosition(m.Waypoints, c.run.SimTime, m.Domain, tot)
		if err != nil {
			// Routes with fewer than two waypoints have no derived position.
			delete(c.positions, m.ID)
			continue
		}
		c.positions[m.ID] = *pos
	}
}

// daysBetween counts UTC calendar-day boundaries between two instants;
// negative when b precedes a.
func daysBetween(a, b time.Time) int {
	ad := a.UTC().Truncate(24 * time.Hour)
	bd := b.UTC().Truncate(24 * time.Hour)
	return int(bd.Sub(ad) / (24 * time.Hour))
}
