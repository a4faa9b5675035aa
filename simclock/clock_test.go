package simclock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/neg-0/overwatch-sub002/internal/store"
	"github.com/neg-0/overwatch-sub002/model"
)

var scenarioStart = time.Date(2026, time.March, 15, 6, 0, 0, 0, time.UTC)

type fakeStore struct {
	mu        sync.Mutex
	scenarios map[string]time.Time
	runs      map[string]*model.SimulationRun
	missions  []*model.Mission
	statusLog []model.MissionStatus
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		scenarios: map[string]time.Time{"scn-1": scenarioStart},
		runs:      make(map[string]*model.SimulationRun),
	}
}

func (f *fakeStore) ScenarioStart(ctx context.Context, scenarioID string) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	start, ok := f.scenarios[scenarioID]
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %q", store.ErrScenarioNotFound, scenarioID)
	}
	return start, nil
}

func (f *fakeStore) LoadRun(ctx context.Context, scenarioID string) (*model.SimulationRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[scenarioID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", store.ErrRunNotFound, scenarioID)
	}
	snapshot := *run
	return &snapshot, nil
}

func (f *fakeStore) SaveRun(ctx context.Context, run *model.SimulationRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	snapshot := *run
	f.runs[run.ScenarioID] = &snapshot
	return nil
}

func (f *fakeStore) MissionsByScenario(ctx context.Context, scenarioID string) ([]*model.Mission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.missions, nil
}

func (f *fakeStore) UpdateMissionStatus(ctx context.Context, missionID string, status model.MissionStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusLog = append(f.statusLog, status)
	for _, m := range f.missions {
		if m.ID == missionID {
			m.Status = status
		}
	}
	return nil
}

type captureSink struct {
	mu    sync.Mutex
	snaps []model.TickSnapshot
}

func (s *captureSink) Publish(scenarioID string, snap model.TickSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps = append(s.snaps, snap)
}

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.snaps)
}

func TestStart_SecondStartFails(t *testing.T) {
	c := New(newFakeStore(), nil, nil, WithTickInterval(time.Hour))
	ctx := context.Background()
	defer c.Stop(ctx)

	if _, err := c.Start(ctx, "scn-1", 60); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if _, err := c.Start(ctx, "scn-1", 60); !errors.Is(err, ErrSimulationActive) {
		t.Fatalf("second Start err = %v, want ErrSimulationActive", err)
	}
}

func TestStart_UnknownScenarioFailsFast(t *testing.T) {
	fs := newFakeStore()
	c := New(fs, nil, nil, WithTickInterval(time.Hour))

	if _, err := c.Start(context.Background(), "scn-missing", 60); !errors.Is(err, ErrScenarioNotFound) {
		t.Fatalf("Start err = %v, want ErrScenarioNotFound", err)
	}
	if c.State() != nil {
		t.Fatalf("failed Start must not leave a run in memory")
	}
	if len(fs.runs) != 0 {
		t.Fatalf("failed Start must not write a checkpoint")
	}
}

// failingStore injects infrastructure errors ahead of the fake's behaviour.
type failingStore struct {
	*fakeStore
	startErr error
	loadErr  error
}

func (f *failingStore) ScenarioStart(ctx context.Context, scenarioID string) (time.Time, error) {
	if f.startErr != nil {
		return time.Time{}, f.startErr
	}
	return f.fakeStore.ScenarioStart(ctx, scenarioID)
}

func (f *failingStore) LoadRun(ctx context.Context, scenarioID string) (*model.SimulationRun, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.fakeStore.LoadRun(ctx, scenarioID)
}

func TestStart_StoreFailureIsNotScenarioNotFound(t *testing.T) {
	fs := &failingStore{fakeStore: newFakeStore(), startErr: errors.New("database is locked")}
	c := New(fs, nil, nil, WithTickInterval(time.Hour))

	_, err := c.Start(context.Background(), "scn-1", 60)
	if err == nil {
		t.Fatal("Start succeeded against a failing store")
	}
	if errors.Is(err, ErrScenarioNotFound) {
		t.Fatalf("Start err = %v, must not be ErrScenarioNotFound", err)
	}
	if len(fs.runs) != 0 {
		t.Fatalf("failed Start must not write a checkpoint")
	}
}

func TestStart_CheckpointReadFailurePreservesCheckpoint(t *testing.T) {
	fs := &failingStore{fakeStore: newFakeStore(), loadErr: errors.New("disk I/O error")}
	checkpoint := model.SimulationRun{
		ID:               "run-1",
		ScenarioID:       "scn-1",
		Status:           model.RunPaused,
		SimTime:          scenarioStart.Add(50 * time.Hour),
		RealStartTime:    scenarioStart,
		CompressionRatio: 60,
		CurrentDayNumber: 3,
	}
	fs.runs["scn-1"] = &checkpoint

	c := New(fs, nil, nil, WithTickInterval(time.Hour))
	if _, err := c.Start(context.Background(), "scn-1", 60); err == nil {
		t.Fatal("Start succeeded despite an unreadable checkpoint")
	}
	if c.State() != nil {
		t.Fatalf("failed Start must not leave a run in memory")
	}
	got := fs.runs["scn-1"]
	if got.CurrentDayNumber != 3 || !got.SimTime.Equal(checkpoint.SimTime) {
		t.Fatalf("checkpoint was rewritten: day %d at %v", got.CurrentDayNumber, got.SimTime)
	}
}

func TestStart_NegativeRatioRejected(t *testing.T) {
	c := New(newFakeStore(), nil, nil, WithTickInterval(time.Hour))
	if _, err := c.Start(context.Background(), "scn-1", -1); !errors.Is(err, ErrInvalidRatio) {
		t.Fatalf("Start err = %v, want ErrInvalidRatio", err)
	}
}

func TestStart_ZeroRatioUsesDefault(t *testing.T) {
	c := New(newFakeStore(), nil, nil, WithTickInterval(time.Hour))
	defer c.Stop(context.Background())

	run, err := c.Start(context.Background(), "scn-1", 0)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if run.CompressionRatio != DefaultCompressionRatio {
		t.Fatalf("ratio = %v, want default %v", run.CompressionRatio, DefaultCompressionRatio)
	}
}

func TestPause_NoRunReturnsNil(t *testing.T) {
	c := New(newFakeStore(), nil, nil)
	if got := c.Pause(context.Background()); got != nil {
		t.Fatalf("Pause with no run = %+v, want nil", got)
	}
}

func TestStop_NoRunReturnsNil(t *testing.T) {
	c := New(newFakeStore(), nil, nil)
	if got := c.Stop(context.Background()); got != nil {
		t.Fatalf("Stop with no run = %+v, want nil", got)
	}
}

func TestPauseResumeLifecycle(t *testing.T) {
	c := New(newFakeStore(), nil, nil, WithTickInterval(time.Hour))
	ctx := context.Background()
	defer c.Stop(ctx)

	if _, err := c.Start(ctx, "scn-1", 60); err != nil {
		t.Fatalf("Start: %v", err)
	}

	paused := c.Pause(ctx)
	if paused == nil || paused.Status != model.RunPaused {
		t.Fatalf("Pause = %+v, want PAUSED run", paused)
	}

	// Pausing a paused run is a nil outcome, not an error.
	if got := c.Pause(ctx); got != nil {
		t.Fatalf("second Pause = %+v, want nil", got)
	}

	resumed, err := c.Resume(ctx)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if resumed.Status != model.RunRunning {
		t.Fatalf("Resume status = %v, want RUNNING", resumed.Status)
	}

	if _, err := c.Resume(ctx); !errors.Is(err, ErrNotPaused) {
		t.Fatalf("Resume while running err = %v, want ErrNotPaused", err)
	}
}

func TestResume_NoRun(t *testing.T) {
	c := New(newFakeStore(), nil, nil)
	if _, err := c.Resume(context.Background()); !errors.Is(err, ErrNoActiveRun) {
		t.Fatalf("Resume err = %v, want ErrNoActiveRun", err)
	}
}

func TestStop_ClearsStateAndCheckpointsStopped(t *testing.T) {
	fs := newFakeStore()
	c := New(fs, nil, nil, WithTickInterval(time.Hour))
	ctx := context.Background()

	if _, err := c.Start(ctx, "scn-1", 60); err != nil {
		t.Fatalf("Start: %v", err)
	}
	stopped := c.Stop(ctx)
	if stopped == nil || stopped.Status != model.RunStopped {
		t.Fatalf("Stop = %+v, want STOPPED run", stopped)
	}
	if c.State() != nil {
		t.Fatalf("State after Stop = %+v, want nil", c.State())
	}
	if fs.runs["scn-1"].Status != model.RunStopped {
		t.Fatalf("checkpoint status = %v, want STOPPED", fs.runs["scn-1"].Status)
	}
}

func TestTick_AdvancesSimTimeByCompressedDelta(t *testing.T) {
	c := New(newFakeStore(), nil, nil, WithTickInterval(5*time.Millisecond))
	ctx := context.Background()
	defer c.Stop(ctx)

	if _, err := c.Start(ctx, "scn-1", 3600); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(60 * time.Millisecond)

	state := c.State()
	advanced := state.SimTime.Sub(scenarioStart)
	// 60 ms of wall time at 3600x is ~3.6 sim minutes; accept a generous
	// band to stay robust under scheduler jitter.
	if advanced < 30*time.Second {
		t.Fatalf("sim time advanced %v, want well over 30s at 3600x", advanced)
	}
}

func TestTick_BroadcastsSnapshots(t *testing.T) {
	sink := &captureSink{}
	c := New(newFakeStore(), nil, nil, WithTickInterval(5*time.Millisecond), WithSink(sink))
	ctx := context.Background()
	defer c.Stop(ctx)

	if _, err := c.Start(ctx, "scn-1", 60); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(40 * time.Millisecond)

	if sink.count() == 0 {
		t.Fatalf("no snapshots broadcast after several tick intervals")
	}
	sink.mu.Lock()
	snap := sink.snaps[0]
	sink.mu.Unlock()
	if snap.ScenarioID != "scn-1" || snap.CompressionRatio != 60 || snap.CurrentDayNumber != 1 {
		t.Fatalf("snapshot = %+v, want scenario scn-1, ratio 60, day 1", snap)
	}
}

func TestStop_NoBroadcastsAfterReturn(t *testing.T) {
	sink := &captureSink{}
	c := New(newFakeStore(), nil, nil, WithTickInterval(2*time.Millisecond), WithSink(sink))
	ctx := context.Background()

	if _, err := c.Start(ctx, "scn-1", 60); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	c.Stop(ctx)

	after := sink.count()
	time.Sleep(30 * time.Millisecond)
	if got := sink.count(); got != after {
		t.Fatalf("broadcasts continued after Stop: %d -> %d", after, got)
	}
}

func TestPause_HaltsSimTime(t *testing.T) {
	c := New(newFakeStore(), nil, nil, WithTickInterval(2*time.Millisecond))
	ctx := context.Background()
	defer c.Stop(ctx)

	if _, err := c.Start(ctx, "scn-1", 3600); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	c.Pause(ctx)

	at := c.State().SimTime
	time.Sleep(30 * time.Millisecond)
	if got := c.State().SimTime; !got.Equal(at) {
		t.Fatalf("sim time moved while paused: %v -> %v", at, got)
	}
}

func TestSeekAndSetSpeed(t *testing.T) {
	c := New(newFakeStore(), nil, nil, WithTickInterval(time.Hour))
	ctx := context.Background()
	defer c.Stop(ctx)

	if _, err := c.Seek(ctx, scenarioStart); !errors.Is(err, ErrNoActiveRun) {
		t.Fatalf("Seek with no run err = %v, want ErrNoActiveRun", err)
	}
	if _, err := c.SetSpeed(ctx, 10); !errors.Is(err, ErrNoActiveRun) {
		t.Fatalf("SetSpeed with no run err = %v, want ErrNoActiveRun", err)
	}

	if _, err := c.Start(ctx, "scn-1", 60); err != nil {
		t.Fatalf("Start: %v", err)
	}

	target := scenarioStart.Add(50 * time.Hour) // two day boundaries ahead
	run, err := c.Seek(ctx, target)
	if err != nil {
		t.Fatalf("Seek: %v", err)
	}
	if !run.SimTime.Equal(target) {
		t.Fatalf("sim time after seek = %v, want %v", run.SimTime, target)
	}
	if run.CurrentDayNumber != 3 {
		t.Fatalf("day number after seek = %d, want 3", run.CurrentDayNumber)
	}

	run, err = c.SetSpeed(ctx, 120)
	if err != nil {
		t.Fatalf("SetSpeed: %v", err)
	}
	if run.CompressionRatio != 120 {
		t.Fatalf("ratio = %v, want 120", run.CompressionRatio)
	}
	if _, err := c.SetSpeed(ctx, 0); !errors.Is(err, ErrInvalidRatio) {
		t.Fatalf("SetSpeed(0) err = %v, want ErrInvalidRatio", err)
	}
}

func TestTick_AdvancesMissionStatusAndPosition(t *testing.T) {
	fs := newFakeStore()
	tot := scenarioStart.Add(-time.Hour) // deep in the lifecycle already
	fs.missions = []*model.Mission{{
		ID:         "msn-1",
		ScenarioID: "scn-1",
		Domain:     model.DomainAir,
		Status:     model.StatusPlanned,
		Waypoints: []model.Waypoint{
			{Seq: 1, Lat: 30, Lon: 50},
			{Seq: 2, Lat: 32, Lon: 50},
		},
		Windows: []model.TimeWindow{{ID: "w1", WindowType: model.WindowTypeTOT, StartTime: tot, EndTime: tot}},
	}}

	c := New(fs, nil, nil, WithTickInterval(5*time.Millisecond))
	ctx := context.Background()
	defer c.Stop(ctx)

	if _, err := c.Start(ctx, "scn-1", 1); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(60 * time.Millisecond)

	fs.mu.Lock()
	transitions := len(fs.statusLog)
	fs.mu.Unlock()
	if transitions == 0 {
		t.Fatalf("no status transitions recorded after several ticks")
	}
	fs.mu.Lock()
	first := fs.statusLog[0]
	fs.mu.Unlock()
	if first != model.StatusBriefed {
		t.Fatalf("first transition = %v, want BRIEFED (one stage per tick)", first)
	}

	if _, ok := c.Positions()["msn-1"]; !ok {
		t.Fatalf("no derived position for msn-1")
	}
}

type countingHook struct {
	mu    sync.Mutex
	calls []int
}

func (h *countingHook) hook(ctx context.Context, scenarioID string, day int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, day)
}

func TestTick_DayBoundaryFiresHook(t *testing.T) {
	fs := newFakeStore()
	// Start one minute before midnight; at 3600x a 5 ms tick crosses it
	// almost immediately.
	fs.scenarios["scn-1"] = time.Date(2026, time.March, 15, 23, 59, 0, 0, time.UTC)

	h := &countingHook{}
	c := New(fs, nil, nil, WithTickInterval(5*time.Millisecond), WithDayHook(h.hook))
	ctx := context.Background()
	defer c.Stop(ctx)

	if _, err := c.Start(ctx, "scn-1", 3600); err != nil {
		t.Fatalf("Start: %v", err)
	}
	deadline := time.Now().Add(time.Second)
	for {
		h.mu.Lock()
		fired := len(h.calls) > 0
		h.mu.Unlock()
		if fired || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.calls) == 0 {
		t.Fatalf("day hook never fired after midnight crossing")
	}
	if h.calls[0] != 2 {
		t.Fatalf("first day hook fired with day %d, want 2", h.calls[0])
	}
}
