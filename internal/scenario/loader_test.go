package scenario

import (
	"context"
	"strings"
	"testing"

	"github.com/neg-0/overwatch-sub002/model"
)

const sampleScenario = `
id: scn-1
name: Exercise Day One
start_time: 2026-03-15T06:00:00Z
missions:
  - id: msn-1
    callsign: VIPER 11
    domain: AIR
    day_number: 1
    waypoints:
      - {lat: 30.0, lon: 50.0, altitude_ft: 25000, speed_kts: 480}
      - {lat: 31.5, lon: 51.0, altitude_ft: 25000}
    windows:
      - {type: TOT, start: 2026-03-15T08:00:00Z, end: 2026-03-15T08:15:00Z}
    targets:
      - {id: tgt-1, name: Bridge Alpha, lat: 31.5, lon: 51.0}
space_assets:
  - id: sat-1
    name: RECON-1
    capabilities: [ISR]
    windows:
      - {type: ISR, start: 2026-03-15T07:00:00Z, end: 2026-03-15T09:00:00Z}
space_needs:
  - id: need-1
    mission_id: msn-1
    day_number: 1
    capability_type: ISR
    priority: 1
    start: 2026-03-15T07:30:00Z
    end: 2026-03-15T08:30:00Z
    criticality: CRITICAL
    traced_priority_rank: 2
events:
  - event_type: SATELLITE_JAMMED
    target_id: sat-1
    sim_time: 2026-03-15T10:00:00Z
    description: hostile uplink interference
`

type fakeStore struct {
	scenarios []string
	missions  []*model.Mission
	assets    []*model.SpaceAsset
	windows   map[string][]model.CoverageWindow
	needs     []*model.SpaceNeed
	events    []*model.SimEvent
}

func newFakeStore() *fakeStore {
	return &fakeStore{windows: make(map[string][]model.CoverageWindow)}
}

func (f *fakeStore) InsertScenario(ctx context.Context, id, name, startTime string) error {
	f.scenarios = append(f.scenarios, id)
	return nil
}

func (f *fakeStore) InsertMission(ctx context.Context, m *model.Mission) error {
	f.missions = append(f.missions, m)
	return nil
}

func (f *fakeStore) InsertSpaceAsset(ctx context.Context, a *model.SpaceAsset) error {
	f.assets = append(f.assets, a)
	return nil
}

func (f *fakeStore) ReplaceCoverageWindows(ctx context.Context, assetID string, windows []model.CoverageWindow) error {
	f.windows[assetID] = windows
	return nil
}

func (f *fakeStore) InsertSpaceNeed(ctx context.Context, n *model.SpaceNeed) error {
	f.needs = append(f.needs, n)
	return nil
}

func (f *fakeStore) InsertEvent(ctx context.Context, e *model.SimEvent) error {
	f.events = append(f.events, e)
	return nil
}

func TestLoad_SeedsEveryEntity(t *testing.T) {
	store := newFakeStore()
	l := New(store, nil, nil)

	summary, err := l.Load(context.Background(), strings.NewReader(sampleScenario))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if summary.ScenarioID != "scn-1" {
		t.Errorf("scenario id = %q, want scn-1", summary.ScenarioID)
	}
	if summary.Missions != 1 || summary.Assets != 1 || summary.Needs != 1 || summary.Events != 1 {
		t.Fatalf("summary = %+v, want 1 of each", summary)
	}

	m := store.missions[0]
	if m.Domain != model.DomainAir || m.Status != model.StatusPlanned {
		t.Errorf("mission = %+v, want AIR/PLANNED", m)
	}
	if len(m.Waypoints) != 2 || m.Waypoints[0].Seq != 1 || m.Waypoints[1].Seq != 2 {
		t.Errorf("waypoints not sequenced: %+v", m.Waypoints)
	}
	if tot, ok := m.TimeOnTarget(); !ok || tot.Hour() != 8 {
		t.Errorf("TOT = %v ok=%v, want 08:00Z", tot, ok)
	}

	if len(store.windows["sat-1"]) != 1 || store.windows["sat-1"][0].CapabilityType != "ISR" {
		t.Errorf("declared windows = %+v", store.windows["sat-1"])
	}

	need := store.needs[0]
	if need.TracedPriorityRank == nil || *need.TracedPriorityRank != 2 {
		t.Errorf("traced rank = %v, want 2", need.TracedPriorityRank)
	}
	if need.MissionCriticality != model.CriticalityCritical {
		t.Errorf("criticality = %q", need.MissionCriticality)
	}

	ev := store.events[0]
	if ev.EventType != model.EventSatelliteJammed || ev.TargetID != "sat-1" {
		t.Errorf("event = %+v", ev)
	}
	if ev.TargetType != "SPACE_ASSET" {
		t.Errorf("default target type = %q, want SPACE_ASSET", ev.TargetType)
	}
	if ev.ID == "" {
		t.Errorf("event did not get a generated id")
	}
}

func TestLoad_RejectsMissingID(t *testing.T) {
	l := New(newFakeStore(), nil, nil)
	_, err := l.Load(context.Background(), strings.NewReader("name: no id\nstart_time: 2026-03-15T06:00:00Z\n"))
	if err == nil {
		t.Fatalf("Load accepted a scenario without an id")
	}
}

func TestLoad_RejectsUnknownDomain(t *testing.T) {
	doc := `
id: scn-bad
start_time: 2026-03-15T06:00:00Z
missions:
  - id: msn-bad
    domain: SUBTERRANEAN
`
	l := New(newFakeStore(), nil, nil)
	if _, err := l.Load(context.Background(), strings.NewReader(doc)); err == nil {
		t.Fatalf("Load accepted an unknown mission domain")
	}
}

func TestLoad_RejectsUnknownEventType(t *testing.T) {
	doc := `
id: scn-bad
start_time: 2026-03-15T06:00:00Z
events:
  - event_type: SATELLITE_UPGRADED
    target_id: sat-1
    sim_time: 2026-03-15T10:00:00Z
`
	l := New(newFakeStore(), nil, nil)
	if _, err := l.Load(context.Background(), strings.NewReader(doc)); err == nil {
		t.Fatalf("Load accepted an unknown event type")
	}
}

func TestLoad_RejectsBadTimestamp(t *testing.T) {
	doc := `
id: scn-bad
start_time: tomorrow morning
`
	l := New(newFakeStore(), nil, nil)
	if _, err := l.Load(context.Background(), strings.NewReader(doc)); err == nil {
		t.Fatalf("Load accepted an unparseable start_time")
	}
}
