// Package scenario seeds the store from a YAML scenario document: missions
// with their routes and windows, space assets, space needs, and scripted
// events.
package scenario

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/neg-0/overwatch-sub002/internal/logging"
	"github.com/neg-0/overwatch-sub002/internal/orbit"
	"github.com/neg-0/overwatch-sub002/model"
)

// Store is the slice of persistence the loader needs.
type Store interface {
	InsertScenario(ctx context.Context, id, name, startTime string) error
	InsertMission(ctx context.Context, m *model.Mission) error
	InsertSpaceAsset(ctx context.Context, a *model.SpaceAsset) error
	ReplaceCoverageWindows(ctx context.Context, assetID string, windows []model.CoverageWindow) error
	InsertSpaceNeed(ctx context.Context, n *model.SpaceNeed) error
	InsertEvent(ctx context.Context, e *model.SimEvent) error
}

// Summary reports what a load seeded.
type Summary struct {
	ScenarioID string
	Missions   int
	Assets     int
	Needs      int
	Events     int
}

// YAML shapes stay unexported so the file format can evolve independently of
// the model types.
type scenarioYAML struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	StartTime string `yaml:"start_time"`

	// Site is the ground reference point used to derive coverage windows
	// for TLE-bearing assets.
	Site *siteYAML `yaml:"site"`

	Missions []missionYAML `yaml:"missions"`
	Assets   []assetYAML   `yaml:"space_assets"`
	Needs    []needYAML    `yaml:"space_needs"`
	Events   []eventYAML   `yaml:"events"`
}

type siteYAML struct {
	Lat   float64 `yaml:"lat"`
	Lon   float64 `yaml:"lon"`
	AltKm float64 `yaml:"alt_km"`
}

type missionYAML struct {
	ID        string         `yaml:"id"`
	Callsign  string         `yaml:"callsign"`
	Domain    string         `yaml:"domain"`
	DayNumber int            `yaml:"day_number"`
	Waypoints []waypointYAML `yaml:"waypoints"`
	Windows   []windowYAML   `yaml:"windows"`
	Targets   []targetYAML   `yaml:"targets"`
}

type waypointYAML struct {
	Lat        float64 `yaml:"lat"`
	Lon        float64 `yaml:"lon"`
	AltitudeFt float64 `yaml:"altitude_ft"`
	SpeedKts   float64 `yaml:"speed_kts"`
}

type windowYAML struct {
	Type  string `yaml:"type"`
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

type targetYAML struct {
	ID   string  `yaml:"id"`
	Name string  `yaml:"name"`
	Lat  float64 `yaml:"lat"`
	Lon  float64 `yaml:"lon"`
}

type assetYAML struct {
	ID           string       `yaml:"id"`
	Name         string       `yaml:"name"`
	Capabilities []string     `yaml:"capabilities"`
	TLELine1     string       `yaml:"tle_line1"`
	TLELine2     string       `yaml:"tle_line2"`
	Windows      []windowYAML `yaml:"windows"` // declared windows; Type holds the capability
}

type needYAML struct {
	ID                 string `yaml:"id"`
	MissionID          string `yaml:"mission_id"`
	DayNumber          int    `yaml:"day_number"`
	CapabilityType     string `yaml:"capability_type"`
	Priority           int    `yaml:"priority"`
	Start              string `yaml:"start"`
	End                string `yaml:"end"`
	Criticality        string `yaml:"criticality"`
	FallbackCapability string `yaml:"fallback_capability"`
	RiskIfDenied       string `yaml:"risk_if_denied"`
	TracedPriorityRank *int   `yaml:"traced_priority_rank"`
}

type eventYAML struct {
	EventType   string `yaml:"event_type"`
	TargetType  string `yaml:"target_type"`
	TargetID    string `yaml:"target_id"`
	SimTime     string `yaml:"sim_time"`
	Description string `yaml:"description"`
}

// Loader seeds scenarios into a store, deriving coverage windows for
// TLE-bearing assets when an orbit generator is attached.
type Loader struct {
	store Store
	orbit *orbit.Generator
	log   logging.Logger
}

// New constructs a Loader. The orbit generator may be nil, in which case
// TLE-bearing assets seed with only their declared windows.
func New(store Store, gen *orbit.Generator, log logging.Logger) *Loader {
	if log == nil {
		log = logging.Noop()
	}
	return &Loader{store: store, orbit: gen, log: log}
}

// LoadFile seeds the scenario described by the named YAML file.
func (l *Loader) LoadFile(ctx context.Context, path string) (*Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scenario file: %w", err)
	}
	defer f.Close()
	return l.Load(ctx, f)
}

// Load decodes a YAML scenario from r and seeds every entity it describes.
func (l *Loader) Load(ctx context.Context, r io.Reader) (*Summary, error) {
	var doc scenarioYAML
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode scenario: %w", err)
	}
	if doc.ID == "" {
		return nil, fmt.Errorf("scenario is missing an id")
	}
	start, err := parseTime(doc.StartTime)
	if err != nil {
		return nil, fmt.Errorf("scenario start_time: %w", err)
	}

	if err := l.store.InsertScenario(ctx, doc.ID, doc.Name, start.Format(time.RFC3339Nano)); err != nil {
		return nil, fmt.Errorf("insert scenario: %w", err)
	}

	summary := &Summary{ScenarioID: doc.ID}

	for _, m := range doc.Missions {
		mission, err := missionFromYAML(doc.ID, m)
		if err != nil {
			return nil, fmt.Errorf("mission %q: %w", m.ID, err)
		}
		if err := l.store.InsertMission(ctx, mission); err != nil {
			return nil, fmt.Errorf("insert mission %q: %w", mission.ID, err)
		}
		summary.Missions++
	}

	for _, a := range doc.Assets {
		asset, windows, err := assetFromYAML(doc.ID, a)
		if err != nil {
			return nil, fmt.Errorf("asset %q: %w", a.ID, err)
		}
		if err := l.store.InsertSpaceAsset(ctx, asset); err != nil {
			return nil, fmt.Errorf("insert asset %q: %w", asset.ID, err)
		}

		if len(windows) == 0 && asset.TLELine1 != "" && l.orbit != nil && doc.Site != nil {
			site := orbit.Site{Lat: doc.Site.Lat, Lon: doc.Site.Lon, AltKm: doc.Site.AltKm}
			windows, err = l.orbit.Windows(asset, site, start, 24*time.Hour)
			if err != nil {
				return nil, fmt.Errorf("derive windows for asset %q: %w", asset.ID, err)
			}
			l.log.Info(ctx, "coverage windows derived from TLE",
				logging.String("asset_id", asset.ID),
				logging.Int("windows", len(windows)),
			)
		}
		if len(windows) > 0 {
			if err := l.store.ReplaceCoverageWindows(ctx, asset.ID, windows); err != nil {
				return nil, fmt.Errorf("seed windows for asset %q: %w", asset.ID, err)
			}
		}
		summary.Assets++
	}

	for _, n := range doc.Needs {
		need, err := needFromYAML(doc.ID, n)
		if err != nil {
			return nil, fmt.Errorf("need %q: %w", n.ID, err)
		}
		if err := l.store.InsertSpaceNeed(ctx, need); err != nil {
			return nil, fmt.Errorf("insert need %q: %w", need.ID, err)
		}
		summary.Needs++
	}

	for _, e := range doc.Events {
		event, err := eventFromYAML(doc.ID, e)
		if err != nil {
			return nil, fmt.Errorf("event for %q: %w", e.TargetID, err)
		}
		if err := l.store.InsertEvent(ctx, event); err != nil {
			return nil, fmt.Errorf("insert event %q: %w", event.ID, err)
		}
		summary.Events++
	}

	l.log.Info(ctx, "scenario seeded",
		logging.String("scenario_id", doc.ID),
		logging.Int("missions", summary.Missions),
		logging.Int("assets", summary.Assets),
		logging.Int("needs", summary.Needs),
		logging.Int("events", summary.Events),
	)
	return summary, nil
}

func missionFromYAML(scenarioID string, m missionYAML) (*model.Mission, error) {
	if m.ID == "" {
		return nil, fmt.Errorf("missing id")
	}
	domain := model.MissionDomain(m.Domain)
	switch domain {
	case model.DomainAir, model.DomainMaritime, model.DomainLand, model.DomainSpace:
	default:
		return nil, fmt.Errorf("unknown domain %q", m.Domain)
	}

	mission := &model.Mission{
		ID:         m.ID,
		ScenarioID: scenarioID,
		Callsign:   m.Callsign,
		Domain:     domain,
		Status:     model.StatusPlanned,
		DayNumber:  m.DayNumber,
	}
	for i, wp := range m.Waypoints {
		mission.Waypoints = append(mission.Waypoints, model.Waypoint{
			Seq:        i + 1,
			Lat:        wp.Lat,
			Lon:        wp.Lon,
			AltitudeFt: wp.AltitudeFt,
			SpeedKts:   wp.SpeedKts,
		})
	}
	for _, w := range m.Windows {
		start, err := parseTime(w.Start)
		if err != nil {
			return nil, fmt.Errorf("window start: %w", err)
		}
		end, err := parseTime(w.End)
		if err != nil {
			return nil, fmt.Errorf("window end: %w", err)
		}
		mission.Windows = append(mission.Windows, model.TimeWindow{
			ID:         uuid.NewString(),
			WindowType: w.Type,
			StartTime:  start,
			EndTime:    end,
		})
	}
	for _, tgt := range m.Targets {
		mission.Targets = append(mission.Targets, model.Target{
			ID:   tgt.ID,
			Name: tgt.Name,
			Lat:  tgt.Lat,
			Lon:  tgt.Lon,
		})
	}
	return mission, nil
}

func assetFromYAML(scenarioID string, a assetYAML) (*model.SpaceAsset, []model.CoverageWindow, error) {
	if a.ID == "" {
		return nil, nil, fmt.Errorf("missing id")
	}
	asset := &model.SpaceAsset{
		ID:           a.ID,
		ScenarioID:   scenarioID,
		Name:         a.Name,
		Status:       model.AssetOperational,
		Capabilities: a.Capabilities,
		TLELine1:     a.TLELine1,
		TLELine2:     a.TLELine2,
	}
	var windows []model.CoverageWindow
	for _, w := range a.Windows {
		start, err := parseTime(w.Start)
		if err != nil {
			return nil, nil, fmt.Errorf("window start: %w", err)
		}
		end, err := parseTime(w.End)
		if err != nil {
			return nil, nil, fmt.Errorf("window end: %w", err)
		}
		windows = append(windows, model.CoverageWindow{
			AssetID:        a.ID,
			CapabilityType: w.Type,
			StartTime:      start,
			EndTime:        end,
		})
	}
	return asset, windows, nil
}

func needFromYAML(scenarioID string, n needYAML) (*model.SpaceNeed, error) {
	if n.ID == "" {
		return nil, fmt.Errorf("missing id")
	}
	start, err := parseTime(n.Start)
	if err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}
	end, err := parseTime(n.End)
	if err != nil {
		return nil, fmt.Errorf("end: %w", err)
	}
	day := n.DayNumber
	if day == 0 {
		day = 1
	}
	return &model.SpaceNeed{
		ID:                 n.ID,
		ScenarioID:         scenarioID,
		MissionID:          n.MissionID,
		DayNumber:          day,
		CapabilityType:     n.CapabilityType,
		Priority:           n.Priority,
		StartTime:          start,
		EndTime:            end,
		MissionCriticality: model.MissionCriticality(n.Criticality),
		FallbackCapability: n.FallbackCapability,
		RiskIfDenied:       n.RiskIfDenied,
		TracedPriorityRank: n.TracedPriorityRank,
	}, nil
}

func eventFromYAML(scenarioID string, e eventYAML) (*model.SimEvent, error) {
	eventType := model.SimEventType(e.EventType)
	switch eventType {
	case model.EventSatelliteDestroyed, model.EventSatelliteJammed:
	default:
		return nil, fmt.Errorf("unknown event type %q", e.EventType)
	}
	simTime, err := parseTime(e.SimTime)
	if err != nil {
		return nil, fmt.Errorf("sim_time: %w", err)
	}
	targetType := e.TargetType
	if targetType == "" {
		targetType = "SPACE_ASSET"
	}
	return &model.SimEvent{
		ID:          uuid.NewString(),
		ScenarioID:  scenarioID,
		EventType:   eventType,
		TargetType:  targetType,
		TargetID:    e.TargetID,
		SimTime:     simTime,
		Description: e.Description,
	}, nil
}

func parseTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("missing timestamp")
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %q: %w", raw, err)
	}
	return t.UTC(), nil
}
