package model

import "time"

// MissionDomain identifies the operating environment of a mission.
type MissionDomain string

const (
	DomainAir      MissionDomain = "AIR"
	DomainMaritime MissionDomain = "MARITIME"
	DomainLand     MissionDomain = "LAND"
	DomainSpace    MissionDomain = "SPACE"
)

// MissionStatus is a stage in the ordered mission lifecycle. Transitions
// between stages are driven by the status machine in package core.
type MissionStatus string

const (
	StatusPlanned   MissionStatus = "PLANNED"
	StatusBriefed   MissionStatus = "BRIEFED"
	StatusLaunched  MissionStatus = "LAUNCHED"
	StatusAirborne  MissionStatus = "AIRBORNE"
	StatusOnStation MissionStatus = "ON_STATION"
	StatusEngaged   MissionStatus = "ENGAGED"
	StatusEgressing MissionStatus = "EGRESSING"
	StatusRTB       MissionStatus = "RTB"
	StatusRecovered MissionStatus = "RECOVERED"
)

// Waypoint is one point on a mission route. Speed is in knots and may be
// zero, in which case the domain's nominal speed applies.
type Waypoint struct {
	Seq        int
	Lat        float64
	Lon        float64
	AltitudeFt float64
	SpeedKts   float64
}

// TimeWindow anchors a mission in time. WindowType "TOT" marks the
// time-on-target anchor used by the interpolator and status machine.
type TimeWindow struct {
	ID         string
	WindowType string
	StartTime  time.Time
	EndTime    time.Time
}

const WindowTypeTOT = "TOT"

// Target is an objective referenced by a mission.
type Target struct {
	ID   string
	Name string
	Lat  float64
	Lon  float64
}

// Mission is a tasked mission moving along a planned route.
//
// Waypoints are ordered by Seq; a route needs at least two waypoints to be
// interpolatable. Status is mutated by the status machine; the interpolated
// position is derived per tick and never persisted.
type Mission struct {
	ID         string
	ScenarioID string
	Callsign   string
	Domain     MissionDomain
	Status     MissionStatus
	DayNumber  int
	Waypoints  []Waypoint
	Windows    []TimeWindow
	Targets    []Target
}

// TimeOnTarget returns the mission's TOT anchor. When no window is typed
// "TOT" the first window's start stands in; ok reports whether any anchor
// was found at all.
func (m *Mission) TimeOnTarget() (time.Time, bool) {
	for _, w := range m.Windows {
		if w.WindowType == WindowTypeTOT {
			return w.StartTime, true
		}
	}
	if len(m.Windows) > 0 {
		return m.Windows[0].StartTime, true
	}
	return time.Time{}, false
}

// Position is the derived location of a mission at an instant.
type Position struct {
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	HeadingDeg float64 `json:"heading_deg"`
	AltitudeFt float64 `json:"altitude_ft"`
	SpeedKts   float64 `json:"speed_kts"`
}
