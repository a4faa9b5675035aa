package model

import "time"

// SimEventType identifies the effect an exogenous event has on its target.
type SimEventType string

const (
	EventSatelliteDestroyed SimEventType = "SATELLITE_DESTROYED"
	EventSatelliteJammed    SimEventType = "SATELLITE_JAMMED"
)

// SimEvent is a discrete scripted event scheduled against simulation time.
// Events are immutable once created; asset status is derived from the latest
// event at or before the current instant, never applied as a delta, so the
// applicator stays idempotent under seek and replay.
type SimEvent struct {
	ID          string
	ScenarioID  string
	EventType   SimEventType
	TargetType  string
	TargetID    string
	SimTime     time.Time
	Description string
}
