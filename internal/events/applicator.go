// Package events reconciles scripted simulation events against the current
// simulation instant.
package events

import (
	"context"
	"sort"
	"time"

	"github.com/neg-0/overwatch-sub002/internal/logging"
	"github.com/neg-0/overwatch-sub002/model"
)

// Store is the slice of persistence the applicator needs.
type Store interface {
	EventsByScenario(ctx context.Context, scenarioID string) ([]*model.SimEvent, error)
	UpdateAssetStatus(ctx context.Context, assetID string, status model.AssetStatus) error
}

// Applicator derives per-target status as a function of the latest event at
// or before the current instant. Because status is derived rather than
// delta-applied, re-running after a seek in either direction converges on
// the same state.
type Applicator struct {
	store Store
	log   logging.Logger
}

// New constructs an Applicator.
func New(store Store, log logging.Logger) *Applicator {
	if log == nil {
		log = logging.Noop()
	}
	return &Applicator{store: store, log: log}
}

// ApplyForTime reconciles every event target with the instant. For each
// target referenced by at least one event, the event with the latest
// simTime at or before the instant decides the status; a target whose
// events all lie in the future is reset to its OPERATIONAL baseline.
// Per-target update failures are logged and skipped so one bad event
// cannot abort the batch.
func (a *Applicator) ApplyForTime(ctx context.Context, scenarioID string, instant time.Time) error {
	evts, err := a.store.EventsByScenario(ctx, scenarioID)
	if err != nil {
		return err
	}

	latest := make(map[string]*model.SimEvent)
	hasFuture := make(map[string]bool)
	for _, e := range evts {
		if e.SimTime.After(instant) {
			if _, seen := latest[e.TargetID]; !seen {
				hasFuture[e.TargetID] = true
			}
			continue
		}
		prev, ok := latest[e.TargetID]
		if !ok || e.SimTime.After(prev.SimTime) {
			latest[e.TargetID] = e
			delete(hasFuture, e.TargetID)
		}
	}

	// Deterministic application order keeps logs and tests stable.
	targets := make([]string, 0, len(latest)+len(hasFuture))
	for id := range latest {
		targets = append(targets, id)
	}
	for id := range hasFuture {
		targets = append(targets, id)
	}
	sort.Strings(targets)

	for _, targetID := range targets {
		var status model.AssetStatus
		if e, ok := latest[targetID]; ok {
			status = statusForEvent(e.EventType)
			if status == "" {
				a.log.Warn(ctx, "unknown event type, skipping target",
					logging.String("event_type", string(e.EventType)),
					logging.String("target_id", targetID))
				continue
			}
		} else {
			// Only future events exist for this target: explicit reset to
			// baseline so a seek backward undoes earlier applications.
			status = model.AssetOperational
		}

		if err := a.store.UpdateAssetStatus(ctx, targetID, status); err != nil {
			a.log.Warn(ctx, "event target update failed",
				logging.String("target_id", targetID),
				logging.String("status", string(status)),
				logging.Err(err))
			continue
		}
	}
	return nil
}

func statusForEvent(t model.SimEventType) model.AssetStatus {
	switch t {
	case model.EventSatelliteDestroyed:
		return model.AssetLost
	case model.EventSatelliteJammed:
		return model.AssetDegraded
	default:
		return ""
	}
}
