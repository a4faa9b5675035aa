package store

import (
	"context"
	"fmt"
	"time"

	"github.com/neg-0/overwatch-sub002/model"
)

type eventRow struct {
	ID          string `db:"id"`
	ScenarioID  string `db:"scenario_id"`
	EventType   string `db:"event_type"`
	TargetType  string `db:"target_type"`
	TargetID    string `db:"target_id"`
	SimTime     string `db:"sim_time"`
	Description string `db:"description"`
}

// InsertEvent writes a scripted event. Events are immutable once created.
func (db *DB) InsertEvent(ctx context.Context, e *model.SimEvent) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO sim_events (id, scenario_id, event_type, target_type, target_id, sim_time, description)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ScenarioID, string(e.EventType), e.TargetType, e.TargetID,
		e.SimTime.UTC().Format(time.RFC3339Nano), e.Description,
	)
	if err != nil {
		return fmt.Errorf("insert event %s: %w", e.ID, err)
	}
	return nil
}

// EventsByScenario returns all scripted events for a scenario ordered by
// simulation time.
func (db *DB) EventsByScenario(ctx context.Context, scenarioID string) ([]*model.SimEvent, error) {
	var rows []eventRow
	err := db.conn.SelectContext(ctx, &rows,
		`SELECT id, scenario_id, event_type, target_type, target_id, sim_time, description
		 FROM sim_events WHERE scenario_id = ? ORDER BY sim_time`, scenarioID)
	if err != nil {
		return nil, fmt.Errorf("select events: %w", err)
	}

	events := make([]*model.SimEvent, 0, len(rows))
	for _, r := range rows {
		at, err := parseTime(r.SimTime)
		if err != nil {
			return nil, fmt.Errorf("event %s sim_time: %w", r.ID, err)
		}
		events = append(events, &model.SimEvent{
			ID:          r.ID,
			ScenarioID:  r.ScenarioID,
			EventType:   model.SimEventType(r.EventType),
			TargetType:  r.TargetType,
			TargetID:    r.TargetID,
			SimTime:     at,
			Description: r.Description,
		})
	}
	return events, nil
}
