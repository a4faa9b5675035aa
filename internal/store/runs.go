package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/neg-0/overwatch-sub002/model"
)

type runRow struct {
	ScenarioID       string  `db:"scenario_id"`
	ID               string  `db:"id"`
	Status           string  `db:"status"`
	SimTime          string  `db:"sim_time"`
	RealStartTime    string  `db:"real_start_time"`
	CompressionRatio float64 `db:"compression_ratio"`
	CurrentDayNumber int     `db:"current_day_number"`
}

// LoadRun reads the checkpoint row for a scenario. Returns ErrRunNotFound
// when no checkpoint has ever been written.
func (db *DB) LoadRun(ctx context.Context, scenarioID string) (*model.SimulationRun, error) {
	var r runRow
	err := db.conn.GetContext(ctx, &r,
		`SELECT scenario_id, id, status, sim_time, real_start_time, compression_ratio, current_day_number
		 FROM simulation_runs WHERE scenario_id = ?`, scenarioID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: scenario %q", ErrRunNotFound, scenarioID)
	}
	if err != nil {
		return nil, fmt.Errorf("load run: %w", err)
	}

	simTime, err := parseTime(r.SimTime)
	if err != nil {
		return nil, fmt.Errorf("run sim_time: %w", err)
	}
	realStart, err := parseTime(r.RealStartTime)
	if err != nil {
		return nil, fmt.Errorf("run real_start_time: %w", err)
	}

	return &model.SimulationRun{
		ID:               r.ID,
		ScenarioID:       r.ScenarioID,
		Status:           model.RunStatus(r.Status),
		SimTime:          simTime,
		RealStartTime:    realStart,
		CompressionRatio: r.CompressionRatio,
		CurrentDayNumber: r.CurrentDayNumber,
	}, nil
}

// SaveRun upserts the single checkpoint row for the run's scenario.
func (db *DB) SaveRun(ctx context.Context, run *model.SimulationRun) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT OR REPLACE INTO simulation_runs
		 (scenario_id, id, status, sim_time, real_start_time, compression_ratio, current_day_number)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ScenarioID, run.ID, string(run.Status),
		run.SimTime.UTC().Format(time.RFC3339Nano),
		run.RealStartTime.UTC().Format(time.RFC3339Nano),
		run.CompressionRatio, run.CurrentDayNumber,
	)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}
