package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/neg-0/overwatch-sub002/model"
)

type missionRow struct {
	ID         string `db:"id"`
	ScenarioID string `db:"scenario_id"`
	Callsign   string `db:"callsign"`
	Domain     string `db:"domain"`
	Status     string `db:"status"`
	DayNumber  int    `db:"day_number"`
}

type waypointRow struct {
	MissionID  string  `db:"mission_id"`
	Seq        int     `db:"seq"`
	Lat        float64 `db:"lat"`
	Lon        float64 `db:"lon"`
	AltitudeFt float64 `db:"altitude_ft"`
	SpeedKts   float64 `db:"speed_kts"`
}

type timeWindowRow struct {
	ID         string `db:"id"`
	MissionID  string `db:"mission_id"`
	WindowType string `db:"window_type"`
	StartTime  string `db:"start_time"`
	EndTime    string `db:"end_time"`
}

type targetRow struct {
	ID        string  `db:"id"`
	MissionID string  `db:"mission_id"`
	Name      string  `db:"name"`
	Lat       float64 `db:"lat"`
	Lon       float64 `db:"lon"`
}

// InsertMission writes a mission and its waypoints, windows, and targets in
// one transaction.
func (db *DB) InsertMission(ctx context.Context, m *model.Mission) error {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO missions (id, scenario_id, callsign, domain, status, day_number)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.ScenarioID, m.Callsign, string(m.Domain), string(m.Status), m.DayNumber,
	)
	if err != nil {
		return fmt.Errorf("insert mission %s: %w", m.ID, err)
	}

	for _, wp := range m.Waypoints {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO waypoints (mission_id, seq, lat, lon, altitude_ft, speed_kts)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			m.ID, wp.Seq, wp.Lat, wp.Lon, wp.AltitudeFt, wp.SpeedKts,
		)
		if err != nil {
			return fmt.Errorf("insert waypoint %s/%d: %w", m.ID, wp.Seq, err)
		}
	}

	for _, w := range m.Windows {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO time_windows (id, mission_id, window_type, start_time, end_time)
			 VALUES (?, ?, ?, ?, ?)`,
			w.ID, m.ID, w.WindowType, w.StartTime.UTC().Format(time.RFC3339Nano), w.EndTime.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("insert window %s: %w", w.ID, err)
		}
	}

	for _, tg := range m.Targets {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO targets (id, mission_id, name, lat, lon) VALUES (?, ?, ?, ?, ?)`,
			tg.ID, m.ID, tg.Name, tg.Lat, tg.Lon,
		)
		if err != nil {
			return fmt.Errorf("insert target %s: %w", tg.ID, err)
		}
	}

	return tx.Commit()
}

// MissionsByScenario returns all missions for a scenario with their
// waypoints (ordered by seq), time windows, and targets attached.
func (db *DB) MissionsByScenario(ctx context.Context, scenarioID string) ([]*model.Mission, error) {
	var rows []missionRow
	err := db.conn.SelectContext(ctx, &rows,
		"SELECT id, scenario_id, callsign, domain, status, day_number FROM missions WHERE scenario_id = ? ORDER BY id",
		scenarioID,
	)
	if err != nil {
		return nil, fmt.Errorf("select missions: %w", err)
	}

	missions := make([]*model.Mission, 0, len(rows))
	for _, r := range rows {
		m := &model.Mission{
			ID:         r.ID,
			ScenarioID: r.ScenarioID,
			Callsign:   r.Callsign,
			Domain:     model.MissionDomain(r.Domain),
			Status:     model.MissionStatus(r.Status),
			DayNumber:  r.DayNumber,
		}

		var wps []waypointRow
		err := db.conn.SelectContext(ctx, &wps,
			"SELECT mission_id, seq, lat, lon, altitude_ft, speed_kts FROM waypoints WHERE mission_id = ? ORDER BY seq",
			r.ID,
		)
		if err != nil {
			return nil, fmt.Errorf("select waypoints for %s: %w", r.ID, err)
		}
		for _, wp := range wps {
			m.Waypoints = append(m.Waypoints, model.Waypoint{
				Seq: wp.Seq, Lat: wp.Lat, Lon: wp.Lon, AltitudeFt: wp.AltitudeFt, SpeedKts: wp.SpeedKts,
			})
		}

		var wins []timeWindowRow
		err = db.conn.SelectContext(ctx, &wins,
			"SELECT id, mission_id, window_type, start_time, end_time FROM time_windows WHERE mission_id = ? ORDER BY start_time",
			r.ID,
		)
		if err != nil {
			return nil, fmt.Errorf("select windows for %s: %w", r.ID, err)
		}
		for _, w := range wins {
			start, err := parseTime(w.StartTime)
			if err != nil {
				return nil, fmt.Errorf("window %s start: %w", w.ID, err)
			}
			end, err := parseTime(w.EndTime)
			if err != nil {
				return nil, fmt.Errorf("window %s end: %w", w.ID, err)
			}
			m.Windows = append(m.Windows, model.TimeWindow{
				ID: w.ID, WindowType: w.WindowType, StartTime: start, EndTime: end,
			})
		}

		var tgs []targetRow
		err = db.conn.SelectContext(ctx, &tgs,
			"SELECT id, mission_id, name, lat, lon FROM targets WHERE mission_id = ?", r.ID)
		if err != nil {
			return nil, fmt.Errorf("select targets for %s: %w", r.ID, err)
		}
		for _, tg := range tgs {
			m.Targets = append(m.Targets, model.Target{ID: tg.ID, Name: tg.Name, Lat: tg.Lat, Lon: tg.Lon})
		}

		missions = append(missions, m)
	}
	return missions, nil
}

// UpdateMissionStatus persists a status transition.
func (db *DB) UpdateMissionStatus(ctx context.Context, missionID string, status model.MissionStatus) error {
	res, err := db.conn.ExecContext(ctx,
		"UPDATE missions SET status = ? WHERE id = ?", string(status), missionID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %q", ErrMissionNotFound, missionID)
	}
	return nil
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

func nullableInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}
