package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/neg-0/overwatch-sub002/model"
)

type assetRow struct {
	ID               string `db:"id"`
	ScenarioID       string `db:"scenario_id"`
	Name             string `db:"name"`
	Status           string `db:"status"`
	CapabilitiesJSON string `db:"capabilities_json"`
	TLELine1         string `db:"tle_line1"`
	TLELine2         string `db:"tle_line2"`
}

type windowRow struct {
	AssetID        string `db:"asset_id"`
	CapabilityType string `db:"capability_type"`
	StartTime      string `db:"start_time"`
	EndTime        string `db:"end_time"`
}

type needRow struct {
	ID                 string        `db:"id"`
	ScenarioID         string        `db:"scenario_id"`
	MissionID          string        `db:"mission_id"`
	DayNumber          int           `db:"day_number"`
	CapabilityType     string        `db:"capability_type"`
	Priority           int           `db:"priority"`
	StartTime          string        `db:"start_time"`
	EndTime            string        `db:"end_time"`
	MissionCriticality string        `db:"mission_criticality"`
	FallbackCapability string        `db:"fallback_capability"`
	RiskIfDenied       string        `db:"risk_if_denied"`
	TracedPriorityRank sql.NullInt64 `db:"traced_priority_rank"`
}

// InsertSpaceAsset writes an asset, its capability set, and any declared
// coverage windows in one transaction.
func (db *DB) InsertSpaceAsset(ctx context.Context, a *model.SpaceAsset) error {
	caps, err := json.Marshal(a.Capabilities)
	if err != nil {
		return fmt.Errorf("marshal capabilities: %w", err)
	}

	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO space_assets (id, scenario_id, name, status, capabilities_json, tle_line1, tle_line2)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.ScenarioID, a.Name, string(a.Status), string(caps), a.TLELine1, a.TLELine2,
	)
	if err != nil {
		return fmt.Errorf("insert asset %s: %w", a.ID, err)
	}

	for _, w := range a.Windows {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO coverage_windows (asset_id, capability_type, start_time, end_time)
			 VALUES (?, ?, ?, ?)`,
			a.ID, w.CapabilityType,
			w.StartTime.UTC().Format(time.RFC3339Nano), w.EndTime.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("insert window for %s: %w", a.ID, err)
		}
	}

	return tx.Commit()
}

// ReplaceCoverageWindows swaps an asset's coverage windows, used when orbit
// propagation regenerates AOS/LOS intervals.
func (db *DB) ReplaceCoverageWindows(ctx context.Context, assetID string, windows []model.CoverageWindow) error {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM coverage_windows WHERE asset_id = ?", assetID); err != nil {
		return err
	}
	for _, w := range windows {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO coverage_windows (asset_id, capability_type, start_time, end_time)
			 VALUES (?, ?, ?, ?)`,
			assetID, w.CapabilityType,
			w.StartTime.UTC().Format(time.RFC3339Nano), w.EndTime.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SpaceAssetsByScenario returns all assets for a scenario with capability
// sets and coverage windows attached.
func (db *DB) SpaceAssetsByScenario(ctx context.Context, scenarioID string) ([]*model.SpaceAsset, error) {
	var rows []assetRow
	err := db.conn.SelectContext(ctx, &rows,
		`SELECT id, scenario_id, name, status, capabilities_json, tle_line1, tle_line2
		 FROM space_assets WHERE scenario_id = ? ORDER BY id`, scenarioID)
	if err != nil {
		return nil, fmt.Errorf("select assets: %w", err)
	}

	assets := make([]*model.SpaceAsset, 0, len(rows))
	for _, r := range rows {
		asset := &model.SpaceAsset{
			ID:         r.ID,
			ScenarioID: r.ScenarioID,
			Name:       r.Name,
			Status:     model.AssetStatus(r.Status),
			TLELine1:   r.TLELine1,
			TLELine2:   r.TLELine2,
		}
		if err := json.Unmarshal([]byte(r.CapabilitiesJSON), &asset.Capabilities); err != nil {
			return nil, fmt.Errorf("asset %s capabilities: %w", r.ID, err)
		}

		var wins []windowRow
		err := db.conn.SelectContext(ctx, &wins,
			`SELECT asset_id, capability_type, start_time, end_time
			 FROM coverage_windows WHERE asset_id = ? ORDER BY start_time`, r.ID)
		if err != nil {
			return nil, fmt.Errorf("select windows for %s: %w", r.ID, err)
		}
		for _, w := range wins {
			start, err := parseTime(w.StartTime)
			if err != nil {
				return nil, fmt.Errorf("window for %s start: %w", r.ID, err)
			}
			end, err := parseTime(w.EndTime)
			if err != nil {
				return nil, fmt.Errorf("window for %s end: %w", r.ID, err)
			}
			asset.Windows = append(asset.Windows, model.CoverageWindow{
				AssetID:        w.AssetID,
				CapabilityType: w.CapabilityType,
				StartTime:      start,
				EndTime:        end,
			})
		}

		assets = append(assets, asset)
	}
	return assets, nil
}

// UpdateAssetStatus persists a derived asset status.
func (db *DB) UpdateAssetStatus(ctx context.Context, assetID string, status model.AssetStatus) error {
	res, err := db.conn.ExecContext(ctx,
		"UPDATE space_assets SET status = ? WHERE id = ?", string(status), assetID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %q", ErrAssetNotFound, assetID)
	}
	return nil
}

// InsertSpaceNeed writes one mission capability need.
func (db *DB) InsertSpaceNeed(ctx context.Context, n *model.SpaceNeed) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO space_needs
		 (id, scenario_id, mission_id, day_number, capability_type, priority, start_time, end_time,
		  mission_criticality, fallback_capability, risk_if_denied, traced_priority_rank)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.ScenarioID, n.MissionID, n.DayNumber, n.CapabilityType, n.Priority,
		n.StartTime.UTC().Format(time.RFC3339Nano), n.EndTime.UTC().Format(time.RFC3339Nano),
		string(n.MissionCriticality), n.FallbackCapability, n.RiskIfDenied,
		nullableInt(n.TracedPriorityRank),
	)
	if err != nil {
		return fmt.Errorf("insert need %s: %w", n.ID, err)
	}
	return nil
}

// NeedsByScenarioDay returns the needs the allocator resolves for one day.
func (db *DB) NeedsByScenarioDay(ctx context.Context, scenarioID string, dayNumber int) ([]*model.SpaceNeed, error) {
	var rows []needRow
	err := db.conn.SelectContext(ctx, &rows,
		`SELECT id, scenario_id, mission_id, day_number, capability_type, priority, start_time, end_time,
		        mission_criticality, fallback_capability, risk_if_denied, traced_priority_rank
		 FROM space_needs WHERE scenario_id = ? AND day_number = ? ORDER BY id`,
		scenarioID, dayNumber)
	if err != nil {
		return nil, fmt.Errorf("select needs: %w", err)
	}

	needs := make([]*model.SpaceNeed, 0, len(rows))
	for _, r := range rows {
		start, err := parseTime(r.StartTime)
		if err != nil {
			return nil, fmt.Errorf("need %s start: %w", r.ID, err)
		}
		end, err := parseTime(r.EndTime)
		if err != nil {
			return nil, fmt.Errorf("need %s end: %w", r.ID, err)
		}
		needs = append(needs, &model.SpaceNeed{
			ID:                 r.ID,
			ScenarioID:         r.ScenarioID,
			MissionID:          r.MissionID,
			DayNumber:          r.DayNumber,
			CapabilityType:     r.CapabilityType,
			Priority:           r.Priority,
			StartTime:          start,
			EndTime:            end,
			MissionCriticality: model.MissionCriticality(r.MissionCriticality),
			FallbackCapability: r.FallbackCapability,
			RiskIfDenied:       r.RiskIfDenied,
			TracedPriorityRank: intPtr(r.TracedPriorityRank),
		})
	}
	return needs, nil
}

// ReplaceAllocations deletes and recreates the allocation and contention
// rows for a scenario day. Allocations are a rebuildable projection, so
// each allocator run owns the full set for its day.
func (db *DB) ReplaceAllocations(ctx context.Context, scenarioID string, dayNumber int, allocations []*model.SpaceAllocation, contentions []*model.ContentionEvent) error {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM space_allocations WHERE scenario_id = ? AND day_number = ?",
		scenarioID, dayNumber); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM contention_events WHERE scenario_id = ? AND day_number = ?",
		scenarioID, dayNumber); err != nil {
		return err
	}

	for _, a := range allocations {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO space_allocations
			 (id, scenario_id, day_number, space_need_id, status, allocated_capability,
			  allocated_asset_id, rationale, risk_level, contention_group)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.ID, a.ScenarioID, a.DayNumber, a.SpaceNeedID, string(a.Status),
			a.AllocatedCapability, a.AllocatedAssetID, a.Rationale, string(a.RiskLevel), a.ContentionGroup,
		)
		if err != nil {
			return fmt.Errorf("insert allocation %s: %w", a.ID, err)
		}
	}

	for _, c := range contentions {
		ids, err := json.Marshal(c.CompetitorNeedIDs)
		if err != nil {
			return fmt.Errorf("marshal competitors: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO contention_events
			 (id, scenario_id, day_number, contention_group, capability_type, start_time, end_time,
			  competitor_need_ids_json, rationale)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.ScenarioID, c.DayNumber, c.ContentionGroup, c.CapabilityType,
			c.StartTime.UTC().Format(time.RFC3339Nano), c.EndTime.UTC().Format(time.RFC3339Nano),
			string(ids), c.Rationale,
		)
		if err != nil {
			return fmt.Errorf("insert contention %s: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

// AllocationsByScenarioDay reads back the allocation rows for one day.
func (db *DB) AllocationsByScenarioDay(ctx context.Context, scenarioID string, dayNumber int) ([]*model.SpaceAllocation, error) {
	type allocRow struct {
		ID                  string `db:"id"`
		ScenarioID          string `db:"scenario_id"`
		DayNumber           int    `db:"day_number"`
		SpaceNeedID         string `db:"space_need_id"`
		Status              string `db:"status"`
		AllocatedCapability string `db:"allocated_capability"`
		AllocatedAssetID    string `db:"allocated_asset_id"`
		Rationale           string `db:"rationale"`
		RiskLevel           string `db:"risk_level"`
		ContentionGroup     string `db:"contention_group"`
	}

	var rows []allocRow
	err := db.conn.SelectContext(ctx, &rows,
		`SELECT id, scenario_id, day_number, space_need_id, status, allocated_capability,
		        allocated_asset_id, rationale, risk_level, contention_group
		 FROM space_allocations WHERE scenario_id = ? AND day_number = ? ORDER BY id`,
		scenarioID, dayNumber)
	if err != nil {
		return nil, fmt.Errorf("select allocations: %w", err)
	}

	out := make([]*model.SpaceAllocation, 0, len(rows))
	for _, r := range rows {
		out = append(out, &model.SpaceAllocation{
			ID:                  r.ID,
			ScenarioID:          r.ScenarioID,
			DayNumber:           r.DayNumber,
			SpaceNeedID:         r.SpaceNeedID,
			Status:              model.AllocationStatus(r.Status),
			AllocatedCapability: r.AllocatedCapability,
			AllocatedAssetID:    r.AllocatedAssetID,
			Rationale:           r.Rationale,
			RiskLevel:           model.RiskLevel(r.RiskLevel),
			ContentionGroup:     r.ContentionGroup,
		})
	}
	return out, nil
}
