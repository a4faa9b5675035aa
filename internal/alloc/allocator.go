// Package alloc resolves a day's mission capability needs against the
// available orbital assets, arbitrating contention by priority.
package alloc

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/neg-0/overwatch-sub002/internal/logging"
	"github.com/neg-0/overwatch-sub002/model"
)

// untracedPriorityRank is the sort rank for needs that carry no traced
// priority reference; it sorts after any traced rank.
const untracedPriorityRank = 99

// Store is the slice of persistence the allocator needs.
type Store interface {
	NeedsByScenarioDay(ctx context.Context, scenarioID string, dayNumber int) ([]*model.SpaceNeed, error)
	SpaceAssetsByScenario(ctx context.Context, scenarioID string) ([]*model.SpaceAsset, error)
	ReplaceAllocations(ctx context.Context, scenarioID string, dayNumber int, allocations []*model.SpaceAllocation, contentions []*model.ContentionEvent) error
}

// MetricsRecorder receives allocation outcome counts; satisfied by the
// Prometheus collector in internal/observability.
type MetricsRecorder interface {
	RecordAllocationRun(fulfilled, degraded, denied, contentions int)
}

// Report is the result of one allocator run.
type Report struct {
	ScenarioID  string                   `json:"scenario_id"`
	DayNumber   int                      `json:"day_number"`
	Allocations []*model.SpaceAllocation `json:"allocations"`
	Contentions []*model.ContentionEvent `json:"contentions"`
	Summary     model.AllocationSummary  `json:"summary"`
}

// Allocator is a stateless batch resolver. Concurrent runs for different
// scenario/day keys are safe; two runs for the same key race on the
// delete-and-recreate rows and must be serialized by the caller.
type Allocator struct {
	store   Store
	log     logging.Logger
	metrics MetricsRecorder
}

// Option customises Allocator construction.
type Option func(*Allocator)

// WithMetrics attaches an outcome recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(a *Allocator) { a.metrics = m }
}

// New constructs an Allocator.
func New(store Store, log logging.Logger, opts ...Option) *Allocator {
	if log == nil {
		log = logging.Noop()
	}
	a := &Allocator{store: store, log: log}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// Allocate resolves all needs for a scenario day, persists the rebuilt
// allocation rows, and returns the report. Zero needs yields an empty,
// valid report.
func (a *Allocator) Allocate(ctx context.Context, scenarioID string, dayNumber int) (*Report, error) {
	ctx, span := otel.Tracer("alloc").Start(ctx, "Allocator.Allocate")
	span.SetAttributes(
		attribute.String("scenario_id", scenarioID),
		attribute.Int("day_number", dayNumber),
	)
	defer span.End()

	needs, err := a.store.NeedsByScenarioDay(ctx, scenarioID, dayNumber)
	if err != nil {
		return nil, fmt.Errorf("load needs: %w", err)
	}

	assets, err := a.store.SpaceAssetsByScenario(ctx, scenarioID)
	if err != nil {
		return nil, fmt.Errorf("load assets: %w", err)
	}
	operational := assets[:0:0]
	for _, asset := range assets {
		if asset.Status == model.AssetOperational {
			operational = append(operational, asset)
		}
	}

	report := &Report{ScenarioID: scenarioID, DayNumber: dayNumber}

	for _, group := range groupByContention(needs) {
		if len(group) == 1 {
			report.Allocations = append(report.Allocations, a.resolveSingle(scenarioID, dayNumber, group[0], operational))
			continue
		}
		allocs, contention := a.resolveContention(scenarioID, dayNumber, group, operational)
		report.Allocations = append(report.Allocations, allocs...)
		report.Contentions = append(report.Contentions, contention)
	}

	report.Summary = summarize(report.Allocations, len(report.Contentions))

	if err := a.store.ReplaceAllocations(ctx, scenarioID, dayNumber, report.Allocations, report.Contentions); err != nil {
		return nil, fmt.Errorf("persist allocations: %w", err)
	}

	if a.metrics != nil {
		a.metrics.RecordAllocationRun(
			report.Summary.Fulfilled, report.Summary.Degraded, report.Summary.Denied,
			report.Summary.ContentionCount)
	}
	a.log.Info(ctx, "allocation run complete",
		logging.String("scenario_id", scenarioID),
		logging.Int("day_number", dayNumber),
		logging.Int("total_needs", report.Summary.TotalNeeds),
		logging.Int("fulfilled", report.Summary.Fulfilled),
		logging.Int("degraded", report.Summary.Degraded),
		logging.Int("denied", report.Summary.Denied),
		logging.String("overall_risk", string(report.Summary.OverallRisk)),
	)

	return report, nil
}

// groupByContention sorts needs by (capability, startTime) and merges runs
// whose start falls inside the running group's time envelope: the classic
// interval-merge sweep, kept explicit so tie-break order stays
// deterministic.
func groupByContention(needs []*model.SpaceNeed) [][]*model.SpaceNeed {
	if len(needs) == 0 {
		return nil
	}

	sorted := make([]*model.SpaceNeed, len(needs))
	copy(sorted, needs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].CapabilityType != sorted[j].CapabilityType {
			return sorted[i].CapabilityType < sorted[j].CapabilityType
		}
		return sorted[i].StartTime.Before(sorted[j].StartTime)
	})

	var groups [][]*model.SpaceNeed
	current := []*model.SpaceNeed{sorted[0]}
	envelopeEnd := sorted[0].EndTime

	for _, need := range sorted[1:] {
		sameCapability := need.CapabilityType == current[0].CapabilityType
		if sameCapability && !need.StartTime.After(envelopeEnd) {
			current = append(current, need)
			if need.EndTime.After(envelopeEnd) {
				envelopeEnd = need.EndTime
			}
			continue
		}
		groups = append(groups, current)
		current = []*model.SpaceNeed{need}
		envelopeEnd = need.EndTime
	}
	groups = append(groups, current)
	return groups
}

// resolveSingle handles an uncontended need: fulfilled iff an operational
// asset covers it.
func (a *Allocator) resolveSingle(scenarioID string, dayNumber int, need *model.SpaceNeed, operational []*model.SpaceAsset) *model.SpaceAllocation {
	alloc := &model.SpaceAllocation{
		ID:          uuid.NewString(),
		ScenarioID:  scenarioID,
		DayNumber:   dayNumber,
		SpaceNeedID: need.ID,
	}

	if asset := findCoveringAsset(operational, need); asset != nil {
		alloc.Status = model.AllocationFulfilled
		alloc.AllocatedCapability = need.CapabilityType
		alloc.AllocatedAssetID = asset.ID
		alloc.Rationale = fmt.Sprintf("%s coverage available from %s", need.CapabilityType, asset.Name)
		alloc.RiskLevel = model.RiskLow
		return alloc
	}

	alloc.Status = model.AllocationDenied
	alloc.Rationale = fmt.Sprintf("no operational asset covers %s during the requested window", need.CapabilityType)
	if need.MissionCriticality == model.CriticalityCritical {
		alloc.RiskLevel = model.RiskCritical
	} else {
		alloc.RiskLevel = model.RiskModerate
	}
	return alloc
}

// resolveContention arbitrates a group of two or more overlapping needs for
// the same capability. The competitors are ranked by traced priority, then
// mission criticality, then package priority; the top rank is fulfilled and
// the rest degrade to their fallback capability or are denied.
func (a *Allocator) resolveContention(scenarioID string, dayNumber int, group []*model.SpaceNeed, operational []*model.SpaceAsset) ([]*model.SpaceAllocation, *model.ContentionEvent) {
	ranked := make([]*model.SpaceNeed, len(group))
	copy(ranked, group)
	sort.SliceStable(ranked, func(i, j int) bool {
		ri, rj := tracedRank(ranked[i]), tracedRank(ranked[j])
		if ri != rj {
			return ri < rj
		}
		wi, wj := model.CriticalityWeight(ranked[i].MissionCriticality), model.CriticalityWeight(ranked[j].MissionCriticality)
		if wi != wj {
			return wi < wj
		}
		return ranked[i].Priority < ranked[j].Priority
	})

	groupID := uuid.NewString()
	capability := group[0].CapabilityType
	envelopeStart, envelopeEnd := envelope(group)

	winner := ranked[0]
	allocations := make([]*model.SpaceAllocation, 0, len(ranked))

	winnerAlloc := &model.SpaceAllocation{
		ID:                  uuid.NewString(),
		ScenarioID:          scenarioID,
		DayNumber:           dayNumber,
		SpaceNeedID:         winner.ID,
		Status:              model.AllocationFulfilled,
		AllocatedCapability: capability,
		Rationale:           fmt.Sprintf("highest priority among %d competing needs for %s", len(ranked), capability),
		RiskLevel:           model.RiskLow,
	}
	if asset := findCoveringAsset(operational, winner); asset != nil {
		winnerAlloc.AllocatedAssetID = asset.ID
	}
	allocations = append(allocations, winnerAlloc)

	for _, loser := range ranked[1:] {
		alloc := &model.SpaceAllocation{
			ID:              uuid.NewString(),
			ScenarioID:      scenarioID,
			DayNumber:       dayNumber,
			SpaceNeedID:     loser.ID,
			ContentionGroup: groupID,
		}
		if loser.FallbackCapability != "" {
			alloc.Status = model.AllocationDegraded
			alloc.AllocatedCapability = loser.FallbackCapability
			alloc.Rationale = fmt.Sprintf("outranked for %s; degraded to fallback %s", capability, loser.FallbackCapability)
			if loser.MissionCriticality == model.CriticalityCritical {
				alloc.RiskLevel = model.RiskHigh
			} else {
				alloc.RiskLevel = model.RiskModerate
			}
		} else {
			alloc.Status = model.AllocationDenied
			alloc.Rationale = fmt.Sprintf("outranked for %s with no fallback capability", capability)
			if loser.MissionCriticality == model.CriticalityCritical {
				alloc.RiskLevel = model.RiskCritical
			} else {
				alloc.RiskLevel = model.RiskHigh
			}
		}
		allocations = append(allocations, alloc)
	}
	winnerAlloc.ContentionGroup = groupID

	competitorIDs := make([]string, len(ranked))
	for i, n := range ranked {
		competitorIDs[i] = n.ID
	}

	contention := &model.ContentionEvent{
		ID:                uuid.NewString(),
		ScenarioID:        scenarioID,
		DayNumber:         dayNumber,
		ContentionGroup:   groupID,
		CapabilityType:    capability,
		StartTime:         envelopeStart,
		EndTime:           envelopeEnd,
		CompetitorNeedIDs: competitorIDs,
		Rationale:         fmt.Sprintf("need %s won %s: %s", winner.ID, capability, rankingRationale(ranked)),
	}
	return allocations, contention
}

func summarize(allocations []*model.SpaceAllocation, contentionCount int) model.AllocationSummary {
	summary := model.AllocationSummary{
		TotalNeeds:      len(allocations),
		ContentionCount: contentionCount,
		OverallRisk:     model.RiskLow,
	}

	criticalDenial := false
	for _, alloc := range allocations {
		switch alloc.Status {
		case model.AllocationFulfilled:
			summary.Fulfilled++
		case model.AllocationDegraded:
			summary.Degraded++
		case model.AllocationDenied:
			summary.Denied++
			if alloc.RiskLevel == model.RiskCritical {
				criticalDenial = true
			}
		}
	}

	switch {
	case criticalDenial:
		summary.OverallRisk = model.RiskCritical
	case summary.Denied > 0:
		summary.OverallRisk = model.RiskHigh
	case summary.Degraded > 0:
		summary.OverallRisk = model.RiskModerate
	}
	return summary
}

func tracedRank(n *model.SpaceNeed) int {
	if n.TracedPriorityRank == nil {
		return untracedPriorityRank
	}
	return *n.TracedPriorityRank
}

func envelope(group []*model.SpaceNeed) (time.Time, time.Time) {
	start, end := group[0].StartTime, group[0].EndTime
	for _, n := range group[1:] {
		if n.StartTime.Before(start) {
			start = n.StartTime
		}
		if n.EndTime.After(end) {
			end = n.EndTime
		}
	}
	return start, end
}

// findCoveringAsset returns an operational asset offering the capability
// with a coverage window overlapping the need's interval, or nil.
func findCoveringAsset(operational []*model.SpaceAsset, need *model.SpaceNeed) *model.SpaceAsset {
	for _, asset := range operational {
		if !asset.HasCapability(need.CapabilityType) {
			continue
		}
		for _, w := range asset.Windows {
			if w.CapabilityType != need.CapabilityType {
				continue
			}
			if !w.StartTime.After(need.EndTime) && !w.EndTime.Before(need.StartTime) {
				return asset
			}
		}
	}
	return nil
}

func rankingRationale(ranked []*model.SpaceNeed) string {
	parts := make([]string, len(ranked))
	for i, n := range ranked {
		rank := "untraced"
		if n.TracedPriorityRank != nil {
			rank = fmt.Sprintf("rank %d", *n.TracedPriorityRank)
		}
		parts[i] = fmt.Sprintf("%s (%s, %s, pkg %d)", n.ID, rank, n.MissionCriticality, n.Priority)
	}
	return strings.Join(parts, " > ")
}
