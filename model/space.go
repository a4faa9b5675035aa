package model

import "time"

// AssetStatus is the operational state of a space asset.
type AssetStatus string

const (
	AssetOperational AssetStatus = "OPERATIONAL"
	AssetDegraded    AssetStatus = "DEGRADED"
	AssetMaintenance AssetStatus = "MAINTENANCE"
	AssetLost        AssetStatus = "LOST"
)

// MissionCriticality ranks how essential a need is to its parent mission.
type MissionCriticality string

const (
	CriticalityCritical  MissionCriticality = "CRITICAL"
	CriticalityEssential MissionCriticality = "ESSENTIAL"
	CriticalityEnhancing MissionCriticality = "ENHANCING"
	CriticalityRoutine   MissionCriticality = "ROUTINE"
)

// CriticalityWeight maps criticality to a sort weight, lower meaning more
// critical. Unknown values sort last.
func CriticalityWeight(c MissionCriticality) int {
	switch c {
	case CriticalityCritical:
		return 0
	case CriticalityEssential:
		return 1
	case CriticalityEnhancing:
		return 2
	case CriticalityRoutine:
		return 3
	default:
		return 4
	}
}

// RiskLevel grades the consequence of an allocation outcome.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskModerate RiskLevel = "MODERATE"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// SpaceNeed is a mission's request for an orbital capability over a time
// window. Created during document ingestion; read-only to the allocator.
type SpaceNeed struct {
	ID             string
	ScenarioID     string
	MissionID      string
	DayNumber      int
	CapabilityType string
	// Priority is the package priority rank, 1 being highest.
	Priority           int
	StartTime          time.Time
	EndTime            time.Time
	MissionCriticality MissionCriticality
	FallbackCapability string
	RiskIfDenied       string
	// TracedPriorityRank links back to a commander's priority entry when
	// one was traced during ingestion; nil when untraced.
	TracedPriorityRank *int
}

// CoverageWindow is one AOS/LOS interval during which an asset can provide
// a capability.
type CoverageWindow struct {
	AssetID        string
	CapabilityType string
	StartTime      time.Time
	EndTime        time.Time
}

// SpaceAsset is an orbital platform offering one or more capability types
// across its coverage windows. Status is mutated by the event applicator.
type SpaceAsset struct {
	ID           string
	ScenarioID   string
	Name         string
	Status       AssetStatus
	Capabilities []string
	Windows      []CoverageWindow
	// TLELine1/TLELine2 carry a two-line element set for assets whose
	// coverage is derived by orbit propagation instead of declared windows.
	TLELine1 string
	TLELine2 string
}

// HasCapability reports whether the asset offers the given capability type.
func (a *SpaceAsset) HasCapability(capability string) bool {
	for _, c := range a.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}

// AllocationStatus is the outcome of resolving a single need.
type AllocationStatus string

const (
	AllocationFulfilled AllocationStatus = "FULFILLED"
	AllocationDegraded  AllocationStatus = "DEGRADED"
	AllocationDenied    AllocationStatus = "DENIED"
)

// SpaceAllocation is one resolved need. Allocations are a derived
// projection rebuilt from scratch on every allocator run for a day.
type SpaceAllocation struct {
	ID                  string           `json:"id"`
	ScenarioID          string           `json:"scenario_id"`
	DayNumber           int              `json:"day_number"`
	SpaceNeedID         string           `json:"space_need_id"`
	Status              AllocationStatus `json:"status"`
	AllocatedCapability string           `json:"allocated_capability"`
	AllocatedAssetID    string           `json:"allocated_asset_id"`
	Rationale           string           `json:"rationale"`
	RiskLevel           RiskLevel        `json:"risk_level"`
	// ContentionGroup ties together allocations resolved in the same
	// contention group; empty for uncontended needs resolved alone.
	ContentionGroup string `json:"contention_group,omitempty"`
}

// ContentionEvent summarizes one contention group: the capability fought
// over, the merged time envelope, and the competitors in resolution order.
type ContentionEvent struct {
	ID              string    `json:"id"`
	ScenarioID      string    `json:"scenario_id"`
	DayNumber       int       `json:"day_number"`
	ContentionGroup string    `json:"contention_group"`
	CapabilityType  string    `json:"capability_type"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	// CompetitorNeedIDs lists the contending need IDs in rank order; the
	// first entry is the winner.
	CompetitorNeedIDs []string `json:"competitor_need_ids"`
	Rationale         string   `json:"rationale"`
}

// AllocationSummary aggregates one allocator run.
type AllocationSummary struct {
	TotalNeeds      int       `json:"total_needs"`
	Fulfilled       int       `json:"fulfilled"`
	Degraded        int       `json:"degraded"`
	Denied          int       `json:"denied"`
	ContentionCount int       `json:"contention_count"`
	OverallRisk     RiskLevel `json:"overall_risk"`
}
