package core

import "github.com/neg-0/overwatch-sub002/model"

// Status transition thresholds in hours relative to time-on-target.
// Negative values are before TOT. Each threshold is inclusive: a mission
// sitting exactly on the boundary transitions.
const (
	BriefedAtHours   = -4.0
	LaunchedAtHours  = -2.0
	AirborneAtHours  = -1.5
	OnStationAtHours = -0.5
	EngagedAtHours   = 0.0
	EgressingAtHours = 0.25
	RTBAtHours       = 1.0
	RecoveredAtHours = 3.0
)

// NextStatus maps a mission's current status and its clock position relative
// to TOT onto the next lifecycle stage. It advances at most one stage per
// call, checking only the threshold for the stage that follows the current
// one, so a mission walked tick by tick passes through every stage in order.
// The second return is false when no transition applies; RECOVERED and any
// unrecognized status are terminal.
func NextStatus(current model.MissionStatus, hoursFromTOT float64) (model.MissionStatus, bool) {
	switch current {
	case model.StatusPlanned:
		if hoursFromTOT >= BriefedAtHours {
			return model.StatusBriefed, true
		}
	case model.StatusBriefed:
		if hoursFromTOT >= LaunchedAtHours {
			return model.StatusLaunched, true
		}
	case model.StatusLaunched:
		if hoursFromTOT >= AirborneAtHours {
			return model.StatusAirborne, true
		}
	case model.StatusAirborne:
		if hoursFromTOT >= OnStationAtHours {
			return model.StatusOnStation, true
		}
	case model.StatusOnStation:
		if hoursFromTOT >= EngagedAtHours {
			return model.StatusEngaged, true
		}
	case model.StatusEngaged:
		if hoursFromTOT >= EgressingAtHours {
			return model.StatusEgressing, true
		}
	case model.StatusEgressing:
		if hoursFromTOT >= RTBAtHours {
			return model.StatusRTB, true
		}
	case model.StatusRTB:
		if hoursFromTOT >= RecoveredAtHours {
			return model.StatusRecovered, true
		}
	}
	return current, false
}
