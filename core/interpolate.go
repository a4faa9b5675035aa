package core

import (
	"errors"
	"time"

	"github.com/neg-0/overwatch-sub002/geo"
	"github.com/neg-0/overwatch-sub002/model"
)

// ErrNotInterpolatable indicates a route has too few waypoints to place the
// mission along it.
var ErrNotInterpolatable = errors.New("route not interpolatable: fewer than 2 waypoints")

// Nominal transit speeds in knots, applied when the route does not declare
// its own speed.
const (
	NominalAirSpeedKts      = 450.0
	NominalMaritimeSpeedKts = 20.0
	NominalLandSpeedKts     = 120.0
)

// PreTOTTransitFraction is the share of total route duration assumed to be
// flown before time-on-target: mission start = TOT − 30% of duration.
//
// TODO: evaluate per-domain values once mission-type timing data is in hand;
// the single fixed fraction is a heuristic carried from the planning model.
const PreTOTTransitFraction = 0.3

// NominalSpeedKts returns the fallback transit speed for a domain.
func NominalSpeedKts(domain model.MissionDomain) float64 {
	switch domain {
	case model.DomainMaritime:
		return NominalMaritimeSpeedKts
	case model.DomainLand:
		return NominalLandSpeedKts
	default:
		return NominalAirSpeedKts
	}
}

// InterpolatePosition places a mission along its route at the given instant.
//
// The route is anchored so that PreTOTTransitFraction of its duration is
// flown before TOT. Before the derived start time the mission sits at the
// first waypoint; after the route completes it sits at the last. Between,
// lat/lon/altitude are linearly interpolated within the leg bracketing the
// elapsed fraction, and heading is the great-circle bearing of that leg.
func InterpolatePosition(waypoints []model.Waypoint, now time.Time, domain model.MissionDomain, tot time.Time) (*model.Position, error) {
	if len(waypoints) < 2 {
		return nil, ErrNotInterpolatable
	}

	points := make([]geo.Point, len(waypoints))
	for i, wp := range waypoints {
		points[i] = geo.Point{Lat: wp.Lat, Lon: wp.Lon}
	}
	totalNm := geo.RouteLengthNm(points)

	speed := NominalSpeedKts(domain)
	if waypoints[0].SpeedKts > 0 {
		speed = waypoints[0].SpeedKts
	}

	durationHours := totalNm / speed
	duration := time.Duration(durationHours * float64(time.Hour))
	start := tot.Add(-time.Duration(PreTOTTransitFraction * float64(duration)))

	fraction := 0.0
	if duration > 0 {
		fraction = float64(now.Sub(start)) / float64(duration)
	}
	if fraction < 0 {
		fraction = 0
	} else if fraction > 1 {
		fraction = 1
	}

	targetNm := fraction * totalNm

	// Walk the cumulative-distance table to the leg containing targetNm.
	cumulative := 0.0
	for i := 1; i < len(waypoints); i++ {
		a := waypoints[i-1]
		b := waypoints[i]
		legNm := geo.DistanceNm(a.Lat, a.Lon, b.Lat, b.Lon)

		if cumulative+legNm >= targetNm || i == len(waypoints)-1 {
			legFraction := 0.0
			if legNm > 0 {
				legFraction = (targetNm - cumulative) / legNm
			}
			if legFraction < 0 {
				legFraction = 0
			} else if legFraction > 1 {
				legFraction = 1
			}

			return &model.Position{
				Lat:        a.Lat + (b.Lat-a.Lat)*legFraction,
				Lon:        a.Lon + (b.Lon-a.Lon)*legFraction,
				AltitudeFt: a.AltitudeFt + (b.AltitudeFt-a.AltitudeFt)*legFraction,
				HeadingDeg: geo.BearingDeg(a.Lat, a.Lon, b.Lat, b.Lon),
				SpeedKts:   speed,
			}, nil
		}
		cumulative += legNm
	}

	// Unreachable: the loop always returns on the final leg.
	last := waypoints[len(waypoints)-1]
	return &model.Position{Lat: last.Lat, Lon: last.Lon, AltitudeFt: last.AltitudeFt, SpeedKts: speed}, nil
}
