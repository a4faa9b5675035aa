package core

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/neg-0/overwatch-sub002/model"
)

var testTOT = time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)

// twoPointRoute is a ~120 nm due-north leg: at 450 kt the route takes about
// 16 minutes, so start ≈ TOT − 4.8 min.
func twoPointRoute() []model.Waypoint {
	return []model.Waypoint{
		{Seq: 1, Lat: 30, Lon: 50, AltitudeFt: 0},
		{Seq: 2, Lat: 32, Lon: 50, AltitudeFt: 30000},
	}
}

func TestInterpolatePosition_TooFewWaypoints(t *testing.T) {
	for _, wps := range [][]model.Waypoint{nil, {}, {{Lat: 1, Lon: 2}}} {
		_, err := InterpolatePosition(wps, testTOT, model.DomainAir, testTOT)
		if !errors.Is(err, ErrNotInterpolatable) {
			t.Errorf("InterpolatePosition(%d waypoints) err = %v, want ErrNotInterpolatable", len(wps), err)
		}
	}
}

func TestInterpolatePosition_BeforeStartSitsAtFirstWaypoint(t *testing.T) {
	wps := twoPointRoute()
	pos, err := InterpolatePosition(wps, testTOT.Add(-24*time.Hour), model.DomainAir, testTOT)
	if err != nil {
		t.Fatalf("InterpolatePosition: %v", err)
	}
	if pos.Lat != wps[0].Lat || pos.Lon != wps[0].Lon {
		t.Errorf("position = (%v, %v), want first waypoint (%v, %v)", pos.Lat, pos.Lon, wps[0].Lat, wps[0].Lon)
	}
	if pos.AltitudeFt != wps[0].AltitudeFt {
		t.Errorf("altitude = %v, want %v", pos.AltitudeFt, wps[0].AltitudeFt)
	}
}

func TestInterpolatePosition_AfterCompletionSitsAtLastWaypoint(t *testing.T) {
	wps := twoPointRoute()
	pos, err := InterpolatePosition(wps, testTOT.Add(24*time.Hour), model.DomainAir, testTOT)
	if err != nil {
		t.Fatalf("InterpolatePosition: %v", err)
	}
	last := wps[len(wps)-1]
	if math.Abs(pos.Lat-last.Lat) > 1e-9 || math.Abs(pos.Lon-last.Lon) > 1e-9 {
		t.Errorf("position = (%v, %v), want last waypoint (%v, %v)", pos.Lat, pos.Lon, last.Lat, last.Lon)
	}
}

func TestInterpolatePosition_MidLegInterpolates(t *testing.T) {
	wps := twoPointRoute()

	// Derive the route timing the same way the interpolator does, then ask
	// for the halfway instant.
	routeNm := 2 * 60.04 // ~2 degrees of latitude
	durHours := routeNm / NominalAirSpeedKts
	dur := time.Duration(durHours * float64(time.Hour))
	start := testTOT.Add(-time.Duration(PreTOTTransitFraction * float64(dur)))
	halfway := start.Add(dur / 2)

	pos, err := InterpolatePosition(wps, halfway, model.DomainAir, testTOT)
	if err != nil {
		t.Fatalf("InterpolatePosition: %v", err)
	}
	if math.Abs(pos.Lat-31) > 0.01 {
		t.Errorf("halfway lat = %v, want ~31", pos.Lat)
	}
	if math.Abs(pos.AltitudeFt-15000) > 200 {
		t.Errorf("halfway altitude = %v, want ~15000", pos.AltitudeFt)
	}
	if math.Abs(pos.HeadingDeg-0) > 1 {
		t.Errorf("heading = %v, want ~0 (due north)", pos.HeadingDeg)
	}
	if pos.SpeedKts != NominalAirSpeedKts {
		t.Errorf("speed = %v, want nominal air %v", pos.SpeedKts, NominalAirSpeedKts)
	}
}

func TestInterpolatePosition_WaypointSpeedOverridesNominal(t *testing.T) {
	wps := twoPointRoute()
	wps[0].SpeedKts = 300

	pos, err := InterpolatePosition(wps, testTOT, model.DomainAir, testTOT)
	if err != nil {
		t.Fatalf("InterpolatePosition: %v", err)
	}
	if pos.SpeedKts != 300 {
		t.Errorf("speed = %v, want waypoint override 300", pos.SpeedKts)
	}
}

func TestInterpolatePosition_DomainNominalSpeeds(t *testing.T) {
	cases := []struct {
		domain model.MissionDomain
		want   float64
	}{
		{model.DomainAir, 450},
		{model.DomainMaritime, 20},
		{model.DomainLand, 120},
		{model.DomainSpace, 450},
	}
	for _, tc := range cases {
		if got := NominalSpeedKts(tc.domain); got != tc.want {
			t.Errorf("NominalSpeedKts(%v) = %v, want %v", tc.domain, got, tc.want)
		}
	}
}

func TestInterpolatePosition_MultiLegWalksCumulativeTable(t *testing.T) {
	// Three legs heading north; at TOT the mission has flown 30% of the
	// route per the pre-TOT transit assumption.
	wps := []model.Waypoint{
		{Seq: 1, Lat: 10, Lon: 20},
		{Seq: 2, Lat: 11, Lon: 20},
		{Seq: 3, Lat: 12, Lon: 20},
		{Seq: 4, Lat: 13, Lon: 20},
	}
	pos, err := InterpolatePosition(wps, testTOT, model.DomainAir, testTOT)
	if err != nil {
		t.Fatalf("InterpolatePosition: %v", err)
	}
	// 30% of 3 degrees = 0.9 degrees north of the first waypoint.
	if math.Abs(pos.Lat-10.9) > 0.02 {
		t.Errorf("lat at TOT = %v, want ~10.9", pos.Lat)
	}
}
