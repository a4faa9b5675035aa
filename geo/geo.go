// Package geo provides spherical-earth navigation math used by the
// position interpolator and the route planners.
package geo

import "math"

// EarthRadiusNm is the mean Earth radius in nautical miles used for all
// great-circle calculations in the simulator.
const EarthRadiusNm = 3440.065

// Point is a geodetic coordinate in decimal degrees.
type Point struct {
	Lat float64
	Lon float64
}

// DistanceNm returns the great-circle distance between two coordinates in
// nautical miles, computed with the haversine formula. It is symmetric, zero
// for identical points, and continuous across the antimeridian.
func DistanceNm(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	sinPhi := math.Sin(dPhi / 2)
	sinLambda := math.Sin(dLambda / 2)

	a := sinPhi*sinPhi + math.Cos(phi1)*math.Cos(phi2)*sinLambda*sinLambda
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusNm * c
}

// BearingDeg returns the initial great-circle bearing from the first
// coordinate to the second, normalized to [0, 360).
func BearingDeg(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	y := math.Sin(dLambda) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(dLambda)

	theta := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(theta+360, 360)
}

// RouteLengthNm sums the consecutive-pair distances along a route. Routes
// with fewer than two points return 1, never 0, so downstream duration math
// can divide by the result safely.
func RouteLengthNm(points []Point) float64 {
	if len(points) < 2 {
		return 1
	}
	total := 0.0
	for i := 1; i < len(points); i++ {
		total += DistanceNm(points[i-1].Lat, points[i-1].Lon, points[i].Lat, points[i].Lon)
	}
	return total
}
