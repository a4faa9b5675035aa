// Package orbit derives coverage windows for TLE-bearing space assets by
// SGP4 propagation. Assets with declared windows bypass this entirely.
package orbit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/neg-0/overwatch-sub002/internal/logging"
	"github.com/neg-0/overwatch-sub002/model"
)

// ErrNoTLE indicates the asset carries no two-line element set.
var ErrNoTLE = errors.New("asset has no TLE")

// ErrBadTLE indicates a malformed two-line element set.
var ErrBadTLE = errors.New("malformed TLE")

const tleLineLen = 69

// Site is a ground observation point the asset must be visible from for a
// coverage window to open.
type Site struct {
	Lat   float64 // degrees
	Lon   float64 // degrees
	AltKm float64
}

// Generator turns an asset's TLE into AOS/LOS coverage windows.
type Generator struct {
	log             logging.Logger
	step            time.Duration
	minElevationDeg float64
}

// Option customises a Generator.
type Option func(*Generator)

// WithStep overrides the propagation sample interval.
func WithStep(d time.Duration) Option {
	return func(g *Generator) {
		if d > 0 {
			g.step = d
		}
	}
}

// WithMinElevation overrides the elevation mask, in degrees above the
// horizon.
func WithMinElevation(deg float64) Option {
	return func(g *Generator) { g.minElevationDeg = deg }
}

// New constructs a Generator sampling every 30 seconds with a 10 degree
// elevation mask.
func New(log logging.Logger, opts ...Option) *Generator {
	if log == nil {
		log = logging.Noop()
	}
	g := &Generator{
		log:             log,
		step:            30 * time.Second,
		minElevationDeg: 10,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// Windows propagates the asset across [from, from+span) and returns one
// coverage window per pass over the site, replicated per asset capability so
// the allocator can match on capability type directly.
func (g *Generator) Windows(asset *model.SpaceAsset, site Site, from time.Time, span time.Duration) ([]model.CoverageWindow, error) {
	if asset.TLELine1 == "" || asset.TLELine2 == "" {
		return nil, fmt.Errorf("%w: asset %q", ErrNoTLE, asset.ID)
	}
	if len(asset.TLELine1) != tleLineLen || len(asset.TLELine2) != tleLineLen {
		return nil, fmt.Errorf("%w: asset %q", ErrBadTLE, asset.ID)
	}

	sat := satellite.TLEToSat(asset.TLELine1, asset.TLELine2, satellite.GravityWGS72)
	obs := satellite.LatLong{
		Latitude:  site.Lat * math.Pi / 180,
		Longitude: site.Lon * math.Pi / 180,
	}
	minElevationRad := g.minElevationDeg * math.Pi / 180

	var passes []model.CoverageWindow
	var passStart time.Time
	inPass := false

	end := from.Add(span)
	for t := from; !t.After(end); t = t.Add(g.step) {
		visible := elevationAt(sat, obs, site.AltKm, t) >= minElevationRad

		switch {
		case visible && !inPass:
			passStart = t
			inPass = true
		case !visible && inPass:
			passes = append(passes, model.CoverageWindow{
				AssetID:   asset.ID,
				StartTime: passStart,
				EndTime:   t,
			})
			inPass = false
		}
	}
	if inPass {
		passes = append(passes, model.CoverageWindow{
			AssetID:   asset.ID,
			StartTime: passStart,
			EndTime:   end,
		})
	}

	g.log.Debug(context.Background(), "coverage windows derived",
		logging.String("asset_id", asset.ID),
		logging.Int("passes", len(passes)),
	)

	// One window row per capability; the allocator matches need capability
	// against window capability, not against the asset.
	out := make([]model.CoverageWindow, 0, len(passes)*len(asset.Capabilities))
	for _, capability := range asset.Capabilities {
		for _, p := range passes {
			w := p
			w.CapabilityType = capability
			out = append(out, w)
		}
	}
	return out, nil
}

// elevationAt propagates to t and returns the look-angle elevation from the
// observer, in radians.
func elevationAt(sat satellite.Satellite, obs satellite.LatLong, obsAltKm float64, t time.Time) float64 {
	utc := t.UTC()
	year, month, day := utc.Date()
	hour, min, sec := utc.Clock()

	posECI, _ := satellite.Propagate(sat, year, int(month), day, hour, min, sec)
	jd := satellite.JDay(year, int(month), day, hour, min, sec)
	angles := satellite.ECIToLookAngles(posECI, obs, obsAltKm, jd)
	return angles.El
}
