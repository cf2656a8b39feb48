package channel

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/jeongseonghan/ntn-linksim/internal/dsp"
)

// SpeedOfLightKmS is the propagation speed used for delay and Doppler.
const SpeedOfLightKmS = 299792.458

const (
	wgs84A = 6378137.0         // semi-major axis (m)
	wgs84F = 1 / 298.257223563 // flattening
)

// GroundStation is the terrestrial end of the link.
type GroundStation struct {
	LatDeg          float64 `json:"lat_deg" yaml:"lat_deg"`
	LonDeg          float64 `json:"lon_deg" yaml:"lon_deg"`
	AltM            float64 `json:"alt_m" yaml:"alt_m"`
	MinElevationDeg float64 `json:"min_elevation_deg" yaml:"min_elevation_deg"`
}

// LinkState is the satellite-to-ground geometry at one instant.
type LinkState struct {
	Time         time.Time `json:"time"`
	RangeKm      float64   `json:"range_km"`
	RangeRateKmS float64   `json:"range_rate_km_s"`
	ElevationDeg float64   `json:"elevation_deg"`
	DopplerHz    float64   `json:"doppler_hz"`
	DelayS       float64   `json:"delay_s"`
	Visible      bool      `json:"visible"`
}

// LEOLink predicts Doppler and propagation delay between an SGP4-propagated
// satellite and a ground station.
type LEOLink struct {
	sat       satellite.Satellite
	station   GroundStation
	carrierHz float64

	// ground station, ECEF km
	gs vec3
	// local geodetic up unit vector
	up vec3
}

type vec3 struct{ X, Y, Z float64 }

func (a vec3) sub(b vec3) vec3      { return vec3{a.X - b.X, a.Y - b.Y, a.Z - b.Z} }
func (a vec3) dot(b vec3) float64   { return a.X*b.X + a.Y*b.Y + a.Z*b.Z }
func (a vec3) norm() float64        { return math.Sqrt(a.dot(a)) }
func (a vec3) scale(s float64) vec3 { return vec3{a.X * s, a.Y * s, a.Z * s} }

// NewLEOLink parses a two-line element set and binds it to a ground station
// and carrier frequency.
func NewLEOLink(tle1, tle2 string, gs GroundStation, carrierHz float64) (*LEOLink, error) {
	if err := checkTLE(tle1, tle2); err != nil {
		return nil, err
	}
	if gs.LatDeg < -90 || gs.LatDeg > 90 {
		return nil, fmt.Errorf("%w: latitude %g out of range", dsp.ErrInvalidArgument, gs.LatDeg)
	}
	if gs.LonDeg < -180 || gs.LonDeg > 360 {
		return nil, fmt.Errorf("%w: longitude %g out of range", dsp.ErrInvalidArgument, gs.LonDeg)
	}
	if carrierHz <= 0 {
		return nil, fmt.Errorf("%w: carrier frequency must be positive", dsp.ErrInvalidArgument)
	}

	latRad := gs.LatDeg * math.Pi / 180
	lonRad := gs.LonDeg * math.Pi / 180
	return &LEOLink{
		sat:       satellite.TLEToSat(tle1, tle2, satellite.GravityWGS72),
		station:   gs,
		carrierHz: carrierHz,
		gs:        geodeticToECEF(gs.LatDeg, gs.LonDeg, gs.AltM).scale(1e-3),
		up: vec3{
			X: math.Cos(latRad) * math.Cos(lonRad),
			Y: math.Cos(latRad) * math.Sin(lonRad),
			Z: math.Sin(latRad),
		},
	}, nil
}

// Station returns the ground station the link was built for.
func (l *LEOLink) Station() GroundStation { return l.station }

// CarrierHz returns the carrier frequency used for Doppler.
func (l *LEOLink) CarrierHz() float64 { return l.carrierHz }

// At evaluates the link geometry at t. Range rate is a central difference of
// the slant range over ±1 s; DopplerHz is -carrier·rangeRate/c, positive
// while the satellite approaches.
func (l *LEOLink) At(t time.Time) (LinkState, error) {
	pos, err := l.positionECEF(t)
	if err != nil {
		return LinkState{}, err
	}
	before, err := l.positionECEF(t.Add(-time.Second))
	if err != nil {
		return LinkState{}, err
	}
	after, err := l.positionECEF(t.Add(time.Second))
	if err != nil {
		return LinkState{}, err
	}

	los := pos.sub(l.gs)
	rangeKm := los.norm()
	rangeRate := (after.sub(l.gs).norm() - before.sub(l.gs).norm()) / 2

	elevation := 90.0
	if rangeKm > 0 {
		cosZenith := math.Max(-1, math.Min(1, los.dot(l.up)/rangeKm))
		elevation = 90 - math.Acos(cosZenith)*180/math.Pi
	}

	return LinkState{
		Time:         t,
		RangeKm:      rangeKm,
		RangeRateKmS: rangeRate,
		ElevationDeg: elevation,
		DopplerHz:    -l.carrierHz * rangeRate / SpeedOfLightKmS,
		DelayS:       rangeKm / SpeedOfLightKmS,
		Visible:      elevation >= l.station.MinElevationDeg,
	}, nil
}

// positionECEF propagates the satellite to t and rotates the result to
// Earth-fixed coordinates, in km.
func (l *LEOLink) positionECEF(t time.Time) (vec3, error) {
	t = t.UTC()
	year, month, day := t.Date()
	hour, minute, sec := t.Clock()

	posECI, _ := satellite.Propagate(l.sat, year, int(month), day, hour, minute, sec)
	gmst := satellite.ThetaG_JD(satellite.JDay(year, int(month), day, hour, minute, sec))
	ecef := satellite.ECIToECEF(posECI, gmst)

	p := vec3{X: ecef.X, Y: ecef.Y, Z: ecef.Z}
	if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsNaN(p.Z) {
		return vec3{}, fmt.Errorf("sgp4 propagation failed at %s", t.Format(time.RFC3339))
	}
	return p, nil
}

// geodeticToECEF converts WGS84 latitude/longitude/altitude to ECEF metres.
func geodeticToECEF(latDeg, lonDeg, altM float64) vec3 {
	e2 := 2*wgs84F - wgs84F*wgs84F

	latRad := latDeg * math.Pi / 180
	lonRad := lonDeg * math.Pi / 180
	sinLat, cosLat := math.Sin(latRad), math.Cos(latRad)

	n := wgs84A / math.Sqrt(1-e2*sinLat*sinLat)
	return vec3{
		X: (n + altM) * cosLat * math.Cos(lonRad),
		Y: (n + altM) * cosLat * math.Sin(lonRad),
		Z: (n*(1-e2) + altM) * sinLat,
	}
}

// checkTLE rejects element sets the SGP4 parser cannot read. go-satellite
// exits the process on a field it fails to parse, so every field is checked
// here exactly as ParseTLE slices and cleans it. Checksums are not enforced.
func checkTLE(tle1, tle2 string) error {
	if len(tle1) < 69 || len(tle2) < 69 {
		return fmt.Errorf("%w: tle lines must be at least 69 characters", dsp.ErrInvalidArgument)
	}
	if !strings.HasPrefix(tle1, "1 ") || !strings.HasPrefix(tle2, "2 ") {
		return fmt.Errorf("%w: tle lines must start with \"1 \" and \"2 \"", dsp.ErrInvalidArgument)
	}
	if strings.TrimSpace(tle1[2:7]) != strings.TrimSpace(tle2[2:7]) {
		return fmt.Errorf("%w: tle catalog numbers differ", dsp.ErrInvalidArgument)
	}

	ints := []struct {
		name string
		text string
	}{
		{"catalog number", strings.TrimSpace(tle1[2:7])},
		{"epoch year", tle1[18:20]},
	}
	for _, f := range ints {
		if _, err := strconv.ParseInt(f.text, 10, 0); err != nil {
			return fmt.Errorf("%w: tle %s %q is not an integer", dsp.ErrInvalidArgument, f.name, f.text)
		}
	}

	floats := []struct {
		name string
		text string
	}{
		{"epoch day", tle1[20:32]},
		{"mean motion derivative", squeeze(tle1[33:43])},
		{"mean motion second derivative", squeeze(tle1[44:45] + "." + tle1[45:50] + "e" + tle1[50:52])},
		{"bstar", squeeze(tle1[53:54] + "." + tle1[54:59] + "e" + tle1[59:61])},
		{"inclination", squeeze(tle2[8:16])},
		{"raan", squeeze(tle2[17:25])},
		{"eccentricity", "." + tle2[26:33]},
		{"argument of perigee", squeeze(tle2[34:42])},
		{"mean anomaly", squeeze(tle2[43:51])},
		{"mean motion", squeeze(tle2[52:63])},
	}
	for _, f := range floats {
		if _, err := strconv.ParseFloat(f.text, 64); err != nil {
			return fmt.Errorf("%w: tle %s %q is not numeric", dsp.ErrInvalidArgument, f.name, f.text)
		}
	}
	return nil
}

// squeeze drops up to two spaces, matching the SGP4 parser's field cleanup.
func squeeze(s string) string {
	return strings.Replace(s, " ", "", 2)
}
