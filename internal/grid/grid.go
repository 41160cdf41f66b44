// Package grid generates the unenriched receiver sample points around a
// transmitter: a distance × azimuth radial grid, plus a phyllotaxis layout
// for area sampling.
package grid

import (
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/sells-group/rfprofile-cli/internal/model"
	"github.com/sells-group/rfprofile-cli/internal/projection"
)

// distanceEpsilon absorbs floating accumulation when stepping up to the maximum distance.
const distanceEpsilon = 1e-6

// Options configures Generate.
type Options struct {
	MaxDistanceKM  float64 `json:"max_distance_km"`
	StepKM         float64 `json:"distance_step_km"`
	NumAzimuths    int     `json:"num_azimuths"`
	IncludeTxPoint bool    `json:"include_tx_point"`
}

// Validate fails fast on parameters the grid cannot be built from.
func (o Options) Validate() error {
	if o.MaxDistanceKM < 0 || math.IsNaN(o.MaxDistanceKM) {
		return &model.ValidationError{Field: "max_distance_km", Reason: "must be >= 0"}
	}
	if !(o.StepKM > 0) {
		return &model.ValidationError{Field: "distance_step_km", Reason: "must be > 0"}
	}
	if o.NumAzimuths <= 0 {
		return &model.ValidationError{Field: "num_azimuths", Reason: "must be > 0"}
	}
	return nil
}

// Distances returns min, min+step, ... up to and including max (within
// distanceEpsilon).
func Distances(minKM, maxKM, stepKM float64) ([]float64, error) {
	if minKM < 0 || maxKM < 0 {
		return nil, &model.ValidationError{Field: "distance", Reason: "distances must be >= 0"}
	}
	if minKM > maxKM {
		return nil, &model.ValidationError{Field: "distance", Reason: fmt.Sprintf("min %v exceeds max %v", minKM, maxKM)}
	}
	if !(stepKM > 0) {
		return nil, &model.ValidationError{Field: "distance_step_km", Reason: "must be > 0"}
	}

	n := int(math.Floor((maxKM-minKM)/stepKM+distanceEpsilon)) + 1
	out := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		d := minKM + float64(i)*stepKM
		if d > maxKM+distanceEpsilon {
			break
		}
		out = append(out, d)
	}
	return out, nil
}

// Azimuths returns count bearings evenly spaced from start, each reduced into [0, 360).
func Azimuths(count int, startDeg float64) ([]float64, error) {
	if count <= 0 {
		return nil, &model.ValidationError{Field: "num_azimuths", Reason: "must be > 0"}
	}
	if startDeg < 0 || startDeg >= 360 {
		return nil, &model.ValidationError{Field: "start_deg", Reason: "must be in [0, 360)"}
	}
	spacing := 360 / float64(count)
	out := make([]float64, count)
	for i := range out {
		out[i] = math.Mod(startDeg+float64(i)*spacing, 360)
	}
	return out, nil
}

// Generate builds the full receiver grid for tx.
func Generate(tx model.Transmitter, opts Options) ([]model.SamplePoint, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	distances, err := Distances(0, opts.MaxDistanceKM, opts.StepKM)
	if err != nil {
		return nil, err
	}
	azimuths, err := Azimuths(opts.NumAzimuths, 0)
	if err != nil {
		return nil, err
	}
	return Radial(tx, distances, azimuths, opts.IncludeTxPoint)
}

// Radial places one receiver at every (distance, azimuth) pair. Offsets are
// applied in the transmitter's local planar system: x = r·sin θ, y = r·cos θ
// with θ measured clockwise from north. Receiver ids run 1..N in
// distance-major order; the optional transmitter point has id 0 and no
// azimuth. The result is sorted by distance then azimuth.
func Radial(tx model.Transmitter, distancesKM, azimuthsDeg []float64, includeTx bool) ([]model.SamplePoint, error) {
	if len(distancesKM) == 0 || len(azimuthsDeg) == 0 {
		return nil, &model.ValidationError{Field: "grid", Reason: "distances and azimuths must not be empty"}
	}
	for _, d := range distancesKM {
		if d < 0 || math.IsNaN(d) {
			return nil, &model.ValidationError{Field: "distance", Reason: fmt.Sprintf("%v must be >= 0", d)}
		}
	}
	for _, az := range azimuthsDeg {
		if az < 0 || az >= 360 || math.IsNaN(az) {
			return nil, &model.ValidationError{Field: "azimuth", Reason: fmt.Sprintf("%v must be in [0, 360)", az)}
		}
	}
	if !tx.Location.Valid() {
		return nil, &model.ValidationError{Field: "location", Reason: "transmitter coordinate is invalid"}
	}

	pj, err := projection.New(tx.Location)
	if err != nil {
		return nil, err
	}
	defer pj.Close()

	x0, y0, err := pj.ToLocal(tx.Location)
	if err != nil {
		return nil, err
	}

	points := make([]model.SamplePoint, 0, len(distancesKM)*len(azimuthsDeg)+1)
	if includeTx {
		points = append(points, model.NewSamplePoint(tx.ID, model.TransmitterReceiverID, 0, math.NaN(), tx.Location))
	}

	rxID := 1
	for _, d := range distancesKM {
		r := d * 1000
		for _, az := range azimuthsDeg {
			theta := az * math.Pi / 180
			loc, err := pj.ToGeographic(x0+r*math.Sin(theta), y0+r*math.Cos(theta))
			if err != nil {
				return nil, err
			}
			points = append(points, model.NewSamplePoint(tx.ID, rxID, d, az, loc))
			rxID++
		}
	}

	sortPoints(points)

	zap.L().Debug("grid: generated receiver points",
		zap.String("tx_id", tx.ID),
		zap.Int("distances", len(distancesKM)),
		zap.Int("azimuths", len(azimuthsDeg)),
		zap.Int("points", len(points)),
		zap.Int("utm_epsg", pj.EPSG()),
	)
	return points, nil
}

// sortPoints orders by distance, then azimuth; the transmitter point (no
// azimuth) sorts before every receiver at distance 0.
func sortPoints(points []model.SamplePoint) {
	sort.SliceStable(points, func(i, j int) bool {
		a, b := points[i], points[j]
		if a.DistanceKM != b.DistanceKM {
			return a.DistanceKM < b.DistanceKM
		}
		if !a.HasAzimuth() || !b.HasAzimuth() {
			return !a.HasAzimuth() && b.HasAzimuth()
		}
		return a.AzimuthDeg < b.AzimuthDeg
	})
}
