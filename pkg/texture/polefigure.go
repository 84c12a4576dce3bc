// Package texture builds pole figures from fitted peak intensities and the
// goniometer orientation logs of each sub run.
package texture

import (
	"fmt"
	"log"
	"math"

	"github.com/function61/gokit/jsonfile"
	"github.com/function61/gokit/logex"
	"github.com/hb2btools/hidractl/pkg/hidra"
	"github.com/hb2btools/hidractl/pkg/peaks"
	"gonum.org/v1/gonum/mat"
)

// one pole figure point: the scattering vector's direction in sample
// coordinates (radians) and the diffracted intensity there
type PolePoint struct {
	SubRun    hidra.SubRun `json:"sub_run"`
	Alpha     float64      `json:"alpha"`
	Beta      float64      `json:"beta"`
	Intensity float64      `json:"intensity"`
}

type PoleFigure struct {
	Tag    string      `json:"tag"`
	Points []PolePoint `json:"points"`
}

// rotates the scattering vector Q from instrument to sample coordinates
// (defined by the goniometer angles, all in degrees) and projects it to the
// polar and azimuthal angles of the pole figure, in radians.
func RotateProjectQ(twoTheta float64, omega float64, chi float64, phi float64) (alpha float64, beta float64) {
	q := mulVec(hidra.RotationZ(-(180-twoTheta)/2), [3]float64{0, 1, 0})

	q = mulVec(hidra.RotationZ(phi), q)
	q = mulVec(hidra.RotationX(chi), q)
	q = mulVec(hidra.RotationZ(-omega), q)

	alpha = math.Acos(q[2]) // against the sample normal
	beta = math.Acos(q[0])

	return alpha, beta
}

// one pole figure point per fitted sub run. sub runs whose fit cost exceeds
// maxChi2 are left out.
func CalculatePoleFigure(ws *hidra.Workspace, col *peaks.Collection, maxChi2 float64, logger *log.Logger) (*PoleFigure, error) {
	logl := logex.Levels(logex.Prefix("texture", logger))

	intensities, _, err := intensityParam(col)
	if err != nil {
		return nil, fmt.Errorf("CalculatePoleFigure: %w", err)
	}

	orientation := map[string][]float64{}
	for _, name := range []string{hidra.LogTwoTheta, hidra.LogOmega, hidra.LogChi, hidra.LogPhi} {
		values, err := ws.Log(name)
		if err != nil {
			return nil, fmt.Errorf("CalculatePoleFigure: %w", err)
		}
		orientation[name] = values
	}

	points := []PolePoint{}
	for row, subRun := range col.SubRuns {
		if math.IsNaN(col.Costs[row]) || col.Costs[row] > maxChi2 {
			logl.Debug.Printf("sub run %s skipped (cost %v)", subRun, col.Costs[row])
			continue
		}

		idx := ws.SubRuns().IndexOf(subRun)
		if idx == -1 {
			return nil, fmt.Errorf("CalculatePoleFigure: collection %s has sub run %s the workspace doesn't", col.Tag, subRun)
		}

		alpha, beta := RotateProjectQ(
			orientation[hidra.LogTwoTheta][idx],
			orientation[hidra.LogOmega][idx],
			orientation[hidra.LogChi][idx],
			orientation[hidra.LogPhi][idx])

		points = append(points, PolePoint{
			SubRun:    subRun,
			Alpha:     alpha,
			Beta:      beta,
			Intensity: intensities[row],
		})
	}

	logl.Info.Printf("peak %s: %d of %d sub runs entered the pole figure", col.Tag, len(points), len(col.SubRuns))

	return &PoleFigure{Tag: col.Tag, Points: points}, nil
}

func Export(figure *PoleFigure, path string) error {
	return jsonfile.Write(path, figure)
}

// fitted peak intensity, falling back to height for collections whose
// profile parametrizes amplitude instead of area
func intensityParam(col *peaks.Collection) ([]float64, []float64, error) {
	if values, errors, err := col.Param("Intensity"); err == nil {
		return values, errors, nil
	}

	return col.Param("Height")
}

func mulVec(m *mat.Dense, v [3]float64) [3]float64 {
	return [3]float64{
		m.At(0, 0)*v[0] + m.At(0, 1)*v[1] + m.At(0, 2)*v[2],
		m.At(1, 0)*v[0] + m.At(1, 1)*v[1] + m.At(1, 2)*v[2],
		m.At(2, 0)*v[0] + m.At(2, 1)*v[1] + m.At(2, 2)*v[2],
	}
}
