package reduction

import (
	"context"
	"math"
	"testing"

	"github.com/function61/gokit/assert"
	"github.com/hb2btools/hidractl/pkg/hidra"
	"github.com/hb2btools/hidractl/pkg/nexus"
	"github.com/stretchr/testify/require"
)

// tiny flat panel: at one meter arm length and sub-millimeter pixels, every
// pixel's scattering angle is within a fraction of a degree of the arm angle
func testWorkspace(t *testing.T) *hidra.Workspace {
	t.Helper()

	ws := hidra.NewWorkspace(hidra.ProjectInfo{Instrument: "HB2B", RunNumber: 1060, IPTS: 22731})
	ws.Instrument = &hidra.InstrumentSetup{
		Name:       "HB2B",
		Wavelength: 1.54,
		Detector: hidra.DetectorGeometry{
			NumRows:    2,
			NumColumns: 2,
			PixelSizeX: 0.0005,
			PixelSizeY: 0.0005,
			ArmLength:  1.0,
		},
	}

	ws.SetSubRuns(hidra.SubRuns{1, 2})
	assert.Ok(t, ws.SetLog(hidra.LogTwoTheta, []float64{82, 90}))
	ws.SetRawCounts(1, []uint32{1, 2, 3, 4})
	ws.SetRawCounts(2, []uint32{10, 20, 30, 40})

	return ws
}

func TestPixelTwoTheta(t *testing.T) {
	ws := testWorkspace(t)

	positions := pixelPositions(ws.Instrument.Detector, hidra.Calibration{})
	require.Len(t, positions, 4)

	for _, angle := range pixelTwoTheta(positions, 90) {
		require.InDelta(t, 90, angle, 0.05)
	}
	for _, angle := range pixelTwoTheta(positions, 82) {
		require.InDelta(t, 82, angle, 0.05)
	}
}

func TestPixelTwoThetaCalibrationShift(t *testing.T) {
	ws := testWorkspace(t)

	// moving the panel along the beam changes every pixel's angle
	shifted := pixelPositions(ws.Instrument.Detector, hidra.Calibration{ShiftZ: 0.1})
	nominal := pixelPositions(ws.Instrument.Detector, hidra.Calibration{})

	shiftedAngle := pixelTwoTheta(shifted, 90)[0]
	nominalAngle := pixelTwoTheta(nominal, 90)[0]
	require.NotEqual(t, nominalAngle, shiftedAngle)
	require.InDelta(t, nominalAngle, shiftedAngle, 0.2)
}

func TestReduce(t *testing.T) {
	ws := testWorkspace(t)

	err := Reduce(context.Background(), ws, Options{
		NumBins:     20,
		TwoThetaMin: 79.5,
		TwoThetaMax: 99.5,
		Masks: []*nexus.Mask{
			{Note: "Chi_0", Values: []float64{1, 0, 0, 1}},
		},
	}, nil)
	assert.Ok(t, err)

	// default view plus one mask view
	views := ws.ReducedViews()
	assert.Assert(t, len(views) == 2)

	pattern, err := ws.Pattern("", 1)
	assert.Ok(t, err)
	require.Len(t, pattern.TwoTheta, 20)

	// sub run 1 was taken with the arm at 82 deg: all 10 counts land in the
	// bin centered on 82, every other bin stays zero
	require.InDelta(t, 82.0, pattern.TwoTheta[2], 1e-9)
	require.Equal(t, 10.0, pattern.Intensity[2])
	require.Equal(t, 10.0, sum(pattern.Intensity))

	// sub run 2: arm at 90 deg
	pattern, err = ws.Pattern("", 2)
	assert.Ok(t, err)
	require.Equal(t, 100.0, sum(pattern.Intensity))

	// masked view keeps only the first and last pixel
	masked, err := ws.Pattern("Chi_0", 1)
	assert.Ok(t, err)
	require.Equal(t, 5.0, sum(masked.Intensity))
}

func TestReduceAutoRange(t *testing.T) {
	ws := testWorkspace(t)

	assert.Ok(t, Reduce(context.Background(), ws, Options{NumBins: 100}, nil))

	// auto range spans the detector coverage, so no count is lost
	pattern, err := ws.Pattern("", 2)
	assert.Ok(t, err)
	require.Equal(t, 100.0, sum(pattern.Intensity))

	require.Greater(t, pattern.TwoTheta[0], 81.0)
	require.Less(t, pattern.TwoTheta[99], 91.0)
}

func TestReduceErrors(t *testing.T) {
	// counts vs detector size mismatch
	ws := testWorkspace(t)
	ws.SetRawCounts(1, []uint32{1, 2, 3})
	err := Reduce(context.Background(), ws, Options{}, nil)
	assert.Assert(t, err != nil)

	// mask length mismatch
	ws = testWorkspace(t)
	err = Reduce(context.Background(), ws, Options{
		Masks: []*nexus.Mask{{Note: "bad", Values: []float64{1, 1}}},
	}, nil)
	assert.Assert(t, err != nil)

	// no instrument
	ws = testWorkspace(t)
	ws.Instrument = nil
	assert.Assert(t, Reduce(context.Background(), ws, Options{}, nil) != nil)

	// bad explicit range
	ws = testWorkspace(t)
	err = Reduce(context.Background(), ws, Options{TwoThetaMin: 90, TwoThetaMax: 80}, nil)
	assert.Assert(t, err != nil)
}

func sum(values []float64) float64 {
	total := 0.0
	for _, v := range values {
		total += v
	}

	if math.IsNaN(total) {
		panic("NaN in reduced intensities")
	}

	return total
}
