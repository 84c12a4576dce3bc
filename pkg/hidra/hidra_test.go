package hidra

import (
	"math"
	"testing"

	"github.com/function61/gokit/assert"
)

func TestSubRunString(t *testing.T) {
	assert.EqualString(t, SubRun(1).String(), "0001")
	assert.EqualString(t, SubRun(42).String(), "0042")
	assert.EqualString(t, SubRun(12345).String(), "12345")
}

func TestSubRunsSorted(t *testing.T) {
	sorted := SubRuns{3, 1, 2}.Sorted()

	assert.Assert(t, sorted[0] == 1)
	assert.Assert(t, sorted[1] == 2)
	assert.Assert(t, sorted[2] == 3)

	assert.Assert(t, sorted.IndexOf(2) == 1)
	assert.Assert(t, sorted.IndexOf(7) == -1)
}

func TestNativeParams(t *testing.T) {
	params := ProfileGaussian.NativeParams()

	assert.Assert(t, len(params) == 3)
	assert.EqualString(t, params[0], "Height")
	assert.EqualString(t, params[1], "PeakCentre")
	assert.EqualString(t, params[2], "Sigma")

	params = ProfilePseudoVoigt.NativeParams()

	assert.Assert(t, len(params) == 4)
	assert.EqualString(t, params[1], "Intensity")

	assert.EqualString(t, BackgroundLinear.NativeParams()[0], "A0")
}

func TestParsePeakProfile(t *testing.T) {
	_, err := ParsePeakProfile("Lorentzian")
	assert.Assert(t, err != nil)

	profile, err := ParsePeakProfile("PseudoVoigt")
	assert.Ok(t, err)
	assert.Assert(t, profile == ProfilePseudoVoigt)
}

func TestDSpacing(t *testing.T) {
	// at 2theta=90 deg, d = lambda / (2 sin 45) = lambda / sqrt(2)
	d, err := DSpacing(1.54, 90)
	assert.Ok(t, err)
	assert.Assert(t, math.Abs(d-1.54/math.Sqrt2) < 1e-12)

	_, err = DSpacing(1.54, 0)
	assert.Assert(t, err != nil)
}

func TestWorkspaceLogAlignment(t *testing.T) {
	ws := NewWorkspace(ProjectInfo{Instrument: "HB2B", RunNumber: 1060})
	ws.SetSubRuns(SubRuns{1, 2, 3})

	assert.Ok(t, ws.SetLog(LogTwoTheta, []float64{80, 90, 100}))

	err := ws.SetLog(LogVx, []float64{0, 1})
	assert.Assert(t, err != nil)
	assert.EqualString(t, err.Error(), "sample log vx has 2 values but there are 3 sub runs")

	value, err := ws.LogValue(LogTwoTheta, 2)
	assert.Ok(t, err)
	assert.Assert(t, value == 90)
}

func TestWorkspaceReduced(t *testing.T) {
	ws := NewWorkspace(ProjectInfo{})
	ws.SetSubRuns(SubRuns{1, 2})

	twoTheta := []float64{80, 81, 82}

	assert.Ok(t, ws.SetReduced(twoTheta, "", [][]float64{
		{1, 2, 3},
		{4, 5, 6},
	}))

	pattern, err := ws.Pattern("", 2)
	assert.Ok(t, err)
	assert.Assert(t, pattern.Intensity[0] == 4)

	_, err = ws.Pattern("maskA", 1)
	assert.Assert(t, err != nil)

	// row length mismatch
	err = ws.SetReduced(twoTheta, "maskA", [][]float64{{1}, {2}})
	assert.Assert(t, err != nil)
}

func TestRotationZ(t *testing.T) {
	// rotating x-unit-vector by 90 deg about z lands on y
	rotated := matVecMulForTest(RotationZ(90), []float64{1, 0, 0})

	assert.Assert(t, math.Abs(rotated[0]) < 1e-15)
	assert.Assert(t, math.Abs(rotated[1]-1) < 1e-15)
	assert.Assert(t, math.Abs(rotated[2]) < 1e-15)
}

func matVecMulForTest(m interface{ At(i, j int) float64 }, v []float64) []float64 {
	out := make([]float64, 3)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i] += m.At(i, j) * v[j]
		}
	}

	return out
}
