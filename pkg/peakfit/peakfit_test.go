package peakfit

import (
	"context"
	"math"
	"testing"

	"github.com/function61/gokit/assert"
	"github.com/hb2btools/hidractl/pkg/hidra"
	"github.com/hb2btools/hidractl/pkg/peaks"
	"github.com/stretchr/testify/require"
)

func syntheticPattern(m model, truth []float64) ([]float64, []float64) {
	x := []float64{}
	y := []float64{}
	for twoTheta := 80.0; twoTheta <= 90.0; twoTheta += 0.05 {
		x = append(x, twoTheta)
		y = append(y, m.eval(truth, twoTheta))
	}

	return x, y
}

func TestGradientsMatchFiniteDifferences(t *testing.T) {
	check := func(m model, params []float64, x float64) {
		grad := make([]float64, len(params))
		m.gradient(params, x, grad)

		for i := range params {
			bumped := append([]float64{}, params...)
			step := 1e-7 * math.Max(math.Abs(params[i]), 1)
			bumped[i] += step
			numeric := (m.eval(bumped, x) - m.eval(params, x)) / step

			require.InDelta(t, numeric, grad[i], 1e-3*math.Max(math.Abs(numeric), 1),
				"parameter %d at x=%v", i, x)
		}
	}

	gaussian := []float64{100, 85, 0.5, 5, 0.1}
	voigt := []float64{0.7, 150, 85, 1.2, 2, 0.05}
	for _, x := range []float64{83.0, 85.0, 85.7} {
		check(&gaussianLinear{}, gaussian, x)
		check(&pseudoVoigtLinear{}, voigt, x)
	}
}

func TestFitGaussian(t *testing.T) {
	truth := []float64{100, 85, 0.5, 5, 0.1}
	m := &gaussianLinear{}
	x, y := syntheticPattern(m, truth)

	result, err := levenbergMarquardt(m, x, y, m.initialGuess(x, y))
	assert.Ok(t, err)

	require.InDelta(t, 100, result.params[0], 0.1) // Height
	require.InDelta(t, 85, result.params[1], 0.01) // PeakCentre
	require.InDelta(t, 0.5, result.params[2], 0.01)
	require.InDelta(t, 5, result.params[3], 0.5)
	require.InDelta(t, 0.1, result.params[4], 0.01)
	require.Less(t, result.chi2, 0.01) // noiseless data
}

func TestFitPseudoVoigt(t *testing.T) {
	truth := []float64{0.7, 150, 85, 1.2, 2, 0.05}
	m := &pseudoVoigtLinear{}
	x, y := syntheticPattern(m, truth)

	result, err := levenbergMarquardt(m, x, y, m.initialGuess(x, y))
	assert.Ok(t, err)

	require.InDelta(t, 0.7, result.params[0], 0.05) // Mixing
	require.InDelta(t, 150, result.params[1], 2)    // Intensity
	require.InDelta(t, 85, result.params[2], 0.01)  // PeakCentre
	require.InDelta(t, 1.2, result.params[3], 0.05) // FWHM
	require.Less(t, result.chi2, 0.05)
}

func TestFitPeaks(t *testing.T) {
	truth := []float64{100, 85, 0.5, 5, 0}
	m := &gaussianLinear{}
	x, y := syntheticPattern(m, truth)

	ws := hidra.NewWorkspace(hidra.ProjectInfo{Instrument: "HB2B", RunNumber: 1060})
	ws.SetSubRuns(hidra.SubRuns{1, 2})
	assert.Ok(t, ws.SetReduced(x, "", [][]float64{y, y}))

	col, err := FitPeaks(context.Background(), ws, "", PeakSpec{
		Tag:        "Si111",
		Profile:    hidra.ProfileGaussian,
		Background: hidra.BackgroundLinear,
		WindowMin:  80,
		WindowMax:  90,
	}, nil)
	assert.Ok(t, err)

	assert.EqualString(t, col.Tag, "Si111")
	assert.Assert(t, len(col.SubRuns) == 2)

	centers, _, err := col.Param("PeakCentre")
	assert.Ok(t, err)
	require.InDelta(t, 85, centers[0], 0.01)
	require.InDelta(t, 85, centers[1], 0.01)
}

func TestFitPeaksConcurrency(t *testing.T) {
	truth := []float64{100, 85, 0.5, 5, 0}
	m := &gaussianLinear{}
	x, y := syntheticPattern(m, truth)

	ws := hidra.NewWorkspace(hidra.ProjectInfo{Instrument: "HB2B", RunNumber: 1060})
	ws.SetSubRuns(hidra.SubRuns{1, 2, 3})
	assert.Ok(t, ws.SetReduced(x, "", [][]float64{y, y, y}))

	fitWith := func(concurrency int) *peaks.Collection {
		col, err := FitPeaks(context.Background(), ws, "", PeakSpec{
			Tag:         "Si111",
			Profile:     hidra.ProfileGaussian,
			Background:  hidra.BackgroundLinear,
			WindowMin:   80,
			WindowMax:   90,
			Concurrency: concurrency,
		}, nil)
		assert.Ok(t, err)

		return col
	}

	serial := fitWith(1)
	parallel := fitWith(2)

	for row := range serial.SubRuns {
		require.Equal(t, serial.Values[row], parallel.Values[row])
		require.Equal(t, serial.Costs[row], parallel.Costs[row])
	}
}

func TestFitPeaksWindowMissesData(t *testing.T) {
	truth := []float64{100, 85, 0.5, 5, 0}
	m := &gaussianLinear{}
	x, y := syntheticPattern(m, truth)

	ws := hidra.NewWorkspace(hidra.ProjectInfo{Instrument: "HB2B", RunNumber: 1060})
	ws.SetSubRuns(hidra.SubRuns{1})
	assert.Ok(t, ws.SetReduced(x, "", [][]float64{y}))

	// window entirely outside the pattern: the fit fails but the run doesn't
	col, err := FitPeaks(context.Background(), ws, "", PeakSpec{
		Tag:        "Fe110",
		Profile:    hidra.ProfileGaussian,
		Background: hidra.BackgroundLinear,
		WindowMin:  120,
		WindowMax:  130,
	}, nil)
	assert.Ok(t, err)

	assert.Assert(t, col.Costs[0] == FailedFitCost)
	assert.Assert(t, math.IsNaN(col.Values[0][0]))
	assert.Assert(t, col.ApplyCostCriterion(10) == 1)
}

func TestFitPeaksValidation(t *testing.T) {
	ws := hidra.NewWorkspace(hidra.ProjectInfo{})

	_, err := FitPeaks(context.Background(), ws, "", PeakSpec{Tag: "", WindowMin: 80, WindowMax: 90}, nil)
	assert.Assert(t, err != nil)

	_, err = FitPeaks(context.Background(), ws, "", PeakSpec{Tag: "x", WindowMin: 90, WindowMax: 80}, nil)
	assert.Assert(t, err != nil)
}

func TestEffectiveParametersGaussian(t *testing.T) {
	// Height, PeakCentre, Sigma, A0, A1
	col := singleFitCollection(t, hidra.ProfileGaussian, []float64{10, 90, 0.5, 1, 0})

	effective, err := EffectiveParameters(col)
	assert.Ok(t, err)

	params, err := effective.SubRunParams(1)
	assert.Ok(t, err)

	require.InDelta(t, 90, params["Center"], 1e-9)
	require.InDelta(t, 10, params["Height"], 1e-9)
	require.InDelta(t, 2*math.Sqrt(2*math.Ln2)*0.5, params["FWHM"], 1e-9)
	require.InDelta(t, 10*0.5*math.Sqrt(2*math.Pi), params["Intensity"], 1e-9)
	require.InDelta(t, 0, params["Mixing"], 1e-9)
}

func TestEffectiveParametersPseudoVoigt(t *testing.T) {
	// Mixing, Intensity, PeakCentre, FWHM, A0, A1
	col := singleFitCollection(t, hidra.ProfilePseudoVoigt, []float64{1.0, 20, 90, 2, 0, 0})

	effective, err := EffectiveParameters(col)
	assert.Ok(t, err)

	params, err := effective.SubRunParams(1)
	assert.Ok(t, err)

	// pure Lorentzian: height = I * 2 / (pi * FWHM)
	require.InDelta(t, 20*2/(math.Pi*2), params["Height"], 1e-9)
	require.InDelta(t, 2, params["FWHM"], 1e-9)
	require.InDelta(t, 1, params["Mixing"], 1e-9)
}

func singleFitCollection(t *testing.T, profile hidra.PeakProfile, values []float64) *peaks.Collection {
	t.Helper()

	col := peaks.NewCollection("Si111", profile, hidra.BackgroundLinear)
	errors := make([]float64, len(values))
	assert.Ok(t, col.SetFit(hidra.SubRuns{1}, [][]float64{values}, [][]float64{errors}, []float64{1}))

	return col
}
