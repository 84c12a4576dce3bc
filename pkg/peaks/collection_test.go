package peaks

import (
	"math"
	"testing"

	"github.com/function61/gokit/assert"
	"github.com/hb2btools/hidractl/pkg/hidra"
)

func testCollection(t *testing.T) *Collection {
	t.Helper()

	col := NewCollection("Si111", hidra.ProfileGaussian, hidra.BackgroundLinear)

	// params: Height, PeakCentre, Sigma, A0, A1
	err := col.SetFit(
		hidra.SubRuns{1, 2, 3},
		[][]float64{
			{100, 90.01, 0.3, 1, 0},
			{20, 93.50, 0.3, 1, 0}, // center way off
			{120, 90.02, 0.3, 1, 0},
		},
		[][]float64{
			{1, 0.001, 0.01, 0.1, 0.01},
			{5, 0.100, 0.10, 0.1, 0.01},
			{1, 0.001, 0.01, 0.1, 0.01},
		},
		[]float64{1.2, 48.0, 1.5})
	assert.Ok(t, err)

	return col
}

func TestSetFitShapeChecks(t *testing.T) {
	col := NewCollection("Si111", hidra.ProfileGaussian, hidra.BackgroundLinear)

	err := col.SetFit(hidra.SubRuns{1}, [][]float64{{1, 2}}, [][]float64{{1, 2}}, []float64{1})
	assert.Assert(t, err != nil)
	assert.EqualString(t, err.Error(), "collection Si111: sub run 0001 has 2/2 parameters, want 5")

	err = col.SetFit(hidra.SubRuns{1, 2}, [][]float64{{1, 2, 3, 4, 5}}, [][]float64{{1, 2, 3, 4, 5}}, []float64{1})
	assert.Assert(t, err != nil)
}

func TestParam(t *testing.T) {
	col := testCollection(t)

	centers, centerErrors, err := col.Param("PeakCentre")
	assert.Ok(t, err)
	assert.Assert(t, centers[0] == 90.01)
	assert.Assert(t, centerErrors[1] == 0.1)

	_, _, err = col.Param("Bogus")
	assert.Assert(t, err != nil)
}

func TestApplyCostCriterion(t *testing.T) {
	col := testCollection(t)

	rejected := col.ApplyCostCriterion(10)
	assert.Assert(t, rejected == 1)

	heights, _, err := col.Param("Height")
	assert.Ok(t, err)
	assert.Assert(t, !math.IsNaN(heights[0]))
	assert.Assert(t, math.IsNaN(heights[1]))
	assert.Assert(t, !math.IsNaN(heights[2]))

	// sub run stays listed even though values are rejected
	assert.Assert(t, len(col.SubRuns) == 3)
}

func TestApplyPositionCriterion(t *testing.T) {
	col := testCollection(t)

	rejected, err := col.ApplyPositionCriterion(90.0, 0.5)
	assert.Ok(t, err)
	assert.Assert(t, rejected == 1)

	centers, _, _ := col.Param("PeakCentre")
	assert.Assert(t, math.IsNaN(centers[1]))
}

func TestFiltered(t *testing.T) {
	col := testCollection(t)

	subRuns, costs, values, _ := col.Filtered(10)

	assert.Assert(t, len(subRuns) == 2)
	assert.Assert(t, subRuns[0] == 1 && subRuns[1] == 3)
	assert.Assert(t, costs[1] == 1.5)
	assert.Assert(t, values[1][0] == 120)
}

func TestDSpacingCenters(t *testing.T) {
	col := testCollection(t)

	dValues, dErrors, err := col.DSpacingCenters([]float64{1.54})
	assert.Ok(t, err)

	expected := 1.54 * 0.5 / math.Sin(90.01*0.5*math.Pi/180)
	assert.Assert(t, math.Abs(dValues[0]-expected) < 1e-12)
	assert.Assert(t, dErrors[0] > 0)

	_, _, err = col.DSpacingCenters([]float64{1.54, 1.54})
	assert.Assert(t, err != nil)
}

func TestSubRunParams(t *testing.T) {
	col := testCollection(t)

	params, err := col.SubRunParams(3)
	assert.Ok(t, err)
	assert.Assert(t, params["Height"] == 120)
	assert.Assert(t, params["A0"] == 1)

	_, err = col.SubRunParams(9)
	assert.Assert(t, err != nil)
}
