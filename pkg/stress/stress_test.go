package stress

import (
	"math"
	"testing"

	"github.com/function61/gokit/assert"
	"github.com/stretchr/testify/require"
)

// three scan points along vx with uniform strain per direction
func testStrain(t *testing.T, runNumber int, strain float64, d0 float64) *StrainField {
	t.Helper()

	// d that produces the wanted strain against d0
	d := []float64{d0 * (1 + strain), d0 * (1 + strain), d0 * (1 + strain)}
	dErrors := []float64{1e-5, 1e-5, 1e-5}
	d0s := []float64{d0, d0, d0}
	d0Errors := []float64{1e-6, 1e-6, 1e-6}

	field, err := StrainFromDSpacing(runNumber, d, dErrors, d0s, d0Errors,
		[]float64{0, 1, 2}, []float64{0, 0, 0}, []float64{0, 0, 0})
	assert.Ok(t, err)

	return field
}

func TestStrainFromDSpacing(t *testing.T) {
	d := []float64{1.002}
	dErr := []float64{0.001}
	d0 := []float64{1.0}
	d0Err := []float64{0.0}

	field, err := StrainFromDSpacing(1234, d, dErr, d0, d0Err,
		[]float64{0}, []float64{0}, []float64{0})
	assert.Ok(t, err)

	require.InDelta(t, 0.002, field.Field.Values[0], 1e-12)
	require.InDelta(t, 0.001, field.Field.Errors[0], 1e-12)

	_, err = StrainFromDSpacing(1234, d, dErr, []float64{1, 1}, []float64{0, 0},
		[]float64{0}, []float64{0}, []float64{0})
	assert.Assert(t, err != nil)
}

// E = 200 GPa, nu = 1/3 make the Hooke prefactors round numbers:
// E/(1+nu) = 150, nu/(1-2nu) = 1
const (
	testYoungs  = 200.0
	testPoisson = 1.0 / 3.0
)

func TestDiagonalStress(t *testing.T) {
	field, err := NewField(Diagonal,
		testStrain(t, 1234, 0.001, 1.0),
		testStrain(t, 1235, 0.002, 1.0),
		testStrain(t, 1236, 0.003, 1.0),
		testYoungs, testPoisson)
	assert.Ok(t, err)

	// sigma_11 = 150 * (0.001 + 1 * 0.006)
	require.InDelta(t, 1.05, field.Stress[0].Values[0], 1e-9)
	require.InDelta(t, 1.20, field.Stress[1].Values[0], 1e-9)
	require.InDelta(t, 1.35, field.Stress[2].Values[0], 1e-9)
	require.Greater(t, field.Stress[0].Errors[0], 0.0)
}

func TestInPlaneStrain(t *testing.T) {
	field, err := NewField(InPlaneStrain,
		testStrain(t, 1234, 0.001, 1.0),
		testStrain(t, 1235, 0.002, 1.0),
		nil,
		testYoungs, testPoisson)
	assert.Ok(t, err)

	// strain along 33 is identically zero, its stress is not
	require.Equal(t, 0.0, field.Strain[2].Field.Values[0])
	require.InDelta(t, 150*0.003, field.Stress[2].Values[0], 1e-9)
}

func TestInPlaneStress(t *testing.T) {
	field, err := NewField(InPlaneStress,
		testStrain(t, 1234, 0.001, 1.0),
		testStrain(t, 1235, 0.002, 1.0),
		nil,
		testYoungs, testPoisson)
	assert.Ok(t, err)

	// sigma_33 = 0 forces eps_33 = -nu/(1-nu) * (eps_11 + eps_22)
	require.InDelta(t, -0.0015, field.Strain[2].Field.Values[0], 1e-9)
	require.Equal(t, 0.0, field.Stress[2].Values[0])

	// plane-stress Hooke: sigma_11 = 150 * (0.001 + 0.5 * 0.003)
	require.InDelta(t, 0.375, field.Stress[0].Values[0], 1e-9)
}

func TestNewFieldValidation(t *testing.T) {
	strain := testStrain(t, 1234, 0.001, 1.0)

	// diagonal requires a 33 strain
	_, err := NewField(Diagonal, strain, strain, nil, testYoungs, testPoisson)
	assert.Assert(t, err != nil)

	// in-plane types must not get one
	_, err = NewField(InPlaneStrain, strain, strain, strain, testYoungs, testPoisson)
	assert.Assert(t, err != nil)

	_, err = NewField(InPlaneStrain, nil, strain, nil, testYoungs, testPoisson)
	assert.Assert(t, err != nil)
}

func TestParseType(t *testing.T) {
	parsed, err := ParseType("in-plane-stress")
	assert.Ok(t, err)
	assert.Assert(t, parsed == InPlaneStress)

	_, err = ParseType("sideways")
	assert.Assert(t, err != nil)
}

func TestFacadeSelection(t *testing.T) {
	field, err := NewField(Diagonal,
		testStrain(t, 1234, 0.001, 1.0),
		testStrain(t, 1235, 0.002, 1.0),
		testStrain(t, 1236, 0.003, 1.0),
		testYoungs, testPoisson)
	assert.Ok(t, err)

	facade := NewFacade(field)

	_, err = facade.Strain()
	assert.Assert(t, err != nil) // nothing selected yet

	assert.Ok(t, facade.Select("22"))
	strain, err := facade.Strain()
	assert.Ok(t, err)
	require.InDelta(t, 0.002, strain.Values[0], 1e-12)

	sigma, err := facade.Stress()
	assert.Ok(t, err)
	require.InDelta(t, 1.20, sigma.Values[0], 1e-9)

	// selecting by run number resolves to that run's strain
	assert.Ok(t, facade.Select("1236"))
	strain, err = facade.Strain()
	assert.Ok(t, err)
	require.InDelta(t, 0.003, strain.Values[0], 1e-12)

	// but stress needs a direction
	_, err = facade.Stress()
	assert.Assert(t, err != nil)

	assert.Assert(t, facade.Select("9999") != nil)

	assert.Assert(t, len(facade.AllRuns()) == 3)
	assert.Assert(t, facade.YoungsModulus() == testYoungs)
}

func TestFacadeRunsInPlane(t *testing.T) {
	field, err := NewField(InPlaneStress,
		testStrain(t, 1234, 0.001, 1.0),
		testStrain(t, 1235, 0.002, 1.0),
		nil,
		testYoungs, testPoisson)
	assert.Ok(t, err)

	facade := NewFacade(field)

	runs, err := facade.Runs("33")
	assert.Ok(t, err)
	assert.Assert(t, len(runs) == 0)

	runs, err = facade.Runs("11")
	assert.Ok(t, err)
	assert.Assert(t, len(runs) == 1)
	assert.EqualString(t, runs[0], "1234")
}

func TestConsensusDReference(t *testing.T) {
	nan := math.NaN()

	strainWithD0 := func(runNumber int, d0 []float64) *StrainField {
		strain := testStrain(t, runNumber, 0.001, 1.0)
		strain.DReference = d0
		strain.DReferenceErrors = []float64{1e-6, 1e-6, 1e-6}

		return strain
	}

	// directions fill in each other's unknown points
	field, err := NewField(Diagonal,
		strainWithD0(1234, []float64{1.0, nan, nan}),
		strainWithD0(1235, []float64{nan, 1.1, nan}),
		strainWithD0(1236, []float64{1.0, 1.1, nan}),
		testYoungs, testPoisson)
	assert.Ok(t, err)

	d0, err := NewFacade(field).DReference()
	assert.Ok(t, err)

	require.InDelta(t, 1.0, d0.Values[0], 1e-12)
	require.InDelta(t, 1.1, d0.Values[1], 1e-12)
	assert.Assert(t, math.IsNaN(d0.Values[2]))

	// disagreeing references are an error
	field, err = NewField(Diagonal,
		strainWithD0(1234, []float64{1.0, 1.0, 1.0}),
		strainWithD0(1235, []float64{1.2, 1.0, 1.0}),
		strainWithD0(1236, []float64{1.0, 1.0, 1.0}),
		testYoungs, testPoisson)
	assert.Ok(t, err)

	_, err = NewFacade(field).DReference()
	assert.Assert(t, err != nil)
}
