// Package stress derives strain and residual-stress fields from fitted
// peak positions across sample scans.
package stress

import (
	"fmt"
	"math"
)

// one scalar quantity (strain, stress, d-reference) sampled over scan
// positions. Values[i] belongs to the point (X[i], Y[i], Z[i]).
type ScalarField struct {
	Name   string    `json:"name"`
	Values []float64 `json:"values"`
	Errors []float64 `json:"errors"`
	X      []float64 `json:"x"`
	Y      []float64 `json:"y"`
	Z      []float64 `json:"z"`
}

func NewScalarField(name string, values []float64, errors []float64, x []float64, y []float64, z []float64) (*ScalarField, error) {
	n := len(values)
	if len(errors) != n || len(x) != n || len(y) != n || len(z) != n {
		return nil, fmt.Errorf("field %s: inconsistent lengths (%d values, %d errors, %d/%d/%d coordinates)",
			name, n, len(errors), len(x), len(y), len(z))
	}

	return &ScalarField{Name: name, Values: values, Errors: errors, X: x, Y: y, Z: z}, nil
}

func (f *ScalarField) Len() int {
	return len(f.Values)
}

// all fields entering one stress calculation must sample the same points
func (f *ScalarField) samePointsAs(other *ScalarField) error {
	if f.Len() != other.Len() {
		return fmt.Errorf("fields %s and %s sample %d vs %d points", f.Name, other.Name, f.Len(), other.Len())
	}

	for i := range f.X {
		if f.X[i] != other.X[i] || f.Y[i] != other.Y[i] || f.Z[i] != other.Z[i] {
			return fmt.Errorf("fields %s and %s disagree on point %d", f.Name, other.Name, i)
		}
	}

	return nil
}

func constantField(name string, template *ScalarField, value float64) *ScalarField {
	values := make([]float64, template.Len())
	errors := make([]float64, template.Len())
	for i := range values {
		values[i] = value
	}

	return &ScalarField{Name: name, Values: values, Errors: errors, X: template.X, Y: template.Y, Z: template.Z}
}

// strain along one scanning direction, measured in one run
type StrainField struct {
	RunNumber int
	Field     *ScalarField // dimensionless strain

	// reference spacing the strain was computed against, NaN where unknown
	DReference       []float64
	DReferenceErrors []float64
}

// strain from measured lattice spacings: (d - d0) / d0, with uncertainties
// propagated from both the measurement and the reference.
func StrainFromDSpacing(runNumber int, d []float64, dErrors []float64, d0 []float64, d0Errors []float64, x []float64, y []float64, z []float64) (*StrainField, error) {
	if len(d0) != len(d) || len(d0Errors) != len(d) {
		return nil, fmt.Errorf("strain for run %d: %d d-spacings but %d references", runNumber, len(d), len(d0))
	}

	values := make([]float64, len(d))
	errors := make([]float64, len(d))
	for i := range d {
		values[i] = (d[i] - d0[i]) / d0[i]
		errors[i] = math.Hypot(dErrors[i]/d0[i], d[i]*d0Errors[i]/(d0[i]*d0[i]))
	}

	field, err := NewScalarField(fmt.Sprintf("strain run %d", runNumber), values, errors, x, y, z)
	if err != nil {
		return nil, err
	}

	return &StrainField{
		RunNumber:        runNumber,
		Field:            field,
		DReference:       d0,
		DReferenceErrors: d0Errors,
	}, nil
}
