package stress

import (
	"fmt"
	"math"
)

type Type string

const (
	// strains measured along all three directions
	Diagonal Type = "diagonal"
	// thick samples: strain along 33 is zero, stress along 33 is not
	InPlaneStrain Type = "in-plane-strain"
	// thin samples: stress along 33 is zero, strain along 33 follows from 11 and 22
	InPlaneStress Type = "in-plane-stress"
)

func ParseType(s string) (Type, error) {
	switch Type(s) {
	case Diagonal, InPlaneStrain, InPlaneStress:
		return Type(s), nil
	default:
		return "", fmt.Errorf("unknown stress type: %s (supported: %s, %s, %s)", s, Diagonal, InPlaneStrain, InPlaneStress)
	}
}

// residual stress along the three principal directions, from Hooke's law:
//
//	sigma_ii = E/(1+nu) * (eps_ii + nu/(1-2nu) * (eps_11 + eps_22 + eps_33))
type Field struct {
	Type          Type
	YoungsModulus float64 // GPa, so stresses come out in GPa
	PoissonRatio  float64

	Strain [3]*StrainField // 11, 22, 33
	Stress [3]*ScalarField
}

// the 33 strain argument is required for Diagonal and must be nil otherwise
// (it is derived for InPlaneStress and identically zero for InPlaneStrain)
func NewField(stressType Type, strain11, strain22, strain33 *StrainField, youngsModulus float64, poissonRatio float64) (*Field, error) {
	if strain11 == nil || strain22 == nil {
		return nil, fmt.Errorf("stress: strains along 11 and 22 are always required")
	}
	if (strain33 != nil) != (stressType == Diagonal) {
		return nil, fmt.Errorf("stress: strain along 33 must be given exactly when type is %s (got type %s)", Diagonal, stressType)
	}
	if poissonRatio >= 0.5 && stressType != InPlaneStress {
		return nil, fmt.Errorf("stress: poisson ratio %v makes 1-2nu non-positive", poissonRatio)
	}

	switch stressType {
	case InPlaneStrain:
		strain33 = &StrainField{Field: constantField("strain 33", strain11.Field, 0)}
	case InPlaneStress:
		derived, err := inPlaneStressStrain33(strain11, strain22, poissonRatio)
		if err != nil {
			return nil, err
		}
		strain33 = derived
	}

	for _, other := range []*ScalarField{strain22.Field, strain33.Field} {
		if err := strain11.Field.samePointsAs(other); err != nil {
			return nil, fmt.Errorf("stress: %w", err)
		}
	}

	f := &Field{
		Type:          stressType,
		YoungsModulus: youngsModulus,
		PoissonRatio:  poissonRatio,
		Strain:        [3]*StrainField{strain11, strain22, strain33},
	}
	f.computeStress()

	return f, nil
}

func (f *Field) computeStress() {
	prefactor := f.YoungsModulus / (1 + f.PoissonRatio)
	coupling := f.PoissonRatio / (1 - 2*f.PoissonRatio)

	numPoints := f.Strain[0].Field.Len()

	for direction := 0; direction < 3; direction++ {
		values := make([]float64, numPoints)
		errors := make([]float64, numPoints)

		for i := 0; i < numPoints; i++ {
			if f.Type == InPlaneStress && direction == 2 {
				continue // sigma_33 = 0 by definition
			}

			trace := 0.0
			for _, strain := range f.Strain {
				trace += strain.Field.Values[i]
			}
			values[i] = prefactor * (f.Strain[direction].Field.Values[i] + coupling*trace)

			// quadrature over the measured strain uncertainties
			variance := 0.0
			for j, strain := range f.Strain {
				partial := coupling
				if j == direction {
					partial += 1
				}
				variance += square(prefactor * partial * strain.Field.Errors[i])
			}
			errors[i] = math.Sqrt(variance)
		}

		f.Stress[direction] = &ScalarField{
			Name:   fmt.Sprintf("stress %s", directionName(direction)),
			Values: values,
			Errors: errors,
			X:      f.Strain[0].Field.X,
			Y:      f.Strain[0].Field.Y,
			Z:      f.Strain[0].Field.Z,
		}
	}
}

// eps_33 = -nu/(1-nu) * (eps_11 + eps_22), forced by sigma_33 = 0
func inPlaneStressStrain33(strain11 *StrainField, strain22 *StrainField, poissonRatio float64) (*StrainField, error) {
	if err := strain11.Field.samePointsAs(strain22.Field); err != nil {
		return nil, fmt.Errorf("stress: %w", err)
	}

	factor := -poissonRatio / (1 - poissonRatio)

	values := make([]float64, strain11.Field.Len())
	errors := make([]float64, strain11.Field.Len())
	for i := range values {
		values[i] = factor * (strain11.Field.Values[i] + strain22.Field.Values[i])
		errors[i] = math.Abs(factor) * math.Hypot(strain11.Field.Errors[i], strain22.Field.Errors[i])
	}

	field, err := NewScalarField("strain 33", values, errors, strain11.Field.X, strain11.Field.Y, strain11.Field.Z)
	if err != nil {
		return nil, err
	}

	return &StrainField{Field: field}, nil
}

func directionName(index int) string {
	return [3]string{"11", "22", "33"}[index]
}

func directionIndex(direction string) (int, error) {
	switch direction {
	case "11":
		return 0, nil
	case "22":
		return 1, nil
	case "33":
		return 2, nil
	default:
		return 0, fmt.Errorf("unknown direction: %s (want 11, 22 or 33)", direction)
	}
}
