package stress

import (
	"fmt"
	"math"
	"strconv"
)

// query layer over a stress field: pick a direction ("11", "22", "33") or a
// run number and read the matching strain or stress out.
type Facade struct {
	field *Field

	selection   string
	dReference  *ScalarField // lazily built consensus
	strainByRun map[string]*StrainField
}

func NewFacade(field *Field) *Facade {
	strainByRun := map[string]*StrainField{}
	for direction := 0; direction < 3; direction++ {
		strain := field.Strain[direction]
		if strain.RunNumber != 0 {
			strainByRun[strconv.Itoa(strain.RunNumber)] = strain
		}
	}

	return &Facade{field: field, strainByRun: strainByRun}
}

// choice is a direction or one of the run numbers behind the field
func (f *Facade) Select(choice string) error {
	if _, err := directionIndex(choice); err == nil {
		f.selection = choice
		return nil
	}

	if _, found := f.strainByRun[choice]; !found {
		return fmt.Errorf("selection %s is neither a direction nor a measured run", choice)
	}
	f.selection = choice

	return nil
}

func (f *Facade) Strain() (*ScalarField, error) {
	if f.selection == "" {
		return nil, fmt.Errorf("no selection has been entered")
	}

	if direction, err := directionIndex(f.selection); err == nil {
		return f.field.Strain[direction].Field, nil
	}

	return f.strainByRun[f.selection].Field, nil
}

// stress is only defined per direction, never per run
func (f *Facade) Stress() (*ScalarField, error) {
	direction, err := directionIndex(f.selection)
	if err != nil {
		return nil, fmt.Errorf("selection %q must specify one direction", f.selection)
	}

	return f.field.Stress[direction], nil
}

// run numbers measured along one direction. the 33 direction has no runs of
// its own unless strains were measured along all three directions.
func (f *Facade) Runs(direction string) ([]string, error) {
	index, err := directionIndex(direction)
	if err != nil {
		return nil, err
	}

	if f.field.Type != Diagonal && direction == "33" {
		return []string{}, nil
	}

	strain := f.field.Strain[index]
	if strain.RunNumber == 0 {
		return []string{}, nil
	}

	return []string{strconv.Itoa(strain.RunNumber)}, nil
}

func (f *Facade) AllRuns() []string {
	runs := []string{}
	for _, direction := range []string{"11", "22", "33"} {
		directionRuns, _ := f.Runs(direction)
		runs = append(runs, directionRuns...)
	}

	return runs
}

// consensus reference spacing probed from the strains along each measured
// direction. a point's reference may be known along one direction only, so
// the directions fill in each other's gaps. where two directions both know
// a point they must agree.
func (f *Facade) DReference() (*ScalarField, error) {
	if f.dReference != nil {
		return f.dReference, nil
	}

	strains := []*StrainField{f.field.Strain[0], f.field.Strain[1]}
	if f.field.Type == Diagonal {
		strains = append(strains, f.field.Strain[2])
	}

	numPoints := strains[0].Field.Len()
	values := make([]float64, numPoints)
	errors := make([]float64, numPoints)

	for i := 0; i < numPoints; i++ {
		sum, errorSum, count := 0.0, 0.0, 0
		for _, strain := range strains {
			d0 := strain.DReference[i]
			if math.IsNaN(d0) {
				continue
			}

			if count > 0 && math.Abs(d0-sum/float64(count)) > 1e-9 {
				return nil, fmt.Errorf("reference spacings are different on different directions (point %d)", i)
			}

			sum += d0
			errorSum += strain.DReferenceErrors[i]
			count++
		}

		if count == 0 {
			values[i] = math.NaN()
			errors[i] = math.NaN()
		} else {
			values[i] = sum / float64(count)
			errors[i] = errorSum / float64(count)
		}
	}

	template := strains[0].Field
	f.dReference = &ScalarField{
		Name: "d-reference", Values: values, Errors: errors,
		X: template.X, Y: template.Y, Z: template.Z,
	}

	return f.dReference, nil
}

func (f *Facade) YoungsModulus() float64 {
	return f.field.YoungsModulus
}

func (f *Facade) PoissonRatio() float64 {
	return f.field.PoissonRatio
}

func (f *Facade) X() []float64 { return f.field.Strain[0].Field.X }
func (f *Facade) Y() []float64 { return f.field.Strain[0].Field.Y }
func (f *Facade) Z() []float64 { return f.field.Strain[0].Field.Z }
