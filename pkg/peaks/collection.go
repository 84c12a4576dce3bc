// Fitted single-peak results for all sub runs of a run ("peak collection").
package peaks

import (
	"fmt"
	"math"

	"github.com/hb2btools/hidractl/pkg/hidra"
)

// per-tag (e.g. "Si111") fit results. rows are sub runs, columns are the
// native peak parameters followed by the background parameters.
type Collection struct {
	Tag        string                   `json:"tag"`
	Profile    hidra.PeakProfile        `json:"profile"`
	Background hidra.BackgroundFunction `json:"background"`

	SubRuns    hidra.SubRuns `json:"sub_runs"`
	ParamNames []string      `json:"param_names"`
	Values     [][]float64   `json:"values"`
	Errors     [][]float64   `json:"errors"`
	Costs      []float64     `json:"costs"` // reduced chi2 per sub run

	// reference lattice spacing for strain. one value per sub run (NaN where
	// not measured), set during strain analysis.
	DReference       []float64 `json:"d_reference,omitempty"`
	DReferenceErrors []float64 `json:"d_reference_errors,omitempty"`
}

func NewCollection(tag string, profile hidra.PeakProfile, background hidra.BackgroundFunction) *Collection {
	return &Collection{
		Tag:        tag,
		Profile:    profile,
		Background: background,
		ParamNames: append(profile.NativeParams(), background.NativeParams()...),
	}
}

// stores one fit outcome per sub run. all inputs must be same length; value
// and error rows must match the parameter name count.
func (c *Collection) SetFit(subRuns hidra.SubRuns, values [][]float64, errors [][]float64, costs []float64) error {
	if len(values) != len(subRuns) || len(errors) != len(subRuns) || len(costs) != len(subRuns) {
		return fmt.Errorf("collection %s: rows (%d values / %d errors / %d costs) don't match %d sub runs",
			c.Tag, len(values), len(errors), len(costs), len(subRuns))
	}
	for i := range values {
		if len(values[i]) != len(c.ParamNames) || len(errors[i]) != len(c.ParamNames) {
			return fmt.Errorf("collection %s: sub run %s has %d/%d parameters, want %d",
				c.Tag, subRuns[i], len(values[i]), len(errors[i]), len(c.ParamNames))
		}
	}

	c.SubRuns = subRuns
	c.Values = values
	c.Errors = errors
	c.Costs = costs

	return nil
}

func (c *Collection) paramIndex(name string) (int, error) {
	for idx, candidate := range c.ParamNames {
		if candidate == name {
			return idx, nil
		}
	}

	return 0, fmt.Errorf("collection %s: no parameter %s (have %v)", c.Tag, name, c.ParamNames)
}

// one parameter across all sub runs: (values, errors)
func (c *Collection) Param(name string) ([]float64, []float64, error) {
	idx, err := c.paramIndex(name)
	if err != nil {
		return nil, nil, err
	}

	values := make([]float64, len(c.SubRuns))
	errors := make([]float64, len(c.SubRuns))
	for row := range c.SubRuns {
		values[row] = c.Values[row][idx]
		errors[row] = c.Errors[row][idx]
	}

	return values, errors, nil
}

// native parameters of one sub run, keyed by name
func (c *Collection) SubRunParams(subRun hidra.SubRun) (map[string]float64, error) {
	row := c.SubRuns.IndexOf(subRun)
	if row == -1 {
		return nil, fmt.Errorf("collection %s: no sub run %s", c.Tag, subRun)
	}

	params := map[string]float64{}
	for idx, name := range c.ParamNames {
		params[name] = c.Values[row][idx]
	}

	return params, nil
}

// NaNs out parameter rows whose fit cost exceeds maxChi2 (or is NaN/Inf).
// the sub run stays listed so downstream sees it was measured but unusable.
func (c *Collection) ApplyCostCriterion(maxChi2 float64) int {
	rejected := 0
	for row, cost := range c.Costs {
		if math.IsNaN(cost) || math.IsInf(cost, 0) || cost > maxChi2 {
			c.rejectRow(row)
			rejected++
		}
	}

	return rejected
}

// rejects fits whose peak intensity (or height, for profiles without a
// separate intensity parameter) falls below the minimum
func (c *Collection) ApplyIntensityCriterion(minIntensity float64) (int, error) {
	name := "Intensity"
	if _, err := c.paramIndex(name); err != nil {
		name = "Height"
	}

	values, _, err := c.Param(name)
	if err != nil {
		return 0, err
	}

	rejected := 0
	for row, value := range values {
		if value < minIntensity {
			c.rejectRow(row)
			rejected++
		}
	}

	return rejected, nil
}

// rejects fits whose center drifted more than maxShift away from the expected
// peak position (fit probably latched onto noise or a neighbour peak)
func (c *Collection) ApplyPositionCriterion(expectedCenter float64, maxShift float64) (int, error) {
	centers, _, err := c.Param("PeakCentre")
	if err != nil {
		return 0, err
	}

	rejected := 0
	for row, center := range centers {
		if math.Abs(center-expectedCenter) > maxShift {
			c.rejectRow(row)
			rejected++
		}
	}

	return rejected, nil
}

func (c *Collection) rejectRow(row int) {
	for i := range c.Values[row] {
		c.Values[row][i] = math.NaN()
	}
	for i := range c.Errors[row] {
		c.Errors[row][i] = math.NaN()
	}
}

// filtered copy of (subRuns, costs, values, errors) keeping only rows whose
// cost is within maxChi2. NaN costs never pass.
func (c *Collection) Filtered(maxChi2 float64) (hidra.SubRuns, []float64, [][]float64, [][]float64) {
	subRuns := hidra.SubRuns{}
	costs := []float64{}
	values := [][]float64{}
	errors := [][]float64{}

	for row, cost := range c.Costs {
		if math.IsNaN(cost) || cost > maxChi2 {
			continue
		}

		subRuns = append(subRuns, c.SubRuns[row])
		costs = append(costs, cost)
		values = append(values, c.Values[row])
		errors = append(errors, c.Errors[row])
	}

	return subRuns, costs, values, errors
}

// fitted peak centers converted to lattice spacing via Bragg's law.
// wavelength may vary per sub run (pass a single-element slice for uniform).
func (c *Collection) DSpacingCenters(wavelengths []float64) ([]float64, []float64, error) {
	centers, centerErrors, err := c.Param("PeakCentre")
	if err != nil {
		return nil, nil, err
	}

	if len(wavelengths) != 1 && len(wavelengths) != len(centers) {
		return nil, nil, fmt.Errorf("collection %s: %d wavelengths for %d sub runs", c.Tag, len(wavelengths), len(centers))
	}

	dValues := make([]float64, len(centers))
	dErrors := make([]float64, len(centers))
	for i, center := range centers {
		wl := wavelengths[0]
		if len(wavelengths) > 1 {
			wl = wavelengths[i]
		}

		if math.IsNaN(center) {
			dValues[i] = math.NaN()
			dErrors[i] = math.NaN()
			continue
		}

		d, err := hidra.DSpacing(wl, center)
		if err != nil {
			return nil, nil, err
		}

		dValues[i] = d
		dErrors[i] = hidra.DSpacingError(wl, center, centerErrors[i])
	}

	return dValues, dErrors, nil
}

// sets a uniform reference spacing for all sub runs
func (c *Collection) SetDReference(d0 float64, d0Error float64) {
	c.DReference = make([]float64, len(c.SubRuns))
	c.DReferenceErrors = make([]float64, len(c.SubRuns))
	for i := range c.SubRuns {
		c.DReference[i] = d0
		c.DReferenceErrors[i] = d0Error
	}
}
