package peaks

import (
	"encoding/json"
	"math"

	"github.com/hb2btools/hidractl/pkg/hidra"
)

// rejected fits are NaN, which JSON cannot represent, so vectors round-trip
// through pointers with NaN <=> null

type collectionJSON struct {
	Tag        string                   `json:"tag"`
	Profile    hidra.PeakProfile        `json:"profile"`
	Background hidra.BackgroundFunction `json:"background"`

	SubRuns    hidra.SubRuns `json:"sub_runs"`
	ParamNames []string      `json:"param_names"`
	Values     [][]*float64  `json:"values"`
	Errors     [][]*float64  `json:"errors"`
	Costs      []*float64    `json:"costs"`

	DReference       []*float64 `json:"d_reference,omitempty"`
	DReferenceErrors []*float64 `json:"d_reference_errors,omitempty"`
}

func (c *Collection) MarshalJSON() ([]byte, error) {
	return json.Marshal(collectionJSON{
		Tag:              c.Tag,
		Profile:          c.Profile,
		Background:       c.Background,
		SubRuns:          c.SubRuns,
		ParamNames:       c.ParamNames,
		Values:           matrixToNullable(c.Values),
		Errors:           matrixToNullable(c.Errors),
		Costs:            vectorToNullable(c.Costs),
		DReference:       vectorToNullable(c.DReference),
		DReferenceErrors: vectorToNullable(c.DReferenceErrors),
	})
}

func (c *Collection) UnmarshalJSON(data []byte) error {
	serialized := collectionJSON{}
	if err := json.Unmarshal(data, &serialized); err != nil {
		return err
	}

	c.Tag = serialized.Tag
	c.Profile = serialized.Profile
	c.Background = serialized.Background
	c.SubRuns = serialized.SubRuns
	c.ParamNames = serialized.ParamNames
	c.Values = matrixFromNullable(serialized.Values)
	c.Errors = matrixFromNullable(serialized.Errors)
	c.Costs = vectorFromNullable(serialized.Costs)
	c.DReference = vectorFromNullable(serialized.DReference)
	c.DReferenceErrors = vectorFromNullable(serialized.DReferenceErrors)

	return nil
}

func vectorToNullable(values []float64) []*float64 {
	if values == nil {
		return nil
	}

	nullable := make([]*float64, len(values))
	for i, value := range values {
		if !math.IsNaN(value) && !math.IsInf(value, 0) {
			value := value
			nullable[i] = &value
		}
	}

	return nullable
}

func vectorFromNullable(nullable []*float64) []float64 {
	if nullable == nil {
		return nil
	}

	values := make([]float64, len(nullable))
	for i, value := range nullable {
		if value != nil {
			values[i] = *value
		} else {
			values[i] = math.NaN()
		}
	}

	return values
}

func matrixToNullable(matrix [][]float64) [][]*float64 {
	if matrix == nil {
		return nil
	}

	nullable := make([][]*float64, len(matrix))
	for i, row := range matrix {
		nullable[i] = vectorToNullable(row)
	}

	return nullable
}

func matrixFromNullable(nullable [][]*float64) [][]float64 {
	if nullable == nil {
		return nil
	}

	matrix := make([][]float64, len(nullable))
	for i, row := range nullable {
		matrix[i] = vectorFromNullable(row)
	}

	return matrix
}
