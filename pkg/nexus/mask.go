package nexus

import (
	"fmt"

	"github.com/function61/gokit/jsonfile"
)

// per-pixel detector mask. Values holds one entry per detector pixel in
// row-major order, 1 = keep the pixel, 0 = drop it.
type Mask struct {
	Note     string    `json:"note"`
	TwoTheta float64   `json:"two_theta"` // arm angle the mask was made for (informational)
	Values   []float64 `json:"mask"`
}

func (m *Mask) Validate(numPixels int) error {
	if len(m.Values) != numPixels {
		return fmt.Errorf("mask %s covers %d pixels, detector has %d", m.Note, len(m.Values), numPixels)
	}
	for i, value := range m.Values {
		if value != 0 && value != 1 {
			return fmt.Errorf("mask %s: pixel %d has value %v (want 0 or 1)", m.Note, i, value)
		}
	}

	return nil
}

func ReadMask(path string) (*Mask, error) {
	mask := &Mask{}
	if err := jsonfile.Read(path, mask, true); err != nil {
		return nil, fmt.Errorf("ReadMask: %w", err)
	}

	return mask, nil
}
