package hidra

import (
	"fmt"
	"os"

	"github.com/function61/gokit/jsonfile"
	"gopkg.in/yaml.v3"
)

// flat-panel detector on the diffractometer arm
type DetectorGeometry struct {
	NumRows    int     `json:"num_rows" yaml:"num_rows"`
	NumColumns int     `json:"num_columns" yaml:"num_columns"`
	PixelSizeX float64 `json:"pixel_size_x" yaml:"pixel_size_x"` // meters
	PixelSizeY float64 `json:"pixel_size_y" yaml:"pixel_size_y"` // meters
	ArmLength  float64 `json:"arm_length" yaml:"arm_length"`     // L2, meters
}

func (d DetectorGeometry) NumPixels() int {
	return d.NumRows * d.NumColumns
}

func (d DetectorGeometry) Validate() error {
	if d.NumRows <= 0 || d.NumColumns <= 0 {
		return fmt.Errorf("detector size %dx%d not positive", d.NumRows, d.NumColumns)
	}
	if d.PixelSizeX <= 0 || d.PixelSizeY <= 0 {
		return fmt.Errorf("pixel dimensions %gx%g not positive", d.PixelSizeX, d.PixelSizeY)
	}
	if d.ArmLength <= 0 {
		return fmt.Errorf("arm length %g not positive", d.ArmLength)
	}

	return nil
}

// refinement on top of the nominal geometry, from a geometry calibration run
type Calibration struct {
	ShiftX          float64 `json:"shift_x"` // detector center shift, meters
	ShiftY          float64 `json:"shift_y"`
	ShiftZ          float64 `json:"shift_z"` // along the arm (changes L2)
	RotationX       float64 `json:"rotation_x"` // flip, degrees
	RotationY       float64 `json:"rotation_y"` // flip, degrees
	RotationZ       float64 `json:"rotation_z"` // spin, degrees
	WavelengthShift float64 `json:"wavelength_shift"` // Angstrom
}

// nominal instrument: geometry + monochromator wavelength
type InstrumentSetup struct {
	Name       string           `json:"name" yaml:"name"`
	Detector   DetectorGeometry `json:"detector" yaml:"detector"`
	Wavelength float64          `json:"wavelength" yaml:"wavelength"` // Angstrom
}

func (i InstrumentSetup) Validate() error {
	if i.Wavelength <= 0 {
		return fmt.Errorf("wavelength %g not positive", i.Wavelength)
	}

	return i.Detector.Validate()
}

// applies the calibrated wavelength shift
func (i InstrumentSetup) CalibratedWavelength(calib *Calibration) float64 {
	if calib == nil {
		return i.Wavelength
	}

	return i.Wavelength + calib.WavelengthShift
}

// nominal HB2B setup, used when no instrument definition file is given
func DefaultInstrument() *InstrumentSetup {
	return &InstrumentSetup{
		Name:       "HB2B",
		Wavelength: 1.54,
		Detector: DetectorGeometry{
			NumRows:    1024,
			NumColumns: 1024,
			PixelSizeX: 0.00029296875,
			PixelSizeY: 0.00029296875,
			ArmLength:  0.985,
		},
	}
}

// instrument definition files are YAML (they're edited by beamline staff)
func ReadInstrumentSetup(path string) (*InstrumentSetup, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ReadInstrumentSetup: %w", err)
	}

	setup := &InstrumentSetup{}
	if err := yaml.Unmarshal(content, setup); err != nil {
		return nil, fmt.Errorf("ReadInstrumentSetup: %s: %w", path, err)
	}

	if err := setup.Validate(); err != nil {
		return nil, fmt.Errorf("ReadInstrumentSetup: %s: %w", path, err)
	}

	return setup, nil
}

// geometry calibrations are JSON (they're produced by the calibration pipeline)
func ReadCalibration(path string) (*Calibration, error) {
	calib := &Calibration{}
	if err := jsonfile.Read(path, calib, true); err != nil {
		return nil, fmt.Errorf("ReadCalibration: %w", err)
	}

	return calib, nil
}
