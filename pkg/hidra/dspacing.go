package hidra

import (
	"fmt"
	"math"
)

// Bragg's law: d = lambda / (2 sin(theta)), with twoTheta given in degrees.
func DSpacing(wavelength float64, twoThetaDeg float64) (float64, error) {
	sinTheta := math.Sin(twoThetaDeg * 0.5 * math.Pi / 180.0)
	if sinTheta == 0 {
		return 0, fmt.Errorf("DSpacing: 2theta=%g yields sin(theta)=0", twoThetaDeg)
	}

	return wavelength * 0.5 / sinTheta, nil
}

// propagates the fitted peak center error into d-spacing error:
// |dd/d(2theta)| = lambda/2 * cos(theta)/sin^2(theta) * 1/2 (radians)
func DSpacingError(wavelength float64, twoThetaDeg float64, twoThetaErrDeg float64) float64 {
	theta := twoThetaDeg * 0.5 * math.Pi / 180.0
	sinTheta := math.Sin(theta)
	if sinTheta == 0 {
		return math.NaN()
	}

	derivative := wavelength * 0.25 * math.Cos(theta) / (sinTheta * sinTheta)

	return math.Abs(derivative * twoThetaErrDeg * math.Pi / 180.0)
}
