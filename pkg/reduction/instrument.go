package reduction

import (
	"math"

	"github.com/hb2btools/hidractl/pkg/hidra"
	"gonum.org/v1/gonum/mat"
)

type vec3 [3]float64

// detector pixel positions in the lab frame for the arm parked at zero,
// calibration applied. row-major, matching the raw count vector layout.
//
// the flat panel sits centered on the beam axis at the calibrated arm
// length. +x points left when looking along the beam, +y up, +z along the
// incident beam.
func pixelPositions(det hidra.DetectorGeometry, calib hidra.Calibration) []vec3 {
	rot := composeRotation(calib)

	positions := make([]vec3, 0, det.NumPixels())
	for row := 0; row < det.NumRows; row++ {
		for col := 0; col < det.NumColumns; col++ {
			local := vec3{
				(0.5*float64(det.NumColumns-1) - float64(col)) * det.PixelSizeX,
				(float64(row) - 0.5*float64(det.NumRows-1)) * det.PixelSizeY,
				0,
			}

			pos := applyRotation(rot, local)
			pos[0] += calib.ShiftX
			pos[1] += calib.ShiftY
			pos[2] += det.ArmLength + calib.ShiftZ

			positions = append(positions, pos)
		}
	}

	return positions
}

// scattering angle (degrees) of each pixel with the detector arm rotated to
// the given angle. the incident beam travels along +z, so a pixel's angle is
// just the angle between its direction and the beam.
func pixelTwoTheta(positions []vec3, armAngleDeg float64) []float64 {
	arm := hidra.RotationY(armAngleDeg)

	angles := make([]float64, len(positions))
	for i, pos := range positions {
		rotated := applyRotation(arm, pos)

		norm := math.Sqrt(rotated[0]*rotated[0] + rotated[1]*rotated[1] + rotated[2]*rotated[2])
		angles[i] = math.Acos(rotated[2]/norm) * 180 / math.Pi
	}

	return angles
}

func composeRotation(calib hidra.Calibration) *mat.Dense {
	rot := mat.NewDense(3, 3, nil)
	rot.Product(
		hidra.RotationZ(calib.RotationZ),
		hidra.RotationY(calib.RotationY),
		hidra.RotationX(calib.RotationX))

	return rot
}

func applyRotation(m *mat.Dense, v vec3) vec3 {
	return vec3{
		m.At(0, 0)*v[0] + m.At(0, 1)*v[1] + m.At(0, 2)*v[2],
		m.At(1, 0)*v[0] + m.At(1, 1)*v[1] + m.At(1, 2)*v[2],
		m.At(2, 0)*v[0] + m.At(2, 1)*v[1] + m.At(2, 2)*v[2],
	}
}
