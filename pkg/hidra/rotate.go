package hidra

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// right-handed rotation matrices. angle in degrees because every angle in this
// codebase (goniometer logs, detector arm, calibration) is recorded in degrees.

func RotationX(angleDeg float64) *mat.Dense {
	sin, cos := sincosDeg(angleDeg)

	return mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, cos, -sin,
		0, sin, cos,
	})
}

func RotationY(angleDeg float64) *mat.Dense {
	sin, cos := sincosDeg(angleDeg)

	return mat.NewDense(3, 3, []float64{
		cos, 0, sin,
		0, 1, 0,
		-sin, 0, cos,
	})
}

func RotationZ(angleDeg float64) *mat.Dense {
	sin, cos := sincosDeg(angleDeg)

	return mat.NewDense(3, 3, []float64{
		cos, -sin, 0,
		sin, cos, 0,
		0, 0, 1,
	})
}

func sincosDeg(angleDeg float64) (float64, float64) {
	sin, cos := math.Sincos(angleDeg * math.Pi / 180.0)
	return sin, cos
}
