package peakfit

import (
	"fmt"
	"math"

	"github.com/hb2btools/hidractl/pkg/hidra"
)

// peak + background as one function of 2theta. parameter order is the
// profile's native parameters followed by the background's.
type model interface {
	paramNames() []string
	// value at x for the given parameter vector
	eval(params []float64, x float64) float64
	// partial derivatives wrt each parameter, written into grad
	gradient(params []float64, x float64, grad []float64)
	// starting point estimated from the data
	initialGuess(x []float64, y []float64) []float64
	// pull parameters back to their valid range after a step
	clamp(params []float64)
}

func modelFor(profile hidra.PeakProfile, background hidra.BackgroundFunction) (model, error) {
	if background != hidra.BackgroundLinear {
		return nil, fmt.Errorf("unsupported background function: %s", background)
	}

	switch profile {
	case hidra.ProfileGaussian:
		return &gaussianLinear{}, nil
	case hidra.ProfilePseudoVoigt:
		return &pseudoVoigtLinear{}, nil
	default:
		return nil, fmt.Errorf("unsupported peak profile: %s", profile)
	}
}

// straight-line background estimated from the window edges, used by the
// initial guess of both models
func edgeBackground(x []float64, y []float64) (a0 float64, a1 float64) {
	last := len(x) - 1
	if x[last] == x[0] {
		return y[0], 0
	}

	a1 = (y[last] - y[0]) / (x[last] - x[0])
	a0 = y[0] - a1*x[0]

	return a0, a1
}

// peak center and amplitude after subtracting the edge background, plus a
// second-moment width estimate
func peakGuess(x []float64, y []float64, a0 float64, a1 float64) (height float64, center float64, width float64) {
	height = 0.0
	center = x[len(x)/2]
	for i := range x {
		net := y[i] - a0 - a1*x[i]
		if net > height {
			height = net
			center = x[i]
		}
	}

	weightSum, momentSum := 0.0, 0.0
	for i := range x {
		net := y[i] - a0 - a1*x[i]
		if net > 0 {
			weightSum += net
			momentSum += net * (x[i] - center) * (x[i] - center)
		}
	}

	if weightSum > 0 {
		width = math.Sqrt(momentSum / weightSum)
	}
	if width <= 0 {
		width = (x[len(x)-1] - x[0]) / 10
	}

	return height, center, width
}

// y = Height * exp(-(x-c)^2 / (2 Sigma^2)) + A0 + A1*x
type gaussianLinear struct{}

func (g *gaussianLinear) paramNames() []string {
	return append(hidra.ProfileGaussian.NativeParams(), hidra.BackgroundLinear.NativeParams()...)
}

func (g *gaussianLinear) eval(p []float64, x float64) float64 {
	height, center, sigma, a0, a1 := p[0], p[1], p[2], p[3], p[4]
	d := x - center

	return height*math.Exp(-d*d/(2*sigma*sigma)) + a0 + a1*x
}

func (g *gaussianLinear) gradient(p []float64, x float64, grad []float64) {
	height, center, sigma := p[0], p[1], p[2]
	d := x - center
	e := math.Exp(-d * d / (2 * sigma * sigma))

	grad[0] = e
	grad[1] = height * e * d / (sigma * sigma)
	grad[2] = height * e * d * d / (sigma * sigma * sigma)
	grad[3] = 1
	grad[4] = x
}

func (g *gaussianLinear) initialGuess(x []float64, y []float64) []float64 {
	a0, a1 := edgeBackground(x, y)
	height, center, width := peakGuess(x, y, a0, a1)

	return []float64{height, center, width, a0, a1}
}

func (g *gaussianLinear) clamp(p []float64) {
	if p[2] < 1e-6 {
		p[2] = 1e-6
	}
}

// y = Intensity * (Mixing*L + (1-Mixing)*G) + A0 + A1*x
//
// with L and G the unit-area Lorentzian and Gaussian of common FWHM:
//
//	L(x) = (2 / (pi*FWHM)) / (1 + 4 (x-c)^2 / FWHM^2)
//	G(x) = (2 sqrt(ln2/pi) / FWHM) * exp(-4 ln2 (x-c)^2 / FWHM^2)
type pseudoVoigtLinear struct{}

func (v *pseudoVoigtLinear) paramNames() []string {
	return append(hidra.ProfilePseudoVoigt.NativeParams(), hidra.BackgroundLinear.NativeParams()...)
}

func pseudoVoigtParts(center float64, fwhm float64, x float64) (lorentzian float64, gaussian float64) {
	d := x - center
	u := 4 * d * d / (fwhm * fwhm)

	lorentzian = 2 / (math.Pi * fwhm * (1 + u))
	gaussian = 2 * math.Sqrt(math.Ln2/math.Pi) / fwhm * math.Exp(-math.Ln2*u)

	return lorentzian, gaussian
}

func (v *pseudoVoigtLinear) eval(p []float64, x float64) float64 {
	mixing, intensity, center, fwhm, a0, a1 := p[0], p[1], p[2], p[3], p[4], p[5]
	lor, gau := pseudoVoigtParts(center, fwhm, x)

	return intensity*(mixing*lor+(1-mixing)*gau) + a0 + a1*x
}

func (v *pseudoVoigtLinear) gradient(p []float64, x float64, grad []float64) {
	mixing, intensity, center, fwhm := p[0], p[1], p[2], p[3]
	d := x - center
	u := 4 * d * d / (fwhm * fwhm)
	lor, gau := pseudoVoigtParts(center, fwhm, x)

	dLorDCenter := lor * 8 * d / (fwhm * fwhm * (1 + u))
	dGauDCenter := gau * 8 * math.Ln2 * d / (fwhm * fwhm)
	dLorDFwhm := lor / fwhm * (u - 1) / (u + 1)
	dGauDFwhm := gau / fwhm * (2*math.Ln2*u - 1)

	grad[0] = intensity * (lor - gau)
	grad[1] = mixing*lor + (1-mixing)*gau
	grad[2] = intensity * (mixing*dLorDCenter + (1-mixing)*dGauDCenter)
	grad[3] = intensity * (mixing*dLorDFwhm + (1-mixing)*dGauDFwhm)
	grad[4] = 1
	grad[5] = x
}

func (v *pseudoVoigtLinear) initialGuess(x []float64, y []float64) []float64 {
	a0, a1 := edgeBackground(x, y)
	height, center, width := peakGuess(x, y, a0, a1)

	mixing := 0.5
	fwhm := 2 * math.Sqrt(2*math.Ln2) * width
	// intensity from the height of a half-and-half profile at its center
	peakOfUnitArea := mixing*2/(math.Pi*fwhm) + (1-mixing)*2*math.Sqrt(math.Ln2/math.Pi)/fwhm
	intensity := height / peakOfUnitArea

	return []float64{mixing, intensity, center, fwhm, a0, a1}
}

func (v *pseudoVoigtLinear) clamp(p []float64) {
	if p[0] < 0 {
		p[0] = 0
	}
	if p[0] > 1 {
		p[0] = 1
	}
	if p[3] < 1e-6 {
		p[3] = 1e-6
	}
}
