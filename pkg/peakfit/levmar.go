package peakfit

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	maxIterations  = 200
	initialDamping = 1e-3
	costTolerance  = 1e-10
)

type fitResult struct {
	params []float64
	errors []float64 // one-sigma uncertainty per parameter
	chi2   float64   // reduced chi-squared
}

// Levenberg-Marquardt least squares of the model against counting data.
// residuals are weighted by Poisson uncertainty sqrt(max(y, 1)).
func levenbergMarquardt(m model, x []float64, y []float64, start []float64) (*fitResult, error) {
	numPoints, numParams := len(x), len(start)
	if numPoints <= numParams {
		return nil, fmt.Errorf("fit window has %d points for %d parameters", numPoints, numParams)
	}

	weights := make([]float64, numPoints)
	for i, value := range y {
		weights[i] = 1 / math.Sqrt(math.Max(value, 1))
	}

	params := append([]float64{}, start...)
	m.clamp(params)

	residuals := func(p []float64) *mat.VecDense {
		r := mat.NewVecDense(numPoints, nil)
		for i := range x {
			r.SetVec(i, (m.eval(p, x[i])-y[i])*weights[i])
		}

		return r
	}

	jacobian := func(p []float64) *mat.Dense {
		j := mat.NewDense(numPoints, numParams, nil)
		grad := make([]float64, numParams)
		for i := range x {
			m.gradient(p, x[i], grad)
			for col := range grad {
				j.Set(i, col, grad[col]*weights[i])
			}
		}

		return j
	}

	cost := func(r *mat.VecDense) float64 {
		return mat.Dot(r, r)
	}

	r := residuals(params)
	currentCost := cost(r)
	damping := initialDamping

	for iter := 0; iter < maxIterations; iter++ {
		j := jacobian(params)

		normal := mat.NewDense(numParams, numParams, nil)
		normal.Mul(j.T(), j)

		gradient := mat.NewVecDense(numParams, nil)
		gradient.MulVec(j.T(), r)

		// damp the diagonal: high damping degrades toward gradient descent
		damped := mat.DenseCopyOf(normal)
		for d := 0; d < numParams; d++ {
			damped.Set(d, d, normal.At(d, d)*(1+damping))
		}

		step := mat.NewVecDense(numParams, nil)
		if err := step.SolveVec(damped, gradient); err != nil {
			damping *= 10
			if damping > 1e12 {
				return nil, fmt.Errorf("normal equations stayed singular after %d iterations", iter)
			}

			continue
		}

		candidate := append([]float64{}, params...)
		for p := 0; p < numParams; p++ {
			candidate[p] -= step.AtVec(p)
		}
		m.clamp(candidate)

		candidateResiduals := residuals(candidate)
		candidateCost := cost(candidateResiduals)

		if candidateCost < currentCost {
			improved := currentCost - candidateCost
			params = candidate
			r = candidateResiduals
			currentCost = candidateCost
			damping = math.Max(damping/10, 1e-12)

			if improved < costTolerance*(1+currentCost) {
				break
			}
		} else {
			damping *= 10
			if damping > 1e12 {
				break
			}
		}
	}

	chi2 := currentCost / float64(numPoints-numParams)

	errors, err := parameterErrors(jacobian(params), chi2, numParams)
	if err != nil {
		return nil, err
	}

	return &fitResult{params: params, errors: errors, chi2: chi2}, nil
}

// one-sigma uncertainties from the covariance matrix (J^T J)^-1 scaled by
// the reduced chi-squared
func parameterErrors(j *mat.Dense, chi2 float64, numParams int) ([]float64, error) {
	normal := mat.NewDense(numParams, numParams, nil)
	normal.Mul(j.T(), j)

	covariance := mat.NewDense(numParams, numParams, nil)
	if err := covariance.Inverse(normal); err != nil {
		// degenerate fit: parameters are reported without uncertainties
		errors := make([]float64, numParams)
		for i := range errors {
			errors[i] = math.NaN()
		}

		return errors, nil
	}

	errors := make([]float64, numParams)
	for i := range errors {
		errors[i] = math.Sqrt(math.Abs(covariance.At(i, i)) * chi2)
	}

	return errors, nil
}
