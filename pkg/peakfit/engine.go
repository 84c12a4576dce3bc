// Package peakfit fits analytic peak profiles to reduced diffraction
// patterns, one fit per sub run, and collects the results.
package peakfit

import (
	"context"
	"fmt"
	"log"
	"math"

	"github.com/function61/gokit/logex"
	"github.com/hb2btools/hidractl/pkg/hidra"
	"github.com/hb2btools/hidractl/pkg/peaks"
)

//go:generate genny -in ../concurrencygen/concurrently.go -out concurrently.gen.go -pkg peakfit gen ItemType=hidra.SubRun

// cost recorded for a sub run whose fit did not converge. large but finite,
// so any sane cost criterion rejects the row while the math downstream
// stays NaN-free.
const FailedFitCost = 1e20

const DefaultConcurrency = 4

type PeakSpec struct {
	Tag        string
	Profile    hidra.PeakProfile
	Background hidra.BackgroundFunction

	// fit window in 2theta degrees
	WindowMin float64
	WindowMax float64

	Concurrency int // zero = DefaultConcurrency
}

func (s PeakSpec) validate() error {
	if s.Tag == "" {
		return fmt.Errorf("peak has no tag")
	}
	if s.WindowMax <= s.WindowMin {
		return fmt.Errorf("peak %s: bad fit window [%v, %v]", s.Tag, s.WindowMin, s.WindowMax)
	}

	return nil
}

// fits the peak in every sub run of the given reduced view ("" = default).
// a sub run whose fit fails gets NaN parameters and FailedFitCost but does
// not fail the whole run. sub runs are fitted concurrently.
func FitPeaks(ctx context.Context, ws *hidra.Workspace, maskID string, spec PeakSpec, logger *log.Logger) (*peaks.Collection, error) {
	logl := logex.Levels(logex.Prefix("peakfit", logger))

	if err := spec.validate(); err != nil {
		return nil, fmt.Errorf("FitPeaks: %w", err)
	}

	fitModel, err := modelFor(spec.Profile, spec.Background)
	if err != nil {
		return nil, fmt.Errorf("FitPeaks: %w", err)
	}

	subRuns := ws.SubRuns()
	if len(subRuns) == 0 {
		return nil, fmt.Errorf("FitPeaks: workspace has no sub runs")
	}

	numParams := len(fitModel.paramNames())

	values := make([][]float64, len(subRuns))
	errors := make([][]float64, len(subRuns))
	costs := make([]float64, len(subRuns))

	concurrency := spec.Concurrency
	if concurrency == 0 {
		concurrency = DefaultConcurrency
	}

	if err := concurrentlyHidraSubRunSlice(ctx, concurrency, subRuns, func(ctx context.Context, subRun hidra.SubRun) error {
		row := subRuns.IndexOf(subRun)

		pattern, err := ws.Pattern(maskID, subRun)
		if err != nil {
			return err
		}

		x, y := window(pattern, spec.WindowMin, spec.WindowMax)

		result, err := fitOne(fitModel, x, y)
		if err != nil {
			logl.Error.Printf("peak %s sub run %s: %v", spec.Tag, subRun, err)

			values[row] = nanRow(numParams)
			errors[row] = nanRow(numParams)
			costs[row] = FailedFitCost

			return nil
		}

		values[row] = result.params
		errors[row] = result.errors
		costs[row] = result.chi2

		logl.Debug.Printf("peak %s sub run %s: chi2 %.3f", spec.Tag, subRun, result.chi2)

		return nil
	}); err != nil {
		return nil, fmt.Errorf("FitPeaks: %w", err)
	}

	collection := peaks.NewCollection(spec.Tag, spec.Profile, spec.Background)
	if err := collection.SetFit(subRuns, values, errors, costs); err != nil {
		return nil, fmt.Errorf("FitPeaks: %w", err)
	}

	return collection, nil
}

func fitOne(m model, x []float64, y []float64) (*fitResult, error) {
	if len(x) == 0 {
		return nil, fmt.Errorf("no data points inside fit window")
	}

	return levenbergMarquardt(m, x, y, m.initialGuess(x, y))
}

func window(pattern *hidra.Pattern, min float64, max float64) ([]float64, []float64) {
	x := []float64{}
	y := []float64{}
	for i, twoTheta := range pattern.TwoTheta {
		if twoTheta < min || twoTheta > max {
			continue
		}

		x = append(x, twoTheta)
		y = append(y, pattern.Intensity[i])
	}

	return x, y
}

func nanRow(width int) []float64 {
	row := make([]float64, width)
	for i := range row {
		row[i] = math.NaN()
	}

	return row
}
