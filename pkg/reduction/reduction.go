// Package reduction converts raw detector counts into diffraction patterns
// (intensity vs 2theta histograms), one pattern per sub run and mask.
package reduction

import (
	"context"
	"fmt"
	"log"
	"math"

	"github.com/function61/gokit/logex"
	"github.com/hb2btools/hidractl/pkg/hidra"
	"github.com/hb2btools/hidractl/pkg/nexus"
)

//go:generate genny -in ../concurrencygen/concurrently.go -out concurrently.gen.go -pkg reduction gen ItemType=hidra.SubRun

const (
	DefaultNumBins     = 720
	DefaultConcurrency = 4
)

type Options struct {
	NumBins     int
	TwoThetaMin float64 // both zero = span the detector coverage of the run
	TwoThetaMax float64
	Masks       []*nexus.Mask // each produces an extra reduced view next to the default one
	Concurrency int
}

func (o Options) withDefaults() Options {
	if o.NumBins == 0 {
		o.NumBins = DefaultNumBins
	}
	if o.Concurrency == 0 {
		o.Concurrency = DefaultConcurrency
	}

	return o
}

// histograms every sub run of the workspace and stores the resulting views
// on the workspace. sub runs are processed concurrently.
func Reduce(ctx context.Context, ws *hidra.Workspace, opts Options, logger *log.Logger) error {
	logl := logex.Levels(logex.Prefix("reduction", logger))
	opts = opts.withDefaults()

	if ws.Instrument == nil {
		return fmt.Errorf("Reduce: run %d has no instrument geometry", ws.Info.RunNumber)
	}
	if err := ws.Instrument.Validate(); err != nil {
		return fmt.Errorf("Reduce: %w", err)
	}

	calib := hidra.Calibration{}
	if ws.Calibration != nil {
		calib = *ws.Calibration
	}

	det := ws.Instrument.Detector
	for _, mask := range opts.Masks {
		if err := mask.Validate(det.NumPixels()); err != nil {
			return fmt.Errorf("Reduce: %w", err)
		}
	}

	armAngles, err := ws.Log(hidra.LogTwoTheta)
	if err != nil {
		return fmt.Errorf("Reduce: %w", err)
	}

	positions := pixelPositions(det, calib)

	binMin, binMax := opts.TwoThetaMin, opts.TwoThetaMax
	if binMin == 0 && binMax == 0 {
		binMin, binMax = coverage(positions, armAngles)
	}
	if binMax <= binMin {
		return fmt.Errorf("Reduce: bad 2theta range [%v, %v]", binMin, binMax)
	}

	binWidth := (binMax - binMin) / float64(opts.NumBins)

	binCenters := make([]float64, opts.NumBins)
	for i := range binCenters {
		binCenters[i] = binMin + (float64(i)+0.5)*binWidth
	}

	subRuns := ws.SubRuns()

	// one row per sub run per view. each worker writes only its own rows, so
	// no locking is needed.
	views := map[string][][]float64{hidra.MaskDefault: make([][]float64, len(subRuns))}
	for _, mask := range opts.Masks {
		views[mask.Note] = make([][]float64, len(subRuns))
	}

	logl.Info.Printf(
		"run %d: %d sub runs over 2theta [%.2f, %.2f], %d bins, %d views",
		ws.Info.RunNumber, len(subRuns), binMin, binMax, opts.NumBins, len(views))

	if err := concurrentlyHidraSubRunSlice(ctx, opts.Concurrency, subRuns, func(ctx context.Context, subRun hidra.SubRun) error {
		row := subRuns.IndexOf(subRun)

		counts, err := ws.RawCounts(subRun)
		if err != nil {
			return err
		}
		if len(counts) != det.NumPixels() {
			return fmt.Errorf("sub run %s has %d counts, detector has %d pixels", subRun, len(counts), det.NumPixels())
		}

		angles := pixelTwoTheta(positions, armAngles[row])

		views[hidra.MaskDefault][row] = histogram(angles, counts, nil, binMin, binWidth, opts.NumBins)
		for _, mask := range opts.Masks {
			views[mask.Note][row] = histogram(angles, counts, mask.Values, binMin, binWidth, opts.NumBins)
		}

		logl.Debug.Printf("sub run %s reduced (arm at %.2f deg)", subRun, armAngles[row])

		return nil
	}); err != nil {
		return fmt.Errorf("Reduce: %w", err)
	}

	for maskID, matrix := range views {
		if err := ws.SetReduced(binCenters, maskID, matrix); err != nil {
			return fmt.Errorf("Reduce: %w", err)
		}
	}

	return nil
}

// sums masked counts into 2theta bins. nil mask keeps every pixel.
// out-of-range pixels are dropped, bins nothing landed in stay at zero.
func histogram(angles []float64, counts []uint32, mask []float64, binMin float64, binWidth float64, numBins int) []float64 {
	intensities := make([]float64, numBins)
	for i, angle := range angles {
		if mask != nil && mask[i] == 0 {
			continue
		}

		bin := int(math.Floor((angle - binMin) / binWidth))
		if bin == numBins && angle <= binMin+binWidth*float64(numBins) {
			bin-- // top edge belongs to the last bin
		}
		if bin < 0 || bin >= numBins {
			continue
		}

		intensities[bin] += float64(counts[i])
	}

	return intensities
}

// the 2theta interval the detector sweeps over all arm positions of the run
func coverage(positions []vec3, armAngles []float64) (float64, float64) {
	min, max := math.Inf(1), math.Inf(-1)
	for _, armAngle := range armAngles {
		for _, angle := range pixelTwoTheta(positions, armAngle) {
			min = math.Min(min, angle)
			max = math.Max(max, angle)
		}
	}

	return min, max
}
