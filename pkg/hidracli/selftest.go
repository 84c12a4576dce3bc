package hidracli

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"

	"github.com/function61/gokit/jsonfile"
	"github.com/function61/gokit/logex"
	"github.com/function61/gokit/osutil"
	"github.com/hb2btools/hidractl/pkg/hidra"
	"github.com/hb2btools/hidractl/pkg/peakfit"
	"github.com/hb2btools/hidractl/pkg/projectfile"
	"github.com/hb2btools/hidractl/pkg/reduction"
	"github.com/hb2btools/hidractl/pkg/stress"
	"github.com/hb2btools/hidractl/pkg/texture"
	"github.com/scylladb/termtables"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const selftestUsage = `Workflows:
  1    peak fitting
  2    texture (pole figure)
  3    strain and stress
  4    manual reduction`

// runs one analysis workflow end to end against synthetic data, so a fresh
// deployment can be checked without real beamline files at hand
func selftestEntrypoint() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "selftest [workflow]",
		Short: "Check one analysis workflow end to end against synthetic data",
		Long:  "Check one analysis workflow end to end against synthetic data.\n\n" + selftestUsage,
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			rootLogger := logex.StandardLogger()
			ctx := osutil.CancelOnInterruptOrTerminate(rootLogger)

			// no workflow selected is not an error. print the menu and do
			// nothing, same as asking for an unknown workflow.
			if len(args) == 0 {
				fmt.Println(selftestUsage)
				return
			}

			switch args[0] {
			case "1":
				osutil.ExitIfError(selftestPeakFitting(ctx, rootLogger))
			case "2":
				osutil.ExitIfError(selftestTexture(ctx, rootLogger))
			case "3":
				osutil.ExitIfError(selftestStrainStress(rootLogger))
			case "4":
				osutil.ExitIfError(selftestReduction(ctx, rootLogger))
			default:
				fmt.Println(selftestUsage)
			}
		},
	}

	return cmd
}

// fits a drifting synthetic peak across sub runs and reports the recovered
// effective parameters
func selftestPeakFitting(ctx context.Context, logger *log.Logger) error {
	ws := syntheticPeakWorkspace(3, func(i int) float64 { return 85.0 + 0.2*float64(i) })

	col, err := peakfit.FitPeaks(ctx, ws, "", peakfit.PeakSpec{
		Tag:        "selftest",
		Profile:    hidra.ProfileGaussian,
		Background: hidra.BackgroundLinear,
		WindowMin:  83,
		WindowMax:  88,
	}, logger)
	if err != nil {
		return err
	}

	effective, err := peakfit.EffectiveParameters(col)
	if err != nil {
		return err
	}

	centers, centerErrors, err := effective.Param("Center")
	if err != nil {
		return err
	}
	widths, _, err := effective.Param("FWHM")
	if err != nil {
		return err
	}

	view := termtables.CreateTable()
	view.AddHeaders("Sub run", "Center", "Error", "FWHM", "Chi2")

	for row, subRun := range effective.SubRuns {
		view.AddRow(
			subRun.String(),
			fmt.Sprintf("%.4f", centers[row]),
			fmt.Sprintf("%.4f", centerErrors[row]),
			fmt.Sprintf("%.4f", widths[row]),
			fmt.Sprintf("%.3f", effective.Costs[row]))
	}

	fmt.Println(view.Render())

	for row := range centers {
		expected := 85.0 + 0.2*float64(row)
		if math.Abs(centers[row]-expected) > 0.01 {
			return fmt.Errorf("sub run %s: center %v, expected %v", effective.SubRuns[row], centers[row], expected)
		}
	}

	fmt.Println("peak fitting workflow OK")

	return nil
}

// fits peaks at a grid of goniometer orientations and projects them into a
// pole figure
func selftestTexture(ctx context.Context, logger *log.Logger) error {
	numSubRuns := 7

	ws := syntheticPeakWorkspace(numSubRuns, func(i int) float64 { return 90.0 })

	chi := make([]float64, numSubRuns)
	phi := make([]float64, numSubRuns)
	omega := make([]float64, numSubRuns)
	twoTheta := make([]float64, numSubRuns)
	for i := 0; i < numSubRuns; i++ {
		chi[i] = 10.0 * float64(i)
		phi[i] = 30.0 * float64(i)
		twoTheta[i] = 90.0
	}
	for _, entry := range []struct {
		name   string
		values []float64
	}{
		{hidra.LogTwoTheta, twoTheta},
		{hidra.LogOmega, omega},
		{hidra.LogChi, chi},
		{hidra.LogPhi, phi},
	} {
		if err := ws.SetLog(entry.name, entry.values); err != nil {
			return err
		}
	}

	col, err := peakfit.FitPeaks(ctx, ws, "", peakfit.PeakSpec{
		Tag:        "selftest",
		Profile:    hidra.ProfileGaussian,
		Background: hidra.BackgroundLinear,
		WindowMin:  88,
		WindowMax:  92,
	}, logger)
	if err != nil {
		return err
	}

	figure, err := texture.CalculatePoleFigure(ws, col, 50.0, logger)
	if err != nil {
		return err
	}
	if len(figure.Points) != numSubRuns {
		return fmt.Errorf("pole figure has %d points, expected %d", len(figure.Points), numSubRuns)
	}

	tempDir, err := os.MkdirTemp("", "hidra-selftest")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tempDir)

	exportPath := filepath.Join(tempDir, "polefigure.json")
	if err := texture.Export(figure, exportPath); err != nil {
		return err
	}

	view := termtables.CreateTable()
	view.AddHeaders("Sub run", "Alpha (deg)", "Beta (deg)", "Intensity")

	for _, point := range figure.Points {
		view.AddRow(
			point.SubRun.String(),
			fmt.Sprintf("%.2f", point.Alpha*180/math.Pi),
			fmt.Sprintf("%.2f", point.Beta*180/math.Pi),
			fmt.Sprintf("%.1f", point.Intensity))
	}

	fmt.Println(view.Render())
	fmt.Println("texture workflow OK")

	return nil
}

// builds strain fields with a known gradient for all three directions and
// checks Hooke's law output on a few points
func selftestStrainStress(logger *log.Logger) error {
	numPoints := 5
	d0 := 1.17

	x := make([]float64, numPoints)
	y := make([]float64, numPoints)
	z := make([]float64, numPoints)
	d0Values := make([]float64, numPoints)
	d0Errors := make([]float64, numPoints)
	for i := range x {
		x[i] = float64(i)
		d0Values[i] = d0
		d0Errors[i] = 1e-5
	}

	strainField := func(runNumber int, scale float64) (*stress.StrainField, error) {
		d := make([]float64, numPoints)
		dErrors := make([]float64, numPoints)
		for i := range d {
			d[i] = d0 * (1 + scale*1e-4*float64(i))
			dErrors[i] = 1e-5
		}

		return stress.StrainFromDSpacing(runNumber, d, dErrors, d0Values, d0Errors, x, y, z)
	}

	strain11, err := strainField(1234, 1)
	if err != nil {
		return err
	}
	strain22, err := strainField(1235, 2)
	if err != nil {
		return err
	}
	strain33, err := strainField(1236, 3)
	if err != nil {
		return err
	}

	field, err := stress.NewField(stress.Diagonal, strain11, strain22, strain33, 200, 0.3)
	if err != nil {
		return err
	}

	facade := stress.NewFacade(field)

	view := termtables.CreateTable()
	view.AddHeaders("x", "strain11 (microstrain)", "stress11 (GPa)")

	if err := facade.Select("11"); err != nil {
		return err
	}
	strainValues, err := facade.Strain()
	if err != nil {
		return err
	}
	stressValues, err := facade.Stress()
	if err != nil {
		return err
	}

	for i := range x {
		view.AddRow(
			fmt.Sprintf("%.0f", x[i]),
			fmt.Sprintf("%.1f", strainValues.Values[i]*1e6),
			fmt.Sprintf("%.5f", stressValues.Values[i]))
	}

	fmt.Println(view.Render())

	// point i=1: strains are 1e-4, 2e-4, 3e-4
	expected := 200.0 / 1.3 * (1e-4 + 0.3/0.4*6e-4)
	if math.Abs(stressValues.Values[1]-expected) > 1e-9 {
		return fmt.Errorf("stress11 at point 1 is %v, expected %v", stressValues.Values[1], expected)
	}

	fmt.Println("strain/stress workflow OK")

	return nil
}

// writes a synthetic run file plus instrument definition to a temp dir, runs
// the full reduction and reads the produced project file back
func selftestReduction(ctx context.Context, logger *log.Logger) error {
	tempDir, err := os.MkdirTemp("", "hidra-selftest")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tempDir)

	instrument := hidra.InstrumentSetup{
		Name:       "selftest",
		Wavelength: 1.54,
		Detector: hidra.DetectorGeometry{
			NumRows:    16,
			NumColumns: 16,
			PixelSizeX: 0.002,
			PixelSizeY: 0.002,
			ArmLength:  0.5,
		},
	}

	instrumentPath := filepath.Join(tempDir, "instrument.yaml")
	serialized, err := yaml.Marshal(instrument)
	if err != nil {
		return err
	}
	if err := os.WriteFile(instrumentPath, serialized, 0644); err != nil {
		return err
	}

	counts := make([]uint32, instrument.Detector.NumPixels())
	for i := range counts {
		counts[i] = 10
	}

	type subRunEntry struct {
		SubRun         hidra.SubRun       `json:"sub_run"`
		DetectorCounts []uint32           `json:"detector_counts"`
		Logs           map[string]float64 `json:"logs"`
	}

	runPath := filepath.Join(tempDir, "HB2B_999999.nxs.json")
	if err := jsonfile.Write(runPath, &struct {
		Instrument string        `json:"instrument"`
		RunNumber  int           `json:"run_number"`
		IPTS       int           `json:"ipts"`
		SubRuns    []subRunEntry `json:"sub_runs"`
	}{
		Instrument: "selftest",
		RunNumber:  999999,
		IPTS:       99999,
		SubRuns: []subRunEntry{
			{SubRun: 1, DetectorCounts: counts, Logs: map[string]float64{hidra.LogTwoTheta: 85}},
			{SubRun: 2, DetectorCounts: counts, Logs: map[string]float64{hidra.LogTwoTheta: 90}},
		},
	}); err != nil {
		return err
	}

	projectPath := filepath.Join(tempDir, "HB2B_999999.h5")
	if err := reduceRun(ctx, runPath, projectPath, instrumentPath, "", nil,
		reduction.Options{NumBins: 100}, logger); err != nil {
		return err
	}

	store, err := projectfile.Open(projectPath, projectfile.ReadOnly, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	ws, err := projectfile.LoadWorkspace(store, projectfile.LoadOptions{Reduced: true})
	if err != nil {
		return err
	}

	pattern, err := ws.Pattern("", 1)
	if err != nil {
		return err
	}

	total := 0.0
	for _, intensity := range pattern.Intensity {
		total += intensity
	}
	if total == 0 {
		return fmt.Errorf("reduced pattern is empty")
	}

	fmt.Printf("reduced %d sub runs into %d bins (%.0f counts in sub run 0001)\n",
		len(ws.SubRuns()), len(pattern.TwoTheta), total)
	fmt.Println("manual reduction workflow OK")

	return nil
}

// reduced view with one synthetic Gaussian peak per sub run, centered where
// the caller says
func syntheticPeakWorkspace(numSubRuns int, center func(i int) float64) *hidra.Workspace {
	ws := hidra.NewWorkspace(hidra.ProjectInfo{Instrument: "HB2B", RunNumber: 999999, IPTS: 99999})

	subRuns := hidra.SubRuns{}
	for i := 0; i < numSubRuns; i++ {
		subRuns = append(subRuns, hidra.SubRun(i+1))
	}
	ws.SetSubRuns(subRuns)

	numPoints := 301
	twoTheta := make([]float64, numPoints)
	for j := range twoTheta {
		twoTheta[j] = 82.0 + 10.0*float64(j)/float64(numPoints-1)
	}

	intensities := make([][]float64, numSubRuns)
	for i := range intensities {
		c := center(i)
		row := make([]float64, numPoints)
		for j, x := range twoTheta {
			sigma := 0.22
			row[j] = 1200*math.Exp(-(x-c)*(x-c)/(2*sigma*sigma)) + 8
		}
		intensities[i] = row
	}

	// never fails: sub runs and rows were built to match
	_ = ws.SetReduced(twoTheta, "", intensities)

	return ws
}
