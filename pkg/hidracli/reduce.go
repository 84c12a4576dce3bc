package hidracli

import (
	"context"
	"fmt"
	"log"

	"github.com/function61/gokit/logex"
	"github.com/function61/gokit/osutil"
	"github.com/hb2btools/hidractl/pkg/hidra"
	"github.com/hb2btools/hidractl/pkg/hidrapaths"
	"github.com/hb2btools/hidractl/pkg/nexus"
	"github.com/hb2btools/hidractl/pkg/projectfile"
	"github.com/hb2btools/hidractl/pkg/reduction"
	"github.com/spf13/cobra"
)

func reduceEntrypoint() *cobra.Command {
	instrumentFile := ""
	calibrationFile := ""
	maskFiles := []string{}
	numBins := 0
	twoThetaMin := 0.0
	twoThetaMax := 0.0

	cmd := &cobra.Command{
		Use:   "reduce [runFile] [projectFile]",
		Short: "Reduce raw detector counts into diffraction patterns, producing a project file",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			rootLogger := logex.StandardLogger()

			osutil.ExitIfError(reduceRun(
				osutil.CancelOnInterruptOrTerminate(rootLogger),
				args[0],
				args[1],
				instrumentFile,
				calibrationFile,
				maskFiles,
				reduction.Options{NumBins: numBins, TwoThetaMin: twoThetaMin, TwoThetaMax: twoThetaMax},
				rootLogger))
		},
	}

	cmd.Flags().StringVarP(&instrumentFile, "instrument", "i", instrumentFile, "Instrument definition YAML (default: nominal HB2B)")
	cmd.Flags().StringVarP(&calibrationFile, "calibration", "c", calibrationFile, "Geometry calibration JSON")
	cmd.Flags().StringArrayVarP(&maskFiles, "mask", "m", maskFiles, "Detector mask file (repeatable, each adds a reduced view)")
	cmd.Flags().IntVarP(&numBins, "bins", "b", numBins, "Number of 2theta bins (0 = default)")
	cmd.Flags().Float64Var(&twoThetaMin, "min", twoThetaMin, "2theta range start (0 with --max 0 = auto)")
	cmd.Flags().Float64Var(&twoThetaMax, "max", twoThetaMax, "2theta range end")

	return cmd
}

func reduceRun(
	ctx context.Context,
	runFile string,
	projectPath string,
	instrumentFile string,
	calibrationFile string,
	maskFiles []string,
	opts reduction.Options,
	logger *log.Logger,
) error {
	ws, err := nexus.ReadRun(runFile)
	if err != nil {
		return err
	}

	if instrumentFile != "" {
		setup, err := hidra.ReadInstrumentSetup(instrumentFile)
		if err != nil {
			return err
		}
		ws.Instrument = setup
	} else {
		ws.Instrument = hidra.DefaultInstrument()
	}

	if calibrationFile != "" {
		calib, err := hidra.ReadCalibration(hidrapaths.LocateShared(calibrationFile, hidrapaths.CalibrationDir()))
		if err != nil {
			return err
		}
		ws.Calibration = calib
	}

	for _, maskFile := range maskFiles {
		mask, err := nexus.ReadMask(hidrapaths.LocateShared(maskFile, hidrapaths.MaskDir()))
		if err != nil {
			return err
		}
		opts.Masks = append(opts.Masks, mask)
	}

	if err := reduction.Reduce(ctx, ws, opts, logger); err != nil {
		return err
	}

	store, err := projectfile.Open(projectPath, projectfile.Overwrite, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := projectfile.SaveWorkspace(store, ws); err != nil {
		return err
	}

	fmt.Printf("run %d: %d sub runs reduced to %s\n", ws.Info.RunNumber, len(ws.SubRuns()), projectPath)

	return nil
}
