package hidracli

import (
	"context"
	"fmt"
	"log"
	"strconv"

	"github.com/function61/gokit/logex"
	"github.com/function61/gokit/osutil"
	"github.com/hb2btools/hidractl/pkg/hidra"
	"github.com/hb2btools/hidractl/pkg/peakfit"
	"github.com/hb2btools/hidractl/pkg/projectfile"
	"github.com/scylladb/termtables"
	"github.com/spf13/cobra"
)

func fitEntrypoint() *cobra.Command {
	background := string(hidra.BackgroundLinear)
	maskID := ""
	maxChi2 := 0.0

	cmd := &cobra.Command{
		Use:   "fit [projectFile] [tag] [profile] [windowMin] [windowMax]",
		Short: "Fit one peak in every sub run and store the collection in the project file",
		Args:  cobra.ExactArgs(5),
		Run: func(cmd *cobra.Command, args []string) {
			rootLogger := logex.StandardLogger()

			windowMin, err := strconv.ParseFloat(args[3], 64)
			osutil.ExitIfError(err)
			windowMax, err := strconv.ParseFloat(args[4], 64)
			osutil.ExitIfError(err)

			osutil.ExitIfError(fitRun(
				osutil.CancelOnInterruptOrTerminate(rootLogger),
				args[0],
				peakfit.PeakSpec{
					Tag:       args[1],
					WindowMin: windowMin,
					WindowMax: windowMax,
				},
				args[2],
				background,
				maskID,
				maxChi2,
				rootLogger))
		},
	}

	cmd.Flags().StringVar(&background, "background", background, "Background function")
	cmd.Flags().StringVar(&maskID, "mask", maskID, "Reduced view to fit against (default: unmasked)")
	cmd.Flags().Float64Var(&maxChi2, "max-chi2", maxChi2, "Reject fits above this cost (0 = keep all)")

	return cmd
}

func fitRun(
	ctx context.Context,
	projectPath string,
	spec peakfit.PeakSpec,
	profileRaw string,
	backgroundRaw string,
	maskID string,
	maxChi2 float64,
	logger *log.Logger,
) error {
	profile, err := hidra.ParsePeakProfile(profileRaw)
	if err != nil {
		return err
	}
	spec.Profile = profile

	background, err := hidra.ParseBackgroundFunction(backgroundRaw)
	if err != nil {
		return err
	}
	spec.Background = background

	store, err := projectfile.Open(projectPath, projectfile.ReadWrite, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	ws, err := projectfile.LoadWorkspace(store, projectfile.LoadOptions{Reduced: true})
	if err != nil {
		return err
	}

	collection, err := peakfit.FitPeaks(ctx, ws, maskID, spec, logger)
	if err != nil {
		return err
	}

	if maxChi2 > 0 {
		rejected := collection.ApplyCostCriterion(maxChi2)
		if rejected > 0 {
			fmt.Printf("%d sub run(s) rejected by cost criterion\n", rejected)
		}
	}

	if err := store.SetPeakCollection(collection); err != nil {
		return err
	}

	view := termtables.CreateTable()
	view.AddHeaders("Sub run", "Centre", "Cost")

	centers, _, err := collection.Param("PeakCentre")
	if err != nil {
		return err
	}
	for row, subRun := range collection.SubRuns {
		view.AddRow(subRun.String(), fmt.Sprintf("%.4f", centers[row]), fmt.Sprintf("%.3f", collection.Costs[row]))
	}

	fmt.Println(view.Render())

	return nil
}
