package hidracli

import (
	"fmt"
	"log"
	"math"

	"github.com/function61/gokit/logex"
	"github.com/function61/gokit/osutil"
	"github.com/hb2btools/hidractl/pkg/projectfile"
	"github.com/hb2btools/hidractl/pkg/texture"
	"github.com/scylladb/termtables"
	"github.com/spf13/cobra"
)

func textureEntrypoint() *cobra.Command {
	maxChi2 := 10.0
	outFile := ""

	cmd := &cobra.Command{
		Use:   "texture [projectFile] [tag]",
		Short: "Pole figure from fitted peak intensities and goniometer logs",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			rootLogger := logex.StandardLogger()

			osutil.ExitIfError(textureRun(args[0], args[1], maxChi2, outFile, rootLogger))
		},
	}

	cmd.Flags().Float64Var(&maxChi2, "max-chi2", maxChi2, "Leave out sub runs whose fit cost exceeds this")
	cmd.Flags().StringVarP(&outFile, "out", "o", outFile, "Write the pole figure as JSON")

	return cmd
}

func textureRun(projectPath string, tag string, maxChi2 float64, outFile string, logger *log.Logger) error {
	store, err := projectfile.Open(projectPath, projectfile.ReadOnly, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	ws, err := projectfile.LoadWorkspace(store, projectfile.LoadOptions{})
	if err != nil {
		return err
	}

	collection, err := store.PeakCollection(tag)
	if err != nil {
		return err
	}

	figure, err := texture.CalculatePoleFigure(ws, collection, maxChi2, logger)
	if err != nil {
		return err
	}

	view := termtables.CreateTable()
	view.AddHeaders("Sub run", "Alpha (deg)", "Beta (deg)", "Intensity")
	for _, point := range figure.Points {
		view.AddRow(
			point.SubRun.String(),
			fmt.Sprintf("%.2f", point.Alpha*180/math.Pi),
			fmt.Sprintf("%.2f", point.Beta*180/math.Pi),
			fmt.Sprintf("%.1f", point.Intensity),
		)
	}
	fmt.Println(view.Render())

	if outFile != "" {
		if err := texture.Export(figure, outFile); err != nil {
			return err
		}
		fmt.Printf("pole figure written to %s\n", outFile)
	}

	return nil
}
