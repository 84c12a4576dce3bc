package hidracli

import (
	"fmt"
	"log"

	"github.com/function61/gokit/jsonfile"
	"github.com/function61/gokit/logex"
	"github.com/function61/gokit/osutil"
	"github.com/hb2btools/hidractl/pkg/hidra"
	"github.com/hb2btools/hidractl/pkg/projectfile"
	"github.com/hb2btools/hidractl/pkg/stress"
	"github.com/scylladb/termtables"
	"github.com/spf13/cobra"
)

func stressEntrypoint() *cobra.Command {
	stressType := string(stress.Diagonal)
	youngsModulus := 200.0
	poissonRatio := 0.3
	dReference := 0.0
	dReferenceError := 0.0
	outFile := ""

	cmd := &cobra.Command{
		Use:   "stress [project11] [project22] [project33] [tag]",
		Short: "Residual stress from strains measured along the principal directions (project33 = \"-\" for in-plane types)",
		Args:  cobra.ExactArgs(4),
		Run: func(cmd *cobra.Command, args []string) {
			rootLogger := logex.StandardLogger()

			osutil.ExitIfError(stressRun(
				args[0], args[1], args[2], args[3],
				stressType, youngsModulus, poissonRatio,
				dReference, dReferenceError, outFile,
				rootLogger))
		},
	}

	cmd.Flags().StringVar(&stressType, "type", stressType, "diagonal | in-plane-strain | in-plane-stress")
	cmd.Flags().Float64VarP(&youngsModulus, "young", "E", youngsModulus, "Young's modulus, GPa")
	cmd.Flags().Float64Var(&poissonRatio, "poisson", poissonRatio, "Poisson ratio")
	cmd.Flags().Float64Var(&dReference, "d0", dReference, "Uniform reference lattice spacing (0 = use the one stored with the fits)")
	cmd.Flags().Float64Var(&dReferenceError, "d0-error", dReferenceError, "Uncertainty of --d0")
	cmd.Flags().StringVarP(&outFile, "out", "o", outFile, "Write the stress field as JSON")

	return cmd
}

func stressRun(
	project11 string,
	project22 string,
	project33 string,
	tag string,
	stressTypeRaw string,
	youngsModulus float64,
	poissonRatio float64,
	dReference float64,
	dReferenceError float64,
	outFile string,
	logger *log.Logger,
) error {
	stressType, err := stress.ParseType(stressTypeRaw)
	if err != nil {
		return err
	}

	loadStrain := func(projectPath string) (*stress.StrainField, error) {
		return strainFromProject(projectPath, tag, dReference, dReferenceError, logger)
	}

	strain11, err := loadStrain(project11)
	if err != nil {
		return err
	}
	strain22, err := loadStrain(project22)
	if err != nil {
		return err
	}

	var strain33 *stress.StrainField
	if project33 != "-" {
		if strain33, err = loadStrain(project33); err != nil {
			return err
		}
	}

	field, err := stress.NewField(stressType, strain11, strain22, strain33, youngsModulus, poissonRatio)
	if err != nil {
		return err
	}

	view := termtables.CreateTable()
	view.AddHeaders("vx", "strain 11", "strain 22", "strain 33", "stress 11", "stress 22", "stress 33")
	for i := range field.Stress[0].Values {
		view.AddRow(
			fmt.Sprintf("%.2f", field.Stress[0].X[i]),
			fmt.Sprintf("%.2e", field.Strain[0].Field.Values[i]),
			fmt.Sprintf("%.2e", field.Strain[1].Field.Values[i]),
			fmt.Sprintf("%.2e", field.Strain[2].Field.Values[i]),
			fmt.Sprintf("%.4f", field.Stress[0].Values[i]),
			fmt.Sprintf("%.4f", field.Stress[1].Values[i]),
			fmt.Sprintf("%.4f", field.Stress[2].Values[i]),
		)
	}
	fmt.Println(view.Render())

	if outFile != "" {
		if err := jsonfile.Write(outFile, field); err != nil {
			return err
		}
		fmt.Printf("stress field written to %s\n", outFile)
	}

	return nil
}

// strain along one direction from a project file: fitted centers are
// converted to lattice spacings against the calibrated wavelength, then to
// strain against the reference spacing. scan positions come from the
// vx/vy/vz sample logs.
func strainFromProject(
	projectPath string,
	tag string,
	dReference float64,
	dReferenceError float64,
	logger *log.Logger,
) (*stress.StrainField, error) {
	store, err := projectfile.Open(projectPath, projectfile.ReadOnly, logger)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	ws, err := projectfile.LoadWorkspace(store, projectfile.LoadOptions{})
	if err != nil {
		return nil, err
	}
	if ws.Instrument == nil {
		return nil, fmt.Errorf("%s has no instrument geometry, can't convert 2theta to d-spacing", projectPath)
	}

	collection, err := store.PeakCollection(tag)
	if err != nil {
		return nil, err
	}

	if dReference > 0 {
		collection.SetDReference(dReference, dReferenceError)
	}
	if len(collection.DReference) == 0 {
		return nil, fmt.Errorf("%s: peak %s has no reference spacing, pass --d0", projectPath, tag)
	}

	wavelength := ws.Instrument.CalibratedWavelength(ws.Calibration)

	d, dErrors, err := collection.DSpacingCenters([]float64{wavelength})
	if err != nil {
		return nil, err
	}

	positions := [3][]float64{}
	for axis, name := range []string{hidra.LogVx, hidra.LogVy, hidra.LogVz} {
		values, err := ws.Log(name)
		if err != nil {
			// scans that don't move an axis may omit its log
			values = make([]float64, len(d))
		}
		positions[axis] = values
	}

	// rejected sub runs carry NaN centers, which flow through to NaN strain
	return stress.StrainFromDSpacing(
		ws.Info.RunNumber,
		d, dErrors,
		collection.DReference, collection.DReferenceErrors,
		positions[0], positions[1], positions[2])
}
