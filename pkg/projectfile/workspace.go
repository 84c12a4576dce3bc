package projectfile

import (
	"fmt"

	"github.com/hb2btools/hidractl/pkg/hidra"
)

// what LoadWorkspace pulls out of the file. raw counts can be megabytes per
// sub run, so callers that only want logs or reduced patterns skip them.
type LoadOptions struct {
	RawCounts bool
	Reduced   bool
}

// reads a workspace out of the project file. instrument geometry and
// calibration are optional in the file and stay nil on the workspace when
// absent.
func LoadWorkspace(store *Store, opts LoadOptions) (*hidra.Workspace, error) {
	info, err := store.Info()
	if err != nil {
		return nil, fmt.Errorf("LoadWorkspace: %w", err)
	}

	ws := hidra.NewWorkspace(*info)

	subRuns, err := store.SubRuns()
	if err != nil {
		return nil, fmt.Errorf("LoadWorkspace: %w", err)
	}
	ws.SetSubRuns(subRuns)

	logNames, err := store.LogNames()
	if err != nil {
		return nil, err
	}
	for _, name := range logNames {
		values, err := store.Log(name)
		if err != nil {
			return nil, err
		}
		if err := ws.SetLog(name, values); err != nil {
			return nil, fmt.Errorf("LoadWorkspace: %w", err)
		}
	}

	if setup, err := store.InstrumentGeometry(); err == nil {
		ws.Instrument = setup
	}

	calib, err := store.Calibration()
	if err != nil {
		return nil, err
	}
	ws.Calibration = calib

	if opts.RawCounts {
		for _, subRun := range subRuns {
			counts, err := store.RawCounts(subRun)
			if err != nil {
				return nil, fmt.Errorf("LoadWorkspace: %w", err)
			}
			ws.SetRawCounts(subRun, counts)
		}
	}

	if opts.Reduced {
		views, err := store.ReducedViews()
		if err != nil {
			return nil, err
		}
		if len(views) > 0 {
			twoTheta, err := store.ReducedTwoTheta()
			if err != nil {
				return nil, err
			}
			for _, maskID := range views {
				matrix, err := store.ReducedIntensities(maskID)
				if err != nil {
					return nil, err
				}
				if err := ws.SetReduced(twoTheta, maskID, matrix); err != nil {
					return nil, fmt.Errorf("LoadWorkspace: %w", err)
				}
			}
		}
	}

	return ws, nil
}

// writes the experiment data (sub runs, logs, raw counts) plus instrument
// and reduced patterns when the workspace carries them.
func SaveWorkspace(store *Store, ws *hidra.Workspace) error {
	if err := store.SetInfo(ws.Info); err != nil {
		return fmt.Errorf("SaveWorkspace: %w", err)
	}

	subRuns := ws.SubRuns()
	if err := store.SetSubRuns(subRuns); err != nil {
		return fmt.Errorf("SaveWorkspace: %w", err)
	}

	for _, name := range ws.LogNames() {
		values, err := ws.Log(name)
		if err != nil {
			return err
		}
		if err := store.AddExperimentLog(name, values); err != nil {
			return fmt.Errorf("SaveWorkspace: %w", err)
		}
	}

	for _, subRun := range subRuns {
		counts, err := ws.RawCounts(subRun)
		if err != nil {
			continue // counts were not loaded, nothing to write back
		}
		if err := store.AddRawCounts(subRun, counts); err != nil {
			return fmt.Errorf("SaveWorkspace: %w", err)
		}
	}

	if ws.Instrument != nil {
		if err := store.SetInstrumentGeometry(*ws.Instrument); err != nil {
			return fmt.Errorf("SaveWorkspace: %w", err)
		}
	}
	if ws.Calibration != nil {
		if err := store.SetCalibration(*ws.Calibration); err != nil {
			return fmt.Errorf("SaveWorkspace: %w", err)
		}
	}

	views := ws.ReducedViews()
	if len(views) > 0 {
		matrices := map[string][][]float64{}
		var twoTheta []float64
		for _, maskID := range views {
			bins, matrix, err := ws.ReducedMatrix(maskID)
			if err != nil {
				return err
			}
			twoTheta = bins
			matrices[maskID] = matrix
		}
		if err := store.SetReducedData(twoTheta, matrices); err != nil {
			return fmt.Errorf("SaveWorkspace: %w", err)
		}
	}

	return nil
}
