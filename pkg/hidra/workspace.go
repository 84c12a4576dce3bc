package hidra

import (
	"fmt"
)

// in-memory view of one run: raw counts, sample logs and reduced patterns.
// the project file is the durable form of this; reduction and peak fitting
// operate on the workspace.
type Workspace struct {
	Info        ProjectInfo
	Instrument  *InstrumentSetup
	Calibration *Calibration

	subRuns   SubRuns
	rawCounts map[SubRun][]uint32
	logs      map[string][]float64

	twoTheta []float64            // shared bin centers for all reduced views
	reduced  map[string][][]float64 // mask id => row per sub run
}

func NewWorkspace(info ProjectInfo) *Workspace {
	return &Workspace{
		Info:      info,
		rawCounts: map[SubRun][]uint32{},
		logs:      map[string][]float64{},
		reduced:   map[string][][]float64{},
	}
}

func (w *Workspace) SetSubRuns(subRuns SubRuns) {
	w.subRuns = subRuns.Sorted()
}

func (w *Workspace) SubRuns() SubRuns {
	return w.subRuns
}

func (w *Workspace) SetRawCounts(subRun SubRun, counts []uint32) {
	w.rawCounts[subRun] = counts
}

func (w *Workspace) RawCounts(subRun SubRun) ([]uint32, error) {
	counts, found := w.rawCounts[subRun]
	if !found {
		return nil, fmt.Errorf("no raw counts for sub run %s", subRun)
	}

	return counts, nil
}

// log vector must align with the sub run list (one value per sub run)
func (w *Workspace) SetLog(name string, values []float64) error {
	if len(values) != len(w.subRuns) {
		return fmt.Errorf("sample log %s has %d values but there are %d sub runs", name, len(values), len(w.subRuns))
	}

	w.logs[name] = values

	return nil
}

func (w *Workspace) LogNames() []string {
	names := []string{}
	for name := range w.logs {
		names = append(names, name)
	}

	return names
}

func (w *Workspace) Log(name string) ([]float64, error) {
	values, found := w.logs[name]
	if !found {
		return nil, fmt.Errorf("no sample log: %s", name)
	}

	return values, nil
}

func (w *Workspace) LogValue(name string, subRun SubRun) (float64, error) {
	values, err := w.Log(name)
	if err != nil {
		return 0, err
	}

	idx := w.subRuns.IndexOf(subRun)
	if idx == -1 {
		return 0, fmt.Errorf("unknown sub run: %s", subRun)
	}

	return values[idx], nil
}

func (w *Workspace) SetReduced(twoTheta []float64, maskID string, intensities [][]float64) error {
	if maskID == "" {
		maskID = MaskDefault
	}

	if len(intensities) != len(w.subRuns) {
		return fmt.Errorf("reduced view %s has %d rows but there are %d sub runs", maskID, len(intensities), len(w.subRuns))
	}
	for _, row := range intensities {
		if len(row) != len(twoTheta) {
			return fmt.Errorf("reduced view %s: intensity row length %d != 2theta vector length %d", maskID, len(row), len(twoTheta))
		}
	}

	w.twoTheta = twoTheta
	w.reduced[maskID] = intensities

	return nil
}

func (w *Workspace) ReducedViews() []string {
	views := []string{}
	for maskID := range w.reduced {
		views = append(views, maskID)
	}

	return views
}

func (w *Workspace) ReducedMatrix(maskID string) ([]float64, [][]float64, error) {
	if maskID == "" {
		maskID = MaskDefault
	}

	matrix, found := w.reduced[maskID]
	if !found {
		return nil, nil, fmt.Errorf("no reduced view: %s", maskID)
	}

	return w.twoTheta, matrix, nil
}

// histogram of one sub run, from the given reduced view ("" = default)
func (w *Workspace) Pattern(maskID string, subRun SubRun) (*Pattern, error) {
	twoTheta, matrix, err := w.ReducedMatrix(maskID)
	if err != nil {
		return nil, err
	}

	idx := w.subRuns.IndexOf(subRun)
	if idx == -1 {
		return nil, fmt.Errorf("unknown sub run: %s", subRun)
	}

	return &Pattern{TwoTheta: twoTheta, Intensity: matrix[idx]}, nil
}
