package projectfile

import (
	"path/filepath"
	"testing"

	"github.com/boltdb/bolt"
	"github.com/function61/gokit/assert"
	"github.com/hb2btools/hidractl/pkg/hidra"
	"github.com/hb2btools/hidractl/pkg/peaks"
)

func testInstrument() hidra.InstrumentSetup {
	return hidra.InstrumentSetup{
		Name:       "HB2B",
		Wavelength: 1.54,
		Detector: hidra.DetectorGeometry{
			NumRows:    4,
			NumColumns: 4,
			PixelSizeX: 0.0003,
			PixelSizeY: 0.0003,
			ArmLength:  0.985,
		},
	}
}

func openTestProject(t *testing.T) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "HB2B_1060.h5"), Overwrite, nil)
	assert.Ok(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

func TestConcurrentReadOnlyOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "HB2B_1060.h5")

	writer, err := Open(path, Overwrite, nil)
	assert.Ok(t, err)
	assert.Ok(t, writer.SetSubRuns(hidra.SubRuns{1, 2}))
	assert.Ok(t, writer.Close())

	// read-only opens share the file lock, so two analysis tools can read
	// the same project at once
	first, err := Open(path, ReadOnly, nil)
	assert.Ok(t, err)
	defer first.Close()

	second, err := Open(path, ReadOnly, nil)
	assert.Ok(t, err)
	defer second.Close()

	subRuns, err := second.SubRuns()
	assert.Ok(t, err)
	assert.Assert(t, len(subRuns) == 2)
}

func TestCalibrationAbsentVsCorrupt(t *testing.T) {
	store := openTestProject(t)

	// no calibration stored: nil result, not an error
	calib, err := store.Calibration()
	assert.Ok(t, err)
	assert.Assert(t, calib == nil)

	assert.Ok(t, store.SetCalibration(hidra.Calibration{ShiftX: 0.001}))

	calib, err = store.Calibration()
	assert.Ok(t, err)
	assert.Assert(t, calib.ShiftX == 0.001)

	// a calibration that is present but unreadable must surface as an error
	assert.Ok(t, store.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketInstrument).Put(keyCalibration, []byte("{broken"))
	}))

	_, err = store.Calibration()
	assert.Assert(t, err != nil)
}

func TestOpenMissingFileReadOnly(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.h5"), ReadOnly, nil)
	assert.Assert(t, err != nil)
}

func TestReadOnlyRejectsWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "HB2B_1060.h5")

	store, err := Open(path, Overwrite, nil)
	assert.Ok(t, err)
	assert.Ok(t, store.SetSubRuns(hidra.SubRuns{1}))
	assert.Ok(t, store.Close())

	readOnly, err := Open(path, ReadOnly, nil)
	assert.Ok(t, err)
	defer readOnly.Close()

	err = readOnly.SetSubRuns(hidra.SubRuns{1, 2})
	assert.Assert(t, err == ErrReadOnly)

	subRuns, err := readOnly.SubRuns()
	assert.Ok(t, err)
	assert.Assert(t, len(subRuns) == 1)
}

func TestExperimentData(t *testing.T) {
	store := openTestProject(t)

	assert.Ok(t, store.SetInfo(hidra.ProjectInfo{Instrument: "HB2B", RunNumber: 1060, IPTS: 22731}))
	assert.Ok(t, store.SetSubRuns(hidra.SubRuns{1, 2, 3}))

	// log length must match sub run count
	err := store.AddExperimentLog(hidra.LogTwoTheta, []float64{80, 90})
	assert.Assert(t, err != nil)

	assert.Ok(t, store.AddExperimentLog(hidra.LogTwoTheta, []float64{80, 90, 100}))
	assert.Ok(t, store.AddExperimentLog(hidra.LogVx, []float64{0, 1, 2}))

	assert.Ok(t, store.AddRawCounts(1, []uint32{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}))

	info, err := store.Info()
	assert.Ok(t, err)
	assert.Assert(t, info.RunNumber == 1060)

	counts, err := store.RawCounts(1)
	assert.Ok(t, err)
	assert.Assert(t, len(counts) == 16)
	assert.Assert(t, counts[15] == 15)

	_, err = store.RawCounts(2)
	assert.Assert(t, err != nil)

	names, err := store.LogNames()
	assert.Ok(t, err)
	assert.Assert(t, len(names) == 2) // sub-runs not listed as a log
}

func TestInstrumentRoundTrip(t *testing.T) {
	store := openTestProject(t)

	assert.Ok(t, store.SetInstrumentGeometry(testInstrument()))
	assert.Ok(t, store.SetCalibration(hidra.Calibration{ShiftX: 0.001, RotationZ: 0.5}))

	setup, err := store.InstrumentGeometry()
	assert.Ok(t, err)
	assert.EqualString(t, setup.Name, "HB2B")
	assert.Assert(t, setup.Detector.NumPixels() == 16)

	calib, err := store.Calibration()
	assert.Ok(t, err)
	assert.Assert(t, calib.RotationZ == 0.5)

	// geometry is validated on write
	bogus := testInstrument()
	bogus.Detector.ArmLength = 0
	assert.Assert(t, store.SetInstrumentGeometry(bogus) != nil)
}

func TestReducedData(t *testing.T) {
	store := openTestProject(t)
	assert.Ok(t, store.SetSubRuns(hidra.SubRuns{1, 2}))

	twoTheta := []float64{80, 81, 82}

	// row length mismatch
	err := store.SetReducedData(twoTheta, map[string][][]float64{"": {{1, 2}, {3, 4}}})
	assert.Assert(t, err != nil)

	assert.Ok(t, store.SetReducedData(twoTheta, map[string][][]float64{
		"":      {{1, 2, 3}, {4, 5, 6}},
		"Chi_0": {{7, 8, 9}, {10, 11, 12}},
	}))

	views, err := store.ReducedViews()
	assert.Ok(t, err)
	assert.Assert(t, len(views) == 2)

	matrix, err := store.ReducedIntensities("") // "" = main
	assert.Ok(t, err)
	assert.Assert(t, matrix[1][2] == 6)

	// second reduction overwrites
	assert.Ok(t, store.SetReducedData([]float64{85, 86}, map[string][][]float64{"": {{9, 9}, {8, 8}}}))

	reloaded, err := store.ReducedTwoTheta()
	assert.Ok(t, err)
	assert.Assert(t, len(reloaded) == 2)
}

func TestWorkspaceRoundTrip(t *testing.T) {
	store := openTestProject(t)

	ws := hidra.NewWorkspace(hidra.ProjectInfo{Instrument: "HB2B", RunNumber: 1060, IPTS: 22731})
	ws.SetSubRuns(hidra.SubRuns{1, 2})
	assert.Ok(t, ws.SetLog(hidra.LogTwoTheta, []float64{80, 90}))
	ws.SetRawCounts(1, []uint32{4, 4, 4, 4})
	ws.SetRawCounts(2, []uint32{5, 5, 5, 5})
	setup := testInstrument()
	ws.Instrument = &setup
	assert.Ok(t, ws.SetReduced([]float64{80, 81}, "", [][]float64{{10, 20}, {30, 40}}))

	assert.Ok(t, SaveWorkspace(store, ws))

	restored, err := LoadWorkspace(store, LoadOptions{RawCounts: true, Reduced: true})
	assert.Ok(t, err)

	assert.Assert(t, restored.Info.RunNumber == 1060)
	assert.Assert(t, len(restored.SubRuns()) == 2)
	assert.Assert(t, restored.Instrument != nil)
	assert.Assert(t, restored.Calibration == nil)

	twoTheta, err := restored.Log(hidra.LogTwoTheta)
	assert.Ok(t, err)
	assert.Assert(t, twoTheta[1] == 90)

	counts, err := restored.RawCounts(2)
	assert.Ok(t, err)
	assert.Assert(t, counts[0] == 5)

	pattern, err := restored.Pattern("", 2)
	assert.Ok(t, err)
	assert.Assert(t, pattern.Intensity[1] == 40)

	// skipping raw counts leaves them out of the workspace
	slim, err := LoadWorkspace(store, LoadOptions{})
	assert.Ok(t, err)
	_, err = slim.RawCounts(1)
	assert.Assert(t, err != nil)
}

func TestPeakCollections(t *testing.T) {
	store := openTestProject(t)

	col := peaks.NewCollection("Si111", hidra.ProfileGaussian, hidra.BackgroundLinear)
	assert.Ok(t, col.SetFit(
		hidra.SubRuns{1},
		[][]float64{{100, 90, 0.3, 1, 0}},
		[][]float64{{1, 0.01, 0.01, 0.1, 0.01}},
		[]float64{1.2}))

	assert.Ok(t, store.SetPeakCollection(col))

	restored, err := store.PeakCollection("Si111")
	assert.Ok(t, err)
	assert.Assert(t, restored.Profile == hidra.ProfileGaussian)
	assert.Assert(t, restored.Values[0][1] == 90)

	tags, err := store.PeakTags()
	assert.Ok(t, err)
	assert.Assert(t, len(tags) == 1)

	_, err = store.PeakCollection("Fe110")
	assert.Assert(t, err != nil)
}
