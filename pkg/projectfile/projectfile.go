// HiDRA project file: a single-file store holding everything about one run --
// raw detector counts per sub run, sample logs, instrument geometry, reduced
// diffraction data and fitted peak collections.
package projectfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/boltdb/bolt"
	"github.com/function61/gokit/logex"
	"github.com/hb2btools/hidractl/pkg/hidra"
	"github.com/hb2btools/hidractl/pkg/peaks"
)

type Mode int

const (
	ReadOnly  Mode = iota // file must exist
	ReadWrite             // file must exist, appending allowed
	Overwrite             // fresh file, existing content discarded
)

var ErrReadOnly = errors.New("project file is opened read-only")

// lets optional-entry readers tell absence apart from corruption
var errEntryNotFound = errors.New("entry not found")

/*	Bolt buckets:

	info:       project  => ProjectInfo
	rawcounts:  0001     => []uint32 (per-pixel counts)
	logs:       sub-runs => []int
	            <name>   => []float64 (one per sub run)
	instrument: geometry    => InstrumentSetup
	            calibration => Calibration
	reduced:    2theta   => []float64 (bin centers)
	            <maskID> => [][]float64 (row per sub run)
	peaks:      <tag>    => peaks.Collection
*/
var (
	bucketInfo       = []byte("info")
	bucketRawCounts  = []byte("rawcounts")
	bucketLogs       = []byte("logs")
	bucketInstrument = []byte("instrument")
	bucketReduced    = []byte("reduced")
	bucketPeaks      = []byte("peaks")

	allBuckets = [][]byte{bucketInfo, bucketRawCounts, bucketLogs, bucketInstrument, bucketReduced, bucketPeaks}

	keyProject     = []byte("project")
	keyGeometry    = []byte("geometry")
	keyCalibration = []byte("calibration")
	keyTwoTheta    = []byte("2theta")
)

type Store struct {
	db   *bolt.DB
	mode Mode
	path string
	logl *logex.Leveled
}

func Open(path string, mode Mode, logger *log.Logger) (*Store, error) {
	withErr := func(err error) (*Store, error) { return nil, fmt.Errorf("projectfile.Open: %s: %w", path, err) }

	if mode == Overwrite {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return withErr(err)
		}
	} else {
		if _, err := os.Stat(path); err != nil {
			return withErr(err)
		}
	}

	// read-only opens skip bolt's exclusive file lock, so analysis tools can
	// read a project a writer still holds open
	var boltOptions *bolt.Options
	if mode == ReadOnly {
		boltOptions = &bolt.Options{ReadOnly: true}
	}

	db, err := bolt.Open(path, 0600, boltOptions)
	if err != nil {
		return withErr(err)
	}

	store := &Store{
		db:   db,
		mode: mode,
		path: path,
		logl: logex.Levels(logex.Prefix("projectfile", logger)),
	}

	if mode == Overwrite {
		// group skeleton, so readers never have to nil-check buckets
		if err := db.Update(func(tx *bolt.Tx) error {
			for _, bucket := range allBuckets {
				if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
					return err
				}
			}

			return nil
		}); err != nil {
			return withErr(err)
		}
	}

	return store, nil
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) validateWrite() error {
	if s.mode == ReadOnly {
		return ErrReadOnly
	}

	return nil
}

func (s *Store) putJSON(bucket []byte, key []byte, value interface{}) error {
	if err := s.validateWrite(); err != nil {
		return err
	}

	serialized, err := json.Marshal(value)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucket)
		if err != nil {
			return err
		}

		return b.Put(key, serialized)
	})
}

func (s *Store) getJSON(bucket []byte, key []byte, value interface{}) error {
	return s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return fmt.Errorf("project file has no %s entries: %w", bucket, errEntryNotFound)
		}

		serialized := b.Get(key)
		if serialized == nil {
			return fmt.Errorf("project file has no %s/%s: %w", bucket, key, errEntryNotFound)
		}

		return json.Unmarshal(serialized, value)
	})
}

func (s *Store) SetInfo(info hidra.ProjectInfo) error {
	return s.putJSON(bucketInfo, keyProject, info)
}

func (s *Store) Info() (*hidra.ProjectInfo, error) {
	info := &hidra.ProjectInfo{}
	if err := s.getJSON(bucketInfo, keyProject, info); err != nil {
		return nil, err
	}

	return info, nil
}

// raw detector counts collected in a single sub run
func (s *Store) AddRawCounts(subRun hidra.SubRun, counts []uint32) error {
	return s.putJSON(bucketRawCounts, []byte(subRun.String()), counts)
}

func (s *Store) RawCounts(subRun hidra.SubRun) ([]uint32, error) {
	counts := []uint32{}
	if err := s.getJSON(bucketRawCounts, []byte(subRun.String()), &counts); err != nil {
		return nil, err
	}

	return counts, nil
}

func (s *Store) SetSubRuns(subRuns hidra.SubRuns) error {
	return s.putJSON(bucketLogs, []byte(hidra.LogSubRuns), subRuns)
}

func (s *Store) SubRuns() (hidra.SubRuns, error) {
	subRuns := hidra.SubRuns{}
	if err := s.getJSON(bucketLogs, []byte(hidra.LogSubRuns), &subRuns); err != nil {
		return nil, err
	}

	return subRuns, nil
}

// sample log vector must have one value per sub run
func (s *Store) AddExperimentLog(name string, values []float64) error {
	subRuns, err := s.SubRuns()
	if err != nil {
		return fmt.Errorf("AddExperimentLog: set sub runs before logs: %w", err)
	}

	if len(values) != len(subRuns) {
		return fmt.Errorf("AddExperimentLog: log %s has %d values but project has %d sub runs", name, len(values), len(subRuns))
	}

	return s.putJSON(bucketLogs, []byte(name), values)
}

func (s *Store) Log(name string) ([]float64, error) {
	values := []float64{}
	if err := s.getJSON(bucketLogs, []byte(name), &values); err != nil {
		return nil, err
	}

	return values, nil
}

func (s *Store) LogNames() ([]string, error) {
	names := []string{}

	if err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketLogs)
		if b == nil {
			return nil
		}

		return b.ForEach(func(key, _ []byte) error {
			if string(key) != hidra.LogSubRuns {
				names = append(names, string(key))
			}

			return nil
		})
	}); err != nil {
		return nil, err
	}

	return names, nil
}

func (s *Store) SetInstrumentGeometry(setup hidra.InstrumentSetup) error {
	if err := setup.Validate(); err != nil {
		return fmt.Errorf("SetInstrumentGeometry: %w", err)
	}

	return s.putJSON(bucketInstrument, keyGeometry, setup)
}

func (s *Store) InstrumentGeometry() (*hidra.InstrumentSetup, error) {
	setup := &hidra.InstrumentSetup{}
	if err := s.getJSON(bucketInstrument, keyGeometry, setup); err != nil {
		return nil, err
	}

	return setup, nil
}

func (s *Store) SetCalibration(calib hidra.Calibration) error {
	return s.putJSON(bucketInstrument, keyCalibration, calib)
}

// nil without error when the project has no calibration. a calibration that
// is present but unreadable is an error, not an absence.
func (s *Store) Calibration() (*hidra.Calibration, error) {
	calib := &hidra.Calibration{}
	if err := s.getJSON(bucketInstrument, keyCalibration, calib); err != nil {
		if errors.Is(err, errEntryNotFound) {
			return nil, nil
		}

		return nil, err
	}

	return calib, nil
}

// stores the reduced diffraction data set: common 2theta bin centers plus an
// intensity matrix per detector view (mask). overwrites previous reduction.
func (s *Store) SetReducedData(twoTheta []float64, views map[string][][]float64) error {
	if err := s.validateWrite(); err != nil {
		return err
	}

	for maskID, matrix := range views {
		for _, row := range matrix {
			if len(row) != len(twoTheta) {
				return fmt.Errorf("SetReducedData: view %s: row length %d != 2theta length %d", maskID, len(row), len(twoTheta))
			}
		}
	}

	if err := s.putJSON(bucketReduced, keyTwoTheta, twoTheta); err != nil {
		return err
	}

	for maskID, matrix := range views {
		if maskID == "" {
			maskID = hidra.MaskDefault
		}

		if err := s.putJSON(bucketReduced, []byte(maskID), matrix); err != nil {
			return err
		}
	}

	return nil
}

func (s *Store) ReducedTwoTheta() ([]float64, error) {
	twoTheta := []float64{}
	if err := s.getJSON(bucketReduced, keyTwoTheta, &twoTheta); err != nil {
		return nil, err
	}

	return twoTheta, nil
}

func (s *Store) ReducedIntensities(maskID string) ([][]float64, error) {
	if maskID == "" {
		maskID = hidra.MaskDefault
	}

	matrix := [][]float64{}
	if err := s.getJSON(bucketReduced, []byte(maskID), &matrix); err != nil {
		return nil, err
	}

	return matrix, nil
}

// detector views present in the reduced data ("main" + any mask IDs)
func (s *Store) ReducedViews() ([]string, error) {
	views := []string{}

	if err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketReduced)
		if b == nil {
			return nil
		}

		return b.ForEach(func(key, _ []byte) error {
			if string(key) != string(keyTwoTheta) {
				views = append(views, string(key))
			}

			return nil
		})
	}); err != nil {
		return nil, err
	}

	return views, nil
}

func (s *Store) SetPeakCollection(collection *peaks.Collection) error {
	if collection.Tag == "" {
		return errors.New("SetPeakCollection: empty tag")
	}

	return s.putJSON(bucketPeaks, []byte(collection.Tag), collection)
}

func (s *Store) PeakCollection(tag string) (*peaks.Collection, error) {
	collection := &peaks.Collection{}
	if err := s.getJSON(bucketPeaks, []byte(tag), collection); err != nil {
		return nil, err
	}

	return collection, nil
}

func (s *Store) PeakTags() ([]string, error) {
	tags := []string{}

	if err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPeaks)
		if b == nil {
			return nil
		}

		return b.ForEach(func(key, _ []byte) error {
			tags = append(tags, string(key))

			return nil
		})
	}); err != nil {
		return nil, err
	}

	return tags, nil
}
