// Core types for the HB2B residual stress workflow: sub runs, sample logs,
// reduced diffraction patterns and the constants shared by the project file layout.
package hidra

import (
	"fmt"
	"sort"
)

// well-known names inside a project file. these mirror the group names used by
// the instrument's auto-reduction, so projects stay interchangeable.
const (
	LogSubRuns  = "sub-runs"
	LogTwoTheta = "2theta"
	LogOmega    = "omega"
	LogChi      = "chi"
	LogPhi      = "phi"
	LogVx       = "vx"
	LogVy       = "vy"
	LogVz       = "vz"

	// reduced data under the default (un-masked) detector view
	MaskDefault = "main"
)

// a single scan position within a run. numbering starts at 1
type SubRun int

func (s SubRun) String() string {
	// zero-padded, matches the historical group naming ("0001", "0002", ..)
	return fmt.Sprintf("%04d", int(s))
}

type SubRuns []SubRun

func (s SubRuns) Sorted() SubRuns {
	sorted := append(SubRuns{}, s...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return sorted
}

// index of given sub run, or -1
func (s SubRuns) IndexOf(subRun SubRun) int {
	for idx, candidate := range s {
		if candidate == subRun {
			return idx
		}
	}

	return -1
}

// intensity-vs-2theta histogram for one sub run
type Pattern struct {
	TwoTheta  []float64 `json:"two_theta"` // bin centers, degrees
	Intensity []float64 `json:"intensity"`
}

// per-sub-run float sample log (motor positions, temperatures, detector angle, ..)
type SampleLog struct {
	Name   string    `json:"name"`
	Values []float64 `json:"values"` // one per sub run, same order as the sub run list
}

type ProjectInfo struct {
	Instrument string `json:"instrument"`
	RunNumber  int    `json:"run_number"`
	IPTS       int    `json:"ipts"`
}
