// Package nexus reads run files recorded by the data acquisition system and
// turns them into workspaces ready for reduction.
package nexus

import (
	"fmt"
	"sort"

	"github.com/function61/gokit/jsonfile"
	"github.com/hb2btools/hidractl/pkg/hidra"
)

type runFile struct {
	Instrument string       `json:"instrument"`
	RunNumber  int          `json:"run_number"`
	IPTS       int          `json:"ipts"`
	SubRuns    []subRunData `json:"sub_runs"`
}

type subRunData struct {
	SubRun         hidra.SubRun       `json:"sub_run"`
	DetectorCounts []uint32           `json:"detector_counts"`
	Logs           map[string]float64 `json:"logs"`
}

// reads one recorded run. every sub run must carry the same set of sample
// logs, since a workspace log is one value per sub run.
func ReadRun(path string) (*hidra.Workspace, error) {
	run := &runFile{}
	if err := jsonfile.Read(path, run, true); err != nil {
		return nil, fmt.Errorf("ReadRun: %w", err)
	}

	if len(run.SubRuns) == 0 {
		return nil, fmt.Errorf("ReadRun: %s has no sub runs", path)
	}

	ws := hidra.NewWorkspace(hidra.ProjectInfo{
		Instrument: run.Instrument,
		RunNumber:  run.RunNumber,
		IPTS:       run.IPTS,
	})

	subRuns := hidra.SubRuns{}
	for _, entry := range run.SubRuns {
		subRuns = append(subRuns, entry.SubRun)
	}
	ws.SetSubRuns(subRuns)

	for _, entry := range run.SubRuns {
		ws.SetRawCounts(entry.SubRun, entry.DetectorCounts)
	}

	for _, name := range logNames(run.SubRuns[0].Logs) {
		values := make([]float64, len(ws.SubRuns()))
		for i, subRun := range ws.SubRuns() {
			entry, err := findSubRun(run.SubRuns, subRun)
			if err != nil {
				return nil, err
			}

			value, found := entry.Logs[name]
			if !found {
				return nil, fmt.Errorf("ReadRun: sub run %s is missing sample log %s", subRun, name)
			}
			values[i] = value
		}

		if err := ws.SetLog(name, values); err != nil {
			return nil, fmt.Errorf("ReadRun: %w", err)
		}
	}

	return ws, nil
}

func logNames(logs map[string]float64) []string {
	names := []string{}
	for name := range logs {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

func findSubRun(entries []subRunData, subRun hidra.SubRun) (*subRunData, error) {
	for i, entry := range entries {
		if entry.SubRun == subRun {
			return &entries[i], nil
		}
	}

	return nil, fmt.Errorf("ReadRun: no sub run %s", subRun)
}
