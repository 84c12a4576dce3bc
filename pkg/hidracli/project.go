package hidracli

import (
	"fmt"
	"log"

	"github.com/function61/gokit/logex"
	"github.com/function61/gokit/osutil"
	"github.com/hb2btools/hidractl/pkg/projectfile"
	"github.com/scylladb/termtables"
	"github.com/spf13/cobra"
)

func projectEntrypoint() *cobra.Command {
	parentCmd := &cobra.Command{
		Use:   "project",
		Short: "Inspect project files",
	}

	parentCmd.AddCommand(&cobra.Command{
		Use:   "ls [projectFile]",
		Short: "Summary: run info, sub runs, reduced views, peak tags",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			osutil.ExitIfError(projectSummary(args[0], logex.StandardLogger()))
		},
	})

	parentCmd.AddCommand(&cobra.Command{
		Use:   "logs [projectFile]",
		Short: "Sample logs, one row per sub run",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			osutil.ExitIfError(projectLogs(args[0], logex.StandardLogger()))
		},
	})

	parentCmd.AddCommand(&cobra.Command{
		Use:   "cat [projectFile] [tag]",
		Short: "Fitted parameters of one peak collection",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			osutil.ExitIfError(projectCat(args[0], args[1], logex.StandardLogger()))
		},
	})

	return parentCmd
}

func projectSummary(projectPath string, logger *log.Logger) error {
	store, err := projectfile.Open(projectPath, projectfile.ReadOnly, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	info, err := store.Info()
	if err != nil {
		return err
	}

	subRuns, err := store.SubRuns()
	if err != nil {
		return err
	}

	views, err := store.ReducedViews()
	if err != nil {
		return err
	}

	tags, err := store.PeakTags()
	if err != nil {
		return err
	}

	fmt.Printf(
		"%s run %d (IPTS-%d)\n  sub runs: %d\n  reduced views: %v\n  peaks: %v\n",
		info.Instrument, info.RunNumber, info.IPTS, len(subRuns), views, tags)

	return nil
}

func projectLogs(projectPath string, logger *log.Logger) error {
	store, err := projectfile.Open(projectPath, projectfile.ReadOnly, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	subRuns, err := store.SubRuns()
	if err != nil {
		return err
	}

	names, err := store.LogNames()
	if err != nil {
		return err
	}

	view := termtables.CreateTable()
	view.AddHeaders(append([]interface{}{"Sub run"}, toCells(names)...)...)

	logs := map[string][]float64{}
	for _, name := range names {
		values, err := store.Log(name)
		if err != nil {
			return err
		}
		logs[name] = values
	}

	for row, subRun := range subRuns {
		cells := []interface{}{subRun.String()}
		for _, name := range names {
			cells = append(cells, fmt.Sprintf("%.4f", logs[name][row]))
		}
		view.AddRow(cells...)
	}

	fmt.Println(view.Render())

	return nil
}

func projectCat(projectPath string, tag string, logger *log.Logger) error {
	store, err := projectfile.Open(projectPath, projectfile.ReadOnly, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	collection, err := store.PeakCollection(tag)
	if err != nil {
		return err
	}

	fmt.Printf("peak %s: %s + %s background\n", collection.Tag, collection.Profile, collection.Background)

	view := termtables.CreateTable()
	view.AddHeaders(append([]interface{}{"Sub run", "Cost"}, toCells(collection.ParamNames)...)...)

	for row, subRun := range collection.SubRuns {
		cells := []interface{}{subRun.String(), fmt.Sprintf("%.3f", collection.Costs[row])}
		for col := range collection.ParamNames {
			cells = append(cells, fmt.Sprintf("%.4f", collection.Values[row][col]))
		}
		view.AddRow(cells...)
	}

	fmt.Println(view.Render())

	return nil
}

func toCells(names []string) []interface{} {
	cells := make([]interface{}, len(names))
	for i, name := range names {
		cells[i] = name
	}

	return cells
}
