package hidracli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/function61/gokit/logex"
	"github.com/function61/gokit/osutil"
	"github.com/hb2btools/hidractl/pkg/runcatalog"
	"github.com/scylladb/termtables"
	"github.com/spf13/cobra"
)

const defaultCatalogPath = "hidra-catalog.db"

func catalogEntrypoint() *cobra.Command {
	catalogPath := defaultCatalogPath

	parentCmd := &cobra.Command{
		Use:   "catalog",
		Short: "Run catalog management",
	}
	parentCmd.PersistentFlags().StringVar(&catalogPath, "db", catalogPath, "Catalog database file")

	parentCmd.AddCommand(&cobra.Command{
		Use:   "register [runNumber] [ipts] [rawPath]",
		Short: "Register a measured run",
		Args:  cobra.ExactArgs(3),
		Run: func(cmd *cobra.Command, args []string) {
			rootLogger := logex.StandardLogger()
			ctx := osutil.CancelOnInterruptOrTerminate(rootLogger)

			osutil.ExitIfError(func() error {
				runNumber, err := strconv.Atoi(args[0])
				if err != nil {
					return err
				}
				ipts, err := strconv.Atoi(args[1])
				if err != nil {
					return err
				}

				catalog, err := runcatalog.Open(catalogPath)
				if err != nil {
					return err
				}
				defer catalog.Close()

				return catalog.Register(ctx, runNumber, ipts, args[2])
			}())
		},
	})

	parentCmd.AddCommand(&cobra.Command{
		Use:   "show [runNumber]",
		Short: "Show one run",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			rootLogger := logex.StandardLogger()
			ctx := osutil.CancelOnInterruptOrTerminate(rootLogger)

			osutil.ExitIfError(func() error {
				runNumber, err := strconv.Atoi(args[0])
				if err != nil {
					return err
				}

				catalog, err := runcatalog.Open(catalogPath)
				if err != nil {
					return err
				}
				defer catalog.Close()

				run, err := catalog.Run(ctx, runNumber)
				if err != nil {
					return err
				}

				fmt.Printf(
					"run %d\n  IPTS: %d\n  raw: %s\n  project: %s\n  registered: %s\n",
					run.RunNumber, run.IPTS, run.RawPath, orDash(run.ProjectPath), run.RegisteredAt.Format("2006-01-02 15:04:05"))

				return nil
			}())
		},
	})

	parentCmd.AddCommand(&cobra.Command{
		Use:   "ls [ipts]",
		Short: "List the runs of one IPTS",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			rootLogger := logex.StandardLogger()
			ctx := osutil.CancelOnInterruptOrTerminate(rootLogger)

			osutil.ExitIfError(catalogList(ctx, catalogPath, args[0]))
		},
	})

	return parentCmd
}

func catalogList(ctx context.Context, catalogPath string, iptsRaw string) error {
	ipts, err := strconv.Atoi(iptsRaw)
	if err != nil {
		return err
	}

	catalog, err := runcatalog.Open(catalogPath)
	if err != nil {
		return err
	}
	defer catalog.Close()

	runs, err := catalog.RunsForIPTS(ctx, ipts)
	if err != nil {
		return err
	}

	view := termtables.CreateTable()
	view.AddHeaders("Run", "Raw", "Project")

	for _, run := range runs {
		view.AddRow(run.RunNumber, run.RawPath, orDash(run.ProjectPath))
	}

	fmt.Println(view.Render())

	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}

	return s
}
