package hidracli

import (
	"fmt"
	"strconv"

	"github.com/function61/gokit/logex"
	"github.com/function61/gokit/osutil"
	"github.com/hb2btools/hidractl/pkg/archive"
	"github.com/spf13/cobra"
)

func archiveEntrypoint() *cobra.Command {
	bucket := ""
	region := "us-east-1"

	parentCmd := &cobra.Command{
		Use:   "archive",
		Short: "Project file exchange via S3",
	}
	parentCmd.PersistentFlags().StringVar(&bucket, "bucket", bucket, "S3 bucket name (required)")
	parentCmd.PersistentFlags().StringVar(&region, "region", region, "S3 bucket region")

	parentCmd.AddCommand(&cobra.Command{
		Use:   "up [ipts] [runNumber] [projectFile]",
		Short: "Upload a project file",
		Args:  cobra.ExactArgs(3),
		Run: func(cmd *cobra.Command, args []string) {
			rootLogger := logex.StandardLogger()
			ctx := osutil.CancelOnInterruptOrTerminate(rootLogger)

			osutil.ExitIfError(func() error {
				ipts, runNumber, err := iptsAndRunNumber(args[0], args[1])
				if err != nil {
					return err
				}

				store, err := archive.New(bucket, region, rootLogger)
				if err != nil {
					return err
				}

				key, err := store.UploadProject(ctx, ipts, runNumber, args[2])
				if err != nil {
					return err
				}

				fmt.Println(key)

				return nil
			}())
		},
	})

	parentCmd.AddCommand(&cobra.Command{
		Use:   "down [ipts] [runNumber] [destination]",
		Short: "Download a project file",
		Args:  cobra.ExactArgs(3),
		Run: func(cmd *cobra.Command, args []string) {
			rootLogger := logex.StandardLogger()
			ctx := osutil.CancelOnInterruptOrTerminate(rootLogger)

			osutil.ExitIfError(func() error {
				ipts, runNumber, err := iptsAndRunNumber(args[0], args[1])
				if err != nil {
					return err
				}

				store, err := archive.New(bucket, region, rootLogger)
				if err != nil {
					return err
				}

				return store.DownloadProject(ctx, ipts, runNumber, args[2])
			}())
		},
	})

	return parentCmd
}

func iptsAndRunNumber(iptsRaw string, runNumberRaw string) (int, int, error) {
	ipts, err := strconv.Atoi(iptsRaw)
	if err != nil {
		return 0, 0, fmt.Errorf("IPTS: %w", err)
	}

	runNumber, err := strconv.Atoi(runNumberRaw)
	if err != nil {
		return 0, 0, fmt.Errorf("run number: %w", err)
	}

	return ipts, runNumber, nil
}
