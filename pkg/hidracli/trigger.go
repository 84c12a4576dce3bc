package hidracli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/function61/gokit/envvar"
	"github.com/function61/gokit/logex"
	"github.com/function61/gokit/osutil"
	"github.com/hb2btools/hidractl/pkg/pipelinetrigger"
	"github.com/spf13/cobra"
)

func triggerEntrypoint() *cobra.Command {
	ref := ""

	cmd := &cobra.Command{
		Use:   "trigger-downstream [runNumber]",
		Short: "Trigger the downstream CI pipeline for a reduced run",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			rootLogger := logex.StandardLogger()
			ctx := osutil.CancelOnInterruptOrTerminate(rootLogger)

			osutil.ExitIfError(func() error {
				runNumber, err := strconv.Atoi(args[0])
				if err != nil {
					return err
				}

				conf, err := triggerConfigFromEnv(ref)
				if err != nil {
					return err
				}

				pipeline, err := pipelinetrigger.Trigger(ctx, *conf, map[string]string{
					"HIDRA_RUN_NUMBER": strconv.Itoa(runNumber),
				}, rootLogger)
				if err != nil {
					return err
				}

				fmt.Println(pipeline.WebURL)

				return nil
			}())
		},
	}
	cmd.Flags().StringVar(&ref, "ref", ref, "Branch or tag (defaults to the project's main)")

	return cmd
}

func triggerConfigFromEnv(ref string) (*pipelinetrigger.Config, error) {
	baseURL, err := envvar.Required("GITLAB_BASE_URL")
	if err != nil {
		return nil, err
	}

	projectID, err := envvar.Required("GITLAB_PROJECT_ID")
	if err != nil {
		return nil, err
	}

	token, err := envvar.Required("GITLAB_TRIGGER_TOKEN")
	if err != nil {
		return nil, err
	}

	if ref == "" {
		ref = os.Getenv("GITLAB_REF")
	}

	return &pipelinetrigger.Config{
		BaseURL:   baseURL,
		ProjectID: projectID,
		Token:     token,
		Ref:       ref,
	}, nil
}
