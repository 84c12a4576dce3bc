package main

import (
	"os"

	"github.com/function61/gokit/aws/lambdautils"
	"github.com/function61/gokit/osutil"
	"github.com/hb2btools/hidractl/pkg/autoreduce"
	"github.com/hb2btools/hidractl/pkg/hidracli"
	"github.com/spf13/cobra"
)

func main() {
	// in Lambda we're an S3-triggered auto-reduction worker, everywhere else a CLI
	if lambdautils.InLambda() {
		osutil.ExitIfError(autoreduce.LambdaEntrypoint())
		return
	}

	rootCmd := &cobra.Command{
		Use:   os.Args[0],
		Short: "HB2B reduction and residual stress analysis",
	}

	for _, entrypoint := range hidracli.Entrypoints() {
		rootCmd.AddCommand(entrypoint)
	}

	osutil.ExitIfError(rootCmd.Execute())
}
