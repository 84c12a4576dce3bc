// Command line interface for driving the reduction and analysis workflows
package hidracli

import (
	"github.com/spf13/cobra"
)

func Entrypoints() []*cobra.Command {
	return []*cobra.Command{
		reduceEntrypoint(),
		fitEntrypoint(),
		stressEntrypoint(),
		textureEntrypoint(),
		projectEntrypoint(),
		catalogEntrypoint(),
		archiveEntrypoint(),
		serverEntrypoint(),
		triggerEntrypoint(),
		selftestEntrypoint(),
	}
}
