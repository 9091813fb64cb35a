package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

type VersionInfo struct {
	Version string
	Commit  string
}

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version information",
		Run: func(cmd *cobra.Command, args []string) {
			root := cmd.Root()
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s %s/%s)\n",
				root.Name(), root.Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
