package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	config "github.com/mwantia/chansync/internal/config/server"
)

func NewRootCommand(info VersionInfo) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:           "chansync",
		Short:         "Channel to TelDrive file sync agent",
		Long:          "Keeps the files posted in a Telegram channel registered in TelDrive and removes channel messages whose files were deleted from TelDrive.",
		SilenceErrors: true,
		SilenceUsage:  true,

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(path)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&path, "config", "", fmt.Sprintf("config file (default searches %s in %s)",
		config.ConfigFile, strings.Join(config.SearchPaths(), ", ")))
	flags.Bool("no-color", false, "Disables colored log output")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.Bool("log-json", false, "Writes log lines as JSON")

	viper.BindPFlag("log.level", flags.Lookup("log-level"))
	viper.BindPFlag("log.no_color", flags.Lookup("no-color"))
	viper.BindPFlag("log.json", flags.Lookup("log-json"))

	cmd.Version = fmt.Sprintf("%s (%s)", info.Version, info.Commit)

	return cmd
}
