package server

import (
	"fmt"

	"github.com/mwantia/chansync/internal/agent"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	config "github.com/mwantia/chansync/internal/config/server"
)

func NewAgentCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Start the chansync agent",
		Long: `Start the chansync agent.

The agent scans the channel history, then registers every new file message
in TelDrive and periodically removes messages whose files disappeared.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadServerConfig()
			if err != nil {
				return fmt.Errorf("failed to load server configuration: %w", err)
			}

			return agent.NewAgent(cfg).Serve(cmd.Context())
		},
	}

	flags := cmd.Flags()
	flags.Bool("no-sync", false, "Only register new files, never delete channel messages")
	flags.String("http-address", "", "Address of the operator API (overrides http.address)")
	flags.String("metadata", "", "Metadata store type, memory or sqlite (overrides metadata.type)")

	bindFlag(cmd, "sync.enabled", "no-sync", func(v string) any { return v != "true" })
	bindFlag(cmd, "http.address", "http-address", nil)
	bindFlag(cmd, "metadata.type", "metadata", nil)

	return cmd
}

// bindFlag overrides key when the flag was set. convert maps the flag value
// to the config value; nil keeps the flag value as is.
func bindFlag(cmd *cobra.Command, key, name string, convert func(string) any) {
	prev := cmd.PreRunE
	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		if prev != nil {
			if err := prev(cmd, args); err != nil {
				return err
			}
		}

		flag := cmd.Flags().Lookup(name)
		if flag == nil || !flag.Changed {
			return nil
		}
		if convert != nil {
			viper.Set(key, convert(flag.Value.String()))
			return nil
		}
		viper.Set(key, flag.Value.String())
		return nil
	}
}
