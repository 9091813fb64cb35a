package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mwantia/chansync/cmd/chansync/cli"
	"github.com/mwantia/chansync/cmd/chansync/cli/client"
	"github.com/mwantia/chansync/cmd/chansync/cli/server"
)

var (
	version = "0.0.1-dev"
	commit  = "main"
)

func main() {
	root := cli.NewRootCommand(cli.VersionInfo{
		Version: version,
		Commit:  commit,
	})

	root.AddCommand(cli.NewVersionCommand())

	root.AddCommand(server.NewAgentCommand())
	root.AddCommand(server.NewConfigCommand())

	root.AddCommand(client.NewRecordsCommand())
	root.AddCommand(client.NewDatabaseCommand())

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", root.Name(), err)
		os.Exit(1)
	}
}
