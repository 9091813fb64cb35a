package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/mwantia/chansync/internal/mapping"
	"github.com/mwantia/chansync/pkg/db/models"
	"github.com/mwantia/chansync/pkg/db/store"
	"github.com/spf13/cobra"

	config "github.com/mwantia/chansync/internal/config/server"
)

func NewRecordsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "records",
		Short: "Inspect the file mapping",
		Long:  "Inspect the channel message to TelDrive file mapping persisted in the sqlite metadata store.",
	}

	cmd.AddCommand(newRecordsListCommand())

	return cmd
}

func newRecordsListCommand() *cobra.Command {
	var state string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List mapped files",
		Long:  "List all persisted file records, optionally filtered by state (pending, registered, absent, deleted).",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if state != "" {
				if _, err := mapping.ParseState(state); err != nil {
					return fmt.Errorf("invalid state '%s': %w", state, err)
				}
			}

			db, err := openMetadata(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			records, err := db.ListRecords(cmd.Context(), state)
			if err != nil {
				return fmt.Errorf("failed to list records: %w", err)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(records)
			}
			return printRecords(cmd.OutOrStdout(), records)
		},
	}

	cmd.Flags().StringVarP(&state, "state", "s", "", "Only list records in this state")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print records as JSON")

	return cmd
}

func printRecords(w io.Writer, records []models.FileRecord) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MESSAGE\tSTATE\tABSENT\tSTORAGE ID\tNAME")
	for _, r := range records {
		storageID := r.StorageFileID
		if storageID == "" {
			storageID = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\n", r.ChannelMessageID, r.State, r.AbsenceCount, storageID, r.Name)
	}
	return tw.Flush()
}

// openMetadata opens the sqlite store named by the loaded configuration.
func openMetadata(ctx context.Context) (*store.SQLiteStore, error) {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load server configuration: %w", err)
	}
	if cfg.Metadata.Type != "sqlite" {
		return nil, fmt.Errorf("metadata.type is '%s', records are only persisted with 'sqlite'", cfg.Metadata.Type)
	}

	db, err := store.NewSQLiteStore(store.SQLiteConfig{Path: cfg.Metadata.SQLite.Path})
	if err != nil {
		return nil, err
	}
	if err := db.Connect(ctx); err != nil {
		return nil, err
	}
	return db, nil
}
