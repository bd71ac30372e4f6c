package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/younsl/autopaused/internal/config"
	"github.com/younsl/autopaused/internal/store"
	"github.com/younsl/autopaused/pkg/formatter"
)

func newSavingsCmd() *cobra.Command {
	var (
		owner      string
		instanceID string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "savings",
		Short: "Report AutoPause savings from the pause journal",
		Long: `savings reads the pause/resume journal written by "autopaused serve".
Without flags it prints totals per owner. --instance lists the journal
entries of one instance.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			st, err := store.Open(cfg.Store.Dir)
			if err != nil {
				return err
			}
			defer st.Close()

			if instanceID != "" {
				events, err := st.Events(cmd.Context(), instanceID, limit)
				if err != nil {
					return fmt.Errorf("read journal: %w", err)
				}
				formatter.PrintEventsTable(os.Stdout, events)
				return nil
			}

			owners, err := st.OwnerSavings(cmd.Context(), owner)
			if err != nil {
				return fmt.Errorf("read journal: %w", err)
			}
			formatter.PrintOwnerSavingsTable(os.Stdout, owners)
			return nil
		},
	}

	cmd.Flags().StringVarP(&owner, "owner", "o", "", "Only report this owner")
	cmd.Flags().StringVarP(&instanceID, "instance", "i", "", "List journal entries of one instance")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum journal entries to list")
	return cmd
}
