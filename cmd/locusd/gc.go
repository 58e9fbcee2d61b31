package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newGCCommand runs a single garbage-collection pass and exits, useful for
// cron-driven or manual invocation outside the long-running daemon.
func newGCCommand(configDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "gc",
		Short: "Run one garbage-collection pass over the CAS store and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(*configDir)
			if err != nil {
				return err
			}
			defer a.store.Close()

			removed, err := a.engine.RunGC()
			if err != nil {
				return fmt.Errorf("gc: %w", err)
			}
			fmt.Printf("gc: removed %d unreferenced object(s)\n", removed)
			return nil
		},
	}
}
