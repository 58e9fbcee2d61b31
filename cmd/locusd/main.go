// Command locusd runs the local file-history daemon: a filesystem watcher,
// content-addressed version store, and a backup pipeline wired together
// behind a system tray icon. Grounded on the teacher's bare systray-only
// main(), extended with a cobra command tree the way
// kluzzebass-gastrolog/backend/cmd/gastrolog builds its entrypoint.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configDir string

	cmd := &cobra.Command{
		Use:   "locusd",
		Short: "A local, always-on file-history engine",
		Long: "locusd watches declared root directories, captures an immutable " +
			"version of any file whenever its content changes, and restores " +
			"any prior version on demand.",
	}
	cmd.PersistentFlags().StringVar(&configDir, "config-dir", ".", "directory containing config.json")

	cmd.AddCommand(newServeCommand(&configDir))
	cmd.AddCommand(newGCCommand(&configDir))

	return cmd
}
