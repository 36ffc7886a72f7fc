package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// dungeonsync entry point: `serve` runs the authoritative server, `join`
// plays from a terminal.
func main() {
	rootCmd := &cobra.Command{
		Use:   "dungeonsync",
		Short: "Multiplayer dungeon state synchronisation server and client",
		Long: `dungeonsync keeps a small multiplayer dungeon in sync.

The server owns the player registry and the floor items; clients log in
with a unique name, pull the other players' state on a timer and relay
shots, hits and pickups through the server.

Settings come from DUNGEON_* environment variables (or a .env file);
flags override them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		joinCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
