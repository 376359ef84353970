// Command leppupy runs the catalog and order backend and its maintenance
// tasks.
//
//	leppupy serve              # HTTP API, gRPC health, workers, scheduler
//	leppupy serve --memory     # same, with in-process storage
//	leppupy migrate            # create the MongoDB indexes
//	leppupy migrate:rollback
//	leppupy migrate:status
//	leppupy seed               # create the first administrator
//	leppupy route:list
//	leppupy blobs:sweep        # drop unreferenced content blobs
//	leppupy queue:work         # run queue workers only
//	leppupy schedule:run       # run the scheduler only
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	// Registers the index migrations.
	_ "github.com/shashiranjanraj/leppupy/database/migrations"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "leppupy",
	Short:         "Urn catalog, cart and order backend",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Server
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(routeListCmd)

	// Database
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(migrateRollbackCmd)
	rootCmd.AddCommand(migrateStatusCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(blobsSweepCmd)

	// Workers
	rootCmd.AddCommand(queueWorkCmd)
	rootCmd.AddCommand(scheduleRunCmd)
}
