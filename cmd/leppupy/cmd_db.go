package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/leppupy/app/repositories"
	"github.com/shashiranjanraj/leppupy/config"
	"github.com/shashiranjanraj/leppupy/database/seeders"
	"github.com/shashiranjanraj/leppupy/internal/kernel"
	"github.com/shashiranjanraj/leppupy/pkg/database"
	"github.com/shashiranjanraj/leppupy/pkg/migration"
)

// withDB loads config, connects MongoDB for the duration of fn and
// disconnects afterwards.
func withDB(cmd *cobra.Command, fn func() error) error {
	if err := config.Load(); err != nil {
		return err
	}
	if err := database.Connect(cmd.Context()); err != nil {
		return err
	}
	defer database.Disconnect(cmd.Context()) //nolint:errcheck
	return fn()
}

// leppupy migrate
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run all pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(cmd, func() error {
			fmt.Println("Running migrations…")
			return migration.New(database.DB, os.Stdout).Run(cmd.Context())
		})
	},
}

// leppupy migrate:rollback
var migrateRollbackCmd = &cobra.Command{
	Use:   "migrate:rollback",
	Short: "Rollback the last batch of migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(cmd, func() error {
			fmt.Println("Rolling back last batch…")
			return migration.New(database.DB, os.Stdout).Rollback(cmd.Context())
		})
	},
}

// leppupy migrate:status
var migrateStatusCmd = &cobra.Command{
	Use:   "migrate:status",
	Short: "Show the status of each migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(cmd, func() error {
			return migration.New(database.DB, os.Stdout).Status(cmd.Context())
		})
	},
}

// leppupy seed
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Run all database seeders",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(cmd, func() error {
			fmt.Println("Running seeders…")
			store := repositories.NewMongoStore(database.DB, config.MongoTransactions())
			return seeders.RunAll(cmd.Context(), store, os.Stdout)
		})
	},
}

// leppupy blobs:sweep
var blobsSweepCmd = &cobra.Command{
	Use:   "blobs:sweep",
	Short: "Delete content blobs no product references",
	RunE: func(cmd *cobra.Command, args []string) error {
		k, err := kernel.Boot(cmd.Context(), kernel.Options{})
		if err != nil {
			return err
		}
		defer k.Close(cmd.Context()) //nolint:errcheck

		n, err := k.Services.Catalog.Sweep(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Removed %d unreferenced blobs.\n", n)
		return nil
	},
}
