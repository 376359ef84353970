package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/leppupy/internal/kernel"
	"github.com/shashiranjanraj/leppupy/internal/server"
)

var (
	serveMemory  bool
	serveWorkers int
)

// leppupy serve
var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"run", "start"},
	Short:   "Start the HTTP and gRPC servers",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		k, err := kernel.Boot(ctx, kernel.Options{Memory: serveMemory})
		if err != nil {
			return err
		}
		defer k.Close(context.Background()) //nolint:errcheck

		return server.Start(ctx, k, server.Options{Workers: serveWorkers})
	},
}

// leppupy route:list
var routeListCmd = &cobra.Command{
	Use:   "route:list",
	Short: "List all named routes",
	RunE: func(cmd *cobra.Command, args []string) error {
		infos := kernel.Routes()
		if len(infos) == 0 {
			fmt.Println("No named routes registered.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "METHOD\tPATH\tNAME")
		fmt.Fprintln(w, "------\t----\t----")
		for _, ri := range infos {
			fmt.Fprintf(w, "%s\t%s\t%s\n", ri.Method, ri.Path, ri.Name)
		}
		return w.Flush()
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveMemory, "memory", false, "Keep all data in process instead of MongoDB")
	serveCmd.Flags().IntVarP(&serveWorkers, "workers", "w", 2, "Number of in-process queue workers (0 disables)")
}
