package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/leppupy/internal/kernel"
)

var queueWorkersFlag int

// leppupy queue:work
var queueWorkCmd = &cobra.Command{
	Use:   "queue:work",
	Short: "Start the queue workers (needs QUEUE_DRIVER=redis to share jobs)",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		k, err := kernel.Boot(ctx, kernel.Options{})
		if err != nil {
			return err
		}
		defer k.Close(context.Background()) //nolint:errcheck

		workers := queueWorkersFlag
		if workers < 1 {
			workers = 5
		}
		fmt.Printf("Queue worker started (%d workers). Press Ctrl+C to stop.\n", workers)
		k.Queue.Start(ctx, workers)

		<-ctx.Done()
		k.Queue.Wait()
		fmt.Println("Queue worker stopped.")
		return nil
	},
}

// leppupy schedule:run
var scheduleRunCmd = &cobra.Command{
	Use:   "schedule:run",
	Short: "Start the task scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		k, err := kernel.Boot(ctx, kernel.Options{})
		if err != nil {
			return err
		}
		defer k.Close(context.Background()) //nolint:errcheck

		fmt.Println("Registered scheduled tasks:")
		for _, t := range k.Scheduler.List() {
			fmt.Println("  •", t)
		}
		fmt.Println("Scheduler started. Press Ctrl+C to stop.")
		k.Scheduler.Start(ctx)

		<-ctx.Done()
		k.Scheduler.Wait()
		fmt.Println("Scheduler stopped.")
		return nil
	},
}

func init() {
	queueWorkCmd.Flags().IntVarP(&queueWorkersFlag, "workers", "w", 5, "Number of concurrent workers")
}
