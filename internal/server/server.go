// Package server runs a booted kernel: the HTTP API, the gRPC health
// service, queue workers, the scheduler and the live feed hub, until the
// context is cancelled.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shashiranjanraj/leppupy/config"
	"github.com/shashiranjanraj/leppupy/internal/kernel"
	"github.com/shashiranjanraj/leppupy/pkg/grpc"
	"github.com/shashiranjanraj/leppupy/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

// Options tunes Start.
type Options struct {
	// Workers is the number of queue workers; zero disables them.
	Workers int
	// HTTP and GRPC override the configured listeners.
	HTTP net.Listener
	GRPC net.Listener
}

// Start serves until ctx is cancelled, then drains in-flight requests and
// background work before returning.
func Start(ctx context.Context, k *kernel.Kernel, opts Options) error {
	httpLis, err := listen(opts.HTTP, config.AppPort())
	if err != nil {
		return err
	}
	grpcLis, err := listen(opts.GRPC, config.GRPCPort())
	if err != nil {
		httpLis.Close()
		return err
	}

	srv := &http.Server{
		Handler:           k.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
	health := grpc.New(k.Ping)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("http: listening", "addr", httpLis.Addr().String())
		if err := srv.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		logger.Info("http: shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error { return health.Serve(ctx, grpcLis) })
	g.Go(func() error {
		k.Hub.Run(ctx)
		return nil
	})

	if opts.Workers > 0 {
		k.Queue.Start(ctx, opts.Workers)
	}
	k.Scheduler.Start(ctx)

	err = g.Wait()
	k.Queue.Wait()
	k.Scheduler.Wait()
	return err
}

func listen(l net.Listener, port string) (net.Listener, error) {
	if l != nil {
		return l, nil
	}
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return nil, fmt.Errorf("server: listen on :%s: %w", port, err)
	}
	return lis, nil
}
