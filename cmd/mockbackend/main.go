package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dyike/OptiFolio/internal/logger"
	"github.com/dyike/OptiFolio/internal/mockbackend"
)

func main() {
	var (
		addr     string
		latency  time.Duration
		logLevel string
	)

	cmd := &cobra.Command{
		Use:   "mockbackend",
		Short: "Serve the optimization API from synthetic data",
		Long: `mockbackend answers /api/info, /api/minimum and /api/optimize with
deterministic synthetic numbers so the OptiFolio client can run without
the real optimization service.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.New(logger.Config{Level: logLevel, Format: "console"})

			srv := mockbackend.New(mockbackend.Config{
				Addr:    addr,
				Log:     log,
				Latency: latency,
			})

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Start()
			}()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

			select {
			case err := <-errCh:
				return err
			case <-quit:
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":5000", "Listen address")
	cmd.Flags().DurationVar(&latency, "latency", 0, "Delay added to every API reply")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
