package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mosaicnetworks/peerfetch/src/peerfetch"
	"github.com/spf13/cobra"
)

// shutdownTimeout bounds the graceful stop of the HTTP service.
const shutdownTimeout = 5 * time.Second

func (c *cli) newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE:  c.serve,
	}
}

func (c *cli) serve(cmd *cobra.Command, args []string) error {
	logger := c.config.PeerFetch.Logger()

	engine := peerfetch.NewPeerFetch(&c.config.PeerFetch)

	if err := engine.Init(); err != nil {
		logger.Error("Cannot initialize engine:", err)
		return err
	}

	// Intercept the (Ctrl+C) or kill signals and stop the service gracefully
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	done := make(chan error, 1)
	go func() {
		done <- engine.Run()
	}()

	select {
	case err := <-done:
		engine.Shutdown(context.Background())
		return err
	case sig := <-sigCh:
		logger.WithField("signal", sig).Info("Shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := engine.Shutdown(ctx); err != nil {
		return err
	}

	return <-done
}
