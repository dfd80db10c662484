package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/lcs/internal/client"
	"github.com/standardbeagle/lcs/internal/host"
)

// serveCommand runs the search host until it is interrupted
func serveCommand(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}

	socket := socketPath(cfg)
	if client.IsServerRunning(socket) {
		return fmt.Errorf("a search host is already running on %s", socket)
	}

	srv := host.NewServer(hostOptions(cfg, socket))
	if err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	out := c.App.Writer
	fmt.Fprintf(out, "Search host started\n")
	fmt.Fprintf(out, "Socket: %s\n", socket)
	fmt.Fprintf(out, "Root: %s\n", cfg.Project.Root)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	stopped := make(chan struct{})
	go func() {
		srv.Wait()
		close(stopped)
	}()

	select {
	case sig := <-sigChan:
		fmt.Fprintf(out, "\nReceived signal %v, shutting down...\n", sig)
	case <-stopped:
	case <-c.Context.Done():
	}

	uptime := srv.Uptime().Round(time.Second)
	if n := srv.ActiveSearches(); n > 0 {
		fmt.Fprintf(out, "Cancelling %d active searches\n", n)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	fmt.Fprintf(out, "Search host shut down cleanly after %s\n", uptime)
	return nil
}

// statusCommand probes the host socket for the project root
func statusCommand(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}
	socket := socketPath(cfg)
	if client.IsServerRunning(socket) {
		fmt.Fprintf(c.App.Writer, "Search host running on %s\n", socket)
		return nil
	}
	fmt.Fprintf(c.App.Writer, "No search host running for %s\n", cfg.Project.Root)
	return nil
}
