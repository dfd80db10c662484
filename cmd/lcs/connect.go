package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/standardbeagle/lcs/internal/client"
	"github.com/standardbeagle/lcs/internal/config"
	lcserrors "github.com/standardbeagle/lcs/internal/errors"
	"github.com/standardbeagle/lcs/internal/host"
)

// connection is a client plus, when no host was running, the in-process host
// it talks to.
type connection struct {
	*client.Client
	srv *host.Server
	dir string
}

// connect dials the host serving cfg's root. Without one it starts a private
// in-process host that lives as long as the connection.
func connect(ctx context.Context, cfg *config.Config) (*connection, error) {
	socket := socketPath(cfg)
	if client.IsServerRunning(socket) {
		cl, err := client.Dial(ctx, socket)
		if err == nil {
			return &connection{Client: cl}, nil
		}
		log.Printf("warning: host on %s did not accept the connection, searching in-process: %v", socket, err)
	}

	dir, err := os.MkdirTemp("", "lcs")
	if err != nil {
		return nil, fmt.Errorf("failed to create socket directory: %w", err)
	}
	srv := host.NewServer(hostOptions(cfg, filepath.Join(dir, "host.sock")))
	if err := srv.Start(); err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to start in-process host: %w", err)
	}

	conn := &connection{srv: srv, dir: dir}
	cl, err := client.Dial(ctx, srv.Addr())
	if err != nil {
		return nil, lcserrors.NewMultiError([]error{err, conn.Close()})
	}
	conn.Client = cl
	return conn, nil
}

// Close closes the client and stops the in-process host, if any.
func (c *connection) Close() error {
	var errs []error
	if c.Client != nil {
		errs = append(errs, c.Client.Close())
	}
	if c.srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		errs = append(errs, c.srv.Shutdown(ctx))
	}
	if c.dir != "" {
		errs = append(errs, os.RemoveAll(c.dir))
	}
	return lcserrors.NewMultiError(errs).ErrorOrNil()
}
