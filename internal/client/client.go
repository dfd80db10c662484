// Package client is the editor side of the search connection.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/standardbeagle/lcs/internal/debug"
	"github.com/standardbeagle/lcs/internal/protocol"
)

type subscription struct {
	handler protocol.Handler
}

// Client holds one connection to a search host. Messages from the host are
// delivered, in arrival order, to the handlers subscribed to their channel.
type Client struct {
	conn      net.Conn
	enc       *protocol.Encoder
	mu        sync.Mutex
	handlers  map[protocol.Channel][]*subscription
	done      chan struct{}
	closeOnce sync.Once
	err       error
}

// Dial connects to the host listening on socketPath.
func Dial(ctx context.Context, socketPath string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to search host: %w", err)
	}
	c := &Client{
		conn:     conn,
		enc:      protocol.NewEncoder(conn),
		handlers: make(map[protocol.Channel][]*subscription),
		done:     make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// IsServerRunning reports whether a host accepts connections on socketPath.
func IsServerRunning(socketPath string) bool {
	conn, err := net.DialTimeout("unix", socketPath, time.Second)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// Send writes one message to the host.
func (c *Client) Send(channel protocol.Channel, payload any) error {
	select {
	case <-c.done:
		return fmt.Errorf("failed to send %s: connection closed", channel)
	default:
	}
	return c.enc.Send(channel, payload)
}

// Subscribe registers handler for channel. The returned function removes
// it again and may be called from inside a handler.
func (c *Client) Subscribe(channel protocol.Channel, handler protocol.Handler) func() {
	sub := &subscription{handler: handler}
	c.mu.Lock()
	c.handlers[channel] = append(c.handlers[channel], sub)
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			subs := c.handlers[channel]
			for i, s := range subs {
				if s == sub {
					// Copy so a dispatch in progress keeps its own view.
					next := make([]*subscription, 0, len(subs)-1)
					next = append(next, subs[:i]...)
					next = append(next, subs[i+1:]...)
					c.handlers[channel] = next
					break
				}
			}
		})
	}
}

// Done is closed once the connection has ended.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns the error that ended the connection, if any.
func (c *Client) Err() error {
	<-c.done
	return c.err
}

// Close closes the connection and waits for the read loop to exit.
func (c *Client) Close() error {
	err := c.conn.Close()
	<-c.done
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

func (c *Client) readLoop() {
	defer c.closeOnce.Do(func() { close(c.done) })

	dec := protocol.NewDecoder(c.conn)
	for {
		env, err := dec.Decode()
		if err != nil {
			if errors.Is(err, protocol.ErrMalformed) {
				debug.LogSession("dropping malformed message: %v", err)
				continue
			}
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				c.err = err
			}
			return
		}
		c.dispatch(env)
	}
}

func (c *Client) dispatch(env protocol.Envelope) {
	c.mu.Lock()
	subs := c.handlers[env.Channel]
	c.mu.Unlock()

	for _, s := range subs {
		s.handler(env.Payload)
	}
}
