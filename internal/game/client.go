// Package game queries Assetto Corsa dedicated servers over their UDP status protocol.
package game

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/pitwall/internal/config"
	"github.com/woozymasta/pitwall/internal/models"
)

const (
	defaultTimeout    = 5 * time.Second
	defaultBufferSize = 2048
)

// Client performs status queries. It holds no sockets between calls and is safe for concurrent use.
type Client struct {
	// Resolver looks up server hostnames. Nil means net.DefaultResolver.
	Resolver *net.Resolver

	Timeout    time.Duration
	BufferSize uint16
}

// New creates a Client from the query options.
func New(options config.Query) *Client {
	return &Client{
		Timeout:    options.Timeout,
		BufferSize: options.BufferSize,
	}
}

// QueryServer sends one request to host:port and waits for exactly one reply.
// A fresh UDP socket is opened per call and closed before returning.
// The timeout covers hostname resolution as well as the exchange.
// Failures are returned as errors; the offline downgrade is up to the caller.
func (c *Client) QueryServer(ctx context.Context, host string, port int) (*models.Reply, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	deadline := time.Now().Add(c.timeout())
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	dialCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	dialer := net.Dialer{Resolver: c.Resolver}
	conn, err := dialer.DialContext(dialCtx, "udp", addr)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(dialCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("dial %s: %w", addr, ErrTimeout)
		}
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	defer func() { _ = conn.Close() }()

	if err := conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("set deadline %s: %w", addr, err)
	}

	// Unblock the read when the caller gives up early
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	if _, err := conn.Write(RequestPacket()); err != nil {
		return nil, fmt.Errorf("send %s: %w", addr, err)
	}

	buf := make([]byte, c.bufferSize())
	n, err := conn.Read(buf)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("%s: %w", addr, ErrTimeout)
		}
		return nil, fmt.Errorf("receive %s: %w", addr, err)
	}

	reply, err := ParseReply(buf[:n], time.Now())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", addr, err)
	}

	return &reply, nil
}

// QueryMultipleServers queries all targets concurrently and returns exactly one
// reply per target, in input order. A target that fails is replaced by an offline reply.
func (c *Client) QueryMultipleServers(ctx context.Context, targets []models.Target) []models.Reply {
	replies := make([]models.Reply, len(targets))

	var wg sync.WaitGroup
	for i, target := range targets {
		wg.Add(1)
		go func() {
			defer wg.Done()

			reply, err := c.QueryServer(ctx, target.Host, target.Port)
			if err != nil {
				log.Debug().
					Err(err).
					Int64("server_id", target.ID).
					Str("server", target.DisplayName).
					Str("host", target.Host).
					Int("port", target.Port).
					Msg("Server query failed")

				replies[i] = models.OfflineReply(target.ID, target.DisplayName, time.Now())
				return
			}

			reply.ID = target.ID
			replies[i] = *reply
		}()
	}
	wg.Wait()

	return replies
}

func (c *Client) timeout() time.Duration {
	if c.Timeout <= 0 {
		return defaultTimeout
	}
	return c.Timeout
}

func (c *Client) bufferSize() int {
	if c.BufferSize == 0 {
		return defaultBufferSize
	}
	return int(c.BufferSize)
}
