// Package tcpsim implements TCP simultaneous-open: both sides of a
// connection dial each other's candidate endpoints from the same
// local port (Config.LocalPort, when it is nonzero) using
// SO_REUSEADDR/SO_REUSEPORT, racing the attempts so
// that whichever direction's SYN crosses the peer's SYN first wins.
package tcpsim

import (
	"context"
	"net"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// Config describes one simultaneous-open attempt.
type Config struct {
	// LocalPort to dial from. 0 lets the OS pick a separate ephemeral
	// port for every dial, so the attempts then do not share one local
	// port.
	LocalPort int
	// RemoteEndpoints are candidate "host:port" strings to race against.
	RemoteEndpoints []string
	// PerAttemptTimeout bounds a single dial.
	PerAttemptTimeout time.Duration
	// RetryCount is how many sequential fallback rounds to run after
	// the parallel race fails outright.
	RetryCount int
}

func (c Config) withDefaults() Config {
	if c.PerAttemptTimeout == 0 {
		c.PerAttemptTimeout = 2 * time.Second
	}
	if c.RetryCount == 0 {
		c.RetryCount = 3
	}
	return c
}

func controlReuseAddrPort(_, _ string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
			sockErr = err
			return
		}
		// SO_REUSEPORT lets both ends bind+connect from the identical
		// local port, which is what makes simultaneous-open work.
		if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
			sockErr = err
		}
	})
	if err != nil {
		return err
	}
	return sockErr
}

func dialer(localPort int, timeout time.Duration) *net.Dialer {
	return &net.Dialer{
		LocalAddr: &net.TCPAddr{Port: localPort},
		Timeout:   timeout,
		Control:   controlReuseAddrPort,
	}
}

// Open races a connection attempt to every remote endpoint in parallel
// from the same local port; the first successful socket wins and the
// rest are closed. On total failure it falls back to sequential
// attempts, retried Config.RetryCount times.
func Open(ctx context.Context, cfg Config) (net.Conn, error) {
	cfg = cfg.withDefaults()

	if conn, err := raceOnce(ctx, cfg); err == nil {
		return conn, nil
	}

	var lastErr error = ErrAllAttemptsFailed
	for attempt := 0; attempt < cfg.RetryCount; attempt++ {
		conn, err := sequentialOnce(ctx, cfg)
		if err == nil {
			return conn, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func raceOnce(ctx context.Context, cfg Config) (net.Conn, error) {
	type result struct {
		conn net.Conn
		err  error
	}

	results := make(chan result, len(cfg.RemoteEndpoints))
	d := dialer(cfg.LocalPort, cfg.PerAttemptTimeout)

	var wg sync.WaitGroup
	for _, endpoint := range cfg.RemoteEndpoints {
		wg.Add(1)
		go func(endpoint string) {
			defer wg.Done()
			conn, err := d.DialContext(ctx, "tcp", endpoint)
			results <- result{conn: conn, err: err}
		}(endpoint)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var winner net.Conn
	for r := range results {
		if r.err == nil && winner == nil {
			winner = r.conn
			continue
		}
		if r.conn != nil {
			r.conn.Close()
		}
	}

	if winner == nil {
		return nil, ErrAllAttemptsFailed
	}
	return winner, nil
}

func sequentialOnce(ctx context.Context, cfg Config) (net.Conn, error) {
	d := dialer(cfg.LocalPort, cfg.PerAttemptTimeout)
	var lastErr error = ErrAllAttemptsFailed
	for _, endpoint := range cfg.RemoteEndpoints {
		conn, err := d.DialContext(ctx, "tcp", endpoint)
		if err == nil {
			return conn, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
