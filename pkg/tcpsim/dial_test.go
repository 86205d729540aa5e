package tcpsim

import (
	"context"
	"net"
	"testing"
	"time"
)

func listenLocal(t *testing.T) (net.Listener, string) {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	return l, l.Addr().String()
}

func TestOpenRacesAndReturnsFirstSuccess(t *testing.T) {
	good, goodAddr := listenLocal(t)
	defer good.Close()
	go func() {
		conn, err := good.Accept()
		if err == nil {
			conn.Close()
		}
	}()

	// A closed listener's address is refused immediately, giving the
	// race a losing candidate alongside the winning one.
	dead, deadAddr := listenLocal(t)
	dead.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	conn, err := Open(ctx, Config{
		RemoteEndpoints:   []string{deadAddr, goodAddr},
		PerAttemptTimeout: time.Second,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer conn.Close()

	if conn.RemoteAddr().String() != goodAddr {
		t.Fatalf("connected to %s, want %s", conn.RemoteAddr(), goodAddr)
	}
}

func TestOpenFailsWhenNoEndpointIsReachable(t *testing.T) {
	dead, deadAddr := listenLocal(t)
	dead.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := Open(ctx, Config{
		RemoteEndpoints:   []string{deadAddr},
		PerAttemptTimeout: 300 * time.Millisecond,
		RetryCount:        1,
	})
	if err == nil {
		t.Fatal("expected Open to fail when every endpoint refuses the connection")
	}
}
