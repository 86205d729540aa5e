// Package stun implements a minimal STUN BINDING client used for
// public-address discovery and NAT classification, grounded on
// pion/stun/v3's documented Dial/Do client pattern (the same library
// the teacher pulls in transitively through its WebRTC transport).
package stun

import (
	"fmt"
	"net"
	"time"

	"github.com/pion/stun/v3"
)

// bindTimeout bounds a single BINDING_REQUEST round trip.
const bindTimeout = 2 * time.Second

// MappedAddress is the public (ip, port) a STUN server observed for
// our request.
type MappedAddress struct {
	IP   net.IP
	Port int
}

func (m MappedAddress) String() string {
	return fmt.Sprintf("%s:%d", m.IP, m.Port)
}

func (m MappedAddress) equal(o MappedAddress) bool {
	return m.IP.Equal(o.IP) && m.Port == o.Port
}

// Client sends STUN BINDING_REQUESTs to one or more servers.
type Client struct {
	servers []string
}

// New returns a Client configured with one or more "host:port" STUN
// server addresses.
func New(servers ...string) *Client {
	return &Client{servers: servers}
}

// Bind queries the given server address and returns the
// XOR-MAPPED-ADDRESS it reports for us.
func (c *Client) Bind(serverAddr string) (MappedAddress, error) {
	conn, err := stun.Dial("udp4", serverAddr)
	if err != nil {
		return MappedAddress{}, err
	}
	defer conn.Close()

	message := stun.MustBuild(stun.TransactionID, stun.BindingRequest)

	var result MappedAddress
	var doErr error
	done := make(chan struct{})

	if err := conn.Do(message, func(res stun.Event) {
		defer close(done)
		if res.Error != nil {
			doErr = res.Error
			return
		}
		var xorAddr stun.XORMappedAddress
		if err := xorAddr.GetFrom(res.Message); err != nil {
			doErr = ErrBadResponse
			return
		}
		result = MappedAddress{IP: xorAddr.IP, Port: xorAddr.Port}
	}); err != nil {
		return MappedAddress{}, err
	}

	select {
	case <-done:
		return result, doErr
	case <-time.After(bindTimeout):
		return MappedAddress{}, ErrNoResponse
	}
}

// BindAny tries each configured server in order and returns the first
// successful mapping.
func (c *Client) BindAny() (MappedAddress, error) {
	if len(c.servers) == 0 {
		return MappedAddress{}, ErrNoServers
	}
	var lastErr error
	for _, server := range c.servers {
		addr, err := c.Bind(server)
		if err == nil {
			return addr, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = ErrNoResponse
	}
	return MappedAddress{}, lastErr
}

// Classify probes two distinct STUN servers and derives a NatType from
// whether they observe the same public mapping.
func (c *Client) Classify(serverA, serverB string) (NatType, error) {
	a, errA := c.Bind(serverA)
	b, errB := c.Bind(serverB)

	switch {
	case errA != nil && errB != nil:
		return NatUnknown, nil
	case errA != nil || errB != nil:
		return NatUnknown, nil
	case a.equal(b):
		return NatFullCone, nil
	default:
		return NatSymmetric, nil
	}
}
