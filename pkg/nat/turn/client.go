// Package turn is a thin wrapper over pion/turn/v4's client package
// that allocates a single relay address per call, matching how the ICE
// agent treats TURN servers as a source of Relayed candidates.
package turn

import (
	"net"

	pionturn "github.com/pion/turn/v4"
)

// ServerConfig names one TURN server and the long-term credentials to
// use against it.
type ServerConfig struct {
	Addr     string
	Username string
	Password string
	Realm    string
}

// Allocation is an active TURN relay allocation.
type Allocation struct {
	client    *pionturn.Client
	relayConn net.PacketConn

	RelayedAddr net.Addr
}

// Allocate opens a UDP socket to the given TURN server, performs the
// client handshake, and requests a relay allocation.
func Allocate(cfg ServerConfig) (*Allocation, error) {
	conn, err := net.ListenPacket("udp4", "0.0.0.0:0")
	if err != nil {
		return nil, err
	}

	client, err := pionturn.NewClient(&pionturn.ClientConfig{
		STUNServerAddr: cfg.Addr,
		TURNServerAddr: cfg.Addr,
		Conn:           conn,
		Username:       cfg.Username,
		Password:       cfg.Password,
		Realm:          cfg.Realm,
		Software:       "agora-voice",
	})
	if err != nil {
		conn.Close()
		return nil, err
	}

	if err := client.Listen(); err != nil {
		client.Close()
		conn.Close()
		return nil, err
	}

	relayConn, err := client.Allocate()
	if err != nil {
		client.Close()
		conn.Close()
		return nil, err
	}

	return &Allocation{
		client:      client,
		relayConn:   relayConn,
		RelayedAddr: relayConn.LocalAddr(),
	}, nil
}

// Close deallocates the relay and releases the underlying socket.
func (a *Allocation) Close() error {
	if a.relayConn == nil {
		return ErrNoAllocation
	}
	err := a.relayConn.Close()
	a.client.Close()
	a.relayConn = nil
	return err
}
