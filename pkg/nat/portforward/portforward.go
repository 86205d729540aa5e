// Package portforward discovers a gateway's UPnP or NAT-PMP capability
// through libp2p/go-nat and exposes a single add/remove-mapping
// surface regardless of which protocol the gateway speaks.
package portforward

import (
	"context"
	"net"
	"time"

	natpkg "github.com/libp2p/go-nat"
)

// DefaultLeaseDuration is used when a caller does not specify one.
const DefaultLeaseDuration = 1 * time.Hour

// DiscoverTimeout bounds gateway discovery.
const DiscoverTimeout = 10 * time.Second

// Mapping describes one active port mapping.
type Mapping struct {
	Protocol     string
	InternalPort int
	ExternalPort int
}

// PortForwarder tries UPnP, then NAT-PMP (go-nat's DiscoverGateway
// probes both) and exposes mapping operations independent of which one
// answered.
type PortForwarder struct {
	gw       natpkg.NAT
	mappings []Mapping
}

// Discover probes the local network for a gateway device.
func Discover(ctx context.Context) (*PortForwarder, error) {
	ctx, cancel := context.WithTimeout(ctx, DiscoverTimeout)
	defer cancel()

	gw, err := natpkg.DiscoverGateway(ctx)
	if err != nil {
		return nil, err
	}
	return &PortForwarder{gw: gw}, nil
}

// AddMapping requests an external port mapped to internalPort over the
// given protocol ("udp" or "tcp"), for leaseDuration (0 uses
// DefaultLeaseDuration).
func (p *PortForwarder) AddMapping(ctx context.Context, protocol string, internalPort int, leaseDuration time.Duration) (externalPort int, err error) {
	if leaseDuration == 0 {
		leaseDuration = DefaultLeaseDuration
	}
	externalPort, err = p.gw.AddPortMapping(ctx, protocol, internalPort, "agora-voice", leaseDuration)
	if err != nil {
		return 0, err
	}
	p.mappings = append(p.mappings, Mapping{Protocol: protocol, InternalPort: internalPort, ExternalPort: externalPort})
	return externalPort, nil
}

// RemoveMapping tears down a previously added mapping.
func (p *PortForwarder) RemoveMapping(ctx context.Context, protocol string, internalPort int) error {
	if err := p.gw.DeletePortMapping(ctx, protocol, internalPort); err != nil {
		return err
	}
	for i, m := range p.mappings {
		if m.Protocol == protocol && m.InternalPort == internalPort {
			p.mappings = append(p.mappings[:i], p.mappings[i+1:]...)
			break
		}
	}
	return nil
}

// GetExternalIP returns the gateway's external IP address.
func (p *PortForwarder) GetExternalIP() (net.IP, error) {
	return p.gw.GetExternalAddress()
}

// Type reports which protocol the discovered gateway speaks ("UPNP" or
// "NAT-PMP").
func (p *PortForwarder) Type() string {
	return p.gw.Type()
}

// Mappings returns the mappings currently tracked as active.
func (p *PortForwarder) Mappings() []Mapping {
	out := make([]Mapping, len(p.mappings))
	copy(out, p.mappings)
	return out
}

// LocalIP discovers the outbound local IP address by connecting a UDP
// socket to a public address and reading its local endpoint; no
// packets are actually sent for a UDP "connect".
func LocalIP(publicAddr string) (net.IP, error) {
	conn, err := net.Dial("udp", publicAddr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP, nil
}
