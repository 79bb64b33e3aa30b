// Package reach implements layered internet reachability probing.
package reach

import (
	"context"
	"net"
	"os"
	"strings"
	"time"

	"github.com/jackpal/gateway"
	gopsnet "github.com/shirou/gopsutil/v3/net"
	"go.uber.org/zap"
	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"

	"github.com/eliteGoblin/netwatch/internal/domain"
)

// protocolIPv4ICMP is IANA ICMP for IPv4.
const protocolIPv4ICMP = 1

// Config holds prober configuration.
type Config struct {
	Hosts        []string      // ICMP targets, tried in order
	ProbeTimeout time.Duration // Per-probe bound (ICMP reply / DNS answer)
	FallbackHost string        // Hostname resolved when all ICMP probes fail
}

// DefaultConfig returns the default prober configuration: two independent
// anycast resolvers, then a well-known hostname.
func DefaultConfig() Config {
	return Config{
		Hosts:        []string{"1.1.1.1", "8.8.8.8"},
		ProbeTimeout: 1200 * time.Millisecond,
		FallbackHost: "www.google.com",
	}
}

// LayeredProber implements domain.Prober with three tiers: a free local
// interface/gateway gate, ICMP echoes, and a DNS resolution fallback.
//
// No single signal is reliable on its own. A gateway is necessary but not
// sufficient; ICMP is commonly filtered by firewalls and ISPs; DNS often
// succeeds where ICMP is blocked (and the reverse on captive portals).
// The tier order trades latency for coverage.
type LayeredProber struct {
	config Config
	logger *zap.Logger

	// Sub-steps, swappable in tests.
	hasGateway func() bool
	ping       func(ctx context.Context, host string, timeout time.Duration) bool
	lookupHost func(ctx context.Context, host string) ([]string, error)
}

// NewLayeredProber creates a prober with OS-backed sub-steps.
func NewLayeredProber(config Config, logger *zap.Logger) *LayeredProber {
	return &LayeredProber{
		config:     config,
		logger:     logger,
		hasGateway: hasUsableGateway,
		ping:       icmpEcho,
		lookupHost: func(ctx context.Context, host string) ([]string, error) {
			return net.DefaultResolver.LookupHost(ctx, host)
		},
	}
}

// Probe reports whether the host currently has internet reachability.
// One pass through the tiers per call; the poll loop retries over time.
func (p *LayeredProber) Probe(ctx context.Context) bool {
	if !p.hasGateway() {
		p.logger.Debug("reachability gate failed: no usable interface with gateway")
		return false
	}

	for _, host := range p.config.Hosts {
		if ctx.Err() != nil {
			return false
		}
		if p.ping(ctx, host, p.config.ProbeTimeout) {
			p.logger.Debug("icmp probe succeeded", zap.String("host", host))
			return true
		}
		p.logger.Debug("icmp probe failed", zap.String("host", host))
	}

	dnsCtx, cancel := context.WithTimeout(ctx, p.config.ProbeTimeout)
	defer cancel()

	addrs, err := p.lookupHost(dnsCtx, p.config.FallbackHost)
	if err != nil {
		p.logger.Debug("dns fallback failed",
			zap.String("host", p.config.FallbackHost),
			zap.Error(err))
		return false
	}
	return len(addrs) > 0
}

// hasUsableGateway reports whether at least one non-loopback, non-tunnel
// interface is up and a default gateway is discoverable. When this fails the
// host is clearly offline and ICMP/DNS probes would be wasted.
func hasUsableGateway() bool {
	ifaces, err := gopsnet.Interfaces()
	if err != nil {
		return false
	}

	usable := false
	for _, iface := range ifaces {
		if !hasFlag(iface.Flags, "up") || hasFlag(iface.Flags, "loopback") {
			continue
		}
		if isTunnelName(iface.Name) || len(iface.Addrs) == 0 {
			continue
		}
		usable = true
		break
	}
	if !usable {
		return false
	}

	gw, err := gateway.DiscoverGateway()
	return err == nil && gw != nil
}

func hasFlag(flags []string, want string) bool {
	for _, f := range flags {
		if strings.EqualFold(f, want) {
			return true
		}
	}
	return false
}

func isTunnelName(name string) bool {
	lower := strings.ToLower(name)
	for _, prefix := range []string{"tun", "utun", "tap", "wg", "ppp"} {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// icmpEcho sends a single echo request and waits for the matching reply
// within timeout. Prefers an unprivileged datagram socket, falling back to
// a raw socket for platforms that require it.
func icmpEcho(ctx context.Context, host string, timeout time.Duration) bool {
	dst := net.ParseIP(host)
	if dst == nil {
		return false
	}

	conn, privileged, err := listenICMP()
	if err != nil {
		return false
	}
	defer conn.Close()

	msg, err := (&icmp.Message{
		Type: ipv4.ICMPTypeEcho,
		Code: 0,
		Body: &icmp.Echo{
			ID:   os.Getpid() & 0xffff,
			Seq:  1,
			Data: []byte("netwatch-probe"),
		},
	}).Marshal(nil)
	if err != nil {
		return false
	}

	var addr net.Addr
	if privileged {
		addr = &net.IPAddr{IP: dst}
	} else {
		addr = &net.UDPAddr{IP: dst}
	}
	if _, err := conn.WriteTo(msg, addr); err != nil {
		return false
	}

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return false
	}

	reply := make([]byte, 1500)
	for {
		n, peer, err := conn.ReadFrom(reply)
		if err != nil {
			return false
		}
		if !peerMatches(peer, dst) {
			continue
		}
		parsed, err := icmp.ParseMessage(protocolIPv4ICMP, reply[:n])
		if err != nil {
			continue
		}
		if parsed.Type == ipv4.ICMPTypeEchoReply {
			return true
		}
	}
}

func listenICMP() (*icmp.PacketConn, bool, error) {
	conn, err := icmp.ListenPacket("udp4", "0.0.0.0")
	if err == nil {
		return conn, false, nil
	}
	conn, err = icmp.ListenPacket("ip4:icmp", "0.0.0.0")
	if err == nil {
		return conn, true, nil
	}
	return nil, false, err
}

func peerMatches(peer net.Addr, dst net.IP) bool {
	switch a := peer.(type) {
	case *net.IPAddr:
		return a.IP.Equal(dst)
	case *net.UDPAddr:
		return a.IP.Equal(dst)
	}
	return false
}

var _ domain.Prober = (*LayeredProber)(nil)
