package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	"github.com/hamed0406/sitehealth/internal/domain"
)

var echoPayload = []byte("sitehealth")

// echoSeq gives every echo request in the process its own sequence number,
// so concurrent probes sharing a raw socket view never claim each other's replies.
var echoSeq atomic.Uint32

type icmpFamily struct {
	proto   int
	request icmp.Type
	listen  string
	raw     string
	dgram   string
}

var (
	icmpV4 = icmpFamily{
		proto:   ipv4.ICMPTypeEchoReply.Protocol(),
		request: ipv4.ICMPTypeEcho,
		listen:  "0.0.0.0",
		raw:     "ip4:icmp",
		dgram:   "udp4",
	}
	icmpV6 = icmpFamily{
		proto:   ipv6.ICMPTypeEchoReply.Protocol(),
		request: ipv6.ICMPTypeEchoRequest,
		listen:  "::",
		raw:     "ip6:ipv6-icmp",
		dgram:   "udp6",
	}
)

func (f icmpFamily) open(privileged bool) (*icmp.PacketConn, error) {
	network := f.dgram
	if privileged {
		network = f.raw
	}
	conn, err := icmp.ListenPacket(network, f.listen)
	if err != nil {
		if errors.Is(err, os.ErrPermission) {
			return nil, fmt.Errorf("icmp listen %s requires root or CAP_NET_RAW: %w", network, err)
		}
		return nil, fmt.Errorf("icmp listen %s: %w", network, err)
	}
	return conn, nil
}

// CheckSocket reports whether an IPv4 ICMP socket can be opened in the given
// mode. Nothing is sent.
func CheckSocket(privileged bool) error {
	conn, err := icmpV4.open(privileged)
	if err != nil {
		return err
	}
	return conn.Close()
}

// Pinger sends a single ICMP echo request to the host of a URL.
//
// Privileged uses raw sockets (root or CAP_NET_RAW). Otherwise datagram ICMP
// sockets are used, which on Linux need net.ipv4.ping_group_range to cover
// the process group.
type Pinger struct {
	Resolver   *Resolver
	Privileged bool
	// Timeout applies only when ctx carries no deadline.
	Timeout time.Duration
}

// Ping never fails: an unreachable host, a resolution error or a missing
// socket permission all come back as a failure-shaped result.
func (p *Pinger) Ping(ctx context.Context, target string) domain.PingResult {
	rtt, err := p.echo(ctx, target)
	if err != nil {
		return domain.FailedPing(err)
	}
	return domain.PingResult{IsUp: true, Status: 200, ResponseTimeMS: rtt}
}

func (p *Pinger) echo(ctx context.Context, target string) (float64, error) {
	if _, ok := ctx.Deadline(); !ok && p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	host, err := hostOf(target)
	if err != nil {
		return 0, err
	}
	ip, err := p.Resolver.LookupIP(ctx, host)
	if err != nil {
		return 0, err
	}

	fam := icmpV4
	if ip.To4() == nil {
		fam = icmpV6
	}
	conn, err := fam.open(p.Privileged)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	id := os.Getpid() & 0xffff
	seq := int(echoSeq.Add(1) & 0xffff)
	msg := icmp.Message{
		Type: fam.request,
		Code: 0,
		Body: &icmp.Echo{
			ID:   id,
			Seq:  seq,
			Data: echoPayload,
		},
	}
	b, err := msg.Marshal(nil)
	if err != nil {
		return 0, fmt.Errorf("icmp marshal: %w", err)
	}

	var dst net.Addr = &net.UDPAddr{IP: ip}
	if p.Privileged {
		dst = &net.IPAddr{IP: ip}
	}

	start := time.Now()
	if _, err := conn.WriteTo(b, dst); err != nil {
		return 0, fmt.Errorf("icmp write to %s: %w", ip, err)
	}

	buf := make([]byte, 1500)
	for {
		n, peer, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, os.ErrDeadlineExceeded) {
				return 0, fmt.Errorf("no echo reply from %s (%s) within %s", host, ip, time.Since(start).Round(time.Millisecond))
			}
			return 0, fmt.Errorf("icmp read: %w", err)
		}
		if !peerIs(peer, ip) {
			continue
		}
		// datagram sockets rewrite the echo ID, so only the sequence is ours to match
		if isEchoReply(buf[:n], fam.proto, id, seq, p.Privileged) {
			return float64(time.Since(start)) / float64(time.Millisecond), nil
		}
	}
}

func isEchoReply(b []byte, proto, id, seq int, matchID bool) bool {
	m, err := icmp.ParseMessage(proto, b)
	if err != nil {
		return false
	}
	if m.Type != ipv4.ICMPTypeEchoReply && m.Type != ipv6.ICMPTypeEchoReply {
		return false
	}
	echo, ok := m.Body.(*icmp.Echo)
	if !ok || echo.Seq != seq {
		return false
	}
	return !matchID || echo.ID == id
}

func peerIs(addr net.Addr, ip net.IP) bool {
	switch a := addr.(type) {
	case *net.IPAddr:
		return a.IP.Equal(ip)
	case *net.UDPAddr:
		return a.IP.Equal(ip)
	}
	return false
}
