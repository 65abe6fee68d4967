package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// DNS failure classes attached to resolution errors.
const (
	ClassNXDomain    = "NXDOMAIN"
	ClassNoAddress   = "NO_A_RECORD"
	ClassServFail    = "SERVFAIL_or_TIMEOUT"
	ClassInvalidHost = "INVALID_NAME"
)

// ResolveError reports why a hostname could not be turned into an address.
type ResolveError struct {
	Host  string
	Class string
	Err   error
}

func (e *ResolveError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("resolve %s: %s: %v", e.Host, e.Class, e.Err)
	}
	return fmt.Sprintf("resolve %s: %s", e.Host, e.Class)
}

func (e *ResolveError) Unwrap() error { return e.Err }

// Resolver looks up the address to ping. With no Nameservers it uses the
// system resolver; otherwise it queries them in order with miekg/dns.
type Resolver struct {
	Nameservers []string
	Timeout     time.Duration
}

// LookupIP returns one address for host, preferring IPv4.
func (r *Resolver) LookupIP(ctx context.Context, host string) (net.IP, error) {
	host = strings.TrimSpace(host)
	if host == "" || strings.Contains(host, "://") {
		return nil, &ResolveError{Host: host, Class: ClassInvalidHost}
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip, nil
	}
	if r == nil || len(r.Nameservers) == 0 {
		return lookupSystem(ctx, host)
	}
	return r.lookupDNS(ctx, host)
}

func lookupSystem(ctx context.Context, host string) (net.IP, error) {
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		class := ClassServFail
		var de *net.DNSError
		if errors.As(err, &de) && de.IsNotFound {
			class = ClassNXDomain
		}
		return nil, &ResolveError{Host: host, Class: class, Err: err}
	}
	return pickIP(addrs)
}

func pickIP(addrs []net.IPAddr) (net.IP, error) {
	for _, a := range addrs {
		if a.IP.To4() != nil {
			return a.IP, nil
		}
	}
	if len(addrs) > 0 {
		return addrs[0].IP, nil
	}
	return nil, errors.New("no addresses")
}

func (r *Resolver) lookupDNS(ctx context.Context, host string) (net.IP, error) {
	client := &dns.Client{Timeout: r.Timeout}
	var lastErr error
	class := ClassServFail

	for _, ns := range r.Nameservers {
		server := withDNSPort(ns)
		for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
			msg := new(dns.Msg)
			msg.SetQuestion(dns.Fqdn(host), qtype)

			resp, _, err := client.ExchangeContext(ctx, msg, server)
			if err != nil {
				lastErr = err
				break // next nameserver
			}
			switch resp.Rcode {
			case dns.RcodeSuccess:
			case dns.RcodeNameError:
				return nil, &ResolveError{Host: host, Class: ClassNXDomain}
			default:
				lastErr = fmt.Errorf("%s answered %s", server, dns.RcodeToString[resp.Rcode])
				continue
			}
			for _, rr := range resp.Answer {
				switch v := rr.(type) {
				case *dns.A:
					return v.A, nil
				case *dns.AAAA:
					return v.AAAA, nil
				}
			}
			class = ClassNoAddress
			lastErr = nil
		}
		if ctx.Err() != nil {
			break
		}
	}
	return nil, &ResolveError{Host: host, Class: class, Err: lastErr}
}

func withDNSPort(server string) string {
	if _, _, err := net.SplitHostPort(server); err == nil {
		return server
	}
	return net.JoinHostPort(strings.Trim(server, "[]"), "53")
}
