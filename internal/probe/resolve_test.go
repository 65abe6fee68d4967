package probe

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
)

// startDNS runs an in-process authoritative server answering for example.test.
func startDNS(t *testing.T) string {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	mux := dns.NewServeMux()
	mux.HandleFunc(".", func(w dns.ResponseWriter, req *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(req)
		q := req.Question[0]
		switch {
		case q.Name == "example.test." && q.Qtype == dns.TypeA:
			rr, _ := dns.NewRR("example.test. 60 IN A 192.0.2.10")
			m.Answer = append(m.Answer, rr)
		case q.Name == "v6only.test." && q.Qtype == dns.TypeAAAA:
			rr, _ := dns.NewRR("v6only.test. 60 IN AAAA 2001:db8::1")
			m.Answer = append(m.Answer, rr)
		case q.Name == "example.test." || q.Name == "v6only.test.":
		default:
			m.SetRcode(req, dns.RcodeNameError)
		}
		_ = w.WriteMsg(m)
	})

	started := make(chan struct{})
	srv := &dns.Server{PacketConn: pc, Handler: mux, NotifyStartedFunc: func() { close(started) }}
	go func() { _ = srv.ActivateAndServe() }()
	t.Cleanup(func() { _ = srv.Shutdown() })

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatalf("dns server did not start")
	}
	return pc.LocalAddr().String()
}

func TestResolver_IPLiteralPassesThrough(t *testing.T) {
	var r *Resolver
	ip, err := r.LookupIP(context.Background(), "203.0.113.7")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if !ip.Equal(net.ParseIP("203.0.113.7")) {
		t.Fatalf("got %s", ip)
	}
}

func TestResolver_Nameserver(t *testing.T) {
	r := &Resolver{Nameservers: []string{startDNS(t)}, Timeout: time.Second}

	ip, err := r.LookupIP(context.Background(), "example.test")
	if err != nil {
		t.Fatalf("lookup A: %v", err)
	}
	if !ip.Equal(net.ParseIP("192.0.2.10")) {
		t.Fatalf("want 192.0.2.10, got %s", ip)
	}

	ip, err = r.LookupIP(context.Background(), "v6only.test")
	if err != nil {
		t.Fatalf("lookup AAAA: %v", err)
	}
	if !ip.Equal(net.ParseIP("2001:db8::1")) {
		t.Fatalf("want 2001:db8::1, got %s", ip)
	}
}

func TestResolver_NXDomainClassified(t *testing.T) {
	r := &Resolver{Nameservers: []string{startDNS(t)}, Timeout: time.Second}

	_, err := r.LookupIP(context.Background(), "missing.test")
	var re *ResolveError
	if !errors.As(err, &re) {
		t.Fatalf("want *ResolveError, got %v", err)
	}
	if re.Class != ClassNXDomain {
		t.Fatalf("want NXDOMAIN, got %s", re.Class)
	}
}

func TestResolver_InvalidName(t *testing.T) {
	_, err := (&Resolver{}).LookupIP(context.Background(), "")
	var re *ResolveError
	if !errors.As(err, &re) || re.Class != ClassInvalidHost {
		t.Fatalf("want INVALID_NAME, got %v", err)
	}
}

func TestWithDNSPort(t *testing.T) {
	cases := map[string]string{
		"1.1.1.1":         "1.1.1.1:53",
		"1.1.1.1:5353":    "1.1.1.1:5353",
		"2606:4700::1111": "[2606:4700::1111]:53",
	}
	for in, want := range cases {
		if got := withDNSPort(in); got != want {
			t.Fatalf("withDNSPort(%q)=%q want %q", in, got, want)
		}
	}
}
