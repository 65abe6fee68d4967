// Package probe holds the protocol-level health probes: ICMP echo, HTTP GET
// and HEAD, and TLS certificate inspection.
package probe

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

var (
	// ErrInvalidURL marks a target that is not an absolute http(s) URL.
	// It signals a caller bug and is never converted into a "down" result.
	ErrInvalidURL = errors.New("invalid target url")
	// ErrTimeout marks a probe that did not finish within its budget.
	ErrTimeout = errors.New("probe timed out")
	// ErrUnsupportedMethod is returned for HTTP methods other than GET and HEAD.
	ErrUnsupportedMethod = errors.New("unsupported http method")
)

// ParseTarget validates raw as an absolute http or https URL with a host.
func ParseTarget(raw string) (*url.URL, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidURL)
	}
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidURL, raw, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return nil, fmt.Errorf("%w: %q: scheme must be http or https", ErrInvalidURL, raw)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("%w: %q: missing host", ErrInvalidURL, raw)
	}
	return u, nil
}

// NormalizeTarget lower-cases scheme and host, drops default ports and a
// bare trailing slash. Invalid input is returned unchanged.
func NormalizeTarget(raw string) string {
	u, err := ParseTarget(raw)
	if err != nil {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		u.Host = net.JoinHostPort(host, port)
	} else if strings.Contains(host, ":") {
		u.Host = "[" + host + "]"
	} else {
		u.Host = host
	}
	if u.Path == "/" && u.RawQuery == "" {
		u.Path = ""
	}
	return u.String()
}

// hostOf returns the bare hostname of an already validated URL.
func hostOf(raw string) (string, error) {
	u, err := ParseTarget(raw)
	if err != nil {
		return "", err
	}
	return u.Hostname(), nil
}
