package probe

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/hamed0406/sitehealth/internal/domain"
)

// maxDrain bounds how much of a GET body is read and discarded before close.
const maxDrain = 1 << 20

// HTTPProber issues single GET or HEAD requests and reports what came back.
type HTTPProber struct {
	Client    *http.Client
	UserAgent string
	now       func() time.Time
}

// NewHTTPProber returns a prober whose client gives up after timeout.
// Certificate verification is disabled so that broken or expired
// certificates are still observed and reported instead of refused.
// Redirects are not followed and connections are not reused.
func NewHTTPProber(timeout time.Duration, userAgent string) *HTTPProber {
	transport := &http.Transport{
		Proxy: nil,
		DialContext: (&net.Dialer{
			Timeout: timeout,
		}).DialContext,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: true, // certificate health is reported, not enforced
		},
		DisableKeepAlives:   true,
		ForceAttemptHTTP2:   true,
		TLSHandshakeTimeout: timeout,
	}
	return &HTTPProber{
		Client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		UserAgent: userAgent,
		now:       time.Now,
	}
}

// Probe sends one request with method (GET or HEAD) to target.
//
// Only a received response yields a result. A malformed URL, an unsupported
// method, a transport failure or a timeout is returned as an error; timeouts
// wrap ErrTimeout.
func (h *HTTPProber) Probe(ctx context.Context, target, method string) (domain.HTTPCheckResult, error) {
	if method != http.MethodGet && method != http.MethodHead {
		return domain.HTTPCheckResult{}, fmt.Errorf("%w: %s", ErrUnsupportedMethod, method)
	}
	if _, err := ParseTarget(target); err != nil {
		return domain.HTTPCheckResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return domain.HTTPCheckResult{}, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if h.UserAgent != "" {
		req.Header.Set("User-Agent", h.UserAgent)
	}

	start := time.Now()
	resp, err := h.Client.Do(req)
	latency := time.Since(start).Seconds() * 1000 // ms
	if err != nil {
		if isTimeout(ctx, err) {
			return domain.HTTPCheckResult{}, fmt.Errorf("%w: %s %s: %v", ErrTimeout, method, target, err)
		}
		return domain.HTTPCheckResult{}, fmt.Errorf("%s %s: %w", method, target, err)
	}
	defer resp.Body.Close()

	out := domain.HTTPCheckResult{
		IsUp:           resp.StatusCode > 0 && resp.StatusCode < 400,
		StatusCode:     resp.StatusCode,
		ResponseTimeMS: latency,
		Headers:        flattenHeaders(resp.Header),
		TLSInfo:        ExtractTLS(resp.TLS, h.clock()),
	}

	if method == http.MethodGet {
		// the result stands even if the body stalls; ctx bounds the read
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrain))
	}
	return out, nil
}

func (h *HTTPProber) clock() time.Time {
	if h.now == nil {
		return time.Now()
	}
	return h.now()
}

func flattenHeaders(hdr http.Header) map[string]string {
	if len(hdr) == 0 {
		return nil
	}
	out := make(map[string]string, len(hdr))
	for k, vs := range hdr {
		out[k] = strings.Join(vs, ", ")
	}
	return out
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}
