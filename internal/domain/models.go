package domain

import "time"

// PingResult is ICMP-level reachability. Status is a synthetic code
// (200 when the host answered, 0 otherwise) so it lines up with HTTP results.
type PingResult struct {
	IsUp           bool    `json:"is_up"`
	Status         int     `json:"status"`
	ResponseTimeMS float64 `json:"response_time_ms"`
	Error          string  `json:"error,omitempty"`
}

// HTTPCheckResult is the outcome of a single GET or HEAD request.
type HTTPCheckResult struct {
	IsUp           bool              `json:"is_up"`
	StatusCode     int               `json:"status_code"`
	ResponseTimeMS float64           `json:"response_time_ms"`
	Headers        map[string]string `json:"headers,omitempty"`
	TLSInfo        *TLSInfo          `json:"tls_info,omitempty"`
	Error          string            `json:"error,omitempty"`
}

// TLSInfo describes the peer certificate of an HTTPS check.
// DaysUntilExpiry is negative once the certificate has expired.
type TLSInfo struct {
	ValidFrom       time.Time `json:"valid_from"`
	ValidTo         time.Time `json:"valid_to"`
	Issuer          string    `json:"issuer"`
	DaysUntilExpiry int       `json:"days_until_expiry"`
}

// SiteMonitorResult is the composite result of one monitoring pass over a URL.
// IsUp mirrors GetCheck.IsUp.
type SiteMonitorResult struct {
	URL       string          `json:"url"`
	CheckedAt time.Time       `json:"checked_at"`
	WorkerID  string          `json:"worker_id"`
	IsUp      bool            `json:"is_up"`
	PingCheck PingResult      `json:"ping_check"`
	GetCheck  HTTPCheckResult `json:"get_check"`
	HeadCheck HTTPCheckResult `json:"head_check"`
}

// FailedPing returns the failure-shaped ping result for err.
func FailedPing(err error) PingResult {
	return PingResult{IsUp: false, Status: 0, ResponseTimeMS: 0, Error: errorText(err)}
}

// FailedHTTPCheck returns the failure-shaped HTTP result for err.
func FailedHTTPCheck(err error) HTTPCheckResult {
	return HTTPCheckResult{IsUp: false, StatusCode: 0, ResponseTimeMS: 0, Error: errorText(err)}
}

func errorText(err error) string {
	if err == nil || err.Error() == "" {
		return "unknown error"
	}
	return err.Error()
}
