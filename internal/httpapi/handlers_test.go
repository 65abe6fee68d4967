package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/sitehealth/internal/domain"
	"github.com/hamed0406/sitehealth/internal/probe"
)

// ---- test helpers ----

type fakeMonitor struct {
	calls int
}

func (f *fakeMonitor) result(target string) domain.SiteMonitorResult {
	up := !strings.Contains(target, "down")
	code := 200
	if !up {
		code = 503
	}
	return domain.SiteMonitorResult{
		URL:       target,
		CheckedAt: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		WorkerID:  "test-worker",
		IsUp:      up,
		GetCheck:  domain.HTTPCheckResult{IsUp: up, StatusCode: code},
	}
}

func (f *fakeMonitor) MonitorURL(_ context.Context, target string) (domain.SiteMonitorResult, error) {
	f.calls++
	if _, err := probe.ParseTarget(target); err != nil {
		return domain.SiteMonitorResult{}, err
	}
	return f.result(target), nil
}

func (f *fakeMonitor) MonitorURLs(_ context.Context, targets []string) ([]domain.SiteMonitorResult, error) {
	f.calls++
	out := make([]domain.SiteMonitorResult, 0, len(targets))
	for i, t := range targets {
		if _, err := probe.ParseTarget(t); err != nil {
			return nil, fmt.Errorf("targets[%d]: %w", i, err)
		}
		out = append(out, f.result(t))
	}
	return out, nil
}

type brokenMonitor struct{ fakeMonitor }

func (b *brokenMonitor) MonitorURLs(context.Context, []string) ([]domain.SiteMonitorResult, error) {
	return nil, errors.New("engine unavailable")
}

func setupServer(t *testing.T, m Monitor, maxBatch int) *httptest.Server {
	t.Helper()
	srv := NewServer(zap.NewNop(), m, maxBatch)
	// very high rate limits to avoid flakiness in tests
	ts := httptest.NewServer(srv.Router(nil, 10_000, 10_000))
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewReader([]byte(body)))
	if err != nil {
		t.Fatalf("POST error: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// ---- tests ----

func TestHealthz(t *testing.T) {
	ts := setupServer(t, &fakeMonitor{}, 10)
	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("want 200, got %d", resp.StatusCode)
	}
}

func TestCheckOne_OK_Invalid(t *testing.T) {
	ts := setupServer(t, &fakeMonitor{}, 10)

	// 1) valid URL
	resp, err := http.Get(ts.URL + "/api/check?url=https://example.com")
	if err != nil {
		t.Fatalf("GET error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("want 200, got %d", resp.StatusCode)
	}
	var got struct {
		URL      string `json:"url"`
		WorkerID string `json:"worker_id"`
		IsUp     bool   `json:"is_up"`
		GetCheck struct {
			StatusCode int `json:"status_code"`
		} `json:"get_check"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.URL != "https://example.com" || !got.IsUp || got.GetCheck.StatusCode != 200 || got.WorkerID != "test-worker" {
		t.Fatalf("unexpected result: %+v", got)
	}

	// 2) invalid URL should be 400
	resp2, err := http.Get(ts.URL + "/api/check?url=ftp://bad")
	if err != nil {
		t.Fatalf("GET invalid error: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusBadRequest {
		t.Fatalf("want 400 on invalid URL, got %d", resp2.StatusCode)
	}
}

func TestCheckBatch_OrderAndStatus(t *testing.T) {
	ts := setupServer(t, &fakeMonitor{}, 10)

	resp := postJSON(t, ts.URL+"/api/check", `{"urls":["https://a.example","https://down.example","https://c.example"]}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("want 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Batch-ID") == "" {
		t.Fatalf("missing X-Batch-ID")
	}
	var got []domain.SiteMonitorResult
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 3 || got[0].URL != "https://a.example" || got[1].URL != "https://down.example" || got[2].URL != "https://c.example" {
		t.Fatalf("unexpected order: %+v", got)
	}
	if got[1].IsUp || got[1].GetCheck.StatusCode != 503 {
		t.Fatalf("want down entry, got %+v", got[1])
	}
}

func TestCheckBatch_Rejections(t *testing.T) {
	m := &fakeMonitor{}
	ts := setupServer(t, m, 2)

	cases := []struct {
		body string
		want int
	}{
		{`not json`, http.StatusBadRequest},
		{`{"urls":[]}`, http.StatusBadRequest},
		{`{"urls":["https://a.example","bad"]}`, http.StatusBadRequest},
		{`{"urls":["https://a.example","https://b.example","https://c.example"]}`, http.StatusRequestEntityTooLarge},
	}
	for _, c := range cases {
		resp := postJSON(t, ts.URL+"/api/check", c.body)
		if resp.StatusCode != c.want {
			t.Fatalf("body %s: want %d, got %d", c.body, c.want, resp.StatusCode)
		}
	}
}

func TestCheckBatch_EngineErrorIs500(t *testing.T) {
	ts := setupServer(t, &brokenMonitor{}, 10)
	resp := postJSON(t, ts.URL+"/api/check", `{"urls":["https://a.example"]}`)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("want 500, got %d", resp.StatusCode)
	}
}

func TestRouter_RateLimited(t *testing.T) {
	srv := NewServer(zap.NewNop(), &fakeMonitor{}, 10)
	ts := httptest.NewServer(srv.Router([]string{"https://dash.example"}, 60, 1))
	defer ts.Close()

	first, err := http.Get(ts.URL + "/api/check?url=https://example.com")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	first.Body.Close()
	second, err := http.Get(ts.URL + "/api/check?url=https://example.com")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	second.Body.Close()
	if first.StatusCode != http.StatusOK || second.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("want 200 then 429, got %d then %d", first.StatusCode, second.StatusCode)
	}

	// healthz is outside the limiter
	h, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET healthz: %v", err)
	}
	h.Body.Close()
	if h.StatusCode != http.StatusOK {
		t.Fatalf("healthz should not be rate limited, got %d", h.StatusCode)
	}
}
