package server

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zgpcy/stopwatch/internal/clock"
	"github.com/zgpcy/stopwatch/internal/collector"
	"github.com/zgpcy/stopwatch/internal/config"
	"github.com/zgpcy/stopwatch/internal/logger"
	"github.com/zgpcy/stopwatch/internal/stopwatch"
)

// testLogger creates a logger for testing (error level to suppress test output)
func testLogger() *logger.Logger {
	return logger.New("error")
}

// newTestServer builds a server around a stopwatch driven by a fake clock
func newTestServer(t *testing.T) (*Server, *stopwatch.Stopwatch, *clock.FakeClock) {
	t.Helper()
	cfg := &config.Config{HTTPPort: 8080, TickInterval: 1}
	fc := clock.NewFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	sw := stopwatch.New(cfg.Interval(), fc, testLogger())
	t.Cleanup(sw.Close)
	return NewServer(cfg, sw, testLogger()), sw, fc
}

// waitForTick advances the fake clock one interval and waits until the stopwatch applied it
func waitForTick(t *testing.T, sw *stopwatch.Stopwatch, fc *clock.FakeClock) {
	t.Helper()
	sub := sw.Subscribe()
	defer sub.Close()

	fc.Advance(sw.Interval())
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-sub.C():
			if ev.Kind == stopwatch.EventTick {
				return
			}
		case <-timeout:
			t.Fatal("timed out waiting for tick")
		}
	}
}

func do(t *testing.T, s *Server, method, path string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w.Result()
}

func decode(t *testing.T, resp *http.Response) stopwatchResponse {
	t.Helper()
	defer resp.Body.Close()

	var body struct {
		State           string              `json:"state"`
		Formatted       stopwatch.Formatted `json:"formatted"`
		Display         string              `json:"display"`
		IntervalSeconds float64             `json:"interval_seconds"`
		Ticks           uint64              `json:"ticks"`
		Elapsed         struct {
			TotalMillis int64 `json:"total_ms"`
		} `json:"elapsed"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	state := stopwatch.StateIdle
	for _, st := range stopwatch.States {
		if st.String() == body.State {
			state = st
		}
	}
	return stopwatchResponse{
		State:           state,
		Elapsed:         stopwatch.FromMilliseconds(body.Elapsed.TotalMillis),
		Formatted:       body.Formatted,
		Display:         body.Display,
		IntervalSeconds: body.IntervalSeconds,
		Ticks:           body.Ticks,
	}
}

// TestNewServer tests server creation
func TestNewServer(t *testing.T) {
	server, _, _ := newTestServer(t)

	if server == nil {
		t.Fatal("NewServer returned nil")
	}
	if server.server == nil {
		t.Error("server.server should not be nil")
	}
	if server.stopwatch == nil {
		t.Error("server.stopwatch should not be nil")
	}
	if server.server.Addr != ":8080" {
		t.Errorf("server address: got %v, want :8080", server.server.Addr)
	}
}

// TestServerTimeouts tests that server has proper timeout configurations
func TestServerTimeouts(t *testing.T) {
	server, _, _ := newTestServer(t)

	if server.server.ReadTimeout != 15*time.Second {
		t.Errorf("ReadTimeout: got %v, want 15s", server.server.ReadTimeout)
	}
	if server.server.WriteTimeout != 15*time.Second {
		t.Errorf("WriteTimeout: got %v, want 15s", server.server.WriteTimeout)
	}
	if server.server.IdleTimeout != 60*time.Second {
		t.Errorf("IdleTimeout: got %v, want 60s", server.server.IdleTimeout)
	}
}

// TestHandleHealth tests the /health endpoint
func TestHandleHealth(t *testing.T) {
	server, _, _ := newTestServer(t)

	resp := do(t, server, http.MethodGet, "/health")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Status code: got %v, want %v", resp.StatusCode, http.StatusOK)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %v, want application/json", ct)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response body: %v", err)
	}
	if string(body) != `{"status":"healthy"}` {
		t.Errorf("Response body: got %v, want %v", string(body), `{"status":"healthy"}`)
	}
}

// TestHandleReady_StateTransitions tests ready before and after close
func TestHandleReady_StateTransitions(t *testing.T) {
	server, sw, _ := newTestServer(t)

	resp := do(t, server, http.MethodGet, "/ready")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Status code before close: got %v, want %v", resp.StatusCode, http.StatusOK)
	}

	sw.Close()

	resp = do(t, server, http.MethodGet, "/ready")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Status code after close: got %v, want %v", resp.StatusCode, http.StatusServiceUnavailable)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "stopwatch closed") {
		t.Errorf("Response should mention closed stopwatch, got %s", body)
	}
}

// TestHandleVersion tests the /version endpoint
func TestHandleVersion(t *testing.T) {
	server, _, _ := newTestServer(t)

	resp := do(t, server, http.MethodGet, "/version")
	defer resp.Body.Close()

	var info map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		t.Fatalf("Failed to decode version: %v", err)
	}
	for _, key := range []string{"version", "git_commit", "build_date", "go_version"} {
		if info[key] == "" {
			t.Errorf("version info missing %q", key)
		}
	}
}

// TestHandleIndex tests the readout page
func TestHandleIndex(t *testing.T) {
	server, sw, fc := newTestServer(t)
	sw.Start()
	waitForTick(t, sw, fc)

	resp := do(t, server, http.MethodGet, "/")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Status code: got %v, want %v", resp.StatusCode, http.StatusOK)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/html" {
		t.Errorf("Content-Type: got %v, want text/html", ct)
	}

	body, _ := io.ReadAll(resp.Body)
	bodyStr := string(body)
	for _, want := range []string{"00:00:01:00", "active", "Tick interval: 1s", "/api/stopwatch/events"} {
		if !strings.Contains(bodyStr, want) {
			t.Errorf("Index page should contain %q", want)
		}
	}
}

// TestHandleIndex_UnknownPath tests that only the root path serves the page
func TestHandleIndex_UnknownPath(t *testing.T) {
	server, _, _ := newTestServer(t)

	resp := do(t, server, http.MethodGet, "/nope")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Status code: got %v, want %v", resp.StatusCode, http.StatusNotFound)
	}
}

// TestStopwatchAPI_Lifecycle drives start, pause, resume and reset over HTTP
func TestStopwatchAPI_Lifecycle(t *testing.T) {
	server, sw, fc := newTestServer(t)

	got := decode(t, do(t, server, http.MethodGet, "/api/stopwatch"))
	if got.State != stopwatch.StateIdle || !got.Elapsed.IsZero() {
		t.Fatalf("initial state: got %v %v, want idle zero", got.State, got.Elapsed)
	}
	if got.IntervalSeconds != 1 {
		t.Errorf("interval_seconds: got %v, want 1", got.IntervalSeconds)
	}

	got = decode(t, do(t, server, http.MethodPost, "/api/stopwatch/start"))
	if got.State != stopwatch.StateActive {
		t.Errorf("after start: got %v, want active", got.State)
	}

	waitForTick(t, sw, fc)
	waitForTick(t, sw, fc)

	got = decode(t, do(t, server, http.MethodPost, "/api/stopwatch/pause"))
	if got.State != stopwatch.StatePaused {
		t.Errorf("after pause: got %v, want paused", got.State)
	}
	if got.Elapsed.TotalMilliseconds() != 2000 {
		t.Errorf("elapsed after pause: got %d ms, want 2000", got.Elapsed.TotalMilliseconds())
	}
	if got.Display != "00:00:02:00" {
		t.Errorf("display: got %q, want 00:00:02:00", got.Display)
	}
	if got.Ticks != 2 {
		t.Errorf("ticks: got %d, want 2", got.Ticks)
	}

	got = decode(t, do(t, server, http.MethodPost, "/api/stopwatch/resume"))
	if got.State != stopwatch.StateActive {
		t.Errorf("after resume: got %v, want active", got.State)
	}

	got = decode(t, do(t, server, http.MethodPost, "/api/stopwatch/reset"))
	if got.State != stopwatch.StateActive {
		t.Errorf("reset must keep state: got %v, want active", got.State)
	}
	if !got.Elapsed.IsZero() {
		t.Errorf("elapsed after reset: got %v, want zero", got.Elapsed)
	}
}

// TestStopwatchAPI_DoubleStart tests that a repeated start over HTTP does not double the rate
func TestStopwatchAPI_DoubleStart(t *testing.T) {
	server, sw, fc := newTestServer(t)

	do(t, server, http.MethodPost, "/api/stopwatch/start").Body.Close()
	do(t, server, http.MethodPost, "/api/stopwatch/start").Body.Close()

	if n := fc.ActiveTickers(); n != 1 {
		t.Fatalf("active tickers: got %d, want 1", n)
	}

	waitForTick(t, sw, fc)
	if ms := sw.Elapsed().TotalMilliseconds(); ms != 1000 {
		t.Errorf("elapsed: got %d ms, want 1000", ms)
	}
}

// TestStopwatchAPI_Closed tests that operations are rejected after close
func TestStopwatchAPI_Closed(t *testing.T) {
	server, sw, _ := newTestServer(t)
	sw.Close()

	for _, op := range []string{"start", "pause", "resume", "reset"} {
		resp := do(t, server, http.MethodPost, "/api/stopwatch/"+op)
		resp.Body.Close()
		if resp.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("POST %s: got %v, want %v", op, resp.StatusCode, http.StatusServiceUnavailable)
		}
	}
}

// TestOperation_IgnoredTransition tests that the status comes from the operation
// result, so a close that lands between request and transition still yields 503
func TestOperation_IgnoredTransition(t *testing.T) {
	server, sw, _ := newTestServer(t)

	handler := server.operation("start", func() bool {
		sw.Close()
		return sw.Start()
	})

	req := httptest.NewRequest(http.MethodPost, "/api/stopwatch/start", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status: got %v, want %v", w.Code, http.StatusServiceUnavailable)
	}
	if !strings.Contains(w.Body.String(), "stopwatch closed") {
		t.Errorf("body should mention closed stopwatch, got %s", w.Body.String())
	}
}

// TestHTTPMethods tests method routing on the API
func TestHTTPMethods(t *testing.T) {
	server, _, _ := newTestServer(t)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/api/stopwatch/start", http.StatusMethodNotAllowed},
		{http.MethodDelete, "/api/stopwatch", http.StatusMethodNotAllowed},
		{http.MethodPost, "/health", http.StatusMethodNotAllowed},
		{http.MethodPut, "/api/stopwatch/reset", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			resp := do(t, server, tt.method, tt.path)
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("status: got %v, want %v", resp.StatusCode, tt.want)
			}
		})
	}
}

// TestMetricsEndpoint tests the /metrics endpoint
func TestMetricsEndpoint(t *testing.T) {
	server, sw, fc := newTestServer(t)
	sw.Start()
	waitForTick(t, sw, fc)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collector.NewStopwatchCollector(sw, testLogger()))

	// Override the handler to use our custom registry
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server.server.Handler = mux

	resp := do(t, server, http.MethodGet, "/metrics")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Status code: got %v, want %v", resp.StatusCode, http.StatusOK)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "text/plain") {
		t.Errorf("Content-Type should contain text/plain, got %v", ct)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response body: %v", err)
	}

	bodyStr := string(body)
	for _, expected := range []string{
		"stopwatch_elapsed_seconds 1",
		`stopwatch_state{state="active"} 1`,
		"stopwatch_ticks_total 1",
		"stopwatch_build_info",
	} {
		if !strings.Contains(bodyStr, expected) {
			t.Errorf("Metrics should contain %q", expected)
		}
	}
}

type sseEvent struct {
	kind string
	data string
}

func readEvent(t *testing.T, r *bufio.Reader) sseEvent {
	t.Helper()
	var ev sseEvent
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("Failed to read event stream: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			return ev
		case strings.HasPrefix(line, "event: "):
			ev.kind = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			ev.data = strings.TrimPrefix(line, "data: ")
		}
	}
}

// TestHandleEvents streams a snapshot followed by change notifications
func TestHandleEvents(t *testing.T) {
	server, sw, fc := newTestServer(t)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/stopwatch/events", nil)
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Failed to open event stream: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type: got %v, want text/event-stream", ct)
	}

	r := bufio.NewReader(resp.Body)
	if ev := readEvent(t, r); ev.kind != "snapshot" || !strings.Contains(ev.data, `"state":"idle"`) {
		t.Fatalf("first event: got %+v, want idle snapshot", ev)
	}

	sw.Start()
	if ev := readEvent(t, r); ev.kind != "start" {
		t.Fatalf("second event: got %+v, want start", ev)
	}

	fc.Advance(sw.Interval())
	ev := readEvent(t, r)
	if ev.kind != "tick" {
		t.Fatalf("third event: got %+v, want tick", ev)
	}

	var decoded struct {
		Formatted stopwatch.Formatted `json:"formatted"`
		State     string              `json:"state"`
	}
	if err := json.Unmarshal([]byte(ev.data), &decoded); err != nil {
		t.Fatalf("tick payload is not JSON: %v", err)
	}
	if decoded.Formatted.Seconds != "01" || decoded.State != "active" {
		t.Errorf("tick payload: got %+v", decoded)
	}
}

// TestHandleEvents_EndsOnClose tests that the stream ends when the stopwatch closes
func TestHandleEvents_EndsOnClose(t *testing.T) {
	server, sw, _ := newTestServer(t)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/stopwatch/events")
	if err != nil {
		t.Fatalf("Failed to open event stream: %v", err)
	}
	defer resp.Body.Close()

	r := bufio.NewReader(resp.Body)
	readEvent(t, r)

	sw.Close()

	done := make(chan error, 1)
	go func() {
		_, err := io.ReadAll(r)
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("stream ended with error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event stream did not end after close")
	}
}

// TestConcurrency_MultipleRequests tests concurrent API access
func TestConcurrency_MultipleRequests(t *testing.T) {
	server, _, _ := newTestServer(t)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/stopwatch/start"},
		{http.MethodPost, "/api/stopwatch/pause"},
		{http.MethodPost, "/api/stopwatch/reset"},
		{http.MethodGet, "/api/stopwatch"},
		{http.MethodGet, "/health"},
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := paths[i%len(paths)]
			resp := do(t, server, p.method, p.path)
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				t.Errorf("%s %s: got %v, want %v", p.method, p.path, resp.StatusCode, http.StatusOK)
			}
		}(i)
	}
	wg.Wait()
}
