package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/spigell/job-rotator/internal/platform"
	"github.com/spigell/job-rotator/internal/quota"
	"github.com/spigell/job-rotator/internal/retry"
)

func TestObservers(t *testing.T) {
	m := New()

	m.ObserveOutcome("hh", platform.Applied)
	m.ObserveOutcome("hh", platform.Applied)
	m.ObserveOutcome("hh", platform.Skipped)
	if got := testutil.ToFloat64(m.Outcomes.WithLabelValues("hh", "applied")); got != 2 {
		t.Fatalf("expected 2 applied outcomes, got %v", got)
	}

	m.ObserveAttempt("act", retry.Direct, retry.ErrUnavailable)
	m.ObserveAttempt("act", retry.Pointer, retry.ErrUnsupportedStrategy)
	m.ObserveAttempt("act", retry.Forced, nil)
	m.ObserveAttempt("act", retry.Direct, errors.New("boom"))
	for _, tt := range []struct{ strategy, result string }{
		{"direct", "transient"}, {"pointer", "unsupported"}, {"forced", "ok"}, {"direct", "error"},
	} {
		if got := testutil.ToFloat64(m.Attempts.WithLabelValues("act", tt.strategy, tt.result)); got != 1 {
			t.Fatalf("expected one %s/%s attempt, got %v", tt.strategy, tt.result, got)
		}
	}

	m.ObserveQuota("hh", quota.State{DailyCount: 4, WeeklyCount: 9})
	if got := testutil.ToFloat64(m.WeeklyCount.WithLabelValues("hh")); got != 9 {
		t.Fatalf("unexpected weekly gauge %v", got)
	}

	m.ObserveCycle()
	m.ObserveAbandoned("hh", "quota exceeded")
	if testutil.ToFloat64(m.Cycles) != 1 || testutil.ToFloat64(m.Abandoned.WithLabelValues("hh", "quota exceeded")) != 1 {
		t.Fatalf("unexpected cycle counters")
	}
}

func TestServerHandler(t *testing.T) {
	m := New()
	m.ObserveOutcome("hh", platform.Failed)

	srv := httptest.NewServer(NewServer(m, "127.0.0.1:0", nil).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `job_rotator_outcomes_total{outcome="failed",platform="hh"} 1`) {
		t.Fatalf("metrics output is missing the outcome counter:\n%s", body)
	}

	health, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("get health: %v", err)
	}
	health.Body.Close()
	if health.StatusCode != http.StatusOK {
		t.Fatalf("unexpected health status %d", health.StatusCode)
	}
}

func TestServerRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewServer(New(), "127.0.0.1:0", nil).Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("server did not stop")
	}
}
