package observability_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"review_studio/internal/adapters/observability"
)

func TestMetricsRegistryAndHandler(t *testing.T) {
	reg := observability.InitRegistry()

	// record samples so the vectors are exported
	observability.ObserveHTTP("/test", "GET", 200, 12*time.Millisecond)
	observability.ObserveJobItem("game", "skipped")
	observability.ObserveRepair("basic")

	mh := observability.MetricsHandler(reg)
	req := httptest.NewRequest("GET", "/metrics", nil)
	rr := httptest.NewRecorder()
	mh.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status: %d", rr.Code)
	}
	body, _ := io.ReadAll(rr.Body)
	out := string(body)
	for _, name := range []string{
		"reviewstudio_http_requests_total",
		`reviewstudio_job_items_total{category="game",outcome="skipped"}`,
		`reviewstudio_generation_repairs_total{tier="basic"}`,
	} {
		if !strings.Contains(out, name) {
			t.Fatalf("expected %s in output", name)
		}
	}
}

func TestPreview(t *testing.T) {
	if got := observability.Preview("abcdef", 3); got != "abc..." {
		t.Fatalf("Preview = %q", got)
	}
	if got := observability.Preview("ab", 3); got != "ab" {
		t.Fatalf("Preview = %q", got)
	}
}

func TestPreview_KeepsRunesWhole(t *testing.T) {
	// "ü" is two bytes; a cut at byte 2 would split it
	got := observability.Preview("aüb", 2)
	if got != "a..." {
		t.Fatalf("Preview = %q", got)
	}
	if !utf8.ValidString(got) {
		t.Fatalf("Preview returned invalid UTF-8: %q", got)
	}
}
