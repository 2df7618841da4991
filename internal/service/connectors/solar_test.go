package connectors

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"SigPulse/internal/domain/models"
)

const swpcFixture = `[
  {"time_tag": "2025-03-01T10:05:00", "kp_index": 6.33},
  {"time_tag": "2025-03-01T10:45:00", "kp_index": 7.00},
  {"time_tag": "2025-03-01T11:15:00", "kp_index": 6.00},
  {"time_tag": "2025-03-01T12:15:00", "kp_index": 3.67}
]`

func TestSolarFetchHourlyPeaks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(swpcFixture))
	}))
	defer srv.Close()

	c := NewSolarConnector(srv.URL, 5.0, 5*time.Second, testLogger(t))
	cands, err := c.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	// two samples collapse into the 10:00 hour, one in 11:00, one below
	// threshold
	if len(cands) != 2 {
		t.Fatalf("expected 2 hourly peaks, got %d", len(cands))
	}

	var peak *models.CandidateSignal
	for _, cand := range cands {
		if cand.DetectedAt.Hour() == 10 {
			peak = cand
		}
	}
	if peak == nil {
		t.Fatalf("missing 10:00 peak")
	}
	// the 7.00 sample wins the hour over 6.33
	wantConf := 0.40 + 0.08*(7.00-5)
	if math.Abs(peak.Confidence-wantConf) > 1e-9 {
		t.Fatalf("confidence: want %v got %v", wantConf, peak.Confidence)
	}
	if peak.Direction != models.DirectionBearish || peak.TargetSymbol != "ARKX" {
		t.Fatalf("storm mapping wrong: %+v", peak)
	}
	if peak.DetectedAt.Minute() != 0 {
		t.Fatalf("detected_at should be hour-aligned: %v", peak.DetectedAt)
	}
}

func TestSolarAllQuiet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`[{"time_tag": "2025-03-01T10:05:00", "kp_index": 2.33}]`))
	}))
	defer srv.Close()

	c := NewSolarConnector(srv.URL, 5.0, 5*time.Second, testLogger(t))
	cands, err := c.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(cands) != 0 {
		t.Fatalf("quiet feed should yield no candidates, got %d", len(cands))
	}
}
