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

const diseaseFixture = `[
  {"country": "Brazil", "countryInfo": {"iso2": "BR"}, "updated": 1740830400000, "todayCases": 120000, "cases": 38000000, "population": 214000000},
  {"country": "Norway", "countryInfo": {"iso2": "NO"}, "updated": 1740830400000, "todayCases": 1200, "cases": 1500000, "population": 5400000}
]`

func TestHealthFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(diseaseFixture))
	}))
	defer srv.Close()

	c := NewHealthConnector(srv.URL, 50000, 5*time.Second, testLogger(t))
	cands, err := c.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(cands) != 1 {
		t.Fatalf("expected 1 surge above threshold, got %d", len(cands))
	}

	surge := cands[0]
	if surge.Category != models.CategoryHealth || surge.Direction != models.DirectionBearish {
		t.Fatalf("surge should be bearish health: %+v", surge)
	}
	if surge.TargetSymbol != "JETS" {
		t.Fatalf("target: got %q", surge.TargetSymbol)
	}

	// 120000/50000 = 2.4x: confidence 0.45 + 0.15*log10(2.4)
	want := 0.45 + 0.15*math.Log10(2.4)
	if math.Abs(surge.Confidence-want) > 1e-9 {
		t.Fatalf("confidence: want %v, got %v", want, surge.Confidence)
	}

	// detection keyed on the reporting day so repeat polls dedup
	if surge.DetectedAt != surge.DetectedAt.Truncate(24*time.Hour) {
		t.Fatalf("detected_at not day-aligned: %v", surge.DetectedAt)
	}
}

func TestHealthStrengthSaturates(t *testing.T) {
	c := NewHealthConnector("", 50000, 0, testLogger(t))
	s := countryStats{Country: "X", Updated: 1740830400000, TodayCases: 5000000}
	if got := c.mapCountry(s).Strength; got != 1 {
		t.Fatalf("strength should saturate at 1, got %v", got)
	}
}
