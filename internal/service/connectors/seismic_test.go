package connectors

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"SigPulse/internal/domain/models"
	xlogger "SigPulse/pkg/logger"
)

func testLogger(t *testing.T) *xlogger.Logger {
	t.Helper()
	l, err := xlogger.New(&xlogger.Config{Level: "error", Format: "console", Output: "stdout"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

const usgsFixture = `{
  "features": [
    {
      "id": "us7000abcd",
      "properties": {
        "mag": 6.8,
        "place": "32km NE of Sendai, Japan",
        "time": 1740830400000,
        "tsunami": 0,
        "title": "M 6.8 - 32km NE of Sendai, Japan",
        "url": "https://earthquake.usgs.gov/earthquakes/eventpage/us7000abcd"
      }
    },
    {
      "id": "us7000weak",
      "properties": {
        "mag": 4.9,
        "place": "offshore Oregon",
        "time": 1740830500000,
        "tsunami": 0,
        "title": "M 4.9 - offshore Oregon",
        "url": ""
      }
    },
    {
      "id": "us7000mild",
      "properties": {
        "mag": 5.6,
        "place": "central Chile",
        "time": 1740830600000,
        "tsunami": 0,
        "title": "M 5.6 - central Chile",
        "url": ""
      }
    }
  ]
}`

func TestSeismicFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(usgsFixture))
	}))
	defer srv.Close()

	c := NewSeismicConnector(srv.URL, 5.0, 5*time.Second, testLogger(t))
	cands, err := c.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(cands) != 2 {
		t.Fatalf("expected 2 candidates above M5.0, got %d", len(cands))
	}

	big := cands[0]
	if big.Category != models.CategorySeismic || big.Source != "usgs" {
		t.Fatalf("wrong provenance: %+v", big)
	}
	if big.Direction != models.DirectionBearish {
		t.Fatalf("M6.8 should be bearish, got %s", big.Direction)
	}
	// 0.5 + 0.1*(6.8-5) + 0.15*0 = 0.68
	if math.Abs(big.Confidence-0.68) > 1e-9 {
		t.Fatalf("confidence: want 0.68, got %v", big.Confidence)
	}
	if big.TargetSymbol != "EWJ" {
		t.Fatalf("japan quake should target EWJ, got %q", big.TargetSymbol)
	}
	if !big.DetectedAt.Equal(time.UnixMilli(1740830400000).UTC()) {
		t.Fatalf("detected_at should come from the event time, got %v", big.DetectedAt)
	}
	if big.Rationale == "" || big.Title == "" {
		t.Fatalf("missing title or rationale")
	}

	mild := cands[1]
	if mild.Direction != models.DirectionNeutral {
		t.Fatalf("M5.6 should be neutral, got %s", mild.Direction)
	}
	if mild.TargetSymbol != "COPX" {
		t.Fatalf("chile quake should target COPX, got %q", mild.TargetSymbol)
	}
}

func TestSeismicTsunamiBoostsConfidence(t *testing.T) {
	c := NewSeismicConnector("", 5.0, 0, testLogger(t))

	f := usgsFeature{}
	f.Properties.Mag = 6.8
	f.Properties.Place = "Japan"
	f.Properties.Time = 1740830400000
	f.Properties.Title = "M 6.8 - Japan"

	plain := c.mapEvent(f)
	f.Properties.Tsunami = 1
	warned := c.mapEvent(f)

	if math.Abs(warned.Confidence-plain.Confidence-0.15) > 1e-9 {
		t.Fatalf("tsunami warning should add 0.15: %v vs %v", plain.Confidence, warned.Confidence)
	}
}

func TestSeismicConfidenceClamped(t *testing.T) {
	c := NewSeismicConnector("", 5.0, 0, testLogger(t))

	f := usgsFeature{}
	f.Properties.Mag = 9.5
	f.Properties.Tsunami = 1
	f.Properties.Title = "M 9.5"
	if got := c.mapEvent(f).Confidence; got != 0.90 {
		t.Fatalf("confidence ceiling: want 0.90, got %v", got)
	}
}

func TestSeismicDeterministicMapping(t *testing.T) {
	c := NewSeismicConnector("", 5.0, 0, testLogger(t))
	f := usgsFeature{}
	f.Properties.Mag = 6.2
	f.Properties.Place = "Taiwan"
	f.Properties.Time = 1740830400000
	f.Properties.Title = "M 6.2 - Taiwan"

	a, b := c.mapEvent(f), c.mapEvent(f)
	if a.Title != b.Title || a.Rationale != b.Rationale || !a.DetectedAt.Equal(b.DetectedAt) {
		t.Fatalf("mapping not deterministic")
	}
	if a.DedupKey() != b.DedupKey() {
		t.Fatalf("dedup keys differ for the same event")
	}
}

func TestSeismicFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewSeismicConnector(srv.URL, 5.0, time.Second, testLogger(t))
	if _, err := c.Fetch(context.Background()); err == nil {
		t.Fatalf("expected error on upstream failure")
	}
}
