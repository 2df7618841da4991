package connectors

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"SigPulse/internal/domain/models"
)

func TestParseNewsTopics(t *testing.T) {
	topics := ParseNewsTopics([]string{
		"geopolitical:sanctions OR embargo",
		"crypto: bitcoin ",
		"bogus-category:something",
		"no-query-separator",
		"forex:",
	})
	if len(topics) != 2 {
		t.Fatalf("expected 2 valid topics, got %d", len(topics))
	}
	if topics[0].Category != models.CategoryGeopolitical || topics[0].Query != "sanctions OR embargo" {
		t.Fatalf("topic 0: %+v", topics[0])
	}
	if topics[1].Category != models.CategoryCrypto || topics[1].Query != "bitcoin" {
		t.Fatalf("topic 1: %+v", topics[1])
	}
}

func fixedNews(t *testing.T, url string, topics []NewsTopic) *NewsConnector {
	t.Helper()
	c := NewNewsConnector(url, topics, 20, 5*time.Second, testLogger(t))
	c.now = func() time.Time {
		return time.Date(2025, 3, 1, 15, 30, 0, 0, time.UTC)
	}
	return c
}

func TestNewsBearishTone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("mode") != "tonechart" {
			t.Errorf("expected tonechart mode, got %q", r.URL.Query().Get("mode"))
		}
		w.Write([]byte(`{"tonechart": [
			{"bin": -8, "count": 40},
			{"bin": -4, "count": 60},
			{"bin": 0, "count": 30},
			{"bin": 3, "count": 10}
		]}`))
	}))
	defer srv.Close()

	c := fixedNews(t, srv.URL, []NewsTopic{{Category: models.CategoryGeopolitical, Query: "sanctions"}})
	cands, err := c.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(cands) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(cands))
	}

	cand := cands[0]
	// mean tone (-320-240+0+30)/140 = -3.79, decisively bearish
	if cand.Direction != models.DirectionBearish {
		t.Fatalf("expected bearish, got %s", cand.Direction)
	}
	if cand.Category != models.CategoryGeopolitical || cand.Source != "gdelt" {
		t.Fatalf("provenance: %+v", cand)
	}
	wantDay := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	if !cand.DetectedAt.Equal(wantDay) {
		t.Fatalf("detected_at should be the UTC day: %v", cand.DetectedAt)
	}
	if cand.Confidence < 0.40 || cand.Confidence > 0.85 {
		t.Fatalf("confidence out of band: %v", cand.Confidence)
	}
}

func TestNewsNeutralToneSkipped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"tonechart": [{"bin": -1, "count": 50}, {"bin": 1, "count": 50}]}`))
	}))
	defer srv.Close()

	c := fixedNews(t, srv.URL, []NewsTopic{{Category: models.CategoryCrypto, Query: "bitcoin"}})
	cands, err := c.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(cands) != 0 {
		t.Fatalf("neutral tone should yield nothing, got %d", len(cands))
	}
}

func TestNewsVolumeFloor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"tonechart": [{"bin": -9, "count": 5}]}`))
	}))
	defer srv.Close()

	c := fixedNews(t, srv.URL, []NewsTopic{{Category: models.CategoryCrypto, Query: "bitcoin"}})
	cands, _ := c.Fetch(context.Background())
	if len(cands) != 0 {
		t.Fatalf("sub-threshold volume should yield nothing, got %d", len(cands))
	}
}

func TestNewsSameDayDedupKey(t *testing.T) {
	bins := []toneBin{{Bin: -5, Count: 100}}
	c := fixedNews(t, "", []NewsTopic{})
	topic := NewsTopic{Category: models.CategoryGeopolitical, Query: "sanctions"}

	a := c.scoreTopic(topic, bins)
	b := c.scoreTopic(topic, bins)
	if a.DedupKey() != b.DedupKey() {
		t.Fatalf("same topic, same day should dedup: %q vs %q", a.DedupKey(), b.DedupKey())
	}
}
