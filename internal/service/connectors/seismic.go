package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"SigPulse/internal/domain/models"
	drepo "SigPulse/internal/domain/repository"
	xhttp "SigPulse/pkg/http"
	xlogger "SigPulse/pkg/logger"
)

const DefaultSeismicURL = "https://earthquake.usgs.gov/earthquakes/feed/v1.0/summary/2.5_day.geojson"

// DefaultMinMagnitude is the materiality threshold; weaker events are
// dropped silently.
const DefaultMinMagnitude = 5.5

// seismicRegion maps a substring of the USGS place description to the market
// entity most exposed to a quake there. Unmapped regions still produce a
// signal, just without a target.
type seismicRegion struct {
	match  string
	symbol string
	sector string
}

var seismicRegions = []seismicRegion{
	{"japan", "EWJ", "japan equities"},
	{"california", "ALL", "property insurance"},
	{"chile", "COPX", "copper mining"},
	{"indonesia", "EIDO", "indonesia equities"},
	{"taiwan", "TSM", "semiconductors"},
	{"turkey", "TUR", "turkey equities"},
	{"mexico", "EWW", "mexico equities"},
	{"new zealand", "ENZL", "new zealand equities"},
}

// SeismicConnector pulls the USGS earthquake GeoJSON feed.
type SeismicConnector struct {
	url          string
	minMagnitude float64
	client       *xhttp.Client
	logger       *xlogger.Logger
}

func NewSeismicConnector(url string, minMagnitude float64, timeout time.Duration, logger *xlogger.Logger) *SeismicConnector {
	if url == "" {
		url = DefaultSeismicURL
	}
	if minMagnitude <= 0 {
		minMagnitude = DefaultMinMagnitude
	}
	return &SeismicConnector{
		url:          url,
		minMagnitude: minMagnitude,
		client:       newClient(timeout),
		logger:       logger,
	}
}

func (c *SeismicConnector) Name() string { return "seismic" }

type usgsFeature struct {
	ID         string `json:"id"`
	Properties struct {
		Mag     float64 `json:"mag"`
		Place   string  `json:"place"`
		Time    int64   `json:"time"` // ms
		Tsunami int     `json:"tsunami"`
		Title   string  `json:"title"`
		URL     string  `json:"url"`
	} `json:"properties"`
}

type usgsFeed struct {
	Features []usgsFeature `json:"features"`
}

// Fetch pulls the feed once and maps material quakes to candidates.
func (c *SeismicConnector) Fetch(ctx context.Context) ([]*models.CandidateSignal, error) {
	var feed usgsFeed
	err := c.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.url,
	}, &feed)
	if err != nil {
		c.logger.Warn("seismic fetch failed", xlogger.Error(err))
		return nil, fmt.Errorf("seismic fetch: %w", err)
	}

	var out []*models.CandidateSignal
	for _, f := range feed.Features {
		if f.Properties.Mag < c.minMagnitude {
			continue
		}
		out = append(out, c.mapEvent(f))
	}
	return out, nil
}

// mapEvent is a pure function of the feature; re-running it on the same
// event yields byte-identical title and rationale, which is what the
// (title, detectedAt) dedup key relies on.
func (c *SeismicConnector) mapEvent(f usgsFeature) *models.CandidateSignal {
	mag := f.Properties.Mag
	tsunami := 0.0
	if f.Properties.Tsunami != 0 {
		tsunami = 1.0
	}

	direction := models.DirectionNeutral
	if mag >= 6.0 {
		direction = models.DirectionBearish
	}
	confidence := clamp(0.40, 0.90, 0.5+0.1*(mag-5)+0.15*tsunami)
	strength := clamp(0, 1, (mag-c.minMagnitude)/3.5)

	symbol, sector := "", ""
	place := strings.ToLower(f.Properties.Place)
	for _, r := range seismicRegions {
		if strings.Contains(place, r.match) {
			symbol, sector = r.symbol, r.sector
			break
		}
	}

	detectedAt := time.UnixMilli(f.Properties.Time).UTC()
	rationale := fmt.Sprintf(
		"Magnitude %.1f earthquake %s at %s UTC; tsunami flag %d. Events at or above M6.0 are treated as bearish for exposed regional assets.",
		mag, f.Properties.Place, detectedAt.Format(time.RFC3339), f.Properties.Tsunami)

	raw, _ := json.Marshal(f)
	return &models.CandidateSignal{
		Category:     models.CategorySeismic,
		Source:       "usgs",
		SourceURL:    f.Properties.URL,
		TargetSymbol: symbol,
		TargetSector: sector,
		Direction:    direction,
		Strength:     strength,
		Confidence:   confidence,
		Title:        f.Properties.Title,
		Summary:      fmt.Sprintf("M%.1f quake, %s", mag, f.Properties.Place),
		Rationale:    rationale,
		RawPayload:   raw,
		DetectedAt:   detectedAt,
		ExpiresAt:    detectedAt.Add(72 * time.Hour),
	}
}

var _ drepo.Connector = (*SeismicConnector)(nil)
