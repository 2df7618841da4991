package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"SigPulse/internal/domain/models"
	drepo "SigPulse/internal/domain/repository"
	xhttp "SigPulse/pkg/http"
	xlogger "SigPulse/pkg/logger"
)

const DefaultHealthURL = "https://disease.sh/v3/covid-19/countries"

// DefaultMinNewCases is the materiality threshold for a one-day case count.
const DefaultMinNewCases int64 = 50000

// HealthConnector pulls per-country outbreak statistics and flags countries
// whose daily new-case count crosses the threshold.
type HealthConnector struct {
	url         string
	minNewCases int64
	client      *xhttp.Client
	logger      *xlogger.Logger
}

func NewHealthConnector(url string, minNewCases int64, timeout time.Duration, logger *xlogger.Logger) *HealthConnector {
	if url == "" {
		url = DefaultHealthURL
	}
	if minNewCases <= 0 {
		minNewCases = DefaultMinNewCases
	}
	return &HealthConnector{
		url:         url,
		minNewCases: minNewCases,
		client:      newClient(timeout),
		logger:      logger,
	}
}

func (c *HealthConnector) Name() string { return "health" }

type countryStats struct {
	Country     string `json:"country"`
	CountryInfo struct {
		ISO2 string `json:"iso2"`
	} `json:"countryInfo"`
	Updated    int64 `json:"updated"` // ms
	TodayCases int64 `json:"todayCases"`
	Cases      int64 `json:"cases"`
	Population int64 `json:"population"`
}

func (c *HealthConnector) Fetch(ctx context.Context) ([]*models.CandidateSignal, error) {
	var stats []countryStats
	err := c.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.url,
	}, &stats)
	if err != nil {
		c.logger.Warn("health fetch failed", xlogger.Error(err))
		return nil, fmt.Errorf("health fetch: %w", err)
	}

	var out []*models.CandidateSignal
	for _, s := range stats {
		if s.TodayCases < c.minNewCases {
			continue
		}
		out = append(out, c.mapCountry(s))
	}
	return out, nil
}

// mapCountry scores a surge. Outbreak surges are bearish for travel and
// leisure; confidence grows with the log of how far the count overshoots
// the threshold.
func (c *HealthConnector) mapCountry(s countryStats) *models.CandidateSignal {
	ratio := float64(s.TodayCases) / float64(c.minNewCases)
	confidence := clamp(0.40, 0.85, 0.45+0.15*math.Log10(ratio))
	strength := clamp(0, 1, (ratio-1)/9) // saturates at 10x threshold

	// Provider timestamps are ms; dedup keys on the reporting day.
	detectedAt := time.UnixMilli(s.Updated).UTC().Truncate(24 * time.Hour)
	title := fmt.Sprintf("Outbreak surge: %s reports %d new cases", s.Country, s.TodayCases)
	rationale := fmt.Sprintf(
		"%s reported %d new cases in one day, %.1fx the %d materiality threshold. Sustained outbreak surges are bearish for travel and leisure exposure.",
		s.Country, s.TodayCases, ratio, c.minNewCases)

	raw, _ := json.Marshal(s)
	return &models.CandidateSignal{
		Category:     models.CategoryHealth,
		Source:       "disease.sh",
		SourceURL:    c.url,
		TargetSymbol: "JETS",
		TargetSector: "travel and leisure",
		Direction:    models.DirectionBearish,
		Strength:     strength,
		Confidence:   confidence,
		Title:        title,
		Summary:      fmt.Sprintf("%s: %d new cases", s.Country, s.TodayCases),
		Rationale:    rationale,
		RawPayload:   raw,
		DetectedAt:   detectedAt,
		ExpiresAt:    detectedAt.Add(7 * 24 * time.Hour),
	}
}

var _ drepo.Connector = (*HealthConnector)(nil)
