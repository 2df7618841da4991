package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"SigPulse/internal/domain/models"
	drepo "SigPulse/internal/domain/repository"
	xhttp "SigPulse/pkg/http"
	xlogger "SigPulse/pkg/logger"
)

const DefaultSolarURL = "https://services.swpc.noaa.gov/json/planetary_k_index_1m.json"

// DefaultMinKp: Kp 6 is a moderate (G2) geomagnetic storm; anything below
// is routine space weather.
const DefaultMinKp = 6.0

// SolarConnector pulls the NOAA SWPC planetary K-index feed.
type SolarConnector struct {
	url    string
	minKp  float64
	client *xhttp.Client
	logger *xlogger.Logger
}

func NewSolarConnector(url string, minKp float64, timeout time.Duration, logger *xlogger.Logger) *SolarConnector {
	if url == "" {
		url = DefaultSolarURL
	}
	if minKp <= 0 {
		minKp = DefaultMinKp
	}
	return &SolarConnector{
		url:    url,
		minKp:  minKp,
		client: newClient(timeout),
		logger: logger,
	}
}

func (c *SolarConnector) Name() string { return "solar" }

type kpReading struct {
	TimeTag string  `json:"time_tag"`
	KpIndex float64 `json:"kp_index"`
}

func (c *SolarConnector) Fetch(ctx context.Context) ([]*models.CandidateSignal, error) {
	var readings []kpReading
	err := c.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.url,
	}, &readings)
	if err != nil {
		c.logger.Warn("solar fetch failed", xlogger.Error(err))
		return nil, fmt.Errorf("solar fetch: %w", err)
	}

	// One candidate per storm hour, not per one-minute sample: keep the
	// peak reading within each hour that crosses the threshold.
	peaks := make(map[string]kpReading)
	for _, r := range readings {
		if r.KpIndex < c.minKp {
			continue
		}
		t, err := time.Parse("2006-01-02T15:04:05", r.TimeTag)
		if err != nil {
			continue
		}
		hour := t.UTC().Truncate(time.Hour).Format(time.RFC3339)
		if prev, ok := peaks[hour]; !ok || r.KpIndex > prev.KpIndex {
			peaks[hour] = r
		}
	}

	var out []*models.CandidateSignal
	for hour, r := range peaks {
		detectedAt, _ := time.Parse(time.RFC3339, hour)
		out = append(out, c.mapReading(r, detectedAt))
	}
	return out, nil
}

// mapReading scores a geomagnetic storm. Storms degrade satellite and HF
// communications, so the hypothesis is bearish for that sector.
func (c *SolarConnector) mapReading(r kpReading, detectedAt time.Time) *models.CandidateSignal {
	confidence := clamp(0.40, 0.90, 0.40+0.08*(r.KpIndex-5))
	strength := clamp(0, 1, (r.KpIndex-5)/4)

	title := fmt.Sprintf("Geomagnetic storm: Kp %.2f at %s", r.KpIndex, detectedAt.Format("2006-01-02 15:00 MST"))
	rationale := fmt.Sprintf(
		"Planetary K-index peaked at %.2f (threshold %.1f) during the hour starting %s. Storms at this level disrupt satellite operations and HF radio, bearish for satellite communications exposure.",
		r.KpIndex, c.minKp, detectedAt.Format(time.RFC3339))

	raw, _ := json.Marshal(r)
	return &models.CandidateSignal{
		Category:     models.CategorySolar,
		Source:       "noaa-swpc",
		SourceURL:    c.url,
		TargetSymbol: "ARKX",
		TargetSector: "satellite communications",
		Direction:    models.DirectionBearish,
		Strength:     strength,
		Confidence:   confidence,
		Title:        title,
		Summary:      fmt.Sprintf("Kp %.2f geomagnetic storm", r.KpIndex),
		Rationale:    rationale,
		RawPayload:   raw,
		DetectedAt:   detectedAt,
		ExpiresAt:    detectedAt.Add(48 * time.Hour),
	}
}

var _ drepo.Connector = (*SolarConnector)(nil)
