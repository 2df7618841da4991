package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"SigPulse/internal/domain/models"
	drepo "SigPulse/internal/domain/repository"
	xhttp "SigPulse/pkg/http"
	xlogger "SigPulse/pkg/logger"
)

const DefaultNewsURL = "https://api.gdeltproject.org/api/v2/doc/doc"

// DefaultMinArticles is the materiality threshold per topic per day.
const DefaultMinArticles = 100

// NewsTopic pairs a GDELT query with the category its signals belong to.
// Topics are configured as "category:query" strings.
type NewsTopic struct {
	Category models.Category
	Query    string
}

// ParseNewsTopics parses "category:query" entries, skipping malformed ones.
func ParseNewsTopics(raw []string) []NewsTopic {
	var topics []NewsTopic
	for _, s := range raw {
		cat, query, ok := strings.Cut(s, ":")
		if !ok {
			continue
		}
		c := drepo.NormalizeCategory(strings.TrimSpace(cat))
		query = strings.TrimSpace(query)
		if c == "" || query == "" {
			continue
		}
		topics = append(topics, NewsTopic{Category: c, Query: query})
	}
	return topics
}

// NewsConnector aggregates GDELT document tone per tracked topic. The score
// is a deterministic function of article volume and mean tone; one candidate
// per topic per UTC day, keyed on the query and the date.
type NewsConnector struct {
	url         string
	topics      []NewsTopic
	minArticles int
	client      *xhttp.Client
	logger      *xlogger.Logger
	now         func() time.Time
}

func NewNewsConnector(url string, topics []NewsTopic, minArticles int, timeout time.Duration, logger *xlogger.Logger) *NewsConnector {
	if url == "" {
		url = DefaultNewsURL
	}
	if minArticles <= 0 {
		minArticles = DefaultMinArticles
	}
	return &NewsConnector{
		url:         url,
		topics:      topics,
		minArticles: minArticles,
		client:      newClient(timeout),
		logger:      logger,
		now:         time.Now,
	}
}

func (c *NewsConnector) Name() string { return "news" }

type toneBin struct {
	Bin   float64 `json:"bin"`
	Count int     `json:"count"`
}

type toneChart struct {
	ToneChart []toneBin `json:"tonechart"`
}

func (c *NewsConnector) Fetch(ctx context.Context) ([]*models.CandidateSignal, error) {
	var out []*models.CandidateSignal
	var firstErr error
	for _, topic := range c.topics {
		var chart toneChart
		err := c.client.SendAndParse(ctx, &xhttp.RequestOptions{
			Method: xhttp.MethodGet,
			URL:    c.url,
			QueryParams: map[string][]string{
				"query":     {topic.Query},
				"mode":      {"tonechart"},
				"format":    {"json"},
				"timespan":  {"24h"},
				"maxrecords": {"250"},
			},
		}, &chart)
		if err != nil {
			c.logger.Warn("news fetch failed", xlogger.String("query", topic.Query), xlogger.Error(err))
			if firstErr == nil {
				firstErr = fmt.Errorf("news fetch %q: %w", topic.Query, err)
			}
			continue
		}
		if cand := c.scoreTopic(topic, chart.ToneChart); cand != nil {
			out = append(out, cand)
		}
	}
	if len(out) == 0 && firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

// scoreTopic collapses a tone histogram into one candidate. Nil means the
// topic is sub-threshold today: too few articles, or tone too close to
// neutral to carry a direction.
func (c *NewsConnector) scoreTopic(topic NewsTopic, bins []toneBin) *models.CandidateSignal {
	total := 0
	weighted := 0.0
	for _, b := range bins {
		total += b.Count
		weighted += b.Bin * float64(b.Count)
	}
	if total < c.minArticles {
		return nil
	}
	meanTone := weighted / float64(total)

	var direction models.Direction
	switch {
	case meanTone <= -2:
		direction = models.DirectionBearish
	case meanTone >= 2:
		direction = models.DirectionBullish
	default:
		return nil
	}

	confidence := clamp(0.40, 0.85, 0.40+math.Abs(meanTone)/20+math.Min(float64(total), 500)/2500)
	strength := clamp(0, 1, math.Abs(meanTone)/10)

	day := c.now().UTC().Truncate(24 * time.Hour)
	title := fmt.Sprintf("News tone %s: %s (%s)", direction, topic.Query, day.Format("2006-01-02"))
	rationale := fmt.Sprintf(
		"GDELT coverage of %q over the last 24h: %d articles with mean tone %.2f (threshold |2.0|, volume floor %d). Tone of this magnitude and breadth reads %s.",
		topic.Query, total, meanTone, c.minArticles, direction)

	raw, _ := json.Marshal(bins)
	return &models.CandidateSignal{
		Category:   topic.Category,
		Source:     "gdelt",
		SourceURL:  c.url,
		Direction:  direction,
		Strength:   strength,
		Confidence: confidence,
		Title:      title,
		Summary:    fmt.Sprintf("%d articles, mean tone %.2f", total, meanTone),
		Rationale:  rationale,
		RawPayload: raw,
		DetectedAt: day,
		ExpiresAt:  day.Add(48 * time.Hour),
	}
}

var _ drepo.Connector = (*NewsConnector)(nil)
