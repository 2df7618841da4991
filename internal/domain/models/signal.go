package models

import (
	"encoding/json"
	"time"
)

// Category classifies the originating domain of a signal.
type Category string

const (
	CategorySeismic      Category = "seismic"
	CategoryHealth       Category = "health"
	CategorySentiment    Category = "sentiment"
	CategorySolar        Category = "solar"
	CategoryForex        Category = "forex"
	CategoryCrypto       Category = "crypto"
	CategoryGeopolitical Category = "geopolitical"
)

// Direction is the market hypothesis a signal carries.
type Direction string

const (
	DirectionBullish Direction = "bullish"
	DirectionBearish Direction = "bearish"
	DirectionNeutral Direction = "neutral"
)

// Outcome records whether a signal's hypothesis played out.
type Outcome string

const (
	OutcomePending   Outcome = "pending"
	OutcomeCorrect   Outcome = "correct"
	OutcomeIncorrect Outcome = "incorrect"
)

// CandidateSignal is a connector's normalized view of one external event,
// before persistence assigns an ID. Rationale is a deterministic function
// of the source event.
type CandidateSignal struct {
	Category     Category        `json:"category"`
	Source       string          `json:"source"`
	SourceURL    string          `json:"source_url,omitempty"`
	TargetSymbol string          `json:"target_symbol,omitempty"`
	TargetSector string          `json:"target_sector,omitempty"`
	Direction    Direction       `json:"direction"`
	Strength     float64         `json:"strength"`
	Confidence   float64         `json:"confidence"`
	Title        string          `json:"title"`
	Summary      string          `json:"summary,omitempty"`
	Rationale    string          `json:"rationale"`
	RawPayload   json.RawMessage `json:"raw_payload,omitempty"`
	DetectedAt   time.Time       `json:"detected_at"`
	ExpiresAt    time.Time       `json:"expires_at,omitempty"`
}

// Signal is a persisted candidate. Immutable once stored except for the
// one-shot outcome fields.
type Signal struct {
	ID           string          `json:"id"`
	Category     Category        `json:"category"`
	Source       string          `json:"source"`
	SourceURL    string          `json:"source_url,omitempty"`
	TargetSymbol string          `json:"target_symbol,omitempty"`
	TargetSector string          `json:"target_sector,omitempty"`
	Direction    Direction       `json:"direction"`
	Strength     float64         `json:"strength"`
	Confidence   float64         `json:"confidence"`
	Title        string          `json:"title"`
	Summary      string          `json:"summary,omitempty"`
	Rationale    string          `json:"rationale"`
	RawPayload   json.RawMessage `json:"raw_payload,omitempty"`
	DetectedAt   time.Time       `json:"detected_at"`
	ExpiresAt    time.Time       `json:"expires_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	Outcome      Outcome         `json:"outcome"`
	ActualReturn *float64        `json:"actual_return,omitempty"`
}

// DedupKey is the (title, detectedAt) pair identifying one real-world event
// regardless of how many times it is fetched.
func (c *CandidateSignal) DedupKey() string {
	return c.Title + "|" + c.DetectedAt.UTC().Format(time.RFC3339)
}

func (s *Signal) DedupKey() string {
	return s.Title + "|" + s.DetectedAt.UTC().Format(time.RFC3339)
}

// SignalFilter narrows a store query. All set fields combine with AND.
type SignalFilter struct {
	Category      Category
	Direction     Direction
	MinConfidence float64
	Symbol        string
	Since         time.Time
	Until         time.Time
	Limit         int
	Offset        int
}

// SignalStats aggregates stored signals for the stats endpoint.
type SignalStats struct {
	Total       int64            `json:"total"`
	ByCategory  map[string]int64 `json:"by_category"`
	ByDirection map[string]int64 `json:"by_direction"`
	Evaluated   int64            `json:"evaluated"`
	Pending     int64            `json:"pending"`
	Correct     int64            `json:"correct"`
	Incorrect   int64            `json:"incorrect"`
}
