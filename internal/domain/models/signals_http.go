package models

// Requests for the signal HTTP endpoints. Defined in domain for consistency and reuse.

type SignalsRequest struct {
	Type          string  `query:"type" json:"type" validate:"omitempty,oneof=seismic health sentiment solar forex crypto geopolitical"`
	Direction     string  `query:"direction" json:"direction" validate:"omitempty,oneof=bullish bearish neutral"`
	MinConfidence float64 `query:"min_confidence" json:"min_confidence" validate:"gte=0,lte=1"`
	Ticker        string  `query:"ticker" json:"ticker" validate:"omitempty,max=16"`
	Since         string  `query:"since" json:"since"`
	Until         string  `query:"until" json:"until"`
	Limit         int     `query:"limit" json:"limit" default:"50" validate:"gte=1,lte=100"`
	Offset        int     `query:"offset" json:"offset" validate:"gte=0"`
}

type IngestRequest struct {
	Category     string  `json:"category" validate:"required,oneof=seismic health sentiment solar forex crypto geopolitical"`
	Source       string  `json:"source" validate:"required"`
	SourceURL    string  `json:"source_url"`
	TargetSymbol string  `json:"target_symbol"`
	TargetSector string  `json:"target_sector"`
	Direction    string  `json:"direction" validate:"required,oneof=bullish bearish neutral"`
	Strength     float64 `json:"strength" validate:"gte=0,lte=1"`
	Confidence   float64 `json:"confidence" validate:"gte=0,lte=1"`
	Title        string  `json:"title" validate:"required"`
	Summary      string  `json:"summary"`
	Rationale    string  `json:"rationale" validate:"required"`
	DetectedAt   string  `json:"detected_at" validate:"required"`
	ExpiresAt    string  `json:"expires_at"`
}

type OutcomeRequest struct {
	Outcome      string   `json:"outcome" validate:"required,oneof=correct incorrect"`
	ActualReturn *float64 `json:"actual_return"`
}
