package models

import "math"

// CategoryAccuracy is the Beta-Binomial posterior over one category's true
// hit-rate, starting from the uniform prior (1,1). Alpha and Beta only ever
// grow, one increment per recorded outcome.
type CategoryAccuracy struct {
	Category         Category `json:"category"`
	Alpha            float64  `json:"alpha"`
	Beta             float64  `json:"beta"`
	TotalSignals     int64    `json:"total_signals"`
	CorrectSignals   int64    `json:"correct_signals"`
	IncorrectSignals int64    `json:"incorrect_signals"`
	PosteriorMean    float64  `json:"posterior_mean"`
	ConfidenceLower  float64  `json:"confidence_lower"`
	ConfidenceUpper  float64  `json:"confidence_upper"`
}

// NewCategoryAccuracy returns the uniform prior for a category.
func NewCategoryAccuracy(cat Category) *CategoryAccuracy {
	a := &CategoryAccuracy{Category: cat, Alpha: 1, Beta: 1}
	a.Recompute()
	return a
}

// Recompute derives the posterior mean and the 95% interval from the normal
// approximation to the Beta variance, clamped to [0,1]. The interval always
// contains the mean and narrows as observations accumulate.
func (a *CategoryAccuracy) Recompute() {
	n := a.Alpha + a.Beta
	a.PosteriorMean = a.Alpha / n
	variance := (a.Alpha * a.Beta) / (n * n * (n + 1))
	half := 1.96 * math.Sqrt(variance)
	a.ConfidenceLower = math.Max(0, a.PosteriorMean-half)
	a.ConfidenceUpper = math.Min(1, a.PosteriorMean+half)
}
