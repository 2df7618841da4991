package repository

import "SigPulse/internal/domain/models"

// AllCategories lists every signal category in stable order.
var AllCategories = []models.Category{
	models.CategorySeismic,
	models.CategoryHealth,
	models.CategorySentiment,
	models.CategorySolar,
	models.CategoryForex,
	models.CategoryCrypto,
	models.CategoryGeopolitical,
}

// IsValidCategory returns true if cat is a supported category.
func IsValidCategory(cat models.Category) bool {
	for _, c := range AllCategories {
		if c == cat {
			return true
		}
	}
	return false
}

// NormalizeCategory converts a raw string to a valid category ("" when unknown).
func NormalizeCategory(s string) models.Category {
	cat := models.Category(s)
	if IsValidCategory(cat) {
		return cat
	}
	return ""
}

// NormalizeDirection converts a raw string to a valid direction ("" when unknown).
func NormalizeDirection(s string) models.Direction {
	switch d := models.Direction(s); d {
	case models.DirectionBullish, models.DirectionBearish, models.DirectionNeutral:
		return d
	}
	return ""
}
