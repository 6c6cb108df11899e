package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// DreamCategory classifies a planned modification.
type DreamCategory string

const (
	DreamWheels       DreamCategory = "WHEELS"
	DreamTires        DreamCategory = "TIRES"
	DreamSpoiler      DreamCategory = "SPOILER"
	DreamWrapPaint    DreamCategory = "WRAP_PAINT"
	DreamExteriorTrim DreamCategory = "EXTERIOR_TRIM"
	DreamInteriorTrim DreamCategory = "INTERIOR_TRIM"
	DreamLights       DreamCategory = "LIGHTS"
	DreamSuspension   DreamCategory = "SUSPENSION"
	DreamPerformance  DreamCategory = "PERFORMANCE"
	DreamAudioSystem  DreamCategory = "AUDIO_SYSTEM"
	DreamOther        DreamCategory = "OTHER"
)

// DreamCategories lists every wishlist category in display order.
var DreamCategories = []DreamCategory{
	DreamWheels, DreamTires, DreamSpoiler, DreamWrapPaint, DreamExteriorTrim,
	DreamInteriorTrim, DreamLights, DreamSuspension, DreamPerformance, DreamAudioSystem, DreamOther,
}

// ParseDreamCategory matches s against the category names, ignoring case.
func ParseDreamCategory(s string) (DreamCategory, error) {
	for _, c := range DreamCategories {
		if strings.EqualFold(string(c), s) {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown dream category %q", s)
}

// DreamItem is a planned modification on the vehicle's wishlist.
type DreamItem struct {
	Category      DreamCategory   `json:"category"`
	Description   string          `json:"description"`
	EstimatedCost decimal.Decimal `json:"estimated_cost"`
	Currency      string          `json:"currency"`
	PlannedDate   Date            `json:"planned_date"`
	Done          bool            `json:"done"`
}
