// Package recommendation composes ranked crop recommendations from estimated conditions.
package recommendation

import (
	"errors"
	"time"

	"github.com/cropadvisor/cropadvisor/internal/crop"
	"github.com/cropadvisor/cropadvisor/internal/environment"
	"github.com/cropadvisor/cropadvisor/internal/suitability"
)

// TopN is the number of ranked candidates kept on a record.
const TopN = 5

// SourceOfflineCache marks records produced by the offline engine.
const SourceOfflineCache = "offline_cache"

// Composition errors.
var (
	// ErrEmptyCatalog is returned when composition is attempted against an empty catalog.
	ErrEmptyCatalog = crop.ErrEmptyCatalog

	// ErrInvalidFarmSize is returned for non-positive or non-finite farm sizes.
	ErrInvalidFarmSize = errors.New("farm size must be a positive number")
)

// Location identifies where the recommendation was generated for.
type Location struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// Request carries the caller's inputs for one composition.
type Request struct {
	Location       Location
	FarmSize       float64
	IrrigationType string
	// SoilData holds caller-measured values keyed by feature name. Values that cannot be
	// read as finite numbers are skipped.
	SoilData map[string]any
	Language string
}

// Candidate is one scored crop.
type Candidate struct {
	Crop       string       `json:"crop"`
	Score      float64      `json:"score"`
	Confidence float64      `json:"confidence"`
	Profile    crop.Profile `json:"profile"`
}

// Record is the persisted recommendation.
type Record struct {
	ID              string                    `json:"id"`
	Location        Location                  `json:"location"`
	FarmSize        float64                   `json:"farm_size"`
	IrrigationType  string                    `json:"irrigation_type"`
	Language        string                    `json:"language"`
	Features        environment.FeatureVector `json:"environmental_data"`
	OverlaidFields  []string                  `json:"overlaid_fields,omitempty"`
	Candidates      []Candidate               `json:"recommendations"`
	Analysis        Analysis                  `json:"analysis"`
	Insights        Insights                  `json:"insights"`
	PreparationTips []string                  `json:"preparation_tips"`
	GeneratedAt     time.Time                 `json:"timestamp"`
	Source          string                    `json:"source"`
	Synced          bool                      `json:"synced"`
	SyncedAt        *time.Time                `json:"synced_at,omitempty"`
}

// Primary returns the top-ranked candidate.
func (r *Record) Primary() (Candidate, bool) {
	if r == nil || len(r.Candidates) == 0 {
		return Candidate{}, false
	}
	return r.Candidates[0], true
}

// MarkSynced flips the record to synced. Already-synced records keep their timestamp.
// Reports whether the record changed.
func (r *Record) MarkSynced(at time.Time) bool {
	if r.Synced {
		return false
	}
	ts := at
	r.Synced = true
	r.SyncedAt = &ts
	return true
}

// Analysis is the advisory block built around the primary recommendation.
type Analysis struct {
	Suitability    SuitabilitySummary    `json:"suitability"`
	Environmental  EnvironmentalSummary  `json:"environmental"`
	Economic       EconomicSummary       `json:"economic"`
	Sustainability SustainabilitySummary `json:"sustainability"`
}

// SuitabilitySummary describes the primary crop's fit.
type SuitabilitySummary struct {
	Score      float64               `json:"score"`
	Confidence float64               `json:"confidence"`
	Rating     Rating                `json:"rating"`
	Breakdown  suitability.Breakdown `json:"breakdown"`
}

// EnvironmentalSummary restates the conditions the ranking was computed from.
type EnvironmentalSummary struct {
	Temperature float64 `json:"temperature"`
	Rainfall    float64 `json:"rainfall"`
	PH          float64 `json:"ph"`
	SoilHealth  float64 `json:"soil_health"`
	Summary     string  `json:"summary"`
}

// EconomicSummary is copied from the primary crop's profile.
type EconomicSummary struct {
	YieldPotential string     `json:"yield_potential"`
	ProfitMargin   string     `json:"profit_margin"`
	InputCost      string     `json:"input_cost"`
	MarketDemand   crop.Level `json:"market_demand"`
	GrowthDuration string     `json:"growth_duration"`
}

// SustainabilitySummary reports the primary crop's sustainability profile.
type SustainabilitySummary struct {
	Score            float64    `json:"score"`
	WaterRequirement crop.Level `json:"water_requirement"`
	Summary          string     `json:"summary"`
}

// Insights are short advisory notes for the farmer.
type Insights struct {
	PrimaryReason  string   `json:"primary_reason"`
	Alternatives   []string `json:"alternatives,omitempty"`
	SeasonalAdvice string   `json:"seasonal_advice,omitempty"`
	RiskFactors    []string `json:"risk_factors,omitempty"`
}

// Rating is a qualitative band for a suitability score.
type Rating string

const (
	RatingExcellent Rating = "Excellent"
	RatingGood      Rating = "Good"
	RatingModerate  Rating = "Moderate"
	RatingPoor      Rating = "Poor"
)

// RatingFor bands a 0-100 score.
func RatingFor(score float64) Rating {
	switch {
	case score >= 80:
		return RatingExcellent
	case score >= 60:
		return RatingGood
	case score >= 40:
		return RatingModerate
	default:
		return RatingPoor
	}
}
