// Package suitability scores how well a crop fits a set of environmental conditions.
package suitability

import (
	"math"
	"strings"

	"github.com/cropadvisor/cropadvisor/internal/crop"
	"github.com/cropadvisor/cropadvisor/internal/environment"
)

// Criterion weights. They sum to MaxScore.
const (
	WeightTemperature = 25.0
	WeightPH          = 20.0
	WeightRainfall    = 20.0
	WeightIrrigation  = 15.0
	WeightSoilHealth  = 10.0
	WeightMarket      = 10.0

	MaxScore = 100.0
)

// Penalty slopes applied per unit of distance outside a declared range.
const (
	temperaturePenaltyPerDegree = 2.0
	phPenaltyPerUnit            = 10.0
	rainfallMillimetresPerPoint = 100.0
)

// undeclaredShare is the fraction of a range criterion's weight awarded when the
// crop declares no range for it.
const undeclaredShare = 0.5

// Irrigation is the farm's irrigation method.
type Irrigation string

const (
	IrrigationDrip      Irrigation = "drip"
	IrrigationSprinkler Irrigation = "sprinkler"
	IrrigationCanal     Irrigation = "canal"
	IrrigationTubewell  Irrigation = "tubewell"
	IrrigationRainfed   Irrigation = "rainfed"
)

// ParseIrrigation normalises free-form irrigation input. Unrecognised values are
// returned lower-cased and score with the unknown efficiency.
func ParseIrrigation(s string) Irrigation {
	return Irrigation(strings.ToLower(strings.TrimSpace(s)))
}

// Efficiency returns the water delivery efficiency of the irrigation method.
func (i Irrigation) Efficiency() float64 {
	switch i {
	case IrrigationDrip:
		return 0.9
	case IrrigationSprinkler:
		return 0.8
	case IrrigationCanal, IrrigationTubewell:
		return 0.7
	case IrrigationRainfed:
		return 0.4
	default:
		return 0.6
	}
}

// WaterRequirementScore maps a crop's water requirement to the irrigation multiplier.
func WaterRequirementScore(l crop.Level) float64 {
	switch l {
	case crop.LevelVeryHigh:
		return 1.0
	case crop.LevelHigh:
		return 0.8
	case crop.LevelMedium:
		return 0.6
	case crop.LevelLow:
		return 0.4
	default:
		return 0.6
	}
}

// MarketDemandBonus returns the market criterion points for a demand level.
func MarketDemandBonus(l crop.Level) float64 {
	switch l {
	case crop.LevelVeryHigh:
		return 10
	case crop.LevelHigh:
		return 7
	case crop.LevelMedium:
		return 5
	default:
		return 0
	}
}

// Breakdown holds the points earned on each criterion.
type Breakdown struct {
	Temperature float64 `json:"temperature"`
	PH          float64 `json:"ph"`
	Rainfall    float64 `json:"rainfall"`
	Irrigation  float64 `json:"irrigation"`
	SoilHealth  float64 `json:"soil_health"`
	Market      float64 `json:"market"`
}

// Total sums the criteria and clamps the result to [0, MaxScore].
func (b Breakdown) Total() float64 {
	sum := b.Temperature + b.PH + b.Rainfall + b.Irrigation + b.SoilHealth + b.Market
	if math.IsNaN(sum) {
		return 0
	}
	return math.Max(0, math.Min(MaxScore, sum))
}

// Weak returns the criteria that earned less than half of their weight.
func (b Breakdown) Weak() []string {
	var weak []string
	check := func(name string, got, weight float64) {
		if got < weight/2 {
			weak = append(weak, name)
		}
	}
	check("temperature", b.Temperature, WeightTemperature)
	check("ph", b.PH, WeightPH)
	check("rainfall", b.Rainfall, WeightRainfall)
	check("irrigation", b.Irrigation, WeightIrrigation)
	check("soil_health", b.SoilHealth, WeightSoilHealth)
	check("market", b.Market, WeightMarket)
	return weak
}

// Score returns the 0-100 suitability of a crop for the given conditions.
// It never fails: undeclared or unknown profile attributes fall back to neutral defaults.
// farmSize is accepted for interface stability and does not change the score.
func Score(features environment.FeatureVector, profile crop.Profile, irrigation Irrigation, farmSize float64) float64 {
	return Explain(features, profile, irrigation, farmSize).Total()
}

// Explain returns the per-criterion points behind Score.
func Explain(features environment.FeatureVector, profile crop.Profile, irrigation Irrigation, _ float64) Breakdown {
	return Breakdown{
		Temperature: rangeFit(features.Temperature, profile.TemperatureRange, WeightTemperature, func(d float64) float64 {
			return d * temperaturePenaltyPerDegree
		}),
		PH: rangeFit(features.PH, profile.PHRange, WeightPH, func(d float64) float64 {
			return d * phPenaltyPerUnit
		}),
		Rainfall: rangeFit(features.Rainfall, profile.RainfallRange, WeightRainfall, func(d float64) float64 {
			return d / rainfallMillimetresPerPoint
		}),
		Irrigation: WeightIrrigation * irrigation.Efficiency() * WaterRequirementScore(profile.WaterRequirement),
		SoilHealth: soilHealth(features.HealthScore),
		Market:     MarketDemandBonus(profile.MarketDemand),
	}
}

// rangeFit awards full weight inside the range and weight minus penalty(distance) outside it,
// floored at zero.
func rangeFit(value float64, r *crop.Range, weight float64, penalty func(float64) float64) float64 {
	if r == nil {
		return weight * undeclaredShare
	}
	d := r.Distance(value)
	if d == 0 {
		return weight
	}
	return math.Max(0, weight-penalty(d))
}

func soilHealth(health float64) float64 {
	h := math.Max(0, math.Min(100, health))
	return h / 100 * WeightSoilHealth
}
