package suitability_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cropadvisor/cropadvisor/internal/crop"
	"github.com/cropadvisor/cropadvisor/internal/environment"
	"github.com/cropadvisor/cropadvisor/internal/suitability"
)

func rice() crop.Profile {
	return crop.Profile{
		Name:             "Rice",
		TemperatureRange: &crop.Range{Min: 20, Max: 35},
		PHRange:          &crop.Range{Min: 5.5, Max: 7.5},
		RainfallRange:    &crop.Range{Min: 1000, Max: 2000},
		WaterRequirement: crop.LevelHigh,
		MarketDemand:     crop.LevelHigh,
	}
}

func features() environment.FeatureVector {
	return environment.FeatureVector{
		Temperature: 28,
		PH:          6.5,
		Rainfall:    1500,
		HealthScore: 80,
	}
}

func TestWeightsSumToMax(t *testing.T) {
	sum := suitability.WeightTemperature + suitability.WeightPH + suitability.WeightRainfall +
		suitability.WeightIrrigation + suitability.WeightSoilHealth + suitability.WeightMarket
	assert.Equal(t, suitability.MaxScore, sum)
}

func TestScore_AllCriteriaFit(t *testing.T) {
	got := suitability.Score(features(), rice(), suitability.IrrigationDrip, 1.0)

	// 25 + 20 + 20 + 15*0.9*0.8 + 8 + 7
	assert.InDelta(t, 90.8, got, 1e-9)
}

func TestExplain_OutOfRangePenalties(t *testing.T) {
	f := features()
	f.Temperature = 38 // 3 above max -> 25 - 6
	f.PH = 8.0         // 0.5 above max -> 20 - 5
	f.Rainfall = 700   // 300 below min -> 20 - 3

	b := suitability.Explain(f, rice(), suitability.IrrigationDrip, 1.0)

	assert.InDelta(t, 19.0, b.Temperature, 1e-9)
	assert.InDelta(t, 15.0, b.PH, 1e-9)
	assert.InDelta(t, 17.0, b.Rainfall, 1e-9)
}

func TestExplain_PenaltiesFloorAtZero(t *testing.T) {
	f := features()
	f.Temperature = 0
	f.PH = 1
	f.Rainfall = 10000

	b := suitability.Explain(f, rice(), suitability.IrrigationDrip, 1.0)

	assert.Equal(t, 0.0, b.Temperature)
	assert.Equal(t, 0.0, b.PH)
	assert.Equal(t, 0.0, b.Rainfall)
}

func TestExplain_UndeclaredRangesGetPartialCredit(t *testing.T) {
	profile := crop.Profile{Name: "Mystery"}

	b := suitability.Explain(features(), profile, suitability.IrrigationDrip, 1.0)

	assert.Equal(t, suitability.WeightTemperature/2, b.Temperature)
	assert.Equal(t, suitability.WeightPH/2, b.PH)
	assert.Equal(t, suitability.WeightRainfall/2, b.Rainfall)
	// unknown water requirement uses 0.6
	assert.InDelta(t, 15*0.9*0.6, b.Irrigation, 1e-9)
	assert.Equal(t, 0.0, b.Market)
}

func TestIrrigationEfficiency(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"drip", 0.9},
		{"Sprinkler", 0.8},
		{"canal", 0.7},
		{"TUBEWELL", 0.7},
		{"rainfed", 0.4},
		{"flood", 0.6},
		{"", 0.6},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, suitability.ParseIrrigation(tt.in).Efficiency())
		})
	}
}

func TestMarketDemandBonus(t *testing.T) {
	assert.Equal(t, 10.0, suitability.MarketDemandBonus(crop.LevelVeryHigh))
	assert.Equal(t, 7.0, suitability.MarketDemandBonus(crop.LevelHigh))
	assert.Equal(t, 5.0, suitability.MarketDemandBonus(crop.LevelMedium))
	assert.Equal(t, 0.0, suitability.MarketDemandBonus(crop.LevelLow))
	assert.Equal(t, 0.0, suitability.MarketDemandBonus(crop.LevelUnknown))
}

func TestScore_RainfedNeverGetsFullIrrigationCredit(t *testing.T) {
	levels := []crop.Level{crop.LevelLow, crop.LevelMedium, crop.LevelHigh, crop.LevelVeryHigh, crop.LevelUnknown}

	for _, level := range levels {
		profile := rice()
		profile.WaterRequirement = level

		b := suitability.Explain(features(), profile, suitability.IrrigationRainfed, 1.0)

		assert.LessOrEqual(t, b.Irrigation, 15*0.4*suitability.WaterRequirementScore(level)+1e-9)
		assert.Less(t, b.Irrigation, suitability.WeightIrrigation)
	}
}

func TestScore_AlwaysWithinBounds(t *testing.T) {
	profiles := []crop.Profile{
		rice(),
		{Name: "Empty"},
		{
			Name:             "Extreme",
			TemperatureRange: &crop.Range{Min: -50, Max: 60},
			PHRange:          &crop.Range{Min: 0, Max: 14},
			RainfallRange:    &crop.Range{Min: 0, Max: 10000},
			WaterRequirement: crop.LevelVeryHigh,
			MarketDemand:     crop.LevelVeryHigh,
		},
	}
	irrigations := []suitability.Irrigation{"drip", "sprinkler", "canal", "rainfed", "unknown"}

	for lat := 5.0; lat <= 35; lat += 5 {
		for lon := 70.0; lon <= 90; lon += 5 {
			f := environment.Estimate(lat, lon)
			for _, p := range profiles {
				for _, irr := range irrigations {
					s := suitability.Score(f, p, irr, 2.5)
					assert.GreaterOrEqual(t, s, 0.0)
					assert.LessOrEqual(t, s, 100.0)
				}
			}
		}
	}

	// Out-of-band inputs still clamp.
	f := features()
	f.HealthScore = 500
	assert.LessOrEqual(t, suitability.Score(f, profiles[2], suitability.IrrigationDrip, 1), 100.0)
	f.HealthScore = math.NaN()
	s := suitability.Score(f, profiles[2], suitability.IrrigationDrip, 1)
	assert.False(t, math.IsNaN(s))
}

func TestScore_FarmSizeDoesNotChangeScore(t *testing.T) {
	small := suitability.Score(features(), rice(), suitability.IrrigationCanal, 0.5)
	large := suitability.Score(features(), rice(), suitability.IrrigationCanal, 250)
	assert.Equal(t, small, large)
}

func TestBreakdown_Weak(t *testing.T) {
	b := suitability.Breakdown{
		Temperature: 25,
		PH:          5,
		Rainfall:    20,
		Irrigation:  3,
		SoilHealth:  8,
		Market:      0,
	}
	assert.Equal(t, []string{"ph", "irrigation", "market"}, b.Weak())
}
