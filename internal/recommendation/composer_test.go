package recommendation_test

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cropadvisor/cropadvisor/internal/crop"
	"github.com/cropadvisor/cropadvisor/internal/environment"
	"github.com/cropadvisor/cropadvisor/internal/recommendation"
	"github.com/cropadvisor/cropadvisor/internal/suitability"
)

var fixedNow = time.Date(2026, 6, 1, 9, 30, 0, 0, time.UTC)

func newComposer() *recommendation.Composer {
	return recommendation.NewComposer(recommendation.ComposerConfig{
		Logger: zerolog.Nop(),
		Now:    func() time.Time { return fixedNow },
		NewID:  func() string { return "rec_test" },
	})
}

func riceOnly() crop.Catalog {
	return crop.Catalog{
		"Rice": {
			Name:                "Rice",
			TemperatureRange:    &crop.Range{Min: 20, Max: 35},
			PHRange:             &crop.Range{Min: 5.5, Max: 7.5},
			RainfallRange:       &crop.Range{Min: 1000, Max: 2000},
			WaterRequirement:    crop.LevelHigh,
			MarketDemand:        crop.LevelHigh,
			SustainabilityScore: 6,
			Seasons:             []string{"Kharif"},
		},
	}
}

func sixCrops() crop.Catalog {
	c := riceOnly()
	c["Wheat"] = crop.Profile{
		TemperatureRange: &crop.Range{Min: 10, Max: 25},
		PHRange:          &crop.Range{Min: 6, Max: 7.5},
		RainfallRange:    &crop.Range{Min: 400, Max: 1100},
		WaterRequirement: crop.LevelMedium,
		MarketDemand:     crop.LevelVeryHigh,
	}
	c["Cotton"] = crop.Profile{
		TemperatureRange: &crop.Range{Min: 21, Max: 30},
		PHRange:          &crop.Range{Min: 5.8, Max: 8},
		RainfallRange:    &crop.Range{Min: 500, Max: 1000},
		WaterRequirement: crop.LevelMedium,
		MarketDemand:     crop.LevelHigh,
	}
	c["Maize"] = crop.Profile{
		TemperatureRange: &crop.Range{Min: 18, Max: 32},
		PHRange:          &crop.Range{Min: 5.5, Max: 7.5},
		RainfallRange:    &crop.Range{Min: 500, Max: 1200},
		WaterRequirement: crop.LevelMedium,
		MarketDemand:     crop.LevelHigh,
	}
	c["Millet"] = crop.Profile{
		TemperatureRange: &crop.Range{Min: 25, Max: 38},
		PHRange:          &crop.Range{Min: 5, Max: 8},
		RainfallRange:    &crop.Range{Min: 200, Max: 600},
		WaterRequirement: crop.LevelLow,
		MarketDemand:     crop.LevelMedium,
	}
	c["Sugarcane"] = crop.Profile{
		TemperatureRange: &crop.Range{Min: 20, Max: 38},
		PHRange:          &crop.Range{Min: 6, Max: 8},
		RainfallRange:    &crop.Range{Min: 1500, Max: 2500},
		WaterRequirement: crop.LevelVeryHigh,
		MarketDemand:     crop.LevelHigh,
	}
	return c
}

func request() recommendation.Request {
	return recommendation.Request{
		Location:       recommendation.Location{Name: "Delhi", Lat: 28.6, Lon: 77.2},
		FarmSize:       1.0,
		IrrigationType: "drip",
		Language:       "en",
	}
}

func TestCompose_RiceInCentralIndia(t *testing.T) {
	rec, err := newComposer().Compose(request(), riceOnly())
	require.NoError(t, err)

	primary, ok := rec.Primary()
	require.True(t, ok)
	assert.Equal(t, "Rice", primary.Crop)
	assert.GreaterOrEqual(t, primary.Score, 70.0)
	assert.InDelta(t, primary.Score/100, primary.Confidence, 0.01)

	assert.Equal(t, "rec_test", rec.ID)
	assert.Equal(t, fixedNow, rec.GeneratedAt)
	assert.Equal(t, recommendation.SourceOfflineCache, rec.Source)
	assert.False(t, rec.Synced)
	assert.Nil(t, rec.SyncedAt)
	assert.Equal(t, "drip", rec.IrrigationType)
	assert.Equal(t, environment.Estimate(28.6, 77.2), rec.Features)
}

func TestCompose_EmptyCatalog(t *testing.T) {
	_, err := newComposer().Compose(request(), crop.Catalog{})
	assert.ErrorIs(t, err, recommendation.ErrEmptyCatalog)

	_, err = newComposer().Compose(request(), nil)
	assert.ErrorIs(t, err, recommendation.ErrEmptyCatalog)
}

func TestCompose_InvalidInput(t *testing.T) {
	req := request()
	req.Location.Lat = 123
	_, err := newComposer().Compose(req, riceOnly())
	assert.ErrorIs(t, err, environment.ErrInvalidCoordinates)

	req = request()
	req.FarmSize = 0
	_, err = newComposer().Compose(req, riceOnly())
	assert.ErrorIs(t, err, recommendation.ErrInvalidFarmSize)

	req.FarmSize = math.NaN()
	_, err = newComposer().Compose(req, riceOnly())
	assert.ErrorIs(t, err, recommendation.ErrInvalidFarmSize)
}

func TestCompose_KeepsTopFiveSorted(t *testing.T) {
	rec, err := newComposer().Compose(request(), sixCrops())
	require.NoError(t, err)

	require.Len(t, rec.Candidates, recommendation.TopN)
	for i := 1; i < len(rec.Candidates); i++ {
		assert.GreaterOrEqual(t, rec.Candidates[i-1].Score, rec.Candidates[i].Score)
	}

	alternatives := make([]string, 0, recommendation.TopN-1)
	for _, c := range rec.Candidates[1:] {
		alternatives = append(alternatives, c.Crop)
	}
	assert.Equal(t, alternatives, rec.Insights.Alternatives)
}

func TestRank_RankingInvariantAcrossLocations(t *testing.T) {
	catalog := sixCrops()
	for lat := 8.0; lat <= 36; lat += 4 {
		for lon := 68.0; lon <= 96; lon += 4 {
			f := environment.Estimate(lat, lon)
			ranked := recommendation.Rank(f, catalog, suitability.IrrigationCanal, 2)
			require.Len(t, ranked, catalog.Len())
			for i := 1; i < len(ranked); i++ {
				assert.GreaterOrEqual(t, ranked[i-1].Score, ranked[i].Score)
			}
		}
	}
}

func TestRank_TiesKeepCatalogOrder(t *testing.T) {
	catalog := crop.Catalog{
		"Sorghum": {},
		"Barley":  {},
		"Lentil":  {},
	}

	ranked := recommendation.Rank(environment.Estimate(20, 80), catalog, suitability.IrrigationDrip, 1)

	require.Len(t, ranked, 3)
	assert.Equal(t, ranked[0].Score, ranked[2].Score)
	assert.Equal(t, []string{"Barley", "Lentil", "Sorghum"},
		[]string{ranked[0].Crop, ranked[1].Crop, ranked[2].Crop})
	assert.Equal(t, "Barley", ranked[0].Profile.Name)
}

func TestRank_NearEqualScoresKeepCatalogOrder(t *testing.T) {
	features := environment.FeatureVector{Rainfall: 1000, HealthScore: 80}
	catalog := crop.Catalog{
		// 0.3 mm short of the range costs 0.003 points, invisible once rounded.
		"Alpha": {RainfallRange: &crop.Range{Min: 1000.3, Max: 2000}},
		"Beta":  {RainfallRange: &crop.Range{Min: 1000, Max: 2000}},
	}

	ranked := recommendation.Rank(features, catalog, suitability.IrrigationDrip, 1)

	require.Len(t, ranked, 2)
	assert.Equal(t, ranked[0].Score, ranked[1].Score)
	assert.Equal(t, "Alpha", ranked[0].Crop)
	assert.Equal(t, "Beta", ranked[1].Crop)
	assert.Equal(t, ranked[0].Confidence, ranked[1].Confidence)
}

func TestCompose_AnalysisFromPrimary(t *testing.T) {
	catalog := riceOnly()
	rice := catalog["Rice"]
	rice.YieldPotential = "4-6 t/ha"
	rice.ProfitMargin = "Medium"
	rice.GrowthDuration = "120-150 days"
	catalog["Rice"] = rice

	rec, err := newComposer().Compose(request(), catalog)
	require.NoError(t, err)

	a := rec.Analysis
	assert.Equal(t, rec.Candidates[0].Score, a.Suitability.Score)
	assert.Equal(t, recommendation.RatingFor(a.Suitability.Score), a.Suitability.Rating)
	assert.InDelta(t, a.Suitability.Score, a.Suitability.Breakdown.Total(), 0.01)
	assert.Equal(t, rec.Features.Temperature, a.Environmental.Temperature)
	assert.Equal(t, rec.Features.HealthScore, a.Environmental.SoilHealth)
	assert.Equal(t, "4-6 t/ha", a.Economic.YieldPotential)
	assert.Equal(t, "120-150 days", a.Economic.GrowthDuration)
	assert.Equal(t, crop.LevelHigh, a.Economic.MarketDemand)
	assert.Equal(t, 6.0, a.Sustainability.Score)
	assert.Equal(t, crop.LevelHigh, a.Sustainability.WaterRequirement)
	assert.Contains(t, rec.Insights.SeasonalAdvice, "Kharif")
	assert.Contains(t, rec.Insights.PrimaryReason, "Rice")
}

func TestCompose_SoilOverlayWins(t *testing.T) {
	req := request()
	req.SoilData = map[string]any{
		"ph":       "5.2",
		"moisture": 25,
		"nitrogen": math.NaN(),
		"bogus":    12,
	}

	rec, err := newComposer().Compose(req, riceOnly())
	require.NoError(t, err)

	base := environment.Estimate(28.6, 77.2)
	assert.Equal(t, 5.2, rec.Features.PH)
	assert.Equal(t, 25.0, rec.Features.SoilMoisture)
	assert.Equal(t, base.Nitrogen, rec.Features.Nitrogen)
	assert.Equal(t, []string{"ph", "soil_moisture"}, rec.OverlaidFields)
	assert.Contains(t, rec.PreparationTips[0], "lime")
}

func TestOverlaySoilData_SkipsMalformed(t *testing.T) {
	base := environment.Estimate(15, 75)

	got, applied := recommendation.OverlaySoilData(base, map[string]any{
		"ph":             "acidic",
		"temperature":    math.Inf(1),
		"clay_content":   250.0,
		"organic_carbon": []int{1},
		"soil_moisture":  nil,
		"Potassium":      json.Number("210"),
		" K ":            "not used twice",
	})

	assert.Equal(t, []string{"potassium"}, applied)
	assert.Equal(t, 210.0, got.Potassium)
	assert.Equal(t, base.PH, got.PH)
	assert.Equal(t, base.Temperature, got.Temperature)
	assert.Equal(t, base.ClayContent, got.ClayContent)
}

func TestOverlaySoilData_FeatureNameBeatsAlias(t *testing.T) {
	base := environment.Estimate(15, 75)

	tests := []struct {
		name    string
		soil    map[string]any
		check   func(t *testing.T, got environment.FeatureVector)
		applied []string
	}{
		{
			name:    "ph over ph_level",
			soil:    map[string]any{"ph": 5.0, "ph_level": 7.5},
			check:   func(t *testing.T, got environment.FeatureVector) { assert.Equal(t, 5.0, got.PH) },
			applied: []string{"ph"},
		},
		{
			name:    "soil_moisture over moisture",
			soil:    map[string]any{"moisture": 30, "soil_moisture": 55},
			check:   func(t *testing.T, got environment.FeatureVector) { assert.Equal(t, 55.0, got.SoilMoisture) },
			applied: []string{"soil_moisture"},
		},
		{
			name:    "alias fills in for a malformed feature name",
			soil:    map[string]any{"ph": "acidic", "ph_level": 6.1},
			check:   func(t *testing.T, got environment.FeatureVector) { assert.Equal(t, 6.1, got.PH) },
			applied: []string{"ph"},
		},
		{
			name: "two aliases resolve by key order",
			soil: map[string]any{"rainfall_mm": 900, "annual_rain": 1200},
			check: func(t *testing.T, got environment.FeatureVector) {
				assert.Equal(t, 1200.0, got.Rainfall)
			},
			applied: []string{"rainfall"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for range 100 {
				got, applied := recommendation.OverlaySoilData(base, tt.soil)
				tt.check(t, got)
				require.Equal(t, tt.applied, applied)
			}
		})
	}
}

func TestOverlaySoilData_NilIsIdentity(t *testing.T) {
	base := environment.Estimate(15, 75)
	got, applied := recommendation.OverlaySoilData(base, nil)
	assert.Equal(t, base, got)
	assert.Empty(t, applied)
}

func TestPreparationTips(t *testing.T) {
	good := environment.FeatureVector{PH: 7, OrganicCarbon: 1.5, SoilMoisture: 50}

	tests := []struct {
		name   string
		mutate func(*environment.FeatureVector)
		want   []string
	}{
		{"suitable", func(*environment.FeatureVector) {}, []string{"suitable"}},
		{"acidic", func(f *environment.FeatureVector) { f.PH = 5.5 }, []string{"lime"}},
		{"alkaline", func(f *environment.FeatureVector) { f.PH = 8.4 }, []string{"organic matter"}},
		{"low carbon", func(f *environment.FeatureVector) { f.OrganicCarbon = 0.6 }, []string{"compost"}},
		{"dry", func(f *environment.FeatureVector) { f.SoilMoisture = 35 }, []string{"irrigation"}},
		{"several", func(f *environment.FeatureVector) {
			f.PH = 5
			f.OrganicCarbon = 0.5
			f.SoilMoisture = 10
		}, []string{"lime", "compost", "irrigation"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := good
			tt.mutate(&f)
			tips := recommendation.PreparationTips(f, "en")
			require.Len(t, tips, len(tt.want))
			for i, fragment := range tt.want {
				assert.Contains(t, tips[i], fragment)
			}
		})
	}
}

func TestPreparationTips_Localised(t *testing.T) {
	f := environment.FeatureVector{PH: 7, OrganicCarbon: 1.5, SoilMoisture: 50}

	hi := recommendation.PreparationTips(f, "hi")
	en := recommendation.PreparationTips(f, "en")
	fallback := recommendation.PreparationTips(f, "fr")

	require.Len(t, hi, 1)
	assert.NotEqual(t, en, hi)
	assert.Equal(t, en, fallback)
}

func TestNormalizeLanguage(t *testing.T) {
	assert.Equal(t, "hi", recommendation.NormalizeLanguage("hi-IN"))
	assert.Equal(t, "en", recommendation.NormalizeLanguage("EN_gb"))
	assert.Equal(t, "en", recommendation.NormalizeLanguage(""))
	assert.Equal(t, "en", recommendation.NormalizeLanguage("ta"))
}

func TestRatingFor(t *testing.T) {
	assert.Equal(t, recommendation.RatingExcellent, recommendation.RatingFor(80))
	assert.Equal(t, recommendation.RatingGood, recommendation.RatingFor(79.99))
	assert.Equal(t, recommendation.RatingModerate, recommendation.RatingFor(40))
	assert.Equal(t, recommendation.RatingPoor, recommendation.RatingFor(39.9))
}

func TestRecord_MarkSyncedIsMonotonic(t *testing.T) {
	rec, err := newComposer().Compose(request(), riceOnly())
	require.NoError(t, err)

	first := fixedNow.Add(time.Hour)
	assert.True(t, rec.MarkSynced(first))
	assert.False(t, rec.MarkSynced(first.Add(time.Hour)))
	require.NotNil(t, rec.SyncedAt)
	assert.Equal(t, first, *rec.SyncedAt)
}
