package recommendation

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cropadvisor/cropadvisor/internal/crop"
	"github.com/cropadvisor/cropadvisor/internal/environment"
	"github.com/cropadvisor/cropadvisor/internal/suitability"
)

// Soil thresholds that trigger preparation tips.
const (
	acidicPHBelow          = 6.0
	alkalinePHAbove        = 8.0
	lowOrganicCarbonBelow  = 1.0
	lowSoilMoistureBelow   = 40.0
	highSustainabilityFrom = 7.0
	lowSustainabilityBelow = 4.0
)

// ComposerConfig configures a Composer.
type ComposerConfig struct {
	Logger zerolog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
	// NewID defaults to "rec_" + a random UUID.
	NewID func() string
}

// Composer turns a request and a catalog into a ranked Record.
// It holds no mutable state and is safe for concurrent use.
type Composer struct {
	logger zerolog.Logger
	now    func() time.Time
	newID  func() string
}

// NewComposer creates a Composer.
func NewComposer(cfg ComposerConfig) *Composer {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = func() string { return "rec_" + uuid.New().String() }
	}
	return &Composer{
		logger: cfg.Logger,
		now:    cfg.Now,
		newID:  cfg.NewID,
	}
}

// Compose estimates the environment at the request location, overlays caller soil data,
// scores every crop in the catalog and returns a record holding the top candidates.
// The returned record is unsynced.
func (c *Composer) Compose(req Request, catalog crop.Catalog) (*Record, error) {
	if catalog.Len() == 0 {
		return nil, ErrEmptyCatalog
	}
	if err := environment.ValidateCoordinates(req.Location.Lat, req.Location.Lon); err != nil {
		return nil, err
	}
	if req.FarmSize <= 0 || math.IsNaN(req.FarmSize) || math.IsInf(req.FarmSize, 0) {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidFarmSize, req.FarmSize)
	}

	base := environment.Estimate(req.Location.Lat, req.Location.Lon)
	features, overlaid := OverlaySoilData(base, req.SoilData)

	irrigation := suitability.ParseIrrigation(req.IrrigationType)
	ranked := Rank(features, catalog, irrigation, req.FarmSize)
	top := ranked
	if len(top) > TopN {
		top = top[:TopN]
	}

	primary := top[0]
	breakdown := suitability.Explain(features, primary.Profile, irrigation, req.FarmSize)
	msgs := messagesFor(req.Language)

	rec := &Record{
		ID:              c.newID(),
		Location:        req.Location,
		FarmSize:        req.FarmSize,
		IrrigationType:  string(irrigation),
		Language:        msgs.lang,
		Features:        features,
		OverlaidFields:  overlaid,
		Candidates:      top,
		Analysis:        buildAnalysis(features, primary, breakdown, msgs),
		Insights:        buildInsights(primary, top, breakdown, msgs),
		PreparationTips: PreparationTips(features, msgs.lang),
		GeneratedAt:     c.now().UTC(),
		Source:          SourceOfflineCache,
	}

	c.logger.Debug().
		Str("record_id", rec.ID).
		Str("primary_crop", primary.Crop).
		Float64("score", primary.Score).
		Int("crops_scored", len(ranked)).
		Strs("overlaid_fields", overlaid).
		Msg("composed recommendation")

	return rec, nil
}

// Rank scores every crop and returns all candidates ordered by descending score.
// Equal scores keep catalog order.
func Rank(features environment.FeatureVector, catalog crop.Catalog, irrigation suitability.Irrigation, farmSize float64) []Candidate {
	names := catalog.Names()
	out := make([]Candidate, 0, len(names))
	for _, name := range names {
		profile := catalog[name]
		if profile.Name == "" {
			profile.Name = name
		}
		// Scores are rounded before sorting so that scores shown as equal keep catalog order.
		score := round2(suitability.Score(features, profile, irrigation, farmSize))
		out = append(out, Candidate{
			Crop:       name,
			Score:      score,
			Confidence: round2(score / suitability.MaxScore),
			Profile:    profile,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

// PreparationTips returns land preparation advice for the given conditions.
// When no threshold fires a single "conditions are suitable" tip is returned.
func PreparationTips(f environment.FeatureVector, lang string) []string {
	msgs := messagesFor(lang)
	var tips []string
	if f.PH < acidicPHBelow {
		tips = append(tips, msgs.text(msgTipLime))
	}
	if f.PH > alkalinePHAbove {
		tips = append(tips, msgs.text(msgTipOrganicMatter))
	}
	if f.OrganicCarbon < lowOrganicCarbonBelow {
		tips = append(tips, msgs.text(msgTipCompost))
	}
	if f.SoilMoisture < lowSoilMoistureBelow {
		tips = append(tips, msgs.text(msgTipIrrigation))
	}
	if len(tips) == 0 {
		tips = append(tips, msgs.text(msgTipSuitable))
	}
	return tips
}

func buildAnalysis(f environment.FeatureVector, primary Candidate, b suitability.Breakdown, msgs messages) Analysis {
	p := primary.Profile
	return Analysis{
		Suitability: SuitabilitySummary{
			Score:      primary.Score,
			Confidence: primary.Confidence,
			Rating:     RatingFor(primary.Score),
			Breakdown:  b,
		},
		Environmental: EnvironmentalSummary{
			Temperature: f.Temperature,
			Rainfall:    f.Rainfall,
			PH:          f.PH,
			SoilHealth:  f.HealthScore,
			Summary:     msgs.text(msgEnvironmentSummary, f.Temperature, f.Rainfall, f.PH, f.HealthScore),
		},
		Economic: EconomicSummary{
			YieldPotential: p.YieldPotential,
			ProfitMargin:   p.ProfitMargin,
			InputCost:      p.InputCost,
			MarketDemand:   p.MarketDemand,
			GrowthDuration: p.GrowthDuration,
		},
		Sustainability: SustainabilitySummary{
			Score:            p.SustainabilityScore,
			WaterRequirement: p.WaterRequirement,
			Summary:          sustainabilitySummary(p.SustainabilityScore, msgs),
		},
	}
}

func buildInsights(primary Candidate, top []Candidate, b suitability.Breakdown, msgs messages) Insights {
	ins := Insights{
		PrimaryReason: msgs.text(msgPrimaryReason, primary.Crop, primary.Score, RatingFor(primary.Score)),
	}
	for _, c := range top[1:] {
		ins.Alternatives = append(ins.Alternatives, c.Crop)
	}
	if seasons := primary.Profile.SeasonList(); seasons != "" {
		ins.SeasonalAdvice = msgs.text(msgSeasonalAdvice, seasons)
	} else {
		ins.SeasonalAdvice = msgs.text(msgSeasonalUnknown)
	}
	for _, criterion := range b.Weak() {
		if key, ok := riskMessages[criterion]; ok {
			ins.RiskFactors = append(ins.RiskFactors, msgs.text(key))
		}
	}
	return ins
}

func sustainabilitySummary(score float64, msgs messages) string {
	switch {
	case score >= highSustainabilityFrom:
		return msgs.text(msgSustainabilityHigh)
	case score >= lowSustainabilityBelow:
		return msgs.text(msgSustainabilityMedium)
	default:
		return msgs.text(msgSustainabilityLow)
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
