// Package crop defines crop profiles and the catalog they are scored from.
package crop

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Catalog errors.
var (
	ErrEmptyCatalog   = errors.New("crop catalog is empty")
	ErrInvalidProfile = errors.New("invalid crop profile")
	ErrInvalidRange   = errors.New("invalid range")
)

// Level is a four-step qualitative rating used for water requirement and market demand.
type Level string

const (
	LevelLow      Level = "Low"
	LevelMedium   Level = "Medium"
	LevelHigh     Level = "High"
	LevelVeryHigh Level = "Very High"
	LevelUnknown  Level = ""
)

// ParseLevel maps free-form input ("very high", "VERY_HIGH", "High") to a Level.
// Unrecognised input yields LevelUnknown.
func ParseLevel(s string) Level {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("_", " ", "-", " ").Replace(norm)
	switch norm {
	case "low":
		return LevelLow
	case "medium", "moderate":
		return LevelMedium
	case "high":
		return LevelHigh
	case "very high", "veryhigh":
		return LevelVeryHigh
	default:
		return LevelUnknown
	}
}

// IsKnown reports whether the level is one of the four declared steps.
func (l Level) IsKnown() bool {
	switch l {
	case LevelLow, LevelMedium, LevelHigh, LevelVeryHigh:
		return true
	default:
		return false
	}
}

// UnmarshalJSON accepts any casing of the level names.
func (l *Level) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*l = ParseLevel(s)
	return nil
}

// UnmarshalYAML accepts any casing of the level names.
func (l *Level) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	*l = ParseLevel(s)
	return nil
}

// Range is an inclusive [Min, Max] interval. It is encoded as a two-element array.
type Range struct {
	Min float64
	Max float64
}

// NewRange builds a Range, rejecting inverted bounds.
func NewRange(lo, hi float64) (*Range, error) {
	if lo > hi {
		return nil, fmt.Errorf("%w: min %v > max %v", ErrInvalidRange, lo, hi)
	}
	return &Range{Min: lo, Max: hi}, nil
}

// Contains reports whether v lies within the range.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Distance returns how far v lies outside the range (0 when inside).
func (r Range) Distance(v float64) float64 {
	switch {
	case v < r.Min:
		return r.Min - v
	case v > r.Max:
		return v - r.Max
	default:
		return 0
	}
}

// MarshalJSON encodes the range as [min, max].
func (r Range) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{r.Min, r.Max})
}

// UnmarshalJSON decodes a [min, max] array.
func (r *Range) UnmarshalJSON(data []byte) error {
	var pair []float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRange, err)
	}
	return r.fromPair(pair)
}

// UnmarshalYAML decodes a [min, max] sequence.
func (r *Range) UnmarshalYAML(node *yaml.Node) error {
	var pair []float64
	if err := node.Decode(&pair); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRange, err)
	}
	return r.fromPair(pair)
}

func (r *Range) fromPair(pair []float64) error {
	if len(pair) != 2 {
		return fmt.Errorf("%w: want 2 bounds, got %d", ErrInvalidRange, len(pair))
	}
	if pair[0] > pair[1] {
		return fmt.Errorf("%w: min %v > max %v", ErrInvalidRange, pair[0], pair[1])
	}
	r.Min, r.Max = pair[0], pair[1]
	return nil
}

// Profile describes one crop's growing requirements and economics.
// A nil range means the criterion is not declared for this crop.
type Profile struct {
	Name                string   `json:"name" yaml:"name"`
	TemperatureRange    *Range   `json:"temperature_range,omitempty" yaml:"temperature_range"`
	PHRange             *Range   `json:"ph_range,omitempty" yaml:"ph_range"`
	RainfallRange       *Range   `json:"rainfall_range,omitempty" yaml:"rainfall_range"`
	WaterRequirement    Level    `json:"water_requirement" yaml:"water_requirement"`
	MarketDemand        Level    `json:"market_demand" yaml:"market_demand"`
	YieldPotential      string   `json:"yield_potential,omitempty" yaml:"yield_potential"`
	ProfitMargin        string   `json:"profit_margin,omitempty" yaml:"profit_margin"`
	InputCost           string   `json:"input_cost,omitempty" yaml:"input_cost"`
	SustainabilityScore float64  `json:"sustainability_score" yaml:"sustainability_score"`
	GrowthDuration      string   `json:"growth_duration,omitempty" yaml:"growth_duration"`
	Seasons             []string `json:"seasons,omitempty" yaml:"seasons"`
}

// Validate checks the profile's declared values.
func (p *Profile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidProfile)
	}
	if p.SustainabilityScore < 0 || p.SustainabilityScore > 10 {
		return fmt.Errorf("%w: %s: sustainability score %v outside [0,10]",
			ErrInvalidProfile, p.Name, p.SustainabilityScore)
	}
	for label, r := range map[string]*Range{
		"temperature": p.TemperatureRange,
		"ph":          p.PHRange,
		"rainfall":    p.RainfallRange,
	} {
		if r != nil && r.Min > r.Max {
			return fmt.Errorf("%w: %s: %s range inverted", ErrInvalidProfile, p.Name, label)
		}
	}
	return nil
}
