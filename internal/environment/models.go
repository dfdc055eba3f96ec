// Package environment derives synthetic soil, climate and terrain estimates from coordinates.
package environment

import (
	"errors"
)

// ErrInvalidCoordinates is returned when a latitude/longitude pair is out of range.
var ErrInvalidCoordinates = errors.New("invalid coordinates")

// FeatureVector is the bundle of environmental values used as scoring input.
// It is produced fresh per request and copied by value.
type FeatureVector struct {
	// Climate
	Temperature float64 `json:"temperature"` // °C
	Humidity    float64 `json:"humidity"`    // %
	Rainfall    float64 `json:"rainfall"`    // mm/year

	// Soil chemistry
	PH            float64 `json:"ph"`
	Nitrogen      float64 `json:"nitrogen"`       // ppm
	Phosphorus    float64 `json:"phosphorus"`     // ppm
	Potassium     float64 `json:"potassium"`      // ppm
	OrganicCarbon float64 `json:"organic_carbon"` // %

	// Soil physics
	SoilMoisture float64 `json:"soil_moisture"` // %
	ClayContent  float64 `json:"clay_content"`  // %
	SandContent  float64 `json:"sand_content"`  // %

	// Terrain
	Elevation float64 `json:"elevation"` // m
	Slope     float64 `json:"slope"`     // degrees

	// Derived indices
	NDVI             float64 `json:"ndvi"`               // 0-1
	WaterAccessScore float64 `json:"water_access_score"` // 0-1
	HealthScore      float64 `json:"health_score"`       // 0-100
	FertilityIndex   float64 `json:"fertility_index"`    // 0-100
}

// Band is an inclusive numeric interval.
type Band struct {
	Min float64
	Max float64
}

// Contains reports whether v lies within the band.
func (b Band) Contains(v float64) bool {
	return v >= b.Min && v <= b.Max
}

// Field names, matching the JSON keys of FeatureVector.
const (
	FieldTemperature      = "temperature"
	FieldHumidity         = "humidity"
	FieldRainfall         = "rainfall"
	FieldPH               = "ph"
	FieldNitrogen         = "nitrogen"
	FieldPhosphorus       = "phosphorus"
	FieldPotassium        = "potassium"
	FieldOrganicCarbon    = "organic_carbon"
	FieldSoilMoisture     = "soil_moisture"
	FieldClayContent      = "clay_content"
	FieldSandContent      = "sand_content"
	FieldElevation        = "elevation"
	FieldSlope            = "slope"
	FieldNDVI             = "ndvi"
	FieldWaterAccessScore = "water_access_score"
	FieldHealthScore      = "health_score"
	FieldFertilityIndex   = "fertility_index"
)

// Fields returns every field name in declaration order.
func Fields() []string {
	return []string{
		FieldTemperature, FieldHumidity, FieldRainfall,
		FieldPH, FieldNitrogen, FieldPhosphorus, FieldPotassium, FieldOrganicCarbon,
		FieldSoilMoisture, FieldClayContent, FieldSandContent,
		FieldElevation, FieldSlope,
		FieldNDVI, FieldWaterAccessScore, FieldHealthScore, FieldFertilityIndex,
	}
}

// Get returns the value of the named field.
func (v *FeatureVector) Get(field string) (float64, bool) {
	if p := v.fieldPtr(field); p != nil {
		return *p, true
	}
	return 0, false
}

// With returns a copy of the vector with the named field replaced.
// Unknown field names leave the copy unchanged and report false.
func (v FeatureVector) With(field string, value float64) (FeatureVector, bool) {
	p := v.fieldPtr(field)
	if p == nil {
		return v, false
	}
	*p = value
	return v, true
}

func (v *FeatureVector) fieldPtr(field string) *float64 {
	switch field {
	case FieldTemperature:
		return &v.Temperature
	case FieldHumidity:
		return &v.Humidity
	case FieldRainfall:
		return &v.Rainfall
	case FieldPH:
		return &v.PH
	case FieldNitrogen:
		return &v.Nitrogen
	case FieldPhosphorus:
		return &v.Phosphorus
	case FieldPotassium:
		return &v.Potassium
	case FieldOrganicCarbon:
		return &v.OrganicCarbon
	case FieldSoilMoisture:
		return &v.SoilMoisture
	case FieldClayContent:
		return &v.ClayContent
	case FieldSandContent:
		return &v.SandContent
	case FieldElevation:
		return &v.Elevation
	case FieldSlope:
		return &v.Slope
	case FieldNDVI:
		return &v.NDVI
	case FieldWaterAccessScore:
		return &v.WaterAccessScore
	case FieldHealthScore:
		return &v.HealthScore
	case FieldFertilityIndex:
		return &v.FertilityIndex
	default:
		return nil
	}
}
