package recommendation

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/cropadvisor/cropadvisor/internal/environment"
)

// soilAliases maps common alternative keys onto feature names.
var soilAliases = map[string]string{
	"temp":          environment.FieldTemperature,
	"ph_level":      environment.FieldPH,
	"n":             environment.FieldNitrogen,
	"p":             environment.FieldPhosphorus,
	"k":             environment.FieldPotassium,
	"oc":            environment.FieldOrganicCarbon,
	"moisture":      environment.FieldSoilMoisture,
	"clay":          environment.FieldClayContent,
	"sand":          environment.FieldSandContent,
	"water_access":  environment.FieldWaterAccessScore,
	"soil_health":   environment.FieldHealthScore,
	"fertility":     environment.FieldFertilityIndex,
	"annual_rain":   environment.FieldRainfall,
	"rainfall_mm":   environment.FieldRainfall,
	"elevation_m":   environment.FieldElevation,
	"slope_degrees": environment.FieldSlope,
}

// plausible bounds for caller-supplied values; anything outside is treated as malformed.
var overlayBounds = map[string]environment.Band{
	environment.FieldTemperature:      {Min: -60, Max: 60},
	environment.FieldHumidity:         {Min: 0, Max: 100},
	environment.FieldRainfall:         {Min: 0, Max: 15000},
	environment.FieldPH:               {Min: 0, Max: 14},
	environment.FieldNitrogen:         {Min: 0, Max: math.MaxFloat64},
	environment.FieldPhosphorus:       {Min: 0, Max: math.MaxFloat64},
	environment.FieldPotassium:        {Min: 0, Max: math.MaxFloat64},
	environment.FieldOrganicCarbon:    {Min: 0, Max: 100},
	environment.FieldSoilMoisture:     {Min: 0, Max: 100},
	environment.FieldClayContent:      {Min: 0, Max: 100},
	environment.FieldSandContent:      {Min: 0, Max: 100},
	environment.FieldElevation:        {Min: -500, Max: 9000},
	environment.FieldSlope:            {Min: 0, Max: 90},
	environment.FieldNDVI:             {Min: -1, Max: 1},
	environment.FieldWaterAccessScore: {Min: 0, Max: 1},
	environment.FieldHealthScore:      {Min: 0, Max: 100},
	environment.FieldFertilityIndex:   {Min: 0, Max: 100},
}

// OverlaySoilData returns base with every readable caller value applied.
// Caller values win over estimates; unknown keys and malformed values are skipped.
// The second result lists the fields that were overlaid, sorted.
func OverlaySoilData(base environment.FeatureVector, soil map[string]any) (environment.FeatureVector, []string) {
	if len(soil) == 0 {
		return base, nil
	}

	// Exact feature names are applied before aliases and the first value for a field wins,
	// so a request carrying both "ph" and "ph_level" resolves the same way every time.
	keys := make([]string, 0, len(soil))
	for key := range soil {
		keys = append(keys, key)
	}
	sort.SliceStable(keys, func(i, j int) bool {
		ai, aj := isAlias(keys[i]), isAlias(keys[j])
		if ai != aj {
			return aj
		}
		return keys[i] < keys[j]
	})

	out := base
	var applied []string
	seen := make(map[string]bool, len(keys))
	for _, key := range keys {
		field := canonicalField(key)
		if seen[field] {
			continue
		}
		bounds, known := overlayBounds[field]
		if !known {
			continue
		}
		v, ok := toFloat(soil[key])
		if !ok || !bounds.Contains(v) {
			continue
		}
		if next, ok := out.With(field, v); ok {
			out = next
			applied = append(applied, field)
			seen[field] = true
		}
	}

	sort.Strings(applied)
	return out, applied
}

func isAlias(key string) bool {
	_, ok := soilAliases[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

func canonicalField(key string) string {
	k := strings.ToLower(strings.TrimSpace(key))
	if alias, ok := soilAliases[k]; ok {
		return alias
	}
	return k
}

func toFloat(raw any) (float64, bool) {
	var v float64
	switch t := raw.(type) {
	case float64:
		v = t
	case float32:
		v = float64(t)
	case int:
		v = float64(t)
	case int32:
		v = float64(t)
	case int64:
		v = float64(t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, false
		}
		v = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		v = f
	default:
		return 0, false
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
