package environment

import (
	"encoding/binary"
	"math"
	"math/rand/v2"

	"github.com/cespare/xxhash/v2"
)

// Latitude and longitude thresholds for the regional bands (degrees).
const (
	northernLatitude = 30.0
	centralLatitude  = 20.0
	easternLongitude = 77.0
)

// Regional temperature and rainfall bands.
var (
	temperatureNorth   = Band{Min: 15, Max: 30}
	temperatureCentral = Band{Min: 20, Max: 35}
	temperatureSouth   = Band{Min: 25, Max: 35}

	rainfallEast = Band{Min: 1000, Max: 2000}
	rainfallWest = Band{Min: 500, Max: 1500}
)

// fixedRanges holds the bands for every field that does not depend on location.
var fixedRanges = map[string]Band{
	FieldHumidity:         {Min: 40, Max: 80},
	FieldPH:               {Min: 6.0, Max: 8.0},
	FieldNitrogen:         {Min: 150, Max: 300},
	FieldPhosphorus:       {Min: 10, Max: 40},
	FieldPotassium:        {Min: 100, Max: 300},
	FieldOrganicCarbon:    {Min: 0.5, Max: 2.0},
	FieldSoilMoisture:     {Min: 30, Max: 70},
	FieldClayContent:      {Min: 20, Max: 40},
	FieldSandContent:      {Min: 30, Max: 60},
	FieldElevation:        {Min: 100, Max: 800},
	FieldSlope:            {Min: 0, Max: 10},
	FieldNDVI:             {Min: 0.3, Max: 0.8},
	FieldWaterAccessScore: {Min: 0.5, Max: 1.0},
	FieldHealthScore:      {Min: 70, Max: 90},
	FieldFertilityIndex:   {Min: 60, Max: 85},
}

// Ranges returns the band every estimated field is drawn from at the given location.
func Ranges(lat, lon float64) map[string]Band {
	ranges := make(map[string]Band, len(fixedRanges)+2)
	for k, v := range fixedRanges {
		ranges[k] = v
	}
	ranges[FieldTemperature] = TemperatureBand(lat)
	ranges[FieldRainfall] = RainfallBand(lon)
	return ranges
}

// TemperatureBand selects the temperature band (°C) for a latitude.
func TemperatureBand(lat float64) Band {
	switch {
	case lat > northernLatitude:
		return temperatureNorth
	case lat >= centralLatitude:
		return temperatureCentral
	default:
		return temperatureSouth
	}
}

// RainfallBand selects the annual rainfall band (mm) for a longitude.
func RainfallBand(lon float64) Band {
	if lon > easternLongitude {
		return rainfallEast
	}
	return rainfallWest
}

// Estimate derives a synthetic feature vector for the given coordinates.
//
// The result is a deterministic fallback approximation: the PRNG is seeded from a hash
// of the two coordinates and is local to the call, so identical inputs always produce
// identical vectors and concurrent calls share no state.
func Estimate(lat, lon float64) FeatureVector {
	rng := rand.New(rand.NewPCG(Seed(lat, lon)))

	draw := func(b Band) float64 {
		v := b.Min + rng.Float64()*(b.Max-b.Min)
		return clamp(round2(v), b)
	}

	// Draw order is part of the determinism contract.
	return FeatureVector{
		Temperature:      draw(TemperatureBand(lat)),
		Humidity:         draw(fixedRanges[FieldHumidity]),
		Rainfall:         draw(RainfallBand(lon)),
		PH:               draw(fixedRanges[FieldPH]),
		Nitrogen:         draw(fixedRanges[FieldNitrogen]),
		Phosphorus:       draw(fixedRanges[FieldPhosphorus]),
		Potassium:        draw(fixedRanges[FieldPotassium]),
		OrganicCarbon:    draw(fixedRanges[FieldOrganicCarbon]),
		SoilMoisture:     draw(fixedRanges[FieldSoilMoisture]),
		ClayContent:      draw(fixedRanges[FieldClayContent]),
		SandContent:      draw(fixedRanges[FieldSandContent]),
		Elevation:        draw(fixedRanges[FieldElevation]),
		Slope:            draw(fixedRanges[FieldSlope]),
		NDVI:             draw(fixedRanges[FieldNDVI]),
		WaterAccessScore: draw(fixedRanges[FieldWaterAccessScore]),
		HealthScore:      draw(fixedRanges[FieldHealthScore]),
		FertilityIndex:   draw(fixedRanges[FieldFertilityIndex]),
	}
}

// Seed derives the two PCG seed words from a coordinate pair.
func Seed(lat, lon float64) (uint64, uint64) {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], math.Float64bits(normalizeZero(lat)))
	binary.LittleEndian.PutUint64(buf[8:], math.Float64bits(normalizeZero(lon)))

	hi := xxhash.Sum64(buf[:])
	lo := xxhash.Sum64(append(buf[8:], buf[:8]...))
	return hi, lo
}

// ValidateCoordinates checks that a latitude/longitude pair is on the globe.
func ValidateCoordinates(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return ErrInvalidCoordinates
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return ErrInvalidCoordinates
	}
	return nil
}

// normalizeZero maps -0 to +0 so both hash to the same seed.
func normalizeZero(v float64) float64 {
	if v == 0 {
		return 0
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clamp(v float64, b Band) float64 {
	return math.Max(b.Min, math.Min(b.Max, v))
}
