package recommendation

import (
	"fmt"
	"strings"
)

// Supported message languages.
const (
	LanguageEnglish = "en"
	LanguageHindi   = "hi"
)

type messageKey int

const (
	msgTipLime messageKey = iota
	msgTipOrganicMatter
	msgTipCompost
	msgTipIrrigation
	msgTipSuitable
	msgPrimaryReason
	msgSeasonalAdvice
	msgSeasonalUnknown
	msgEnvironmentSummary
	msgSustainabilityHigh
	msgSustainabilityMedium
	msgSustainabilityLow
	msgRiskTemperature
	msgRiskPH
	msgRiskRainfall
	msgRiskIrrigation
	msgRiskSoilHealth
	msgRiskMarket
)

var catalogs = map[string]map[messageKey]string{
	LanguageEnglish: {
		msgTipLime:              "Soil is acidic: apply agricultural lime before sowing to raise pH.",
		msgTipOrganicMatter:     "Soil is alkaline: add organic matter or gypsum to lower pH.",
		msgTipCompost:           "Organic carbon is low: incorporate compost or farmyard manure.",
		msgTipIrrigation:        "Soil moisture is low: schedule more frequent irrigation.",
		msgTipSuitable:          "Current soil conditions are suitable for sowing.",
		msgPrimaryReason:        "%s scores %.1f/100 (%s) for the estimated conditions at this location.",
		msgSeasonalAdvice:       "Best sown in the %s season.",
		msgSeasonalUnknown:      "Check local sowing calendars for the right season.",
		msgEnvironmentSummary:   "Temperature %.1f°C, rainfall %.0f mm, pH %.1f, soil health %.0f/100.",
		msgSustainabilityHigh:   "High sustainability: low environmental impact.",
		msgSustainabilityMedium: "Moderate sustainability: manage water and inputs carefully.",
		msgSustainabilityLow:    "Low sustainability: consider rotation with less demanding crops.",
		msgRiskTemperature:      "Temperature is outside the crop's preferred range.",
		msgRiskPH:               "Soil pH is outside the crop's preferred range.",
		msgRiskRainfall:         "Rainfall is outside the crop's preferred range.",
		msgRiskIrrigation:       "Irrigation method may not meet the crop's water needs.",
		msgRiskSoilHealth:       "Soil health is poor.",
		msgRiskMarket:           "Market demand for this crop is weak.",
	},
	LanguageHindi: {
		msgTipLime:              "मिट्टी अम्लीय है: बुवाई से पहले pH बढ़ाने के लिए कृषि चूना डालें।",
		msgTipOrganicMatter:     "मिट्टी क्षारीय है: pH कम करने के लिए जैविक पदार्थ या जिप्सम मिलाएँ।",
		msgTipCompost:           "जैविक कार्बन कम है: कम्पोस्ट या गोबर की खाद मिलाएँ।",
		msgTipIrrigation:        "मिट्टी में नमी कम है: सिंचाई अधिक बार करें।",
		msgTipSuitable:          "मिट्टी की वर्तमान स्थिति बुवाई के लिए उपयुक्त है।",
		msgPrimaryReason:        "इस स्थान की अनुमानित परिस्थितियों के लिए %s का स्कोर %.1f/100 (%s) है।",
		msgSeasonalAdvice:       "%s मौसम में बुवाई सबसे अच्छी है।",
		msgSeasonalUnknown:      "सही मौसम के लिए स्थानीय बुवाई कैलेंडर देखें।",
		msgEnvironmentSummary:   "तापमान %.1f°C, वर्षा %.0f मिमी, pH %.1f, मृदा स्वास्थ्य %.0f/100।",
		msgSustainabilityHigh:   "उच्च स्थिरता: पर्यावरण पर कम प्रभाव।",
		msgSustainabilityMedium: "मध्यम स्थिरता: पानी और आदानों का सावधानी से प्रबंधन करें।",
		msgSustainabilityLow:    "कम स्थिरता: कम मांग वाली फसलों के साथ फसल चक्र अपनाएँ।",
		msgRiskTemperature:      "तापमान फसल की पसंदीदा सीमा से बाहर है।",
		msgRiskPH:               "मिट्टी का pH फसल की पसंदीदा सीमा से बाहर है।",
		msgRiskRainfall:         "वर्षा फसल की पसंदीदा सीमा से बाहर है।",
		msgRiskIrrigation:       "सिंचाई विधि फसल की पानी की जरूरत पूरी नहीं कर सकती।",
		msgRiskSoilHealth:       "मृदा स्वास्थ्य कमजोर है।",
		msgRiskMarket:           "इस फसल की बाजार मांग कमजोर है।",
	},
}

var riskMessages = map[string]messageKey{
	"temperature": msgRiskTemperature,
	"ph":          msgRiskPH,
	"rainfall":    msgRiskRainfall,
	"irrigation":  msgRiskIrrigation,
	"soil_health": msgRiskSoilHealth,
	"market":      msgRiskMarket,
}

// NormalizeLanguage returns a supported language code, falling back to English.
func NormalizeLanguage(lang string) string {
	l := strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexAny(l, "-_"); i > 0 {
		l = l[:i]
	}
	if _, ok := catalogs[l]; ok {
		return l
	}
	return LanguageEnglish
}

type messages struct {
	lang string
}

func messagesFor(lang string) messages {
	return messages{lang: NormalizeLanguage(lang)}
}

func (m messages) text(key messageKey, args ...any) string {
	format, ok := catalogs[m.lang][key]
	if !ok {
		format = catalogs[LanguageEnglish][key]
	}
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}
