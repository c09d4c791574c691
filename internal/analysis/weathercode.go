// ABOUTME: WMO weather code buckets used by the weather-code analyzer.
// ABOUTME: Codes outside the known ranges map to BucketUnknown.
package analysis

// Bucket groups WMO weather interpretation codes.
type Bucket string

const (
	BucketUnknown      Bucket = ""
	BucketClear        Bucket = "clear"
	BucketCloudy       Bucket = "cloudy"
	BucketFog          Bucket = "fog"
	BucketDrizzle      Bucket = "drizzle"
	BucketRain         Bucket = "rain"
	BucketSnow         Bucket = "snow"
	BucketThunderstorm Bucket = "thunderstorm"
)

var bucketLabels = map[Bucket]string{
	BucketClear:        "Klarer Himmel",
	BucketCloudy:       "Bewölkung",
	BucketFog:          "Nebel",
	BucketDrizzle:      "Nieselregen",
	BucketRain:         "Regen",
	BucketSnow:         "Schnee",
	BucketThunderstorm: "Gewitter",
}

// BucketFor maps a WMO code to its bucket.
func BucketFor(code int) Bucket {
	switch {
	case code == 0 || code == 1:
		return BucketClear
	case code == 2 || code == 3:
		return BucketCloudy
	case code == 45 || code == 48:
		return BucketFog
	case code >= 51 && code <= 57:
		return BucketDrizzle
	case code >= 61 && code <= 67, code >= 80 && code <= 82:
		return BucketRain
	case code >= 71 && code <= 77, code == 85 || code == 86:
		return BucketSnow
	case code >= 95 && code <= 99:
		return BucketThunderstorm
	}
	return BucketUnknown
}

// Label returns the German display name.
func (b Bucket) Label() string {
	if l, ok := bucketLabels[b]; ok {
		return l
	}
	return "Unbekannt"
}
