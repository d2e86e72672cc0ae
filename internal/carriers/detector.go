package carriers

import (
	"regexp"
	"strings"
)

// detectionPattern ties a carrier id to a tracking-number shape.
// Order matters: the first match wins.
type detectionPattern struct {
	CarrierID string
	Pattern   *regexp.Regexp
}

var defaultPatterns = []detectionPattern{
	{"ups", regexp.MustCompile(`^1Z[0-9A-Z]{16}$`)},
	{"fedex", regexp.MustCompile(`^(?:\d{12}|\d{15}|\d{20}|\d{22})$`)},
	{"dhl", regexp.MustCompile(`^(?:\d{10}|JJD\d{18}|JD\d{18,20})$`)},
	{"usps", regexp.MustCompile(`^(?:94|93|92|95)\d{20,22}$`)},
	{"delhivery", regexp.MustCompile(`^[A-Z]{2,4}\d{8,14}IN$`)},
	{"dtdc", regexp.MustCompile(`^[A-Z]\d{8,12}$`)},
}

var extraPatterns []detectionPattern

// RegisterPattern appends a custom detection pattern. Custom patterns are
// checked after the built-in ones.
func RegisterPattern(carrierID string, re *regexp.Regexp) {
	if carrierID == "" || re == nil {
		return
	}
	extraPatterns = append(extraPatterns, detectionPattern{CarrierID: carrierID, Pattern: re})
}

// Detect returns the carrier id guessed from the tracking number shape,
// "" when nothing matches.
func Detect(trackingNumber string) string {
	trackingNumber = strings.ToUpper(strings.TrimSpace(trackingNumber))
	if trackingNumber == "" {
		return ""
	}
	for _, p := range defaultPatterns {
		if p.Pattern.MatchString(trackingNumber) {
			return p.CarrierID
		}
	}
	for _, p := range extraPatterns {
		if p.Pattern.MatchString(trackingNumber) {
			return p.CarrierID
		}
	}
	return ""
}
