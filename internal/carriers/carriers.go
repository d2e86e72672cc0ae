package carriers

import (
	"net/url"
	"strings"

	"github.com/BearBump/OrderTrack/internal/sanitize"
)

const placeholder = "{tracking_number}"

type Carrier struct {
	Name        string
	URLTemplate string
}

// All returns the built-in carrier registry keyed by carrier id.
func All() map[string]Carrier {
	return map[string]Carrier{
		"fedex":     {Name: "FedEx", URLTemplate: "https://www.fedex.com/fedextrack/?trknbr=" + placeholder},
		"dhl":       {Name: "DHL", URLTemplate: "https://www.dhl.com/global-en/home/tracking.html?tracking-id=" + placeholder},
		"ups":       {Name: "UPS", URLTemplate: "https://www.ups.com/track?tracknum=" + placeholder},
		"usps":      {Name: "USPS", URLTemplate: "https://tools.usps.com/go/TrackConfirmAction?tLabels=" + placeholder},
		"bluedart":  {Name: "BlueDart", URLTemplate: "https://www.bluedart.com/tracking?trackingNumber=" + placeholder},
		"delhivery": {Name: "Delhivery", URLTemplate: "https://www.delhivery.com/track-v2/package/" + placeholder},
		"dtdc":      {Name: "DTDC", URLTemplate: "https://www.dtdc.in/tracking/tracking_results.asp?strCnno=" + placeholder},
		"indiapost": {Name: "India Post", URLTemplate: "https://www.indiapost.gov.in/_layouts/15/dop.portal.tracking/trackconsignment.aspx?ConsignmentNo=" + placeholder},
		"aramex":    {Name: "Aramex", URLTemplate: "https://www.aramex.com/track/shipments/" + placeholder},
		"custom":    {Name: "Custom Carrier", URLTemplate: ""},
	}
}

// NameFromID returns the display name for a carrier id, "" if unknown.
func NameFromID(carrierID string) string {
	c, ok := All()[sanitize.Key(carrierID)]
	if !ok {
		return ""
	}
	return c.Name
}

// BuildURL substitutes the tracking number into the carrier URL template.
// Returns "" when the carrier is unknown, has no template, or the number is empty.
func BuildURL(carrierID, trackingNumber string) string {
	trackingNumber = strings.TrimSpace(trackingNumber)
	c, ok := All()[sanitize.Key(carrierID)]
	if !ok || c.URLTemplate == "" || trackingNumber == "" {
		return ""
	}
	return strings.ReplaceAll(c.URLTemplate, placeholder, url.PathEscape(trackingNumber))
}
