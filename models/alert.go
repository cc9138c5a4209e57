package models

import (
	"fmt"
	"strings"
	"time"
)

// AlertPayload is what gets handed to the notifier once a listing
// qualifies for an alert.
type AlertPayload struct {
	Listing   *Listing        `json:"listing"`
	Score     *ScoreBreakdown `json:"score"`
	CreatedAt time.Time       `json:"created_at"`
}

// Text renders the human-readable alert body sent over SMS/WhatsApp.
func (a *AlertPayload) Text() string {
	l := a.Listing
	var b strings.Builder
	fmt.Fprintf(&b, "New match (%d/100): %s\n", a.Score.Overall, l.Title)
	fmt.Fprintf(&b, "Rent: %d/mo", l.PriceMonthly)
	if l.BHK != nil {
		fmt.Fprintf(&b, " | %dBHK", *l.BHK)
	}
	if l.Furnishing != "" {
		fmt.Fprintf(&b, " | %s", l.Furnishing)
	}
	b.WriteString("\n")
	if l.AreaDisplay != "" {
		fmt.Fprintf(&b, "Area: %s\n", l.AreaDisplay)
	}
	if len(a.Score.AmenitiesMatched) > 0 {
		fmt.Fprintf(&b, "Amenities: %s\n", strings.Join(a.Score.AmenitiesMatched, ", "))
	}
	b.WriteString(l.URL)
	return b.String()
}
