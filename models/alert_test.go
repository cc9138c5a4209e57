package models

import (
	"strings"
	"testing"
	"time"
)

func TestAlertPayload_Text(t *testing.T) {
	bhk := 2
	a := &AlertPayload{
		Listing: &Listing{
			ID:           "p1",
			Title:        "2BHK in Koramangala",
			URL:          "https://www.nobroker.in/property/p1",
			AreaDisplay:  "Koramangala 5th Block",
			PriceMonthly: 25000,
			BHK:          &bhk,
			Furnishing:   "Semi Furnished",
		},
		Score: &ScoreBreakdown{
			Overall:          85,
			AmenitiesMatched: []string{"lift", "parking"},
		},
		CreatedAt: time.Now(),
	}

	text := a.Text()
	for _, want := range []string{
		"New match (85/100)",
		"Rent: 25000/mo",
		"2BHK",
		"Semi Furnished",
		"Area: Koramangala 5th Block",
		"Amenities: lift, parking",
		"https://www.nobroker.in/property/p1",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("alert text missing %q:\n%s", want, text)
		}
	}
}

func TestAlertPayload_TextSparseListing(t *testing.T) {
	a := &AlertPayload{
		Listing: &Listing{ID: "p2", Title: "Rental home", URL: "https://www.nobroker.in/property/p2"},
		Score:   &ScoreBreakdown{Overall: 70},
	}
	text := a.Text()
	if strings.Contains(text, "Area:") || strings.Contains(text, "Amenities:") {
		t.Fatalf("optional sections must be omitted:\n%s", text)
	}
}
