package scraper

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"nobroker_watchdog/models"
)

const defaultOrderBy = "lastUpdatedDate desc"

type TargetKind string

const (
	TargetHTML TargetKind = "html"
	TargetAPI  TargetKind = "api"
)

// SearchTarget is one fetchable URL for an area. Targets for an area are
// ordered: clean locality path, searchParam fallback, then the public API
// when coordinates are configured.
type SearchTarget struct {
	Kind     TargetKind
	URL      string
	AreaName string
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	return strings.Trim(slugRe.ReplaceAllString(s, "-"), "-")
}

// encodeSearchParam builds the base64(JSON array) searchParam the site's
// API expects:
// [{"placeName":"Kadubeesanahalli, Bangalore","placeId":"","lat":"12.935400","lon":"77.697400"}]
func encodeSearchParam(placeName string, coord models.Coord) string {
	payload := []map[string]string{{
		"placeName": placeName,
		"placeId":   "",
		"lat":       fmt.Sprintf("%.6f", coord.Lat),
		"lon":       fmt.Sprintf("%.6f", coord.Lng),
	}}
	raw, _ := json.Marshal(payload)
	return base64.StdEncoding.EncodeToString(raw)
}

// BuildSearchTargets expands the configured city and areas into the
// ordered, deduplicated list of URLs to try each cycle.
func BuildSearchTargets(city string, areas []string, areaCoords map[string]models.Coord) []SearchTarget {
	citySlug := slugify(city)
	orderBy := strings.ReplaceAll(defaultOrderBy, " ", "%20")

	var targets []SearchTarget
	for _, area := range areas {
		areaClean := strings.TrimSpace(area)
		if areaClean == "" {
			continue
		}

		areaSlug := slugify(areaClean)
		pathSlug := areaSlug
		if !strings.HasSuffix(areaSlug, "-"+citySlug) {
			pathSlug = areaSlug + "-" + citySlug
		}

		targets = append(targets, SearchTarget{
			Kind:     TargetHTML,
			AreaName: areaClean,
			URL: fmt.Sprintf("https://www.nobroker.in/property/rent/%s/%s?orderBy=%s",
				citySlug, pathSlug, orderBy),
		})

		targets = append(targets, SearchTarget{
			Kind:     TargetHTML,
			AreaName: areaClean,
			URL: fmt.Sprintf("https://www.nobroker.in/property/rent/%s?searchParam=%s&sharedAccomodation=0&orderBy=%s",
				citySlug, url.QueryEscape(areaClean), orderBy),
		})

		if coord, ok := areaCoords[areaClean]; ok {
			targets = append(targets, SearchTarget{
				Kind:     TargetAPI,
				AreaName: areaClean,
				URL: fmt.Sprintf("https://www.nobroker.in/api/v3/multi/property/filter?searchParam=%s&sharedAccomodation=0&orderBy=%s&page=0&limit=30",
					encodeSearchParam(areaClean, coord), orderBy),
			})
		}
	}

	// Dedupe identical URLs, order preserved.
	seen := make(map[string]struct{}, len(targets))
	deduped := targets[:0]
	for _, t := range targets {
		key := string(t.Kind) + "|" + t.URL
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		deduped = append(deduped, t)
	}
	return deduped
}
