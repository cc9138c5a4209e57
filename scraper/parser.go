package scraper

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"nobroker_watchdog/models"
)

var (
	digitsRe  = regexp.MustCompile(`\d+`)
	isoLikeRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)
	moneyRe   = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(k|l|lakh)?`)

	// SSR pages embed the redux state as `nb.appState = {...};` inside an
	// inline script. Skeleton pages fetch over XHR and have no such block.
	appStateRe = regexp.MustCompile(
		`(?s)window\.nb\s*=\s*window\.nb\s*\|\|\s*\{\}\s*;\s*nb\.pageName\s*=\s*"listPage";.*?nb\.appState\s*=\s*(\{.*?\})\s*;`)
)

// ParseSearchPage extracts listings from a search-results page. It first
// tries the embedded SSR JSON; when the page is a skeleton it falls back
// to scanning anchors that point at /property URLs, yielding minimal
// listings with just an id, title and URL.
func ParseSearchPage(html string, now time.Time) []*models.Listing {
	if items := parseListPageHTML(html, now); len(items) > 0 {
		return items
	}
	return parseAnchorFallback(html, now)
}

func parseListPageHTML(html string, now time.Time) []*models.Listing {
	m := appStateRe.FindStringSubmatch(html)
	if m == nil {
		return nil
	}

	var state map[string]json.RawMessage
	if err := json.Unmarshal([]byte(m[1]), &state); err != nil {
		return nil
	}

	// Result arrays show up under a few different reducers.
	paths := [][2]string{
		{"listPage", "listPageProperties"},
		{"resultScreenReducer", "propertyList"},
		{"resultScreenReducer", "propertySearchData"},
	}

	var props []map[string]any
	for _, p := range paths {
		node, ok := state[p[0]]
		if !ok {
			continue
		}
		var outer map[string]json.RawMessage
		if err := json.Unmarshal(node, &outer); err != nil {
			continue
		}
		inner, ok := outer[p[1]]
		if !ok {
			continue
		}
		var list []map[string]any
		if err := json.Unmarshal(inner, &list); err == nil && len(list) > 0 {
			props = list
			break
		}
	}

	var items []*models.Listing
	for _, p := range props {
		if l := listingFromMap(p, now); l != nil {
			items = append(items, l)
		}
	}
	return items
}

// ParseAPIResponse handles the public API v3 shape:
// {"status":200,"data":{"totalCount":N,"nbRankedResults":[{...}]}}
func ParseAPIResponse(payload map[string]any, now time.Time) []*models.Listing {
	data, _ := payload["data"].(map[string]any)
	if data == nil {
		return nil
	}
	results, _ := data["nbRankedResults"].([]any)
	if results == nil {
		results, _ = data["data"].([]any)
	}

	var items []*models.Listing
	for _, r := range results {
		obj, ok := r.(map[string]any)
		if !ok {
			continue
		}
		if prop, ok := obj["property"].(map[string]any); ok {
			obj = prop
		}
		if l := listingFromMap(obj, now); l != nil {
			items = append(items, l)
		}
	}
	return items
}

func listingFromMap(p map[string]any, now time.Time) *models.Listing {
	id := str(p, "propertyId", "id")
	if id == "" {
		return nil
	}

	title := str(p, "title", "society", "buildingName")
	if title == "" {
		title = "Rental home"
	}
	if society := str(p, "society", "projectName"); society != "" &&
		title != "Rental home" && !strings.Contains(title, society) {
		title = title + " • " + society
	}

	urlPath := str(p, "seoUrl", "url")
	if urlPath == "" {
		urlPath = "/property/" + id
	}
	fullURL := urlPath
	if !strings.HasPrefix(urlPath, "http") {
		fullURL = "https://www.nobroker.in" + urlPath
	}

	amenities := amenitiesFromAny(p["amenities"])
	if amenities == nil {
		amenities = amenitiesFromAny(p["amenitiesMap"])
	}

	imgCount := intFromAny(p["photoCount"])
	if imgCount == nil {
		if photos, ok := p["photos"].([]any); ok {
			n := len(photos)
			imgCount = &n
		}
	}

	l := &models.Listing{
		ID:           id,
		ScrapedAt:    now.UTC(),
		Title:        title,
		URL:          fullURL,
		PostedAt:     timeFromAny(firstOf(p, "lastUpdateDate", "creationDate"), now),
		AreaDisplay:  str(p, "locality", "location", "microMarket"),
		City:         str(p, "city", "cityName"),
		Latitude:     floatFromAny(firstOf(p, "latitude", "lat")),
		Longitude:    floatFromAny(firstOf(p, "longitude", "lon")),
		Furnishing:   titleize(str(p, "furnishing", "furnishingDesc")),
		PropertyType: titleize(str(p, "propertyType", "type")),
		CarpetSqft:   intFromAny(firstOf(p, "carpetArea", "carpetSqft", "builtupArea")),
		FloorInfo:    str(p, "floor", "floorInfo"),
		Amenities:    amenities,
		ImagesCount:  imgCount,
		Description:  str(p, "description", "propertyDescription"),
	}

	if rent := intFromAny(firstOf(p, "rent", "rentMonthly", "rentMonthlyPrice")); rent != nil {
		l.PriceMonthly = *rent
	}
	l.Deposit = intFromAny(firstOf(p, "deposit", "securityDeposit"))
	l.BHK = intFromAny(firstOf(p, "bhk", "bedrooms"))
	if pets, ok := p["petsAllowed"].(bool); ok {
		l.PetsAllowed = &pets
	}
	l.AvailableFrom = timeFromAny(p["availableFrom"], now)

	return l
}

func parseAnchorFallback(html string, now time.Time) []*models.Listing {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var items []*models.Listing
	seen := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if !strings.Contains(href, "/property") {
			return
		}
		fullURL := href
		if !strings.HasPrefix(href, "http") {
			fullURL = "https://www.nobroker.in" + href
		}
		fullURL = strings.TrimRight(fullURL, "/")
		id := fullURL[strings.LastIndex(fullURL, "/")+1:]
		if id == "" {
			return
		}
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}

		title := strings.TrimSpace(sel.Text())
		if title == "" {
			title = "Rental home"
		}
		items = append(items, &models.Listing{
			ID:        id,
			ScrapedAt: now.UTC(),
			Title:     title,
			URL:       fullURL,
			Amenities: []string{},
		})
	})
	return items
}

// ParseIndianMoney reads rent strings like "₹35,000", "35k" or
// "1.2 lakh" into a rupee amount. Returns nil when nothing numeric is
// present.
func ParseIndianMoney(s string) *int {
	s = strings.ToLower(strings.TrimSpace(strings.ReplaceAll(s, ",", "")))
	if s == "" {
		return nil
	}
	m := moneyRe.FindStringSubmatch(s)
	if m == nil || m[1] == "" {
		return nil
	}
	num, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil
	}
	switch m[2] {
	case "k":
		num *= 1000
	case "l", "lakh":
		num *= 100000
	}
	n := int(num)
	return &n
}

// timeFromAny normalizes the site's assorted time formats to UTC: epoch
// millis or seconds, ISO strings, and relative phrases like
// "posted 3 hours ago".
func timeFromAny(v any, now time.Time) *time.Time {
	switch val := v.(type) {
	case nil:
		return nil
	case float64:
		return epochToTime(int64(val))
	case int64:
		return epochToTime(val)
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return nil
		}
		if isoLikeRe.MatchString(s) {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				t = t.UTC()
				return &t
			}
			if t, err := time.Parse("2006-01-02", s); err == nil {
				return &t
			}
		}
		if t := relativeToTime(s, now); t != nil {
			return t
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return epochToTime(n)
		}
	}
	return nil
}

func epochToTime(n int64) *time.Time {
	if n <= 0 {
		return nil
	}
	var t time.Time
	if n > 10_000_000_000 { // millis
		t = time.UnixMilli(n).UTC()
	} else {
		t = time.Unix(n, 0).UTC()
	}
	return &t
}

func relativeToTime(s string, now time.Time) *time.Time {
	low := strings.ToLower(s)
	n := 1
	if m := digitsRe.FindString(low); m != "" {
		n, _ = strconv.Atoi(m)
	}

	var t time.Time
	switch {
	case strings.Contains(low, "minute"):
		t = now.Add(-time.Duration(n) * time.Minute)
	case strings.Contains(low, "hour"):
		t = now.Add(-time.Duration(n) * time.Hour)
	case strings.Contains(low, "day"):
		t = now.AddDate(0, 0, -n)
	case strings.Contains(low, "today"):
		t = now
	case strings.Contains(low, "yesterday"):
		t = now.AddDate(0, 0, -1)
	default:
		return nil
	}
	t = t.UTC()
	return &t
}

// ---------- loose-map helpers ----------

func firstOf(p map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := p[k]; ok && v != nil && v != "" {
			return v
		}
	}
	return nil
}

func str(p map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := p[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func intFromAny(v any) *int {
	switch val := v.(type) {
	case float64:
		n := int(val)
		return &n
	case int:
		return &val
	case string:
		if m := digitsRe.FindString(val); m != "" {
			if n, err := strconv.Atoi(m); err == nil {
				return &n
			}
		}
	}
	return nil
}

func floatFromAny(v any) *float64 {
	switch val := v.(type) {
	case float64:
		return &val
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return &f
		}
	}
	return nil
}

func amenitiesFromAny(v any) []string {
	switch val := v.(type) {
	case []any:
		out := make([]string, 0, len(val))
		for _, a := range val {
			if s, ok := a.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case map[string]any:
		// {"lift": true, "gym": false} shape
		var out []string
		for k, enabled := range val {
			if b, ok := enabled.(bool); ok && b {
				out = append(out, k)
			}
		}
		return out
	}
	return nil
}

func titleize(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, "_", " ")
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
