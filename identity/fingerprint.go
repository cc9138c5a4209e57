package identity

import (
	"crypto/sha1"
	"encoding/hex"
	"strconv"
	"strings"

	"nobroker_watchdog/models"
)

// Key returns the stable identity key for a listing: the source's
// canonical property id, falling back to the URL slug when the id is
// missing (anchor-fallback parses).
func Key(l *models.Listing) string {
	if l.ID != "" {
		return l.ID
	}
	url := strings.TrimRight(l.URL, "/")
	if i := strings.LastIndex(url, "/"); i >= 0 {
		return url[i+1:]
	}
	return url
}

// Fingerprint hashes the alert-relevant content of a listing. A listing
// that reappears with the same key but a different fingerprint (price
// drop, rewritten title) is eligible to alert again.
func Fingerprint(l *models.Listing) string {
	h := sha1.New()
	for _, part := range []string{
		Key(l),
		strconv.Itoa(l.PriceMonthly),
		l.Title,
		l.URL,
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
