package scraper

import (
	"context"
	"errors"
	"log"
	"time"

	"nobroker_watchdog/models"
)

// Source turns configured search targets into one cycle's batch of
// listings. For each area the targets are tried in order (locality HTML,
// searchParam HTML, then API) and the first one that yields cards wins;
// fetch failures on one target fall through to the next.
type Source struct {
	Fetcher *Fetcher
	Targets []SearchTarget
}

func NewSource(fetcher *Fetcher, city string, areas []string, areaCoords map[string]models.Coord) *Source {
	return &Source{
		Fetcher: fetcher,
		Targets: BuildSearchTargets(city, areas, areaCoords),
	}
}

// FetchCycle aggregates listings across all areas. An error is returned
// only when every target of every area failed; a partial harvest is a
// normal result.
func (s *Source) FetchCycle(ctx context.Context) ([]*models.Listing, error) {
	now := time.Now()
	doneAreas := make(map[string]struct{})
	var aggregated []*models.Listing
	var lastErr error

	for _, target := range s.Targets {
		if err := ctx.Err(); err != nil {
			return aggregated, err
		}
		if _, done := doneAreas[target.AreaName]; done {
			continue
		}

		cards, err := s.fetchTarget(ctx, target, now)
		if err != nil {
			lastErr = err
			log.Printf("Target %s (%s): %v", target.AreaName, target.Kind, err)
			continue
		}
		log.Printf("Target %s (%s): %d cards", target.AreaName, target.Kind, len(cards))

		if len(cards) > 0 {
			aggregated = append(aggregated, cards...)
			doneAreas[target.AreaName] = struct{}{}
		}
	}

	if len(aggregated) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return aggregated, nil
}

func (s *Source) fetchTarget(ctx context.Context, target SearchTarget, now time.Time) ([]*models.Listing, error) {
	switch target.Kind {
	case TargetAPI:
		var payload map[string]any
		if err := s.Fetcher.GetJSON(ctx, target.URL, &payload); err != nil {
			return nil, err
		}
		return ParseAPIResponse(payload, now), nil

	case TargetHTML:
		body, status, err := s.Fetcher.Get(ctx, target.URL)
		if err != nil {
			return nil, err
		}
		if status != 200 || len(body) == 0 {
			return nil, nil
		}
		return ParseSearchPage(string(body), now), nil
	}
	return nil, errors.New("unknown target kind")
}
