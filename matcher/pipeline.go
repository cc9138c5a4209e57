package matcher

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"nobroker_watchdog/identity"
	"nobroker_watchdog/models"
)

// SeenStore is the slice of the dedup ledger the pipeline needs.
type SeenStore interface {
	AlreadyAlerted(listingID, fingerprint string) (bool, error)
	RecordSeen(listingID, fingerprint string, t time.Time) error
	MarkAlerted(listingID string, t time.Time) error
}

// Notifier dispatches one alert; an error means no channel delivered it.
type Notifier interface {
	Send(ctx context.Context, payload *models.AlertPayload) error
}

// Archiver mirrors dispatched alerts to long-term storage. Optional.
type Archiver interface {
	RecordAlert(ctx context.Context, payload *models.AlertPayload, fingerprint string) error
}

type decisionKind int

const (
	decisionSkipAlerted decisionKind = iota
	decisionRejected
	decisionBelowThreshold
	decisionAlert
	decisionError
)

type decision struct {
	listing     *models.Listing
	key         string
	fingerprint string
	kind        decisionKind
	score       models.ScoreBreakdown
	err         error
}

// Pipeline runs Filter -> Scorer -> Store-check -> decision over each
// listing of a polling cycle. Evaluation is parallelized across a bounded
// worker pool (filter and scorer are pure); all store writes and notify
// calls happen serially afterwards, in listing order.
type Pipeline struct {
	Criteria    *models.Criteria
	Preferences *models.Preferences
	Threshold   int
	Store       SeenStore
	Notifier    Notifier
	Archive     Archiver
	Workers     int
}

func NewPipeline(criteria *models.Criteria, prefs *models.Preferences, threshold int, store SeenStore, notifier Notifier) *Pipeline {
	return &Pipeline{
		Criteria:    criteria,
		Preferences: prefs,
		Threshold:   threshold,
		Store:       store,
		Notifier:    notifier,
		Workers:     4,
	}
}

// ProcessCycle evaluates one cycle's listings. Per-listing failures are
// counted and logged, never aborting the remaining listings.
func (p *Pipeline) ProcessCycle(ctx context.Context, listings []*models.Listing) models.CycleStats {
	stats := models.CycleStats{CardsSeen: len(listings)}
	if len(listings) == 0 {
		return stats
	}

	// Overlapping area searches can surface the same property twice in one
	// batch; evaluation is keyed by identity, so duplicates must collapse
	// before any decision is made.
	decisions := p.evaluateAll(dedupeByKey(listings))

	now := time.Now()
	for _, d := range decisions {
		if err := p.apply(ctx, d, now, &stats); err != nil {
			log.Printf("Listing %s: %v", d.key, err)
			stats.Errors++
		}
	}
	return stats
}

// dedupeByKey keeps the first occurrence of each identity key, order
// preserved.
func dedupeByKey(listings []*models.Listing) []*models.Listing {
	seen := make(map[string]struct{}, len(listings))
	out := make([]*models.Listing, 0, len(listings))
	for _, l := range listings {
		key := identity.Key(l)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, l)
	}
	return out
}

func (p *Pipeline) evaluateAll(listings []*models.Listing) []decision {
	workers := p.Workers
	if workers < 1 {
		workers = 1
	}

	decisions := make([]decision, len(listings))
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i, l := range listings {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, l *models.Listing) {
			defer wg.Done()
			defer func() { <-sem }()
			decisions[i] = p.evaluate(l)
		}(i, l)
	}
	wg.Wait()
	return decisions
}

func (p *Pipeline) evaluate(l *models.Listing) (d decision) {
	d.listing = l
	d.key = identity.Key(l)
	d.fingerprint = identity.Fingerprint(l)

	defer func() {
		if r := recover(); r != nil {
			d.kind = decisionError
			d.err = fmt.Errorf("evaluate panic: %v", r)
		}
	}()

	alerted, err := p.Store.AlreadyAlerted(d.key, d.fingerprint)
	if err != nil {
		d.kind = decisionError
		d.err = fmt.Errorf("seen check: %w", err)
		return d
	}
	if alerted {
		d.kind = decisionSkipAlerted
		return d
	}

	passed, proximity := Evaluate(l, p.Criteria, time.Now())
	if !passed {
		d.kind = decisionRejected
		return d
	}

	d.score = Score(l, p.Preferences)
	d.score.ProximityKm = proximity
	if d.score.Overall < p.Threshold {
		d.kind = decisionBelowThreshold
		return d
	}

	d.kind = decisionAlert
	return d
}

func (p *Pipeline) apply(ctx context.Context, d decision, now time.Time, stats *models.CycleStats) error {
	switch d.kind {
	case decisionError:
		return d.err

	case decisionSkipAlerted:
		stats.Skipped++
		return nil

	case decisionRejected, decisionBelowThreshold:
		// Seen but not qualifying: remember it so it is not re-scored on
		// every cycle once the content stops changing.
		if err := p.Store.RecordSeen(d.key, d.fingerprint, now); err != nil {
			return fmt.Errorf("record seen: %w", err)
		}
		return nil

	case decisionAlert:
		stats.NewListings++
		payload := &models.AlertPayload{
			Listing:   d.listing,
			Score:     &d.score,
			CreatedAt: now,
		}

		if err := p.Notifier.Send(ctx, payload); err != nil {
			// Leave the listing un-alerted so a later cycle retries it.
			if seenErr := p.Store.RecordSeen(d.key, d.fingerprint, now); seenErr != nil {
				log.Printf("Listing %s: record seen after notify failure: %v", d.key, seenErr)
			}
			return fmt.Errorf("notify: %w", err)
		}

		if err := p.Store.RecordSeen(d.key, d.fingerprint, now); err != nil {
			return fmt.Errorf("record seen: %w", err)
		}
		if err := p.Store.MarkAlerted(d.key, now); err != nil {
			return fmt.Errorf("mark alerted: %w", err)
		}
		stats.AlertsSent++

		if p.Archive != nil {
			if err := p.Archive.RecordAlert(ctx, payload, d.fingerprint); err != nil {
				log.Printf("Listing %s: archive alert: %v", d.key, err)
			}
		}
		return nil
	}
	return nil
}
