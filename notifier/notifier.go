package notifier

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"nobroker_watchdog/models"
)

// ErrNoChannels means no configured channel accepted the alert. The
// caller leaves the listing un-alerted so a later cycle retries it.
var ErrNoChannels = errors.New("notifier: all channels failed or none configured")

// Channel is one delivery mechanism for alerts.
type Channel interface {
	Name() string
	Send(ctx context.Context, payload *models.AlertPayload) error
}

// Dispatcher tries channels in the configured order and stops at the
// first success, so a given alert is delivered exactly once.
type Dispatcher struct {
	order    []string
	channels map[string]Channel
}

// NewDispatcher wires the available channels in the given preference
// order (channel names, case-insensitive). Channels named in the order
// but not available (missing credentials) are skipped.
func NewDispatcher(order []string, channels ...Channel) *Dispatcher {
	byName := make(map[string]Channel, len(channels))
	for _, ch := range channels {
		byName[strings.ToUpper(ch.Name())] = ch
	}
	normalized := make([]string, 0, len(order))
	for _, name := range order {
		normalized = append(normalized, strings.ToUpper(strings.TrimSpace(name)))
	}
	return &Dispatcher{order: normalized, channels: byName}
}

// Send dispatches the payload through the first channel that accepts it.
func (d *Dispatcher) Send(ctx context.Context, payload *models.AlertPayload) error {
	deliveryID := uuid.New().String()[:8]

	var lastErr error
	for _, name := range d.order {
		ch, ok := d.channels[name]
		if !ok {
			continue
		}
		if err := ch.Send(ctx, payload); err != nil {
			lastErr = err
			log.Printf("Delivery %s via %s failed: %v", deliveryID, name, err)
			continue
		}
		log.Printf("Delivery %s sent via %s (listing %s)", deliveryID, name, payload.Listing.ID)
		return nil
	}

	if lastErr != nil {
		return fmt.Errorf("%w: %v", ErrNoChannels, lastErr)
	}
	return ErrNoChannels
}
