package settlement

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/0xBased-lang/kektech-backend/internal/domain"
)

// Event channels published to the signal bus. The WebSocket hub bridges
// these to connected clients.
const (
	ChannelMarket     = "ch:market"
	ChannelBet        = "ch:bet"
	ChannelResolution = "ch:resolution"
	ChannelClaim      = "ch:claim"
)

// Event type names.
const (
	eventMarketCreated      = "market_created"
	eventMarketApproved     = "market_approved"
	eventMarketRejected     = "market_rejected"
	eventMarketActivated    = "market_activated"
	eventMarketCancelled    = "market_cancelled"
	eventBetPlaced          = "bet_placed"
	eventResolutionProposed = "resolution_proposed"
	eventResolutionDisputed = "resolution_disputed"
	eventMarketFinalized    = "market_finalized"
	eventWinningsClaimed    = "winnings_claimed"
)

// Event is the wire format for settlement notifications. Append-only; the
// core has no dependency on who listens.
type Event struct {
	Type      string         `json:"type"`
	MarketID  string         `json:"market_id"`
	State     string         `json:"state"`
	Detail    map[string]any `json:"detail,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Publisher serializes settlement events onto the signal bus.
type Publisher struct {
	bus    domain.SignalBus
	clock  domain.Clock
	logger *slog.Logger
}

// NewPublisher creates a Publisher on top of the given bus.
func NewPublisher(bus domain.SignalBus, clock domain.Clock, logger *slog.Logger) *Publisher {
	return &Publisher{
		bus:    bus,
		clock:  clock,
		logger: logger.With(slog.String("component", "events")),
	}
}

// Publish emits one event. Failures are logged, never propagated: event
// delivery must not affect the outcome of a committed operation.
func (p *Publisher) Publish(ctx context.Context, channel string, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		p.logger.WarnContext(ctx, "marshal event failed",
			slog.String("type", ev.Type),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := p.bus.Publish(ctx, channel, payload); err != nil {
		p.logger.WarnContext(ctx, "publish event failed",
			slog.String("type", ev.Type),
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
}

// publish is the service-side convenience wrapper around the Publisher.
func (s *Service) publish(ctx context.Context, channel, eventType string, m *domain.Market, detail map[string]any) {
	if s.events == nil {
		return
	}
	s.events.Publish(ctx, channel, Event{
		Type:      eventType,
		MarketID:  m.ID,
		State:     string(m.State),
		Detail:    detail,
		Timestamp: s.clock.Now(),
	})
}
