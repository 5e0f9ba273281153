// Package settlement implements the parimutuel settlement engine: the
// market lifecycle state machine, pooled-stake accounting and payout
// calculation, the tiered fee model, and the resolution/dispute protocol
// with safe claim and withdrawal paths.
//
// Every public operation executes as a single atomic unit against one
// market aggregate: state is mutated on a clone, persisted, and only then
// swapped in. A failed operation leaves no partial state behind. Operations
// on the same market are serialized by a per-market mutex, plus an optional
// distributed lock when running multi-instance.
package settlement

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/0xBased-lang/kektech-backend/internal/domain"
)

// lockTTL bounds how long a distributed per-market lock is held.
const lockTTL = 10 * time.Second

// Params carries the tunable settlement parameters. Amounts are
// micro-tokens, rates are basis points.
type Params struct {
	MinBond              int64
	MaxBond              int64
	MinBondFeeBps        int64
	MaxBondFeeBps        int64
	MaxVoluntary         int64
	MaxVoluntaryBonusBps int64
	MaxTradingFeeBps     int64
	VoluntaryTaxBps      int64

	WhaleCapBps int64
	MinimumBet  int64
	MaximumBet  int64

	MinDisputeBond int64
	DisputeWindow  time.Duration
	EmergencyDelay time.Duration

	// ClaimTimeout bounds the outward transfer during a claim so a slow
	// receiver cannot hold the operation open indefinitely.
	ClaimTimeout time.Duration
}

// Alerter delivers operator notifications. Satisfied by notify.Notifier.
type Alerter interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Stores bundles the persistence dependencies of the service.
type Stores struct {
	Markets  domain.MarketStore
	Bets     domain.BetStore
	Disputes domain.DisputeStore
	Audit    domain.AuditStore
}

// Service is the settlement engine facade. All collaborators are resolved
// once at construction; nothing is looked up per operation.
type Service struct {
	params   Params
	fees     *FeeEngine
	access   domain.AccessChecker
	payee    domain.FeePayee
	treasury domain.Treasury
	clock    domain.Clock
	stores   Stores

	locks   domain.LockManager // optional
	odds    domain.OddsCache   // optional
	markets domain.MarketCache // optional
	events  *Publisher         // optional
	alerter Alerter            // optional
	logger  *slog.Logger

	mu   sync.RWMutex
	aggs map[string]*aggregate
}

// aggregate is the in-memory authoritative view of one market.
type aggregate struct {
	mu      sync.Mutex
	market  *domain.Market
	bets    map[string]*domain.Bet
	dispute *domain.Dispute // active dispute, nil when none
}

// Options carries the optional collaborators of the service.
type Options struct {
	Locks   domain.LockManager
	Odds    domain.OddsCache
	Markets domain.MarketCache
	Events  *Publisher
	Alerter Alerter
}

// NewService constructs the settlement engine. Call Hydrate before serving
// traffic so in-memory aggregates reflect persisted state.
func NewService(
	params Params,
	access domain.AccessChecker,
	payee domain.FeePayee,
	treasury domain.Treasury,
	clock domain.Clock,
	stores Stores,
	opts Options,
	logger *slog.Logger,
) *Service {
	return &Service{
		params: params,
		fees: NewFeeEngine(FeeParams{
			MinBond:              params.MinBond,
			MaxBond:              params.MaxBond,
			MinBondFeeBps:        params.MinBondFeeBps,
			MaxBondFeeBps:        params.MaxBondFeeBps,
			MaxVoluntary:         params.MaxVoluntary,
			MaxVoluntaryBonusBps: params.MaxVoluntaryBonusBps,
			MaxTradingFeeBps:     params.MaxTradingFeeBps,
			VoluntaryTaxBps:      params.VoluntaryTaxBps,
		}),
		access:   access,
		payee:    payee,
		treasury: treasury,
		clock:    clock,
		stores:   stores,
		locks:    opts.Locks,
		odds:     opts.Odds,
		markets:  opts.Markets,
		events:   opts.Events,
		alerter:  opts.Alerter,
		logger:   logger.With(slog.String("component", "settlement")),
		aggs:     make(map[string]*aggregate),
	}
}

// Fees exposes the pure fee engine for read endpoints and previews.
func (s *Service) Fees() *FeeEngine { return s.fees }

// Hydrate loads all persisted markets, bets and active disputes into
// memory. It must be called once before the service handles operations.
func (s *Service) Hydrate(ctx context.Context) error {
	markets, err := s.stores.Markets.List(ctx, domain.ListOpts{})
	if err != nil {
		return fmt.Errorf("settlement: hydrate markets: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range markets {
		m := markets[i]
		agg := &aggregate{
			market: &m,
			bets:   make(map[string]*domain.Bet),
		}

		bets, err := s.stores.Bets.ListByMarket(ctx, m.ID)
		if err != nil {
			return fmt.Errorf("settlement: hydrate bets for %s: %w", m.ID, err)
		}
		for j := range bets {
			b := bets[j]
			agg.bets[b.Account] = &b
		}

		if m.State == domain.MarketStateDisputed {
			d, err := s.stores.Disputes.GetActive(ctx, m.ID)
			if err == nil {
				agg.dispute = &d
			} else if !isNotFound(err) {
				return fmt.Errorf("settlement: hydrate dispute for %s: %w", m.ID, err)
			}
		}

		s.aggs[m.ID] = agg
	}

	s.logger.InfoContext(ctx, "hydrated settlement state",
		slog.Int("markets", len(markets)),
	)
	return nil
}

func isNotFound(err error) bool {
	return domain.Kind(err) == domain.KindNotFound
}

// get returns the aggregate for a market ID.
func (s *Service) get(id string) (*aggregate, error) {
	s.mu.RLock()
	agg, ok := s.aggs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("settlement: market %s: %w", id, domain.ErrNotFound)
	}
	return agg, nil
}

// withMarket runs fn with the aggregate locked, serializing all operations
// on the same market. The distributed lock (when configured) extends the
// serialization across instances.
func (s *Service) withMarket(ctx context.Context, id string, fn func(agg *aggregate) error) error {
	agg, err := s.get(id)
	if err != nil {
		return err
	}

	if s.locks != nil {
		unlock, err := s.locks.Acquire(ctx, "market:"+id, lockTTL)
		if err != nil {
			return fmt.Errorf("settlement: lock market %s: %w", id, err)
		}
		defer unlock()
	}

	agg.mu.Lock()
	defer agg.mu.Unlock()
	return fn(agg)
}

// persistMarket writes the mutated clone. The market row is the commit
// point: dependent rows (bets, disputes) are written first so a crash
// between writes leaves the aggregate reconstructible from the old market
// row.
func (s *Service) persistMarket(ctx context.Context, m *domain.Market) error {
	m.UpdatedAt = s.clock.Now()
	if err := s.stores.Markets.Upsert(ctx, *m); err != nil {
		return fmt.Errorf("settlement: persist market %s: %w", m.ID, err)
	}

	// Write-through snapshot for external readers. Best-effort: the
	// in-memory aggregate stays authoritative.
	if s.markets != nil {
		if err := s.markets.Set(ctx, *m); err != nil {
			s.logger.WarnContext(ctx, "market cache write failed",
				slog.String("market_id", m.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

func (s *Service) audit(ctx context.Context, event, marketID string, detail map[string]any) {
	if s.stores.Audit == nil {
		return
	}
	if err := s.stores.Audit.Log(ctx, event, marketID, detail); err != nil {
		s.logger.WarnContext(ctx, "audit log failed",
			slog.String("event", event),
			slog.String("market_id", marketID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Service) alert(ctx context.Context, event, title, message string) {
	if s.alerter == nil {
		return
	}
	if err := s.alerter.Notify(ctx, event, title, message); err != nil {
		s.logger.WarnContext(ctx, "notification failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

// ---------------------------------------------------------------------------
// Read operations
// ---------------------------------------------------------------------------

// GetMarket returns a snapshot of the market.
func (s *Service) GetMarket(ctx context.Context, id string) (domain.Market, error) {
	agg, err := s.get(id)
	if err != nil {
		return domain.Market{}, err
	}
	agg.mu.Lock()
	defer agg.mu.Unlock()
	return *agg.market.Clone(), nil
}

// ListMarkets returns market snapshots, optionally filtered by state.
func (s *Service) ListMarkets(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	return s.stores.Markets.List(ctx, opts)
}

// GetBet returns the bet record for an account, including claim status.
func (s *Service) GetBet(ctx context.Context, marketID, account string) (domain.Bet, error) {
	agg, err := s.get(marketID)
	if err != nil {
		return domain.Bet{}, err
	}
	agg.mu.Lock()
	defer agg.mu.Unlock()
	b, ok := agg.bets[account]
	if !ok {
		return domain.Bet{}, fmt.Errorf("settlement: bet %s/%s: %w", marketID, account, domain.ErrNotFound)
	}
	return *b, nil
}

// GetDispute returns the active dispute for a market, if any.
func (s *Service) GetDispute(ctx context.Context, marketID string) (domain.Dispute, error) {
	agg, err := s.get(marketID)
	if err != nil {
		return domain.Dispute{}, err
	}
	agg.mu.Lock()
	defer agg.mu.Unlock()
	if agg.dispute == nil {
		return domain.Dispute{}, fmt.Errorf("settlement: dispute %s: %w", marketID, domain.ErrNoActiveDispute)
	}
	return *agg.dispute, nil
}

// Odds returns the current implied odds pair for a market.
func (s *Service) Odds(ctx context.Context, marketID string) (domain.OddsPair, error) {
	agg, err := s.get(marketID)
	if err != nil {
		return domain.OddsPair{}, err
	}
	agg.mu.Lock()
	defer agg.mu.Unlock()
	return impliedOdds(agg.market), nil
}

// CalculatePayout previews the payout an account would receive.
func (s *Service) CalculatePayout(ctx context.Context, marketID, account string) (int64, error) {
	agg, err := s.get(marketID)
	if err != nil {
		return 0, err
	}
	agg.mu.Lock()
	defer agg.mu.Unlock()

	b, ok := agg.bets[account]
	if !ok || b.Claimed {
		return 0, nil
	}
	return payout(agg.market, *b), nil
}

// cacheOdds best-effort refreshes the odds cache after a pool change.
func (s *Service) cacheOdds(ctx context.Context, m *domain.Market) {
	if s.odds == nil {
		return
	}
	if err := s.odds.SetOdds(ctx, m.ID, impliedOdds(m), s.clock.Now()); err != nil {
		s.logger.DebugContext(ctx, "odds cache update failed",
			slog.String("market_id", m.ID),
			slog.String("error", err.Error()),
		)
	}
}
