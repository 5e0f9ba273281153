package settlement

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/0xBased-lang/kektech-backend/internal/domain"
)

// tokens converts a whole-token amount into micro-token units.
func tokens(f float64) int64 {
	return int64(f * float64(domain.UnitsPerToken))
}

// ---------------------------------------------------------------------------
// In-memory fakes
// ---------------------------------------------------------------------------

type memMarketStore struct {
	mu      sync.Mutex
	markets map[string]domain.Market
}

func newMemMarketStore() *memMarketStore {
	return &memMarketStore{markets: make(map[string]domain.Market)}
}

func (s *memMarketStore) Upsert(_ context.Context, m domain.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markets[m.ID] = m
	return nil
}

func (s *memMarketStore) GetByID(_ context.Context, id string) (domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.markets[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

func (s *memMarketStore) List(_ context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Market
	for _, m := range s.markets {
		if opts.State != "" && m.State != opts.State {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *memMarketStore) ListSettledBefore(_ context.Context, before time.Time) ([]domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Market
	for _, m := range s.markets {
		if m.State.Terminal() && m.FinalizedAt != nil && m.FinalizedAt.Before(before) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *memMarketStore) Count(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.markets)), nil
}

type memBetStore struct {
	mu   sync.Mutex
	bets map[string]domain.Bet // key: marketID + "/" + account
}

func newMemBetStore() *memBetStore {
	return &memBetStore{bets: make(map[string]domain.Bet)}
}

func betKey(marketID, account string) string { return marketID + "/" + account }

func (s *memBetStore) Upsert(_ context.Context, b domain.Bet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bets[betKey(b.MarketID, b.Account)] = b
	return nil
}

func (s *memBetStore) Get(_ context.Context, marketID, account string) (domain.Bet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bets[betKey(marketID, account)]
	if !ok {
		return domain.Bet{}, domain.ErrNotFound
	}
	return b, nil
}

func (s *memBetStore) ListByMarket(_ context.Context, marketID string) ([]domain.Bet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Bet
	for _, b := range s.bets {
		if b.MarketID == marketID {
			out = append(out, b)
		}
	}
	return out, nil
}

type memDisputeStore struct {
	mu       sync.Mutex
	disputes map[string]domain.Dispute
}

func newMemDisputeStore() *memDisputeStore {
	return &memDisputeStore{disputes: make(map[string]domain.Dispute)}
}

func (s *memDisputeStore) Upsert(_ context.Context, d domain.Dispute) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disputes[d.ID] = d
	return nil
}

func (s *memDisputeStore) GetActive(_ context.Context, marketID string) (domain.Dispute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.disputes {
		if d.MarketID == marketID && d.Active {
			return d, nil
		}
	}
	return domain.Dispute{}, domain.ErrNotFound
}

func (s *memDisputeStore) ListByMarket(_ context.Context, marketID string) ([]domain.Dispute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Dispute
	for _, d := range s.disputes {
		if d.MarketID == marketID {
			out = append(out, d)
		}
	}
	return out, nil
}

type memAuditStore struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
}

func (s *memAuditStore) Log(_ context.Context, event, marketID string, detail map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, domain.AuditEntry{
		ID: int64(len(s.entries) + 1), Event: event, MarketID: marketID, Detail: detail,
	})
	return nil
}

func (s *memAuditStore) List(_ context.Context, marketID string, _ domain.ListOpts) ([]domain.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.AuditEntry
	for _, e := range s.entries {
		if marketID == "" || e.MarketID == marketID {
			out = append(out, e)
		}
	}
	return out, nil
}

// fakeClock is a manually-advanced ledger clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// fakeAccess grants roles from a static map.
type fakeAccess struct {
	roles map[string][]string // account -> roles
}

func (a *fakeAccess) HasRole(role, account string) bool {
	for _, r := range a.roles[account] {
		if r == role {
			return true
		}
	}
	return false
}

// fakePayee records received fees and can be toggled to fail.
type fakePayee struct {
	mu       sync.Mutex
	fail     bool
	received int64
}

func (p *fakePayee) Receive(_ context.Context, _ string, amount int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return fmt.Errorf("payee unavailable")
	}
	p.received += amount
	return nil
}

func (p *fakePayee) Received() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.received
}

func (p *fakePayee) SetFail(fail bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fail = fail
}

// fakeTreasury records credited balances and can be toggled to fail.
type fakeTreasury struct {
	mu       sync.Mutex
	fail     bool
	balances map[string]int64
}

func newFakeTreasury() *fakeTreasury {
	return &fakeTreasury{balances: make(map[string]int64)}
}

func (t *fakeTreasury) Credit(_ context.Context, account string, amount int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fail {
		return fmt.Errorf("treasury unavailable")
	}
	t.balances[account] += amount
	return nil
}

func (t *fakeTreasury) Balance(account string) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.balances[account]
}

func (t *fakeTreasury) SetFail(fail bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fail = fail
}

// ---------------------------------------------------------------------------
// Fixture
// ---------------------------------------------------------------------------

const (
	acctAdmin    = "admin-1"
	acctResolver = "resolver-1"
	acctCreator  = "creator-1"
)

type fixture struct {
	svc      *Service
	clock    *fakeClock
	payee    *fakePayee
	treasury *fakeTreasury
	markets  *memMarketStore
	bets     *memBetStore
	disputes *memDisputeStore
	audit    *memAuditStore
}

func defaultParams() Params {
	return Params{
		MinBond:              tokens(10),
		MaxBond:              tokens(1000),
		MinBondFeeBps:        50,
		MaxBondFeeBps:        200,
		MaxVoluntary:         tokens(1000),
		MaxVoluntaryBonusBps: 800,
		MaxTradingFeeBps:     1000,
		VoluntaryTaxBps:      1000,
		WhaleCapBps:          2000,
		MinimumBet:           tokens(0.01),
		MaximumBet:           tokens(100),
		MinDisputeBond:       tokens(0.1),
		DisputeWindow:        48 * time.Hour,
		EmergencyDelay:       90 * 24 * time.Hour,
		ClaimTimeout:         5 * time.Second,
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		clock:    &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
		payee:    &fakePayee{},
		treasury: newFakeTreasury(),
		markets:  newMemMarketStore(),
		bets:     newMemBetStore(),
		disputes: newMemDisputeStore(),
		audit:    &memAuditStore{},
	}

	access := &fakeAccess{roles: map[string][]string{
		acctAdmin:    {domain.RoleAdmin},
		acctResolver: {domain.RoleResolver},
	}}

	f.svc = NewService(
		defaultParams(),
		access,
		f.payee,
		f.treasury,
		f.clock,
		Stores{
			Markets:  f.markets,
			Bets:     f.bets,
			Disputes: f.disputes,
			Audit:    f.audit,
		},
		Options{},
		slog.New(slog.DiscardHandler),
	)
	return f
}

// createMarket proposes a market with sane defaults and returns it.
func (f *fixture) createMarket(t *testing.T) domain.Market {
	t.Helper()
	m, err := f.svc.CreateMarket(context.Background(), CreateMarketRequest{
		Creator:     acctCreator,
		Question:    "Will X happen?",
		Outcome1:    "YES",
		Outcome2:    "NO",
		Deadline:    f.clock.Now().Add(time.Hour),
		Bond:        tokens(10),
		PlatformBps: 3000,
		CreatorBps:  4000,
		StakingBps:  3000,
	})
	require.NoError(t, err)
	return m
}

// activeMarket creates, approves and activates a market.
func (f *fixture) activeMarket(t *testing.T) domain.Market {
	t.Helper()
	ctx := context.Background()
	m := f.createMarket(t)
	require.NoError(t, f.svc.Approve(ctx, m.ID, acctAdmin))
	require.NoError(t, f.svc.Activate(ctx, m.ID, acctAdmin))
	got, err := f.svc.GetMarket(ctx, m.ID)
	require.NoError(t, err)
	return got
}

// bet places a bet without deadline or slippage constraints.
func (f *fixture) bet(t *testing.T, marketID, account string, outcome domain.Outcome, amount int64) PlaceBetResult {
	t.Helper()
	res, err := f.svc.PlaceBet(context.Background(), marketID, account, outcome, amount, 0, time.Time{})
	require.NoError(t, err)
	return res
}

// resolve fast-forwards past the deadline and proposes a resolution.
func (f *fixture) resolve(t *testing.T, m domain.Market, outcome domain.Outcome) {
	t.Helper()
	if f.clock.Now().Before(m.Deadline) {
		f.clock.Set(m.Deadline)
	}
	require.NoError(t, f.svc.ProposeResolution(context.Background(), m.ID, acctResolver, outcome, "observed"))
}

// finalizeVia resolves and then admin-finalizes with the same outcome.
func (f *fixture) finalizeVia(t *testing.T, m domain.Market, outcome domain.Outcome) {
	t.Helper()
	f.resolve(t, m, outcome)
	require.NoError(t, f.svc.AdminResolveMarket(context.Background(), m.ID, acctAdmin, outcome, "fast path"))
}
