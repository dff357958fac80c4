package service

import (
	"context"
	"encoding/json"
	"math"
	"strings"
	"sync"
	"time"

	apperrors "github.com/etf-dashboard/internal/errors"
	"github.com/etf-dashboard/internal/logging"
	"github.com/etf-dashboard/internal/storage"
	"github.com/etf-dashboard/internal/types"
)

// LedgerService owns the user's holdings and persists them under one session key
type LedgerService struct {
	store       storage.KVStore
	instruments []string
	key         string
	now         func() time.Time
	logger      *logging.Logger

	// mu serializes read-modify-write so an edit and its durable write are one step
	mu sync.Mutex
}

// NewLedgerService creates a new ledger service for the configured instruments
func NewLedgerService(store storage.KVStore, instruments []string, sessionKey string) *LedgerService {
	list := make([]string, len(instruments))
	copy(list, instruments)
	return &LedgerService{
		store:       store,
		instruments: list,
		key:         sessionKey,
		now:         time.Now,
		logger:      logging.GetGlobalLogger().WithComponent("ledger"),
	}
}

// Instruments returns the configured instrument list in order
func (s *LedgerService) Instruments() []string {
	out := make([]string, len(s.instruments))
	copy(out, s.instruments)
	return out
}

// DefaultPortfolio returns one zero holding per configured instrument followed by zero CASH
func (s *LedgerService) DefaultPortfolio() *types.Portfolio {
	holdings := make([]types.Holding, 0, len(s.instruments)+1)
	for _, inst := range s.instruments {
		holdings = append(holdings, types.Holding{Instrument: inst})
	}
	holdings = append(holdings, types.Holding{Instrument: types.CashInstrument})
	return &types.Portfolio{Holdings: holdings}
}

// Load returns the stored portfolio, or the default one when nothing usable is stored
func (s *LedgerService) Load(ctx context.Context) (*types.Portfolio, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

func (s *LedgerService) load(ctx context.Context) (*types.Portfolio, error) {
	data, ok, err := s.store.GetValue(ctx, s.key)
	if err != nil {
		return nil, apperrors.NewStorageError("load portfolio", err)
	}
	if !ok {
		return s.DefaultPortfolio(), nil
	}

	var stored types.Portfolio
	if err := json.Unmarshal(data, &stored); err != nil {
		s.logger.WithError(err).WithField("key", s.key).Warn("Stored portfolio is malformed, using default")
		return s.DefaultPortfolio(), nil
	}

	return s.reconcile(&stored), nil
}

// Save replaces the stored portfolio in a single write
func (s *LedgerService) Save(ctx context.Context, p *types.Portfolio) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(ctx, s.reconcile(p))
}

func (s *LedgerService) save(ctx context.Context, p *types.Portfolio) error {
	data, err := json.Marshal(p)
	if err != nil {
		return apperrors.NewInternalError("failed to encode portfolio", err)
	}
	if err := s.store.SetValue(ctx, s.key, data); err != nil {
		return apperrors.NewStorageError("save portfolio", err)
	}
	return nil
}

// Update sets the shares of one holding and persists the result.
// Negative and NaN share counts are stored as 0.
func (s *LedgerService) Update(ctx context.Context, instrument string, shares float64) (*types.Portfolio, error) {
	if math.IsInf(shares, 1) {
		return nil, apperrors.NewInvalidParameterError("shares", "must be a finite number")
	}
	shares = clampShares(shares)

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	next := current.Clone()
	idx := findHolding(next, instrument)
	if idx < 0 {
		return nil, apperrors.NewUnknownInstrumentError(instrument)
	}
	next.Holdings[idx].Shares = shares
	next.LastUpdated = s.now().UTC()

	if err := s.save(ctx, next); err != nil {
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"instrument": next.Holdings[idx].Instrument,
		"shares":     shares,
	}).Info("Holding updated")

	return next, nil
}

// Reset stores the default portfolio
func (s *LedgerService) Reset(ctx context.Context) (*types.Portfolio, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.DefaultPortfolio()
	p.LastUpdated = s.now().UTC()
	if err := s.save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// reconcile lays the holdings out in configured order with CASH last.
// Missing instruments get zero shares and unknown ones are dropped.
func (s *LedgerService) reconcile(p *types.Portfolio) *types.Portfolio {
	shares := make(map[string]float64, len(p.Holdings))
	for _, h := range p.Holdings {
		shares[h.Instrument] = clampShares(h.Shares)
	}

	out := s.DefaultPortfolio()
	out.LastUpdated = p.LastUpdated
	for i := range out.Holdings {
		out.Holdings[i].Shares = shares[out.Holdings[i].Instrument]
	}
	return out
}

// findHolding matches an instrument case-insensitively
func findHolding(p *types.Portfolio, instrument string) int {
	instrument = strings.TrimSpace(instrument)
	if idx := p.Find(instrument); idx >= 0 {
		return idx
	}
	for i, h := range p.Holdings {
		if strings.EqualFold(h.Instrument, instrument) {
			return i
		}
	}
	return -1
}

func clampShares(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
