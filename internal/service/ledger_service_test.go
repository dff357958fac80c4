package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/etf-dashboard/internal/errors"
	"github.com/etf-dashboard/internal/storage"
	"github.com/etf-dashboard/internal/types"
)

const testSessionKey = "portfolio:test"

var testInstruments = []string{"VTI", "VXUS", "BND"}

type failingKV struct {
	getErr error
	setErr error
}

func (f *failingKV) GetValue(ctx context.Context, key string) ([]byte, bool, error) {
	return nil, false, f.getErr
}

func (f *failingKV) SetValue(ctx context.Context, key string, value []byte) error {
	return f.setErr
}

func newTestLedger(t *testing.T, store storage.KVStore) *LedgerService {
	t.Helper()
	ledger := NewLedgerService(store, testInstruments, testSessionKey)
	ledger.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	return ledger
}

func instrumentsOf(p *types.Portfolio) []string {
	out := make([]string, len(p.Holdings))
	for i, h := range p.Holdings {
		out[i] = h.Instrument
	}
	return out
}

func TestLedgerService_LoadDefault(t *testing.T) {
	store := storage.NewMemoryKV()
	ledger := newTestLedger(t, store)

	p, err := ledger.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"VTI", "VXUS", "BND", types.CashInstrument}, instrumentsOf(p))
	for _, h := range p.Holdings {
		assert.Zero(t, h.Shares)
	}

	// Loading does not write the default
	_, ok, _ := store.GetValue(context.Background(), testSessionKey)
	assert.False(t, ok)
}

func TestLedgerService_LoadMalformed(t *testing.T) {
	store := storage.NewMemoryKV()
	require.NoError(t, store.SetValue(context.Background(), testSessionKey, []byte("{holdings: oops")))

	p, err := newTestLedger(t, store).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"VTI", "VXUS", "BND", types.CashInstrument}, instrumentsOf(p))
}

func TestLedgerService_LoadReconciles(t *testing.T) {
	store := storage.NewMemoryKV()
	stored := `{"holdings":[{"instrument":"CASH","shares":250},{"instrument":"BND","shares":4},{"instrument":"OLD","shares":9},{"instrument":"VTI","shares":-3}],"lastUpdated":"2024-01-02T00:00:00Z"}`
	require.NoError(t, store.SetValue(context.Background(), testSessionKey, []byte(stored)))

	p, err := newTestLedger(t, store).Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []types.Holding{
		{Instrument: "VTI", Shares: 0},
		{Instrument: "VXUS", Shares: 0},
		{Instrument: "BND", Shares: 4},
		{Instrument: types.CashInstrument, Shares: 250},
	}, p.Holdings)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), p.LastUpdated)
}

func TestLedgerService_Update(t *testing.T) {
	store := storage.NewMemoryKV()
	ledger := newTestLedger(t, store)
	ctx := context.Background()

	p, err := ledger.Update(ctx, "VXUS", 12.5)
	require.NoError(t, err)
	assert.Equal(t, 12.5, p.Holdings[1].Shares)
	assert.Equal(t, ledger.now(), p.LastUpdated)

	loaded, err := newTestLedger(t, store).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, p, loaded)
}

func TestLedgerService_UpdateCash(t *testing.T) {
	ledger := newTestLedger(t, storage.NewMemoryKV())

	p, err := ledger.Update(context.Background(), types.CashInstrument, 1000)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, p.Holdings[3].Shares)
}

func TestLedgerService_UpdateClampsNegative(t *testing.T) {
	ledger := newTestLedger(t, storage.NewMemoryKV())
	ctx := context.Background()

	_, err := ledger.Update(ctx, "VTI", 3)
	require.NoError(t, err)

	p, err := ledger.Update(ctx, "VTI", -5)
	require.NoError(t, err)
	assert.Equal(t, 0.0, p.Holdings[0].Shares)

	p, err = ledger.Update(ctx, "VTI", math.NaN())
	require.NoError(t, err)
	assert.Equal(t, 0.0, p.Holdings[0].Shares)
}

func TestLedgerService_UpdateRejectsInfinity(t *testing.T) {
	ledger := newTestLedger(t, storage.NewMemoryKV())

	_, err := ledger.Update(context.Background(), "VTI", math.Inf(1))
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInvalidParameter, apperrors.Categorize(err).Code)
}

func TestLedgerService_UpdateCaseInsensitive(t *testing.T) {
	ledger := newTestLedger(t, storage.NewMemoryKV())

	p, err := ledger.Update(context.Background(), " bnd ", 2)
	require.NoError(t, err)
	assert.Equal(t, 2.0, p.Holdings[2].Shares)
}

func TestLedgerService_UpdateUnknownInstrument(t *testing.T) {
	store := storage.NewMemoryKV()
	ledger := newTestLedger(t, store)

	_, err := ledger.Update(context.Background(), "QQQ", 1)
	assert.ErrorIs(t, err, apperrors.ErrUnknownInstrument)

	_, ok, _ := store.GetValue(context.Background(), testSessionKey)
	assert.False(t, ok, "failed update must not persist")
}

func TestLedgerService_StoreFailures(t *testing.T) {
	boom := errors.New("connection refused")

	_, err := newTestLedger(t, &failingKV{getErr: boom}).Load(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeStorageError, apperrors.Categorize(err).Code)
	assert.ErrorIs(t, err, boom)

	_, err = newTestLedger(t, &failingKV{setErr: boom}).Update(context.Background(), "VTI", 1)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeStorageError, apperrors.Categorize(err).Code)
}

func TestLedgerService_SaveReconciles(t *testing.T) {
	store := storage.NewMemoryKV()
	ledger := newTestLedger(t, store)
	ctx := context.Background()

	err := ledger.Save(ctx, &types.Portfolio{Holdings: []types.Holding{{Instrument: "BND", Shares: 3}}})
	require.NoError(t, err)

	p, err := ledger.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"VTI", "VXUS", "BND", types.CashInstrument}, instrumentsOf(p))
	assert.Equal(t, 3.0, p.Holdings[2].Shares)
}

func TestLedgerService_Reset(t *testing.T) {
	store := storage.NewMemoryKV()
	ledger := newTestLedger(t, store)
	ctx := context.Background()

	_, err := ledger.Update(ctx, "VTI", 8)
	require.NoError(t, err)

	p, err := ledger.Reset(ctx)
	require.NoError(t, err)
	for _, h := range p.Holdings {
		assert.Zero(t, h.Shares)
	}

	loaded, err := ledger.Load(ctx)
	require.NoError(t, err)
	assert.Zero(t, loaded.Holdings[0].Shares)
}

func TestLedgerService_ConcurrentUpdates(t *testing.T) {
	ledger := newTestLedger(t, storage.NewMemoryKV())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i, inst := range testInstruments {
		i, inst := i, inst
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledger.Update(ctx, inst, float64(i+1))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	p, err := ledger.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1.0, p.Holdings[0].Shares)
	assert.Equal(t, 2.0, p.Holdings[1].Shares)
	assert.Equal(t, 3.0, p.Holdings[2].Shares)
}
