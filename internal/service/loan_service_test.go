package service

import (
	"context"
	"log/slog"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcwhitfield/vaultguard/internal/chain"
	"github.com/marcwhitfield/vaultguard/internal/domain"
	"github.com/marcwhitfield/vaultguard/internal/health"
	"github.com/marcwhitfield/vaultguard/internal/txmgr"
)

const (
	contractAddr = "0x00000000000000000000000000000000000000cc"
	ownerAddr    = "0x00000000000000000000000000000000000000aa"
)

type fakeExecutor struct {
	mu      sync.Mutex
	calls   []chain.CallRequest
	execErr error
}

func (f *fakeExecutor) EstimateFee(ctx context.Context, call chain.CallRequest) (chain.FeeEstimate, error) {
	return chain.FeeEstimate{GasLimit: 60_000, GasPrice: big.NewInt(10)}, nil
}

func (f *fakeExecutor) SubmitAndWait(ctx context.Context, call chain.CallRequest) (txmgr.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	if f.execErr != nil {
		return txmgr.Receipt{}, f.execErr
	}
	return txmgr.Receipt{TxHash: "0xok", BlockNumber: 12}, nil
}

type fakeStore struct {
	mu        sync.Mutex
	positions map[string]domain.Position
	healthHit int
}

func newFakeStore(positions ...domain.Position) *fakeStore {
	s := &fakeStore{positions: make(map[string]domain.Position)}
	for _, p := range positions {
		s.positions[p.ID] = p
	}
	return s
}

func (s *fakeStore) Create(ctx context.Context, p domain.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[p.ID] = p
	return nil
}

func (s *fakeStore) GetByID(ctx context.Context, id string) (domain.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.positions[id]
	if !ok {
		return domain.Position{}, domain.ErrNotFound
	}
	return p, nil
}

func (s *fakeStore) ListActive(ctx context.Context) ([]domain.Position, error) {
	return nil, nil
}

func (s *fakeStore) UpdateHealth(ctx context.Context, id string, ratio float64, score int, level domain.RiskLevel, monitoredAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.positions[id]
	p.CollateralRatio = ratio
	p.HealthScore = score
	p.RiskLevel = level
	s.positions[id] = p
	s.healthHit++
	return nil
}

func (s *fakeStore) UpdateAmounts(ctx context.Context, id string, collateral, debt float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.positions[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.CollateralAmount = collateral
	p.DebtAmount = debt
	s.positions[id] = p
	return nil
}

func (s *fakeStore) IncrementAlerts(ctx context.Context, id string) error { return nil }

func (s *fakeStore) SetStatus(ctx context.Context, id string, status domain.PositionStatus) error {
	return nil
}

type fakePrices struct {
	price float64
	err   error
}

func (f *fakePrices) GetReferencePrice(ctx context.Context, asset string) (float64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.price, nil
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newService(store *fakeStore, exec *fakeExecutor, prices *fakePrices) *LoanService {
	return NewLoanService(store, prices, exec, health.NewEvaluator(1.20, 1.15), contractAddr, testLogger())
}

func activePosition(id string, collateral, debt float64) domain.Position {
	return domain.Position{
		ID:               id,
		Owner:            ownerAddr,
		Asset:            "ETH",
		Status:           domain.PositionStatusActive,
		CollateralAmount: collateral,
		DebtAmount:       debt,
		RiskLevel:        domain.RiskSafe,
	}
}

func TestSupply(t *testing.T) {
	store := newFakeStore(activePosition("pos-1", 100, 50))
	exec := &fakeExecutor{}
	svc := newService(store, exec, &fakePrices{price: 1.0})

	receipt, err := svc.Supply(context.Background(), "pos-1", 40)
	require.NoError(t, err)
	assert.Equal(t, "0xok", receipt.TxHash)

	require.Len(t, exec.calls, 1)
	call := exec.calls[0]
	assert.Equal(t, contractAddr, call.Target)
	assert.Equal(t, "supply", call.Method)
	require.Len(t, call.Args, 2)
	assert.Equal(t, common.HexToAddress(ownerAddr), call.Args[0])
	assert.Equal(t, 0, chain.ToWei(40).Cmp(call.Args[1].(*big.Int)))

	got := store.positions["pos-1"]
	assert.InDelta(t, 140, got.CollateralAmount, 1e-9)
	assert.InDelta(t, 50, got.DebtAmount, 1e-9)
	// Health was refreshed with the new amounts: 140/50 = 2.8.
	assert.InDelta(t, 2.8, got.CollateralRatio, 1e-9)
	assert.Equal(t, 100, got.HealthScore)
}

func TestBorrow(t *testing.T) {
	store := newFakeStore(activePosition("pos-1", 300, 100))
	exec := &fakeExecutor{}
	svc := newService(store, exec, &fakePrices{price: 1.0})

	_, err := svc.Borrow(context.Background(), "pos-1", 50)
	require.NoError(t, err)

	got := store.positions["pos-1"]
	assert.InDelta(t, 150, got.DebtAmount, 1e-9)
	assert.Equal(t, "borrow", exec.calls[0].Method)
}

func TestRepayClampsToZero(t *testing.T) {
	store := newFakeStore(activePosition("pos-1", 300, 40))
	exec := &fakeExecutor{}
	svc := newService(store, exec, &fakePrices{price: 1.0})

	_, err := svc.Repay(context.Background(), "pos-1", 100)
	require.NoError(t, err)

	got := store.positions["pos-1"]
	assert.Zero(t, got.DebtAmount)
	assert.Equal(t, domain.RiskSafe, got.RiskLevel)
}

func TestWithdrawRejectsOverdraw(t *testing.T) {
	store := newFakeStore(activePosition("pos-1", 100, 10))
	exec := &fakeExecutor{}
	svc := newService(store, exec, &fakePrices{price: 1.0})

	_, err := svc.Withdraw(context.Background(), "pos-1", 150)
	require.Error(t, err)
	assert.Empty(t, exec.calls)
	assert.InDelta(t, 100, store.positions["pos-1"].CollateralAmount, 1e-9)
}

func TestMutateRejectsNonPositiveAmount(t *testing.T) {
	store := newFakeStore(activePosition("pos-1", 100, 10))
	exec := &fakeExecutor{}
	svc := newService(store, exec, &fakePrices{price: 1.0})

	_, err := svc.Supply(context.Background(), "pos-1", 0)
	require.Error(t, err)
	_, err = svc.Borrow(context.Background(), "pos-1", -5)
	require.Error(t, err)
	assert.Empty(t, exec.calls)
}

func TestMutateRejectsInactivePosition(t *testing.T) {
	pos := activePosition("pos-1", 100, 10)
	pos.Status = domain.PositionStatusLiquidated
	store := newFakeStore(pos)
	exec := &fakeExecutor{}
	svc := newService(store, exec, &fakePrices{price: 1.0})

	_, err := svc.Supply(context.Background(), "pos-1", 10)
	assert.ErrorIs(t, err, domain.ErrPositionNotActive)
	assert.Empty(t, exec.calls)
}

func TestMutateExecutionFailureLeavesAmounts(t *testing.T) {
	store := newFakeStore(activePosition("pos-1", 100, 50))
	exec := &fakeExecutor{execErr: &txmgr.TimeoutError{TxHash: "0xslow", Waited: 5 * time.Minute}}
	svc := newService(store, exec, &fakePrices{price: 1.0})

	_, err := svc.Supply(context.Background(), "pos-1", 40)
	require.Error(t, err)

	var toErr *txmgr.TimeoutError
	assert.ErrorAs(t, err, &toErr)

	// Unknown outcome: local amounts stay as they were.
	assert.InDelta(t, 100, store.positions["pos-1"].CollateralAmount, 1e-9)
}

func TestMutateMissingPriceSkipsHealthRefresh(t *testing.T) {
	store := newFakeStore(activePosition("pos-1", 100, 50))
	exec := &fakeExecutor{}
	svc := newService(store, exec, &fakePrices{err: domain.ErrNotFound})

	_, err := svc.Supply(context.Background(), "pos-1", 40)
	require.NoError(t, err)

	assert.InDelta(t, 140, store.positions["pos-1"].CollateralAmount, 1e-9)
	assert.Zero(t, store.healthHit)
}

func TestSubmitTransactionPassthrough(t *testing.T) {
	store := newFakeStore()
	exec := &fakeExecutor{}
	svc := newService(store, exec, &fakePrices{price: 1.0})

	receipt, err := svc.SubmitTransaction(context.Background(), contractAddr, "repay", []any{common.HexToAddress(ownerAddr), big.NewInt(5)})
	require.NoError(t, err)
	assert.Equal(t, "0xok", receipt.TxHash)

	require.Len(t, exec.calls, 1)
	assert.Equal(t, "repay", exec.calls[0].Method)
}
