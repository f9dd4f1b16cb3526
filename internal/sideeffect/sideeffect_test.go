package sideeffect

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fundops/backend/internal/logging"
	"fundops/backend/internal/repository"
	"fundops/backend/pkg/models"
)

var now = time.Date(2025, 6, 10, 9, 30, 0, 0, time.UTC)

func newRegistry(store Store) *Registry {
	return NewRegistry(store, logging.NewWithWriter(&bytes.Buffer{}, "debug"))
}

type fixture struct {
	store *repository.MemoryStore
	fund  *models.Fund
	lpA   *models.LP
	lpB   *models.LP
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	s := repository.NewMemoryStore()
	fund := &models.Fund{Name: "1호 조합", Status: models.FundStatusForming, Commitment: 3_000_000_000}
	require.NoError(t, s.CreateFund(ctx, fund))
	lpA := &models.LP{FundID: fund.ID, Name: "LP A", Commitment: 1_000_000_000, PaidIn: 100_000_000}
	lpB := &models.LP{FundID: fund.ID, Name: "LP B", Commitment: 2_000_000_000}
	require.NoError(t, s.CreateLP(ctx, lpA))
	require.NoError(t, s.CreateLP(ctx, lpB))
	return &fixture{store: s, fund: fund, lpA: lpA, lpB: lpB}
}

func TestIsPaymentConfirmation(t *testing.T) {
	assert.True(t, IsPaymentConfirmation("출자금 납입확인"))
	assert.True(t, IsPaymentConfirmation("출자금 납입 확인"))
	assert.True(t, IsPaymentConfirmation("납 입 확 인 (LP별)"))
	assert.False(t, IsPaymentConfirmation("출자요청 공문 발송"))
}

func TestCapitalCallID(t *testing.T) {
	id, ok := CapitalCallID("2차 캐피탈콜 capital_call_id=42 메모")
	require.True(t, ok)
	assert.Equal(t, int64(42), id)

	id, ok = CapitalCallID("capital_call_id = 7")
	require.True(t, ok)
	assert.Equal(t, int64(7), id)

	_, ok = CapitalCallID("lp_transfer_id=3")
	assert.False(t, ok)
}

func TestCapitalCallPaymentRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	call := &models.CapitalCall{FundID: f.fund.ID, CallDate: now, TotalAmount: 300_000_000}
	require.NoError(t, f.store.CreateCapitalCall(ctx, call, []*models.CapitalCallItem{
		{LPID: f.lpA.ID, Amount: 100_000_000},
		{LPID: f.lpA.ID, Amount: 200_000_000},
	}))

	inst := &models.WorkflowInstance{ID: 99, Memo: "capital_call_id=" + itoa(call.ID)}
	step := &models.WorkflowStepInstance{StepName: "출자금 납입확인"}
	reg := newRegistry(f.store)

	applied, err := reg.Dispatch(ctx, Event{Trigger: StepCompleted, Instance: inst, Step: step, Now: now})
	require.NoError(t, err)
	assert.Equal(t, []string{"capital_call_payment"}, applied)

	lp, err := f.store.GetLP(ctx, f.lpA.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(400_000_000), lp.PaidIn)

	items, err := f.store.ListCapitalCallItems(ctx, call.ID)
	require.NoError(t, err)
	for _, it := range items {
		assert.True(t, it.Paid)
		require.NotNil(t, it.PaidDate)
		assert.Equal(t, time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC), *it.PaidDate)
	}

	applied, err = reg.Dispatch(ctx, Event{Trigger: StepUndone, Instance: inst, Step: step, Now: now})
	require.NoError(t, err)
	assert.Equal(t, []string{"capital_call_payment_undo"}, applied)

	lp, err = f.store.GetLP(ctx, f.lpA.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100_000_000), lp.PaidIn)
	items, err = f.store.ListCapitalCallItems(ctx, call.ID)
	require.NoError(t, err)
	for _, it := range items {
		assert.False(t, it.Paid)
		assert.Nil(t, it.PaidDate)
	}
}

func TestCapitalCallUndoFloorsAtZero(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	paid := now
	call := &models.CapitalCall{FundID: f.fund.ID, CallDate: now}
	require.NoError(t, f.store.CreateCapitalCall(ctx, call, []*models.CapitalCallItem{
		{LPID: f.lpB.ID, Amount: 500_000_000, Paid: true, PaidDate: &paid},
	}))

	inst := &models.WorkflowInstance{Memo: "capital_call_id=" + itoa(call.ID)}
	_, err := newRegistry(f.store).Dispatch(ctx, Event{
		Trigger: StepUndone, Instance: inst, Step: &models.WorkflowStepInstance{StepName: "납입확인"}, Now: now,
	})
	require.NoError(t, err)

	lp, err := f.store.GetLP(ctx, f.lpB.ID)
	require.NoError(t, err)
	assert.Zero(t, lp.PaidIn)
}

func TestCapitalCallPaymentExceedingCommitment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	call := &models.CapitalCall{FundID: f.fund.ID, CallDate: now}
	require.NoError(t, f.store.CreateCapitalCall(ctx, call, []*models.CapitalCallItem{
		{LPID: f.lpA.ID, Amount: 950_000_000},
	}))

	inst := &models.WorkflowInstance{Memo: "capital_call_id=" + itoa(call.ID)}
	_, err := newRegistry(f.store).Dispatch(ctx, Event{
		Trigger: StepCompleted, Instance: inst, Step: &models.WorkflowStepInstance{StepName: "납입확인"}, Now: now,
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCapitalCallWithoutMarkerIsNoop(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	applied, err := newRegistry(f.store).Dispatch(ctx, Event{
		Trigger:  StepCompleted,
		Instance: &models.WorkflowInstance{Memo: "메모 없음"},
		Step:     &models.WorkflowStepInstance{StepName: "출자금 납입확인"},
		Now:      now,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"capital_call_payment"}, applied)
}

func TestLPTransferToNewLP(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	instID := int64(11)
	transfer := &models.LPTransfer{
		FundID: f.fund.ID, FromLPID: f.lpA.ID, ToLPName: "신규 LP", ToLPType: "법인",
		TransferAmount: 400_000_000, Status: models.LPTransferStatusPending, WorkflowInstanceID: &instID,
	}
	require.NoError(t, f.store.CreateLPTransfer(ctx, transfer))

	applied, err := newRegistry(f.store).Dispatch(ctx, Event{
		Trigger: InstanceCompleted, Category: models.CategoryLPTransfer,
		Instance: &models.WorkflowInstance{ID: instID}, Now: now,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"lp_transfer_completion"}, applied)

	got, err := f.store.GetLPTransferByWorkflowInstance(ctx, instID)
	require.NoError(t, err)
	assert.Equal(t, models.LPTransferStatusCompleted, got.Status)
	require.NotNil(t, got.ToLPID)

	from, err := f.store.GetLP(ctx, f.lpA.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(600_000_000), from.Commitment)
	assert.Equal(t, int64(60_000_000), from.PaidIn)

	to, err := f.store.GetLP(ctx, *got.ToLPID)
	require.NoError(t, err)
	assert.Equal(t, "신규 LP", to.Name)
	assert.Equal(t, int64(400_000_000), to.Commitment)
	assert.Equal(t, int64(40_000_000), to.PaidIn)
}

func TestLPTransferExceedingCommitment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	instID := int64(12)
	require.NoError(t, f.store.CreateLPTransfer(ctx, &models.LPTransfer{
		FundID: f.fund.ID, FromLPID: f.lpA.ID, ToLPID: &f.lpB.ID,
		TransferAmount: 1_500_000_000, Status: models.LPTransferStatusPending, WorkflowInstanceID: &instID,
	}))

	_, err := newRegistry(f.store).Dispatch(ctx, Event{
		Trigger: InstanceCompleted, Category: models.CategoryLPTransfer,
		Instance: &models.WorkflowInstance{ID: instID}, Now: now,
	})
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestLPTransferMissingIsNoop(t *testing.T) {
	f := newFixture(t)
	_, err := newRegistry(f.store).Dispatch(context.Background(), Event{
		Trigger: InstanceCompleted, Category: models.CategoryLPTransfer,
		Instance: &models.WorkflowInstance{ID: 500}, Now: now,
	})
	assert.NoError(t, err)
}

func TestFundFormationPromotion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// Other categories leave the fund alone.
	applied, err := newRegistry(f.store).Dispatch(ctx, Event{
		Trigger: InstanceCompleted, Category: "투자심의",
		Instance: &models.WorkflowInstance{FundID: &f.fund.ID}, Now: now,
	})
	require.NoError(t, err)
	assert.Empty(t, applied)

	_, err = newRegistry(f.store).Dispatch(ctx, Event{
		Trigger: InstanceCompleted, Category: models.CategoryFundFormation,
		Instance: &models.WorkflowInstance{FundID: &f.fund.ID}, Now: now,
	})
	require.NoError(t, err)

	fund, err := f.store.GetFund(ctx, f.fund.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FundStatusActive, fund.Status)
	require.NotNil(t, fund.FormationDate)
	assert.Equal(t, time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC), *fund.FormationDate)
}

func TestProportionalPaidIn(t *testing.T) {
	assert.Equal(t, int64(0), ProportionalPaidIn(0, 10, 100))
	assert.Equal(t, int64(33), ProportionalPaidIn(100, 1, 3))
	assert.Equal(t, int64(100), ProportionalPaidIn(100, 3, 3))
	// Large KRW balances do not overflow.
	assert.Equal(t, int64(4_500_000_000_000), ProportionalPaidIn(9_000_000_000_000, 5_000_000_000_000, 10_000_000_000_000))
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
