package sideeffect

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

const paymentConfirmedMarker = "납입확인"

var capitalCallMarker = regexp.MustCompile(`capital_call_id\s*=\s*(\d+)`)

// IsPaymentConfirmation reports whether a step name, ignoring whitespace,
// names the payment-confirmed step.
func IsPaymentConfirmation(stepName string) bool {
	compact := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, stepName)
	return strings.Contains(compact, paymentConfirmedMarker)
}

// CapitalCallID extracts a capital_call_id=<N> marker from an instance memo.
func CapitalCallID(memo string) (int64, bool) {
	m := capitalCallMarker.FindStringSubmatch(memo)
	if m == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func postCapitalCallPayment(ctx context.Context, store Store, ev Event) error {
	callID, ok := CapitalCallID(ev.Instance.Memo)
	if !ok {
		return nil
	}
	call, err := store.GetCapitalCall(ctx, callID)
	if err != nil {
		return fmt.Errorf("loading capital call: %w", err)
	}
	items, err := store.ListCapitalCallItems(ctx, call.ID)
	if err != nil {
		return fmt.Errorf("loading capital call items: %w", err)
	}
	if _, err := store.LockFund(ctx, call.FundID); err != nil {
		return fmt.Errorf("locking fund: %w", err)
	}

	paidDate := today(ev.Now)
	for _, it := range items {
		if it.Paid {
			continue
		}
		lp, err := store.LockLP(ctx, it.LPID)
		if err != nil {
			return fmt.Errorf("locking lp: %w", err)
		}
		if lp.PaidIn+it.Amount > lp.Commitment {
			return fmt.Errorf("%w: lp %d paid-in %d would exceed commitment %d",
				ErrValidation, lp.ID, lp.PaidIn+it.Amount, lp.Commitment)
		}
		lp.PaidIn += it.Amount
		if err := store.UpdateLP(ctx, lp); err != nil {
			return err
		}
		it.Paid = true
		it.PaidDate = &paidDate
		if err := store.UpdateCapitalCallItem(ctx, it); err != nil {
			return err
		}
	}
	return nil
}

func reverseCapitalCallPayment(ctx context.Context, store Store, ev Event) error {
	callID, ok := CapitalCallID(ev.Instance.Memo)
	if !ok {
		return nil
	}
	call, err := store.GetCapitalCall(ctx, callID)
	if err != nil {
		return fmt.Errorf("loading capital call: %w", err)
	}
	items, err := store.ListCapitalCallItems(ctx, call.ID)
	if err != nil {
		return fmt.Errorf("loading capital call items: %w", err)
	}
	if _, err := store.LockFund(ctx, call.FundID); err != nil {
		return fmt.Errorf("locking fund: %w", err)
	}

	for _, it := range items {
		if !it.Paid {
			continue
		}
		lp, err := store.LockLP(ctx, it.LPID)
		if err != nil {
			return fmt.Errorf("locking lp: %w", err)
		}
		lp.PaidIn = max(lp.PaidIn-it.Amount, 0)
		if err := store.UpdateLP(ctx, lp); err != nil {
			return err
		}
		it.Paid = false
		it.PaidDate = nil
		if err := store.UpdateCapitalCallItem(ctx, it); err != nil {
			return err
		}
	}
	return nil
}
