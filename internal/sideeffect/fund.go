package sideeffect

import (
	"context"
	"fmt"

	"fundops/backend/pkg/models"
)

func promoteFund(ctx context.Context, store Store, ev Event) error {
	if ev.Instance.FundID == nil {
		return nil
	}
	fund, err := store.LockFund(ctx, *ev.Instance.FundID)
	if err != nil {
		return fmt.Errorf("locking fund: %w", err)
	}
	if fund.Status != models.FundStatusForming {
		return nil
	}
	fund.Status = models.FundStatusActive
	if fund.FormationDate == nil {
		d := today(ev.Now)
		fund.FormationDate = &d
	}
	return store.UpdateFund(ctx, fund)
}
