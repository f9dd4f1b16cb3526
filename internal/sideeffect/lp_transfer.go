package sideeffect

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"fundops/backend/internal/repository"
	"fundops/backend/pkg/models"
)

func completeLPTransfer(ctx context.Context, store Store, ev Event) error {
	transfer, err := store.GetLPTransferByWorkflowInstance(ctx, ev.Instance.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading lp transfer: %w", err)
	}
	if transfer.Status == models.LPTransferStatusCompleted || transfer.Status == models.LPTransferStatusCancelled {
		return nil
	}

	if _, err := store.LockFund(ctx, transfer.FundID); err != nil {
		return fmt.Errorf("locking fund: %w", err)
	}
	from, err := store.LockLP(ctx, transfer.FromLPID)
	if err != nil {
		return fmt.Errorf("locking outgoing lp: %w", err)
	}
	if transfer.TransferAmount <= 0 {
		return fmt.Errorf("%w: transfer amount must be positive", ErrValidation)
	}
	if transfer.TransferAmount > from.Commitment {
		return fmt.Errorf("%w: transfer amount %d exceeds outgoing lp commitment %d",
			ErrValidation, transfer.TransferAmount, from.Commitment)
	}

	var to *models.LP
	if transfer.ToLPID != nil {
		to, err = store.LockLP(ctx, *transfer.ToLPID)
		if err != nil {
			return fmt.Errorf("locking incoming lp: %w", err)
		}
		if to.FundID != transfer.FundID {
			return fmt.Errorf("%w: incoming lp %d belongs to another fund", ErrValidation, to.ID)
		}
		if to.ID == from.ID {
			return fmt.Errorf("%w: incoming and outgoing lp are the same", ErrValidation)
		}
	} else {
		if strings.TrimSpace(transfer.ToLPName) == "" {
			return fmt.Errorf("%w: new incoming lp needs a name", ErrValidation)
		}
		to = &models.LP{
			FundID:         transfer.FundID,
			Name:           transfer.ToLPName,
			Type:           transfer.ToLPType,
			BusinessNumber: transfer.ToLPBusinessNumber,
		}
		if err := store.CreateLP(ctx, to); err != nil {
			return fmt.Errorf("creating incoming lp: %w", err)
		}
	}

	moved := ProportionalPaidIn(from.PaidIn, transfer.TransferAmount, from.Commitment)
	from.Commitment -= transfer.TransferAmount
	from.PaidIn -= moved
	to.Commitment += transfer.TransferAmount
	to.PaidIn += moved

	if err := store.UpdateLP(ctx, from); err != nil {
		return err
	}
	if err := store.UpdateLP(ctx, to); err != nil {
		return err
	}

	completedAt := ev.Now
	transfer.ToLPID = &to.ID
	transfer.Status = models.LPTransferStatusCompleted
	transfer.CompletedAt = &completedAt
	return store.UpdateLPTransfer(ctx, transfer)
}

// ProportionalPaidIn is paidIn * amount / commitment, truncated, computed
// without overflow.
func ProportionalPaidIn(paidIn, amount, commitment int64) int64 {
	if commitment <= 0 || paidIn <= 0 {
		return 0
	}
	if amount >= commitment {
		return paidIn
	}
	v := new(big.Int).Mul(big.NewInt(paidIn), big.NewInt(amount))
	v.Quo(v, big.NewInt(commitment))
	return v.Int64()
}
