// Package sideeffect dispatches the cross-entity effects of workflow progress.
//
// Templates are user-authored, so effects are keyed by convention: the
// template category and a predicate over the step name. Each convention is a
// Rule in a Registry.
package sideeffect

import (
	"context"
	"errors"
	"strings"
	"time"

	"fundops/backend/internal/logging"
	"fundops/backend/pkg/models"
)

// ErrValidation marks an effect rejected because of the data it would write.
var ErrValidation = errors.New("side effect rejected")

// Trigger is the workflow event a rule reacts to.
type Trigger string

const (
	StepCompleted     Trigger = "step_completed"
	StepUndone        Trigger = "step_undone"
	InstanceCompleted Trigger = "instance_completed"
)

// Store is the storage a rule may read and write. Calls run inside the
// caller's unit of work.
type Store interface {
	GetFund(ctx context.Context, id int64) (*models.Fund, error)
	LockFund(ctx context.Context, id int64) (*models.Fund, error)
	UpdateFund(ctx context.Context, fund *models.Fund) error

	LockLP(ctx context.Context, id int64) (*models.LP, error)
	CreateLP(ctx context.Context, lp *models.LP) error
	UpdateLP(ctx context.Context, lp *models.LP) error

	GetCapitalCall(ctx context.Context, id int64) (*models.CapitalCall, error)
	ListCapitalCallItems(ctx context.Context, capitalCallID int64) ([]*models.CapitalCallItem, error)
	UpdateCapitalCallItem(ctx context.Context, item *models.CapitalCallItem) error

	GetLPTransferByWorkflowInstance(ctx context.Context, instanceID int64) (*models.LPTransfer, error)
	UpdateLPTransfer(ctx context.Context, transfer *models.LPTransfer) error
}

// Event describes what just happened to an instance.
type Event struct {
	Trigger  Trigger
	Category string
	Instance *models.WorkflowInstance
	// Step is set for step triggers only.
	Step *models.WorkflowStepInstance
	Now  time.Time
}

// Rule is one convention-keyed effect.
type Rule struct {
	Name    string
	Trigger Trigger
	// Category restricts the rule to one template category; empty matches any.
	Category string
	// StepMatch filters on the source step name; nil matches any.
	StepMatch func(stepName string) bool
	Apply     func(ctx context.Context, store Store, ev Event) error
}

func (r Rule) matches(ev Event) bool {
	if r.Trigger != ev.Trigger {
		return false
	}
	if r.Category != "" && r.Category != strings.TrimSpace(ev.Category) {
		return false
	}
	if r.StepMatch != nil {
		if ev.Step == nil || !r.StepMatch(ev.Step.StepName) {
			return false
		}
	}
	return true
}

// Registry holds the rules in dispatch order.
type Registry struct {
	store  Store
	rules  []Rule
	logger *logging.Logger
}

// NewRegistry creates a Registry. With no rules it uses DefaultRules.
func NewRegistry(store Store, logger *logging.Logger, rules ...Rule) *Registry {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Registry{store: store, rules: rules, logger: logger}
}

// Dispatch applies every matching rule in order and returns the names of the
// rules applied. The first error stops dispatch.
func (r *Registry) Dispatch(ctx context.Context, ev Event) ([]string, error) {
	var applied []string
	for _, rule := range r.rules {
		if !rule.matches(ev) {
			continue
		}
		if err := rule.Apply(ctx, r.store, ev); err != nil {
			r.logger.Warn("side effect failed", "rule", rule.Name, "instance_id", ev.Instance.ID, "err", err)
			return applied, err
		}
		r.logger.Debug("side effect applied", "rule", rule.Name, "instance_id", ev.Instance.ID)
		applied = append(applied, rule.Name)
	}
	return applied, nil
}

// DefaultRules returns the built-in conventions.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:      "capital_call_payment",
			Trigger:   StepCompleted,
			StepMatch: IsPaymentConfirmation,
			Apply:     postCapitalCallPayment,
		},
		{
			Name:      "capital_call_payment_undo",
			Trigger:   StepUndone,
			StepMatch: IsPaymentConfirmation,
			Apply:     reverseCapitalCallPayment,
		},
		{
			Name:     "lp_transfer_completion",
			Trigger:  InstanceCompleted,
			Category: models.CategoryLPTransfer,
			Apply:    completeLPTransfer,
		},
		{
			Name:     "fund_formation",
			Trigger:  InstanceCompleted,
			Category: models.CategoryFundFormation,
			Apply:    promoteFund,
		},
	}
}

// today is the calendar date of now.
func today(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
