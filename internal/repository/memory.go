package repository

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"

	"fundops/backend/pkg/models"
)

// memoryState is the arena: every row lives in a flat map keyed by id and
// rows reference each other by id only.
type memoryState struct {
	nextID int64

	templates   map[int64]models.WorkflowTemplate
	instances   map[int64]models.WorkflowInstance
	steps       map[int64]models.WorkflowStepInstance
	tasks       map[int64]models.Task
	funds       map[int64]models.Fund
	periods     map[int64]models.FundNoticePeriod
	lps         map[int64]models.LP
	calls       map[int64]models.CapitalCall
	items       map[int64]models.CapitalCallItem
	transfers   map[int64]models.LPTransfer
	companies   map[int64]models.Company
	investments map[int64]models.Investment
	gpEntities  map[int64]models.GPEntity
	documents   map[int64]models.InvestmentDocument
}

func newMemoryState() *memoryState {
	return &memoryState{
		templates:   map[int64]models.WorkflowTemplate{},
		instances:   map[int64]models.WorkflowInstance{},
		steps:       map[int64]models.WorkflowStepInstance{},
		tasks:       map[int64]models.Task{},
		funds:       map[int64]models.Fund{},
		periods:     map[int64]models.FundNoticePeriod{},
		lps:         map[int64]models.LP{},
		calls:       map[int64]models.CapitalCall{},
		items:       map[int64]models.CapitalCallItem{},
		transfers:   map[int64]models.LPTransfer{},
		companies:   map[int64]models.Company{},
		investments: map[int64]models.Investment{},
		gpEntities:  map[int64]models.GPEntity{},
		documents:   map[int64]models.InvestmentDocument{},
	}
}

// clone copies every map. Row values are copied; pointer fields are shared,
// which is safe because rows are only ever replaced, never mutated in place.
func (s *memoryState) clone() *memoryState {
	return &memoryState{
		nextID:      s.nextID,
		templates:   maps.Clone(s.templates),
		instances:   maps.Clone(s.instances),
		steps:       maps.Clone(s.steps),
		tasks:       maps.Clone(s.tasks),
		funds:       maps.Clone(s.funds),
		periods:     maps.Clone(s.periods),
		lps:         maps.Clone(s.lps),
		calls:       maps.Clone(s.calls),
		items:       maps.Clone(s.items),
		transfers:   maps.Clone(s.transfers),
		companies:   maps.Clone(s.companies),
		investments: maps.Clone(s.investments),
		gpEntities:  maps.Clone(s.gpEntities),
		documents:   maps.Clone(s.documents),
	}
}

func (s *memoryState) id() int64 {
	s.nextID++
	return s.nextID
}

// MemoryStore is an in-process Repository. A unit of work holds the store
// lock for its whole duration and restores a snapshot on error.
type MemoryStore struct {
	mu    sync.Mutex
	state *memoryState
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemoryState()}
}

type memoryTxKey struct{}

func (s *MemoryStore) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(memoryTxKey{}).(*MemoryStore)
	return owner == s
}

func (s *MemoryStore) lock(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// WithinTx runs fn as one unit of work.
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	if err := fn(context.WithValue(ctx, memoryTxKey{}, s)); err != nil {
		s.state = snapshot
		return err
	}
	return nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

func notFound(kind string, id int64) error {
	return fmt.Errorf("%s %d: %w", kind, id, ErrNotFound)
}

// Templates

func (s *MemoryStore) CreateTemplate(ctx context.Context, tpl *models.WorkflowTemplate) error {
	defer s.lock(ctx)()
	tpl.ID = s.state.id()
	steps := make([]models.WorkflowStep, len(tpl.Steps))
	for i, st := range tpl.Steps {
		st.ID = s.state.id()
		st.WorkflowID = tpl.ID
		steps[i] = st
	}
	docs := make([]models.WorkflowDocument, len(tpl.Documents))
	for i, d := range tpl.Documents {
		d.ID = s.state.id()
		d.WorkflowID = tpl.ID
		docs[i] = d
	}
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].Order < steps[j].Order })
	tpl.Steps = steps
	tpl.Documents = docs

	stored := *tpl
	stored.Steps = slices.Clone(steps)
	stored.Documents = slices.Clone(docs)
	s.state.templates[tpl.ID] = stored
	return nil
}

func (s *MemoryStore) GetTemplate(ctx context.Context, id int64) (*models.WorkflowTemplate, error) {
	defer s.lock(ctx)()
	tpl, ok := s.state.templates[id]
	if !ok {
		return nil, notFound("workflow", id)
	}
	tpl.Steps = slices.Clone(tpl.Steps)
	tpl.Documents = slices.Clone(tpl.Documents)
	return &tpl, nil
}

func (s *MemoryStore) ListTemplates(ctx context.Context) ([]*models.WorkflowTemplate, error) {
	defer s.lock(ctx)()
	out := make([]*models.WorkflowTemplate, 0, len(s.state.templates))
	for _, tpl := range s.state.templates {
		tpl.Steps = slices.Clone(tpl.Steps)
		tpl.Documents = slices.Clone(tpl.Documents)
		out = append(out, &tpl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) DeleteTemplate(ctx context.Context, id int64) error {
	defer s.lock(ctx)()
	if _, ok := s.state.templates[id]; !ok {
		return notFound("workflow", id)
	}
	delete(s.state.templates, id)
	return nil
}

func (s *MemoryStore) CountInstances(ctx context.Context, templateID int64) (int, error) {
	defer s.lock(ctx)()
	n := 0
	for _, inst := range s.state.instances {
		if inst.WorkflowID == templateID {
			n++
		}
	}
	return n, nil
}

// Instances

func (s *MemoryStore) CreateInstance(ctx context.Context, inst *models.WorkflowInstance) error {
	defer s.lock(ctx)()
	if _, ok := s.state.templates[inst.WorkflowID]; !ok {
		return notFound("workflow", inst.WorkflowID)
	}
	inst.ID = s.state.id()
	row := *inst
	row.StepInstances = nil
	row.NoticeOverrides = slices.Clone(inst.NoticeOverrides)
	s.state.instances[inst.ID] = row
	return nil
}

func (s *MemoryStore) GetInstance(ctx context.Context, id int64) (*models.WorkflowInstance, error) {
	defer s.lock(ctx)()
	inst, ok := s.state.instances[id]
	if !ok {
		return nil, notFound("workflow instance", id)
	}
	inst.NoticeOverrides = slices.Clone(inst.NoticeOverrides)
	return &inst, nil
}

func matchID(want, got *int64) bool {
	return want == nil || (got != nil && *got == *want)
}

func (s *MemoryStore) ListInstances(ctx context.Context, f InstanceFilter) ([]*models.WorkflowInstance, error) {
	defer s.lock(ctx)()
	var out []*models.WorkflowInstance
	for _, inst := range s.state.instances {
		if f.WorkflowID != nil && inst.WorkflowID != *f.WorkflowID {
			continue
		}
		if !matchID(f.InvestmentID, inst.InvestmentID) || !matchID(f.CompanyID, inst.CompanyID) ||
			!matchID(f.FundID, inst.FundID) || !matchID(f.GPEntityID, inst.GPEntityID) {
			continue
		}
		out = append(out, &inst)
	}
	// Newest first, matching the postgres ordering.
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *MemoryStore) UpdateInstance(ctx context.Context, inst *models.WorkflowInstance) error {
	defer s.lock(ctx)()
	stored, ok := s.state.instances[inst.ID]
	if !ok {
		return notFound("workflow instance", inst.ID)
	}
	row := *inst
	row.StepInstances = nil
	row.NoticeOverrides = stored.NoticeOverrides
	s.state.instances[inst.ID] = row
	return nil
}

func (s *MemoryStore) DeleteInstance(ctx context.Context, id int64) error {
	defer s.lock(ctx)()
	if _, ok := s.state.instances[id]; !ok {
		return notFound("workflow instance", id)
	}
	delete(s.state.instances, id)
	return nil
}

func (s *MemoryStore) CreateStepInstance(ctx context.Context, si *models.WorkflowStepInstance) error {
	defer s.lock(ctx)()
	if _, ok := s.state.instances[si.InstanceID]; !ok {
		return notFound("workflow instance", si.InstanceID)
	}
	si.ID = s.state.id()
	s.state.steps[si.ID] = *si
	return nil
}

// withStep fills the denormalized source step fields.
func (s *memoryState) withStep(si models.WorkflowStepInstance) *models.WorkflowStepInstance {
	if inst, ok := s.instances[si.InstanceID]; ok {
		if tpl, ok := s.templates[inst.WorkflowID]; ok {
			for _, st := range tpl.Steps {
				if st.ID == si.WorkflowStepID {
					si.StepName, si.StepOrder, si.StepTiming = st.Name, st.Order, st.Timing
					break
				}
			}
		}
	}
	return &si
}

func (s *MemoryStore) GetStepInstance(ctx context.Context, id int64) (*models.WorkflowStepInstance, error) {
	defer s.lock(ctx)()
	si, ok := s.state.steps[id]
	if !ok {
		return nil, notFound("step instance", id)
	}
	return s.state.withStep(si), nil
}

func (s *MemoryStore) ListStepInstances(ctx context.Context, instanceID int64) ([]*models.WorkflowStepInstance, error) {
	defer s.lock(ctx)()
	var out []*models.WorkflowStepInstance
	for _, si := range s.state.steps {
		if si.InstanceID == instanceID {
			out = append(out, s.state.withStep(si))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StepOrder != out[j].StepOrder {
			return out[i].StepOrder < out[j].StepOrder
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) UpdateStepInstance(ctx context.Context, si *models.WorkflowStepInstance) error {
	defer s.lock(ctx)()
	if _, ok := s.state.steps[si.ID]; !ok {
		return notFound("step instance", si.ID)
	}
	row := *si
	row.StepName, row.StepOrder, row.StepTiming = "", 0, ""
	s.state.steps[si.ID] = row
	return nil
}

func (s *MemoryStore) DeleteStepInstances(ctx context.Context, instanceID int64) error {
	defer s.lock(ctx)()
	for id, si := range s.state.steps {
		if si.InstanceID == instanceID {
			delete(s.state.steps, id)
		}
	}
	return nil
}

// Tasks

func (s *MemoryStore) CreateTask(ctx context.Context, task *models.Task) error {
	defer s.lock(ctx)()
	task.ID = s.state.id()
	s.state.tasks[task.ID] = *task
	return nil
}

func (s *MemoryStore) GetTask(ctx context.Context, id int64) (*models.Task, error) {
	defer s.lock(ctx)()
	t, ok := s.state.tasks[id]
	if !ok {
		return nil, notFound("task", id)
	}
	return &t, nil
}

func (s *MemoryStore) UpdateTask(ctx context.Context, task *models.Task) error {
	defer s.lock(ctx)()
	if _, ok := s.state.tasks[task.ID]; !ok {
		return notFound("task", task.ID)
	}
	s.state.tasks[task.ID] = *task
	return nil
}

func (s *MemoryStore) DeleteTask(ctx context.Context, id int64) error {
	defer s.lock(ctx)()
	if _, ok := s.state.tasks[id]; !ok {
		return notFound("task", id)
	}
	delete(s.state.tasks, id)
	return nil
}

// Funds and notice periods

func (s *MemoryStore) GetFund(ctx context.Context, id int64) (*models.Fund, error) {
	defer s.lock(ctx)()
	f, ok := s.state.funds[id]
	if !ok {
		return nil, notFound("fund", id)
	}
	return &f, nil
}

// LockFund is GetFund; the unit of work already serializes the store.
func (s *MemoryStore) LockFund(ctx context.Context, id int64) (*models.Fund, error) {
	return s.GetFund(ctx, id)
}

func (s *MemoryStore) UpdateFund(ctx context.Context, fund *models.Fund) error {
	defer s.lock(ctx)()
	if _, ok := s.state.funds[fund.ID]; !ok {
		return notFound("fund", fund.ID)
	}
	s.state.funds[fund.ID] = *fund
	return nil
}

func (s *MemoryStore) ListNoticePeriods(ctx context.Context, fundID int64) ([]models.FundNoticePeriod, error) {
	defer s.lock(ctx)()
	var out []models.FundNoticePeriod
	for _, p := range s.state.periods {
		if p.FundID == fundID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// LPs

func (s *MemoryStore) GetLP(ctx context.Context, id int64) (*models.LP, error) {
	defer s.lock(ctx)()
	lp, ok := s.state.lps[id]
	if !ok {
		return nil, notFound("lp", id)
	}
	return &lp, nil
}

// LockLP is GetLP; the unit of work already serializes the store.
func (s *MemoryStore) LockLP(ctx context.Context, id int64) (*models.LP, error) {
	return s.GetLP(ctx, id)
}

func (s *MemoryStore) CreateLP(ctx context.Context, lp *models.LP) error {
	defer s.lock(ctx)()
	if _, ok := s.state.funds[lp.FundID]; !ok {
		return notFound("fund", lp.FundID)
	}
	lp.ID = s.state.id()
	s.state.lps[lp.ID] = *lp
	return nil
}

func (s *MemoryStore) UpdateLP(ctx context.Context, lp *models.LP) error {
	defer s.lock(ctx)()
	if _, ok := s.state.lps[lp.ID]; !ok {
		return notFound("lp", lp.ID)
	}
	s.state.lps[lp.ID] = *lp
	return nil
}

// Capital calls

func (s *MemoryStore) GetCapitalCall(ctx context.Context, id int64) (*models.CapitalCall, error) {
	defer s.lock(ctx)()
	c, ok := s.state.calls[id]
	if !ok {
		return nil, notFound("capital call", id)
	}
	return &c, nil
}

func (s *MemoryStore) ListCapitalCallItems(ctx context.Context, capitalCallID int64) ([]*models.CapitalCallItem, error) {
	defer s.lock(ctx)()
	var out []*models.CapitalCallItem
	for _, it := range s.state.items {
		if it.CapitalCallID == capitalCallID {
			out = append(out, &it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) UpdateCapitalCallItem(ctx context.Context, item *models.CapitalCallItem) error {
	defer s.lock(ctx)()
	if _, ok := s.state.items[item.ID]; !ok {
		return notFound("capital call item", item.ID)
	}
	s.state.items[item.ID] = *item
	return nil
}

func (s *MemoryStore) ClearCapitalCallWorkflowLinks(ctx context.Context, instanceID int64) error {
	defer s.lock(ctx)()
	for id, c := range s.state.calls {
		if c.LinkedWorkflowInstanceID != nil && *c.LinkedWorkflowInstanceID == instanceID {
			c.LinkedWorkflowInstanceID = nil
			s.state.calls[id] = c
		}
	}
	return nil
}

// LP transfers

func (s *MemoryStore) GetLPTransferByWorkflowInstance(ctx context.Context, instanceID int64) (*models.LPTransfer, error) {
	defer s.lock(ctx)()
	var found *models.LPTransfer
	for _, t := range s.state.transfers {
		if t.WorkflowInstanceID != nil && *t.WorkflowInstanceID == instanceID {
			if found == nil || t.ID < found.ID {
				found = &t
			}
		}
	}
	if found == nil {
		return nil, fmt.Errorf("lp transfer for workflow instance %d: %w", instanceID, ErrNotFound)
	}
	return found, nil
}

func (s *MemoryStore) UpdateLPTransfer(ctx context.Context, transfer *models.LPTransfer) error {
	defer s.lock(ctx)()
	if _, ok := s.state.transfers[transfer.ID]; !ok {
		return notFound("lp transfer", transfer.ID)
	}
	s.state.transfers[transfer.ID] = *transfer
	return nil
}

func (s *MemoryStore) ClearLPTransferWorkflowLinks(ctx context.Context, instanceID int64) error {
	defer s.lock(ctx)()
	for id, t := range s.state.transfers {
		if t.WorkflowInstanceID != nil && *t.WorkflowInstanceID == instanceID {
			t.WorkflowInstanceID = nil
			s.state.transfers[id] = t
		}
	}
	return nil
}

// Linked entities

func (s *MemoryStore) GetInvestment(ctx context.Context, id int64) (*models.Investment, error) {
	defer s.lock(ctx)()
	inv, ok := s.state.investments[id]
	if !ok {
		return nil, notFound("investment", id)
	}
	return &inv, nil
}

func (s *MemoryStore) GetCompany(ctx context.Context, id int64) (*models.Company, error) {
	defer s.lock(ctx)()
	c, ok := s.state.companies[id]
	if !ok {
		return nil, notFound("company", id)
	}
	return &c, nil
}

func (s *MemoryStore) GetGPEntity(ctx context.Context, id int64) (*models.GPEntity, error) {
	defer s.lock(ctx)()
	gp, ok := s.state.gpEntities[id]
	if !ok {
		return nil, notFound("gp entity", id)
	}
	return &gp, nil
}

func (s *MemoryStore) ListInvestmentDocuments(ctx context.Context, investmentID int64) ([]*models.InvestmentDocument, error) {
	defer s.lock(ctx)()
	var out []*models.InvestmentDocument
	for _, d := range s.state.documents {
		if d.InvestmentID == investmentID {
			out = append(out, &d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) CreateInvestmentDocument(ctx context.Context, doc *models.InvestmentDocument) error {
	defer s.lock(ctx)()
	doc.ID = s.state.id()
	s.state.documents[doc.ID] = *doc
	return nil
}

// Seeding

func (s *MemoryStore) CreateFund(ctx context.Context, fund *models.Fund) error {
	defer s.lock(ctx)()
	fund.ID = s.state.id()
	s.state.funds[fund.ID] = *fund
	return nil
}

func (s *MemoryStore) CreateNoticePeriod(ctx context.Context, p *models.FundNoticePeriod) error {
	defer s.lock(ctx)()
	if _, ok := s.state.funds[p.FundID]; !ok {
		return notFound("fund", p.FundID)
	}
	p.ID = s.state.id()
	s.state.periods[p.ID] = *p
	return nil
}

func (s *MemoryStore) CreateCompany(ctx context.Context, c *models.Company) error {
	defer s.lock(ctx)()
	c.ID = s.state.id()
	s.state.companies[c.ID] = *c
	return nil
}

func (s *MemoryStore) CreateInvestment(ctx context.Context, inv *models.Investment) error {
	defer s.lock(ctx)()
	inv.ID = s.state.id()
	s.state.investments[inv.ID] = *inv
	return nil
}

func (s *MemoryStore) CreateGPEntity(ctx context.Context, gp *models.GPEntity) error {
	defer s.lock(ctx)()
	gp.ID = s.state.id()
	s.state.gpEntities[gp.ID] = *gp
	return nil
}

func (s *MemoryStore) CreateCapitalCall(ctx context.Context, call *models.CapitalCall, items []*models.CapitalCallItem) error {
	defer s.lock(ctx)()
	call.ID = s.state.id()
	s.state.calls[call.ID] = *call
	for _, it := range items {
		it.ID = s.state.id()
		it.CapitalCallID = call.ID
		s.state.items[it.ID] = *it
	}
	return nil
}

func (s *MemoryStore) CreateLPTransfer(ctx context.Context, t *models.LPTransfer) error {
	defer s.lock(ctx)()
	t.ID = s.state.id()
	s.state.transfers[t.ID] = *t
	return nil
}
