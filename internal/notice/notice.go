// Package notice resolves which workflow steps are driven by a fund's
// notice-period rules instead of the step's own calendar offset.
//
// Step text is free-form, so resolution runs in two tiers. Explicit markers
// (notice:<key>, #<key>, [<key>], (<key>)) are tried first over the step's
// timing, name and memo. Only when no marker names a known alias does the
// loose match run, which accepts any alias appearing anywhere in the text.
package notice

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"fundops/backend/internal/calendar"
	"fundops/backend/pkg/models"
)

// MaxBusinessDays bounds a configured lead time.
const MaxBusinessDays = 365

var (
	// ErrOutOfRange is returned for lead times outside 0..MaxBusinessDays.
	ErrOutOfRange = errors.New("business days out of range")
	// ErrInvalidDayBasis is returned for an unknown day basis.
	ErrInvalidDayBasis = errors.New("invalid day basis")
)

// Mode identifies how a step matched a rule.
type Mode string

const (
	ModeExplicit Mode = "explicit"
	ModeLoose    Mode = "loose"
)

// Rule is the resolved lead-time requirement for one canonical notice type.
type Rule struct {
	NoticeType   string
	Label        string
	BusinessDays int
	DayBasis     string
	Aliases      []string
}

// Override is a caller-supplied lead time layered over the fund's rules.
type Override = models.NoticeOverride

// Match is the outcome of resolving a step.
type Match struct {
	NoticeType string
	Alias      string
	Mode       Mode
	Field      string
}

// StepText is the searchable text of a template step.
type StepText struct {
	Timing string
	Name   string
	Memo   string
}

// TextOf extracts the searchable text of a template step.
func TextOf(step models.WorkflowStep) StepText {
	return StepText{Timing: step.Timing, Name: step.Name, Memo: step.Memo}
}

func (s StepText) fields() [3][2]string {
	return [3][2]string{{"timing", s.Timing}, {"name", s.Name}, {"memo", s.Memo}}
}

var markerPatterns = []*regexp.Regexp{
	regexp.MustCompile(`notice:\s*([^\s\[\]()#,;]+)`),
	regexp.MustCompile(`#([^\s\[\]()#,;]+)`),
	regexp.MustCompile(`\[([^\[\]]+)\]`),
	regexp.MustCompile(`\(([^()]+)\)`),
}

// Table is the per-fund rule table with its alias map. A Table is built per
// operation and is not safe for concurrent use.
type Table struct {
	rules   map[string]*Rule
	aliases map[string]string
	ordered []string
	loose   bool
	fold    cases.Caser
}

// TableOption configures a Table.
type TableOption func(*Table)

// WithLooseMatch enables or disables the substring fallback.
func WithLooseMatch(enabled bool) TableOption {
	return func(t *Table) { t.loose = enabled }
}

// NewTable builds the rule table from a fund's notice periods with overrides
// layered on top. Keys are caseless notice types and labels.
func NewTable(periods []models.FundNoticePeriod, overrides []Override, opts ...TableOption) (*Table, error) {
	t := &Table{
		rules:   make(map[string]*Rule),
		aliases: make(map[string]string),
		loose:   true,
		fold:    cases.Fold(),
	}
	for _, opt := range opts {
		opt(t)
	}

	for _, p := range periods {
		if err := validate(p.NoticeType, p.BusinessDays, p.DayBasis); err != nil {
			return nil, err
		}
		t.rules[p.NoticeType] = &Rule{
			NoticeType:   p.NoticeType,
			Label:        p.Label,
			BusinessDays: p.BusinessDays,
			DayBasis:     basisOrDefault(p.DayBasis),
		}
		t.alias(p.NoticeType, p.NoticeType)
		if p.Label != "" {
			t.alias(p.Label, p.NoticeType)
		}
	}

	for _, o := range overrides {
		if err := validate(o.NoticeType, o.BusinessDays, o.DayBasis); err != nil {
			return nil, err
		}
		r, ok := t.rules[o.NoticeType]
		if !ok {
			r = &Rule{NoticeType: o.NoticeType}
			t.rules[o.NoticeType] = r
		}
		r.BusinessDays = o.BusinessDays
		r.DayBasis = basisOrDefault(o.DayBasis)
		t.alias(o.NoticeType, o.NoticeType)
	}

	t.ordered = make([]string, 0, len(t.aliases))
	for a := range t.aliases {
		t.ordered = append(t.ordered, a)
	}
	// Longest alias first so the most specific text wins in loose mode.
	sort.Slice(t.ordered, func(i, j int) bool {
		if len(t.ordered[i]) != len(t.ordered[j]) {
			return len(t.ordered[i]) > len(t.ordered[j])
		}
		return t.ordered[i] < t.ordered[j]
	})
	return t, nil
}

func validate(noticeType string, days int, basis string) error {
	if strings.TrimSpace(noticeType) == "" {
		return errors.New("notice type is required")
	}
	if days < 0 || days > MaxBusinessDays {
		return fmt.Errorf("%w: %s=%d (allowed 0..%d)", ErrOutOfRange, noticeType, days, MaxBusinessDays)
	}
	switch basis {
	case "", models.DayBasisBusiness, models.DayBasisCalendar:
		return nil
	}
	return fmt.Errorf("%w: %q for %s", ErrInvalidDayBasis, basis, noticeType)
}

func basisOrDefault(basis string) string {
	if basis == "" {
		return models.DayBasisBusiness
	}
	return basis
}

func (t *Table) alias(text, noticeType string) {
	key := t.fold.String(strings.TrimSpace(text))
	if key == "" {
		return
	}
	t.aliases[key] = noticeType
	r := t.rules[noticeType]
	for _, a := range r.Aliases {
		if a == key {
			return
		}
	}
	r.Aliases = append(r.Aliases, key)
}

// Empty reports whether the fund has no notice data at all.
func (t *Table) Empty() bool {
	return t == nil || len(t.aliases) == 0
}

// Rule returns the rule for a canonical notice type.
func (t *Table) Rule(noticeType string) (Rule, bool) {
	if t == nil {
		return Rule{}, false
	}
	r, ok := t.rules[noticeType]
	if !ok {
		return Rule{}, false
	}
	return *r, true
}

// Resolve finds the notice type a step is bound to, if any.
func (t *Table) Resolve(step StepText) (Match, bool) {
	if t.Empty() {
		return Match{}, false
	}
	if m, ok := t.ResolveExplicit(step); ok {
		return m, true
	}
	if !t.loose {
		return Match{}, false
	}
	return t.ResolveLoose(step)
}

// ResolveExplicit scans timing, name and memo, in that order, for marker
// forms whose captured key is a known alias.
func (t *Table) ResolveExplicit(step StepText) (Match, bool) {
	for _, f := range step.fields() {
		text := t.fold.String(f[1])
		if text == "" {
			continue
		}
		for _, re := range markerPatterns {
			for _, sub := range re.FindAllStringSubmatch(text, -1) {
				key := strings.TrimSpace(sub[1])
				if nt, ok := t.aliases[key]; ok {
					return Match{NoticeType: nt, Alias: key, Mode: ModeExplicit, Field: f[0]}, true
				}
			}
		}
	}
	return Match{}, false
}

// ResolveLoose accepts any known alias contained anywhere in the step text.
func (t *Table) ResolveLoose(step StepText) (Match, bool) {
	fields := step.fields()
	folded := [3]string{}
	for i, f := range fields {
		folded[i] = t.fold.String(f[1])
	}
	for _, alias := range t.ordered {
		for i, text := range folded {
			if text != "" && strings.Contains(text, alias) {
				return Match{NoticeType: t.aliases[alias], Alias: alias, Mode: ModeLoose, Field: fields[i][0]}, true
			}
		}
	}
	return Match{}, false
}

// DueDate applies a rule's lead time backward from the trigger date.
func (r Rule) DueDate(cal *calendar.Calendar, trigger time.Time) time.Time {
	if r.DayBasis == models.DayBasisCalendar {
		return cal.CalendarDaysBefore(trigger, r.BusinessDays)
	}
	return cal.BusinessDaysBefore(trigger, r.BusinessDays)
}

// StepDate resolves a template step's calculated date: the matched notice
// rule when one applies, otherwise the step's own calendar offset.
func (t *Table) StepDate(cal *calendar.Calendar, trigger time.Time, step models.WorkflowStep) (time.Time, *Match) {
	if m, ok := t.Resolve(TextOf(step)); ok {
		if r, ok := t.Rule(m.NoticeType); ok {
			return r.DueDate(cal, trigger), &m
		}
	}
	return cal.StepDate(trigger, step.TimingOffsetDays), nil
}
