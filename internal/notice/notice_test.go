package notice

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"fundops/backend/internal/calendar"
	"fundops/backend/pkg/models"
)

func fundPeriods() []models.FundNoticePeriod {
	return []models.FundNoticePeriod{
		{FundID: 1, NoticeType: "assembly", Label: "총회 소집통지", BusinessDays: 14},
		{FundID: 1, NoticeType: "capital_call", Label: "출자요청", BusinessDays: 10},
		{FundID: 1, NoticeType: "distribution", Label: "배분", BusinessDays: 5, DayBasis: models.DayBasisCalendar},
	}
}

func TestResolveExplicitMarkers(t *testing.T) {
	table, err := NewTable(fundPeriods(), nil)
	require.NoError(t, err)

	tests := []struct {
		name  string
		step  StepText
		want  string
		field string
	}{
		{"notice prefix", StepText{Timing: "D-? notice:assembly"}, "assembly", "timing"},
		{"hash", StepText{Name: "소집 통지 발송 #Capital_Call"}, "capital_call", "name"},
		{"brackets label", StepText{Memo: "[총회 소집통지] 우편 발송"}, "assembly", "memo"},
		{"parens", StepText{Name: "통지 (DISTRIBUTION)"}, "distribution", "name"},
		{"timing wins over name", StepText{Timing: "#distribution", Name: "#assembly"}, "distribution", "timing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := table.Resolve(tt.step)
			require.True(t, ok)
			assert.Equal(t, tt.want, m.NoticeType)
			assert.Equal(t, ModeExplicit, m.Mode)
			assert.Equal(t, tt.field, m.Field)
		})
	}
}

func TestResolveExplicitBeatsLoose(t *testing.T) {
	table, err := NewTable(fundPeriods(), nil)
	require.NoError(t, err)

	// "출자요청" appears incidentally in the name, but the memo marker is explicit.
	m, ok := table.Resolve(StepText{Name: "출자요청 검토", Memo: "notice:assembly"})
	require.True(t, ok)
	assert.Equal(t, "assembly", m.NoticeType)
	assert.Equal(t, ModeExplicit, m.Mode)
}

func TestResolveLoose(t *testing.T) {
	table, err := NewTable(fundPeriods(), nil)
	require.NoError(t, err)

	m, ok := table.Resolve(StepText{Name: "LP 출자요청 공문 발송"})
	require.True(t, ok)
	assert.Equal(t, "capital_call", m.NoticeType)
	assert.Equal(t, ModeLoose, m.Mode)

	// Unknown marker keys fall through to the loose tier.
	m, ok = table.Resolve(StepText{Name: "#unknown 총회 소집통지"})
	require.True(t, ok)
	assert.Equal(t, "assembly", m.NoticeType)
	assert.Equal(t, ModeLoose, m.Mode)
}

func TestResolveLooseDisabled(t *testing.T) {
	table, err := NewTable(fundPeriods(), nil, WithLooseMatch(false))
	require.NoError(t, err)

	_, ok := table.Resolve(StepText{Name: "LP 출자요청 공문 발송"})
	assert.False(t, ok)

	_, ok = table.Resolve(StepText{Name: "[출자요청]"})
	assert.True(t, ok)
}

func TestResolveNoData(t *testing.T) {
	table, err := NewTable(nil, nil)
	require.NoError(t, err)
	assert.True(t, table.Empty())

	_, ok := table.Resolve(StepText{Name: "notice:assembly"})
	assert.False(t, ok)
}

func TestOverridesTakePrecedence(t *testing.T) {
	table, err := NewTable(fundPeriods(), []Override{
		{NoticeType: "assembly", BusinessDays: 20},
		{NoticeType: "valuation", BusinessDays: 3},
	})
	require.NoError(t, err)

	r, ok := table.Rule("assembly")
	require.True(t, ok)
	assert.Equal(t, 20, r.BusinessDays)
	assert.Contains(t, r.Aliases, "총회 소집통지")

	m, ok := table.Resolve(StepText{Timing: "#VALUATION"})
	require.True(t, ok)
	assert.Equal(t, "valuation", m.NoticeType)
}

func TestNewTableValidation(t *testing.T) {
	_, err := NewTable([]models.FundNoticePeriod{{NoticeType: "assembly", BusinessDays: 400}}, nil)
	assert.True(t, errors.Is(err, ErrOutOfRange))

	_, err = NewTable(nil, []Override{{NoticeType: "assembly", BusinessDays: -1}})
	assert.True(t, errors.Is(err, ErrOutOfRange))

	_, err = NewTable([]models.FundNoticePeriod{{NoticeType: "assembly", BusinessDays: 5, DayBasis: "weeks"}}, nil)
	assert.True(t, errors.Is(err, ErrInvalidDayBasis))
}

func TestStepDate(t *testing.T) {
	cal := calendar.New()
	table, err := NewTable(fundPeriods(), nil)
	require.NoError(t, err)

	trigger := time.Date(2025, 10, 15, 0, 0, 0, 0, time.UTC)

	got, m := table.StepDate(cal, trigger, models.WorkflowStep{Name: "총회 소집통지 발송", TimingOffsetDays: -1})
	require.NotNil(t, m)
	assert.Equal(t, cal.BusinessDaysBefore(trigger, 14), got)

	got, m = table.StepDate(cal, trigger, models.WorkflowStep{Name: "배분 통지", TimingOffsetDays: -1})
	require.NotNil(t, m)
	assert.Equal(t, time.Date(2025, 10, 10, 0, 0, 0, 0, time.UTC), got)

	got, m = table.StepDate(cal, trigger, models.WorkflowStep{Name: "투자심의위원회", TimingOffsetDays: 2})
	assert.Nil(t, m)
	assert.Equal(t, cal.StepDate(trigger, 2), got)
}

type mockLister struct {
	mock.Mock
}

func (m *mockLister) ListNoticePeriods(ctx context.Context, fundID int64) ([]models.FundNoticePeriod, error) {
	args := m.Called(ctx, fundID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.FundNoticePeriod), args.Error(1)
}

func TestCachedSource(t *testing.T) {
	ctx := context.Background()
	lister := new(mockLister)
	lister.On("ListNoticePeriods", mock.Anything, int64(1)).Return(fundPeriods(), nil).Twice()

	src := NewCachedSource(lister, time.Minute)

	p, err := src.ListNoticePeriods(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, p, 3)

	_, err = src.ListNoticePeriods(ctx, 1)
	require.NoError(t, err)

	src.Invalidate(1)
	_, err = src.ListNoticePeriods(ctx, 1)
	require.NoError(t, err)

	lister.AssertNumberOfCalls(t, "ListNoticePeriods", 2)
}

func TestCachedSourceNoTTLReadsThrough(t *testing.T) {
	ctx := context.Background()
	lister := new(mockLister)
	lister.On("ListNoticePeriods", mock.Anything, int64(2)).Return(nil, errors.New("boom")).Once()
	lister.On("ListNoticePeriods", mock.Anything, int64(2)).Return([]models.FundNoticePeriod{}, nil).Once()

	src := NewCachedSource(lister, 0)
	_, err := src.ListNoticePeriods(ctx, 2)
	assert.Error(t, err)
	_, err = src.ListNoticePeriods(ctx, 2)
	assert.NoError(t, err)
	lister.AssertExpectations(t)
}

func TestLoadWithoutFund(t *testing.T) {
	table, err := Load(context.Background(), new(mockLister), nil, []Override{{NoticeType: "assembly", BusinessDays: 7}})
	require.NoError(t, err)
	r, ok := table.Rule("assembly")
	require.True(t, ok)
	assert.Equal(t, 7, r.BusinessDays)
}
