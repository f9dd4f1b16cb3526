package main

import (
	"context"
	"fmt"

	"fundops/backend/internal/logging"
	"fundops/backend/internal/repository"
	"fundops/backend/internal/services"
	"fundops/backend/pkg/models"
)

// demoTemplates are the workflows a fresh install starts with.
var demoTemplates = []models.WorkflowTemplate{
	{
		Name:               "조합 결성",
		Category:           models.CategoryFundFormation,
		TriggerDescription: "결성총회일",
		Steps: []models.WorkflowStep{
			{Order: 1, Name: "규약(안) 확정", Timing: "D-21", TimingOffsetDays: -21, EstimatedTime: "2h", Quadrant: "Q1"},
			{Order: 2, Name: "총회 소집통지 발송", Timing: "notice:assembly", EstimatedTime: "1h", Quadrant: "Q1"},
			{Order: 3, Name: "출자금 납입 요청", Timing: "D-5", TimingOffsetDays: -5, EstimatedTime: "1h", Quadrant: "Q1"},
			{Order: 4, Name: "결성총회 개최", Timing: "D-day", EstimatedTime: "3h", Quadrant: "Q1"},
			{Order: 5, Name: "등록 신청", Timing: "D+7", TimingOffsetDays: 7, EstimatedTime: "2h", Quadrant: "Q2",
				Memo: "중기부 등록 서류 제출"},
		},
	},
	{
		Name:               "LP 교체",
		Category:           models.CategoryLPTransfer,
		TriggerDescription: "양수도 계약일",
		Steps: []models.WorkflowStep{
			{Order: 1, Name: "양수도 계약서 수령", Timing: "D-day", EstimatedTime: "30m", Quadrant: "Q2"},
			{Order: 2, Name: "LP 동의 요청", Timing: "#lp_consent", EstimatedTime: "1h", Quadrant: "Q1"},
			{Order: 3, Name: "출자자 명부 변경", Timing: "D+5", TimingOffsetDays: 5, EstimatedTime: "1h", Quadrant: "Q2"},
		},
	},
	{
		Name:               "출자금 납입",
		Category:           "출자",
		TriggerDescription: "납입기일",
		Steps: []models.WorkflowStep{
			{Order: 1, Name: "출자요청서 발송", Timing: "[capital_call]", EstimatedTime: "1h", Quadrant: "Q1"},
			{Order: 2, Name: "출자금 납입확인", Timing: "D-day", EstimatedTime: "30m", Quadrant: "Q1"},
			{Order: 3, Name: "납입 결과 보고", Timing: "D+3", TimingOffsetDays: 3, EstimatedTime: "1h", Quadrant: "Q2"},
		},
	},
	{
		Name:               "투자 집행",
		Category:           "투자",
		TriggerDescription: "투자 집행일",
		Steps: []models.WorkflowStep{
			{Order: 1, Name: "투심위 개최", Timing: "D-14", TimingOffsetDays: -14, EstimatedTime: "2h", Quadrant: "Q1"},
			{Order: 2, Name: "투자계약 체결", Timing: "D-3", TimingOffsetDays: -3, EstimatedTime: "2h", Quadrant: "Q1"},
			{Order: 3, Name: "투자금 송금", Timing: "D-day", EstimatedTime: "30m", Quadrant: "Q1"},
		},
		Documents: []models.WorkflowDocument{
			{Name: "투자계약서", Required: true},
			{Name: "주주명부", Required: true},
			{Name: "법인등기부등본", Required: false},
		},
	},
}

// demoNoticePeriods belong to the demo fund created with the formation template.
var demoNoticePeriods = []models.FundNoticePeriod{
	{NoticeType: "assembly", Label: "총회 소집통지", BusinessDays: 14, DayBasis: models.DayBasisBusiness},
	{NoticeType: "capital_call", Label: "출자 요청", BusinessDays: 10, DayBasis: models.DayBasisBusiness},
	{NoticeType: "lp_consent", Label: "LP 동의", BusinessDays: 30, DayBasis: models.DayBasisCalendar},
}

// seed creates missing demo templates by name. The demo fund is created only
// when the formation template is created, so reruns do not duplicate it; it
// is returned when created.
func seed(ctx context.Context, store repository.Seeder, templates services.TemplateManager, logger *logging.Logger) (*models.Fund, error) {
	existing, err := templates.ListTemplates(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing templates: %w", err)
	}
	existingMap := make(map[string]bool, len(existing))
	for _, t := range existing {
		existingMap[t.Name] = true
	}

	var fund *models.Fund
	for _, demo := range demoTemplates {
		if existingMap[demo.Name] {
			logger.Info("Skipping existing workflow", "name", demo.Name)
			continue
		}
		tpl := demo
		tpl.Steps = append([]models.WorkflowStep(nil), demo.Steps...)
		tpl.Documents = append([]models.WorkflowDocument(nil), demo.Documents...)
		created, err := templates.CreateTemplate(ctx, &tpl)
		if err != nil {
			return nil, fmt.Errorf("creating workflow %s: %w", demo.Name, err)
		}
		logger.Info("Seeded workflow", "name", created.Name, "id", created.ID, "steps", len(created.Steps))

		if created.Category == models.CategoryFundFormation {
			if fund, err = seedFund(ctx, store, logger); err != nil {
				return nil, err
			}
		}
	}
	return fund, nil
}

func seedFund(ctx context.Context, store repository.Seeder, logger *logging.Logger) (*models.Fund, error) {
	fund := &models.Fund{Name: "데모 1호 조합", Status: models.FundStatusForming, Commitment: 10_000_000_000}
	if err := store.CreateFund(ctx, fund); err != nil {
		return nil, fmt.Errorf("creating demo fund: %w", err)
	}
	for _, p := range demoNoticePeriods {
		period := p
		period.FundID = fund.ID
		if err := store.CreateNoticePeriod(ctx, &period); err != nil {
			return nil, fmt.Errorf("creating notice period %s: %w", p.NoticeType, err)
		}
	}
	logger.Info("Seeded fund", "name", fund.Name, "id", fund.ID, "notice_periods", len(demoNoticePeriods))
	return fund, nil
}
