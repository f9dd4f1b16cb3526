package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"fundops/backend/pkg/models"
)

func TestPostgresStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("fundops-test"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2)),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Fatalf("failed to terminate container: %s", err)
		}
	}()

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatal(err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Close()

	require.NoError(t, Migrate(pool))
	// A second run is a no-op.
	require.NoError(t, Migrate(pool))

	store := NewPostgresStore(pool)
	require.NoError(t, store.Ping(ctx))

	fund := &models.Fund{Name: "벤처투자조합 1호", Status: models.FundStatusForming, Commitment: 10_000_000_000}
	require.NoError(t, store.CreateFund(ctx, fund))

	tpl := &models.WorkflowTemplate{
		Name:     "조합 결성",
		Category: models.CategoryFundFormation,
		Steps: []models.WorkflowStep{
			{Order: 2, Name: "등록 신청", Timing: "D+2", TimingOffsetDays: 2},
			{Order: 1, Name: "결성총회", Timing: "D-day"},
		},
		Documents: []models.WorkflowDocument{{Name: "조합규약", Required: true}},
	}

	t.Run("Create and Get template", func(t *testing.T) {
		require.NoError(t, store.CreateTemplate(ctx, tpl))
		assert.NotZero(t, tpl.ID)

		got, err := store.GetTemplate(ctx, tpl.ID)
		require.NoError(t, err)
		assert.Equal(t, tpl.Name, got.Name)
		require.Len(t, got.Steps, 2)
		assert.Equal(t, "결성총회", got.Steps[0].Name)
		assert.Len(t, got.Documents, 1)

		_, err = store.GetTemplate(ctx, tpl.ID+1000)
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("Rollback discards writes", func(t *testing.T) {
		boom := errors.New("boom")
		var taskID int64
		err := store.WithinTx(ctx, func(ctx context.Context) error {
			task := &models.Task{Title: "rolled back", Status: models.TaskStatusPending, CreatedAt: time.Now()}
			if err := store.CreateTask(ctx, task); err != nil {
				return err
			}
			taskID = task.ID
			// Visible inside the unit of work.
			if _, err := store.GetTask(ctx, taskID); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)
		_, err = store.GetTask(ctx, taskID)
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("Instance with step instances", func(t *testing.T) {
		trigger := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
		inst := &models.WorkflowInstance{
			WorkflowID:  tpl.ID,
			Name:        "1호 결성",
			TriggerDate: trigger,
			Status:      models.InstanceStatusActive,
			FundID:      &fund.ID,
			CreatedAt:   time.Now(),
			NoticeOverrides: []models.NoticeOverride{
				{NoticeType: "assembly", BusinessDays: 5, DayBasis: models.DayBasisBusiness},
			},
		}
		err := store.WithinTx(ctx, func(ctx context.Context) error {
			if err := store.CreateInstance(ctx, inst); err != nil {
				return err
			}
			for _, st := range tpl.Steps {
				si := &models.WorkflowStepInstance{
					InstanceID:     inst.ID,
					WorkflowStepID: st.ID,
					CalculatedDate: trigger,
					Status:         models.StepStatusPending,
				}
				if err := store.CreateStepInstance(ctx, si); err != nil {
					return err
				}
			}
			return nil
		})
		require.NoError(t, err)

		steps, err := store.ListStepInstances(ctx, inst.ID)
		require.NoError(t, err)
		require.Len(t, steps, 2)
		assert.Equal(t, 1, steps[0].StepOrder)
		assert.Equal(t, "결성총회", steps[0].StepName)

		list, err := store.ListInstances(ctx, InstanceFilter{FundID: &fund.ID})
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, trigger, list[0].TriggerDate)
		assert.Equal(t, inst.NoticeOverrides, list[0].NoticeOverrides)

		renamed := *list[0]
		renamed.Name = "1호 결성 (변경)"
		renamed.NoticeOverrides = nil
		require.NoError(t, store.UpdateInstance(ctx, &renamed))
		got, err := store.GetInstance(ctx, inst.ID)
		require.NoError(t, err)
		assert.Equal(t, "1호 결성 (변경)", got.Name)
		assert.Equal(t, inst.NoticeOverrides, got.NoticeOverrides)

		n, err := store.CountInstances(ctx, tpl.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		require.NoError(t, store.DeleteStepInstances(ctx, inst.ID))
		require.NoError(t, store.DeleteInstance(ctx, inst.ID))
		_, err = store.GetInstance(ctx, inst.ID)
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("Locked LP update", func(t *testing.T) {
		lp := &models.LP{FundID: fund.ID, Name: "LP A", Commitment: 1_000_000_000}
		require.NoError(t, store.CreateLP(ctx, lp))

		err := store.WithinTx(ctx, func(ctx context.Context) error {
			if _, err := store.LockFund(ctx, fund.ID); err != nil {
				return err
			}
			locked, err := store.LockLP(ctx, lp.ID)
			if err != nil {
				return err
			}
			locked.PaidIn += 300_000_000
			return store.UpdateLP(ctx, locked)
		})
		require.NoError(t, err)

		got, err := store.GetLP(ctx, lp.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(300_000_000), got.PaidIn)
	})

	t.Run("Notice periods", func(t *testing.T) {
		p := &models.FundNoticePeriod{FundID: fund.ID, NoticeType: "assembly", Label: "총회 소집통지", BusinessDays: 14}
		require.NoError(t, store.CreateNoticePeriod(ctx, p))

		periods, err := store.ListNoticePeriods(ctx, fund.ID)
		require.NoError(t, err)
		require.Len(t, periods, 1)
		assert.Equal(t, models.DayBasisBusiness, periods[0].DayBasis)
	})
}
