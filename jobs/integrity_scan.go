package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/hibiken/asynq"

	"github.com/jdavon/closebook/internal/consol"
	jobmetrics "github.com/jdavon/closebook/internal/jobs"
	"github.com/jdavon/closebook/internal/shared"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// TrialBalanceSource produces the consolidated trial balance whose unmapped
// section the scan persists.
type TrialBalanceSource interface {
	GetTrialBalance(ctx context.Context, filters consol.Filters) (consol.TrialBalance, error)
}

// OrganizationLister provides helper lookups for the job runtime.
type OrganizationLister interface {
	ListOrganizationIDs(ctx context.Context) ([]int64, error)
}

// ReportSink stores the scan result where the API can read it back.
type ReportSink interface {
	Save(ctx context.Context, report consol.UnmappedReport) error
}

// IntegrityScanJob walks organizations and caches their unmapped balances.
type IntegrityScanJob struct {
	Service TrialBalanceSource
	Repo    OrganizationLister
	Store   ReportSink
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewIntegrityScanJob constructs the job handler.
func NewIntegrityScanJob(service TrialBalanceSource, repo OrganizationLister, store ReportSink, logger *slog.Logger, metrics *jobmetrics.Metrics) *IntegrityScanJob {
	return &IntegrityScanJob{
		Service: service,
		Repo:    repo,
		Store:   store,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the integrity scan job.
func (j *IntegrityScanJob) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.Service == nil || j.Repo == nil || j.Store == nil {
		return errors.New("integrity scan: dependencies not configured")
	}
	var payload IntegrityScanPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Organization == "" {
		payload.Organization = "all"
	}
	if payload.Period == "" {
		payload.Period = "current"
	}

	tracker := j.metrics().Track(TaskIntegrityScan)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	period, err := j.resolvePeriod(payload.Period)
	if err != nil {
		resultErr = err
		j.log().Error("resolve period", slog.String("period", payload.Period), slog.Any("error", err))
		return resultErr
	}

	orgIDs, err := j.resolveOrganizations(ctx, payload.Organization)
	if err != nil {
		resultErr = err
		j.log().Error("resolve organizations", slog.String("organization", payload.Organization), slog.Any("error", err))
		return resultErr
	}
	if len(orgIDs) == 0 {
		j.log().Info("no organizations discovered", slog.String("period", period.Key()))
		return resultErr
	}

	start := j.now()
	scanned := 0
	for _, orgID := range orgIDs {
		if err := j.scanOne(ctx, orgID, period); err != nil {
			resultErr = err
			j.log().Error("scan organization", slog.Int64("organization_id", orgID), slog.String("period", period.Key()), slog.Any("error", err))
			return resultErr
		}
		scanned++
	}

	j.log().Info("scanned unmapped balances", slog.String("period", period.Key()), slog.Int("organizations", scanned), slog.Duration("duration", time.Since(start)))
	return resultErr
}

func (j *IntegrityScanJob) scanOne(ctx context.Context, organizationID int64, period shared.Period) error {
	tb, err := j.Service.GetTrialBalance(ctx, consol.Filters{
		OrganizationID:     organizationID,
		Period:             period,
		IncludeAllocations: true,
		IncludeProForma:    true,
	})
	if err != nil {
		if errors.Is(err, consol.ErrOrganizationNotFound) {
			j.log().Warn("organization vanished during scan", slog.Int64("organization_id", organizationID))
			return nil
		}
		return err
	}
	report := consol.UnmappedReport{
		OrganizationID: organizationID,
		PeriodKey:      period.Key(),
		GeneratedAt:    j.now(),
		Rows:           tb.Unmapped,
	}
	if err := j.Store.Save(ctx, report); err != nil {
		return err
	}
	j.metrics().SetUnmapped(organizationID, period.Key(), len(tb.Unmapped))
	return nil
}

func (j *IntegrityScanJob) resolvePeriod(code string) (shared.Period, error) {
	if code != "" && code != "current" {
		return shared.ParsePeriod(code)
	}
	now := j.now()
	return shared.NewPeriod(now.Year(), int(now.Month()))
}

func (j *IntegrityScanJob) resolveOrganizations(ctx context.Context, organization string) ([]int64, error) {
	if organization == "" || organization == "all" {
		return j.Repo.ListOrganizationIDs(ctx)
	}
	id, err := strconv.ParseInt(organization, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid organization id %s", organization)
	}
	if id <= 0 {
		return nil, fmt.Errorf("organization id must be positive")
	}
	return []int64{id}, nil
}

func (j *IntegrityScanJob) metrics() *jobmetrics.Metrics {
	if j != nil && j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *IntegrityScanJob) log() *slog.Logger {
	if j != nil && j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskIntegrityScan))
	}
	return slog.Default().With(slog.String("job", TaskIntegrityScan))
}

func (j *IntegrityScanJob) now() time.Time {
	if j != nil && j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

// WithClock overrides the internal clock for deterministic tests.
func (j *IntegrityScanJob) WithClock(clock func() time.Time) {
	if j != nil && clock != nil {
		j.clock = clock
	}
}
