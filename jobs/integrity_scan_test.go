package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jdavon/closebook/internal/consol"
	jobmetrics "github.com/jdavon/closebook/internal/jobs"
)

type fakeBalanceSource struct {
	calls    []consol.Filters
	unmapped map[int64][]consol.UnmappedBalance
	err      error
}

func (f *fakeBalanceSource) GetTrialBalance(_ context.Context, filters consol.Filters) (consol.TrialBalance, error) {
	f.calls = append(f.calls, filters)
	if f.err != nil {
		return consol.TrialBalance{}, f.err
	}
	return consol.TrialBalance{
		OrganizationID: filters.OrganizationID,
		PeriodKey:      filters.Period.Key(),
		Unmapped:       f.unmapped[filters.OrganizationID],
	}, nil
}

type fakeOrgLister struct {
	ids []int64
	err error
}

func (f *fakeOrgLister) ListOrganizationIDs(context.Context) ([]int64, error) {
	return f.ids, f.err
}

type fakeReportSink struct {
	saved []consol.UnmappedReport
	err   error
}

func (f *fakeReportSink) Save(_ context.Context, report consol.UnmappedReport) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, report)
	return nil
}

func newScanJob(source *fakeBalanceSource, lister *fakeOrgLister, sink *fakeReportSink) *IntegrityScanJob {
	job := NewIntegrityScanJob(source, lister, sink, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	job.WithClock(func() time.Time {
		return time.Date(2025, time.June, 15, 3, 0, 0, 0, time.UTC)
	})
	return job
}

func scanTask(t *testing.T, organization, period string) *asynq.Task {
	t.Helper()
	task, err := NewIntegrityScanTask(organization, period)
	if err != nil {
		t.Fatalf("build task: %v", err)
	}
	return task
}

func TestIntegrityScanFansOutOverOrganizations(t *testing.T) {
	source := &fakeBalanceSource{unmapped: map[int64][]consol.UnmappedBalance{
		1: {{EntityID: 1, EntityCode: "US", EntityAccountID: 900, PeriodKey: "2025-06", Amount: 42}},
	}}
	lister := &fakeOrgLister{ids: []int64{1, 2}}
	sink := &fakeReportSink{}
	job := newScanJob(source, lister, sink)

	if err := job.Handle(context.Background(), scanTask(t, "all", "current")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(sink.saved) != 2 {
		t.Fatalf("expected 2 reports, got %d", len(sink.saved))
	}
	first := sink.saved[0]
	if first.OrganizationID != 1 || first.PeriodKey != "2025-06" {
		t.Fatalf("unexpected report scope: org %d period %s", first.OrganizationID, first.PeriodKey)
	}
	if len(first.Rows) != 1 || first.Rows[0].EntityAccountID != 900 {
		t.Fatalf("unexpected rows: %+v", first.Rows)
	}
	if !first.GeneratedAt.Equal(time.Date(2025, time.June, 15, 3, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected generated at: %v", first.GeneratedAt)
	}
	if len(sink.saved[1].Rows) != 0 {
		t.Fatalf("expected empty report for org 2, got %+v", sink.saved[1].Rows)
	}
}

func TestIntegrityScanSingleOrganizationAndPeriod(t *testing.T) {
	source := &fakeBalanceSource{}
	lister := &fakeOrgLister{ids: []int64{1, 2, 3}}
	sink := &fakeReportSink{}
	job := newScanJob(source, lister, sink)

	if err := job.Handle(context.Background(), scanTask(t, "2", "2025-03")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(source.calls) != 1 {
		t.Fatalf("expected 1 trial balance call, got %d", len(source.calls))
	}
	call := source.calls[0]
	if call.OrganizationID != 2 || call.Period.Key() != "2025-03" {
		t.Fatalf("unexpected filters: %+v", call)
	}
	if !call.IncludeAllocations || !call.IncludeProForma {
		t.Fatalf("scan must include adjustments: %+v", call)
	}
}

func TestIntegrityScanRejectsBadOrganization(t *testing.T) {
	job := newScanJob(&fakeBalanceSource{}, &fakeOrgLister{}, &fakeReportSink{})
	if err := job.Handle(context.Background(), scanTask(t, "abc", "2025-03")); err == nil {
		t.Fatal("expected error for invalid organization")
	}
	if err := job.Handle(context.Background(), scanTask(t, "-4", "2025-03")); err == nil {
		t.Fatal("expected error for negative organization")
	}
}

func TestIntegrityScanSkipsVanishedOrganization(t *testing.T) {
	source := &fakeBalanceSource{err: consol.ErrOrganizationNotFound}
	sink := &fakeReportSink{}
	job := newScanJob(source, &fakeOrgLister{ids: []int64{9}}, sink)

	if err := job.Handle(context.Background(), scanTask(t, "all", "2025-01")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(sink.saved) != 0 {
		t.Fatalf("expected no reports, got %d", len(sink.saved))
	}
}

func TestIntegrityScanPropagatesSinkError(t *testing.T) {
	sinkErr := errors.New("redis down")
	job := newScanJob(&fakeBalanceSource{}, &fakeOrgLister{ids: []int64{1}}, &fakeReportSink{err: sinkErr})
	if err := job.Handle(context.Background(), scanTask(t, "all", "2025-01")); !errors.Is(err, sinkErr) {
		t.Fatalf("expected sink error, got %v", err)
	}
}

func TestIntegrityScanMalformedPayloadSkipsRetry(t *testing.T) {
	job := newScanJob(&fakeBalanceSource{}, &fakeOrgLister{}, &fakeReportSink{})
	task := asynq.NewTask(TaskIntegrityScan, []byte("{not json"))
	if err := job.Handle(context.Background(), task); !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}
}
