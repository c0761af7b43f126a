package consol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jdavon/closebook/internal/shared"
)

// UnmappedReport is the cached result of an integrity scan: every entity
// account with activity in the period but no mapping to the master chart.
type UnmappedReport struct {
	OrganizationID int64             `json:"organization_id"`
	PeriodKey      string            `json:"period"`
	GeneratedAt    time.Time         `json:"generated_at"`
	Rows           []UnmappedBalance `json:"rows"`
}

// ErrReportNotFound indicates no scan has run for the requested period.
var ErrReportNotFound = errors.New("consol: unmapped report not found")

// UnmappedStore caches integrity-scan reports in Redis. The scan job
// writes, the API reads through; consolidation reads never depend on it.
type UnmappedStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewUnmappedStore constructs the store.
func NewUnmappedStore(client *redis.Client, ttl time.Duration) *UnmappedStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &UnmappedStore{client: client, ttl: ttl}
}

func unmappedKey(organizationID int64, period shared.Period) string {
	return fmt.Sprintf("closebook:unmapped:%d:%s", organizationID, period.Key())
}

// Save stores the report under its organization and period.
func (s *UnmappedStore) Save(ctx context.Context, report UnmappedReport) error {
	if s == nil || s.client == nil {
		return errors.New("consol: unmapped store not initialised")
	}
	period, err := shared.ParsePeriod(report.PeriodKey)
	if err != nil {
		return err
	}
	data, err := json.Marshal(report)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, unmappedKey(report.OrganizationID, period), data, s.ttl).Err()
}

// Load fetches the cached report for an organization and period.
func (s *UnmappedStore) Load(ctx context.Context, organizationID int64, period shared.Period) (UnmappedReport, error) {
	if s == nil || s.client == nil {
		return UnmappedReport{}, errors.New("consol: unmapped store not initialised")
	}
	data, err := s.client.Get(ctx, unmappedKey(organizationID, period)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return UnmappedReport{}, ErrReportNotFound
		}
		return UnmappedReport{}, err
	}
	var report UnmappedReport
	if err := json.Unmarshal(data, &report); err != nil {
		return UnmappedReport{}, err
	}
	return report, nil
}
