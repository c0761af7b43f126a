package consol

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdavon/closebook/internal/shared"
)

func newTestStore(t *testing.T) (*UnmappedStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewUnmappedStore(client, time.Hour), mr
}

func TestUnmappedStoreRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	report := UnmappedReport{
		OrganizationID: 1,
		PeriodKey:      "2025-06",
		GeneratedAt:    time.Date(2025, 7, 1, 3, 0, 0, 0, time.UTC),
		Rows: []UnmappedBalance{
			{EntityID: 2, EntityCode: "B", EntityAccountID: 999, PeriodKey: "2025-06", Amount: 777},
		},
	}
	require.NoError(t, store.Save(context.Background(), report))

	loaded, err := store.Load(context.Background(), 1, shared.Period{Year: 2025, Month: 6})
	require.NoError(t, err)
	assert.Equal(t, report.OrganizationID, loaded.OrganizationID)
	require.Len(t, loaded.Rows, 1)
	assert.Equal(t, 777.0, loaded.Rows[0].Amount)
}

func TestUnmappedStoreMissReturnsSentinel(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.Load(context.Background(), 1, shared.Period{Year: 2025, Month: 1})
	assert.ErrorIs(t, err, ErrReportNotFound)
}

func TestUnmappedStoreExpires(t *testing.T) {
	store, mr := newTestStore(t)
	report := UnmappedReport{OrganizationID: 3, PeriodKey: "2025-05"}
	require.NoError(t, store.Save(context.Background(), report))

	mr.FastForward(2 * time.Hour)
	_, err := store.Load(context.Background(), 3, shared.Period{Year: 2025, Month: 5})
	assert.ErrorIs(t, err, ErrReportNotFound)
}

func TestUnmappedStoreRejectsBadPeriodKey(t *testing.T) {
	store, _ := newTestStore(t)
	err := store.Save(context.Background(), UnmappedReport{OrganizationID: 1, PeriodKey: "junk"})
	assert.ErrorIs(t, err, shared.ErrInvalidPeriod)
}
