package adjust

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdavon/closebook/internal/consol"
	"github.com/jdavon/closebook/internal/shared"
)

type fakeStore struct {
	allocations  map[int64]consol.AllocationAdjustment
	proForma     map[int64]consol.ProFormaAdjustment
	eliminations map[int64]consol.Elimination
	nextID       int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		allocations:  make(map[int64]consol.AllocationAdjustment),
		proForma:     make(map[int64]consol.ProFormaAdjustment),
		eliminations: make(map[int64]consol.Elimination),
	}
}

func (f *fakeStore) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeStore) InsertAllocation(_ context.Context, ref uuid.UUID, in AllocationInput) (consol.AllocationAdjustment, error) {
	row := consol.AllocationAdjustment{
		ID: f.id(), Ref: ref, OrganizationID: in.OrganizationID, Kind: in.Kind,
		SourceEntityID: in.SourceEntityID, DestinationEntityID: in.DestinationEntityID,
		MasterAccountID: in.MasterAccountID, DestinationMasterAccountID: in.DestinationMasterAccountID,
		Amount: in.Amount, Description: in.Description, Schedule: in.Schedule,
	}
	f.allocations[row.ID] = row
	return row, nil
}

func (f *fakeStore) UpdateAllocation(_ context.Context, id int64, in AllocationInput) error {
	row, ok := f.allocations[id]
	if !ok {
		return ErrAdjustmentNotFound
	}
	row.Kind, row.Amount, row.Schedule = in.Kind, in.Amount, in.Schedule
	f.allocations[id] = row
	return nil
}

func (f *fakeStore) SetAllocationExcluded(_ context.Context, _, id int64, excluded bool) error {
	row, ok := f.allocations[id]
	if !ok {
		return ErrAdjustmentNotFound
	}
	row.Excluded = excluded
	f.allocations[id] = row
	return nil
}

func (f *fakeStore) DeleteAllocation(_ context.Context, _, id int64) error {
	if _, ok := f.allocations[id]; !ok {
		return ErrAdjustmentNotFound
	}
	delete(f.allocations, id)
	return nil
}

func (f *fakeStore) InsertProForma(_ context.Context, ref uuid.UUID, in ProFormaInput) (consol.ProFormaAdjustment, error) {
	row := consol.ProFormaAdjustment{
		ID: f.id(), Ref: ref, OrganizationID: in.OrganizationID, EntityID: in.EntityID,
		MasterAccountID: in.MasterAccountID, Period: in.Period, Amount: in.Amount, Description: in.Description,
	}
	f.proForma[row.ID] = row
	return row, nil
}

func (f *fakeStore) UpdateProForma(_ context.Context, id int64, in ProFormaInput) error {
	row, ok := f.proForma[id]
	if !ok {
		return ErrAdjustmentNotFound
	}
	row.Period, row.Amount = in.Period, in.Amount
	f.proForma[id] = row
	return nil
}

func (f *fakeStore) SetProFormaExcluded(_ context.Context, _, id int64, excluded bool) error {
	row, ok := f.proForma[id]
	if !ok {
		return ErrAdjustmentNotFound
	}
	row.Excluded = excluded
	f.proForma[id] = row
	return nil
}

func (f *fakeStore) DeleteProForma(_ context.Context, _, id int64) error {
	if _, ok := f.proForma[id]; !ok {
		return ErrAdjustmentNotFound
	}
	delete(f.proForma, id)
	return nil
}

func (f *fakeStore) InsertElimination(_ context.Context, ref uuid.UUID, in EliminationInput) (consol.Elimination, error) {
	row := consol.Elimination{
		ID: f.id(), Ref: ref, OrganizationID: in.OrganizationID,
		DebitMasterAccountID: in.DebitMasterAccountID, CreditMasterAccountID: in.CreditMasterAccountID,
		Amount: in.Amount, Period: in.Period, Status: consol.EliminationDraft,
		EliminationType: in.EliminationType, Description: in.Description,
	}
	f.eliminations[row.ID] = row
	return row, nil
}

func (f *fakeStore) GetElimination(_ context.Context, _, id int64) (consol.Elimination, error) {
	row, ok := f.eliminations[id]
	if !ok {
		return consol.Elimination{}, ErrEliminationNotFound
	}
	return row, nil
}

func (f *fakeStore) UpdateElimination(_ context.Context, id int64, in EliminationInput) error {
	row, ok := f.eliminations[id]
	if !ok || row.Status != consol.EliminationDraft {
		return ErrNotDraft
	}
	row.Amount, row.Period = in.Amount, in.Period
	f.eliminations[id] = row
	return nil
}

func (f *fakeStore) SetEliminationStatus(_ context.Context, _, id int64, current, target consol.EliminationStatus) error {
	row, ok := f.eliminations[id]
	if !ok || row.Status != current {
		return shared.ErrInvalidStatusTransition
	}
	row.Status = target
	f.eliminations[id] = row
	return nil
}

func (f *fakeStore) DeleteElimination(_ context.Context, _, id int64) error {
	row, ok := f.eliminations[id]
	if !ok || row.Status != consol.EliminationDraft {
		return ErrNotDraft
	}
	delete(f.eliminations, id)
	return nil
}

type fakeAudit struct {
	logs []shared.AuditLog
}

func (f *fakeAudit) Record(_ context.Context, log shared.AuditLog) error {
	f.logs = append(f.logs, log)
	return nil
}

func validAllocation() AllocationInput {
	return AllocationInput{
		OrganizationID:  1,
		Kind:            consol.AllocationInterEntity,
		SourceEntityID:  1,
		DestinationEntityID: 2,
		MasterAccountID: 10,
		Amount:          6000,
		Description:     "management fee",
		Schedule:        consol.SpreadSchedule(shared.Period{Year: 2025, Month: 1}, shared.Period{Year: 2025, Month: 6}),
		ActorID:         7,
	}
}

func TestCreateAllocationValidation(t *testing.T) {
	svc := NewService(newFakeStore(), &fakeAudit{})
	ctx := context.Background()

	in := validAllocation()
	in.Amount = 0
	_, err := svc.CreateAllocation(ctx, in)
	assert.ErrorContains(t, err, "non-zero")

	in = validAllocation()
	in.DestinationEntityID = in.SourceEntityID
	_, err = svc.CreateAllocation(ctx, in)
	assert.ErrorContains(t, err, "entities must differ")

	in = validAllocation()
	in.DestinationMasterAccountID = 11
	_, err = svc.CreateAllocation(ctx, in)
	assert.ErrorContains(t, err, "one master account")

	in = validAllocation()
	in.Kind = consol.AllocationReclass
	in.DestinationEntityID = 0
	in.DestinationMasterAccountID = in.MasterAccountID
	_, err = svc.CreateAllocation(ctx, in)
	assert.ErrorContains(t, err, "master accounts must differ")

	in = validAllocation()
	in.Schedule = consol.RepeatingSchedule(shared.Period{Year: 2025, Month: 3}, shared.Period{Year: 2025, Month: 3})
	_, err = svc.CreateAllocation(ctx, in)
	assert.ErrorContains(t, err, "at least 2 months")
}

func TestCreateAllocationRecordsAudit(t *testing.T) {
	audit := &fakeAudit{}
	svc := NewService(newFakeStore(), audit)

	row, err := svc.CreateAllocation(context.Background(), validAllocation())
	require.NoError(t, err)
	assert.NotZero(t, row.ID)
	assert.NotEqual(t, uuid.Nil, row.Ref)

	require.Len(t, audit.logs, 1)
	assert.Equal(t, "create", audit.logs[0].Action)
	assert.Equal(t, "allocation_adjustment", audit.logs[0].Entity)
	assert.Equal(t, int64(7), audit.logs[0].ActorID)
}

func TestSetAllocationExcludedRoundTrip(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, &fakeAudit{})
	ctx := context.Background()

	row, err := svc.CreateAllocation(ctx, validAllocation())
	require.NoError(t, err)

	require.NoError(t, svc.SetAllocationExcluded(ctx, 1, row.ID, 7, true))
	assert.True(t, store.allocations[row.ID].Excluded)

	require.NoError(t, svc.SetAllocationExcluded(ctx, 1, row.ID, 7, false))
	assert.False(t, store.allocations[row.ID].Excluded)
}

func TestCreateProFormaValidation(t *testing.T) {
	svc := NewService(newFakeStore(), &fakeAudit{})
	ctx := context.Background()

	in := ProFormaInput{OrganizationID: 1, EntityID: 1, MasterAccountID: 10, Amount: 100, ActorID: 7}
	_, err := svc.CreateProForma(ctx, in)
	assert.ErrorIs(t, err, shared.ErrInvalidPeriod)

	in.Period = shared.Period{Year: 2025, Month: 6}
	in.Amount = 0
	_, err = svc.CreateProForma(ctx, in)
	assert.ErrorContains(t, err, "non-zero")

	in.Amount = 100
	_, err = svc.CreateProForma(ctx, in)
	assert.NoError(t, err)
}

func validElimination() EliminationInput {
	return EliminationInput{
		OrganizationID:        1,
		DebitMasterAccountID:  10,
		CreditMasterAccountID: 12,
		Amount:                1000,
		Period:                shared.Period{Year: 2025, Month: 6},
		EliminationType:       "intercompany_sales",
		ActorID:               7,
	}
}

func TestEliminationLifecycle(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, &fakeAudit{})
	ctx := context.Background()

	row, err := svc.CreateElimination(ctx, validElimination())
	require.NoError(t, err)
	assert.Equal(t, consol.EliminationDraft, row.Status)

	posted, err := svc.PostElimination(ctx, 1, row.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, consol.EliminationPosted, posted.Status)

	// Posting twice is rejected.
	_, err = svc.PostElimination(ctx, 1, row.ID, 7)
	assert.ErrorIs(t, err, shared.ErrInvalidStatusTransition)

	reversed, err := svc.ReverseElimination(ctx, 1, row.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, consol.EliminationReversed, reversed.Status)

	_, err = svc.ReverseElimination(ctx, 1, row.ID, 7)
	assert.ErrorIs(t, err, shared.ErrInvalidStatusTransition)
}

func TestReverseRequiresPosted(t *testing.T) {
	svc := NewService(newFakeStore(), &fakeAudit{})
	ctx := context.Background()

	row, err := svc.CreateElimination(ctx, validElimination())
	require.NoError(t, err)

	_, err = svc.ReverseElimination(ctx, 1, row.ID, 7)
	assert.ErrorIs(t, err, shared.ErrInvalidStatusTransition)
}

func TestDeleteEliminationDraftOnly(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, &fakeAudit{})
	ctx := context.Background()

	row, err := svc.CreateElimination(ctx, validElimination())
	require.NoError(t, err)
	_, err = svc.PostElimination(ctx, 1, row.ID, 7)
	require.NoError(t, err)

	err = svc.DeleteElimination(ctx, 1, row.ID, 7)
	assert.ErrorIs(t, err, ErrNotDraft)
}

func TestEliminationValidation(t *testing.T) {
	svc := NewService(newFakeStore(), &fakeAudit{})
	ctx := context.Background()

	in := validElimination()
	in.CreditMasterAccountID = in.DebitMasterAccountID
	_, err := svc.CreateElimination(ctx, in)
	assert.ErrorContains(t, err, "must differ")

	in = validElimination()
	in.Amount = -5
	_, err = svc.CreateElimination(ctx, in)
	assert.ErrorContains(t, err, "positive")

	in = validElimination()
	in.EliminationType = "  "
	_, err = svc.CreateElimination(ctx, in)
	assert.ErrorContains(t, err, "type required")
}
