package adjust

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jdavon/closebook/internal/consol"
	"github.com/jdavon/closebook/internal/shared"
)

const uniqueViolation = "23505"

// Repository persists adjustment and elimination rows.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs an adjust repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func mapInsertErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicateRef
	}
	return err
}

// InsertAllocation stores a new allocation adjustment and returns the row.
func (r *Repository) InsertAllocation(ctx context.Context, ref uuid.UUID, in AllocationInput) (consol.AllocationAdjustment, error) {
	row := consol.AllocationAdjustment{
		Ref:                        ref,
		OrganizationID:             in.OrganizationID,
		Kind:                       in.Kind,
		SourceEntityID:             in.SourceEntityID,
		DestinationEntityID:        in.DestinationEntityID,
		MasterAccountID:            in.MasterAccountID,
		DestinationMasterAccountID: in.DestinationMasterAccountID,
		Amount:                     in.Amount,
		Description:                in.Description,
		Schedule:                   in.Schedule,
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO allocation_adjustments
			(ref, organization_id, kind, source_entity_id, destination_entity_id,
			 master_account_id, destination_master_account_id, amount, description,
			 schedule_type, start_year, start_month, end_year, end_month)
		VALUES ($1, $2, $3, $4, NULLIF($5, 0), $6, NULLIF($7, 0), $8, $9, $10, $11, $12, NULLIF($13, 0), NULLIF($14, 0))
		RETURNING id`,
		ref, in.OrganizationID, string(in.Kind), in.SourceEntityID, in.DestinationEntityID,
		in.MasterAccountID, in.DestinationMasterAccountID, in.Amount, in.Description,
		string(in.Schedule.Kind), in.Schedule.Start.Year, in.Schedule.Start.Month,
		in.Schedule.End.Year, in.Schedule.End.Month,
	).Scan(&row.ID)
	if err != nil {
		return consol.AllocationAdjustment{}, mapInsertErr(err)
	}
	return row, nil
}

// UpdateAllocation replaces the mutable fields of an allocation adjustment.
func (r *Repository) UpdateAllocation(ctx context.Context, id int64, in AllocationInput) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE allocation_adjustments
		SET kind = $3, source_entity_id = $4, destination_entity_id = NULLIF($5, 0),
		    master_account_id = $6, destination_master_account_id = NULLIF($7, 0),
		    amount = $8, description = $9,
		    schedule_type = $10, start_year = $11, start_month = $12,
		    end_year = NULLIF($13, 0), end_month = NULLIF($14, 0),
		    updated_at = NOW()
		WHERE id = $1 AND organization_id = $2`,
		id, in.OrganizationID, string(in.Kind), in.SourceEntityID, in.DestinationEntityID,
		in.MasterAccountID, in.DestinationMasterAccountID, in.Amount, in.Description,
		string(in.Schedule.Kind), in.Schedule.Start.Year, in.Schedule.Start.Month,
		in.Schedule.End.Year, in.Schedule.End.Month)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAdjustmentNotFound
	}
	return nil
}

// SetAllocationExcluded toggles an adjustment in or out of consolidation
// without losing its definition.
func (r *Repository) SetAllocationExcluded(ctx context.Context, organizationID, id int64, excluded bool) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE allocation_adjustments SET is_excluded = $3, updated_at = NOW()
		WHERE id = $1 AND organization_id = $2`, id, organizationID, excluded)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAdjustmentNotFound
	}
	return nil
}

// DeleteAllocation removes an allocation adjustment.
func (r *Repository) DeleteAllocation(ctx context.Context, organizationID, id int64) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM allocation_adjustments WHERE id = $1 AND organization_id = $2`, id, organizationID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAdjustmentNotFound
	}
	return nil
}

// InsertProForma stores a new pro forma adjustment and returns the row.
func (r *Repository) InsertProForma(ctx context.Context, ref uuid.UUID, in ProFormaInput) (consol.ProFormaAdjustment, error) {
	row := consol.ProFormaAdjustment{
		Ref:             ref,
		OrganizationID:  in.OrganizationID,
		EntityID:        in.EntityID,
		MasterAccountID: in.MasterAccountID,
		Period:          in.Period,
		Amount:          in.Amount,
		Description:     in.Description,
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO pro_forma_adjustments
			(ref, organization_id, entity_id, master_account_id, year, month, amount, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		ref, in.OrganizationID, in.EntityID, in.MasterAccountID,
		in.Period.Year, in.Period.Month, in.Amount, in.Description,
	).Scan(&row.ID)
	if err != nil {
		return consol.ProFormaAdjustment{}, mapInsertErr(err)
	}
	return row, nil
}

// UpdateProForma replaces the mutable fields of a pro forma adjustment.
func (r *Repository) UpdateProForma(ctx context.Context, id int64, in ProFormaInput) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE pro_forma_adjustments
		SET entity_id = $3, master_account_id = $4, year = $5, month = $6,
		    amount = $7, description = $8, updated_at = NOW()
		WHERE id = $1 AND organization_id = $2`,
		id, in.OrganizationID, in.EntityID, in.MasterAccountID,
		in.Period.Year, in.Period.Month, in.Amount, in.Description)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAdjustmentNotFound
	}
	return nil
}

// SetProFormaExcluded toggles a pro forma adjustment in or out of
// consolidation.
func (r *Repository) SetProFormaExcluded(ctx context.Context, organizationID, id int64, excluded bool) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE pro_forma_adjustments SET is_excluded = $3, updated_at = NOW()
		WHERE id = $1 AND organization_id = $2`, id, organizationID, excluded)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAdjustmentNotFound
	}
	return nil
}

// DeleteProForma removes a pro forma adjustment.
func (r *Repository) DeleteProForma(ctx context.Context, organizationID, id int64) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM pro_forma_adjustments WHERE id = $1 AND organization_id = $2`, id, organizationID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAdjustmentNotFound
	}
	return nil
}

// InsertElimination stores a new draft elimination and returns the row.
func (r *Repository) InsertElimination(ctx context.Context, ref uuid.UUID, in EliminationInput) (consol.Elimination, error) {
	row := consol.Elimination{
		Ref:                   ref,
		OrganizationID:        in.OrganizationID,
		DebitMasterAccountID:  in.DebitMasterAccountID,
		CreditMasterAccountID: in.CreditMasterAccountID,
		Amount:                in.Amount,
		Period:                in.Period,
		Status:                consol.EliminationDraft,
		EliminationType:       in.EliminationType,
		Description:           in.Description,
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO eliminations
			(ref, organization_id, debit_master_account_id, credit_master_account_id,
			 amount, year, month, status, elimination_type, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		ref, in.OrganizationID, in.DebitMasterAccountID, in.CreditMasterAccountID,
		in.Amount, in.Period.Year, in.Period.Month, string(consol.EliminationDraft),
		in.EliminationType, in.Description,
	).Scan(&row.ID)
	if err != nil {
		return consol.Elimination{}, mapInsertErr(err)
	}
	return row, nil
}

// GetElimination loads one elimination by id within the organization.
func (r *Repository) GetElimination(ctx context.Context, organizationID, id int64) (consol.Elimination, error) {
	var e consol.Elimination
	var status string
	err := r.pool.QueryRow(ctx, `
		SELECT id, ref, organization_id, debit_master_account_id, credit_master_account_id,
		       amount, year, month, status, elimination_type, description
		FROM eliminations
		WHERE id = $1 AND organization_id = $2`, id, organizationID).Scan(
		&e.ID, &e.Ref, &e.OrganizationID, &e.DebitMasterAccountID, &e.CreditMasterAccountID,
		&e.Amount, &e.Period.Year, &e.Period.Month, &status, &e.EliminationType, &e.Description)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return consol.Elimination{}, ErrEliminationNotFound
		}
		return consol.Elimination{}, err
	}
	e.Status = consol.EliminationStatus(status)
	return e, nil
}

// UpdateElimination replaces the mutable fields of a draft elimination.
// The status guard lives in the WHERE clause so a concurrent post loses.
func (r *Repository) UpdateElimination(ctx context.Context, id int64, in EliminationInput) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE eliminations
		SET debit_master_account_id = $3, credit_master_account_id = $4,
		    amount = $5, year = $6, month = $7, elimination_type = $8,
		    description = $9, updated_at = NOW()
		WHERE id = $1 AND organization_id = $2 AND status = $10`,
		id, in.OrganizationID, in.DebitMasterAccountID, in.CreditMasterAccountID,
		in.Amount, in.Period.Year, in.Period.Month, in.EliminationType,
		in.Description, string(consol.EliminationDraft))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotDraft
	}
	return nil
}

// SetEliminationStatus moves an elimination between lifecycle states. The
// current status rides in the WHERE clause so concurrent transitions
// cannot double-apply.
func (r *Repository) SetEliminationStatus(ctx context.Context, organizationID, id int64, current, target consol.EliminationStatus) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE eliminations SET status = $3, updated_at = NOW()
		WHERE id = $1 AND organization_id = $2 AND status = $4`,
		id, organizationID, string(target), string(current))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrInvalidStatusTransition
	}
	return nil
}

// DeleteElimination removes a draft elimination. Posted and reversed
// entries stay for audit.
func (r *Repository) DeleteElimination(ctx context.Context, organizationID, id int64) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM eliminations WHERE id = $1 AND organization_id = $2 AND status = $3`,
		id, organizationID, string(consol.EliminationDraft))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotDraft
	}
	return nil
}
