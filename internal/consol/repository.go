package consol

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jdavon/closebook/internal/shared"
)

// ErrOrganizationNotFound indicates the requested organization is missing.
var ErrOrganizationNotFound = errors.New("consol: organization not found")

// Repository loads consolidation source rows from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a consolidation repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// LoadSnapshot fetches every source row a consolidation request needs:
// entities, the master chart, mappings, raw balances within [from, to],
// and all adjustment and elimination rows for the organization.
// Adjustments are loaded unbounded because their schedules, not their row
// periods, decide coverage.
func (r *Repository) LoadSnapshot(ctx context.Context, organizationID int64, from, to shared.Period) (*Snapshot, error) {
	if organizationID <= 0 {
		return nil, fmt.Errorf("consol: invalid organization id")
	}
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM organizations WHERE id = $1)`, organizationID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrOrganizationNotFound
	}

	snap := &Snapshot{OrganizationID: organizationID}
	var err error
	if snap.Entities, err = r.entities(ctx, organizationID); err != nil {
		return nil, err
	}
	if snap.Accounts, err = r.masterAccounts(ctx, organizationID); err != nil {
		return nil, err
	}
	if snap.Mappings, err = r.mappings(ctx, organizationID); err != nil {
		return nil, err
	}
	if snap.Balances, err = r.balances(ctx, organizationID, from, to, "raw_balances"); err != nil {
		return nil, err
	}
	if snap.Allocations, err = r.allocations(ctx, organizationID); err != nil {
		return nil, err
	}
	if snap.ProForma, err = r.proForma(ctx, organizationID); err != nil {
		return nil, err
	}
	if snap.Eliminations, err = r.eliminations(ctx, organizationID); err != nil {
		return nil, err
	}
	return snap, nil
}

// LoadBudgetSnapshot fetches budget source rows in the same shape as the
// actuals snapshot, so the identical pipeline produces budget columns.
// Budget figures carry no adjustments or eliminations.
func (r *Repository) LoadBudgetSnapshot(ctx context.Context, organizationID int64, from, to shared.Period) (*Snapshot, error) {
	if organizationID <= 0 {
		return nil, fmt.Errorf("consol: invalid organization id")
	}
	snap := &Snapshot{OrganizationID: organizationID}
	var err error
	if snap.Entities, err = r.entities(ctx, organizationID); err != nil {
		return nil, err
	}
	if snap.Accounts, err = r.masterAccounts(ctx, organizationID); err != nil {
		return nil, err
	}
	if snap.Mappings, err = r.mappings(ctx, organizationID); err != nil {
		return nil, err
	}
	if snap.Balances, err = r.balances(ctx, organizationID, from, to, "budget_balances"); err != nil {
		return nil, err
	}
	return snap, nil
}

func (r *Repository) entities(ctx context.Context, organizationID int64) ([]Entity, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, organization_id, code, name
		FROM entities
		WHERE organization_id = $1
		ORDER BY code`, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entity
	for rows.Next() {
		var e Entity
		if err := rows.Scan(&e.ID, &e.OrganizationID, &e.Code, &e.Name); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *Repository) masterAccounts(ctx context.Context, organizationID int64) ([]MasterAccount, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, organization_id, number, name, classification, account_type
		FROM master_accounts
		WHERE organization_id = $1
		ORDER BY number`, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []MasterAccount
	for rows.Next() {
		var a MasterAccount
		var class string
		if err := rows.Scan(&a.ID, &a.OrganizationID, &a.Number, &a.Name, &class, &a.AccountType); err != nil {
			return nil, err
		}
		a.Classification = Classification(class)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *Repository) mappings(ctx context.Context, organizationID int64) ([]AccountMapping, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT m.entity_id, m.entity_account_id, m.master_account_id
		FROM account_mappings m
		JOIN entities e ON e.id = m.entity_id
		WHERE e.organization_id = $1`, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AccountMapping
	for rows.Next() {
		var m AccountMapping
		if err := rows.Scan(&m.EntityID, &m.EntityAccountID, &m.MasterAccountID); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *Repository) balances(ctx context.Context, organizationID int64, from, to shared.Period, table string) ([]RawBalance, error) {
	query := fmt.Sprintf(`
		SELECT b.entity_id, b.entity_account_id, b.year, b.month, b.debit_total, b.credit_total
		FROM %s b
		JOIN entities e ON e.id = b.entity_id
		WHERE e.organization_id = $1
		  AND (b.year, b.month) >= ($2, $3)
		  AND (b.year, b.month) <= ($4, $5)`, table)
	rows, err := r.pool.Query(ctx, query, organizationID, from.Year, from.Month, to.Year, to.Month)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RawBalance
	for rows.Next() {
		var b RawBalance
		if err := rows.Scan(&b.EntityID, &b.EntityAccountID, &b.Period.Year, &b.Period.Month, &b.DebitTotal, &b.CreditTotal); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *Repository) allocations(ctx context.Context, organizationID int64) ([]AllocationAdjustment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, ref, organization_id, kind, source_entity_id, COALESCE(destination_entity_id, 0),
		       master_account_id, COALESCE(destination_master_account_id, 0),
		       amount, description, is_excluded,
		       schedule_type, start_year, start_month, COALESCE(end_year, 0), COALESCE(end_month, 0)
		FROM allocation_adjustments
		WHERE organization_id = $1
		ORDER BY id`, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AllocationAdjustment
	for rows.Next() {
		var a AllocationAdjustment
		var kind, scheduleType string
		var start, end shared.Period
		if err := rows.Scan(&a.ID, &a.Ref, &a.OrganizationID, &kind, &a.SourceEntityID, &a.DestinationEntityID,
			&a.MasterAccountID, &a.DestinationMasterAccountID,
			&a.Amount, &a.Description, &a.Excluded,
			&scheduleType, &start.Year, &start.Month, &end.Year, &end.Month); err != nil {
			return nil, err
		}
		a.Kind = AllocationKind(kind)
		a.Schedule = Schedule{Kind: ScheduleKind(scheduleType), Start: start, End: end}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *Repository) proForma(ctx context.Context, organizationID int64) ([]ProFormaAdjustment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, ref, organization_id, entity_id, master_account_id, year, month, amount, description, is_excluded
		FROM pro_forma_adjustments
		WHERE organization_id = $1
		ORDER BY id`, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ProFormaAdjustment
	for rows.Next() {
		var a ProFormaAdjustment
		if err := rows.Scan(&a.ID, &a.Ref, &a.OrganizationID, &a.EntityID, &a.MasterAccountID,
			&a.Period.Year, &a.Period.Month, &a.Amount, &a.Description, &a.Excluded); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *Repository) eliminations(ctx context.Context, organizationID int64) ([]Elimination, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, ref, organization_id, debit_master_account_id, credit_master_account_id,
		       amount, year, month, status, elimination_type, description
		FROM eliminations
		WHERE organization_id = $1
		ORDER BY id`, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Elimination
	for rows.Next() {
		var e Elimination
		var status string
		if err := rows.Scan(&e.ID, &e.Ref, &e.OrganizationID, &e.DebitMasterAccountID, &e.CreditMasterAccountID,
			&e.Amount, &e.Period.Year, &e.Period.Month, &status, &e.EliminationType, &e.Description); err != nil {
			return nil, err
		}
		e.Status = EliminationStatus(status)
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListOrganizationIDs returns every organization id, for jobs that fan out
// over the whole installation.
func (r *Repository) ListOrganizationIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM organizations ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// EntityExists reports whether the entity belongs to the organization.
func (r *Repository) EntityExists(ctx context.Context, organizationID, entityID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM entities WHERE id = $1 AND organization_id = $2)`, entityID, organizationID).Scan(&exists)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return false, err
	}
	return exists, nil
}
