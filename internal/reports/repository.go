package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/microfin/internal/ledger"
	"github.com/odyssey-erp/microfin/internal/platform/db"
)

// Repository reads ledger and loan records from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const entryColumns = `
	e.account_code, e.account_description, e.debit::text, e.credit::text,
	e.client_id, e.client_name, e.cycle,
	t.id, t.kind, t.code, t.posted_on,
	t.bank_code, t.bank_name, t.check_no, t.check_date,
	t.officer_id, t.officer_name`

// ListEntries returns the posting lines of every transaction in the filter
// window, ordered by posting date, transaction and line. A client filter
// selects whole transactions that touch the client, institutional lines
// included, so that balance checks see every line.
func (r *Repository) ListEntries(ctx context.Context, filter Filter) ([]ledger.RawEntry, error) {
	kinds := make([]string, len(filter.Kinds))
	for i, k := range filter.Kinds {
		kinds[i] = string(k)
	}
	query := `SELECT ` + entryColumns + `
		FROM ledger_entries e
		JOIN ledger_transactions t ON t.id = e.transaction_id
		WHERE t.posted_on BETWEEN $1 AND $2
		  AND (cardinality($3::text[]) = 0 OR t.kind = ANY($3))
		  AND ($4 = '' OR t.id IN (SELECT transaction_id FROM ledger_entries WHERE client_id = $4))
		ORDER BY t.posted_on, t.id, e.line_no`

	var out []ledger.RawEntry
	err := db.WithSnapshot(ctx, r.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, dateParam(filter.From), dateParam(filter.To), kinds, filter.ClientID)
		if err != nil {
			return fmt.Errorf("query entries: %w", err)
		}
		out, err = collectEntries(rows)
		return err
	})
	return out, err
}

// ListLoans returns the loans released on or before the as-of date that are
// still on the books.
func (r *Repository) ListLoans(ctx context.Context, filter AgingFilter) ([]Loan, error) {
	query := `SELECT l.id, l.client_id, l.client_name, l.cycle, l.maturity_date, l.principal::text
		FROM loans l
		WHERE l.released_on <= $1
		  AND ($2 = '' OR l.client_id = $2)
		ORDER BY l.client_name, l.client_id, l.cycle`

	var out []Loan
	err := db.WithSnapshot(ctx, r.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, dateParam(filter.AsOf), filter.ClientID)
		if err != nil {
			return fmt.Errorf("query loans: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var (
				l         Loan
				cycle     pgtype.Int4
				maturity  pgtype.Date
				principal string
			)
			if err := rows.Scan(&l.LoanID, &l.ClientID, &l.ClientName, &cycle, &maturity, &principal); err != nil {
				return fmt.Errorf("scan loan: %w", err)
			}
			if cycle.Valid {
				c := int(cycle.Int32)
				l.Cycle = &c
			}
			if maturity.Valid {
				m := maturity.Time
				l.Maturity = &m
			}
			amount, err := ledger.ParseAmount(principal)
			if err != nil {
				return fmt.Errorf("loan %s principal: %w", l.LoanID, err)
			}
			l.Principal = amount
			out = append(out, l)
		}
		return rows.Err()
	})
	return out, err
}

// ListLoanEntries returns the posting lines attributed to clients with loans,
// up to the as-of date.
func (r *Repository) ListLoanEntries(ctx context.Context, filter AgingFilter) ([]ledger.RawEntry, error) {
	query := `SELECT ` + entryColumns + `
		FROM ledger_entries e
		JOIN ledger_transactions t ON t.id = e.transaction_id
		WHERE t.posted_on <= $1
		  AND e.client_id IS NOT NULL
		  AND ($2 = '' OR e.client_id = $2)
		  AND EXISTS (SELECT 1 FROM loans l WHERE l.client_id = e.client_id)
		ORDER BY t.posted_on, t.id, e.line_no`

	var out []ledger.RawEntry
	err := db.WithSnapshot(ctx, r.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, dateParam(filter.AsOf), filter.ClientID)
		if err != nil {
			return fmt.Errorf("query loan entries: %w", err)
		}
		out, err = collectEntries(rows)
		return err
	})
	return out, err
}

func collectEntries(rows pgx.Rows) ([]ledger.RawEntry, error) {
	defer rows.Close()
	var out []ledger.RawEntry
	for rows.Next() {
		var (
			e                      ledger.RawEntry
			description            pgtype.Text
			debit, credit          pgtype.Text
			clientID, clientName   pgtype.Text
			cycle                  pgtype.Int4
			kind, code             string
			postedOn               pgtype.Date
			bankCode, bankName     pgtype.Text
			checkNo                pgtype.Text
			checkDate              pgtype.Date
			officerID, officerName pgtype.Text
		)
		if err := rows.Scan(
			&e.AccountCode.Code, &description, &debit, &credit,
			&clientID, &clientName, &cycle,
			&e.Parent.ID, &kind, &code, &postedOn,
			&bankCode, &bankName, &checkNo, &checkDate,
			&officerID, &officerName,
		); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.AccountCode.Description = description.String
		e.Parent.Kind = ledger.TransactionKind(kind)
		e.Parent.Code = code
		if postedOn.Valid {
			e.Parent.Date = postedOn.Time
		}
		var err error
		if e.Debit, err = optionalAmount(debit); err != nil {
			return nil, fmt.Errorf("entry %s debit: %w", e.Parent.ID, err)
		}
		if e.Credit, err = optionalAmount(credit); err != nil {
			return nil, fmt.Errorf("entry %s credit: %w", e.Parent.ID, err)
		}
		if clientID.Valid && clientID.String != "" {
			e.Client = &ledger.Client{ID: clientID.String, Name: clientName.String}
		}
		if cycle.Valid {
			c := int(cycle.Int32)
			e.Cycle = &c
		}
		if bankCode.Valid {
			e.Parent.Bank = &ledger.BankRef{Code: bankCode.String, Name: bankName.String, CheckNo: checkNo.String}
			if checkDate.Valid {
				d := checkDate.Time
				e.Parent.Bank.CheckDate = &d
			}
		}
		if officerID.Valid {
			e.Parent.Officer = &ledger.Officer{ID: officerID.String, Name: officerName.String}
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func optionalAmount(v pgtype.Text) (*decimal.Decimal, error) {
	if !v.Valid {
		return nil, nil
	}
	amount, err := ledger.ParseAmount(v.String)
	if err != nil {
		return nil, err
	}
	return &amount, nil
}

func dateParam(t time.Time) pgtype.Date {
	if t.IsZero() {
		return pgtype.Date{Valid: false}
	}
	return pgtype.Date{Time: t, Valid: true}
}
