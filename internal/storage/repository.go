package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	pq "github.com/lib/pq"

	"github.com/guttosm/settlepulse/internal/domain/models"
)

// ImportLogEntry records one processed export file.
type ImportLogEntry struct {
	Checksum string
	ImportID string
	Filename string
	RowCount int
	Imported int
	Failed   int
}

// TransactionsRepository defines the ledger persistence contract.
type TransactionsRepository interface {
	// InsertTransactions upserts txs and returns how many rows were new.
	InsertTransactions(ctx context.Context, txs []models.Transaction) (int, error)
	// ListTransactions returns the ledger ordered by date then insertion order.
	ListTransactions(ctx context.Context, from, to *time.Time) ([]models.Transaction, error)
	HasImport(ctx context.Context, checksum string) (bool, error)
	RecordImport(ctx context.Context, entry ImportLogEntry) error
}

type transactionsRepository struct {
	db *sql.DB
}

func NewTransactionsRepository(db *sql.DB) TransactionsRepository {
	return &transactionsRepository{db: db}
}

var transactionColumns = []string{
	"trade_date",
	"security_code",
	"security_name",
	"business_type",
	"kind",
	"price",
	"quantity",
	"gross_amount",
	"commission",
	"stamp_tax",
	"transfer_fee",
	"clearing_fee",
	"net_amount",
	"running_balance",
	"currency",
	"external_trade_id",
	"shareholder_code",
	"remark",
}

const stagingTable = "transactions_staging"

// InsertTransactions copies txs into a transaction-scoped staging table with
// COPY and moves them into transactions, skipping rows that collide on the
// dedup key. Re-importing the same export is therefore a no-op.
func (r *transactionsRepository) InsertTransactions(ctx context.Context, txs []models.Transaction) (int, error) {
	if len(txs) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}

	if _, err := tx.ExecContext(ctx, `SET LOCAL synchronous_commit = OFF`); err != nil {
		_ = tx.Rollback()
		return 0, err
	}

	if _, err := tx.ExecContext(ctx, `CREATE TEMP TABLE `+stagingTable+` (LIKE transactions INCLUDING DEFAULTS) ON COMMIT DROP`); err != nil {
		_ = tx.Rollback()
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(stagingTable, transactionColumns...))
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}

	for _, t := range txs {
		if _, err := stmt.ExecContext(ctx,
			t.Date,
			t.SecurityCode,
			t.SecurityName,
			t.BusinessType,
			string(t.Kind),
			t.Price,
			t.Quantity,
			t.GrossAmount,
			t.Fees.Commission,
			t.Fees.StampTax,
			t.Fees.TransferFee,
			t.Fees.ClearingFee,
			t.NetAmount,
			t.RunningBalance,
			t.Currency,
			t.ExternalTradeID,
			t.ShareholderCode,
			t.Remark,
		); err != nil {
			_ = stmt.Close()
			_ = tx.Rollback()
			return 0, err
		}
	}

	if _, err := stmt.ExecContext(ctx); err != nil {
		_ = stmt.Close()
		_ = tx.Rollback()
		return 0, err
	}
	if err := stmt.Close(); err != nil {
		_ = tx.Rollback()
		return 0, err
	}

	cols := joinColumns(transactionColumns)
	res, err := tx.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO transactions (%s)
		SELECT %s FROM %s
		ON CONFLICT ON CONSTRAINT transactions_dedup DO NOTHING
	`, cols, cols, stagingTable))
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return int(inserted), nil
}

// ListTransactions loads the ledger, optionally bounded by trade date.
func (r *transactionsRepository) ListTransactions(ctx context.Context, from, to *time.Time) ([]models.Transaction, error) {
	conditions, args := dateRange("trade_date", from, to)
	query := fmt.Sprintf(`SELECT %s FROM transactions%s ORDER BY trade_date, id`, joinColumns(transactionColumns), conditions)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.Transaction
	for rows.Next() {
		var (
			t    models.Transaction
			kind string
		)
		if err := rows.Scan(
			&t.Date,
			&t.SecurityCode,
			&t.SecurityName,
			&t.BusinessType,
			&kind,
			&t.Price,
			&t.Quantity,
			&t.GrossAmount,
			&t.Fees.Commission,
			&t.Fees.StampTax,
			&t.Fees.TransferFee,
			&t.Fees.ClearingFee,
			&t.NetAmount,
			&t.RunningBalance,
			&t.Currency,
			&t.ExternalTradeID,
			&t.ShareholderCode,
			&t.Remark,
		); err != nil {
			return nil, err
		}
		t.Kind = models.ParseKind(kind)
		t.Date = dateOnly(t.Date)
		out = append(out, t)
	}
	return out, rows.Err()
}

// HasImport reports whether a file with this checksum was already imported.
func (r *transactionsRepository) HasImport(ctx context.Context, checksum string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM import_log WHERE checksum = $1)`, checksum).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// RecordImport records (or refreshes) the import log entry of a file.
func (r *transactionsRepository) RecordImport(ctx context.Context, e ImportLogEntry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO import_log (checksum, import_id, filename, row_count, imported, failed)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (checksum)
		DO UPDATE SET import_id = EXCLUDED.import_id,
					  filename = EXCLUDED.filename,
					  row_count = EXCLUDED.row_count,
					  imported = EXCLUDED.imported,
					  failed = EXCLUDED.failed,
					  imported_at = NOW()
	`, e.Checksum, e.ImportID, e.Filename, e.RowCount, e.Imported, e.Failed)
	return err
}

// dateRange builds a WHERE clause over col with positional placeholders.
func dateRange(col string, from, to *time.Time) (string, []any) {
	var (
		clause string
		args   []any
	)
	if from != nil {
		args = append(args, *from)
		clause += fmt.Sprintf(" AND %s >= $%d", col, len(args))
	}
	if to != nil {
		args = append(args, *to)
		clause += fmt.Sprintf(" AND %s <= $%d", col, len(args))
	}
	if clause == "" {
		return "", nil
	}
	return " WHERE" + clause[len(" AND"):], args
}

func joinColumns(cols []string) string {
	return strings.Join(cols, ", ")
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
