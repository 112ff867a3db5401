package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/guttosm/settlepulse/internal/domain/models"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("not found")

// PricesRepository caches daily close prices.
type PricesRepository interface {
	UpsertPrices(ctx context.Context, points []models.PricePoint) error
	LatestPrice(ctx context.Context, code string) (models.PricePoint, error)
	PriceHistory(ctx context.Context, code string, from, to time.Time) (models.PriceSeries, error)
}

type pricesRepository struct {
	db *sql.DB
}

func NewPricesRepository(db *sql.DB) PricesRepository {
	return &pricesRepository{db: db}
}

// UpsertPrices writes points in one transaction; a later source overwrites
// an earlier one for the same code and day.
func (r *pricesRepository) UpsertPrices(ctx context.Context, points []models.PricePoint) error {
	if len(points) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO daily_prices (price_date, security_code, close_price, source)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (security_code, price_date)
		DO UPDATE SET close_price = EXCLUDED.close_price,
					  source = EXCLUDED.source,
					  updated_at = NOW()
	`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	for _, p := range points {
		if _, err := stmt.ExecContext(ctx, dateOnly(p.Date), p.SecurityCode, p.Close, p.Source); err != nil {
			_ = stmt.Close()
			_ = tx.Rollback()
			return err
		}
	}
	if err := stmt.Close(); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// LatestPrice returns the most recent cached close of code, or ErrNotFound.
func (r *pricesRepository) LatestPrice(ctx context.Context, code string) (models.PricePoint, error) {
	p := models.PricePoint{SecurityCode: code}
	err := r.db.QueryRowContext(ctx, `
		SELECT price_date, close_price, source
		FROM daily_prices
		WHERE security_code = $1
		ORDER BY price_date DESC
		LIMIT 1
	`, code).Scan(&p.Date, &p.Close, &p.Source)
	if errors.Is(err, sql.ErrNoRows) {
		return models.PricePoint{}, ErrNotFound
	}
	if err != nil {
		return models.PricePoint{}, err
	}
	p.Date = dateOnly(p.Date)
	return p, nil
}

// PriceHistory returns cached closes of code in [from, to], oldest first.
func (r *pricesRepository) PriceHistory(ctx context.Context, code string, from, to time.Time) (models.PriceSeries, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT price_date, close_price, source
		FROM daily_prices
		WHERE security_code = $1 AND price_date >= $2 AND price_date <= $3
		ORDER BY price_date
	`, code, dateOnly(from), dateOnly(to))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out models.PriceSeries
	for rows.Next() {
		p := models.PricePoint{SecurityCode: code}
		if err := rows.Scan(&p.Date, &p.Close, &p.Source); err != nil {
			return nil, err
		}
		p.Date = dateOnly(p.Date)
		out = append(out, p)
	}
	return out, rows.Err()
}

// SnapshotsRepository persists computed daily asset snapshots.
type SnapshotsRepository interface {
	SaveSnapshots(ctx context.Context, snaps []models.DailyAssetSnapshot) error
}

type snapshotsRepository struct {
	db *sql.DB
}

func NewSnapshotsRepository(db *sql.DB) SnapshotsRepository {
	return &snapshotsRepository{db: db}
}

// SaveSnapshots replaces the stored snapshots of the given dates. Each run
// recomputes the series from the full ledger, so the newest run wins.
func (r *snapshotsRepository) SaveSnapshots(ctx context.Context, snaps []models.DailyAssetSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO daily_snapshots (snapshot_date, cash_balance, repo_balance, position_market_value, total_assets, valued, unpriced_codes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (snapshot_date)
		DO UPDATE SET cash_balance = EXCLUDED.cash_balance,
					  repo_balance = EXCLUDED.repo_balance,
					  position_market_value = EXCLUDED.position_market_value,
					  total_assets = EXCLUDED.total_assets,
					  valued = EXCLUDED.valued,
					  unpriced_codes = EXCLUDED.unpriced_codes,
					  computed_at = NOW()
	`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	for _, s := range snaps {
		if _, err := stmt.ExecContext(ctx,
			dateOnly(s.Date),
			s.CashBalance,
			s.RepoBalance,
			s.PositionMarketValue,
			s.TotalAssets,
			s.Valued,
			strings.Join(s.UnpricedCodes, ","),
		); err != nil {
			_ = stmt.Close()
			_ = tx.Rollback()
			return err
		}
	}
	if err := stmt.Close(); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
