package ingestion

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/guttosm/settlepulse/internal/domain/models"
)

// Classifier turns raw export rows into typed transactions. It holds only
// read-only configuration, so a single instance may be shared.
type Classifier struct {
	cfg ClassifierConfig
}

// NewClassifier builds a classifier over cfg.
func NewClassifier(cfg ClassifierConfig) *Classifier {
	return &Classifier{cfg: cfg}
}

// Config returns the configuration the classifier was built with.
func (c *Classifier) Config() ClassifierConfig { return c.cfg }

// Classify normalizes one row.
//
// Behavior:
//   - The kind is resolved from the business type and the security code
//     together, since transfer and interest markers can sit in either column.
//   - A row with a blank or placeholder business type and no code marker
//     fails with models.ErrUnparsableRecord. So does an unreadable date.
//   - A non-empty business type that is not in the table yields KindUnknown
//     and is kept for audit.
//   - Numeric cells go through CoerceOrZero and never fail the row.
//
// The function is pure: the same row always gives the same transaction.
func (c *Classifier) Classify(row Row) (models.Transaction, error) {
	kind, label, ok := c.resolveKind(row)
	if !ok {
		return models.Transaction{}, fmt.Errorf("%w: no business type marker (business_type=%q, security_code=%q)",
			models.ErrUnparsableRecord, row.Get(FieldBusinessType), row.Get(FieldSecurityCode))
	}

	date, err := ParseDate(row.Get(FieldDate))
	if err != nil {
		return models.Transaction{}, fmt.Errorf("%w: %v", models.ErrUnparsableRecord, err)
	}

	switch kind {
	case models.KindTransferIn, models.KindTransferOut, models.KindInterest:
		return c.cashMovement(row, date, kind, label), nil
	default:
		return c.securityEvent(row, date, kind, label), nil
	}
}

// resolveKind returns the kind and the label it was derived from.
func (c *Classifier) resolveKind(row Row) (models.Kind, string, bool) {
	code := cleanCell(row.Get(FieldSecurityCode))
	if k, ok := c.cfg.CodeMarkers[code]; ok {
		return k, code, true
	}
	bt := cleanCell(row.Get(FieldBusinessType))
	if k, ok := c.cfg.BusinessTypes[bt]; ok {
		return k, bt, true
	}
	if c.cfg.isPlaceholder(bt) {
		return "", "", false
	}
	return models.KindUnknown, bt, true
}

// securityEvent extracts trades, repo legs, dividends and every other row
// whose columns are where the header says they are.
func (c *Classifier) securityEvent(row Row, date time.Time, kind models.Kind, label string) models.Transaction {
	tx := models.Transaction{
		Date:         date,
		SecurityCode: NormalizeCode(row.Get(FieldSecurityCode)),
		SecurityName: cleanCell(row.Get(FieldSecurityName)),
		BusinessType: label,
		Kind:         kind,
		Price:        CoerceOrZero(row.Get(FieldPrice)).Abs(),
		Quantity:     abs64(CoerceIntOrZero(row.Get(FieldQuantity))),
		GrossAmount:  CoerceOrZero(row.Get(FieldAmount)).Abs(),
		Fees: models.Fees{
			Commission:  CoerceOrZero(row.Get(FieldCommission)).Abs(),
			StampTax:    CoerceOrZero(row.Get(FieldStampTax)).Abs(),
			TransferFee: CoerceOrZero(row.Get(FieldTransferFee)).Abs(),
			ClearingFee: CoerceOrZero(row.Get(FieldClearingFee)).Abs(),
		},
		NetAmount:       CoerceOrZero(row.Get(FieldNetAmount)),
		RunningBalance:  nullable(row.Get(FieldBalance)),
		Currency:        c.currency(row.Get(FieldCurrency)),
		ExternalTradeID: cleanCell(row.Get(FieldTradeID)),
		ShareholderCode: cleanCell(row.Get(FieldShareholderCode)),
		Remark:          cleanCell(row.Get(FieldRemark)),
	}
	return tx
}

// cashMovement extracts bank transfers and interest capitalization. These
// carry no security and may have their amount shifted right in the export.
func (c *Classifier) cashMovement(row Row, date time.Time, kind models.Kind, label string) models.Transaction {
	amount, balance, currency := c.detectMisaligned(row)
	return models.Transaction{
		Date:            date,
		BusinessType:    label,
		Kind:            kind,
		GrossAmount:     amount.Abs(),
		NetAmount:       amount,
		RunningBalance:  balance,
		Currency:        currency,
		ExternalTradeID: cleanCell(row.Get(FieldTradeID)),
		ShareholderCode: cleanCell(row.Get(FieldShareholderCode)),
		Remark:          cleanCell(row.Get(FieldRemark)),
	}
}

// misalignmentWindow lists the columns a shifted amount may land in, in the
// order a right shift moves it.
var misalignmentWindow = []Field{FieldNetAmount, FieldStampTax, FieldTransferFee, FieldClearingFee}

// detectMisaligned returns (amount, balance, currency) for a cash movement.
//
// When the net amount column holds a non-zero number the row is aligned. Otherwise
// the first window column holding a number with |v| >= 1 is the amount and
// the next such column is the balance. A cell holding a currency label sets
// the currency. Missing values fall back to the nominal columns.
func (c *Classifier) detectMisaligned(row Row) (decimal.Decimal, decimal.NullDecimal, string) {
	currency := c.currency(row.Get(FieldCurrency))
	for _, f := range misalignmentWindow {
		if v := cleanCell(row.Get(f)); c.cfg.isCurrency(v) {
			currency = v
		}
	}

	if v, ok := parseNumber(row.Get(FieldNetAmount)); ok && !v.IsZero() {
		return v, nullable(row.Get(FieldBalance)), currency
	}

	var found []decimal.Decimal
	for _, f := range misalignmentWindow[1:] {
		v, ok := parseNumber(row.Get(f))
		if ok && v.Abs().GreaterThanOrEqual(decimal.NewFromInt(1)) {
			found = append(found, v)
		}
	}

	amount := decimal.Zero
	balance := nullable(row.Get(FieldBalance))
	if len(found) > 0 {
		amount = found[0]
	}
	if len(found) > 1 {
		balance = decimal.NewNullDecimal(found[1])
	}
	return amount, balance, currency
}

func (c *Classifier) currency(raw string) string {
	if v := cleanCell(raw); v != "" && !c.cfg.isPlaceholder(v) {
		return v
	}
	return c.cfg.DefaultCurrency
}

// nullable parses an optional numeric cell; blank or garbage is "absent".
func nullable(raw string) decimal.NullDecimal {
	v, ok := parseNumber(raw)
	if !ok {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(v)
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
