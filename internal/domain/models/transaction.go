package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kind tags a ledger event. The classifier assigns it once per row and the
// rest of the pipeline switches on it instead of reading raw columns.
type Kind string

const (
	KindBuy           Kind = "buy"
	KindSell          Kind = "sell"
	KindRepoLend      Kind = "repo_lend"
	KindRepoReturn    Kind = "repo_return"
	KindTransferIn    Kind = "transfer_in"
	KindTransferOut   Kind = "transfer_out"
	KindInterest      Kind = "interest"
	KindCashDividend  Kind = "cash_dividend"
	KindDividendTax   Kind = "dividend_tax"
	KindStockDividend Kind = "stock_dividend"
	KindDesignate     Kind = "designate"
	KindUnknown       Kind = "unknown"
)

// Kinds lists every known kind in a stable order.
var Kinds = []Kind{
	KindBuy, KindSell, KindRepoLend, KindRepoReturn, KindTransferIn, KindTransferOut,
	KindInterest, KindCashDividend, KindDividendTax, KindStockDividend, KindDesignate, KindUnknown,
}

// ParseKind maps a stored kind label back to a Kind; anything unrecognized is KindUnknown.
func ParseKind(s string) Kind {
	for _, k := range Kinds {
		if string(k) == s {
			return k
		}
	}
	return KindUnknown
}

// IsSecurityEvent reports whether the kind moves shares of a security.
func (k Kind) IsSecurityEvent() bool {
	switch k {
	case KindBuy, KindSell, KindStockDividend:
		return true
	}
	return false
}

// Fees holds the per-event charges. Each component is non-negative.
type Fees struct {
	Commission  decimal.Decimal `json:"commission"`
	StampTax    decimal.Decimal `json:"stamp_tax"`
	TransferFee decimal.Decimal `json:"transfer_fee"`
	ClearingFee decimal.Decimal `json:"clearing_fee"`
}

// Total returns the sum of all fee components.
func (f Fees) Total() decimal.Decimal {
	return f.Commission.Add(f.StampTax).Add(f.TransferFee).Add(f.ClearingFee)
}

// Transaction is one immutable ledger event from a broker settlement export.
//
// NetAmount is kept exactly as the broker reported it and is never re-derived
// from GrossAmount and Fees; Fees feed the cost basis on their own.
// Quantity is never negative; direction comes from Kind.
type Transaction struct {
	Date            time.Time           `json:"date"`
	SecurityCode    string              `json:"security_code"`
	SecurityName    string              `json:"security_name"`
	BusinessType    string              `json:"business_type"`
	Kind            Kind                `json:"kind"`
	Price           decimal.Decimal     `json:"price"`
	Quantity        int64               `json:"quantity"`
	GrossAmount     decimal.Decimal     `json:"gross_amount"`
	Fees            Fees                `json:"fees"`
	NetAmount       decimal.Decimal     `json:"net_amount"`
	RunningBalance  decimal.NullDecimal `json:"running_balance"`
	Currency        string              `json:"currency"`
	ExternalTradeID string              `json:"external_trade_id"`
	ShareholderCode string              `json:"shareholder_code,omitempty"`
	Remark          string              `json:"remark,omitempty"`
}

// DedupKey identifies a transaction for idempotent upserts.
type DedupKey struct {
	Date            time.Time
	SecurityCode    string
	Kind            Kind
	Quantity        int64
	GrossAmount     string
	Price           string
	ExternalTradeID string
}

// Key returns the dedup key of the transaction. Decimal values are rendered
// as strings so that 10 and 10.00 collapse to the same key.
func (t Transaction) Key() DedupKey {
	return DedupKey{
		Date:            t.Date,
		SecurityCode:    t.SecurityCode,
		Kind:            t.Kind,
		Quantity:        t.Quantity,
		GrossAmount:     t.GrossAmount.String(),
		Price:           t.Price.String(),
		ExternalTradeID: t.ExternalTradeID,
	}
}
