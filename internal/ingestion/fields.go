package ingestion

import (
	"strings"

	"github.com/guttosm/settlepulse/internal/domain/models"
)

// Field is a canonical column of a settlement export.
type Field string

const (
	FieldDate            Field = "date"
	FieldSecurityCode    Field = "security_code"
	FieldSecurityName    Field = "security_name"
	FieldBusinessType    Field = "business_type"
	FieldPrice           Field = "price"
	FieldQuantity        Field = "quantity"
	FieldAmount          Field = "amount"
	FieldCommission      Field = "commission"
	FieldStampTax        Field = "stamp_tax"
	FieldTransferFee     Field = "transfer_fee"
	FieldClearingFee     Field = "clearing_fee"
	FieldNetAmount       Field = "net_amount"
	FieldBalance         Field = "balance"
	FieldPosition        Field = "position"
	FieldShareholderCode Field = "shareholder_code"
	FieldCurrency        Field = "currency"
	FieldTradeID         Field = "trade_id"
	FieldRemark          Field = "remark"
)

// Row is one export line keyed by canonical field. Cells are raw text.
type Row map[Field]string

// Get returns the trimmed cell for f, or "" when absent.
func (r Row) Get(f Field) string {
	return strings.TrimSpace(r[f])
}

// ClassifierConfig carries every lookup table the classifier and the row
// reader need. Build one with DefaultClassifierConfig and adjust per broker.
type ClassifierConfig struct {
	// Synonyms maps a header label (as printed by the broker) to a field.
	Synonyms map[string]Field
	// BusinessTypes maps business-type labels to kinds.
	BusinessTypes map[string]models.Kind
	// CodeMarkers are labels some exports put in the security code column
	// instead of the business type column.
	CodeMarkers map[string]models.Kind
	// Placeholders are business-type values that carry no meaning.
	Placeholders []string
	// CurrencyLabels are the values recognized as a currency cell.
	CurrencyLabels []string
	// DefaultCurrency is used when a row names none.
	DefaultCurrency string
	// HeaderScanLines bounds how deep the reader looks for the header row.
	HeaderScanLines int
}

// DefaultClassifierConfig returns the tables for mainland broker settlement
// exports ("交割单"), with English aliases for hand-prepared CSV files.
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		Synonyms: map[string]Field{
			"交割日期":    FieldDate,
			"成交日期":    FieldDate,
			"发生日期":    FieldDate,
			"证券代码":    FieldSecurityCode,
			"证券名称":    FieldSecurityName,
			"业务类型":    FieldBusinessType,
			"业务名称":    FieldBusinessType,
			"摘要":      FieldBusinessType,
			"成交价格":    FieldPrice,
			"成交均价":    FieldPrice,
			"成交数量":    FieldQuantity,
			"成交金额":    FieldAmount,
			"佣金":      FieldCommission,
			"手续费":     FieldCommission,
			"印花税":     FieldStampTax,
			"过户费":     FieldTransferFee,
			"清算费（B股）": FieldClearingFee,
			"清算费(B股)": FieldClearingFee,
			"清算费":     FieldClearingFee,
			"发生金额":    FieldNetAmount,
			"清算金额":    FieldNetAmount,
			"剩余金额":    FieldBalance,
			"资金余额":    FieldBalance,
			"证券数量":    FieldPosition,
			"股份余额":    FieldPosition,
			"股东代码":    FieldShareholderCode,
			"币种":      FieldCurrency,
			"成交编号":    FieldTradeID,
			"合同编号":    FieldTradeID,
			"备注":      FieldRemark,

			"date":             FieldDate,
			"trade_date":       FieldDate,
			"security_code":    FieldSecurityCode,
			"code":             FieldSecurityCode,
			"security_name":    FieldSecurityName,
			"name":             FieldSecurityName,
			"business_type":    FieldBusinessType,
			"price":            FieldPrice,
			"quantity":         FieldQuantity,
			"amount":           FieldAmount,
			"commission":       FieldCommission,
			"stamp_tax":        FieldStampTax,
			"transfer_fee":     FieldTransferFee,
			"clearing_fee":     FieldClearingFee,
			"net_amount":       FieldNetAmount,
			"balance":          FieldBalance,
			"position":         FieldPosition,
			"shareholder_code": FieldShareholderCode,
			"currency":         FieldCurrency,
			"trade_id":         FieldTradeID,
			"remark":           FieldRemark,
		},
		BusinessTypes: map[string]models.Kind{
			"证券买入":     models.KindBuy,
			"证券卖出":     models.KindSell,
			"融券回购":     models.KindRepoLend,
			"融券购回":     models.KindRepoReturn,
			"银行转证券":    models.KindTransferIn,
			"证券转银行":    models.KindTransferOut,
			"利息归本":     models.KindInterest,
			"红利入账":     models.KindCashDividend,
			"股息红利差异扣税": models.KindDividendTax,
			"红股入账":     models.KindStockDividend,
			"指定交易":     models.KindDesignate,
			"指定登记":     models.KindDesignate,

			"buy":            models.KindBuy,
			"sell":           models.KindSell,
			"repo_lend":      models.KindRepoLend,
			"repo_return":    models.KindRepoReturn,
			"transfer_in":    models.KindTransferIn,
			"transfer_out":   models.KindTransferOut,
			"interest":       models.KindInterest,
			"cash_dividend":  models.KindCashDividend,
			"dividend_tax":   models.KindDividendTax,
			"stock_dividend": models.KindStockDividend,
			"designate":      models.KindDesignate,
		},
		CodeMarkers: map[string]models.Kind{
			"银行转证券": models.KindTransferIn,
			"证券转银行": models.KindTransferOut,
			"利息归本":  models.KindInterest,
		},
		Placeholders:    []string{"", "0", "0.0", "nan", "-", "--"},
		CurrencyLabels:  []string{"人民币", "RMB", "CNY"},
		DefaultCurrency: "人民币",
		HeaderScanLines: 20,
	}
}

// lookupHeader resolves a raw header cell to a field. Matching ignores
// surrounding spaces and, for ASCII labels, case.
func (c ClassifierConfig) lookupHeader(label string) (Field, bool) {
	label = strings.TrimSpace(label)
	if f, ok := c.Synonyms[label]; ok {
		return f, true
	}
	f, ok := c.Synonyms[strings.ToLower(label)]
	return f, ok
}

func (c ClassifierConfig) isPlaceholder(v string) bool {
	for _, p := range c.Placeholders {
		if strings.EqualFold(v, p) {
			return true
		}
	}
	return false
}

func (c ClassifierConfig) isCurrency(v string) bool {
	for _, l := range c.CurrencyLabels {
		if strings.EqualFold(v, l) {
			return true
		}
	}
	return false
}
