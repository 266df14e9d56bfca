package httpapi

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"bourse/internal/book"
	"bourse/internal/trading"
)

// decimalWire accepts a request-body decimal as either a JSON string or
// a JSON number, the way the other pack services that talk decimals
// over JSON (the polymarket market-maker's order sizes) stay
// precision-safe: floats get decoded into Go's arbitrary-precision
// json.Number before conversion, and never into a float64.
type decimalWire string

func (d *decimalWire) UnmarshalJSON(b []byte) error {
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*d = decimalWire(n.String())
	return nil
}

func (d decimalWire) decimal() (decimal.Decimal, error) {
	if d == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(string(d))
}

// userWire and bookWire are thin response shapes over the facade's
// snapshot types, matching spec §4.5's user_info/order_book payloads.
type userWireBody struct {
	AccountID    string          `json:"account_id"`
	CashBalance  decimal.Decimal `json:"cash_balance"`
	AssetBalance decimal.Decimal `json:"asset_balance"`
}

func userWire(u trading.UserSnapshot) userWireBody {
	return userWireBody{
		AccountID:    string(u.AccountID),
		CashBalance:  u.CashBalance,
		AssetBalance: u.AssetBalance,
	}
}

type bookWireBody struct {
	Bids []book.Level `json:"bids"`
	Asks []book.Level `json:"asks"`
}

func bookWire(b trading.BookSnapshot) bookWireBody {
	return bookWireBody{Bids: b.Bids, Asks: b.Asks}
}
