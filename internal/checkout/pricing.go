package checkout

import (
	"github.com/shopspring/decimal"

	"github.com/lucasreyna/shopmate-backend/pkg/config"
	"github.com/lucasreyna/shopmate-backend/pkg/types"
)

// priceTotals computes the authoritative money breakdown from a repriced
// subtotal. Shipping is flat under the free-shipping threshold; tax is the
// configured rate in basis points, rounded half-up on the subtotal.
func priceTotals(cfg config.CheckoutConfig, subtotalCents int) types.Totals {
	shipping := 0
	if subtotalCents < cfg.FreeShippingCents {
		shipping = cfg.FlatShippingCents
	}

	tax := decimal.NewFromInt(int64(subtotalCents)).
		Mul(decimal.NewFromInt(int64(cfg.TaxRateBasisPoints))).
		Div(decimal.NewFromInt(10000)).
		Round(0).
		IntPart()

	return types.Totals{
		SubtotalCents: subtotalCents,
		ShippingCents: shipping,
		TaxCents:      int(tax),
		TotalCents:    subtotalCents + shipping + int(tax),
	}
}
