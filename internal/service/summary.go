package service

import (
	"github.com/fjod/storefront-cart/internal/domain"
	"github.com/shopspring/decimal"
)

// Summary is what the storefront header and cart page display.
type Summary struct {
	Items    int             `json:"items"`
	Quantity int             `json:"quantity"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

func SummaryOf(cart domain.Cart) Summary {
	sum := Summary{Items: len(cart), Subtotal: decimal.Zero}
	for _, p := range cart {
		sum.Quantity += p.Amount
		line := decimal.NewFromFloat(p.Price).Mul(decimal.NewFromInt(int64(p.Amount)))
		sum.Subtotal = sum.Subtotal.Add(line)
	}
	return sum
}
