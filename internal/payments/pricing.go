package payments

import (
	"math"
	"strings"

	"github.com/aurapalm/aura/internal/config"
)

// Price is an amount in minor currency units (paise, cents).
type Price struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// Pricing holds the two fixed price points.
type Pricing struct {
	homeCountry string
	home        Price
	fallback    Price
}

func NewPricing(cfg config.PricingConfig) Pricing {
	return Pricing{
		homeCountry: strings.ToUpper(cfg.HomeCountry),
		home:        Price{Amount: cfg.HomeAmount, Currency: strings.ToUpper(cfg.HomeCurrency)},
		fallback:    Price{Amount: cfg.DefaultAmount, Currency: strings.ToUpper(cfg.DefaultCurrency)},
	}
}

// For returns the price for a country. An empty country is treated as the
// home country.
func (p Pricing) For(country string) Price {
	country = strings.ToUpper(strings.TrimSpace(country))
	if country == "" || country == p.homeCountry {
		return p.home
	}
	return p.fallback
}

func (p Pricing) IsHome(country string) bool {
	country = strings.ToUpper(strings.TrimSpace(country))
	return country == "" || country == p.homeCountry
}

// Quote is the computed price after any coupon.
type Quote struct {
	OriginalAmount int64  `json:"originalAmount"`
	DiscountAmount int64  `json:"discountAmount"`
	FinalAmount    int64  `json:"finalAmount"`
	Currency       string `json:"currency"`
}

// Free reports whether nothing is left to pay.
func (q Quote) Free() bool {
	return q.FinalAmount == 0
}

// ApplyCoupon computes the quote for a price and an already validated coupon.
// A nil coupon yields the undiscounted price.
func ApplyCoupon(price Price, c *CouponValidation) (Quote, error) {
	q := Quote{OriginalAmount: price.Amount, FinalAmount: price.Amount, Currency: price.Currency}
	if c == nil {
		return q, nil
	}

	var computed int64
	switch {
	case c.Type == CouponFree:
		computed = price.Amount
	case c.DiscountKind == DiscountPercentage:
		computed = int64(math.Floor(float64(price.Amount) * c.Value / 100))
	case c.DiscountKind == DiscountFixed:
		if !strings.EqualFold(c.Currency, price.Currency) {
			return Quote{}, ErrCurrencyMismatch
		}
		computed = int64(math.Round(c.Value))
	default:
		return Quote{}, &CouponError{Message: "unsupported coupon"}
	}

	if computed < 0 {
		computed = 0
	}
	q.DiscountAmount = min(computed, price.Amount)
	q.FinalAmount = price.Amount - q.DiscountAmount
	return q, nil
}
