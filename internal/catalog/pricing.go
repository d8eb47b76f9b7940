package catalog

import (
	"fmt"
	"time"

	"github.com/celerix-dev/repairdesk/pkg/schema"
)

// DefaultCurrency is used for prices stored without one.
const DefaultCurrency = "CZK"

// DiscountActive reports whether d applies at now. StartsAt is inclusive,
// EndsAt exclusive; an open bound never limits.
func DiscountActive(d *schema.Discount, now time.Time) bool {
	if d == nil || d.Value <= 0 {
		return false
	}
	if d.StartsAt != nil && now.Before(*d.StartsAt) {
		return false
	}
	if d.EndsAt != nil && !now.Before(*d.EndsAt) {
		return false
	}
	return true
}

// FinalPrice applies d to base at now. Percentages are clamped to [0,100]
// and rounded half up to whole units; fixed discounts never go below zero.
func FinalPrice(base int64, d *schema.Discount, now time.Time) int64 {
	if base <= 0 || !DiscountActive(d, now) {
		return max(base, 0)
	}
	switch d.Kind {
	case schema.DiscountPercent:
		pct := min(max(d.Value, 0), 100)
		return (base*(100-pct) + 50) / 100
	case schema.DiscountFixed:
		return max(base-d.Value, 0)
	default:
		return base
	}
}

func validateDiscount(d *schema.Discount) error {
	if d == nil {
		return nil
	}
	switch d.Kind {
	case schema.DiscountPercent:
		if d.Value < 0 || d.Value > 100 {
			return fmt.Errorf("%w: percent discount must be within 0..100", ErrInvalid)
		}
	case schema.DiscountFixed:
		if d.Value < 0 {
			return fmt.Errorf("%w: fixed discount must not be negative", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown discount kind %q", ErrInvalid, d.Kind)
	}
	if d.StartsAt != nil && d.EndsAt != nil && !d.StartsAt.Before(*d.EndsAt) {
		return fmt.Errorf("%w: discount must start before it ends", ErrInvalid)
	}
	return nil
}
