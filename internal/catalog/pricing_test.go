package catalog

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/celerix-dev/repairdesk/pkg/schema"
)

func at(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func TestFinalPrice(t *testing.T) {
	now := *at("2026-05-10T12:00:00Z")

	cases := []struct {
		name string
		base int64
		d    *schema.Discount
		want int64
	}{
		{"no discount", 1000, nil, 1000},
		{"percent", 1000, &schema.Discount{Kind: schema.DiscountPercent, Value: 15}, 850},
		{"percent rounds half up", 999, &schema.Discount{Kind: schema.DiscountPercent, Value: 50}, 500},
		{"percent clamps above 100", 1000, &schema.Discount{Kind: schema.DiscountPercent, Value: 150}, 0},
		{"fixed", 1000, &schema.Discount{Kind: schema.DiscountFixed, Value: 250}, 750},
		{"fixed floors at zero", 100, &schema.Discount{Kind: schema.DiscountFixed, Value: 250}, 0},
		{"zero value", 1000, &schema.Discount{Kind: schema.DiscountFixed}, 1000},
		{"unknown kind", 1000, &schema.Discount{Kind: "bogo", Value: 10}, 1000},
		{"not started", 1000, &schema.Discount{Kind: schema.DiscountPercent, Value: 10, StartsAt: at("2026-06-01T00:00:00Z")}, 1000},
		{"ended", 1000, &schema.Discount{Kind: schema.DiscountPercent, Value: 10, EndsAt: at("2026-05-10T12:00:00Z")}, 1000},
		{"within range", 1000, &schema.Discount{Kind: schema.DiscountPercent, Value: 10, StartsAt: at("2026-05-10T12:00:00Z"), EndsAt: at("2026-05-11T00:00:00Z")}, 900},
		{"negative base", -5, nil, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, FinalPrice(tc.base, tc.d, now))
		})
	}
}

func TestValidateDiscount(t *testing.T) {
	assert.NoError(t, validateDiscount(nil))
	assert.NoError(t, validateDiscount(&schema.Discount{Kind: schema.DiscountFixed, Value: 100}))

	for _, d := range []*schema.Discount{
		{Kind: schema.DiscountPercent, Value: 101},
		{Kind: schema.DiscountFixed, Value: -1},
		{Kind: "half", Value: 1},
		{Kind: schema.DiscountPercent, Value: 5, StartsAt: at("2026-05-02T00:00:00Z"), EndsAt: at("2026-05-01T00:00:00Z")},
	} {
		assert.True(t, errors.Is(validateDiscount(d), ErrInvalid), "%+v", d)
	}
}
