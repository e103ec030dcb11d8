package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionsTemplate(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	o := options{
		kind:         "percentage",
		value:        "15",
		minOrder:     "25.00",
		maxDiscount:  "10",
		endsAt:       "2025-12-31T23:59:59Z",
		totalLimit:   1,
		perUserLimit: 1,
	}

	tpl, err := o.template(now)
	require.NoError(t, err)
	assert.Equal(t, now, tpl.StartsAt)
	assert.Equal(t, "15", tpl.Value.String())
	assert.Equal(t, "25", tpl.MinOrderAmount.String())
	require.True(t, tpl.MaxDiscount.Valid)
	assert.Equal(t, "10", tpl.MaxDiscount.Decimal.String())
	assert.Equal(t, 2025, tpl.EndsAt.Year())
}

func TestOptionsTemplate_Invalid(t *testing.T) {
	base := options{kind: "fixed", value: "5", minOrder: "0", endsAt: "2025-12-31T23:59:59Z"}
	for _, tt := range []struct {
		name   string
		modify func(o *options)
	}{
		{name: "bad value", modify: func(o *options) { o.value = "five" }},
		{name: "bad min order", modify: func(o *options) { o.minOrder = "" }},
		{name: "bad max discount", modify: func(o *options) { o.maxDiscount = "x" }},
		{name: "bad start", modify: func(o *options) { o.startsAt = "yesterday" }},
		{name: "missing end", modify: func(o *options) { o.endsAt = "" }},
	} {
		t.Run(tt.name, func(t *testing.T) {
			o := base
			tt.modify(&o)
			_, err := o.template(time.Now())
			require.Error(t, err)
		})
	}
}
