package coupon

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedger(repo Repository) *Ledger {
	return NewLedger(repo, func() time.Time { return fixedNow })
}

func TestLedger_Redeem(t *testing.T) {
	c := newTestCoupon("SAVE5", func(c *Coupon) { c.TotalLimit = 10 })
	repo := newMockRepo(c)

	r, err := newTestLedger(repo).Redeem(context.Background(), "u-1", c.ID, "ord-1")
	require.NoError(t, err)

	assert.NotEmpty(t, r.ID)
	assert.Equal(t, "u-1", r.UserID)
	assert.Equal(t, c.ID, r.CouponID)
	assert.Equal(t, "ord-1", r.OrderID)
	assert.Equal(t, fixedNow, r.RedeemedAt)
	assert.Equal(t, []string{c.ID}, repo.increments)
	assert.Equal(t, 1, c.UsageCount)
	require.Len(t, repo.inserted, 1)
}

func TestLedger_Redeem_Failures(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(c *Coupon, repo *mockCouponRepo)
		id      string
		wantErr error
		wantMsg string
	}{
		{
			name:    "coupon vanished",
			id:      "cpn-missing",
			wantErr: ErrNotFound,
		},
		{
			name: "global limit consumed concurrently",
			setup: func(c *Coupon, _ *mockCouponRepo) {
				c.TotalLimit = 1
				c.UsageCount = 1
			},
			wantErr: ErrUsageLimitRaceLost,
		},
		{
			name: "per-user limit consumed concurrently",
			setup: func(c *Coupon, repo *mockCouponRepo) {
				repo.redemptions[redemptionKey(c.ID, "u-1")] = 1
			},
			wantErr: ErrPerUserLimitRaceLost,
		},
		{
			name: "lock error",
			setup: func(_ *Coupon, repo *mockCouponRepo) {
				repo.lockErr = errors.New("deadlock")
			},
			wantMsg: "lock coupon",
		},
		{
			name: "increment error",
			setup: func(_ *Coupon, repo *mockCouponRepo) {
				repo.incErr = errors.New("db down")
			},
			wantMsg: "increment coupon usage",
		},
		{
			name: "insert error",
			setup: func(_ *Coupon, repo *mockCouponRepo) {
				repo.insertErr = errors.New("db down")
			},
			wantMsg: "insert redemption",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCoupon("SAVE5")
			repo := newMockRepo(c)
			if tt.setup != nil {
				tt.setup(c, repo)
			}
			id := c.ID
			if tt.id != "" {
				id = tt.id
			}

			r, err := newTestLedger(repo).Redeem(context.Background(), "u-1", id, "ord-1")
			require.Error(t, err)
			assert.Nil(t, r)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}
