package apperr

import (
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_IsMatchesByCode(t *testing.T) {
	sentinel := PreconditionFailed("min_order_not_met", "minimum order amount not met")
	specific := sentinel.WithMessage("minimum order amount is %s", "20.00").WithDetail("min_order_amount", "20.00")

	wrapped := errors.Wrap(specific, "create order")
	require.ErrorIs(t, wrapped, sentinel)
	assert.NotErrorIs(t, wrapped, NotFound("merchant_not_found", "merchant not found"))

	var appErr *Error
	require.ErrorAs(t, wrapped, &appErr)
	assert.Equal(t, KindPreconditionFailed, appErr.Kind)
	assert.Equal(t, "minimum order amount is 20.00", appErr.Message)
	assert.Equal(t, "20.00", appErr.Details["min_order_amount"])
}

func TestError_CopiesDoNotShareDetails(t *testing.T) {
	base := NotFound("product_not_found", "product not found").WithDetail("a", "1")
	derived := base.WithDetail("b", "2")

	assert.Len(t, base.Details, 1)
	assert.Len(t, derived.Details, 2)
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "not_found", KindNotFound.String())
	assert.Equal(t, "precondition_failed", KindPreconditionFailed.String())
	assert.Equal(t, "validation_failed", KindValidationFailed.String())
	assert.Equal(t, "conflict", KindConflict.String())
	assert.Equal(t, "unknown", Kind(0).String())
}
