package sale

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateOrderRequest(t *testing.T) {
	tests := []struct {
		name    string
		req     *OrderRequest
		wantErr error
	}{
		{
			name: "valid request",
			req: &OrderRequest{
				ProductID:        "widget-1",
				UserID:           "user_42",
				IdempotencyToken: "token-abc",
			},
			wantErr: nil,
		},
		{
			name: "missing token",
			req: &OrderRequest{
				ProductID:        "widget-1",
				UserID:           "user_42",
				IdempotencyToken: "",
			},
			wantErr: ErrMissingToken,
		},
		{
			name: "blank token",
			req: &OrderRequest{
				ProductID:        "widget-1",
				UserID:           "user_42",
				IdempotencyToken: "   ",
			},
			wantErr: ErrMissingToken,
		},
		{
			name: "token too long",
			req: &OrderRequest{
				ProductID:        "widget-1",
				UserID:           "user_42",
				IdempotencyToken: strings.Repeat("t", 129),
			},
			wantErr: ErrTokenTooLong,
		},
		{
			name: "token at maximum length",
			req: &OrderRequest{
				ProductID:        "widget-1",
				UserID:           "user_42",
				IdempotencyToken: strings.Repeat("t", 128),
			},
			wantErr: nil,
		},
		{
			name: "missing product id",
			req: &OrderRequest{
				UserID:           "user_42",
				IdempotencyToken: "token-abc",
			},
			wantErr: ErrMissingProductID,
		},
		{
			name: "product id too long",
			req: &OrderRequest{
				ProductID:        strings.Repeat("p", 65),
				UserID:           "user_42",
				IdempotencyToken: "token-abc",
			},
			wantErr: ErrInvalidProductID,
		},
		{
			name: "product id with forbidden characters",
			req: &OrderRequest{
				ProductID:        "widget 1",
				UserID:           "user_42",
				IdempotencyToken: "token-abc",
			},
			wantErr: ErrInvalidProductID,
		},
		{
			name: "missing user id",
			req: &OrderRequest{
				ProductID:        "widget-1",
				IdempotencyToken: "token-abc",
			},
			wantErr: ErrMissingUserID,
		},
		{
			name: "user id with forbidden characters",
			req: &OrderRequest{
				ProductID:        "widget-1",
				UserID:           "user\n42",
				IdempotencyToken: "token-abc",
			},
			wantErr: ErrInvalidUserID,
		},
		{
			name: "identifiers at maximum length",
			req: &OrderRequest{
				ProductID:        strings.Repeat("p", 64),
				UserID:           strings.Repeat("u", 64),
				IdempotencyToken: "token-abc",
			},
			wantErr: nil,
		},
		{
			name: "identifier punctuation subset allowed",
			req: &OrderRequest{
				ProductID:        "sku.2024:flash-sale_1",
				UserID:           "org:user.name-7",
				IdempotencyToken: "token-abc",
			},
			wantErr: nil,
		},
	}

	validator := NewValidator()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateOrderRequest(tt.req)

			if tt.wantErr == nil {
				require.NoError(t, err)

				return
			}

			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, IsValidationError(err), "expected a validation error classification")
		})
	}
}

func TestValidateInit(t *testing.T) {
	tests := []struct {
		name      string
		productID string
		quantity  int64
		wantErr   error
	}{
		{"valid", "widget-1", 100, nil},
		{"zero quantity is valid", "widget-1", 0, nil},
		{"negative quantity", "widget-1", -1, ErrNegativeQuantity},
		{"missing product id", "", 10, ErrMissingProductID},
		{"invalid product id", "widget 1", 10, ErrInvalidProductID},
	}

	validator := NewValidator()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateInit(tt.productID, tt.quantity)

			if tt.wantErr == nil {
				require.NoError(t, err)

				return
			}

			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestIsValidationError(t *testing.T) {
	assert.True(t, IsValidationError(ErrMissingToken))
	assert.False(t, IsValidationError(ErrCounterUnavailable))
	assert.False(t, IsValidationError(nil))
}
