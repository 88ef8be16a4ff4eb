package sale

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const (
	maxIdentifierLength = 64
	maxTokenLength      = 128
)

// Sentinel errors for validation failures.
var (
	ErrMissingToken     = errors.New("idempotency token is required")
	ErrTokenTooLong     = errors.New("idempotency token exceeds maximum length")
	ErrMissingProductID = errors.New("productId is required")
	ErrInvalidProductID = errors.New("productId violates length or character bounds")
	ErrMissingUserID    = errors.New("userId is required")
	ErrInvalidUserID    = errors.New("userId violates length or character bounds")
	ErrNegativeQuantity = errors.New("quantity must be >= 0")
)

// identifierPattern bounds product and user ids to a printable subset.
// Compiled once at package initialization; validation sits on the hot path.
var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]+$`)

// Validator performs semantic validation of order requests.
//
// Validation runs after admission (the rate tally is charged even for
// malformed requests) and before any idempotency or stock work, so a
// rejected request never touches reservation state.
type Validator struct{}

// NewValidator creates a new Validator instance.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateOrderRequest checks the client-supplied fields of a purchase attempt.
//
// Bounds:
//   - idempotency token: non-blank, at most 128 characters
//   - productId, userId: non-empty, at most 64 characters, [A-Za-z0-9._:-]
//
// Returns nil if valid, a sentinel-wrapped error otherwise.
func (v *Validator) ValidateOrderRequest(req *OrderRequest) error {
	if strings.TrimSpace(req.IdempotencyToken) == "" {
		return ErrMissingToken
	}

	if len(req.IdempotencyToken) > maxTokenLength {
		return fmt.Errorf("%w: %d > %d", ErrTokenTooLong, len(req.IdempotencyToken), maxTokenLength)
	}

	if err := v.ValidateProductID(req.ProductID); err != nil {
		return err
	}

	if req.UserID == "" {
		return ErrMissingUserID
	}

	if len(req.UserID) > maxIdentifierLength || !identifierPattern.MatchString(req.UserID) {
		return fmt.Errorf("%w: %q", ErrInvalidUserID, req.UserID)
	}

	return nil
}

// ValidateProductID checks a product id against the identifier bounds.
// Shared by the order hot path and the administrative init operation.
func (v *Validator) ValidateProductID(productID string) error {
	if productID == "" {
		return ErrMissingProductID
	}

	if len(productID) > maxIdentifierLength || !identifierPattern.MatchString(productID) {
		return fmt.Errorf("%w: %q", ErrInvalidProductID, productID)
	}

	return nil
}

// ValidateInit checks the administrative init parameters.
func (v *Validator) ValidateInit(productID string, quantity int64) error {
	if err := v.ValidateProductID(productID); err != nil {
		return err
	}

	if quantity < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeQuantity, quantity)
	}

	return nil
}

// IsValidationError reports whether err is one of the request validation
// sentinels. The HTTP layer uses this to map errors to 400 responses.
func IsValidationError(err error) bool {
	for _, sentinel := range []error{
		ErrMissingToken,
		ErrTokenTooLong,
		ErrMissingProductID,
		ErrInvalidProductID,
		ErrMissingUserID,
		ErrInvalidUserID,
		ErrNegativeQuantity,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}

	return false
}
