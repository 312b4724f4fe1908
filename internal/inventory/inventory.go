package inventory

import (
	"context"
	"errors"

	"github.com/fjod/storefront-cart/internal/domain"
)

// Common errors returned by inventory implementations
var (
	ErrProductNotFound  = errors.New("product not found")
	ErrUnexpectedStatus = errors.New("unexpected inventory response status")
	ErrUnavailable      = errors.New("inventory service unavailable")
)

// Service is the remote stock and catalog lookup the cart validates against.
type Service interface {
	// GetStock returns the current stock of productID
	GetStock(ctx context.Context, productID int64) (domain.Stock, error)

	// GetProduct returns the static catalog fields of productID
	GetProduct(ctx context.Context, productID int64) (domain.ProductMetadata, error)
}
