package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/iliyamo/storefront-auth/internal/catalog"
)

// Catalog is the product operations the proxy forwards.
type Catalog interface {
	List(ctx context.Context) (json.RawMessage, error)
	Create(ctx context.Context, body json.RawMessage) (json.RawMessage, error)
	Update(ctx context.Context, id string, body json.RawMessage) (json.RawMessage, error)
	Delete(ctx context.Context, id string) (json.RawMessage, error)
	Purchase(ctx context.Context, id string, quantity int) (json.RawMessage, error)
}

// ProductService forwards product calls to the catalog and translates its
// failures.  Role checks happen in the router.
type ProductService struct {
	catalog Catalog
}

func NewProductService(c Catalog) *ProductService {
	return &ProductService{catalog: c}
}

func (s *ProductService) List(ctx context.Context) (json.RawMessage, error) {
	return translate(s.catalog.List(ctx))
}

func (s *ProductService) Create(ctx context.Context, body json.RawMessage) (json.RawMessage, error) {
	return translate(s.catalog.Create(ctx, body))
}

func (s *ProductService) Update(ctx context.Context, id string, body json.RawMessage) (json.RawMessage, error) {
	return translate(s.catalog.Update(ctx, id, body))
}

func (s *ProductService) Delete(ctx context.Context, id string) (json.RawMessage, error) {
	return translate(s.catalog.Delete(ctx, id))
}

// Purchase buys quantity units; quantity must be positive.
func (s *ProductService) Purchase(ctx context.Context, id string, quantity int) (json.RawMessage, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be greater than 0", ErrValidation)
	}
	return translate(s.catalog.Purchase(ctx, id, quantity))
}

func translate(body json.RawMessage, err error) (json.RawMessage, error) {
	switch {
	case err == nil:
		return body, nil
	case errors.Is(err, catalog.ErrNotFound):
		return nil, fmt.Errorf("%w: product", ErrNotFound)
	case errors.Is(err, catalog.ErrUpstream):
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	return nil, err
}
