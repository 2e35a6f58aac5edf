package domain

import (
	"context"
)

// Product is one catalog entry. The JSON names follow the product table's columns.
// Price is kept exactly as submitted; ImageReference is a relative path or an
// absolute URL returned by an ImageStore.
type Product struct {
	ID             int64  `json:"id"`
	Description    string `json:"product_description"`
	Price          string `json:"product_price"`
	ImageReference string `json:"product_image"`
}

type ProductRepository interface {
	// Create inserts p and returns the assigned id.
	Create(ctx context.Context, p *Product) (int64, error)

	ListAll(ctx context.Context) ([]*Product, error)

	// GetByID returns ErrNotFound when no row has the id.
	GetByID(ctx context.Context, id int64) (*Product, error)
}
