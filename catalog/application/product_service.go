package application

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dfryer1193/catalog/catalog/domain"
)

// CreateProductRequest is the input of a single upload.
type CreateProductRequest struct {
	Description string
	Price       string
	Image       ImageSource
}

// ProductService creates products from uploads and reads them back.
type ProductService struct {
	repo     domain.ProductRepository
	pipeline *Pipeline
}

// NewProductService creates a service resolving images through pipeline.
func NewProductService(repo domain.ProductRepository, pipeline *Pipeline) *ProductService {
	return &ProductService{
		repo:     repo,
		pipeline: pipeline,
	}
}

// CreateProduct resolves the image first and only then inserts the row. Image
// errors return before the repository is touched. When the insert fails the image
// already stored stays where it is; its reference is logged.
func (s *ProductService) CreateProduct(ctx context.Context, req CreateProductRequest) (*domain.Product, error) {
	ref, err := s.pipeline.Resolve(ctx, req.Image)
	if err != nil {
		return nil, err
	}

	p := &domain.Product{
		Description:    req.Description,
		Price:          req.Price,
		ImageReference: ref,
	}

	if _, err := s.repo.Create(ctx, p); err != nil {
		log.Warn().Err(err).Str("reference", ref).Msg("Product insert failed, stored image is orphaned")
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	log.Info().Int64("id", p.ID).Str("reference", ref).Msg("Product created")
	return p, nil
}

func (s *ProductService) ListProducts(ctx context.Context) ([]*domain.Product, error) {
	return s.repo.ListAll(ctx)
}

func (s *ProductService) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	return s.repo.GetByID(ctx, id)
}
