package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dfryer1193/catalog/catalog/domain"
	"github.com/dfryer1193/catalog/shared/db"
)

var _ domain.ProductRepository = (*SQLProductRepository)(nil)

// SQLProductRepository implements domain.ProductRepository over database/sql.
// It works against any db.Dialect; queries are rebound once at construction.
type SQLProductRepository struct {
	db *sql.DB

	insertQuery  string
	listQuery    string
	getByIDQuery string
}

const insertProductQuery = `
	INSERT INTO product (product_description, product_price, product_image)
	VALUES (?, ?, ?)
	RETURNING id
`

const listProductsQuery = `
	SELECT id, product_description, product_price, product_image
	FROM product
	ORDER BY id
`

const getProductQuery = `
	SELECT id, product_description, product_price, product_image
	FROM product
	WHERE id = ?
`

// NewProductRepository creates a repository for conn speaking dialect.
func NewProductRepository(conn *sql.DB, dialect db.Dialect) *SQLProductRepository {
	return &SQLProductRepository{
		db:           conn,
		insertQuery:  dialect.Rebind(insertProductQuery),
		listQuery:    dialect.Rebind(listProductsQuery),
		getByIDQuery: dialect.Rebind(getProductQuery),
	}
}

// Create inserts a product row. The image reference must already be resolved.
func (r *SQLProductRepository) Create(ctx context.Context, p *domain.Product) (int64, error) {
	if p == nil {
		return 0, fmt.Errorf("%w: product cannot be nil", domain.ErrPersistenceFailed)
	}

	if p.ImageReference == "" {
		return 0, fmt.Errorf("%w: image reference cannot be empty", domain.ErrPersistenceFailed)
	}

	var id int64
	err := db.GetExecutor(ctx, r.db).QueryRowContext(ctx, r.insertQuery,
		p.Description,
		p.Price,
		p.ImageReference,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to insert product: %v", domain.ErrPersistenceFailed, err)
	}

	p.ID = id
	return id, nil
}

// ListAll returns every product ordered by id. No rows yields an empty slice.
func (r *SQLProductRepository) ListAll(ctx context.Context) ([]*domain.Product, error) {
	rows, err := db.GetExecutor(ctx, r.db).QueryContext(ctx, r.listQuery)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list products: %v", domain.ErrPersistenceFailed, err)
	}
	defer rows.Close()

	products := make([]*domain.Product, 0)
	for rows.Next() {
		var row productRow
		if err := rows.Scan(&row.ID, &row.Description, &row.Price, &row.Image); err != nil {
			return nil, fmt.Errorf("%w: failed to scan product: %v", domain.ErrPersistenceFailed, err)
		}
		products = append(products, row.toDomain())
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to iterate products: %v", domain.ErrPersistenceFailed, err)
	}

	return products, nil
}

// GetByID retrieves a single product
func (r *SQLProductRepository) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	var row productRow
	err := db.GetExecutor(ctx, r.db).QueryRowContext(ctx, r.getByIDQuery, id).Scan(
		&row.ID,
		&row.Description,
		&row.Price,
		&row.Image,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", domain.ErrNotFound, id)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: failed to get product %d: %v", domain.ErrPersistenceFailed, id, err)
	}

	return row.toDomain(), nil
}

// productRow mirrors the product table; every column but id is nullable.
type productRow struct {
	ID          int64          `db:"id"`
	Description sql.NullString `db:"product_description"`
	Price       sql.NullString `db:"product_price"`
	Image       sql.NullString `db:"product_image"`
}

func (pr *productRow) toDomain() *domain.Product {
	return &domain.Product{
		ID:             pr.ID,
		Description:    pr.Description.String,
		Price:          pr.Price.String,
		ImageReference: pr.Image.String,
	}
}
