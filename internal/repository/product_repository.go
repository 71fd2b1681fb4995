package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/issue-ticket-service/internal/domain"
)

// ProductRepository defines persistence access for products.
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	Update(ctx context.Context, product *domain.Product) error
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*domain.Product, error)
	List(ctx context.Context, limit, offset int) ([]domain.Product, error)
}

type productRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a Postgres-backed implementation.
func NewProductRepository(pool *pgxpool.Pool) ProductRepository {
	return &productRepository{pool: pool}
}

func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	const query = `
        INSERT INTO products (name, description, price, priority)
        VALUES ($1, $2, $3, $4)
        RETURNING id`
	err := conn(ctx, r.pool).QueryRow(ctx, query, product.Name, product.Description, product.Price, product.Priority).
		Scan(&product.ID)
	return classify(err, "product")
}

func (r *productRepository) Update(ctx context.Context, product *domain.Product) error {
	const query = `UPDATE products SET name=$1, description=$2, price=$3, priority=$4 WHERE id=$5`
	cmd, err := conn(ctx, r.pool).Exec(ctx, query, product.Name, product.Description, product.Price, product.Priority, product.ID)
	if err != nil {
		return classify(err, "product")
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Delete removes the product together with its tickets.
func (r *productRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM products WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *productRepository) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	const query = `SELECT id, name, description, price::float8, priority FROM products WHERE id=$1`
	var product domain.Product
	if err := conn(ctx, r.pool).QueryRow(ctx, query, id).Scan(
		&product.ID,
		&product.Name,
		&product.Description,
		&product.Price,
		&product.Priority,
	); err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepository) List(ctx context.Context, limit, offset int) ([]domain.Product, error) {
	limit, offset = pageBounds(limit, offset)
	const query = `SELECT id, name, description, price::float8, priority FROM products ORDER BY id ASC LIMIT $1 OFFSET $2`
	rows, err := conn(ctx, r.pool).Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Product{}
	for rows.Next() {
		var product domain.Product
		if err := rows.Scan(&product.ID, &product.Name, &product.Description, &product.Price, &product.Priority); err != nil {
			return nil, err
		}
		result = append(result, product)
	}
	return result, rows.Err()
}
