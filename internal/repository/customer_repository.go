package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/issue-ticket-service/internal/domain"
)

// CustomerRepository defines persistence access for customers.
type CustomerRepository interface {
	Create(ctx context.Context, customer *domain.Customer) error
	Update(ctx context.Context, customer *domain.Customer) error
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*domain.Customer, error)
	List(ctx context.Context, limit, offset int) ([]domain.Customer, error)
}

type customerRepository struct {
	pool *pgxpool.Pool
}

// NewCustomerRepository returns a Postgres-backed implementation.
func NewCustomerRepository(pool *pgxpool.Pool) CustomerRepository {
	return &customerRepository{pool: pool}
}

func (r *customerRepository) Create(ctx context.Context, customer *domain.Customer) error {
	const query = `
        INSERT INTO customers (name, email, phone)
        VALUES ($1, $2, $3)
        RETURNING id, created_at`
	err := conn(ctx, r.pool).QueryRow(ctx, query, customer.Name, customer.Email, customer.Phone).
		Scan(&customer.ID, &customer.CreatedAt)
	return classify(err, "customer")
}

func (r *customerRepository) Update(ctx context.Context, customer *domain.Customer) error {
	const query = `UPDATE customers SET name=$1, email=$2, phone=$3 WHERE id=$4`
	cmd, err := conn(ctx, r.pool).Exec(ctx, query, customer.Name, customer.Email, customer.Phone, customer.ID)
	if err != nil {
		return classify(err, "customer")
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Delete removes the customer together with its tickets.
func (r *customerRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM customers WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *customerRepository) GetByID(ctx context.Context, id int64) (*domain.Customer, error) {
	const query = `SELECT id, name, email, phone, created_at FROM customers WHERE id=$1`
	var customer domain.Customer
	if err := conn(ctx, r.pool).QueryRow(ctx, query, id).Scan(
		&customer.ID,
		&customer.Name,
		&customer.Email,
		&customer.Phone,
		&customer.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *customerRepository) List(ctx context.Context, limit, offset int) ([]domain.Customer, error) {
	limit, offset = pageBounds(limit, offset)
	const query = `SELECT id, name, email, phone, created_at FROM customers ORDER BY id ASC LIMIT $1 OFFSET $2`
	rows, err := conn(ctx, r.pool).Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Customer{}
	for rows.Next() {
		var customer domain.Customer
		if err := rows.Scan(&customer.ID, &customer.Name, &customer.Email, &customer.Phone, &customer.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, customer)
	}
	return result, rows.Err()
}
