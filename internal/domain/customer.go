package domain

import "time"

// Customer files tickets against products.
type Customer struct {
	ID        int64
	Name      string
	Email     string
	Phone     *string
	CreatedAt time.Time
}
