package domain

// Product is the subject a ticket is filed against.
type Product struct {
	ID          int64
	Name        string
	Description *string
	Price       float64
	Priority    TicketPriority
}
