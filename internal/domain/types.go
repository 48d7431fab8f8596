package domain

import (
	"strings"
	"time"
)

// Product is a read-only snapshot owned by the catalog. The cart and order
// surfaces never mutate it; they reference it by ID and may carry denormalised
// display fields copied from it.
type Product struct {
	ID          string
	Name        string
	Description string
	Price       int64
	Currency    string
	ImageURL    string
	Category    string
	Stock       int
	Rating      float64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CartLine is one product+quantity entry in a cart. Name, UnitPrice and
// ImageURL are a display snapshot captured when the line was created; the
// authoritative price is always the live catalog price at read time.
type CartLine struct {
	ID        string
	ProductID string
	Quantity  int
	Name      string
	UnitPrice int64
	ImageURL  string
	AddedAt   time.Time
	UpdatedAt *time.Time
}

// Cart is the ordered collection of lines scoped to one user session.
// Count and subtotal are always derived, never stored.
type Cart struct {
	ID        string
	UserID    string
	Currency  string
	Lines     []CartLine
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Count returns the sum of all line quantities.
func (c Cart) Count() int {
	total := 0
	for _, line := range c.Lines {
		if line.Quantity > 0 {
			total += line.Quantity
		}
	}
	return total
}

// LineFor returns the index of the line holding the given product, or -1.
func (c Cart) LineFor(productID string) int {
	target := strings.TrimSpace(productID)
	if target == "" {
		return -1
	}
	for i, line := range c.Lines {
		if strings.EqualFold(strings.TrimSpace(line.ProductID), target) {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy so callers can hand out snapshots without
// exposing the store's internal slice.
func (c Cart) Clone() Cart {
	dup := c
	if c.Lines != nil {
		dup.Lines = make([]CartLine, len(c.Lines))
		copy(dup.Lines, c.Lines)
		for i := range dup.Lines {
			if dup.Lines[i].UpdatedAt != nil {
				ts := dup.Lines[i].UpdatedAt.UTC()
				dup.Lines[i].UpdatedAt = &ts
			}
		}
	}
	return dup
}

// Favorite marks a product saved by a user. Product is optionally hydrated
// from the catalog for display and may be nil when the product is gone.
type Favorite struct {
	ProductID string
	AddedAt   time.Time
	Product   *Product
}

// OrderTotals is the derived, ephemeral checkout summary value. It is never
// stored independently of the order it belongs to.
type OrderTotals struct {
	Subtotal int64
	Discount int64
	Shipping int64
	Tax      int64
	Total    int64
}

// OrderStatus tracks the order lifecycle.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// OrderLine records a purchased product with the unit price charged.
type OrderLine struct {
	ProductID string
	Name      string
	Quantity  int
	UnitPrice int64
}

// Order is a placed order with its frozen totals.
type Order struct {
	ID        string
	UserID    string
	Currency  string
	Lines     []OrderLine
	Totals    OrderTotals
	Status    OrderStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}
