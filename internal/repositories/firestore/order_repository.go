package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/maplecart/api/internal/domain"
	pfirestore "github.com/maplecart/api/internal/platform/firestore"
	"github.com/maplecart/api/internal/repositories"
)

const orderCollection = "orders"

type orderLineDocument struct {
	ProductID string `firestore:"productId"`
	Name      string `firestore:"name"`
	Quantity  int    `firestore:"quantity"`
	UnitPrice int64  `firestore:"unitPrice"`
}

type orderTotalsDocument struct {
	Subtotal int64 `firestore:"subtotal"`
	Discount int64 `firestore:"discount"`
	Shipping int64 `firestore:"shipping"`
	Tax      int64 `firestore:"tax"`
	Total    int64 `firestore:"total"`
}

type orderDocument struct {
	UserID    string              `firestore:"userId"`
	Currency  string              `firestore:"currency"`
	Lines     []orderLineDocument `firestore:"lines"`
	Totals    orderTotalsDocument `firestore:"totals"`
	Status    string              `firestore:"status"`
	CreatedAt time.Time           `firestore:"createdAt"`
	UpdatedAt time.Time           `firestore:"updatedAt"`
}

// OrderRepository persists placed orders keyed by order ID.
type OrderRepository struct {
	coll *pfirestore.Collection[orderDocument]
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{coll: pfirestore.NewCollection[orderDocument](provider, orderCollection)}, nil
}

// CreateOrder writes the order document. Orders are immutable after creation
// apart from status transitions, so a plain set suffices.
func (r *OrderRepository) CreateOrder(ctx context.Context, order domain.Order) error {
	orderID := strings.TrimSpace(order.ID)
	if orderID == "" {
		return errors.New("order repository: order id is required")
	}
	return r.coll.Set(ctx, orderID, encodeOrder(order))
}

// GetOrder fetches a single order by ID.
func (r *OrderRepository) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}

	doc, err := r.coll.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	return decodeOrder(doc.ID, doc.Data), nil
}

// ListOrdersByUser returns the user's orders, newest first.
func (r *OrderRepository) ListOrdersByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errors.New("order repository: user id is required")
	}

	docs, err := r.coll.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.Where("userId", "==", userID).OrderBy("createdAt", firestore.Desc)
	})
	if err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		orders = append(orders, decodeOrder(doc.ID, doc.Data))
	}
	return orders, nil
}

func encodeOrder(order domain.Order) orderDocument {
	lines := make([]orderLineDocument, 0, len(order.Lines))
	for _, line := range order.Lines {
		lines = append(lines, orderLineDocument{
			ProductID: line.ProductID,
			Name:      line.Name,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		})
	}
	return orderDocument{
		UserID:   order.UserID,
		Currency: order.Currency,
		Lines:    lines,
		Totals: orderTotalsDocument{
			Subtotal: order.Totals.Subtotal,
			Discount: order.Totals.Discount,
			Shipping: order.Totals.Shipping,
			Tax:      order.Totals.Tax,
			Total:    order.Totals.Total,
		},
		Status:    string(order.Status),
		CreatedAt: order.CreatedAt.UTC(),
		UpdatedAt: order.UpdatedAt.UTC(),
	}
}

func decodeOrder(docID string, doc orderDocument) domain.Order {
	lines := make([]domain.OrderLine, 0, len(doc.Lines))
	for _, line := range doc.Lines {
		lines = append(lines, domain.OrderLine{
			ProductID: line.ProductID,
			Name:      line.Name,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		})
	}
	return domain.Order{
		ID:       docID,
		UserID:   doc.UserID,
		Currency: doc.Currency,
		Lines:    lines,
		Totals: domain.OrderTotals{
			Subtotal: doc.Totals.Subtotal,
			Discount: doc.Totals.Discount,
			Shipping: doc.Totals.Shipping,
			Tax:      doc.Totals.Tax,
			Total:    doc.Totals.Total,
		},
		Status:    domain.OrderStatus(doc.Status),
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)
