package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/maplecart/api/internal/domain"
	pfirestore "github.com/maplecart/api/internal/platform/firestore"
	"github.com/maplecart/api/internal/repositories"
)

const cartCollection = "carts"

type cartLineDocument struct {
	ID        string     `firestore:"id"`
	ProductID string     `firestore:"productId"`
	Quantity  int        `firestore:"quantity"`
	Name      string     `firestore:"name"`
	UnitPrice int64      `firestore:"unitPrice"`
	ImageURL  string     `firestore:"imageUrl,omitempty"`
	AddedAt   time.Time  `firestore:"addedAt"`
	UpdatedAt *time.Time `firestore:"updatedAt,omitempty"`
}

type cartDocument struct {
	UserID    string             `firestore:"userId"`
	Currency  string             `firestore:"currency"`
	Lines     []cartLineDocument `firestore:"lines"`
	CreatedAt time.Time          `firestore:"createdAt"`
	UpdatedAt time.Time          `firestore:"updatedAt"`
}

// CartRepository stores one cart document per user, keyed by user ID. The
// whole line array is written on every save so a reload restores the cart
// exactly as it was.
type CartRepository struct {
	coll *pfirestore.Collection[cartDocument]
}

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	return &CartRepository{coll: pfirestore.NewCollection[cartDocument](provider, cartCollection)}, nil
}

// Load fetches the cart for the given user. A missing document surfaces as a
// not-found repository error; callers usually treat that as an empty cart.
func (r *CartRepository) Load(ctx context.Context, userID string) (domain.Cart, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.Cart{}, errors.New("cart repository: user id is required")
	}

	doc, err := r.coll.Get(ctx, userID)
	if err != nil {
		return domain.Cart{}, err
	}
	return decodeCart(doc.ID, doc.Data), nil
}

// Save replaces the user's cart document.
func (r *CartRepository) Save(ctx context.Context, cart domain.Cart) error {
	userID := strings.TrimSpace(cart.UserID)
	if userID == "" {
		return errors.New("cart repository: user id is required")
	}
	return r.coll.Set(ctx, userID, encodeCart(cart))
}

// Delete removes the user's cart document. Missing documents are a no-op.
func (r *CartRepository) Delete(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return errors.New("cart repository: user id is required")
	}
	return r.coll.Delete(ctx, userID)
}

func encodeCart(cart domain.Cart) cartDocument {
	lines := make([]cartLineDocument, 0, len(cart.Lines))
	for _, line := range cart.Lines {
		lines = append(lines, cartLineDocument{
			ID:        line.ID,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Name:      line.Name,
			UnitPrice: line.UnitPrice,
			ImageURL:  line.ImageURL,
			AddedAt:   line.AddedAt.UTC(),
			UpdatedAt: utcOrNil(line.UpdatedAt),
		})
	}
	return cartDocument{
		UserID:    cart.UserID,
		Currency:  cart.Currency,
		Lines:     lines,
		CreatedAt: cart.CreatedAt.UTC(),
		UpdatedAt: cart.UpdatedAt.UTC(),
	}
}

func decodeCart(docID string, doc cartDocument) domain.Cart {
	lines := make([]domain.CartLine, 0, len(doc.Lines))
	for _, line := range doc.Lines {
		lines = append(lines, domain.CartLine{
			ID:        line.ID,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Name:      line.Name,
			UnitPrice: line.UnitPrice,
			ImageURL:  line.ImageURL,
			AddedAt:   line.AddedAt,
			UpdatedAt: line.UpdatedAt,
		})
	}
	userID := doc.UserID
	if userID == "" {
		userID = docID
	}
	return domain.Cart{
		ID:        docID,
		UserID:    userID,
		Currency:  doc.Currency,
		Lines:     lines,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}

func utcOrNil(ts *time.Time) *time.Time {
	if ts == nil {
		return nil
	}
	utc := ts.UTC()
	return &utc
}

var _ repositories.CartRepository = (*CartRepository)(nil)
