package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	domain "github.com/maplecart/api/internal/domain"
	pfirestore "github.com/maplecart/api/internal/platform/firestore"
	"github.com/maplecart/api/internal/repositories"
)

const favoriteCollectionPattern = "users/%s/favorites"

type favoriteDocument struct {
	ProductID string    `firestore:"productId"`
	AddedAt   time.Time `firestore:"addedAt"`
}

// FavoriteRepository persists product favorites as a per-user subcollection,
// one document per product keyed by product ID.
type FavoriteRepository struct {
	provider *pfirestore.Provider
}

// NewFavoriteRepository constructs a Firestore-backed favorite repository.
func NewFavoriteRepository(provider *pfirestore.Provider) (*FavoriteRepository, error) {
	if provider == nil {
		return nil, errors.New("favorite repository requires firestore provider")
	}
	return &FavoriteRepository{provider: provider}, nil
}

// List returns the user's favorites ordered by most recent addition.
func (r *FavoriteRepository) List(ctx context.Context, userID string) ([]domain.Favorite, error) {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return nil, err
	}

	iter := coll.OrderBy("addedAt", firestore.Desc).Documents(ctx)
	defer iter.Stop()

	var favorites []domain.Favorite
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, pfirestore.WrapError("favorites.list", err)
		}
		var doc favoriteDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode favorite %s: %w", snap.Ref.ID, err)
		}
		productID := doc.ProductID
		if productID == "" {
			productID = snap.Ref.ID
		}
		favorites = append(favorites, domain.Favorite{ProductID: productID, AddedAt: doc.AddedAt})
	}
	return favorites, nil
}

// Save stores the favorite, overwriting any existing document for the product.
func (r *FavoriteRepository) Save(ctx context.Context, userID string, favorite domain.Favorite) error {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return err
	}
	productID := strings.TrimSpace(favorite.ProductID)
	if productID == "" {
		return errors.New("favorite repository: product id is required")
	}

	doc := favoriteDocument{ProductID: productID, AddedAt: favorite.AddedAt.UTC()}
	if _, err := coll.Doc(productID).Set(ctx, doc); err != nil {
		return pfirestore.WrapError("favorites.save", err)
	}
	return nil
}

// Delete removes the favorite document. Missing documents are a no-op.
func (r *FavoriteRepository) Delete(ctx context.Context, userID string, productID string) error {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return err
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return errors.New("favorite repository: product id is required")
	}
	if _, err := coll.Doc(productID).Delete(ctx); err != nil {
		return pfirestore.WrapError("favorites.delete", err)
	}
	return nil
}

// DeleteAll removes every favorite the user has saved.
func (r *FavoriteRepository) DeleteAll(ctx context.Context, userID string) error {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return err
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}

	iter := coll.Documents(ctx)
	defer iter.Stop()

	writer := client.BulkWriter(ctx)
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			writer.End()
			return pfirestore.WrapError("favorites.delete_all", err)
		}
		if _, err := writer.Delete(snap.Ref); err != nil {
			writer.End()
			return pfirestore.WrapError("favorites.delete_all", err)
		}
	}
	writer.Flush()
	writer.End()
	return nil
}

func (r *FavoriteRepository) collection(ctx context.Context, userID string) (*firestore.CollectionRef, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("favorite repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return nil, errors.New("favorite repository: user id is required")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(fmt.Sprintf(favoriteCollectionPattern, uid)), nil
}

var _ repositories.FavoriteRepository = (*FavoriteRepository)(nil)
