package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/hanko-field/commerce-api/internal/domain"
	pfirestore "github.com/hanko-field/commerce-api/internal/platform/firestore"
	"github.com/hanko-field/commerce-api/internal/repositories"
)

const cartCollection = "carts"

// CartRepository persists carts keyed by user ID.
type CartRepository struct {
	carts *pfirestore.Collection[cartDocument]
	now   func() time.Time
}

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	return &CartRepository{
		carts: pfirestore.NewCollection[cartDocument](provider, cartCollection),
		now:   time.Now,
	}, nil
}

func (r *CartRepository) GetCart(ctx context.Context, userID string) (domain.Cart, error) {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return domain.Cart{}, errors.New("cart repository: user id is required")
	}
	doc, err := r.carts.Get(ctx, uid)
	if err != nil {
		if repositories.IsNotFound(err) {
			return domain.Cart{UserID: uid, Items: []domain.CartItem{}}, nil
		}
		return domain.Cart{}, err
	}
	return doc.toDomain(uid), nil
}

func (r *CartRepository) SaveCart(ctx context.Context, cart domain.Cart) (domain.Cart, error) {
	uid := strings.TrimSpace(cart.UserID)
	if uid == "" {
		return domain.Cart{}, errors.New("cart repository: user id is required")
	}
	cart.UserID = uid
	cart.UpdatedAt = r.now().UTC()
	if err := r.carts.Set(ctx, uid, newCartDocument(cart)); err != nil {
		return domain.Cart{}, err
	}
	return cart.Clone(), nil
}

func (r *CartRepository) ClearCart(ctx context.Context, userID string) error {
	_, err := r.SaveCart(ctx, domain.Cart{UserID: userID})
	return err
}

type cartDocument struct {
	Items      []cartItemDocument `firestore:"items"`
	ItemsCount int                `firestore:"itemsCount"`
	UpdatedAt  time.Time          `firestore:"updatedAt"`
}

type cartItemDocument struct {
	ProductID string  `firestore:"productId"`
	Size      string  `firestore:"size"`
	Quantity  int     `firestore:"quantity"`
	UnitPrice float64 `firestore:"price"`
}

func newCartDocument(cart domain.Cart) cartDocument {
	doc := cartDocument{
		Items:      make([]cartItemDocument, 0, len(cart.Items)),
		ItemsCount: len(cart.Items),
		UpdatedAt:  cart.UpdatedAt,
	}
	for _, item := range cart.Items {
		doc.Items = append(doc.Items, cartItemDocument{
			ProductID: item.ProductID,
			Size:      item.Size,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return doc
}

func (d cartDocument) toDomain(userID string) domain.Cart {
	cart := domain.Cart{UserID: userID, Items: make([]domain.CartItem, 0, len(d.Items)), UpdatedAt: d.UpdatedAt}
	for _, item := range d.Items {
		cart.Items = append(cart.Items, domain.CartItem{
			ProductID: item.ProductID,
			Size:      item.Size,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return cart
}

var _ repositories.CartRepository = (*CartRepository)(nil)
