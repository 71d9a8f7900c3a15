package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	domain "github.com/hanko-field/commerce-api/internal/domain"
	"github.com/hanko-field/commerce-api/internal/repositories"
)

// CartRepository keeps one row per user with the items encoded as JSON.
type CartRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewCartRepository constructs a PostgreSQL-backed cart repository.
func NewCartRepository(db *sql.DB) (*CartRepository, error) {
	if db == nil {
		return nil, errors.New("cart repository requires database")
	}
	return &CartRepository{db: db, now: time.Now}, nil
}

func (r *CartRepository) GetCart(ctx context.Context, userID string) (domain.Cart, error) {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return domain.Cart{}, errors.New("cart repository: user id is required")
	}
	var (
		raw       string
		updatedAt time.Time
	)
	err := conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT items_json, updated_at FROM carts WHERE user_id = $1`, uid,
	).Scan(&raw, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Cart{UserID: uid, Items: []domain.CartItem{}}, nil
	}
	if err != nil {
		return domain.Cart{}, wrapError("carts.get", err)
	}
	var lines []lineRecord
	if err := json.Unmarshal([]byte(raw), &lines); err != nil {
		return domain.Cart{}, wrapError("carts.decode", err)
	}
	return domain.Cart{UserID: uid, Items: toCartItems(lines), UpdatedAt: updatedAt}, nil
}

func (r *CartRepository) SaveCart(ctx context.Context, cart domain.Cart) (domain.Cart, error) {
	uid := strings.TrimSpace(cart.UserID)
	if uid == "" {
		return domain.Cart{}, errors.New("cart repository: user id is required")
	}
	cart.UserID = uid
	if cart.Items == nil {
		cart.Items = []domain.CartItem{}
	}
	cart.UpdatedAt = r.now().UTC()
	raw, err := json.Marshal(cartLines(cart.Items))
	if err != nil {
		return domain.Cart{}, wrapError("carts.encode", err)
	}
	if _, err := conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO carts (user_id, items_json, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET items_json = EXCLUDED.items_json, updated_at = EXCLUDED.updated_at`,
		uid, string(raw), cart.UpdatedAt,
	); err != nil {
		return domain.Cart{}, wrapError("carts.save", err)
	}
	return cart.Clone(), nil
}

func (r *CartRepository) ClearCart(ctx context.Context, userID string) error {
	_, err := r.SaveCart(ctx, domain.Cart{UserID: userID})
	return err
}

var _ repositories.CartRepository = (*CartRepository)(nil)
