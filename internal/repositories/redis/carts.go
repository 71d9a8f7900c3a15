// Package redis keeps carts in Redis as one JSON value per user. It only serves carts;
// products and orders stay with the primary persistence driver.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	domain "github.com/hanko-field/commerce-api/internal/domain"
	"github.com/hanko-field/commerce-api/internal/repositories"
)

const (
	defaultKeyPrefix = "cart:"
	defaultCartTTL   = 30 * 24 * time.Hour
)

// CartRepository stores carts under "<prefix><userId>" with a sliding expiry.
type CartRepository struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// Option customises the repository.
type Option func(*CartRepository)

// WithKeyPrefix overrides the key prefix.
func WithKeyPrefix(prefix string) Option {
	return func(r *CartRepository) {
		if strings.TrimSpace(prefix) != "" {
			r.prefix = prefix
		}
	}
}

// WithTTL overrides how long an untouched cart survives. Zero disables expiry.
func WithTTL(ttl time.Duration) Option {
	return func(r *CartRepository) {
		if ttl >= 0 {
			r.ttl = ttl
		}
	}
}

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(r *CartRepository) {
		if now != nil {
			r.now = now
		}
	}
}

// NewCartRepository constructs a Redis-backed cart repository.
func NewCartRepository(client redis.Cmdable, opts ...Option) (*CartRepository, error) {
	if client == nil {
		return nil, errors.New("redis cart repository: client is required")
	}
	repo := &CartRepository{client: client, prefix: defaultKeyPrefix, ttl: defaultCartTTL, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(repo)
		}
	}
	return repo, nil
}

func (r *CartRepository) GetCart(ctx context.Context, userID string) (domain.Cart, error) {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return domain.Cart{}, errors.New("redis cart repository: user id is required")
	}
	raw, err := r.client.Get(ctx, r.key(uid)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Cart{UserID: uid, Items: []domain.CartItem{}}, nil
	}
	if err != nil {
		return domain.Cart{}, wrapError("carts.get", err)
	}
	var payload cartPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return domain.Cart{}, fmt.Errorf("redis cart repository: decode %s: %w", uid, err)
	}
	return payload.toDomain(uid), nil
}

func (r *CartRepository) SaveCart(ctx context.Context, cart domain.Cart) (domain.Cart, error) {
	uid := strings.TrimSpace(cart.UserID)
	if uid == "" {
		return domain.Cart{}, errors.New("redis cart repository: user id is required")
	}
	cart.UserID = uid
	if cart.Items == nil {
		cart.Items = []domain.CartItem{}
	}
	cart.UpdatedAt = r.now().UTC()
	raw, err := json.Marshal(newCartPayload(cart))
	if err != nil {
		return domain.Cart{}, fmt.Errorf("redis cart repository: encode %s: %w", uid, err)
	}
	if err := r.client.Set(ctx, r.key(uid), raw, r.ttl).Err(); err != nil {
		return domain.Cart{}, wrapError("carts.save", err)
	}
	return cart.Clone(), nil
}

func (r *CartRepository) ClearCart(ctx context.Context, userID string) error {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return errors.New("redis cart repository: user id is required")
	}
	return wrapError("carts.clear", r.client.Del(ctx, r.key(uid)).Err())
}

// Ping checks connectivity for readiness probes.
func (r *CartRepository) Ping(ctx context.Context) error {
	return wrapError("ping", r.client.Ping(ctx).Err())
}

func (r *CartRepository) key(userID string) string {
	return r.prefix + userID
}

func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return repositories.NewError(op, repositories.ErrorKindUnavailable, "redis", err)
}

type cartPayload struct {
	Items     []cartLine `json:"items"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

type cartLine struct {
	ProductID string  `json:"productId"`
	Size      string  `json:"size"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"price"`
}

func newCartPayload(cart domain.Cart) cartPayload {
	payload := cartPayload{Items: make([]cartLine, 0, len(cart.Items)), UpdatedAt: cart.UpdatedAt}
	for _, item := range cart.Items {
		payload.Items = append(payload.Items, cartLine(item))
	}
	return payload
}

func (p cartPayload) toDomain(userID string) domain.Cart {
	cart := domain.Cart{UserID: userID, Items: make([]domain.CartItem, 0, len(p.Items)), UpdatedAt: p.UpdatedAt}
	for _, line := range p.Items {
		cart.Items = append(cart.Items, domain.CartItem(line))
	}
	return cart
}

var _ repositories.CartRepository = (*CartRepository)(nil)
