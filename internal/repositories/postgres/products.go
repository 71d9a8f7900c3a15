package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	domain "github.com/hanko-field/commerce-api/internal/domain"
	"github.com/hanko-field/commerce-api/internal/repositories"
)

// ProductRepository reads products joined with their size rows.
type ProductRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewProductRepository constructs a PostgreSQL-backed product repository.
func NewProductRepository(db *sql.DB) (*ProductRepository, error) {
	if db == nil {
		return nil, errors.New("product repository requires database")
	}
	return &ProductRepository{db: db, now: time.Now}, nil
}

func (r *ProductRepository) Get(ctx context.Context, productID string) (domain.Product, error) {
	q := conn(ctx, r.db)
	id := strings.TrimSpace(productID)

	var product domain.Product
	err := q.QueryRowContext(ctx,
		`SELECT id, name, price, created_at, updated_at FROM products WHERE id = $1`, id,
	).Scan(&product.ID, &product.Name, &product.Price, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, repositories.NewNotFound("products.get", "product "+id+" not found")
		}
		return domain.Product{}, wrapError("products.get", err)
	}

	rows, err := q.QueryContext(ctx,
		`SELECT size, stock FROM product_sizes WHERE product_id = $1 ORDER BY position, size`, id)
	if err != nil {
		return domain.Product{}, wrapError("products.sizes", err)
	}
	defer rows.Close()
	product.SizeStock = []domain.SizeStock{}
	for rows.Next() {
		var entry domain.SizeStock
		if err := rows.Scan(&entry.Size, &entry.Stock); err != nil {
			return domain.Product{}, wrapError("products.sizes", err)
		}
		product.SizeStock = append(product.SizeStock, entry)
	}
	if err := rows.Err(); err != nil {
		return domain.Product{}, wrapError("products.sizes", err)
	}
	return product, nil
}

func (r *ProductRepository) Save(ctx context.Context, product domain.Product) (domain.Product, error) {
	now := r.now().UTC()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = now

	err := runInTx(ctx, r.db, func(ctx context.Context) error {
		q := conn(ctx, r.db)
		err := q.QueryRowContext(ctx, `
			INSERT INTO products (id, name, price, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, price = EXCLUDED.price, updated_at = EXCLUDED.updated_at
			RETURNING created_at`,
			product.ID, product.Name, product.Price, product.CreatedAt, product.UpdatedAt,
		).Scan(&product.CreatedAt)
		if err != nil {
			return wrapError("products.save", err)
		}
		if _, err := q.ExecContext(ctx, `DELETE FROM product_sizes WHERE product_id = $1`, product.ID); err != nil {
			return wrapError("products.save_sizes", err)
		}
		for i, entry := range product.SizeStock {
			if _, err := q.ExecContext(ctx,
				`INSERT INTO product_sizes (product_id, size, position, stock) VALUES ($1, $2, $3, $4)`,
				product.ID, entry.Size, i, entry.Stock,
			); err != nil {
				return wrapError("products.save_sizes", err)
			}
		}
		return nil
	})
	if err != nil {
		return domain.Product{}, err
	}
	return product.Clone(), nil
}

// DecreaseStock relies on the row-level guard in the WHERE clause; zero affected rows means
// the size is absent or stock is insufficient.
func (r *ProductRepository) DecreaseStock(ctx context.Context, productID, size string, qty int) (bool, error) {
	if qty <= 0 {
		return false, nil
	}
	res, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE product_sizes SET stock = stock - $3 WHERE product_id = $1 AND size = $2 AND stock >= $3`,
		productID, size, qty)
	if err != nil {
		return false, wrapError("products.decrease", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, wrapError("products.decrease", err)
	}
	if affected == 0 {
		return false, nil
	}
	r.touch(ctx, productID)
	return true, nil
}

func (r *ProductRepository) RestoreStock(ctx context.Context, productID, size string, qty int) error {
	res, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE product_sizes SET stock = stock + $3 WHERE product_id = $1 AND size = $2`,
		productID, size, qty)
	if err != nil {
		return wrapError("products.restore", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return wrapError("products.restore", err)
	}
	if affected == 0 {
		return repositories.NewNotFound("products.restore", "product "+productID+" has no size "+size)
	}
	r.touch(ctx, productID)
	return nil
}

func (r *ProductRepository) touch(ctx context.Context, productID string) {
	_, _ = conn(ctx, r.db).ExecContext(ctx, `UPDATE products SET updated_at = $2 WHERE id = $1`, productID, r.now().UTC())
}

var _ repositories.ProductRepository = (*ProductRepository)(nil)
