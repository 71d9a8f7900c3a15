package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	domain "github.com/hanko-field/commerce-api/internal/domain"
	"github.com/hanko-field/commerce-api/internal/repositories"
)

const orderColumns = `id, user_id, total_amount, payment_method, payment_status, order_status,
	items_json, shipping_json, payment_json, version, stock_released, created_at, updated_at`

// OrderRepository stores orders with nested values encoded as JSON columns.
type OrderRepository struct {
	db *sql.DB
}

// NewOrderRepository constructs a PostgreSQL-backed order repository.
func NewOrderRepository(db *sql.DB) (*OrderRepository, error) {
	if db == nil {
		return nil, errors.New("order repository requires database")
	}
	return &OrderRepository{db: db}, nil
}

func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if order.Version == 0 {
		order.Version = 1
	}
	enc, err := encodeOrder(order)
	if err != nil {
		return wrapError("orders.encode", err)
	}
	_, err = conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO orders (id, user_id, total_amount, payment_method, payment_status, order_status,
			payment_id, items_json, shipping_json, payment_json, version, stock_released, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		order.ID, order.UserID, order.TotalAmount, string(order.PaymentMethod), string(order.PaymentStatus),
		string(order.OrderStatus), nilIfEmpty(order.PaymentDetails.PaymentID), enc.items, enc.shipping, enc.payment,
		order.Version, order.StockReleased, order.CreatedAt.UTC(), order.UpdatedAt.UTC(),
	)
	return wrapError("orders.insert", err)
}

// Update compares and bumps the version in one statement; zero affected rows is either a
// missing order or a stale version, told apart by a follow-up lookup.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order) (domain.Order, error) {
	enc, err := encodeOrder(order)
	if err != nil {
		return domain.Order{}, wrapError("orders.encode", err)
	}
	q := conn(ctx, r.db)
	res, err := q.ExecContext(ctx, `
		UPDATE orders SET payment_status = $3, order_status = $4, payment_id = $5,
			items_json = $6, shipping_json = $7, payment_json = $8, total_amount = $9,
			updated_at = $10, stock_released = $11, version = version + 1
		WHERE id = $1 AND version = $2`,
		order.ID, order.Version, string(order.PaymentStatus), string(order.OrderStatus),
		nilIfEmpty(order.PaymentDetails.PaymentID), enc.items, enc.shipping, enc.payment,
		order.TotalAmount, order.UpdatedAt.UTC(), order.StockReleased,
	)
	if err != nil {
		return domain.Order{}, wrapError("orders.update", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Order{}, wrapError("orders.update", err)
	}
	if affected == 0 {
		if _, err := r.FindByID(ctx, order.ID); err != nil {
			return domain.Order{}, err
		}
		return domain.Order{}, repositories.NewConflict("orders.update",
			fmt.Sprintf("order %s changed since version %d", order.ID, order.Version))
	}
	saved := order.Clone()
	saved.Version++
	return saved, nil
}

func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	row := conn(ctx, r.db).QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID)
	order, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, repositories.NewNotFound("orders.get", "order "+orderID+" not found")
	}
	if err != nil {
		return domain.Order{}, wrapError("orders.get", err)
	}
	return order, nil
}

func (r *OrderRepository) FindByPaymentID(ctx context.Context, paymentID string) (domain.Order, error) {
	row := conn(ctx, r.db).QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE payment_id = $1`, paymentID)
	order, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, repositories.NewNotFound("orders.get_by_payment", "no order for payment "+paymentID)
	}
	if err != nil {
		return domain.Order{}, wrapError("orders.get_by_payment", err)
	}
	return order, nil
}

func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.Page[domain.Order], error) {
	where, args := buildOrderFilter(filter)
	q := conn(ctx, r.db)

	var total int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`+where, args...).Scan(&total); err != nil {
		return domain.Page[domain.Order]{}, wrapError("orders.count", err)
	}

	query := `SELECT ` + orderColumns + ` FROM orders` + where + ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return domain.Page[domain.Order]{}, wrapError("orders.list", err)
	}
	defer rows.Close()

	items := []domain.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return domain.Page[domain.Order]{}, wrapError("orders.list", err)
		}
		items = append(items, order)
	}
	if err := rows.Err(); err != nil {
		return domain.Page[domain.Order]{}, wrapError("orders.list", err)
	}
	return domain.Page[domain.Order]{Items: items, Total: total}, nil
}

func buildOrderFilter(filter repositories.OrderListFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if filter.UserID != "" {
		add("user_id = $%d", filter.UserID)
	}
	if filter.OrderStatus != "" {
		add("order_status = $%d", string(filter.OrderStatus))
	}
	if filter.PaymentStatus != "" {
		add("payment_status = $%d", string(filter.PaymentStatus))
	}
	if filter.PaymentMethod != "" {
		add("payment_method = $%d", string(filter.PaymentMethod))
	}
	if filter.CreatedFrom != nil {
		add("created_at >= $%d", filter.CreatedFrom.UTC())
	}
	if filter.CreatedTo != nil {
		add("created_at <= $%d", filter.CreatedTo.UTC())
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

type encodedOrder struct {
	items    string
	shipping string
	payment  string
}

func encodeOrder(order domain.Order) (encodedOrder, error) {
	items, err := json.Marshal(orderLines(order.Items))
	if err != nil {
		return encodedOrder{}, err
	}
	shipping, err := json.Marshal(newAddressRecord(order.ShippingAddress))
	if err != nil {
		return encodedOrder{}, err
	}
	payment, err := json.Marshal(newPaymentRecord(order.PaymentDetails))
	if err != nil {
		return encodedOrder{}, err
	}
	return encodedOrder{items: string(items), shipping: string(shipping), payment: string(payment)}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var order domain.Order
	var method, paymentStatus, orderStatus string
	var itemsJSON, shippingJSON, paymentJSON string
	if err := row.Scan(
		&order.ID, &order.UserID, &order.TotalAmount, &method, &paymentStatus, &orderStatus,
		&itemsJSON, &shippingJSON, &paymentJSON, &order.Version, &order.StockReleased, &order.CreatedAt, &order.UpdatedAt,
	); err != nil {
		return domain.Order{}, err
	}
	order.PaymentMethod = domain.PaymentMethod(method)
	order.PaymentStatus = domain.PaymentStatus(paymentStatus)
	order.OrderStatus = domain.OrderStatus(orderStatus)

	var lines []lineRecord
	if err := json.Unmarshal([]byte(itemsJSON), &lines); err != nil {
		return domain.Order{}, fmt.Errorf("decode items: %w", err)
	}
	order.Items = toOrderItems(lines)

	var address addressRecord
	if err := json.Unmarshal([]byte(shippingJSON), &address); err != nil {
		return domain.Order{}, fmt.Errorf("decode shipping: %w", err)
	}
	order.ShippingAddress = address.toDomain()

	var payment paymentRecord
	if err := json.Unmarshal([]byte(paymentJSON), &payment); err != nil {
		return domain.Order{}, fmt.Errorf("decode payment: %w", err)
	}
	order.PaymentDetails = payment.toDomain()
	return order, nil
}

func nilIfEmpty(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)
