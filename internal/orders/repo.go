package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) ProductBySKU(ctx context.Context, sku string) (Product, error) {
	var p Product
	err := r.DB.QueryRow(ctx, `
		SELECT sku, name, stock, price_cents, is_active, created_at, updated_at
		FROM products WHERE sku=$1`, sku).
		Scan(&p.SKU, &p.Name, &p.Stock, &p.PriceCents, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, fmt.Errorf("%w: %s", ErrProductNotFound, sku)
	}
	if err != nil {
		return Product{}, err
	}
	return p, nil
}

func (r *Repo) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT sku, name, stock, price_cents, is_active, created_at, updated_at
		FROM products ORDER BY sku`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.SKU, &p.Name, &p.Stock, &p.PriceCents, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ActiveSKUs: daftar SKU aktif utk sweep janitor.
func (r *Repo) ActiveSKUs(ctx context.Context) ([]string, error) {
	rows, err := r.DB.Query(ctx, `SELECT sku FROM products WHERE is_active ORDER BY sku`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ReduceStock: decrement permanen, conditional di sisi DB (stock >= qty).
// Ini guard kedua, independen dari check di reservation store.
func (r *Repo) ReduceStock(ctx context.Context, sku string, qty int) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE products SET stock = stock - $2, updated_at = now()
		WHERE sku = $1 AND stock >= $2`, sku, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 1 {
		return nil
	}

	// 0 rows: bedakan sku tak ada vs stok kurang
	var stock int
	err = r.DB.QueryRow(ctx, `SELECT stock FROM products WHERE sku=$1`, sku).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrProductNotFound, sku)
	}
	if err != nil {
		return err
	}
	return &InsufficientStockError{SKU: sku, Requested: qty, Available: stock}
}

func (r *Repo) UserExists(ctx context.Context, userID string) (bool, error) {
	var n int
	if err := r.DB.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE id=$1`, userID).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// CreateOrder: tulis order + items dalam satu tx, status langsung COMPLETED.
// Harga diambil dari lines (snapshot saat checkout), bukan re-query.
func (r *Repo) CreateOrder(ctx context.Context, userID string, lines []CartLine) (orderID string, total int, err error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, l := range lines {
		total += l.PriceCents * l.Qty
	}

	orderID = uuid.NewString()
	_, err = tx.Exec(ctx, `
		INSERT INTO orders(id, user_id, status, total_cents)
		VALUES ($1, $2, $3, $4)`, orderID, userID, string(StatusCompleted), total)
	if err != nil {
		return "", 0, err
	}
	for _, l := range lines {
		if _, err = tx.Exec(ctx, `
			INSERT INTO order_items(order_id, sku, qty, price_cents)
			VALUES ($1, $2, $3, $4)`, orderID, l.SKU, l.Qty, l.PriceCents); err != nil {
			return "", 0, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return "", 0, err
	}
	return orderID, total, nil
}

func (r *Repo) GetOrderStatus(ctx context.Context, orderID string) (Status, error) {
	var s string
	err := r.DB.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1`, orderID).Scan(&s)
	if err != nil {
		return "", err
	}
	return Status(s), nil
}
