package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/giantswarm/storefront/storage"
)

// ListProducts implements storage.ProductStore.
func (s *Store) ListProducts(ctx context.Context, collection storage.Collection) ([]*storage.Product, error) {
	rows, err := s.db.QueryContext(ctx,
		s.rebind("SELECT document FROM products WHERE collection = ? ORDER BY created_at DESC"),
		string(collection))
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := make([]*storage.Product, 0)
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		var p storage.Product
		if err := json.Unmarshal([]byte(doc), &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal product: %w", err)
		}
		products = append(products, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate products: %w", err)
	}
	return products, nil
}

// GetProduct implements storage.ProductStore.
func (s *Store) GetProduct(ctx context.Context, collection storage.Collection, id string) (*storage.Product, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		s.rebind("SELECT document FROM products WHERE collection = ? AND id = ?"),
		string(collection), id).Scan(&doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	var p storage.Product
	if err := json.Unmarshal([]byte(doc), &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal product: %w", err)
	}
	return &p, nil
}

// CreateProduct implements storage.ProductStore.
func (s *Store) CreateProduct(ctx context.Context, product *storage.Product) error {
	if product == nil || product.ID == "" {
		return fmt.Errorf("%w: product id is required", storage.ErrInvalidInput)
	}

	doc, err := json.Marshal(product)
	if err != nil {
		return fmt.Errorf("failed to marshal product: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		s.rebind("INSERT INTO products (id, collection, document, created_at, updated_at) VALUES (?, ?, ?, ?, ?)"),
		product.ID, string(product.Collection), string(doc),
		product.CreatedAt.UnixNano(), product.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to insert product: %w", err)
	}
	return nil
}

// UpdateProduct implements storage.ProductStore.
// The stored creation time is kept.
func (s *Store) UpdateProduct(ctx context.Context, product *storage.Product) error {
	if product == nil || product.ID == "" {
		return fmt.Errorf("%w: product id is required", storage.ErrInvalidInput)
	}

	existing, err := s.GetProduct(ctx, product.Collection, product.ID)
	if err != nil {
		return err
	}

	updated := *product
	updated.CreatedAt = existing.CreatedAt

	doc, err := json.Marshal(&updated)
	if err != nil {
		return fmt.Errorf("failed to marshal product: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		s.rebind("UPDATE products SET document = ?, updated_at = ? WHERE collection = ? AND id = ?"),
		string(doc), updated.UpdatedAt.UnixNano(), string(updated.Collection), updated.ID)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}
	return requireOneRow(res)
}

// DeleteProduct implements storage.ProductStore.
func (s *Store) DeleteProduct(ctx context.Context, collection storage.Collection, id string) error {
	res, err := s.db.ExecContext(ctx,
		s.rebind("DELETE FROM products WHERE collection = ? AND id = ?"),
		string(collection), id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	return requireOneRow(res)
}

// CreateOrder implements storage.OrderStore.
func (s *Store) CreateOrder(ctx context.Context, order *storage.Order) error {
	if order == nil || order.ID == "" {
		return fmt.Errorf("%w: order id is required", storage.ErrInvalidInput)
	}

	doc, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("failed to marshal order: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		s.rebind("INSERT INTO orders (id, status, document, created_at, updated_at) VALUES (?, ?, ?, ?, ?)"),
		order.ID, string(order.Status), string(doc),
		order.CreatedAt.UnixNano(), order.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

// ListOrders implements storage.OrderStore.
func (s *Store) ListOrders(ctx context.Context) ([]*storage.Order, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT document FROM orders ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]*storage.Order, 0)
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		var o storage.Order
		if err := json.Unmarshal([]byte(doc), &o); err != nil {
			return nil, fmt.Errorf("failed to unmarshal order: %w", err)
		}
		orders = append(orders, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}
	return orders, nil
}

// UpdateOrderStatus implements storage.OrderStore.
func (s *Store) UpdateOrderStatus(ctx context.Context, id string, status storage.OrderStatus, updatedAt time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin order update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var doc string
	err = tx.QueryRowContext(ctx, s.rebind("SELECT document FROM orders WHERE id = ?"), id).Scan(&doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("failed to get order: %w", err)
	}

	var o storage.Order
	if err := json.Unmarshal([]byte(doc), &o); err != nil {
		return fmt.Errorf("failed to unmarshal order: %w", err)
	}
	o.Status = status
	o.UpdatedAt = updatedAt

	updated, err := json.Marshal(&o)
	if err != nil {
		return fmt.Errorf("failed to marshal order: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		s.rebind("UPDATE orders SET status = ?, document = ?, updated_at = ? WHERE id = ?"),
		string(status), string(updated), updatedAt.UnixNano(), id); err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit order update: %w", err)
	}
	return nil
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}
