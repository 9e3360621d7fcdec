package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/storefront-checkout/internal/model"
)

// GetOrderIDByIdempotencyKey возвращает идентификатор заказа, созданного с указанным ключом идемпотентности.
func (r *PostgresRepository) GetOrderIDByIdempotencyKey(ctx context.Context, key string) (string, error) {
	var id string
	err := r.pool.QueryRow(ctx,
		`SELECT id::text FROM orders WHERE idempotency_key = $1`,
		key,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrOrderNotFound
		}
		return "", fmt.Errorf("select order by idempotency key: %w", err)
	}
	return id, nil
}

// CommitCheckout атомарно создаёт заказ: списывает остатки, погашает ваучер и сохраняет позиции
// с зафиксированными ценами. Если заказ с тем же ключом идемпотентности уже существует,
// возвращает его идентификатор и признак повтора, ничего не изменяя.
func (r *PostgresRepository) CommitCheckout(ctx context.Context, o *model.Order, redemption *model.VoucherRedemption) (string, bool, error) {
	var (
		id       string
		replayed bool
	)

	err := r.withRetry(ctx, func() error {
		var err error
		id, replayed, err = r.commitCheckout(ctx, o, redemption)
		return err
	})
	if err != nil {
		return "", false, err
	}

	return id, replayed, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (r *PostgresRepository) commitCheckout(ctx context.Context, o *model.Order, redemption *model.VoucherRedemption) (string, bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return "", false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Вставка заказа первой: конкурирующая транзакция с тем же ключом ждёт на уникальном индексе
	// и после фиксации победителя получает пустой RETURNING.
	var id string
	err = tx.QueryRow(ctx,
		`INSERT INTO orders (id, idempotency_key, full_name, email, phone, address_line1, address_line2, city,
		                     province, postal_code, notes, payment_method, payment_proof_media_id, status, currency,
		                     subtotal_cents, discount_cents, shipping_cents, total_cents, voucher_code, account_email)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		 ON CONFLICT (idempotency_key) DO NOTHING
		 RETURNING id::text`,
		o.ID, o.IdempotencyKey, o.Contact.FullName, o.Contact.Email, o.Contact.Phone,
		o.Shipping.AddressLine1, o.Shipping.AddressLine2, o.Shipping.City, o.Shipping.Province, o.Shipping.PostalCode,
		o.Notes, string(o.PaymentMethod), nullable(o.PaymentProofMediaID), string(o.Status), o.Currency,
		o.SubtotalCents, o.DiscountCents, o.ShippingCents, o.TotalCents, nullable(o.VoucherCode), nullable(o.AccountEmail),
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			_ = tx.Rollback(ctx)
			existing, err := r.GetOrderIDByIdempotencyKey(ctx, o.IdempotencyKey)
			if err != nil {
				return "", false, err
			}
			return existing, true, nil
		}
		return "", false, fmt.Errorf("insert order: %w", err)
	}

	if err := reserveStock(ctx, tx, o.Items); err != nil {
		return "", false, err
	}

	for i, it := range o.Items {
		_, err := tx.Exec(ctx,
			`INSERT INTO order_items (order_id, position, product_id, product_name, quantity, unit_cents, line_total_cents)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			id, i, it.ProductID, it.ProductName, it.Quantity, it.UnitCents, it.LineTotalCents,
		)
		if err != nil {
			return "", false, fmt.Errorf("insert order item: %w", err)
		}
	}

	if redemption != nil {
		if err := redeemVoucher(ctx, tx, id, redemption); err != nil {
			return "", false, err
		}
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO order_status_history (order_id, status, note) VALUES ($1, $2, $3)`,
		id, string(o.Status), "order placed",
	)
	if err != nil {
		return "", false, fmt.Errorf("insert status history: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", false, fmt.Errorf("commit tx: %w", err)
	}

	return id, false, nil
}

// reserveStock блокирует строки товаров в порядке идентификаторов, проверяет цену и остаток
// по всем позициям и только затем списывает остаток.
func reserveStock(ctx context.Context, tx pgx.Tx, items []model.OrderItem) error {
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}

	rows, err := tx.Query(ctx,
		`SELECT id, price_cents, stock
		 FROM products
		 WHERE id = ANY($1) AND deleted_at IS NULL
		 ORDER BY id
		 FOR UPDATE`,
		ids,
	)
	if err != nil {
		return fmt.Errorf("lock products: %w", err)
	}

	type lockedProduct struct {
		price int64
		stock int
	}
	locked := make(map[string]lockedProduct, len(ids))
	for rows.Next() {
		var (
			pid string
			lp  lockedProduct
		)
		if err := rows.Scan(&pid, &lp.price, &lp.stock); err != nil {
			rows.Close()
			return fmt.Errorf("scan locked product: %w", err)
		}
		locked[pid] = lp
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows error: %w", err)
	}

	for _, it := range items {
		lp, ok := locked[it.ProductID]
		if !ok {
			return fmt.Errorf("%w: %s", ErrProductNotFound, it.ProductID)
		}
		if lp.price != it.UnitCents {
			return fmt.Errorf("%w: %s", ErrPriceChanged, it.ProductName)
		}
		if lp.stock < it.Quantity {
			return fmt.Errorf("%w: %s", ErrInsufficientStock, it.ProductName)
		}
	}

	for _, it := range items {
		tag, err := tx.Exec(ctx,
			`UPDATE products SET stock = stock - $2, updated_at = now() WHERE id = $1 AND stock >= $2`,
			it.ProductID, it.Quantity,
		)
		if err != nil {
			return fmt.Errorf("decrement stock: %w", err)
		}
		if tag.RowsAffected() != 1 {
			return fmt.Errorf("%w: %s", ErrInsufficientStock, it.ProductName)
		}
	}

	return nil
}

func redeemVoucher(ctx context.Context, tx pgx.Tx, orderID string, rd *model.VoucherRedemption) error {
	var perCustomer int
	err := tx.QueryRow(ctx,
		`SELECT COALESCE(per_customer_limit, 0)
		 FROM vouchers
		 WHERE id = $1 AND deleted_at IS NULL AND active
		 FOR UPDATE`,
		rd.VoucherID,
	).Scan(&perCustomer)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrVoucherNotFound
		}
		return fmt.Errorf("lock voucher: %w", err)
	}

	if perCustomer > 0 {
		var used int
		err := tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM voucher_redemptions WHERE voucher_id = $1 AND customer_key = $2`,
			rd.VoucherID, rd.CustomerKey,
		).Scan(&used)
		if err != nil {
			return fmt.Errorf("count redemptions: %w", err)
		}
		if used >= perCustomer {
			return ErrVoucherExhausted
		}
	}

	tag, err := tx.Exec(ctx,
		`UPDATE vouchers SET used_count = used_count + 1
		 WHERE id = $1 AND (usage_limit IS NULL OR used_count < usage_limit)`,
		rd.VoucherID,
	)
	if err != nil {
		return fmt.Errorf("increment voucher usage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrVoucherExhausted
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO voucher_redemptions (voucher_id, order_id, customer_key) VALUES ($1, $2, $3)`,
		rd.VoucherID, orderID, rd.CustomerKey,
	)
	if err != nil {
		return fmt.Errorf("insert redemption: %w", err)
	}

	return nil
}

// GetOrder возвращает заказ вместе с позициями и историей статусов.
func (r *PostgresRepository) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	var (
		o      model.Order
		method string
		status string
	)
	err := r.pool.QueryRow(ctx,
		`SELECT id::text, idempotency_key, full_name, email, phone, address_line1, address_line2, city, province,
		        postal_code, notes, payment_method, COALESCE(payment_proof_media_id, ''), status, currency,
		        subtotal_cents, discount_cents, shipping_cents, total_cents, COALESCE(voucher_code, ''),
		        COALESCE(account_email, ''), created_at
		 FROM orders
		 WHERE id = $1`,
		id,
	).Scan(
		&o.ID, &o.IdempotencyKey, &o.Contact.FullName, &o.Contact.Email, &o.Contact.Phone,
		&o.Shipping.AddressLine1, &o.Shipping.AddressLine2, &o.Shipping.City, &o.Shipping.Province,
		&o.Shipping.PostalCode, &o.Notes, &method, &o.PaymentProofMediaID, &status, &o.Currency,
		&o.SubtotalCents, &o.DiscountCents, &o.ShippingCents, &o.TotalCents, &o.VoucherCode,
		&o.AccountEmail, &o.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("select order: %w", err)
	}
	o.PaymentMethod = model.PaymentMethod(method)
	o.Status = model.OrderStatus(status)

	rows, err := r.pool.Query(ctx,
		`SELECT product_id, product_name, quantity, unit_cents, line_total_cents
		 FROM order_items
		 WHERE order_id = $1
		 ORDER BY position`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("select order items: %w", err)
	}
	for rows.Next() {
		var it model.OrderItem
		if err := rows.Scan(&it.ProductID, &it.ProductName, &it.Quantity, &it.UnitCents, &it.LineTotalCents); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		o.Items = append(o.Items, it)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	rows, err = r.pool.Query(ctx,
		`SELECT status, note, changed_at
		 FROM order_status_history
		 WHERE order_id = $1
		 ORDER BY changed_at, id`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("select status history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			ch     model.StatusChange
			status string
		)
		if err := rows.Scan(&status, &ch.Note, &ch.ChangedAt); err != nil {
			return nil, fmt.Errorf("scan status change: %w", err)
		}
		ch.Status = model.OrderStatus(status)
		o.History = append(o.History, ch)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return &o, nil
}

// UpdateOrderStatus меняет статус заказа с проверкой допустимости перехода и записью в историю.
// При отмене заказа остатки товаров возвращаются в той же транзакции.
func (r *PostgresRepository) UpdateOrderStatus(ctx context.Context, id string, to model.OrderStatus, note string) error {
	return r.withRetry(ctx, func() error {
		return r.updateOrderStatus(ctx, id, to, note)
	})
}

func (r *PostgresRepository) updateOrderStatus(ctx context.Context, id string, to model.OrderStatus, note string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var current string
	err = tx.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, id).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("lock order: %w", err)
	}

	from := model.OrderStatus(current)
	if !model.CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	if to == model.OrderStatusCancelled {
		_, err := tx.Exec(ctx,
			`UPDATE products p
			 SET stock = p.stock + oi.quantity, updated_at = now()
			 FROM order_items oi
			 WHERE oi.order_id = $1 AND p.id = oi.product_id`,
			id,
		)
		if err != nil {
			return fmt.Errorf("restock cancelled order: %w", err)
		}
	}

	_, err = tx.Exec(ctx,
		`UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`,
		id, string(to),
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO order_status_history (order_id, status, note) VALUES ($1, $2, $3)`,
		id, string(to), note,
	)
	if err != nil {
		return fmt.Errorf("insert status history: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}
