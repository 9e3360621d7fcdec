package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/storefront-checkout/internal/model"
)

// GetProducts возвращает актуальные данные неудалённых товаров по идентификаторам.
// Отсутствующие товары просто не попадают в результат.
func (r *PostgresRepository) GetProducts(ctx context.Context, ids []string) (map[string]model.Product, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, price_cents, currency, stock
		 FROM products
		 WHERE id = ANY($1) AND deleted_at IS NULL`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()

	res := make(map[string]model.Product, len(ids))
	for rows.Next() {
		var p model.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.PriceCents, &p.Currency, &p.Stock); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		res[p.ID] = p
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

const voucherColumns = `id, code, discount_type, percent_off::text, amount_off_cents, COALESCE(currency, ''),
	min_order_cents, usage_limit, per_customer_limit, used_count, starts_at, expires_at, active, created_at`

func scanVoucher(row pgx.Row) (*model.Voucher, error) {
	var (
		v       model.Voucher
		percent string
		dtype   string
	)
	err := row.Scan(
		&v.ID, &v.Code, &dtype, &percent, &v.AmountOffCents, &v.Currency,
		&v.MinOrderCents, &v.UsageLimit, &v.PerCustomerLimit, &v.UsedCount,
		&v.StartsAt, &v.ExpiresAt, &v.Active, &v.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	v.DiscountType = model.DiscountType(dtype)
	v.PercentOff, err = decimal.NewFromString(percent)
	if err != nil {
		return nil, fmt.Errorf("parse percent_off %q: %w", percent, err)
	}

	return &v, nil
}

// GetVoucherByCode возвращает действующий (неудалённый) ваучер по нормализованному коду.
func (r *PostgresRepository) GetVoucherByCode(ctx context.Context, code string) (*model.Voucher, error) {
	v, err := scanVoucher(r.pool.QueryRow(ctx,
		`SELECT `+voucherColumns+` FROM vouchers WHERE code = $1 AND deleted_at IS NULL`,
		code,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVoucherNotFound
		}
		return nil, fmt.Errorf("get voucher: %w", err)
	}
	return v, nil
}

// CountVoucherRedemptions возвращает число погашений ваучера указанным покупателем.
func (r *PostgresRepository) CountVoucherRedemptions(ctx context.Context, voucherID int64, customerKey string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM voucher_redemptions WHERE voucher_id = $1 AND customer_key = $2`,
		voucherID, customerKey,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count redemptions: %w", err)
	}
	return n, nil
}

// CreateVoucher сохраняет новый ваучер.
func (r *PostgresRepository) CreateVoucher(ctx context.Context, v *model.Voucher) (*model.Voucher, error) {
	var currency *string
	if v.Currency != "" {
		currency = &v.Currency
	}

	created, err := scanVoucher(r.pool.QueryRow(ctx,
		`INSERT INTO vouchers (code, discount_type, percent_off, amount_off_cents, currency, min_order_cents,
		                       usage_limit, per_customer_limit, starts_at, expires_at, active)
		 VALUES ($1, $2, $3::numeric, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING `+voucherColumns,
		v.Code, string(v.DiscountType), v.PercentOff.String(), v.AmountOffCents, currency, v.MinOrderCents,
		v.UsageLimit, v.PerCustomerLimit, v.StartsAt, v.ExpiresAt, v.Active,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrVoucherExists, v.Code)
		}
		return nil, fmt.Errorf("create voucher: %w", err)
	}
	return created, nil
}

// ListVouchers возвращает все неудалённые ваучеры, новые первыми.
func (r *PostgresRepository) ListVouchers(ctx context.Context) ([]model.Voucher, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+voucherColumns+` FROM vouchers WHERE deleted_at IS NULL ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("select vouchers: %w", err)
	}
	defer rows.Close()

	var res []model.Voucher
	for rows.Next() {
		v, err := scanVoucher(rows)
		if err != nil {
			return nil, fmt.Errorf("scan voucher: %w", err)
		}
		res = append(res, *v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// DeleteVoucher помечает ваучер удалённым.
func (r *PostgresRepository) DeleteVoucher(ctx context.Context, code string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE vouchers SET deleted_at = now(), active = FALSE WHERE code = $1 AND deleted_at IS NULL`,
		code,
	)
	if err != nil {
		return fmt.Errorf("delete voucher: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrVoucherNotFound
	}
	return nil
}

// ExpiredVoucher описывает ваучер, срок действия которого истёк и ещё не зафиксирован в журнале.
type ExpiredVoucher struct {
	ID        int64
	Code      string
	ExpiresAt time.Time
	UsedCount int
}

// GetVouchersForExpiryAudit возвращает истёкшие ваучеры, ещё не отмеченные в журнале.
func (r *PostgresRepository) GetVouchersForExpiryAudit(ctx context.Context, now time.Time, limit int) ([]ExpiredVoucher, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, code, expires_at, used_count
		 FROM vouchers
		 WHERE expires_at <= $1 AND expiry_logged_at IS NULL AND deleted_at IS NULL
		 ORDER BY expires_at
		 LIMIT $2`,
		now, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select expired vouchers: %w", err)
	}
	defer rows.Close()

	var res []ExpiredVoucher
	for rows.Next() {
		var v ExpiredVoucher
		if err := rows.Scan(&v.ID, &v.Code, &v.ExpiresAt, &v.UsedCount); err != nil {
			return nil, fmt.Errorf("scan expired voucher: %w", err)
		}
		res = append(res, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// MarkVoucherExpiryLogged отмечает, что истечение ваучера записано в журнал.
func (r *PostgresRepository) MarkVoucherExpiryLogged(ctx context.Context, id int64, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE vouchers SET expiry_logged_at = $2 WHERE id = $1`,
		id, at,
	)
	if err != nil {
		return fmt.Errorf("mark voucher expiry: %w", err)
	}
	return nil
}
