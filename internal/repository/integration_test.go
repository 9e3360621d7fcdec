//go:build integration

package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/mmeshcher/storefront-checkout/internal/model"
)

func startPostgres(ctx context.Context, t *testing.T) string {
	t.Helper()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16",
		Env:          map[string]string{"POSTGRES_PASSWORD": "postgres", "POSTGRES_USER": "postgres", "POSTGRES_DB": "checkout"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		terminateCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		require.NoError(t, container.Terminate(terminateCtx))
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)

	mappedPort, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	return fmt.Sprintf("postgres://postgres:postgres@%s:%s/checkout?sslmode=disable", host, mappedPort.Port())
}

func newIntegrationRepo(t *testing.T) *PostgresRepository {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	repo, err := NewPostgresRepository(startPostgres(ctx, t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	repo.retryDelays = []time.Duration{10 * time.Millisecond, 50 * time.Millisecond, 100 * time.Millisecond}
	return repo
}

func seedProduct(t *testing.T, repo *PostgresRepository, id string, price int64, stock int) {
	t.Helper()
	_, err := repo.pool.Exec(context.Background(),
		`INSERT INTO products (id, name, price_cents, currency, stock) VALUES ($1, $2, $3, 'PKR', $4)`,
		id, "Product "+id, price, stock,
	)
	require.NoError(t, err)
}

func stock(t *testing.T, repo *PostgresRepository, id string) int {
	t.Helper()
	products, err := repo.GetProducts(context.Background(), []string{id})
	require.NoError(t, err)
	return products[id].Stock
}

func newOrder(key, productID string, qty int, unit int64) *model.Order {
	return &model.Order{
		ID:             uuid.NewString(),
		IdempotencyKey: key,
		Contact:        model.Contact{FullName: "Ayesha Khan", Email: "ayesha@example.com", Phone: "+923001234567"},
		Shipping:       model.ShippingAddress{AddressLine1: "12 Mall Road", City: "Lahore"},
		PaymentMethod:  model.PaymentCOD,
		Status:         model.OrderStatusPending,
		Currency:       "PKR",
		SubtotalCents:  unit * int64(qty),
		ShippingCents:  299,
		TotalCents:     unit*int64(qty) + 299,
		Items: []model.OrderItem{
			{ProductID: productID, ProductName: "Product " + productID, Quantity: qty, UnitCents: unit, LineTotalCents: unit * int64(qty)},
		},
	}
}

func TestIntegration_Checkout(t *testing.T) {
	repo := newIntegrationRepo(t)
	ctx := context.Background()

	t.Run("last unit is sold once", func(t *testing.T) {
		seedProduct(t, repo, "LAST", 1000, 1)

		var (
			wg                sync.WaitGroup
			mu                sync.Mutex
			success, shortage int
		)
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, _, err := repo.CommitCheckout(ctx, newOrder(fmt.Sprintf("last-%d", i), "LAST", 1, 1000), nil)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					success++
				case errors.Is(err, ErrInsufficientStock):
					shortage++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}(i)
		}
		wg.Wait()

		assert.Equal(t, 1, success)
		assert.Equal(t, 1, shortage)
		assert.Equal(t, 0, stock(t, repo, "LAST"))
	})

	t.Run("same key concurrently creates one order", func(t *testing.T) {
		seedProduct(t, repo, "IDEM", 1000, 10)

		const workers = 5
		ids := make([]string, workers)
		replays := make([]bool, workers)

		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				id, replayed, err := repo.CommitCheckout(ctx, newOrder("same-key", "IDEM", 2, 1000), nil)
				assert.NoError(t, err)
				ids[i] = id
				replays[i] = replayed
			}(i)
		}
		wg.Wait()

		created := 0
		for i := range ids {
			assert.Equal(t, ids[0], ids[i])
			if !replays[i] {
				created++
			}
		}
		assert.Equal(t, 1, created)
		assert.Equal(t, 8, stock(t, repo, "IDEM"))

		id, err := repo.GetOrderIDByIdempotencyKey(ctx, "same-key")
		require.NoError(t, err)
		assert.Equal(t, ids[0], id)
	})

	t.Run("voucher usage limit", func(t *testing.T) {
		seedProduct(t, repo, "VOUCH", 1000, 10)
		limit := 3
		v, err := repo.CreateVoucher(ctx, &model.Voucher{
			Code:           "LIMIT3",
			DiscountType:   model.DiscountFixed,
			AmountOffCents: 100,
			Currency:       "PKR",
			UsageLimit:     &limit,
			Active:         true,
		})
		require.NoError(t, err)

		for i := 1; i <= 4; i++ {
			o := newOrder(fmt.Sprintf("voucher-%d", i), "VOUCH", 1, 1000)
			o.VoucherCode = v.Code
			o.DiscountCents = 100
			o.TotalCents -= 100

			_, _, err := repo.CommitCheckout(ctx, o, &model.VoucherRedemption{VoucherID: v.ID, CustomerKey: fmt.Sprintf("c%d@example.com", i)})
			if i <= 3 {
				require.NoError(t, err, "use %d", i)
			} else {
				require.ErrorIs(t, err, ErrVoucherExhausted)
			}
		}

		got, err := repo.GetVoucherByCode(ctx, "LIMIT3")
		require.NoError(t, err)
		assert.Equal(t, 3, got.UsedCount)
		assert.Equal(t, 7, stock(t, repo, "VOUCH"))
	})

	t.Run("cancel restocks and records history", func(t *testing.T) {
		seedProduct(t, repo, "CANCEL", 1000, 4)

		id, _, err := repo.CommitCheckout(ctx, newOrder("cancel-key", "CANCEL", 3, 1000), nil)
		require.NoError(t, err)
		assert.Equal(t, 1, stock(t, repo, "CANCEL"))

		require.NoError(t, repo.UpdateOrderStatus(ctx, id, model.OrderStatusCancelled, "customer request"))
		assert.Equal(t, 4, stock(t, repo, "CANCEL"))

		o, err := repo.GetOrder(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, model.OrderStatusCancelled, o.Status)
		require.Len(t, o.History, 2)
		assert.Equal(t, model.OrderStatusPending, o.History[0].Status)

		err = repo.UpdateOrderStatus(ctx, id, model.OrderStatusConfirmed, "")
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})
}
