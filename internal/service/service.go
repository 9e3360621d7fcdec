// Package service реализует бизнес-логику оформления заказов.
package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/storefront-checkout/internal/model"
	"github.com/mmeshcher/storefront-checkout/internal/pricing"
	"github.com/mmeshcher/storefront-checkout/internal/repository"
)

var (
	// ErrQuoteChanged возвращается, если сумма или цены изменились с момента расчёта на клиенте.
	ErrQuoteChanged = errors.New("quote changed")
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	GetProducts(ctx context.Context, ids []string) (map[string]model.Product, error)
	GetVoucherByCode(ctx context.Context, code string) (*model.Voucher, error)
	CountVoucherRedemptions(ctx context.Context, voucherID int64, customerKey string) (int, error)
	CreateVoucher(ctx context.Context, v *model.Voucher) (*model.Voucher, error)
	ListVouchers(ctx context.Context) ([]model.Voucher, error)
	DeleteVoucher(ctx context.Context, code string) error
	GetVouchersForExpiryAudit(ctx context.Context, now time.Time, limit int) ([]repository.ExpiredVoucher, error)
	MarkVoucherExpiryLogged(ctx context.Context, id int64, at time.Time) error
	GetOrderIDByIdempotencyKey(ctx context.Context, key string) (string, error)
	CommitCheckout(ctx context.Context, o *model.Order, redemption *model.VoucherRedemption) (string, bool, error)
	GetOrder(ctx context.Context, id string) (*model.Order, error)
	UpdateOrderStatus(ctx context.Context, id string, to model.OrderStatus, note string) error
}

// IdempotencyCache хранит соответствие ключа идемпотентности и созданного заказа.
type IdempotencyCache interface {
	GetOrderID(ctx context.Context, key string) (string, error)
	SetOrderID(ctx context.Context, key, orderID string) error
}

// EventPublisher публикует события о созданных заказах.
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, o *model.Order) error
}

// MediaResolver проверяет существование загруженного подтверждения оплаты.
type MediaResolver interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// Option настраивает необязательные зависимости сервиса.
type Option func(*Service)

// WithCache подключает кэш идемпотентности.
func WithCache(c IdempotencyCache) Option {
	return func(s *Service) { s.cache = c }
}

// WithPublisher подключает публикацию событий о заказах.
func WithPublisher(p EventPublisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithMedia подключает проверку подтверждений оплаты в медиасервисе.
func WithMedia(m MediaResolver) Option {
	return func(s *Service) { s.media = m }
}

// WithClock подменяет источник текущего времени.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger задаёт логгер сервиса.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// Service содержит бизнес-логику расчёта стоимости, проверки ваучеров и оформления заказов.
type Service struct {
	repo       Repository
	calculator *pricing.Calculator
	currency   string
	cache      IdempotencyCache
	publisher  EventPublisher
	media      MediaResolver
	logger     *zap.Logger
	now        func() time.Time
}

// NewService создаёт новый сервис с указанным репозиторием и параметрами расчёта.
func NewService(repo Repository, settings pricing.Settings, opts ...Option) *Service {
	s := &Service{
		repo:       repo,
		calculator: pricing.NewCalculator(settings),
		currency:   settings.Currency,
		logger:     zap.NewNop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}
