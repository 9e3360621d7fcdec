package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/mmeshcher/storefront-checkout/internal/model"
	"github.com/mmeshcher/storefront-checkout/internal/repository"
	"github.com/mmeshcher/storefront-checkout/internal/validation"
)

// GetOrder возвращает заказ по идентификатору.
func (s *Service) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, repository.ErrOrderNotFound
	}
	return s.repo.GetOrder(ctx, id)
}

// UpdateOrderStatus меняет статус заказа согласно допустимым переходам.
func (s *Service) UpdateOrderStatus(ctx context.Context, id string, status model.OrderStatus, note string) error {
	if !status.Valid() {
		return validation.Newf("unknown order status %q", status)
	}
	if _, err := uuid.Parse(id); err != nil {
		return repository.ErrOrderNotFound
	}
	return s.repo.UpdateOrderStatus(ctx, id, status, strings.TrimSpace(note))
}
