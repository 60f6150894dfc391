package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mihaimyh/gopolar/pkg/polar"
)

// syncPageSize is the fixed page size for a sync run. Only the first page is
// fetched; deployments with more remote orders than this rely on webhooks for
// the remainder.
const syncPageSize = 100

// SyncResult summarizes one bulk order sync. Synced+Skipped always equals
// Total.
type SyncResult struct {
	Total   int `json:"total"`
	Synced  int `json:"synced"`
	Skipped int `json:"skipped"`
}

// SyncOrders lists up to 100 remote orders and inserts any whose external id
// is not stored yet, using the same existence check as the webhook path.
// Orders that already exist locally are never re-created or modified.
func (s *Service) SyncOrders(ctx context.Context) (*SyncResult, error) {
	startTime := time.Now()

	list, err := s.client.ListOrders(ctx, polar.ListOrdersParams{Limit: syncPageSize})
	if err != nil {
		s.metrics.RecordOrderSync("error")
		s.metrics.RecordOrderSyncDuration(time.Since(startTime))
		return nil, fmt.Errorf("failed to list polar orders: %w", err)
	}

	s.logger.Info("syncing polar orders", Field{Key: "count", Value: len(list.Items)})

	result := &SyncResult{Total: len(list.Items)}
	for i := range list.Items {
		remote := &list.Items[i]

		existing, err := s.store.GetOrder(ctx, remote.ID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			s.metrics.RecordOrderSync("error")
			s.metrics.RecordOrderSyncDuration(time.Since(startTime))
			return nil, fmt.Errorf("failed to look up order %s: %w", remote.ID, err)
		}
		if existing != nil {
			s.logger.Debug("order already exists, skipping", Field{Key: "order_id", Value: remote.ID})
			result.Skipped++
			continue
		}

		status := remote.Status
		if status == "" {
			status = defaultOrderStatus
		}

		order := &Order{
			OrderID:    remote.ID,
			CustomerID: remote.CustomerID,
			ProductID:  remote.ProductID,
			Amount:     remote.EffectiveAmount(),
			Currency:   remote.Currency,
			Status:     status,
			CreatedAt:  time.Now().UTC(),
		}
		if err := s.store.CreateOrder(ctx, order); err != nil {
			if errors.Is(err, ErrDuplicate) {
				result.Skipped++
				continue
			}
			s.metrics.RecordOrderSync("error")
			s.metrics.RecordOrderSyncDuration(time.Since(startTime))
			return nil, fmt.Errorf("failed to create order %s: %w", remote.ID, err)
		}

		s.logger.Info("synced order",
			Field{Key: "order_id", Value: remote.ID},
			Field{Key: "amount", Value: order.Amount})
		result.Synced++
	}

	s.metrics.RecordOrderSync("success")
	s.metrics.RecordOrderSyncDuration(time.Since(startTime))
	return result, nil
}
