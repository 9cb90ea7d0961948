package orders

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"offramp/pkg/types"
)

// ErrNoStatusObserved is returned when every poll failed before the
// attempt bound, so no order state was ever seen.
var ErrNoStatusObserved = errors.New("no order status observed")

// OrderReader is the read side of the counterparty API the synchronizer
// needs.
type OrderReader interface {
	GetOrder(ctx context.Context, orderID string) (*types.SettlementOrder, error)
}

// Synchronizer reconciles local order state against the counterparty's
// asynchronous status. The webhook is the push path; this is the pull
// fallback for when the client was offline or the webhook never arrived.
type Synchronizer struct {
	client      OrderReader
	store       *Store
	interval    time.Duration
	maxAttempts int
	log         *logrus.Entry
}

// NewSynchronizer creates a synchronizer with a bounded polling loop.
func NewSynchronizer(client OrderReader, store *Store, interval time.Duration, maxAttempts int) *Synchronizer {
	return &Synchronizer{
		client:      client,
		store:       store,
		interval:    interval,
		maxAttempts: maxAttempts,
		log:         logrus.WithField("component", "order-sync"),
	}
}

// Watch polls the order until a terminal status is observed or the attempt
// bound is reached. onUpdate fires on every status change. The returned
// order is the last state observed; it may be non-terminal if the bound
// was hit first, and it is ErrNoStatusObserved if every poll failed.
func (s *Synchronizer) Watch(ctx context.Context, orderID string, onUpdate func(*types.SettlementOrder)) (*types.SettlementOrder, error) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var last *types.SettlementOrder

	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-ticker.C:
			order, err := s.client.GetOrder(ctx, orderID)
			if err != nil {
				// Transient; retry on the next tick.
				s.log.WithError(err).Debug("order status check failed")
				continue
			}

			changed := last == nil || last.Status != order.Status
			last = order

			if err := s.store.Apply(order.OrderID, order.Status, order.TxHash, order.FailureReason); err != nil {
				s.log.WithError(err).Warn("ignored regressive status from poll")
				continue
			}

			if changed && onUpdate != nil {
				onUpdate(order)
			}

			if order.Status.Terminal() {
				s.log.WithFields(logrus.Fields{
					"order_id": orderID,
					"status":   order.Status,
				}).Info("order reached terminal status")
				return order, nil
			}
		}
	}

	s.log.WithField("order_id", orderID).Warn("status watch attempts exhausted")
	if last == nil {
		return nil, ErrNoStatusObserved
	}
	return last, nil
}
