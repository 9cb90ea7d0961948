package orders

import (
	"fmt"
	"sync"

	"offramp/pkg/types"
)

// Store is a process-local view of order state, fed by the webhook handler
// and the synchronizer. The counterparty remains the source of truth; the
// store only enforces the one-way status progression on what it is told.
type Store struct {
	mu     sync.RWMutex
	orders map[string]*types.SettlementOrder
}

// NewStore creates an empty order store.
func NewStore() *Store {
	return &Store{orders: make(map[string]*types.SettlementOrder)}
}

// Track registers an order the saga just created.
func (s *Store) Track(order *types.SettlementOrder) {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *order
	s.orders[order.OrderID] = &copied
}

// Get returns a copy of the tracked order, if known.
func (s *Store) Get(orderID string) (*types.SettlementOrder, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.orders[orderID]
	if !ok {
		return nil, false
	}
	copied := *order
	return &copied, true
}

// Apply moves an order to the given status. Transitions that walk the
// progression backwards or reopen a terminal state are rejected; same-state
// redelivery is a no-op so webhook retries stay idempotent.
func (s *Store) Apply(orderID string, status types.OrderStatus, txHash, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		// First sighting of an order created on another device session.
		s.orders[orderID] = &types.SettlementOrder{
			OrderID:       orderID,
			Status:        status,
			TxHash:        txHash,
			FailureReason: reason,
		}
		return nil
	}

	if order.Status == status {
		return nil
	}
	if !order.Status.CanTransitionTo(status) {
		return fmt.Errorf("illegal order transition %s -> %s for %s", order.Status, status, orderID)
	}

	order.Status = status
	if txHash != "" {
		order.TxHash = txHash
	}
	if reason != "" {
		order.FailureReason = reason
	}
	return nil
}
