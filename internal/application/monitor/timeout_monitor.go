// Package monitor holds the background sweeps that keep stalled orders and
// silent trackers from rotting: periodic, idempotent, clock-injected.
package monitor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dannymikay/agrimatch-go/internal/application/common"
	ordercommands "github.com/dannymikay/agrimatch-go/internal/application/orders/commands"
	"github.com/dannymikay/agrimatch-go/internal/domain/order"
	"github.com/dannymikay/agrimatch-go/internal/domain/shared"
)

// Timeout sweep defaults
const (
	DefaultSearchWindow    = 48 * time.Hour
	DefaultTimeoutInterval = 5 * time.Minute
)

// TimeoutMonitor rolls orders stuck in LOGISTICS_SEARCH past the window back
// to LISTED. Each order is unwound through the rollback command so the sweep
// shares its locking and escrow-cancel semantics with manual rollbacks.
type TimeoutMonitor struct {
	orders   order.Repository
	mediator common.Mediator
	clock    shared.Clock
	logger   *zap.Logger

	window   time.Duration
	interval time.Duration
}

// NewTimeoutMonitor creates a timeout monitor with default window and interval
func NewTimeoutMonitor(orders order.Repository, mediator common.Mediator, clock shared.Clock, logger *zap.Logger) *TimeoutMonitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimeoutMonitor{
		orders:   orders,
		mediator: mediator,
		clock:    clock,
		logger:   logger,
		window:   DefaultSearchWindow,
		interval: DefaultTimeoutInterval,
	}
}

// Configure overrides the search window and sweep interval. Zero values keep
// the defaults.
func (m *TimeoutMonitor) Configure(window, interval time.Duration) *TimeoutMonitor {
	if window > 0 {
		m.window = window
	}
	if interval > 0 {
		m.interval = interval
	}
	return m
}

// Run sweeps on a ticker until the context is cancelled
func (m *TimeoutMonitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := m.Sweep(ctx); err != nil {
				m.logger.Error("timeout sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep rolls back every expired order once and returns the rollback count
func (m *TimeoutMonitor) Sweep(ctx context.Context) (int, error) {
	cutoff := m.clock.Now().Add(-m.window)
	expired, err := m.orders.FindExpiredLogisticsSearch(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	rolledBack := 0
	for _, o := range expired {
		resp, err := m.mediator.Send(ctx, &ordercommands.RollbackToListedCommand{
			OrderID: o.ID,
			Reason:  ordercommands.RollbackReasonTimeout,
		})
		if err != nil {
			// One stuck order must not stall the rest of the sweep
			m.logger.Error("rollback failed",
				zap.String("order_id", o.ID.String()), zap.Error(err))
			continue
		}
		if r, ok := resp.(*ordercommands.RollbackToListedResponse); ok && r.RolledBack {
			m.logger.Info("order rolled back after search timeout",
				zap.String("order_id", o.ID.String()))
			rolledBack++
		}
	}
	return rolledBack, nil
}
