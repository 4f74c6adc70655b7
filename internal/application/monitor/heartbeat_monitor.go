package monitor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dannymikay/agrimatch-go/internal/application/common"
	"github.com/dannymikay/agrimatch-go/internal/domain/logistics"
	"github.com/dannymikay/agrimatch-go/internal/domain/shared"
	"github.com/dannymikay/agrimatch-go/internal/events"
)

// Heartbeat sweep defaults
const (
	DefaultSilenceWindow     = 2 * time.Hour
	DefaultHeartbeatInterval = 15 * time.Minute
)

// HeartbeatMonitor raises one GPS_HEARTBEAT_LOST alert per silent period for
// in-transit assignments whose tracker has gone quiet.
type HeartbeatMonitor struct {
	assignments logistics.AssignmentRepository
	tx          common.TxManager
	pub         common.Publisher
	clock       shared.Clock
	logger      *zap.Logger

	silence  time.Duration
	interval time.Duration
}

// NewHeartbeatMonitor creates a heartbeat monitor with default windows
func NewHeartbeatMonitor(
	assignments logistics.AssignmentRepository,
	tx common.TxManager,
	pub common.Publisher,
	clock shared.Clock,
	logger *zap.Logger,
) *HeartbeatMonitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HeartbeatMonitor{
		assignments: assignments,
		tx:          tx,
		pub:         pub,
		clock:       clock,
		logger:      logger,
		silence:     DefaultSilenceWindow,
		interval:    DefaultHeartbeatInterval,
	}
}

// Configure overrides the silence window and sweep interval. Zero values keep
// the defaults.
func (m *HeartbeatMonitor) Configure(silence, interval time.Duration) *HeartbeatMonitor {
	if silence > 0 {
		m.silence = silence
	}
	if interval > 0 {
		m.interval = interval
	}
	return m
}

// Run sweeps on a ticker until the context is cancelled
func (m *HeartbeatMonitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := m.Sweep(ctx); err != nil {
				m.logger.Error("heartbeat sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep flags silent assignments and returns the alert count. The alert flag
// persists in the same transaction as the scan so a crashed sweep never
// double-fires.
func (m *HeartbeatMonitor) Sweep(ctx context.Context) (int, error) {
	cutoff := m.clock.Now().Add(-m.silence)

	var outbox common.Outbox
	alerted := 0
	err := m.tx.WithinTx(ctx, func(ctx context.Context) error {
		stale, err := m.assignments.FindStaleHeartbeats(ctx, cutoff)
		if err != nil {
			return err
		}
		for _, a := range stale {
			a.GPSAlertSent = true
			a.UpdatedAt = m.clock.Now()
			if err := m.assignments.Save(ctx, a); err != nil {
				return err
			}

			lastPing := a.OfferedAt
			if a.LastGPSPingAt != nil {
				lastPing = *a.LastGPSPingAt
			}
			outbox.Broadcast(a.OrderID, events.NewGPSHeartbeatLost(a.OrderID, a.MiddlemanID, lastPing))
			m.logger.Warn("GPS heartbeat lost",
				zap.String("order_id", a.OrderID.String()),
				zap.String("middleman_id", a.MiddlemanID.String()),
				zap.Time("last_ping_at", lastPing))
			alerted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	outbox.Flush(m.pub)
	return alerted, nil
}
