// Package payments orchestrates the tripartite escrow against the payment
// processor. All processor calls happen here; handlers deal in escrow rows.
package payments

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dannymikay/agrimatch-go/internal/application/common"
	"github.com/dannymikay/agrimatch-go/internal/domain/escrow"
	"github.com/dannymikay/agrimatch-go/internal/domain/shared"
)

// EscrowService opens, releases and cancels escrows. In demo mode no
// processor exists and intent handles are fabricated with the demo prefix.
type EscrowService struct {
	escrows   escrow.Repository
	processor escrow.PaymentProcessor
	clock     shared.Clock
	demoMode  bool
}

// NewEscrowService creates the escrow orchestrator. A nil processor forces
// demo mode.
func NewEscrowService(escrows escrow.Repository, processor escrow.PaymentProcessor, clock shared.Clock, demoMode bool) *EscrowService {
	if processor == nil {
		demoMode = true
	}
	return &EscrowService{
		escrows:   escrows,
		processor: processor,
		clock:     clock,
		demoMode:  demoMode,
	}
}

// Open creates a WAITING_FUNDS escrow for the order and authorizes the full
// amount with the processor. Must run inside the caller's transaction.
func (s *EscrowService) Open(ctx context.Context, orderID uuid.UUID, totalCents int64) (*escrow.Escrow, string, error) {
	e, err := escrow.NewEscrow(orderID, totalCents, s.clock)
	if err != nil {
		return nil, "", err
	}

	var clientSecret string
	if s.demoMode {
		e.PaymentIntentID = escrow.DemoIntentPrefix + e.ID.String()
	} else {
		intentID, secret, err := s.processor.CreateIntent(ctx, totalCents, escrow.IntentMetadata{
			OrderID:  orderID,
			EscrowID: e.ID,
		})
		if err != nil {
			return nil, "", shared.NewProcessorError("create_intent", err)
		}
		e.PaymentIntentID = intentID
		clientSecret = secret
	}

	if err := s.escrows.Create(ctx, e); err != nil {
		return nil, "", fmt.Errorf("failed to save escrow: %w", err)
	}
	return e, clientSecret, nil
}

// FindByOrder loads the order's escrow under a row lock
func (s *EscrowService) FindByOrder(ctx context.Context, orderID uuid.UUID) (*escrow.Escrow, error) {
	return s.escrows.FindByOrderIDForUpdate(ctx, orderID)
}

// FindByIntent loads the escrow behind a processor intent under a row lock
func (s *EscrowService) FindByIntent(ctx context.Context, intentID string) (*escrow.Escrow, error) {
	return s.escrows.FindByIntentIDForUpdate(ctx, intentID)
}

// ConfirmFunds captures the manual-capture authorization and moves the escrow
// to FUNDS_HELD. Runs in the webhook path once the buyer's payment clears;
// idempotent on an escrow that already holds funds.
func (s *EscrowService) ConfirmFunds(ctx context.Context, e *escrow.Escrow) error {
	if e.Status != escrow.StatusWaitingFunds {
		return nil
	}

	if !s.demoMode && !e.IsDemoIntent() {
		if err := s.processor.CaptureIntent(ctx, e.PaymentIntentID); err != nil {
			return shared.NewProcessorError("capture_intent", err)
		}
	}

	e.MarkFundsHeld(s.clock.Now())
	return s.escrows.Save(ctx, e)
}

// ReleasePickup pays the farmer the 20% pickup tranche. The escrow must be
// FUNDS_HELD; the caller holds its row lock.
func (s *EscrowService) ReleasePickup(ctx context.Context, e *escrow.Escrow, farmerAccount string) error {
	if e.Status != escrow.StatusFundsHeld {
		return shared.NewInvalidTransitionError(string(e.Status), string(escrow.StatusPickedUp))
	}

	tranche := e.PickupTrancheCents()
	if !s.demoMode && !e.IsDemoIntent() {
		transferID, err := s.transfer(ctx, tranche, farmerAccount, e.OrderID, "pickup_farmer")
		if err != nil {
			return err
		}
		e.TransferFarmerPickupID = transferID
	}

	e.MarkPickedUp(tranche, s.clock.Now())
	return s.escrows.Save(ctx, e)
}

// ReleaseDelivery pays the farmer the 60% balance and the middleman the 20%
// logistics fee. The escrow must be PICKED_UP. A middleman without a connected
// account still earns the tranche on the ledger; the payout waits for
// onboarding and never blocks the farmer's release.
func (s *EscrowService) ReleaseDelivery(ctx context.Context, e *escrow.Escrow, farmerAccount, middlemanAccount string) error {
	if e.Status != escrow.StatusPickedUp {
		return shared.NewInvalidTransitionError(string(e.Status), string(escrow.StatusDelivered))
	}

	farmerTranche := e.DeliveryFarmerTrancheCents()
	middlemanTranche := e.DeliveryMiddlemanTrancheCents()
	if !s.demoMode && !e.IsDemoIntent() {
		transferID, err := s.transfer(ctx, farmerTranche, farmerAccount, e.OrderID, "delivery_farmer")
		if err != nil {
			return err
		}
		e.TransferFarmerFinalID = transferID

		if middlemanAccount != "" {
			transferID, err = s.transfer(ctx, middlemanTranche, middlemanAccount, e.OrderID, "delivery_middleman")
			if err != nil {
				return err
			}
			e.TransferMiddlemanID = transferID
		}
	}

	e.MarkDelivered(farmerTranche, middlemanTranche, s.clock.Now())
	return s.escrows.Save(ctx, e)
}

// Cancel refunds the unreleased balance and closes the escrow. Processor
// failures are logged, never propagated: the refund is retryable out of band
// and must not block the order rollback.
func (s *EscrowService) Cancel(ctx context.Context, e *escrow.Escrow) error {
	if e.Status == escrow.StatusCancelled || e.Status == escrow.StatusDelivered {
		return nil
	}

	if !s.demoMode && !e.IsDemoIntent() && e.PaymentIntentID != "" {
		if err := s.processor.CancelOrRefund(ctx, e.PaymentIntentID); err != nil {
			common.LoggerFromContext(ctx).Error("escrow refund failed, continuing cancellation",
				zap.String("escrow_id", e.ID.String()),
				zap.String("intent_id", e.PaymentIntentID),
				zap.Error(err))
		}
	}

	e.MarkCancelled(s.clock.Now())
	return s.escrows.Save(ctx, e)
}

func (s *EscrowService) transfer(ctx context.Context, amountCents int64, account string, orderID uuid.UUID, leg string) (string, error) {
	transferID, err := s.processor.Transfer(ctx, amountCents, account, "order_"+orderID.String(), map[string]string{
		"order_id": orderID.String(),
		"leg":      leg,
	})
	if err != nil {
		return "", shared.NewProcessorError("transfer_"+leg, err)
	}
	return transferID, nil
}
