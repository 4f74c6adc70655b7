// Package payments is the Stripe adapter behind the escrow.PaymentProcessor
// port. Amounts are integer minor-currency units end to end.
package payments

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/paymentintent"
	"github.com/stripe/stripe-go/v78/refund"
	"github.com/stripe/stripe-go/v78/transfer"

	"github.com/dannymikay/agrimatch-go/internal/domain/escrow"
)

// StripeProcessor implements escrow.PaymentProcessor on the Stripe API
type StripeProcessor struct {
	currency string
}

// NewStripeProcessor configures the Stripe client with the secret key
func NewStripeProcessor(secretKey, currency string) *StripeProcessor {
	stripe.Key = secretKey
	if currency == "" {
		currency = "usd"
	}
	return &StripeProcessor{currency: currency}
}

// CreateIntent opens a manual-capture authorization for the escrow total.
// Capture happens at pickup verification, not here.
func (p *StripeProcessor) CreateIntent(ctx context.Context, amountCents int64, meta escrow.IntentMetadata) (string, string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(amountCents),
		Currency:      stripe.String(p.currency),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
	}
	params.Context = ctx
	params.AddMetadata("order_id", meta.OrderID.String())
	params.AddMetadata("escrow_id", meta.EscrowID.String())

	pi, err := paymentintent.New(params)
	if err != nil {
		return "", "", fmt.Errorf("create payment intent: %w", err)
	}
	return pi.ID, pi.ClientSecret, nil
}

// CaptureIntent captures the previously authorized amount
func (p *StripeProcessor) CaptureIntent(ctx context.Context, intentID string) error {
	params := &stripe.PaymentIntentCaptureParams{}
	params.Context = ctx
	if _, err := paymentintent.Capture(intentID, params); err != nil {
		return fmt.Errorf("capture payment intent %s: %w", intentID, err)
	}
	return nil
}

// Transfer moves a tranche to a connected account, grouped by order so the
// three legs reconcile together in Stripe.
func (p *StripeProcessor) Transfer(ctx context.Context, amountCents int64, destinationAccount, transferGroup string, metadata map[string]string) (string, error) {
	params := &stripe.TransferParams{
		Amount:        stripe.Int64(amountCents),
		Currency:      stripe.String(p.currency),
		Destination:   stripe.String(destinationAccount),
		TransferGroup: stripe.String(transferGroup),
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	t, err := transfer.New(params)
	if err != nil {
		return "", fmt.Errorf("create transfer: %w", err)
	}
	return t.ID, nil
}

// CancelOrRefund cancels an uncaptured intent and refunds a captured one
func (p *StripeProcessor) CancelOrRefund(ctx context.Context, intentID string) error {
	getParams := &stripe.PaymentIntentParams{}
	getParams.Context = ctx
	pi, err := paymentintent.Get(intentID, getParams)
	if err != nil {
		return fmt.Errorf("get payment intent %s: %w", intentID, err)
	}

	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		refundParams := &stripe.RefundParams{PaymentIntent: stripe.String(intentID)}
		refundParams.Context = ctx
		if _, err := refund.New(refundParams); err != nil {
			return fmt.Errorf("refund payment intent %s: %w", intentID, err)
		}
	case stripe.PaymentIntentStatusCanceled:
		// Already cancelled, nothing to unwind
	default:
		cancelParams := &stripe.PaymentIntentCancelParams{}
		cancelParams.Context = ctx
		if _, err := paymentintent.Cancel(intentID, cancelParams); err != nil {
			return fmt.Errorf("cancel payment intent %s: %w", intentID, err)
		}
	}
	return nil
}
