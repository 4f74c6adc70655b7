package steps

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cucumber/godog"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dannymikay/agrimatch-go/internal/adapters/persistence"
	"github.com/dannymikay/agrimatch-go/internal/application/common"
	logisticscommands "github.com/dannymikay/agrimatch-go/internal/application/logistics/commands"
	"github.com/dannymikay/agrimatch-go/internal/application/monitor"
	ordercommands "github.com/dannymikay/agrimatch-go/internal/application/orders/commands"
	"github.com/dannymikay/agrimatch-go/internal/application/payments"
	paymentcommands "github.com/dannymikay/agrimatch-go/internal/application/payments/commands"
	verifycommands "github.com/dannymikay/agrimatch-go/internal/application/verify/commands"
	"github.com/dannymikay/agrimatch-go/internal/domain/audit"
	"github.com/dannymikay/agrimatch-go/internal/domain/escrow"
	"github.com/dannymikay/agrimatch-go/internal/domain/logistics"
	"github.com/dannymikay/agrimatch-go/internal/domain/order"
	"github.com/dannymikay/agrimatch-go/internal/domain/party"
	"github.com/dannymikay/agrimatch-go/internal/domain/shared"
	"github.com/dannymikay/agrimatch-go/internal/infrastructure/database"
	"github.com/dannymikay/agrimatch-go/test/helpers"
)

// Nairobi pickup, Thika dropoff, roughly 40 km apart
var (
	farmerLocation = shared.GeoPoint{Latitude: -1.2921, Longitude: 36.8219}
	buyerLocation  = shared.GeoPoint{Latitude: -1.0333, Longitude: 37.0693}
	corridorPoint  = shared.GeoPoint{Latitude: -1.16, Longitude: 36.95}
)

type lifecycleContext struct {
	db    *gorm.DB
	clock *shared.MockClock
	pub   *helpers.RecordingPublisher

	orders      order.Repository
	bids        order.BidRepository
	escrows     escrow.Repository
	assignments logistics.AssignmentRepository
	audits      audit.Repository

	submitBid      *ordercommands.SubmitBidHandler
	acceptBid      *ordercommands.AcceptBidHandler
	paymentOK      *paymentcommands.PaymentSucceededHandler
	offer          *logisticscommands.OfferAssignmentHandler
	acceptOffer    *logisticscommands.AcceptAssignmentHandler
	verifyPickup   *verifycommands.VerifyPickupHandler
	verifyDelivery *verifycommands.VerifyDeliveryHandler
	timeoutMonitor *monitor.TimeoutMonitor

	farmer    *party.Farmer
	buyer     *party.Buyer
	middleman *party.Middleman
	order     *order.Order
	bid       *order.Bid

	pickupToken   string
	deliveryToken string
	eventSeq      int
	err           error
}

func (ctx *lifecycleContext) reset() {
	db, err := database.NewTestConnection()
	if err != nil {
		panic(fmt.Errorf("failed to open test database: %w", err))
	}
	ctx.db = db
	ctx.clock = shared.NewMockClock(helpers.FixedTime)
	ctx.pub = &helpers.RecordingPublisher{}

	ctx.orders = persistence.NewGormOrderRepository(db)
	ctx.bids = persistence.NewGormBidRepository(db)
	ctx.escrows = persistence.NewGormEscrowRepository(db)
	ctx.assignments = persistence.NewGormAssignmentRepository(db)
	farmers := persistence.NewGormFarmerRepository(db)
	buyers := persistence.NewGormBuyerRepository(db)
	middlemen := persistence.NewGormMiddlemanRepository(db)
	audits := persistence.NewGormAuditRepository(db)
	ctx.audits = audits
	webhooks := persistence.NewGormWebhookEventStore(db, ctx.clock)
	tx := persistence.NewGormTxManager(db)
	escrowSvc := payments.NewEscrowService(ctx.escrows, nil, ctx.clock, true)

	ctx.submitBid = ordercommands.NewSubmitBidHandler(ctx.orders, ctx.bids, audits, tx, ctx.pub, ctx.clock)
	ctx.acceptBid = ordercommands.NewAcceptBidHandler(ctx.orders, ctx.bids, audits, escrowSvc, tx, ctx.pub, ctx.clock)
	ctx.paymentOK = paymentcommands.NewPaymentSucceededHandler(escrowSvc, webhooks, audits, tx, ctx.pub, ctx.clock)
	ctx.offer = logisticscommands.NewOfferAssignmentHandler(ctx.orders, ctx.assignments, middlemen, tx, ctx.pub, ctx.clock)
	ctx.acceptOffer = logisticscommands.NewAcceptAssignmentHandler(ctx.orders, ctx.assignments, middlemen, audits, tx, ctx.pub, ctx.clock)
	ctx.verifyPickup = verifycommands.NewVerifyPickupHandler(ctx.orders, ctx.assignments, farmers, escrowSvc, audits, tx, ctx.pub, ctx.clock)
	ctx.verifyDelivery = verifycommands.NewVerifyDeliveryHandler(ctx.orders, ctx.assignments, farmers, buyers, middlemen, escrowSvc, audits, tx, ctx.pub, ctx.clock)

	rollback := ordercommands.NewRollbackToListedHandler(ctx.orders, ctx.bids, audits, escrowSvc, tx, ctx.pub, ctx.clock)
	med := common.NewMediator()
	if err := common.RegisterHandler[*ordercommands.RollbackToListedCommand](med, rollback); err != nil {
		panic(fmt.Errorf("failed to register rollback handler: %w", err))
	}
	ctx.timeoutMonitor = monitor.NewTimeoutMonitor(ctx.orders, med, ctx.clock, nil)

	ctx.farmer = nil
	ctx.buyer = nil
	ctx.middleman = nil
	ctx.order = nil
	ctx.bid = nil
	ctx.pickupToken = ""
	ctx.deliveryToken = ""
	ctx.eventSeq = 0
	ctx.err = nil
}

// Given steps

func (ctx *lifecycleContext) aFarmerWithAListedOrder(volumeKg int, pricePerKg float64) error {
	loc := farmerLocation
	ctx.farmer = &party.Farmer{
		ID:              uuid.New(),
		Name:            "Wanjiku",
		Phone:           "+254700000001",
		Location:        &loc,
		StripeAccountID: "acct_farmer_bdd",
		CreatedAt:       ctx.clock.Now(),
		UpdatedAt:       ctx.clock.Now(),
	}
	if err := persistence.NewGormFarmerRepository(ctx.db).Create(context.Background(), ctx.farmer); err != nil {
		return fmt.Errorf("failed to create farmer: %w", err)
	}

	o, err := order.NewOrder(ctx.farmer.ID, "tomato", "roma", float64(volumeKg), pricePerKg, false, nil, ctx.clock)
	if err != nil {
		return err
	}
	if err := ctx.orders.Create(context.Background(), o); err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	ctx.order = o
	return nil
}

func (ctx *lifecycleContext) aBuyerWithAnAvailableMiddleman(_ int) error {
	buyerLoc := buyerLocation
	ctx.buyer = &party.Buyer{
		ID:               uuid.New(),
		Name:             "Mama Mboga Wholesale",
		Phone:            "+254700000002",
		DeliveryLocation: &buyerLoc,
		StripeCustomerID: "cus_buyer_bdd",
		CreatedAt:        ctx.clock.Now(),
		UpdatedAt:        ctx.clock.Now(),
	}
	if err := persistence.NewGormBuyerRepository(ctx.db).Create(context.Background(), ctx.buyer); err != nil {
		return fmt.Errorf("failed to create buyer: %w", err)
	}

	truckLoc := corridorPoint
	ctx.middleman = &party.Middleman{
		ID:              uuid.New(),
		Name:            "Kamau Transport",
		Phone:           "+254700000003",
		CurrentLocation: &truckLoc,
		TruckCapacityKg: 1000,
		TruckPlate:      "KDA 123X",
		TruckType:       party.TruckDryVan,
		ServiceRadiusKm: 100,
		OnTimeRating:    4.5,
		IsAvailable:     true,
		StripeAccountID: "acct_middleman_bdd",
		CreatedAt:       ctx.clock.Now(),
		UpdatedAt:       ctx.clock.Now(),
	}
	if err := persistence.NewGormMiddlemanRepository(ctx.db).Create(context.Background(), ctx.middleman); err != nil {
		return fmt.Errorf("failed to create middleman: %w", err)
	}
	return nil
}

// When steps

func (ctx *lifecycleContext) theBuyerBids(pricePerKg float64, volumeKg int) error {
	resp, err := ctx.submitBid.Handle(context.Background(), &ordercommands.SubmitBidCommand{
		OrderID:    ctx.order.ID,
		BuyerID:    ctx.buyer.ID,
		PricePerKg: pricePerKg,
		VolumeKg:   float64(volumeKg),
	})
	if err != nil {
		return err
	}
	ctx.bid = resp.(*ordercommands.SubmitBidResponse).Bid
	return nil
}

func (ctx *lifecycleContext) theFarmerAcceptsTheBid() error {
	resp, err := ctx.acceptBid.Handle(context.Background(), &ordercommands.AcceptBidCommand{
		BidID:    ctx.bid.ID,
		FarmerID: ctx.farmer.ID,
	})
	if err != nil {
		return err
	}
	accepted := resp.(*ordercommands.AcceptBidResponse)
	ctx.pickupToken = accepted.PickupQRToken
	ctx.deliveryToken = accepted.DeliveryQRToken
	return nil
}

func (ctx *lifecycleContext) theBuyersPaymentSucceeds() error {
	e, err := ctx.escrows.FindByOrderID(context.Background(), ctx.order.ID)
	if err != nil {
		return err
	}
	ctx.eventSeq++
	_, err = ctx.paymentOK.Handle(context.Background(), &paymentcommands.PaymentSucceededCommand{
		EventID:  fmt.Sprintf("evt_bdd_%d", ctx.eventSeq),
		IntentID: e.PaymentIntentID,
	})
	return err
}

func (ctx *lifecycleContext) theMiddlemanAcceptsTheTransportAssignment() error {
	resp, err := ctx.offer.Handle(context.Background(), &logisticscommands.OfferAssignmentCommand{
		OrderID:     ctx.order.ID,
		MiddlemanID: ctx.middleman.ID,
	})
	if err != nil {
		return err
	}
	a := resp.(*logisticscommands.OfferAssignmentResponse).Assignment
	_, err = ctx.acceptOffer.Handle(context.Background(), &logisticscommands.AcceptAssignmentCommand{
		AssignmentID: a.ID,
		MiddlemanID:  ctx.middleman.ID,
	})
	return err
}

func (ctx *lifecycleContext) theMiddlemanScansThePickupQRCode() error {
	_, ctx.err = ctx.verifyPickup.Handle(context.Background(), &verifycommands.VerifyPickupCommand{
		OrderID:     ctx.order.ID,
		MiddlemanID: ctx.middleman.ID,
		QRToken:     ctx.pickupToken,
	})
	return nil
}

func (ctx *lifecycleContext) theMiddlemanScansAForgedPickupQRCode() error {
	_, ctx.err = ctx.verifyPickup.Handle(context.Background(), &verifycommands.VerifyPickupCommand{
		OrderID:     ctx.order.ID,
		MiddlemanID: ctx.middleman.ID,
		QRToken:     "not-the-real-token",
	})
	return nil
}

func (ctx *lifecycleContext) theMiddlemanScansTheDeliveryQRCodeAtTheBuyer() error {
	_, ctx.err = ctx.verifyDelivery.Handle(context.Background(), &verifycommands.VerifyDeliveryCommand{
		OrderID:     ctx.order.ID,
		MiddlemanID: ctx.middleman.ID,
		QRToken:     ctx.deliveryToken,
		Latitude:    ctx.buyer.DeliveryLocation.Latitude,
		Longitude:   ctx.buyer.DeliveryLocation.Longitude,
	})
	return nil
}

func (ctx *lifecycleContext) theMiddlemanScansTheDeliveryQRCodeKmAway(km int) error {
	// One degree of latitude is roughly 111 km
	offset := float64(km) / 111.0
	_, ctx.err = ctx.verifyDelivery.Handle(context.Background(), &verifycommands.VerifyDeliveryCommand{
		OrderID:     ctx.order.ID,
		MiddlemanID: ctx.middleman.ID,
		QRToken:     ctx.deliveryToken,
		Latitude:    ctx.buyer.DeliveryLocation.Latitude + offset,
		Longitude:   ctx.buyer.DeliveryLocation.Longitude,
	})
	return nil
}

func (ctx *lifecycleContext) hoursPass(hours int) error {
	ctx.clock.Advance(time.Duration(hours) * time.Hour)
	return nil
}

func (ctx *lifecycleContext) theTimeoutSweepRuns() error {
	_, err := ctx.timeoutMonitor.Sweep(context.Background())
	return err
}

// Then steps

func (ctx *lifecycleContext) reloadOrder() (*order.Order, error) {
	return ctx.orders.FindByID(context.Background(), ctx.order.ID)
}

func (ctx *lifecycleContext) reloadEscrow() (*escrow.Escrow, error) {
	return ctx.escrows.FindByOrderID(context.Background(), ctx.order.ID)
}

func (ctx *lifecycleContext) theOrderEntersLogisticsSearchAwaitingFunds() error {
	o, err := ctx.reloadOrder()
	if err != nil {
		return err
	}
	if o.Status != order.StatusLogisticsSearch {
		return fmt.Errorf("expected LOGISTICS_SEARCH but order is %s", o.Status)
	}
	e, err := ctx.reloadEscrow()
	if err != nil {
		return err
	}
	if e.Status != escrow.StatusWaitingFunds && e.Status != escrow.StatusFundsHeld {
		return fmt.Errorf("expected escrow waiting or holding funds but it is %s", e.Status)
	}
	return nil
}

func (ctx *lifecycleContext) theEscrowHoldsCents(cents int) error {
	e, err := ctx.reloadEscrow()
	if err != nil {
		return err
	}
	if e.Status != escrow.StatusFundsHeld {
		return fmt.Errorf("expected FUNDS_HELD but escrow is %s", e.Status)
	}
	if e.TotalAmountCents != int64(cents) {
		return fmt.Errorf("expected %d cents held but escrow totals %d", cents, e.TotalAmountCents)
	}
	return nil
}

func (ctx *lifecycleContext) theOrderIsInTransit() error {
	o, err := ctx.reloadOrder()
	if err != nil {
		return err
	}
	if o.Status != order.StatusInTransit {
		return fmt.Errorf("expected IN_TRANSIT but order is %s", o.Status)
	}
	return nil
}

func (ctx *lifecycleContext) theOrderIsSettled() error {
	if ctx.err != nil {
		return fmt.Errorf("expected settlement but got error: %v", ctx.err)
	}
	o, err := ctx.reloadOrder()
	if err != nil {
		return err
	}
	if o.Status != order.StatusSettled {
		return fmt.Errorf("expected SETTLED but order is %s", o.Status)
	}
	return nil
}

func (ctx *lifecycleContext) theFarmerHasReceivedCents(cents int) error {
	e, err := ctx.reloadEscrow()
	if err != nil {
		return err
	}
	if e.FarmerReleasedCents != int64(cents) {
		return fmt.Errorf("expected farmer to have received %d cents but got %d", cents, e.FarmerReleasedCents)
	}
	return nil
}

func (ctx *lifecycleContext) theMiddlemanHasReceivedCents(cents int) error {
	e, err := ctx.reloadEscrow()
	if err != nil {
		return err
	}
	if e.MiddlemanReleasedCents != int64(cents) {
		return fmt.Errorf("expected middleman to have received %d cents but got %d", cents, e.MiddlemanReleasedCents)
	}
	return nil
}

func (ctx *lifecycleContext) theDeliveryProofRecordsTheScanTheGeofence(side string) error {
	trail, err := ctx.audits.ListByOrder(context.Background(), ctx.order.ID)
	if err != nil {
		return err
	}
	for i := len(trail) - 1; i >= 0; i-- {
		if trail[i].Reason != "delivery_verified" {
			continue
		}
		within, ok := trail[i].ExtraData["within_threshold"].(bool)
		if !ok {
			return fmt.Errorf("delivery audit entry carries no proximity verdict")
		}
		if within != (side == "inside") {
			return fmt.Errorf("expected a scan %s the geofence but within_threshold is %v", side, within)
		}
		return nil
	}
	return fmt.Errorf("no delivery_verified entry in the audit trail")
}

func (ctx *lifecycleContext) theVerificationFailsWith(substring string) error {
	if ctx.err == nil {
		return fmt.Errorf("expected verification to fail with %q but it succeeded", substring)
	}
	if !strings.Contains(strings.ToLower(ctx.err.Error()), strings.ToLower(substring)) {
		return fmt.Errorf("expected error containing %q but got %q", substring, ctx.err.Error())
	}
	return nil
}

func (ctx *lifecycleContext) theOrderIsListedAgainWithKgAvailable(volumeKg int) error {
	o, err := ctx.reloadOrder()
	if err != nil {
		return err
	}
	if o.Status != order.StatusListed {
		return fmt.Errorf("expected LISTED but order is %s", o.Status)
	}
	if o.AvailableVolumeKg != float64(volumeKg) {
		return fmt.Errorf("expected %d kg available but got %.0f", volumeKg, o.AvailableVolumeKg)
	}
	return nil
}

func (ctx *lifecycleContext) theEscrowIsCancelledWithAFullRefund() error {
	e, err := ctx.reloadEscrow()
	if err != nil {
		return err
	}
	if e.Status != escrow.StatusCancelled {
		return fmt.Errorf("expected CANCELLED but escrow is %s", e.Status)
	}
	if e.RefundedCents+e.FarmerReleasedCents != e.TotalAmountCents {
		return fmt.Errorf("expected refunded + released to equal %d but got %d",
			e.TotalAmountCents, e.RefundedCents+e.FarmerReleasedCents)
	}
	return nil
}

// Register steps

func InitializeLifecycleScenario(sc *godog.ScenarioContext) {
	lifecycleCtx := &lifecycleContext{}

	sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		lifecycleCtx.reset()
		return ctx, nil
	})

	sc.Step(`^a farmer with a listed order of (\d+) kg at ([0-9.]+) per kg$`, lifecycleCtx.aFarmerWithAListedOrder)
	sc.Step(`^a buyer (\d+) km away with an available middleman$`, lifecycleCtx.aBuyerWithAnAvailableMiddleman)
	sc.Step(`^the buyer bids ([0-9.]+) per kg for (\d+) kg$`, lifecycleCtx.theBuyerBids)
	sc.Step(`^the farmer accepts the bid$`, lifecycleCtx.theFarmerAcceptsTheBid)
	sc.Step(`^the buyer's payment succeeds$`, lifecycleCtx.theBuyersPaymentSucceeds)
	sc.Step(`^the middleman accepts the transport assignment$`, lifecycleCtx.theMiddlemanAcceptsTheTransportAssignment)
	sc.Step(`^the middleman scans the pickup QR code$`, lifecycleCtx.theMiddlemanScansThePickupQRCode)
	sc.Step(`^the middleman scans a forged pickup QR code$`, lifecycleCtx.theMiddlemanScansAForgedPickupQRCode)
	sc.Step(`^the middleman scans the delivery QR code at the buyer's location$`, lifecycleCtx.theMiddlemanScansTheDeliveryQRCodeAtTheBuyer)
	sc.Step(`^the middleman scans the delivery QR code (\d+) km from the buyer$`, lifecycleCtx.theMiddlemanScansTheDeliveryQRCodeKmAway)
	sc.Step(`^(\d+) hours pass$`, lifecycleCtx.hoursPass)
	sc.Step(`^the timeout sweep runs$`, lifecycleCtx.theTimeoutSweepRuns)
	sc.Step(`^the order enters logistics search with an escrow awaiting funds$`, lifecycleCtx.theOrderEntersLogisticsSearchAwaitingFunds)
	sc.Step(`^the escrow holds (\d+) cents$`, lifecycleCtx.theEscrowHoldsCents)
	sc.Step(`^the order is in transit$`, lifecycleCtx.theOrderIsInTransit)
	sc.Step(`^the order is settled$`, lifecycleCtx.theOrderIsSettled)
	sc.Step(`^the farmer has received (\d+) cents$`, lifecycleCtx.theFarmerHasReceivedCents)
	sc.Step(`^the middleman has received (\d+) cents$`, lifecycleCtx.theMiddlemanHasReceivedCents)
	sc.Step(`^the verification fails with "([^"]*)"$`, lifecycleCtx.theVerificationFailsWith)
	sc.Step(`^the delivery proof records the scan (inside|outside) the geofence$`, lifecycleCtx.theDeliveryProofRecordsTheScanTheGeofence)
	sc.Step(`^the order is listed again with (\d+) kg available$`, lifecycleCtx.theOrderIsListedAgainWithKgAvailable)
	sc.Step(`^the escrow is cancelled with a full refund$`, lifecycleCtx.theEscrowIsCancelledWithAFullRefund)
}
