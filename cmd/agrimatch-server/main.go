package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dannymikay/agrimatch-go/internal/adapters/grading"
	"github.com/dannymikay/agrimatch-go/internal/adapters/httpapi"
	"github.com/dannymikay/agrimatch-go/internal/adapters/market"
	stripeadapter "github.com/dannymikay/agrimatch-go/internal/adapters/payments"
	"github.com/dannymikay/agrimatch-go/internal/adapters/persistence"
	"github.com/dannymikay/agrimatch-go/internal/adapters/routing"
	"github.com/dannymikay/agrimatch-go/internal/application/common"
	logisticscommands "github.com/dannymikay/agrimatch-go/internal/application/logistics/commands"
	logisticsqueries "github.com/dannymikay/agrimatch-go/internal/application/logistics/queries"
	"github.com/dannymikay/agrimatch-go/internal/application/monitor"
	ordercommands "github.com/dannymikay/agrimatch-go/internal/application/orders/commands"
	orderqueries "github.com/dannymikay/agrimatch-go/internal/application/orders/queries"
	"github.com/dannymikay/agrimatch-go/internal/application/payments"
	paymentcommands "github.com/dannymikay/agrimatch-go/internal/application/payments/commands"
	verifycommands "github.com/dannymikay/agrimatch-go/internal/application/verify/commands"
	"github.com/dannymikay/agrimatch-go/internal/domain/escrow"
	"github.com/dannymikay/agrimatch-go/internal/domain/shared"
	"github.com/dannymikay/agrimatch-go/internal/events"
	"github.com/dannymikay/agrimatch-go/internal/infrastructure/config"
	"github.com/dannymikay/agrimatch-go/internal/infrastructure/database"
	"github.com/dannymikay/agrimatch-go/internal/infrastructure/logging"
	"github.com/dannymikay/agrimatch-go/internal/infrastructure/metrics"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "agrimatch-server",
		Short:         "AgriMatch marketplace backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the API server and background monitors",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(configPath)
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrate(configPath)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func migrate(configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close(db)

	if err := database.AutoMigrate(db); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	fmt.Println("migrations applied")
	return nil
}

func serve(configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close(db)

	if err := database.AutoMigrate(db); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	logger.Info("database ready", zap.String("type", cfg.Database.Type))

	clock := shared.NewRealClock()

	// Persistence
	orderRepo := persistence.NewGormOrderRepository(db)
	bidRepo := persistence.NewGormBidRepository(db)
	escrowRepo := persistence.NewGormEscrowRepository(db)
	assignmentRepo := persistence.NewGormAssignmentRepository(db)
	farmerRepo := persistence.NewGormFarmerRepository(db)
	buyerRepo := persistence.NewGormBuyerRepository(db)
	middlemanRepo := persistence.NewGormMiddlemanRepository(db)
	auditRepo := persistence.NewGormAuditRepository(db)
	webhookStore := persistence.NewGormWebhookEventStore(db, clock)
	matcher := persistence.NewGormSpatialMatcher(db)
	tx := persistence.NewGormTxManager(db)

	// Outbound adapters
	var processor escrow.PaymentProcessor
	if !cfg.Payments.DemoMode {
		processor = stripeadapter.NewStripeProcessor(cfg.Payments.StripeSecretKey, cfg.Payments.Currency)
		logger.Info("stripe escrow enabled", zap.String("currency", cfg.Payments.Currency))
	} else {
		logger.Info("escrow running in demo mode, no real payments")
	}
	escrowSvc := payments.NewEscrowService(escrowRepo, processor, clock, cfg.Payments.DemoMode)

	routeOracle := routing.NewOpenRouteClient(cfg.Routing.ORSAPIKey, cfg.Routing.BaseURL)
	grader := grading.NewHeuristicGrader(cfg.Grading.Endpoint)
	priceOracle := market.NewPriceOracle(cfg.Market.Endpoint)

	// Event fabric and metrics
	hub := events.NewHub(logger)
	m := metrics.New(prometheus.DefaultRegisterer)

	// Mediator wiring
	med := common.NewMediator()

	if err := common.RegisterHandler[*ordercommands.CreateOrderCommand](med,
		ordercommands.NewCreateOrderHandler(orderRepo, auditRepo, grader, tx, clock)); err != nil {
		return fmt.Errorf("failed to register CreateOrder handler: %w", err)
	}
	if err := common.RegisterHandler[*ordercommands.GradeListingCommand](med,
		ordercommands.NewGradeListingHandler(orderRepo, auditRepo, grader, tx, clock)); err != nil {
		return fmt.Errorf("failed to register GradeListing handler: %w", err)
	}
	if err := common.RegisterHandler[*ordercommands.SubmitBidCommand](med,
		ordercommands.NewSubmitBidHandler(orderRepo, bidRepo, auditRepo, tx, hub, clock)); err != nil {
		return fmt.Errorf("failed to register SubmitBid handler: %w", err)
	}
	if err := common.RegisterHandler[*ordercommands.AcceptBidCommand](med,
		ordercommands.NewAcceptBidHandler(orderRepo, bidRepo, auditRepo, escrowSvc, tx, hub, clock)); err != nil {
		return fmt.Errorf("failed to register AcceptBid handler: %w", err)
	}
	if err := common.RegisterHandler[*ordercommands.RejectBidCommand](med,
		ordercommands.NewRejectBidHandler(orderRepo, bidRepo, tx, clock)); err != nil {
		return fmt.Errorf("failed to register RejectBid handler: %w", err)
	}
	if err := common.RegisterHandler[*ordercommands.WithdrawBidCommand](med,
		ordercommands.NewWithdrawBidHandler(bidRepo, tx, clock)); err != nil {
		return fmt.Errorf("failed to register WithdrawBid handler: %w", err)
	}
	if err := common.RegisterHandler[*ordercommands.DeleteOrderCommand](med,
		ordercommands.NewDeleteOrderHandler(orderRepo, tx)); err != nil {
		return fmt.Errorf("failed to register DeleteOrder handler: %w", err)
	}
	if err := common.RegisterHandler[*ordercommands.RollbackToListedCommand](med,
		ordercommands.NewRollbackToListedHandler(orderRepo, bidRepo, auditRepo, escrowSvc, tx, hub, clock)); err != nil {
		return fmt.Errorf("failed to register RollbackToListed handler: %w", err)
	}

	if err := common.RegisterHandler[*orderqueries.GetOrderQuery](med,
		orderqueries.NewGetOrderHandler(orderRepo, escrowRepo, priceOracle)); err != nil {
		return fmt.Errorf("failed to register GetOrder handler: %w", err)
	}
	if err := common.RegisterHandler[*orderqueries.ListOrdersQuery](med,
		orderqueries.NewListOrdersHandler(orderRepo)); err != nil {
		return fmt.Errorf("failed to register ListOrders handler: %w", err)
	}
	if err := common.RegisterHandler[*orderqueries.ListBidsQuery](med,
		orderqueries.NewListBidsHandler(orderRepo, bidRepo)); err != nil {
		return fmt.Errorf("failed to register ListBids handler: %w", err)
	}

	if err := common.RegisterHandler[*paymentcommands.PaymentSucceededCommand](med,
		paymentcommands.NewPaymentSucceededHandler(escrowSvc, webhookStore, auditRepo, tx, hub, clock)); err != nil {
		return fmt.Errorf("failed to register PaymentSucceeded handler: %w", err)
	}

	if err := common.RegisterHandler[*logisticscommands.OfferAssignmentCommand](med,
		logisticscommands.NewOfferAssignmentHandler(orderRepo, assignmentRepo, middlemanRepo, tx, hub, clock)); err != nil {
		return fmt.Errorf("failed to register OfferAssignment handler: %w", err)
	}
	if err := common.RegisterHandler[*logisticscommands.AcceptAssignmentCommand](med,
		logisticscommands.NewAcceptAssignmentHandler(orderRepo, assignmentRepo, middlemanRepo, auditRepo, tx, hub, clock)); err != nil {
		return fmt.Errorf("failed to register AcceptAssignment handler: %w", err)
	}
	if err := common.RegisterHandler[*logisticscommands.RejectAssignmentCommand](med,
		logisticscommands.NewRejectAssignmentHandler(assignmentRepo, tx, clock)); err != nil {
		return fmt.Errorf("failed to register RejectAssignment handler: %w", err)
	}
	if err := common.RegisterHandler[*logisticscommands.RecordGPSCommand](med,
		logisticscommands.NewRecordGPSHandler(assignmentRepo, middlemanRepo, tx, clock)); err != nil {
		return fmt.Errorf("failed to register RecordGPS handler: %w", err)
	}
	if err := common.RegisterHandler[*logisticsqueries.SearchMiddlemenQuery](med,
		logisticsqueries.NewSearchMiddlemenHandler(orderRepo, farmerRepo, buyerRepo, matcher)); err != nil {
		return fmt.Errorf("failed to register SearchMiddlemen handler: %w", err)
	}
	if err := common.RegisterHandler[*logisticsqueries.RouteInfoQuery](med,
		logisticsqueries.NewRouteInfoHandler(routeOracle)); err != nil {
		return fmt.Errorf("failed to register RouteInfo handler: %w", err)
	}

	if err := common.RegisterHandler[*verifycommands.VerifyPickupCommand](med,
		verifycommands.NewVerifyPickupHandler(orderRepo, assignmentRepo, farmerRepo, escrowSvc, auditRepo, tx, hub, clock)); err != nil {
		return fmt.Errorf("failed to register VerifyPickup handler: %w", err)
	}
	if err := common.RegisterHandler[*verifycommands.VerifyDeliveryCommand](med,
		verifycommands.NewVerifyDeliveryHandler(orderRepo, assignmentRepo, farmerRepo, buyerRepo, middlemanRepo,
			escrowSvc, auditRepo, tx, hub, clock)); err != nil {
		return fmt.Errorf("failed to register VerifyDelivery handler: %w", err)
	}
	if err := common.RegisterHandler[*verifycommands.RecordDisputeCommand](med,
		verifycommands.NewRecordDisputeHandler(orderRepo, assignmentRepo, buyerRepo, auditRepo, tx, clock)); err != nil {
		return fmt.Errorf("failed to register RecordDispute handler: %w", err)
	}

	// HTTP surface
	auth := httpapi.NewAuthenticator(cfg.Server.JWTSecret)
	server := httpapi.NewServer(&cfg.Server, logger, m, auth,
		[]httpapi.Registrar{
			httpapi.NewWebhooksHandler(med, cfg.Payments.StripeWebhookSecret, logger),
		},
		[]httpapi.Registrar{
			httpapi.NewOrdersHandler(med, auditRepo),
			httpapi.NewBidsHandler(med),
			httpapi.NewLogisticsHandler(med),
			httpapi.NewVerifyHandler(med),
		},
		[]httpapi.Registrar{
			httpapi.NewWSHandler(med, hub, m, logger),
		})

	// Background sweeps
	timeoutMon := monitor.NewTimeoutMonitor(orderRepo, med, clock, logger).
		Configure(cfg.Monitors.SearchWindow, cfg.Monitors.TimeoutInterval)
	heartbeatMon := monitor.NewHeartbeatMonitor(assignmentRepo, tx, hub, clock, logger).
		Configure(cfg.Monitors.SilenceWindow, cfg.Monitors.HeartbeatInterval)
	scheduler := monitor.NewScheduler(timeoutMon, heartbeatMon)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return scheduler.Run(gctx)
	})
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		return server.Shutdown(context.Background())
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}
