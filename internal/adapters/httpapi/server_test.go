package httpapi

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dannymikay/agrimatch-go/internal/application/common"
	ordercommands "github.com/dannymikay/agrimatch-go/internal/application/orders/commands"
	orderqueries "github.com/dannymikay/agrimatch-go/internal/application/orders/queries"
	"github.com/dannymikay/agrimatch-go/internal/domain/order"
	"github.com/dannymikay/agrimatch-go/internal/domain/party"
	"github.com/dannymikay/agrimatch-go/internal/domain/shared"
	"github.com/dannymikay/agrimatch-go/internal/events"
	"github.com/dannymikay/agrimatch-go/internal/infrastructure/config"
	"github.com/dannymikay/agrimatch-go/internal/infrastructure/metrics"
	"github.com/dannymikay/agrimatch-go/test/helpers"
)

const testJWTSecret = "route-surface-test-secret"

func newRouteTestServer(t *testing.T, med common.Mediator) *Server {
	t.Helper()

	cfg := &config.ServerConfig{Host: "127.0.0.1", Port: 0, JWTSecret: testJWTSecret}
	m := metrics.New(prometheus.NewRegistry())
	logger := zap.NewNop()

	return NewServer(cfg, logger, m, NewAuthenticator(cfg.JWTSecret),
		[]Registrar{NewWebhooksHandler(med, "", logger)},
		[]Registrar{
			NewOrdersHandler(med, nil),
			NewBidsHandler(med),
			NewLogisticsHandler(med),
			NewVerifyHandler(med),
		},
		[]Registrar{NewWSHandler(med, events.NewHub(logger), m, logger)},
	)
}

func signedToken(t *testing.T, role string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  uuid.New().String(),
		"role": role,
	}).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return token
}

func TestServer_RouteSurface(t *testing.T) {
	// Arrange
	s := newRouteTestServer(t, common.NewMediator())
	router, ok := s.httpServer.Handler.(*mux.Router)
	require.True(t, ok)

	// Act: collect every mounted route as "METHOD template"
	mounted := map[string]bool{}
	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		tpl, err := route.GetPathTemplate()
		if err != nil {
			return nil
		}
		methods, err := route.GetMethods()
		if err != nil {
			mounted[tpl] = true
			return nil
		}
		for _, method := range methods {
			mounted[method+" "+tpl] = true
		}
		return nil
	})
	require.NoError(t, err)

	// Assert
	for _, want := range []string{
		"POST /api/v1/orders",
		"GET /api/v1/orders",
		"GET /api/v1/orders/{order_id}",
		"DELETE /api/v1/orders/{order_id}",
		"POST /api/v1/orders/{order_id}/upload-image",
		"GET /api/v1/orders/{order_id}/audit",
		"POST /api/v1/bids",
		"GET /api/v1/bids/order/{order_id}",
		"POST /api/v1/bids/{bid_id}/accept",
		"POST /api/v1/bids/{bid_id}/reject",
		"DELETE /api/v1/bids/{bid_id}",
		"GET /api/v1/logistics/search/{order_id}",
		"POST /api/v1/logistics/offer/{order_id}",
		"POST /api/v1/logistics/accept/{assignment_id}",
		"POST /api/v1/logistics/reject/{assignment_id}",
		"GET /api/v1/logistics/route",
		"POST /api/v1/verify/pickup",
		"POST /api/v1/verify/delivery",
		"POST /api/v1/verify/dispute",
		"POST /api/v1/webhooks/stripe",
		"/ws/orders/{order_id}",
		"/ws/middlemen/me/location",
	} {
		assert.True(t, mounted[want], "expected route %q to be mounted", want)
	}

	// Websocket upgrades stay top-level, never under the REST prefix
	assert.False(t, mounted["/api/v1/ws/orders/{order_id}"])
}

type listOrdersStub struct{}

func (listOrdersStub) Handle(context.Context, common.Request) (common.Response, error) {
	return &orderqueries.ListOrdersResponse{}, nil
}

type createOrderStub struct{}

func (createOrderStub) Handle(_ context.Context, req common.Request) (common.Response, error) {
	cmd, ok := req.(*ordercommands.CreateOrderCommand)
	if !ok {
		return nil, fmt.Errorf("invalid request type")
	}
	o, err := order.NewOrder(cmd.FarmerID, cmd.CropType, cmd.Variety,
		cmd.TotalVolumeKg, cmd.AskingPricePerKg, cmd.RequiresColdChain, cmd.HarvestDate,
		shared.NewMockClock(helpers.FixedTime))
	if err != nil {
		return nil, err
	}
	return &ordercommands.CreateOrderResponse{Order: o}, nil
}

func TestServer_MarketplaceReadsSkipAuth(t *testing.T) {
	// Arrange
	med := common.NewMediator()
	require.NoError(t, common.RegisterHandler[*orderqueries.ListOrdersQuery](med, listOrdersStub{}))
	require.NoError(t, common.RegisterHandler[*ordercommands.CreateOrderCommand](med, createOrderStub{}))
	s := newRouteTestServer(t, med)
	router := s.httpServer.Handler

	// Act: anonymous browse
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil))

	// Assert
	assert.Equal(t, http.StatusOK, rec.Code)

	// Writes still demand a bearer token
	body := `{"crop_type":"tomato","variety":"roma","total_volume_kg":500,"asking_price_per_kg":1.8}`
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/orders", bytes.NewBufferString(body)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", bytes.NewBufferString(body))
	req.Header.Set("Authorization", "Bearer "+signedToken(t, party.RoleFarmer))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code)
}
