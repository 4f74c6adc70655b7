package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/dannymikay/agrimatch-go/internal/application/common"
	logisticscommands "github.com/dannymikay/agrimatch-go/internal/application/logistics/commands"
	orderqueries "github.com/dannymikay/agrimatch-go/internal/application/orders/queries"
	"github.com/dannymikay/agrimatch-go/internal/domain/party"
	"github.com/dannymikay/agrimatch-go/internal/domain/shared"
	"github.com/dannymikay/agrimatch-go/internal/events"
	"github.com/dannymikay/agrimatch-go/internal/infrastructure/metrics"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsReadLimit    = 4 << 10

	// gpsSampleEvery thins the inbound GPS stream before it hits the
	// database. Every frame is still rebroadcast to the order room; the
	// first one always persists so the silence alarm re-arms as soon as a
	// socket comes up.
	gpsSampleEvery = 10
)

// WSHandler upgrades websocket connections onto the event hub. Clients
// authenticate with the token query parameter since browsers cannot set
// headers on websocket upgrades.
type WSHandler struct {
	mediator common.Mediator
	hub      *events.Hub
	metrics  *metrics.Metrics
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new websocket handler
func NewWSHandler(mediator common.Mediator, hub *events.Hub, m *metrics.Metrics, logger *zap.Logger) *WSHandler {
	return &WSHandler{
		mediator: mediator,
		hub:      hub,
		metrics:  m,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Register mounts the websocket routes
func (h *WSHandler) Register(r *mux.Router) {
	r.HandleFunc("/ws/orders/{order_id}", h.orderRoom).Methods(http.MethodGet)
	r.HandleFunc("/ws/middlemen/me/location", h.locationStream).Methods(http.MethodGet)
}

// lockedConn serializes writes to one socket. Both the hub and the read loop
// write to the same connection, and gorilla conns allow one writer at a time.
type lockedConn struct {
	mu sync.Mutex
	c  *websocket.Conn
}

func (lc *lockedConn) WriteMessage(messageType int, data []byte) error {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return lc.c.WriteMessage(messageType, data)
}

func (lc *lockedConn) SetWriteDeadline(t time.Time) error {
	return lc.c.SetWriteDeadline(t)
}

func (lc *lockedConn) Close() error {
	return lc.c.Close()
}

func (lc *lockedConn) sendEvent(ev events.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	lc.mu.Lock()
	defer lc.mu.Unlock()
	_ = lc.c.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return lc.c.WriteMessage(websocket.TextMessage, data)
}

// clientFrame is the inbound message shape. PING asks for a PONG. Trackers
// send bare {latitude, longitude} objects with no type tag, so any frame
// carrying both coordinates counts as a GPS fix.
type clientFrame struct {
	Type      string   `json:"type"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

func (f *clientFrame) isGPS() bool {
	return f.Latitude != nil && f.Longitude != nil
}

// gpsIngest relays one middleman's location stream into an order room. Every
// fix is rebroadcast for live tracking; every gpsSampleEvery-th one also
// persists through the mediator, starting with the first.
type gpsIngest struct {
	mediator    common.Mediator
	hub         *events.Hub
	logger      *zap.Logger
	orderID     uuid.UUID
	middlemanID uuid.UUID
	frames      int
}

func (g *gpsIngest) ingest(ctx context.Context, lat, lon float64) {
	g.hub.Broadcast(g.orderID, events.NewLocationUpdate(g.orderID, g.middlemanID, lat, lon))

	g.frames++
	if (g.frames-1)%gpsSampleEvery != 0 {
		return
	}
	if _, err := g.mediator.Send(ctx, &logisticscommands.RecordGPSCommand{
		OrderID:     g.orderID,
		MiddlemanID: g.middlemanID,
		Latitude:    lat,
		Longitude:   lon,
	}); err != nil {
		g.logger.Warn("GPS fix rejected",
			zap.String("order_id", g.orderID.String()),
			zap.String("middleman_id", g.middlemanID.String()),
			zap.Error(err))
	}
}

func (h *WSHandler) orderRoom(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		respondError(w, r, shared.NewUnauthorizedError("missing bearer token"))
		return
	}
	orderID, err := pathUUID(r, "order_id")
	if err != nil {
		respondError(w, r, err)
		return
	}

	// Snapshot before upgrading so a missing order is still a clean 404
	snapResp, err := h.mediator.Send(r.Context(), &orderqueries.GetOrderQuery{OrderID: orderID})
	if err != nil {
		respondError(w, r, err)
		return
	}
	snapshot := orderSnapshot(snapResp.(*orderqueries.GetOrderResponse))

	raw, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	c := &lockedConn{c: raw}
	defer c.Close()

	h.metrics.WSConnections.Inc()
	defer h.metrics.WSConnections.Dec()

	if err := c.sendEvent(events.NewConnected(orderID, principal.Role, principal.ID)); err != nil {
		return
	}
	if err := c.sendEvent(events.NewStateSync(orderID, snapshot)); err != nil {
		return
	}

	subID := h.hub.Subscribe(orderID, c)
	defer h.hub.Unsubscribe(orderID, subID)

	raw.SetReadLimit(wsReadLimit)
	gps := &gpsIngest{
		mediator:    h.mediator,
		hub:         h.hub,
		logger:      h.logger,
		orderID:     orderID,
		middlemanID: principal.ID,
	}
	for {
		_, data, err := raw.ReadMessage()
		if err != nil {
			return
		}

		var frame clientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			continue
		}

		switch {
		case frame.isGPS():
			if principal.Role != party.RoleMiddleman {
				continue
			}
			gps.ingest(r.Context(), *frame.Latitude, *frame.Longitude)
		case frame.Type == "PING":
			if err := c.sendEvent(events.NewPong()); err != nil {
				return
			}
		}
	}
}

// locationStream is the middleman's upload socket for one delivery. Fixes
// arriving here fan out to the order room; assignment offers for the
// middleman are pushed down the same connection.
func (h *WSHandler) locationStream(w http.ResponseWriter, r *http.Request) {
	principal, err := requireRole(r, party.RoleMiddleman)
	if err != nil {
		respondError(w, r, err)
		return
	}
	orderID, err := uuid.Parse(r.URL.Query().Get("order_id"))
	if err != nil {
		respondError(w, r, shared.NewValidationError("order_id", "must be a valid UUID"))
		return
	}

	raw, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	c := &lockedConn{c: raw}
	defer c.Close()

	h.metrics.WSConnections.Inc()
	defer h.metrics.WSConnections.Dec()

	if err := c.sendEvent(events.NewConnected(orderID, principal.Role, principal.ID)); err != nil {
		return
	}

	subID := h.hub.SubscribeMiddleman(principal.ID, c)
	defer h.hub.UnsubscribeMiddleman(principal.ID, subID)

	raw.SetReadLimit(wsReadLimit)
	gps := &gpsIngest{
		mediator:    h.mediator,
		hub:         h.hub,
		logger:      h.logger,
		orderID:     orderID,
		middlemanID: principal.ID,
	}
	for {
		_, data, err := raw.ReadMessage()
		if err != nil {
			return
		}
		var frame clientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			continue
		}
		switch {
		case frame.isGPS():
			gps.ingest(r.Context(), *frame.Latitude, *frame.Longitude)
		case frame.Type == "PING":
			if err := c.sendEvent(events.NewPong()); err != nil {
				return
			}
		}
	}
}

// orderSnapshot flattens the read model into the STATE_SYNC payload
func orderSnapshot(resp *orderqueries.GetOrderResponse) map[string]any {
	o := resp.Order
	snapshot := map[string]any{
		"status":              string(o.Status),
		"crop_type":           o.CropType,
		"total_volume_kg":     o.TotalVolumeKg,
		"available_volume_kg": o.AvailableVolumeKg,
		"asking_price_per_kg": o.AskingPricePerKg,
	}
	if o.BuyerID != nil {
		snapshot["buyer_id"] = o.BuyerID.String()
	}
	if o.AcceptedPricePerKg != nil {
		snapshot["accepted_price_per_kg"] = *o.AcceptedPricePerKg
	}
	if resp.Escrow != nil {
		snapshot["escrow"] = map[string]any{
			"status":                   string(resp.Escrow.Status),
			"total_amount_cents":       resp.Escrow.TotalAmountCents,
			"farmer_released_cents":    resp.Escrow.FarmerReleasedCents,
			"middleman_released_cents": resp.Escrow.MiddlemanReleasedCents,
			"refunded_cents":           resp.Escrow.RefundedCents,
		}
	}
	return snapshot
}
