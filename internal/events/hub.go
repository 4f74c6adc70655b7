package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeTimeout = 10 * time.Second

// conn is the minimal websocket surface the hub needs. *websocket.Conn
// satisfies it; tests substitute a recorder.
type conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// subscriber wraps a socket with a write lock. gorilla conns do not allow
// concurrent writers.
type subscriber struct {
	id uuid.UUID
	c  conn
	mu sync.Mutex
}

func (s *subscriber) send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.c.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.c.WriteMessage(websocket.TextMessage, data)
}

// Hub fans events out to order rooms and per-middleman streams. All maps are
// guarded by one mutex; sends happen outside the lock against a snapshot so a
// slow socket cannot stall the hub. Subscribers whose send fails are pruned.
type Hub struct {
	mu         sync.Mutex
	rooms      map[uuid.UUID]map[uuid.UUID]*subscriber
	middlemen  map[uuid.UUID]map[uuid.UUID]*subscriber
	logger     *zap.Logger
}

// NewHub creates an empty hub
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		rooms:     make(map[uuid.UUID]map[uuid.UUID]*subscriber),
		middlemen: make(map[uuid.UUID]map[uuid.UUID]*subscriber),
		logger:    logger,
	}
}

// Subscribe registers a socket on an order room and returns the subscriber id
// used for Unsubscribe.
func (h *Hub) Subscribe(orderID uuid.UUID, c conn) uuid.UUID {
	sub := &subscriber{id: uuid.New(), c: c}
	h.mu.Lock()
	room, ok := h.rooms[orderID]
	if !ok {
		room = make(map[uuid.UUID]*subscriber)
		h.rooms[orderID] = room
	}
	room[sub.id] = sub
	h.mu.Unlock()
	return sub.id
}

// Unsubscribe removes a socket from an order room, deleting the room when it
// empties.
func (h *Hub) Unsubscribe(orderID, subID uuid.UUID) {
	h.mu.Lock()
	if room, ok := h.rooms[orderID]; ok {
		delete(room, subID)
		if len(room) == 0 {
			delete(h.rooms, orderID)
		}
	}
	h.mu.Unlock()
}

// SubscribeMiddleman registers a socket on a middleman's private stream
func (h *Hub) SubscribeMiddleman(middlemanID uuid.UUID, c conn) uuid.UUID {
	sub := &subscriber{id: uuid.New(), c: c}
	h.mu.Lock()
	stream, ok := h.middlemen[middlemanID]
	if !ok {
		stream = make(map[uuid.UUID]*subscriber)
		h.middlemen[middlemanID] = stream
	}
	stream[sub.id] = sub
	h.mu.Unlock()
	return sub.id
}

// UnsubscribeMiddleman removes a socket from a middleman stream
func (h *Hub) UnsubscribeMiddleman(middlemanID, subID uuid.UUID) {
	h.mu.Lock()
	if stream, ok := h.middlemen[middlemanID]; ok {
		delete(stream, subID)
		if len(stream) == 0 {
			delete(h.middlemen, middlemanID)
		}
	}
	h.mu.Unlock()
}

// Broadcast delivers an event to every subscriber of the order room
func (h *Hub) Broadcast(orderID uuid.UUID, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("marshal event", zap.String("type", ev.Type), zap.Error(err))
		return
	}

	h.mu.Lock()
	room := h.rooms[orderID]
	subs := make([]*subscriber, 0, len(room))
	for _, s := range room {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	var dead []uuid.UUID
	for _, s := range subs {
		if err := s.send(data); err != nil {
			h.logger.Debug("pruning dead subscriber",
				zap.String("order_id", orderID.String()), zap.Error(err))
			_ = s.c.Close()
			dead = append(dead, s.id)
		}
	}
	for _, id := range dead {
		h.Unsubscribe(orderID, id)
	}
}

// NotifyMiddleman delivers an event to every socket on a middleman stream
func (h *Hub) NotifyMiddleman(middlemanID uuid.UUID, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("marshal event", zap.String("type", ev.Type), zap.Error(err))
		return
	}

	h.mu.Lock()
	stream := h.middlemen[middlemanID]
	subs := make([]*subscriber, 0, len(stream))
	for _, s := range stream {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	var dead []uuid.UUID
	for _, s := range subs {
		if err := s.send(data); err != nil {
			_ = s.c.Close()
			dead = append(dead, s.id)
		}
	}
	for _, id := range dead {
		h.UnsubscribeMiddleman(middlemanID, id)
	}
}

// RoomSize reports the subscriber count for an order room
func (h *Hub) RoomSize(orderID uuid.UUID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[orderID])
}
