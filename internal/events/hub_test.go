package events

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// recorderConn captures frames instead of writing to a socket
type recorderConn struct {
	mu     sync.Mutex
	frames [][]byte
	failed bool
	closed bool
}

func (r *recorderConn) WriteMessage(messageType int, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failed {
		return errors.New("broken pipe")
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	r.frames = append(r.frames, buf)
	return nil
}

func (r *recorderConn) SetWriteDeadline(time.Time) error { return nil }

func (r *recorderConn) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *recorderConn) received() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]byte(nil), r.frames...)
}

func TestHub_BroadcastReachesAllRoomSubscribers(t *testing.T) {
	hub := NewHub(zap.NewNop())
	orderID := uuid.New()
	c1 := &recorderConn{}
	c2 := &recorderConn{}
	hub.Subscribe(orderID, c1)
	hub.Subscribe(orderID, c2)

	hub.Broadcast(orderID, NewFSMTransition(orderID, "LISTED", "NEGOTIATING", "first_bid"))

	for _, c := range []*recorderConn{c1, c2} {
		frames := c.received()
		require.Len(t, frames, 1)

		var ev Event
		require.NoError(t, json.Unmarshal(frames[0], &ev))
		assert.Equal(t, TypeFSMTransition, ev.Type)
		assert.Equal(t, orderID.String(), ev.OrderID)
		assert.Equal(t, "NEGOTIATING", ev.Payload["to"])
	}
}

func TestHub_BroadcastIsScopedToRoom(t *testing.T) {
	hub := NewHub(zap.NewNop())
	orderA := uuid.New()
	orderB := uuid.New()
	cA := &recorderConn{}
	cB := &recorderConn{}
	hub.Subscribe(orderA, cA)
	hub.Subscribe(orderB, cB)

	hub.Broadcast(orderA, NewConnected(orderA, "buyer", uuid.New()))

	assert.Len(t, cA.received(), 1)
	assert.Empty(t, cB.received())
}

func TestNewConnected_CarriesClientIdentity(t *testing.T) {
	orderID := uuid.New()
	userID := uuid.New()

	ev := NewConnected(orderID, "middleman", userID)

	assert.Equal(t, TypeConnected, ev.Type)
	assert.Equal(t, orderID.String(), ev.OrderID)
	assert.Equal(t, "middleman", ev.Payload["role"])
	assert.Equal(t, userID.String(), ev.Payload["user_id"])
}

func TestHub_UnsubscribeStopsDelivery(t *testing.T) {
	hub := NewHub(zap.NewNop())
	orderID := uuid.New()
	c := &recorderConn{}
	subID := hub.Subscribe(orderID, c)

	hub.Unsubscribe(orderID, subID)
	hub.Broadcast(orderID, NewConnected(orderID, "buyer", uuid.New()))

	assert.Empty(t, c.received())
	assert.Zero(t, hub.RoomSize(orderID))
}

func TestHub_DeadSubscriberIsPruned(t *testing.T) {
	hub := NewHub(zap.NewNop())
	orderID := uuid.New()
	healthy := &recorderConn{}
	dead := &recorderConn{failed: true}
	hub.Subscribe(orderID, healthy)
	hub.Subscribe(orderID, dead)

	hub.Broadcast(orderID, NewConnected(orderID, "farmer", uuid.New()))

	assert.Equal(t, 1, hub.RoomSize(orderID))
	assert.True(t, dead.closed)
	assert.Len(t, healthy.received(), 1)

	// Next broadcast only hits the survivor
	hub.Broadcast(orderID, NewConnected(orderID, "farmer", uuid.New()))
	assert.Len(t, healthy.received(), 2)
}

func TestHub_NotifyMiddlemanIsPrivate(t *testing.T) {
	hub := NewHub(zap.NewNop())
	middlemanA := uuid.New()
	middlemanB := uuid.New()
	cA := &recorderConn{}
	cB := &recorderConn{}
	hub.SubscribeMiddleman(middlemanA, cA)
	hub.SubscribeMiddleman(middlemanB, cB)

	orderID := uuid.New()
	distance := 42.5
	hub.NotifyMiddleman(middlemanA, NewAssignmentOffer(orderID, uuid.New(), "tomato", 300, &distance))

	frames := cA.received()
	require.Len(t, frames, 1)
	assert.Empty(t, cB.received())

	var ev Event
	require.NoError(t, json.Unmarshal(frames[0], &ev))
	assert.Equal(t, TypeAssignmentOffer, ev.Type)
	assert.Equal(t, "tomato", ev.Payload["crop_type"])
}

func TestHub_UnsubscribeMiddleman(t *testing.T) {
	hub := NewHub(zap.NewNop())
	middlemanID := uuid.New()
	c := &recorderConn{}
	subID := hub.SubscribeMiddleman(middlemanID, c)

	hub.UnsubscribeMiddleman(middlemanID, subID)
	hub.NotifyMiddleman(middlemanID, NewPong())

	assert.Empty(t, c.received())
}
