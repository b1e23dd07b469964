package hub

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meal_planner/internal/config"
	"meal_planner/internal/domain"
	"meal_planner/pkg/logger"
)

type fakeConn struct {
	closed bool
}

func (f *fakeConn) ReadMessage() (int, []byte, error) { select {} }
func (f *fakeConn) WriteMessage(int, []byte) error    { return nil }
func (f *fakeConn) SetReadLimit(int64)                {}
func (f *fakeConn) SetReadDeadline(time.Time) error   { return nil }
func (f *fakeConn) SetWriteDeadline(time.Time) error  { return nil }
func (f *fakeConn) SetPongHandler(func(string) error) {}
func (f *fakeConn) Close() error                      { f.closed = true; return nil }

func testConfig() config.WebSocketConfig {
	return config.WebSocketConfig{
		WriteWait:      time.Second,
		PongWait:       time.Second,
		PingInterval:   time.Second,
		MaxMessageSize: 4096,
		SendBufferSize: 8,
	}
}

func newTestClient(t *testing.T, roomID uuid.UUID, username string) *Client {
	t.Helper()
	return NewClient(uuid.New(), username, roomID, &fakeConn{}, testConfig(), logger.NewNop())
}

func receivePayload(t *testing.T, c *Client) domain.BroadcastPayload {
	t.Helper()
	select {
	case data := <-c.send:
		var payload domain.BroadcastPayload
		require.NoError(t, json.Unmarshal(data, &payload))
		return payload
	case <-time.After(time.Second):
		t.Fatal("expected a payload but none arrived")
		return domain.BroadcastPayload{}
	}
}

func assertNoPayload(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.send:
		t.Fatalf("expected no payload, got %s", data)
	default:
	}
}

func TestJoinAndMembers(t *testing.T) {
	h := New(logger.NewNop())
	roomID := uuid.New()

	c1 := newTestClient(t, roomID, "alice")
	c2 := newTestClient(t, roomID, "bob")
	other := newTestClient(t, uuid.New(), "carol")

	h.Join(c1)
	h.Join(c2)
	h.Join(other)

	assert.Len(t, h.Members(roomID), 2)
	assert.Equal(t, 2, h.RoomCount(roomID))
	assert.Equal(t, 1, h.RoomCount(other.RoomID))
}

func TestLeavePrunesEmptyRoom(t *testing.T) {
	h := New(logger.NewNop())
	roomID := uuid.New()
	c := newTestClient(t, roomID, "alice")

	h.Join(c)
	h.Leave(c)
	h.Leave(c) // double leave is a no-op

	assert.Empty(t, h.Members(roomID))
	h.mu.RLock()
	_, stillThere := h.rooms[roomID]
	h.mu.RUnlock()
	assert.False(t, stillThere, "empty room entry should be pruned")
}

func TestBroadcastExcludesSender(t *testing.T) {
	h := New(logger.NewNop())
	roomID := uuid.New()
	sender := newTestClient(t, roomID, "alice")
	observer := newTestClient(t, roomID, "bob")

	h.Join(sender)
	h.Join(observer)

	payload := domain.BroadcastPayload{
		Timestamp: time.Now(),
		Seq:       1,
		Sender:    "alice",
		Content:   "hello",
		Type:      domain.PayloadTypeMessage,
	}
	delivered := h.Broadcast(roomID, payload, sender.ID)

	assert.Equal(t, 1, delivered)
	got := receivePayload(t, observer)
	assert.Equal(t, "hello", got.Content)
	assert.Equal(t, "alice", got.Sender)
	assert.Equal(t, domain.PayloadTypeMessage, got.Type)
	assertNoPayload(t, sender)
}

func TestBroadcastDropsDeadRecipient(t *testing.T) {
	h := New(logger.NewNop())
	roomID := uuid.New()

	alive1 := newTestClient(t, roomID, "alice")
	dead := newTestClient(t, roomID, "bob")
	alive2 := newTestClient(t, roomID, "carol")

	h.Join(alive1)
	h.Join(dead)
	h.Join(alive2)

	dead.Close()

	payload := domain.BroadcastPayload{Content: "still here", Type: domain.PayloadTypeMessage}
	delivered := h.Broadcast(roomID, payload, "")

	assert.Equal(t, 2, delivered)
	assert.Equal(t, "still here", receivePayload(t, alive1).Content)
	assert.Equal(t, "still here", receivePayload(t, alive2).Content)
	assert.Equal(t, 2, h.RoomCount(roomID), "dead session should be removed from the registry")
}

func TestBroadcastDropsClientWithFullBuffer(t *testing.T) {
	h := New(logger.NewNop())
	roomID := uuid.New()

	cfg := testConfig()
	cfg.SendBufferSize = 1
	slow := NewClient(uuid.New(), "slow", roomID, &fakeConn{}, cfg, logger.NewNop())
	fast := newTestClient(t, roomID, "fast")

	h.Join(slow)
	h.Join(fast)

	require.True(t, slow.trySend([]byte("backlog")))

	delivered := h.Broadcast(roomID, domain.BroadcastPayload{Content: "overflow"}, "")

	assert.Equal(t, 1, delivered)
	assert.Equal(t, "overflow", receivePayload(t, fast).Content)
	assert.Equal(t, 1, h.RoomCount(roomID))
}

func TestTrySendAfterClose(t *testing.T) {
	c := newTestClient(t, uuid.New(), "alice")
	c.Close()
	c.Close() // idempotent

	assert.False(t, c.trySend([]byte("late")))
	assert.False(t, c.SendPayload(domain.BroadcastPayload{Content: "late"}))
}
