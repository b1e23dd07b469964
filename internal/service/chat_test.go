package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meal_planner/internal/config"
	"meal_planner/internal/domain"
	"meal_planner/internal/hub"
	"meal_planner/internal/notifier"
	"meal_planner/internal/repository"
	"meal_planner/pkg/errors"
	"meal_planner/pkg/logger"
)

// fakeConn captures the text frames WritePump pushes onto the wire.
type fakeConn struct {
	frames chan []byte
}

func newFakeConn() *fakeConn {
	return &fakeConn{frames: make(chan []byte, 256)}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) { select {} }
func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	if messageType == websocket.TextMessage {
		f.frames <- data
	}
	return nil
}
func (f *fakeConn) SetReadLimit(int64)                {}
func (f *fakeConn) SetReadDeadline(time.Time) error   { return nil }
func (f *fakeConn) SetWriteDeadline(time.Time) error  { return nil }
func (f *fakeConn) SetPongHandler(func(string) error) {}
func (f *fakeConn) Close() error                      { return nil }

type fakePublisher struct {
	mu     sync.Mutex
	events []notifier.Event
	err    error
}

func (p *fakePublisher) Publish(ctx context.Context, event notifier.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *fakePublisher) published() []notifier.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]notifier.Event(nil), p.events...)
}

type chatFixture struct {
	repo repository.MessageRepository
	hub  *hub.Hub
	svc  ChatService
}

func newChatFixture(t *testing.T, pub notifier.Publisher) *chatFixture {
	t.Helper()
	repo := repository.NewMemoryMessageRepository()
	h := hub.New(logger.NewNop())
	return &chatFixture{
		repo: repo,
		hub:  h,
		svc:  NewChatService(repo, h, pub, logger.NewNop()),
	}
}

type session struct {
	client *hub.Client
	conn   *fakeConn
}

func (f *chatFixture) newSession(t *testing.T, roomID uuid.UUID, username string) *session {
	t.Helper()
	conn := newFakeConn()
	cfg := config.WebSocketConfig{
		WriteWait:      time.Second,
		PongWait:       time.Second,
		PingInterval:   time.Minute,
		MaxMessageSize: 4096,
		SendBufferSize: 32,
	}
	client := hub.NewClient(uuid.New(), username, roomID, conn, cfg, logger.NewNop())
	f.hub.Join(client)
	go client.WritePump()
	t.Cleanup(client.Close)
	return &session{client: client, conn: conn}
}

func (s *session) receive(t *testing.T) domain.BroadcastPayload {
	t.Helper()
	select {
	case data := <-s.conn.frames:
		var payload domain.BroadcastPayload
		require.NoError(t, json.Unmarshal(data, &payload))
		return payload
	case <-time.After(time.Second):
		t.Fatal("expected a frame but none arrived")
		return domain.BroadcastPayload{}
	}
}

func (s *session) receiveNothing(t *testing.T) {
	t.Helper()
	select {
	case data := <-s.conn.frames:
		t.Fatalf("expected no frame, got %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishAppendsAndFansOut(t *testing.T) {
	f := newChatFixture(t, nil)
	ctx := context.Background()
	roomID := uuid.New()
	require.NoError(t, f.repo.ProvisionRoom(ctx, roomID))

	sender := f.newSession(t, roomID, "alice")
	observer := f.newSession(t, roomID, "bob")

	msg, err := f.svc.Publish(ctx, sender.client, "hello")
	require.NoError(t, err)
	assert.Equal(t, int64(1), msg.Seq)
	assert.Equal(t, "hello", msg.Body)

	got := observer.receive(t)
	assert.Equal(t, "hello", got.Content)
	assert.Equal(t, "alice", got.Sender)
	assert.Equal(t, int64(1), got.Seq)
	assert.Equal(t, domain.PayloadTypeMessage, got.Type)

	sender.receiveNothing(t)

	history, err := f.svc.History(ctx, roomID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "hello", history[0].Body)
}

func TestPublishRejectsBlankBody(t *testing.T) {
	f := newChatFixture(t, nil)
	ctx := context.Background()
	roomID := uuid.New()
	require.NoError(t, f.repo.ProvisionRoom(ctx, roomID))

	sender := f.newSession(t, roomID, "alice")

	_, err := f.svc.Publish(ctx, sender.client, "   \n\t ")
	assert.ErrorIs(t, err, errors.ErrBadRequest)

	history, err := f.svc.History(ctx, roomID)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestPublishUnknownRoomBroadcastsNothing(t *testing.T) {
	f := newChatFixture(t, nil)
	roomID := uuid.New() // never provisioned

	sender := f.newSession(t, roomID, "alice")
	observer := f.newSession(t, roomID, "bob")

	_, err := f.svc.Publish(context.Background(), sender.client, "hello?")
	assert.ErrorIs(t, err, errors.ErrRoomNotFound)

	observer.receiveNothing(t)
}

func TestPublishPreservesOrder(t *testing.T) {
	f := newChatFixture(t, nil)
	ctx := context.Background()
	roomID := uuid.New()
	require.NoError(t, f.repo.ProvisionRoom(ctx, roomID))

	sender := f.newSession(t, roomID, "alice")
	observer := f.newSession(t, roomID, "bob")

	first, err := f.svc.Publish(ctx, sender.client, "first")
	require.NoError(t, err)
	second, err := f.svc.Publish(ctx, sender.client, "second")
	require.NoError(t, err)
	require.Less(t, first.Seq, second.Seq)

	got1 := observer.receive(t)
	got2 := observer.receive(t)
	assert.Equal(t, "first", got1.Content)
	assert.Equal(t, "second", got2.Content)
	assert.Less(t, got1.Seq, got2.Seq, "observed order must match persisted order")
}

func TestPublishWithNotifierSkipsLocalFanout(t *testing.T) {
	pub := &fakePublisher{}
	f := newChatFixture(t, pub)
	ctx := context.Background()
	roomID := uuid.New()
	require.NoError(t, f.repo.ProvisionRoom(ctx, roomID))

	sender := f.newSession(t, roomID, "alice")
	observer := f.newSession(t, roomID, "bob")

	msg, err := f.svc.Publish(ctx, sender.client, "hello")
	require.NoError(t, err)

	events := pub.published()
	require.Len(t, events, 1)
	assert.Equal(t, roomID, events[0].RoomID)
	assert.Equal(t, msg.Seq, events[0].Seq)
	assert.Equal(t, sender.client.ID, events[0].Origin)

	// Delivery now rides the notification channel; nothing goes out locally
	// until the notification comes back.
	observer.receiveNothing(t)

	f.svc.HandleNotification(events[0])

	got := observer.receive(t)
	assert.Equal(t, "hello", got.Content)
	assert.Equal(t, domain.PayloadTypeNotification, got.Type)
	sender.receiveNothing(t)
}

func TestPublishFallsBackWhenNotifierFails(t *testing.T) {
	pub := &fakePublisher{err: errors.ErrInternalServer}
	f := newChatFixture(t, pub)
	ctx := context.Background()
	roomID := uuid.New()
	require.NoError(t, f.repo.ProvisionRoom(ctx, roomID))

	sender := f.newSession(t, roomID, "alice")
	observer := f.newSession(t, roomID, "bob")

	msg, err := f.svc.Publish(ctx, sender.client, "hello anyway")
	require.NoError(t, err)
	assert.Equal(t, int64(1), msg.Seq)

	got := observer.receive(t)
	assert.Equal(t, "hello anyway", got.Content)
	assert.Equal(t, domain.PayloadTypeMessage, got.Type)
}

func TestHandleNotificationUnknownSeq(t *testing.T) {
	f := newChatFixture(t, nil)
	ctx := context.Background()
	roomID := uuid.New()
	require.NoError(t, f.repo.ProvisionRoom(ctx, roomID))

	observer := f.newSession(t, roomID, "bob")

	f.svc.HandleNotification(notifier.Event{RoomID: roomID, Seq: 42})

	observer.receiveNothing(t)
}

func TestSyncReturnsOnlyMissedMessages(t *testing.T) {
	f := newChatFixture(t, nil)
	ctx := context.Background()
	roomID := uuid.New()
	require.NoError(t, f.repo.ProvisionRoom(ctx, roomID))

	sender := f.newSession(t, roomID, "alice")

	_, err := f.svc.Publish(ctx, sender.client, "one")
	require.NoError(t, err)
	cursor, err := f.svc.Publish(ctx, sender.client, "two")
	require.NoError(t, err)
	_, err = f.svc.Publish(ctx, sender.client, "three")
	require.NoError(t, err)

	missed, err := f.svc.Sync(ctx, roomID, cursor.CreatedAt, cursor.Seq)
	require.NoError(t, err)
	require.Len(t, missed, 1)
	assert.Equal(t, "three", missed[0].Body)
}

func TestSearchRequiresQuery(t *testing.T) {
	f := newChatFixture(t, nil)
	roomID := uuid.New()
	require.NoError(t, f.repo.ProvisionRoom(context.Background(), roomID))

	_, err := f.svc.Search(context.Background(), roomID, "  ")
	assert.ErrorIs(t, err, errors.ErrBadRequest)
}

func TestConcurrentPublishersSeeDenseSeqs(t *testing.T) {
	f := newChatFixture(t, nil)
	ctx := context.Background()
	roomID := uuid.New()
	require.NoError(t, f.repo.ProvisionRoom(ctx, roomID))

	const senders = 5
	const perSender = 20

	var wg sync.WaitGroup
	for i := 0; i < senders; i++ {
		s := f.newSession(t, roomID, "writer")
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perSender; j++ {
				_, err := f.svc.Publish(ctx, s.client, "load")
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	all, err := f.svc.History(ctx, roomID)
	require.NoError(t, err)
	require.Len(t, all, senders*perSender)
	for i, m := range all {
		assert.Equal(t, int64(i+1), m.Seq)
	}
}
