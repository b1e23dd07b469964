package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meal_planner/internal/hub"
	"meal_planner/internal/repository"
	"meal_planner/internal/service"
	"meal_planner/pkg/logger"
)

type chatHandlerFixture struct {
	repo   repository.MessageRepository
	router *gin.Engine
	userID uuid.UUID
	roomID uuid.UUID
}

func newChatHandlerFixture(t *testing.T) *chatHandlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := repository.NewMemoryMessageRepository()
	chatService := service.NewChatService(repo, hub.New(logger.NewNop()), nil, logger.NewNop())
	h := NewChatHandler(chatService, logger.NewNop())

	f := &chatHandlerFixture{
		repo:   repo,
		userID: uuid.New(),
		roomID: uuid.New(),
	}
	require.NoError(t, repo.ProvisionRoom(context.Background(), f.roomID))

	router := gin.New()
	authed := router.Group("/", func(c *gin.Context) {
		c.Set("user_id", f.userID)
		c.Next()
	})
	authed.GET("/chat/:id/messages", h.GetMessages)
	authed.GET("/chat/:id/sync-messages", h.SyncMessages)
	authed.GET("/chat/:id/messages/search", h.SearchMessages)
	authed.GET("/chat/:id/messages/page", h.GetMessagePage)

	f.router = router
	return f
}

func (f *chatHandlerFixture) get(t *testing.T, path string, query url.Values) *httptest.ResponseRecorder {
	t.Helper()
	if len(query) > 0 {
		path = path + "?" + query.Encode()
	}
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeViews(t *testing.T, rec *httptest.ResponseRecorder) []MessageView {
	t.Helper()
	var views []MessageView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	return views
}

func TestGetMessagesRendersSentAndReceived(t *testing.T) {
	f := newChatHandlerFixture(t)
	ctx := context.Background()

	_, err := f.repo.Append(ctx, f.roomID, f.userID, "me", "my message")
	require.NoError(t, err)
	_, err = f.repo.Append(ctx, f.roomID, uuid.New(), "bob", "their message")
	require.NoError(t, err)

	rec := f.get(t, fmt.Sprintf("/chat/%s/messages", f.roomID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	views := decodeViews(t, rec)
	require.Len(t, views, 2)
	assert.Equal(t, "sent", views[0].Type)
	assert.Equal(t, "my message", views[0].Content)
	assert.Equal(t, "received", views[1].Type)
	assert.Equal(t, "bob", views[1].Sender)
}

func TestGetMessagesUnknownRoom(t *testing.T) {
	f := newChatHandlerFixture(t)

	rec := f.get(t, fmt.Sprintf("/chat/%s/messages", uuid.New()), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetMessagesBadRoomID(t *testing.T) {
	f := newChatHandlerFixture(t)

	rec := f.get(t, "/chat/not-a-uuid/messages", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSyncMessages(t *testing.T) {
	f := newChatHandlerFixture(t)
	ctx := context.Background()

	cursor, err := f.repo.Append(ctx, f.roomID, f.userID, "me", "seen")
	require.NoError(t, err)
	_, err = f.repo.Append(ctx, f.roomID, f.userID, "me", "missed")
	require.NoError(t, err)

	query := url.Values{}
	query.Set("since", cursor.CreatedAt.Format(time.RFC3339Nano))
	query.Set("after_seq", fmt.Sprintf("%d", cursor.Seq))

	rec := f.get(t, fmt.Sprintf("/chat/%s/sync-messages", f.roomID), query)
	require.Equal(t, http.StatusOK, rec.Code)

	views := decodeViews(t, rec)
	require.Len(t, views, 1)
	assert.Equal(t, "missed", views[0].Content)
}

func TestSyncMessagesValidation(t *testing.T) {
	f := newChatHandlerFixture(t)

	rec := f.get(t, fmt.Sprintf("/chat/%s/sync-messages", f.roomID), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "since is required")

	query := url.Values{}
	query.Set("since", "yesterday")
	rec = f.get(t, fmt.Sprintf("/chat/%s/sync-messages", f.roomID), query)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "since must be RFC 3339")
}

func TestSearchMessages(t *testing.T) {
	f := newChatHandlerFixture(t)
	ctx := context.Background()

	_, err := f.repo.Append(ctx, f.roomID, f.userID, "me", "pasta tonight?")
	require.NoError(t, err)
	_, err = f.repo.Append(ctx, f.roomID, f.userID, "me", "or maybe tacos")
	require.NoError(t, err)

	query := url.Values{}
	query.Set("q", "PASTA")
	rec := f.get(t, fmt.Sprintf("/chat/%s/messages/search", f.roomID), query)
	require.Equal(t, http.StatusOK, rec.Code)

	views := decodeViews(t, rec)
	require.Len(t, views, 1)
	assert.Equal(t, "pasta tonight?", views[0].Content)

	rec = f.get(t, fmt.Sprintf("/chat/%s/messages/search", f.roomID), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "q is required")
}

func TestGetMessagePage(t *testing.T) {
	f := newChatHandlerFixture(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		_, err := f.repo.Append(ctx, f.roomID, f.userID, "me", fmt.Sprintf("msg %d", i))
		require.NoError(t, err)
	}

	query := url.Values{}
	query.Set("page", "2")
	query.Set("page_size", "2")
	rec := f.get(t, fmt.Sprintf("/chat/%s/messages/page", f.roomID), query)
	require.Equal(t, http.StatusOK, rec.Code)

	views := decodeViews(t, rec)
	require.Len(t, views, 2)
	assert.Equal(t, int64(3), views[0].Seq)
	assert.Equal(t, int64(4), views[1].Seq)
}
