package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"dm-service/internal/attachments"
	"dm-service/internal/clients"
	"dm-service/internal/mocks"
	"dm-service/internal/models"
	"dm-service/internal/repositories"
)

type pusherRecorder struct {
	mu     sync.Mutex
	pushed []models.Message
}

func (p *pusherRecorder) PushNewMessage(_ context.Context, msg models.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushed = append(p.pushed, msg)
}

func (p *pusherRecorder) messages() []models.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.Message, len(p.pushed))
	copy(out, p.pushed)
	return out
}

func setupMessageRouter(handler *MessageHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", 1)
		c.Next()
	})
	r.GET("/conversations/:peer_id/messages", handler.ListConversation)
	r.POST("/conversations/:peer_id/messages", handler.SendMessage)
	return r
}

func TestSendMessageSuccess(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	store := new(mocks.BlobStoreMock)
	pusher := &pusherRecorder{}
	handler := NewMessageHandler(repo, store, new(mocks.UserClientMock), pusher, nil)
	router := setupMessageRouter(handler)

	stored := models.Message{ID: 7, FromUserID: 1, ToUserID: 2, Text: "hi"}
	repo.On("Append", mock.Anything, 1, 2, "hi", models.AttachmentList{}).Return(stored, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/2/messages", bytes.NewBufferString(`{"text":"hi"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp models.Message
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 7, resp.ID)
	assert.Equal(t, "hi", resp.Text)

	pushed := pusher.messages()
	require.Len(t, pushed, 1)
	assert.Equal(t, 7, pushed[0].ID)
	repo.AssertExpectations(t)
}

func TestSendMessageWithAttachments(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	store := new(mocks.BlobStoreMock)
	pusher := &pusherRecorder{}
	handler := NewMessageHandler(repo, store, new(mocks.UserClientMock), pusher, nil)
	router := setupMessageRouter(handler)

	ref := models.AttachmentRef{URL: "/attachments/abc", Name: "pic.png", Size: 12, MimeType: "image/png"}
	store.On("Resolve", mock.Anything, "abc").Return(ref, nil).Once()
	repo.On("Append", mock.Anything, 1, 2, "", models.AttachmentList{ref}).
		Return(models.Message{ID: 9, FromUserID: 1, ToUserID: 2, Attachments: models.AttachmentList{ref}}, nil).Once()

	body := bytes.NewBufferString(`{"attachment_ids":["abc"]}`)
	req := httptest.NewRequest(http.MethodPost, "/conversations/2/messages", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	store.AssertExpectations(t)
	repo.AssertExpectations(t)
}

func TestSendMessageUnknownAttachment(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	store := new(mocks.BlobStoreMock)
	handler := NewMessageHandler(repo, store, new(mocks.UserClientMock), &pusherRecorder{}, nil)
	router := setupMessageRouter(handler)

	store.On("Resolve", mock.Anything, "ghost").Return(models.AttachmentRef{}, attachments.ErrBlobNotFound).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/2/messages", bytes.NewBufferString(`{"attachment_ids":["ghost"]}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	repo.AssertNotCalled(t, "Append", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSendMessageEmptyRejected(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	pusher := &pusherRecorder{}
	handler := NewMessageHandler(repo, new(mocks.BlobStoreMock), new(mocks.UserClientMock), pusher, nil)
	router := setupMessageRouter(handler)

	repo.On("Append", mock.Anything, 1, 2, "", models.AttachmentList{}).
		Return(models.Message{}, repositories.ErrInvalidMessage).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/2/messages", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, pusher.messages(), "nothing is pushed when persistence rejected the message")
}

func TestSendMessageToSelfRejected(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	handler := NewMessageHandler(repo, new(mocks.BlobStoreMock), new(mocks.UserClientMock), &pusherRecorder{}, nil)
	router := setupMessageRouter(handler)

	repo.On("Append", mock.Anything, 1, 1, "hey me", models.AttachmentList{}).
		Return(models.Message{}, repositories.ErrInvalidMessage).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/1/messages", bytes.NewBufferString(`{"text":"hey me"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendMessageStorageUnavailable(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	pusher := &pusherRecorder{}
	handler := NewMessageHandler(repo, new(mocks.BlobStoreMock), new(mocks.UserClientMock), pusher, nil)
	router := setupMessageRouter(handler)

	repo.On("Append", mock.Anything, 1, 2, "hi", models.AttachmentList{}).
		Return(models.Message{}, repositories.ErrStorageUnavailable).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/2/messages", bytes.NewBufferString(`{"text":"hi"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Empty(t, pusher.messages())
}

func TestListConversationSuccess(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	users := new(mocks.UserClientMock)
	handler := NewMessageHandler(repo, new(mocks.BlobStoreMock), users, &pusherRecorder{}, nil)
	router := setupMessageRouter(handler)

	msgs := []models.Message{
		{ID: 1, FromUserID: 2, ToUserID: 1, Text: "hello"},
		{ID: 2, FromUserID: 1, ToUserID: 2, Text: "hey"},
	}
	repo.On("ListConversation", mock.Anything, 1, 2, 0).Return(msgs, nil).Once()
	users.On("BulkUsers", mock.Anything, []int{2, 1}).Return([]clients.User{
		{ID: 1, Username: "me"},
		{ID: 2, Username: "bob"},
	}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations/2/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Messages []struct {
			models.Message
			SenderUsername string `json:"sender_username"`
		} `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, "bob", resp.Messages[0].SenderUsername)
	assert.Equal(t, "me", resp.Messages[1].SenderUsername)

	repo.AssertExpectations(t)
	users.AssertExpectations(t)
}

func TestListConversationSinceID(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	users := new(mocks.UserClientMock)
	handler := NewMessageHandler(repo, new(mocks.BlobStoreMock), users, &pusherRecorder{}, nil)
	router := setupMessageRouter(handler)

	repo.On("ListConversation", mock.Anything, 1, 2, 41).Return([]models.Message{}, nil).Once()
	users.On("BulkUsers", mock.Anything, []int{}).Return([]clients.User{}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations/2/messages?since_id=41", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	repo.AssertExpectations(t)
}

func TestListConversationInvalidPeer(t *testing.T) {
	handler := NewMessageHandler(new(mocks.MessageRepositoryMock), new(mocks.BlobStoreMock), new(mocks.UserClientMock), &pusherRecorder{}, nil)
	router := setupMessageRouter(handler)

	req := httptest.NewRequest(http.MethodGet, "/conversations/abc/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListConversationStorageUnavailable(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	handler := NewMessageHandler(repo, new(mocks.BlobStoreMock), new(mocks.UserClientMock), &pusherRecorder{}, nil)
	router := setupMessageRouter(handler)

	repo.On("ListConversation", mock.Anything, 1, 2, 0).Return(([]models.Message)(nil), repositories.ErrStorageUnavailable).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations/2/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
