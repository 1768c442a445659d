package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"dm-service/internal/attachments"
	"dm-service/internal/clients"
	"dm-service/internal/models"
	"dm-service/internal/repositories"
)

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) Append(ctx context.Context, fromUserID, toUserID int, text string, atts models.AttachmentList) (models.Message, error) {
	args := m.Called(ctx, fromUserID, toUserID, text, atts)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) ListConversation(ctx context.Context, userA, userB, sinceID int) ([]models.Message, error) {
	args := m.Called(ctx, userA, userB, sinceID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) MarkDelivered(ctx context.Context, messageID int) error {
	args := m.Called(ctx, messageID)
	return args.Error(0)
}

func (m *MessageRepositoryMock) MarkReadBulk(ctx context.Context, fromUserID, toUserID int, asOf time.Time) error {
	args := m.Called(ctx, fromUserID, toUserID, asOf)
	return args.Error(0)
}

type BlobStoreMock struct {
	mock.Mock
}

func (m *BlobStoreMock) Put(ctx context.Context, uploads []attachments.Upload) ([]models.AttachmentRef, error) {
	args := m.Called(ctx, uploads)
	var refs []models.AttachmentRef
	if val := args.Get(0); val != nil {
		refs = val.([]models.AttachmentRef)
	}
	return refs, args.Error(1)
}

func (m *BlobStoreMock) Get(ctx context.Context, id string) (attachments.Blob, error) {
	args := m.Called(ctx, id)
	var blob attachments.Blob
	if val := args.Get(0); val != nil {
		blob = val.(attachments.Blob)
	}
	return blob, args.Error(1)
}

func (m *BlobStoreMock) Resolve(ctx context.Context, id string) (models.AttachmentRef, error) {
	args := m.Called(ctx, id)
	var ref models.AttachmentRef
	if val := args.Get(0); val != nil {
		ref = val.(models.AttachmentRef)
	}
	return ref, args.Error(1)
}

type AuthClientMock struct {
	mock.Mock
}

func (m *AuthClientMock) ValidateToken(ctx context.Context, token string) (int, error) {
	args := m.Called(ctx, token)
	return args.Int(0), args.Error(1)
}

type UserClientMock struct {
	mock.Mock
}

func (m *UserClientMock) GetUser(ctx context.Context, userID int) (clients.User, error) {
	args := m.Called(ctx, userID)
	var user clients.User
	if val := args.Get(0); val != nil {
		user = val.(clients.User)
	}
	return user, args.Error(1)
}

func (m *UserClientMock) BulkUsers(ctx context.Context, ids []int) ([]clients.User, error) {
	args := m.Called(ctx, ids)
	var users []clients.User
	if val := args.Get(0); val != nil {
		users = val.([]clients.User)
	}
	return users, args.Error(1)
}

var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
var _ attachments.BlobStore = (*BlobStoreMock)(nil)
var _ clients.TokenValidator = (*AuthClientMock)(nil)
var _ clients.UserDirectory = (*UserClientMock)(nil)
