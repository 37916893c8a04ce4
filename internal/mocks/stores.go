// Package mocks contains testify mocks for the store and service
// interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/keymint/keymint-server/internal/model"
)

type UserStore struct {
	mock.Mock
}

func (m *UserStore) GetByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.User), args.Error(1)
}

func (m *UserStore) GetTokenVersion(ctx context.Context, id uuid.UUID) (int64, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(int64), args.Error(1)
}

func (m *UserStore) BumpTokenVersion(ctx context.Context, id uuid.UUID) (int64, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(int64), args.Error(1)
}

type RefreshTokenStore struct {
	mock.Mock
}

func (m *RefreshTokenStore) Create(ctx context.Context, token model.RefreshToken) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *RefreshTokenStore) GetByHash(ctx context.Context, hash []byte) (model.RefreshToken, error) {
	args := m.Called(ctx, hash)
	return args.Get(0).(model.RefreshToken), args.Error(1)
}

func (m *RefreshTokenStore) Rotate(ctx context.Context, oldID uuid.UUID, successor model.RefreshToken) error {
	args := m.Called(ctx, oldID, successor)
	return args.Error(0)
}

func (m *RefreshTokenStore) Revoke(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *RefreshTokenStore) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *RefreshTokenStore) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

type DenylistStore struct {
	mock.Mock
}

func (m *DenylistStore) Revoke(ctx context.Context, entry model.RevokedAccessToken) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *DenylistStore) IsRevoked(ctx context.Context, jti uuid.UUID) (bool, error) {
	args := m.Called(ctx, jti)
	return args.Bool(0), args.Error(1)
}

func (m *DenylistStore) DeleteExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *DenylistStore) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

type PasswordVerifier struct {
	mock.Mock
}

func (m *PasswordVerifier) VerifyPassword(ctx context.Context, identity, password string) (uuid.UUID, error) {
	args := m.Called(ctx, identity, password)
	return args.Get(0).(uuid.UUID), args.Error(1)
}
