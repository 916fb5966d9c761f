// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tokengate Contributors

// Package mocks holds testify mocks for the auth interfaces, laid out the
// way mockery generates them.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/tokengate/tokengate/internal/auth"
)

// MockSessionStore is a mock of auth.SessionStore.
type MockSessionStore struct {
	mock.Mock
}

// NewMockSessionStore creates a MockSessionStore whose expectations are
// asserted when the test ends.
func NewMockSessionStore(t interface {
	mock.TestingT
	Cleanup(func())
},
) *MockSessionStore {
	m := &MockSessionStore{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockSessionStore) FindUserByEmail(ctx context.Context, email string) (*auth.User, error) {
	ret := m.Called(ctx, email)
	return userOrNil(ret, 0), ret.Error(1)
}

func (m *MockSessionStore) InsertUser(ctx context.Context, email string, passwordHash *string) (*auth.User, error) {
	ret := m.Called(ctx, email, passwordHash)
	return userOrNil(ret, 0), ret.Error(1)
}

func (m *MockSessionStore) InsertSession(ctx context.Context, id string, userID int64, expiresAt time.Time) (*auth.Session, error) {
	ret := m.Called(ctx, id, userID, expiresAt)
	return sessionOrNil(ret, 0), ret.Error(1)
}

func (m *MockSessionStore) FindSessionWithUser(ctx context.Context, sessionID string) (*auth.User, *auth.Session, error) {
	ret := m.Called(ctx, sessionID)
	return userOrNil(ret, 0), sessionOrNil(ret, 1), ret.Error(2)
}

func (m *MockSessionStore) UpdateSessionExpiry(ctx context.Context, sessionID string, expiresAt time.Time) error {
	return m.Called(ctx, sessionID, expiresAt).Error(0)
}

func (m *MockSessionStore) DeleteSession(ctx context.Context, sessionID string) error {
	return m.Called(ctx, sessionID).Error(0)
}

func (m *MockSessionStore) DeleteAllSessionsForUser(ctx context.Context, userID int64) (int64, error) {
	ret := m.Called(ctx, userID)
	return ret.Get(0).(int64), ret.Error(1)
}

// MockExpiredSessionSweeper is a mock of auth.ExpiredSessionSweeper.
type MockExpiredSessionSweeper struct {
	mock.Mock
}

// NewMockExpiredSessionSweeper creates a MockExpiredSessionSweeper.
func NewMockExpiredSessionSweeper(t interface {
	mock.TestingT
	Cleanup(func())
},
) *MockExpiredSessionSweeper {
	m := &MockExpiredSessionSweeper{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockExpiredSessionSweeper) DeleteExpiredSessions(ctx context.Context, before time.Time) (int64, error) {
	ret := m.Called(ctx, before)
	return ret.Get(0).(int64), ret.Error(1)
}

// MockPasswordHasher is a mock of auth.PasswordHasher.
type MockPasswordHasher struct {
	mock.Mock
}

// NewMockPasswordHasher creates a MockPasswordHasher.
func NewMockPasswordHasher(t interface {
	mock.TestingT
	Cleanup(func())
},
) *MockPasswordHasher {
	m := &MockPasswordHasher{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockPasswordHasher) Hash(password string) (string, error) {
	ret := m.Called(password)
	return ret.String(0), ret.Error(1)
}

func (m *MockPasswordHasher) Verify(password, encodedHash string) bool {
	return m.Called(password, encodedHash).Bool(0)
}

// MockDummyHash is what MockPasswordHasher.DummyHash returns.
const MockDummyHash = "$argon2id$v=19$m=1024,t=1,p=1$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// DummyHash returns MockDummyHash. It records no call so constructors can
// use it without an expectation.
func (m *MockPasswordHasher) DummyHash() string {
	return MockDummyHash
}

// MockTokenCodec is a mock of auth.TokenCodec.
type MockTokenCodec struct {
	mock.Mock
}

// NewMockTokenCodec creates a MockTokenCodec.
func NewMockTokenCodec(t interface {
	mock.TestingT
	Cleanup(func())
},
) *MockTokenCodec {
	m := &MockTokenCodec{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockTokenCodec) GenerateToken() (string, error) {
	ret := m.Called()
	return ret.String(0), ret.Error(1)
}

func (m *MockTokenCodec) DeriveSessionID(token string) string {
	return m.Called(token).String(0)
}

func userOrNil(args mock.Arguments, i int) *auth.User {
	if v := args.Get(i); v != nil {
		return v.(*auth.User)
	}
	return nil
}

func sessionOrNil(args mock.Arguments, i int) *auth.Session {
	if v := args.Get(i); v != nil {
		return v.(*auth.Session)
	}
	return nil
}

var (
	_ auth.SessionStore          = (*MockSessionStore)(nil)
	_ auth.ExpiredSessionSweeper = (*MockExpiredSessionSweeper)(nil)
	_ auth.PasswordHasher        = (*MockPasswordHasher)(nil)
	_ auth.TokenCodec            = (*MockTokenCodec)(nil)
)
