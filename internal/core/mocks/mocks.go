package mocks

import (
	"context"
	"sync"

	"github.com/lorrc/service-desk-realtime/internal/core/domain"
	"github.com/lorrc/service-desk-realtime/internal/core/ports"
	"github.com/stretchr/testify/mock"
)

// MockNotificationAPI is a mock implementation of ports.NotificationAPI
type MockNotificationAPI struct {
	mock.Mock
}

func NewMockNotificationAPI() *MockNotificationAPI {
	return &MockNotificationAPI{}
}

func (m *MockNotificationAPI) ListNotifications(ctx context.Context) (*domain.NotificationPage, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.NotificationPage), args.Error(1)
}

func (m *MockNotificationAPI) MarkNotificationRead(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockTokenRefresher is a mock implementation of ports.TokenRefresher
type MockTokenRefresher struct {
	mock.Mock
}

func NewMockTokenRefresher() *MockTokenRefresher {
	return &MockTokenRefresher{}
}

func (m *MockTokenRefresher) RefreshToken(ctx context.Context, refreshToken string) (domain.Credential, error) {
	args := m.Called(ctx, refreshToken)
	return args.Get(0).(domain.Credential), args.Error(1)
}

// MockTokenStore is a mock implementation of ports.TokenStore
type MockTokenStore struct {
	mock.Mock
}

func NewMockTokenStore() *MockTokenStore {
	return &MockTokenStore{}
}

func (m *MockTokenStore) Load(ctx context.Context) (domain.Credential, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.Credential), args.Error(1)
}

func (m *MockTokenStore) Save(ctx context.Context, cred domain.Credential) error {
	args := m.Called(ctx, cred)
	return args.Error(0)
}

func (m *MockTokenStore) Clear(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockIdentityResolver is a mock implementation of ports.IdentityResolver
type MockIdentityResolver struct {
	mock.Mock
}

func NewMockIdentityResolver() *MockIdentityResolver {
	return &MockIdentityResolver{}
}

func (m *MockIdentityResolver) Resolve(accessToken string) (domain.Identity, error) {
	args := m.Called(accessToken)
	return args.Get(0).(domain.Identity), args.Error(1)
}

// MockIdentitySource is a mock implementation of ports.IdentitySource
type MockIdentitySource struct {
	mock.Mock
}

func NewMockIdentitySource() *MockIdentitySource {
	return &MockIdentitySource{}
}

func (m *MockIdentitySource) Identity() (domain.Identity, error) {
	args := m.Called()
	return args.Get(0).(domain.Identity), args.Error(1)
}

// MockAlerter is a mock implementation of ports.Alerter
type MockAlerter struct {
	mock.Mock
}

func NewMockAlerter() *MockAlerter {
	return &MockAlerter{}
}

func (m *MockAlerter) Alert(n domain.Notification) {
	m.Called(n)
}

// MockChannel is a mock implementation of ports.Channel. Emitted commands
// are also recorded so tests can assert on order.
type MockChannel struct {
	mock.Mock

	mu      sync.Mutex
	emitted []domain.Command
}

func NewMockChannel() *MockChannel {
	return &MockChannel{}
}

func (m *MockChannel) ID() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockChannel) State() domain.ConnectionState {
	args := m.Called()
	return args.Get(0).(domain.ConnectionState)
}

func (m *MockChannel) Connected() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockChannel) Emit(cmd domain.Command) error {
	m.mu.Lock()
	m.emitted = append(m.emitted, cmd)
	m.mu.Unlock()

	args := m.Called(cmd)
	return args.Error(0)
}

// Emitted returns a copy of every command passed to Emit.
func (m *MockChannel) Emitted() []domain.Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Command(nil), m.emitted...)
}

// EmittedTypes returns the type of every command passed to Emit.
func (m *MockChannel) EmittedTypes() []string {
	cmds := m.Emitted()
	types := make([]string, len(cmds))
	for i, c := range cmds {
		types[i] = c.Type
	}
	return types
}

// MockChannelProvider is a mock implementation of ports.ChannelProvider
type MockChannelProvider struct {
	mock.Mock
}

func NewMockChannelProvider() *MockChannelProvider {
	return &MockChannelProvider{}
}

func (m *MockChannelProvider) Acquire(ctx context.Context) ports.Channel {
	args := m.Called(ctx)
	return args.Get(0).(ports.Channel)
}

func (m *MockChannelProvider) Current() ports.Channel {
	args := m.Called()
	return args.Get(0).(ports.Channel)
}

func (m *MockChannelProvider) ReportHealth(healthy bool) {
	m.Called(healthy)
}

// MockRefresher is a mock implementation of ports.Refresher
type MockRefresher struct {
	mock.Mock
}

func NewMockRefresher() *MockRefresher {
	return &MockRefresher{}
}

func (m *MockRefresher) Refresh(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockRefreshTrigger is a mock implementation of ports.RefreshTrigger
type MockRefreshTrigger struct {
	mock.Mock
}

func NewMockRefreshTrigger() *MockRefreshTrigger {
	return &MockRefreshTrigger{}
}

func (m *MockRefreshTrigger) Trigger() {
	m.Called()
}

// MockRealtimeService is a mock implementation of ports.RealtimeService
type MockRealtimeService struct {
	mock.Mock
}

func NewMockRealtimeService() *MockRealtimeService {
	return &MockRealtimeService{}
}

func (m *MockRealtimeService) NotificationView() domain.NotificationView {
	args := m.Called()
	return args.Get(0).(domain.NotificationView)
}

func (m *MockRealtimeService) MarkAsRead(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRealtimeService) RefreshNow() {
	m.Called()
}

func (m *MockRealtimeService) UnreadView() domain.UnreadView {
	args := m.Called()
	return args.Get(0).(domain.UnreadView)
}

func (m *MockRealtimeService) IsUnread(entityType domain.EntityType, id string) bool {
	args := m.Called(entityType, id)
	return args.Bool(0)
}

func (m *MockRealtimeService) IsHighlighted(entityType domain.EntityType, id string) bool {
	args := m.Called(entityType, id)
	return args.Bool(0)
}

func (m *MockRealtimeService) MarkEntityRead(entityType domain.EntityType, id string) error {
	args := m.Called(entityType, id)
	return args.Error(0)
}

func (m *MockRealtimeService) SyncStatus() domain.SyncStatus {
	args := m.Called()
	return args.Get(0).(domain.SyncStatus)
}
