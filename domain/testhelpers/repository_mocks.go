package testhelpers

import (
	"context"
	"time"

	"gambler/arena/domain/entities"
	"gambler/arena/domain/events"
	"gambler/arena/domain/interfaces"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// MockMatchRepository is a mock implementation of MatchRepository
type MockMatchRepository struct {
	mock.Mock
}

func (m *MockMatchRepository) Create(ctx context.Context, match *entities.Match) error {
	args := m.Called(ctx, match)
	return args.Error(0)
}

func (m *MockMatchRepository) GetByID(ctx context.Context, id string) (*entities.Match, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Match), args.Error(1)
}

func (m *MockMatchRepository) GetByIDForUpdate(ctx context.Context, id string) (*entities.Match, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Match), args.Error(1)
}

func (m *MockMatchRepository) GetSnapshot(ctx context.Context, id string) (*entities.MatchSnapshot, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.MatchSnapshot), args.Error(1)
}

func (m *MockMatchRepository) Update(ctx context.Context, match *entities.Match) error {
	args := m.Called(ctx, match)
	return args.Error(0)
}

func (m *MockMatchRepository) GetExpiredOpen(ctx context.Context, now time.Time) ([]*entities.Match, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Match), args.Error(1)
}

func (m *MockMatchRepository) GetActiveMatchIDForUser(ctx context.Context, userID string) (*string, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*string), args.Error(1)
}

func (m *MockMatchRepository) ListByStatus(ctx context.Context, statuses []entities.MatchStatus, limit int) ([]*entities.Match, error) {
	args := m.Called(ctx, statuses, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Match), args.Error(1)
}

// MockParticipantRepository is a mock implementation of ParticipantRepository
type MockParticipantRepository struct {
	mock.Mock
}

func (m *MockParticipantRepository) Add(ctx context.Context, participant *entities.Participant) error {
	args := m.Called(ctx, participant)
	return args.Error(0)
}

func (m *MockParticipantRepository) Remove(ctx context.Context, matchID, userID string) error {
	args := m.Called(ctx, matchID, userID)
	return args.Error(0)
}

func (m *MockParticipantRepository) Update(ctx context.Context, participant *entities.Participant) error {
	args := m.Called(ctx, participant)
	return args.Error(0)
}

func (m *MockParticipantRepository) GetByMatch(ctx context.Context, matchID string) ([]*entities.Participant, error) {
	args := m.Called(ctx, matchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Participant), args.Error(1)
}

// MockResultRepository is a mock implementation of ResultRepository
type MockResultRepository struct {
	mock.Mock
}

func (m *MockResultRepository) Upsert(ctx context.Context, result *entities.Result) error {
	args := m.Called(ctx, result)
	return args.Error(0)
}

func (m *MockResultRepository) GetByMatch(ctx context.Context, matchID string) (*entities.Result, error) {
	args := m.Called(ctx, matchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Result), args.Error(1)
}

// MockWalletRepository is a mock implementation of WalletRepository
type MockWalletRepository struct {
	mock.Mock
}

func (m *MockWalletRepository) GetOrCreate(ctx context.Context, userID string, startingBalance decimal.Decimal) (*entities.Wallet, bool, error) {
	args := m.Called(ctx, userID, startingBalance)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*entities.Wallet), args.Bool(1), args.Error(2)
}

func (m *MockWalletRepository) GetForUpdate(ctx context.Context, userID string) (*entities.Wallet, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Wallet), args.Error(1)
}

func (m *MockWalletRepository) Update(ctx context.Context, wallet *entities.Wallet) error {
	args := m.Called(ctx, wallet)
	return args.Error(0)
}

// MockLedgerEntryRepository is a mock implementation of LedgerEntryRepository
type MockLedgerEntryRepository struct {
	mock.Mock
}

func (m *MockLedgerEntryRepository) Record(ctx context.Context, entry *entities.LedgerEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockLedgerEntryRepository) GetByMatch(ctx context.Context, matchID string) ([]*entities.LedgerEntry, error) {
	args := m.Called(ctx, matchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.LedgerEntry), args.Error(1)
}

func (m *MockLedgerEntryRepository) GetByUser(ctx context.Context, userID string, limit int) ([]*entities.LedgerEntry, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.LedgerEntry), args.Error(1)
}

// MockEventPublisher is a mock implementation of EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(event events.Event) error {
	args := m.Called(event)
	return args.Error(0)
}

// MockLedgerService is a mock implementation of LedgerService
type MockLedgerService struct {
	mock.Mock
}

func (m *MockLedgerService) result(args mock.Arguments) (entities.ActionResult, error) {
	return args.Get(0).(entities.ActionResult), args.Error(1)
}

func (m *MockLedgerService) CreateMatch(ctx context.Context, params entities.CreateMatchParams) (entities.ActionResult, error) {
	return m.result(m.Called(ctx, params))
}

func (m *MockLedgerService) LockFunds(ctx context.Context, matchID string, amount decimal.Decimal) (entities.ActionResult, error) {
	return m.result(m.Called(ctx, matchID, amount))
}

func (m *MockLedgerService) JoinMatch(ctx context.Context, matchID string, opts entities.JoinOptions) (entities.ActionResult, error) {
	return m.result(m.Called(ctx, matchID, opts))
}

func (m *MockLedgerService) LeaveMatch(ctx context.Context, matchID string) (entities.ActionResult, error) {
	return m.result(m.Called(ctx, matchID))
}

func (m *MockLedgerService) CancelMatch(ctx context.Context, matchID string) (entities.ActionResult, error) {
	return m.result(m.Called(ctx, matchID))
}

func (m *MockLedgerService) SetReady(ctx context.Context, matchID string) (entities.ActionResult, error) {
	return m.result(m.Called(ctx, matchID))
}

func (m *MockLedgerService) DeclareResult(ctx context.Context, matchID string, choice entities.ResultChoice) (entities.ActionResult, error) {
	return m.result(m.Called(ctx, matchID, choice))
}

func (m *MockLedgerService) RaiseDispute(ctx context.Context, matchID string, reason string) (entities.ActionResult, error) {
	return m.result(m.Called(ctx, matchID, reason))
}

func (m *MockLedgerService) AdminResolve(ctx context.Context, matchID string, action entities.AdminAction, notes *string) (entities.ActionResult, error) {
	return m.result(m.Called(ctx, matchID, action, notes))
}

func (m *MockLedgerService) ReadMatch(ctx context.Context, matchID string) (*entities.MatchSnapshot, error) {
	args := m.Called(ctx, matchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.MatchSnapshot), args.Error(1)
}

func (m *MockLedgerService) ReadMatchPublic(ctx context.Context, matchID string) (*entities.PublicMatchSnapshot, error) {
	args := m.Called(ctx, matchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.PublicMatchSnapshot), args.Error(1)
}

func (m *MockLedgerService) ReadWallet(ctx context.Context) (*entities.Wallet, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Wallet), args.Error(1)
}

// MockIdentityProvider is a mock implementation of IdentityProvider
type MockIdentityProvider struct {
	mock.Mock
}

func (m *MockIdentityProvider) CurrentUserID() string {
	return m.Called().String(0)
}

func (m *MockIdentityProvider) IsAdmin() bool {
	return m.Called().Bool(0)
}

// MockSubscription is a mock implementation of Subscription
type MockSubscription struct {
	mock.Mock
}

func (m *MockSubscription) Unsubscribe() error {
	return m.Called().Error(0)
}

// MockChangeChannel is a mock implementation of ChangeChannel
type MockChangeChannel struct {
	mock.Mock
}

func (m *MockChangeChannel) Subscribe(ctx context.Context, matchID string, table events.Table, handler interfaces.ChangeHandler) (interfaces.Subscription, error) {
	args := m.Called(ctx, matchID, table, handler)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(interfaces.Subscription), args.Error(1)
}
