package services_test

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/corebanking/ledgersvc/internal/core/domain"
	portsmsg "github.com/corebanking/ledgersvc/internal/core/ports/messaging"
	portssvc "github.com/corebanking/ledgersvc/internal/core/ports/services"
	"github.com/corebanking/ledgersvc/internal/core/services"
)

// MockOutboxDrainSupport is a mock type for the OutboxDrainSupport interface
type MockOutboxDrainSupport struct {
	mock.Mock
}

func (m *MockOutboxDrainSupport) ListPendingMessages(ctx context.Context) ([]domain.OutboxMessage, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.OutboxMessage), args.Error(1)
}

func (m *MockOutboxDrainSupport) DeleteMessage(ctx context.Context, messageID uuid.UUID) error {
	args := m.Called(ctx, messageID)
	return args.Error(0)
}

func (m *MockOutboxDrainSupport) IncrementTryCount(ctx context.Context, messageID uuid.UUID) error {
	args := m.Called(ctx, messageID)
	return args.Error(0)
}

// MockPublisher is a mock type for the Publisher interface
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) EnsureOpen(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockPublisher) Publish(ctx context.Context, message domain.OutboxMessage) (portsmsg.Confirmation, error) {
	args := m.Called(ctx, message)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(portsmsg.Confirmation), args.Error(1)
}

// stubConfirmation settles immediately with a fixed outcome.
type stubConfirmation struct {
	acked bool
	err   error
}

func (c stubConfirmation) Wait(_ context.Context) (bool, error) {
	return c.acked, c.err
}

// ctxSensitiveConfirmation acks unless the context it is awaited with has
// already been cancelled.
type ctxSensitiveConfirmation struct{}

func (c ctxSensitiveConfirmation) Wait(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return true, nil
}

// --- Test Suite Setup ---

type OutboxServiceTestSuite struct {
	suite.Suite
	mockRepo      *MockOutboxDrainSupport
	mockPublisher *MockPublisher
	service       portssvc.OutboxSvcFacade
}

func (suite *OutboxServiceTestSuite) SetupTest() {
	suite.mockRepo = new(MockOutboxDrainSupport)
	suite.mockPublisher = new(MockPublisher)
	suite.service = services.NewOutboxService(suite.mockRepo, suite.mockPublisher, 2, slog.Default())
}

func pendingMessage(eventType domain.EventType) domain.OutboxMessage {
	return domain.OutboxMessage{
		MessageID:     uuid.New(),
		EventID:       uuid.New(),
		CorrelationID: uuid.New(),
		CausationID:   uuid.New(),
		EventType:     eventType,
		Payload:       []byte(`{}`),
		CreatedAt:     time.Now().UTC(),
	}
}

// --- Test Cases ---

func (suite *OutboxServiceTestSuite) TestDrain_ConfirmedMessageDeleted() {
	ctx := context.Background()
	msg := pendingMessage(domain.MoneyCredited)

	suite.mockPublisher.On("EnsureOpen", ctx).Return(nil).Once()
	suite.mockRepo.On("ListPendingMessages", ctx).Return([]domain.OutboxMessage{msg}, nil).Once()
	suite.mockPublisher.On("Publish", ctx, msg).Return(stubConfirmation{acked: true}, nil).Once()
	suite.mockRepo.On("DeleteMessage", mock.Anything, msg.MessageID).Return(nil).Once()

	err := suite.service.Drain(ctx)

	suite.Require().NoError(err)
	suite.mockRepo.AssertExpectations(suite.T())
	suite.mockPublisher.AssertExpectations(suite.T())
}

func (suite *OutboxServiceTestSuite) TestDrain_RejectedMessageKept() {
	ctx := context.Background()
	msg := pendingMessage(domain.MoneyDebited)

	suite.mockPublisher.On("EnsureOpen", ctx).Return(nil).Once()
	suite.mockRepo.On("ListPendingMessages", ctx).Return([]domain.OutboxMessage{msg}, nil).Once()
	suite.mockPublisher.On("Publish", ctx, msg).Return(stubConfirmation{acked: false}, nil).Once()
	suite.mockRepo.On("IncrementTryCount", mock.Anything, msg.MessageID).Return(nil).Once()

	err := suite.service.Drain(ctx)

	suite.Require().NoError(err)
	suite.mockRepo.AssertNotCalled(suite.T(), "DeleteMessage", mock.Anything, mock.Anything)
	suite.mockRepo.AssertExpectations(suite.T())
}

func (suite *OutboxServiceTestSuite) TestDrain_PublishErrorKeepsMessage() {
	ctx := context.Background()
	msg := pendingMessage(domain.AccountOpened)

	suite.mockPublisher.On("EnsureOpen", ctx).Return(nil).Once()
	suite.mockRepo.On("ListPendingMessages", ctx).Return([]domain.OutboxMessage{msg}, nil).Once()
	suite.mockPublisher.On("Publish", ctx, msg).Return(nil, fmt.Errorf("channel closed")).Once()
	suite.mockRepo.On("IncrementTryCount", mock.Anything, msg.MessageID).Return(nil).Once()

	err := suite.service.Drain(ctx)

	suite.Require().NoError(err)
	suite.mockRepo.AssertNotCalled(suite.T(), "DeleteMessage", mock.Anything, mock.Anything)
	suite.mockRepo.AssertExpectations(suite.T())
}

func (suite *OutboxServiceTestSuite) TestDrain_BrokerDownLeavesOutboxIntact() {
	ctx := context.Background()

	suite.mockPublisher.On("EnsureOpen", ctx).Return(fmt.Errorf("connection refused")).Once()

	err := suite.service.Drain(ctx)

	suite.Require().Error(err)
	suite.mockRepo.AssertNotCalled(suite.T(), "ListPendingMessages", mock.Anything)
	suite.mockRepo.AssertNotCalled(suite.T(), "DeleteMessage", mock.Anything, mock.Anything)
}

func (suite *OutboxServiceTestSuite) TestDrain_MixedOutcomesSettledPerMessage() {
	ctx := context.Background()
	confirmed := pendingMessage(domain.TransferCompleted)
	rejected := pendingMessage(domain.InterestAccrued)
	failed := pendingMessage(domain.MoneyCredited)

	suite.mockPublisher.On("EnsureOpen", ctx).Return(nil).Once()
	suite.mockRepo.On("ListPendingMessages", ctx).Return([]domain.OutboxMessage{confirmed, rejected, failed}, nil).Once()
	suite.mockPublisher.On("Publish", ctx, confirmed).Return(stubConfirmation{acked: true}, nil).Once()
	suite.mockPublisher.On("Publish", ctx, rejected).Return(stubConfirmation{acked: false}, nil).Once()
	suite.mockPublisher.On("Publish", ctx, failed).Return(stubConfirmation{err: fmt.Errorf("confirm timeout")}, nil).Once()
	suite.mockRepo.On("DeleteMessage", mock.Anything, confirmed.MessageID).Return(nil).Once()
	suite.mockRepo.On("IncrementTryCount", mock.Anything, rejected.MessageID).Return(nil).Once()
	suite.mockRepo.On("IncrementTryCount", mock.Anything, failed.MessageID).Return(nil).Once()

	err := suite.service.Drain(ctx)

	suite.Require().NoError(err)
	suite.mockRepo.AssertExpectations(suite.T())
	suite.mockPublisher.AssertExpectations(suite.T())
}

func (suite *OutboxServiceTestSuite) TestDrain_ShutdownMidBatchStillSettlesPublished() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	msg := pendingMessage(domain.MoneyDebited)

	suite.mockPublisher.On("EnsureOpen", ctx).Return(nil).Once()
	suite.mockRepo.On("ListPendingMessages", ctx).Return([]domain.OutboxMessage{msg}, nil).Once()
	// Shutdown arrives while the publish is still awaiting its confirm.
	suite.mockPublisher.On("Publish", ctx, msg).Return(ctxSensitiveConfirmation{}, nil).Once().
		Run(func(mock.Arguments) { cancel() })
	suite.mockRepo.On("DeleteMessage", mock.Anything, msg.MessageID).Return(nil).Once()

	err := suite.service.Drain(ctx)

	// The in-flight message is settled and deleted, not bumped for republish.
	suite.Require().NoError(err)
	suite.mockRepo.AssertNotCalled(suite.T(), "IncrementTryCount", mock.Anything, mock.Anything)
	suite.mockRepo.AssertExpectations(suite.T())
}

func (suite *OutboxServiceTestSuite) TestDrain_DeleteFailureToleratedForRedelivery() {
	ctx := context.Background()
	msg := pendingMessage(domain.MoneyCredited)

	suite.mockPublisher.On("EnsureOpen", ctx).Return(nil).Once()
	suite.mockRepo.On("ListPendingMessages", ctx).Return([]domain.OutboxMessage{msg}, nil).Once()
	suite.mockPublisher.On("Publish", ctx, msg).Return(stubConfirmation{acked: true}, nil).Once()
	suite.mockRepo.On("DeleteMessage", mock.Anything, msg.MessageID).Return(fmt.Errorf("connection reset")).Once()

	err := suite.service.Drain(ctx)

	// The row stays for the next cycle; consumers deduplicate by message id.
	suite.Require().NoError(err)
	suite.mockRepo.AssertNotCalled(suite.T(), "IncrementTryCount", mock.Anything, mock.Anything)
}

func TestOutboxServiceTestSuite(t *testing.T) {
	suite.Run(t, new(OutboxServiceTestSuite))
}
