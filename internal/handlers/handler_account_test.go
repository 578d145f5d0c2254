package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/corebanking/ledgersvc/internal/apperrors"
	"github.com/corebanking/ledgersvc/internal/core/domain"
	portssvc "github.com/corebanking/ledgersvc/internal/core/ports/services"
	"github.com/corebanking/ledgersvc/internal/dto"
	"github.com/corebanking/ledgersvc/internal/handlers"
	"github.com/corebanking/ledgersvc/internal/middleware"
)

// --- Mock LedgerService ---
type MockLedgerService struct {
	mock.Mock
}

func (m *MockLedgerService) OpenAccount(ctx context.Context, ownerID uuid.UUID, req dto.OpenAccountRequest) (*domain.Account, error) {
	args := m.Called(ctx, ownerID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *MockLedgerService) GetAccount(ctx context.Context, accountID int64, ownerID uuid.UUID) (*domain.Account, error) {
	args := m.Called(ctx, accountID, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *MockLedgerService) ListAccounts(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]domain.Account, error) {
	args := m.Called(ctx, ownerID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Account), args.Error(1)
}

func (m *MockLedgerService) Credit(ctx context.Context, accountID int64, ownerID uuid.UUID, amount decimal.Decimal) (*domain.Account, error) {
	args := m.Called(ctx, accountID, ownerID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *MockLedgerService) Debit(ctx context.Context, accountID int64, ownerID uuid.UUID, amount decimal.Decimal) (*domain.Account, error) {
	args := m.Called(ctx, accountID, ownerID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *MockLedgerService) Transfer(ctx context.Context, ownerID uuid.UUID, req dto.TransferRequest) error {
	args := m.Called(ctx, ownerID, req)
	return args.Error(0)
}

func (m *MockLedgerService) CloseAccount(ctx context.Context, accountID int64, ownerID uuid.UUID) error {
	args := m.Called(ctx, accountID, ownerID)
	return args.Error(0)
}

func (m *MockLedgerService) ListTransactions(ctx context.Context, accountID int64, ownerID uuid.UUID, limit, offset int) ([]domain.Transaction, error) {
	args := m.Called(ctx, accountID, ownerID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Transaction), args.Error(1)
}

// Ensure mock implements the interface
var _ portssvc.LedgerSvcFacade = (*MockLedgerService)(nil)

// --- Test Suite Setup ---

type AccountHandlerTestSuite struct {
	suite.Suite
	router      *gin.Engine
	mockService *MockLedgerService
	ownerID     uuid.UUID
}

func (suite *AccountHandlerTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	suite.mockService = new(MockLedgerService)
	suite.ownerID = uuid.New()
	suite.router = gin.New()
	handlers.RegisterRoutes(suite.router, suite.mockService)
}

// doRequest performs a request with the owner identity header set.
func (suite *AccountHandlerTestSuite) doRequest(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		suite.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.OwnerIDHeader, suite.ownerID.String())
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func (suite *AccountHandlerTestSuite) account(accountID int64, balance string) *domain.Account {
	return &domain.Account{
		AccountID:   accountID,
		OwnerID:     suite.ownerID,
		AccountType: domain.Checking,
		Currency:    domain.RUB,
		Balance:     decimal.RequireFromString(balance),
		OpenDate:    time.Now().UTC(),
		Version:     1,
	}
}

// --- Test Cases ---

func (suite *AccountHandlerTestSuite) TestOpenAccount_Success() {
	account := suite.account(42, "0")
	suite.mockService.On("OpenAccount", mock.Anything, suite.ownerID, mock.AnythingOfType("dto.OpenAccountRequest")).Return(account, nil).Once()

	w := suite.doRequest(http.MethodPost, "/api/v1/accounts", gin.H{
		"accountType": "checking",
		"currency":    "rub",
	})

	suite.Equal(http.StatusCreated, w.Code)
	var resp dto.AccountResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	suite.Equal(int64(42), resp.AccountID)
	suite.mockService.AssertExpectations(suite.T())
}

func (suite *AccountHandlerTestSuite) TestOpenAccount_MissingOwnerHeaderUnauthorized() {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/accounts", bytes.NewBufferString(`{"accountType":"checking","currency":"rub"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	suite.Equal(http.StatusUnauthorized, w.Code)
	suite.mockService.AssertNotCalled(suite.T(), "OpenAccount", mock.Anything, mock.Anything, mock.Anything)
}

func (suite *AccountHandlerTestSuite) TestOpenAccount_ValidationErrorBadRequest() {
	suite.mockService.On("OpenAccount", mock.Anything, suite.ownerID, mock.Anything).
		Return(nil, fmt.Errorf("%w: unknown account type", apperrors.ErrValidation)).Once()

	w := suite.doRequest(http.MethodPost, "/api/v1/accounts", gin.H{
		"accountType": "savings",
		"currency":    "rub",
	})

	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *AccountHandlerTestSuite) TestGetAccount_NotFound() {
	suite.mockService.On("GetAccount", mock.Anything, int64(9), suite.ownerID).Return(nil, apperrors.ErrNotFound).Once()

	w := suite.doRequest(http.MethodGet, "/api/v1/accounts/9", nil)
	suite.Equal(http.StatusNotFound, w.Code)
}

func (suite *AccountHandlerTestSuite) TestGetAccount_BadIDFormat() {
	w := suite.doRequest(http.MethodGet, "/api/v1/accounts/abc", nil)
	suite.Equal(http.StatusBadRequest, w.Code)
	suite.mockService.AssertNotCalled(suite.T(), "GetAccount", mock.Anything, mock.Anything, mock.Anything)
}

func (suite *AccountHandlerTestSuite) TestCredit_Success() {
	updated := suite.account(7, "150")
	suite.mockService.On("Credit", mock.Anything, int64(7), suite.ownerID, mock.MatchedBy(func(d decimal.Decimal) bool {
		return d.Equal(decimal.RequireFromString("50"))
	})).Return(updated, nil).Once()

	w := suite.doRequest(http.MethodPost, "/api/v1/accounts/7/credit", gin.H{"amount": "50"})

	suite.Equal(http.StatusOK, w.Code)
	var resp dto.AccountResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	suite.True(resp.Balance.Equal(decimal.RequireFromString("150")))
}

func (suite *AccountHandlerTestSuite) TestDebit_BlockedOwnerForbidden() {
	suite.mockService.On("Debit", mock.Anything, int64(7), suite.ownerID, mock.Anything).
		Return(nil, fmt.Errorf("%w: owner is blocked", apperrors.ErrForbidden)).Once()

	w := suite.doRequest(http.MethodPost, "/api/v1/accounts/7/debit", gin.H{"amount": "50"})
	suite.Equal(http.StatusForbidden, w.Code)
}

func (suite *AccountHandlerTestSuite) TestDebit_VersionConflict() {
	suite.mockService.On("Debit", mock.Anything, int64(7), suite.ownerID, mock.Anything).
		Return(nil, apperrors.ErrConflict).Once()

	w := suite.doRequest(http.MethodPost, "/api/v1/accounts/7/debit", gin.H{"amount": "50"})
	suite.Equal(http.StatusConflict, w.Code)
}

func (suite *AccountHandlerTestSuite) TestCloseAccount_Success() {
	suite.mockService.On("CloseAccount", mock.Anything, int64(7), suite.ownerID).Return(nil).Once()

	w := suite.doRequest(http.MethodPost, "/api/v1/accounts/7/close", nil)
	suite.Equal(http.StatusNoContent, w.Code)
}

func (suite *AccountHandlerTestSuite) TestTransfer_Success() {
	suite.mockService.On("Transfer", mock.Anything, suite.ownerID, mock.MatchedBy(func(req dto.TransferRequest) bool {
		return req.FromAccountID == 1 && req.ToAccountID == 2 && req.Amount.Equal(decimal.RequireFromString("300"))
	})).Return(nil).Once()

	w := suite.doRequest(http.MethodPost, "/api/v1/transfers", gin.H{
		"fromAccountId": 1,
		"toAccountId":   2,
		"amount":        "300",
	})
	suite.Equal(http.StatusNoContent, w.Code)
	suite.mockService.AssertExpectations(suite.T())
}

func (suite *AccountHandlerTestSuite) TestTransfer_InsufficientFundsBadRequest() {
	suite.mockService.On("Transfer", mock.Anything, suite.ownerID, mock.Anything).
		Return(fmt.Errorf("%w: insufficient funds", apperrors.ErrValidation)).Once()

	w := suite.doRequest(http.MethodPost, "/api/v1/transfers", gin.H{
		"fromAccountId": 1,
		"toAccountId":   2,
		"amount":        "300",
	})
	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *AccountHandlerTestSuite) TestListTransactions_Success() {
	entries := []domain.Transaction{{
		TransactionID:   uuid.New(),
		AccountID:       7,
		Amount:          decimal.RequireFromString("50"),
		Currency:        domain.RUB,
		TransactionType: domain.CreditEntry,
		Description:     "Deposit",
		Timestamp:       time.Now().UTC(),
	}}
	suite.mockService.On("ListTransactions", mock.Anything, int64(7), suite.ownerID, 20, 0).Return(entries, nil).Once()

	w := suite.doRequest(http.MethodGet, "/api/v1/accounts/7/transactions", nil)

	suite.Equal(http.StatusOK, w.Code)
	var resp struct {
		Transactions []dto.TransactionResponse `json:"transactions"`
	}
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	suite.Require().Len(resp.Transactions, 1)
	suite.Equal("Deposit", resp.Transactions[0].Description)
}

func TestAccountHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(AccountHandlerTestSuite))
}
