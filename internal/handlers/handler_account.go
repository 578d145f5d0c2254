package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/corebanking/ledgersvc/internal/apperrors"
	portssvc "github.com/corebanking/ledgersvc/internal/core/ports/services"
	"github.com/corebanking/ledgersvc/internal/dto"
	"github.com/corebanking/ledgersvc/internal/middleware"
)

// accountHandler handles HTTP requests related to accounts.
type accountHandler struct {
	ledgerService portssvc.LedgerSvcFacade
}

// newAccountHandler creates a new accountHandler.
func newAccountHandler(ls portssvc.LedgerSvcFacade) *accountHandler {
	return &accountHandler{
		ledgerService: ls,
	}
}

// registerAccountRoutes registers routes related to accounts.
func registerAccountRoutes(rg *gin.RouterGroup, ledgerService portssvc.LedgerSvcFacade) {
	h := newAccountHandler(ledgerService)

	accounts := rg.Group("/accounts")
	{
		accounts.POST("", h.openAccount)
		accounts.GET("", h.listAccounts)
		accounts.GET("/:id", h.getAccount)
		accounts.POST("/:id/credit", h.credit)
		accounts.POST("/:id/debit", h.debit)
		accounts.POST("/:id/close", h.closeAccount)
		accounts.GET("/:id/transactions", h.listTransactions)
	}
}

// accountIDParam parses the :id path parameter. Writes the 400 response
// itself and returns false when the parameter is not a number.
func accountIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid account ID format"})
		return 0, false
	}
	return id, true
}

func (h *accountHandler) openAccount(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.OpenAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for OpenAccount", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	ownerID, ok := middleware.GetOwnerIDFromCtx(c.Request.Context())
	if !ok {
		logger.Error("Owner ID not found in context")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	account, err := h.ledgerService.OpenAccount(c.Request.Context(), ownerID, req)
	if err != nil {
		if errors.Is(err, apperrors.ErrValidation) {
			logger.Warn("Validation error opening account", slog.String("error", err.Error()))
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		} else {
			logger.Error("Failed to open account", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to open account"})
		}
		return
	}

	logger.Info("Account opened", slog.Int64("account_id", account.AccountID))
	c.JSON(http.StatusCreated, dto.ToAccountResponse(account))
}

func (h *accountHandler) getAccount(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	accountID, ok := accountIDParam(c)
	if !ok {
		return
	}
	ownerID, ok := middleware.GetOwnerIDFromCtx(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	account, err := h.ledgerService.GetAccount(c.Request.Context(), accountID, ownerID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Account not found"})
		} else {
			logger.Error("Failed to get account", slog.Int64("account_id", accountID), slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get account"})
		}
		return
	}
	c.JSON(http.StatusOK, dto.ToAccountResponse(account))
}

func (h *accountHandler) listAccounts(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	ownerID, ok := middleware.GetOwnerIDFromCtx(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	limit, offset := paginationParams(c)

	accounts, err := h.ledgerService.ListAccounts(c.Request.Context(), ownerID, limit, offset)
	if err != nil {
		logger.Error("Failed to list accounts", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list accounts"})
		return
	}

	resp := make([]dto.AccountResponse, len(accounts))
	for i := range accounts {
		resp[i] = dto.ToAccountResponse(&accounts[i])
	}
	c.JSON(http.StatusOK, gin.H{"accounts": resp})
}

func (h *accountHandler) credit(c *gin.Context) {
	h.applyAmount(c, "credit", h.ledgerService.Credit)
}

func (h *accountHandler) debit(c *gin.Context) {
	h.applyAmount(c, "debit", h.ledgerService.Debit)
}

// applyAmount binds an amount payload and runs one balance mutation,
// mapping service errors onto HTTP statuses the same way for both verbs.
func (h *accountHandler) applyAmount(c *gin.Context, verb string, op portssvc.BalanceOp) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	accountID, ok := accountIDParam(c)
	if !ok {
		return
	}
	ownerID, ok := middleware.GetOwnerIDFromCtx(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req dto.AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for "+verb, slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	account, err := op(c.Request.Context(), accountID, ownerID, req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Account not found"})
		case errors.Is(err, apperrors.ErrForbidden):
			logger.Warn("Blocked client attempted "+verb, slog.Int64("account_id", accountID))
			c.JSON(http.StatusForbidden, gin.H{"error": "Operation not allowed"})
		case errors.Is(err, apperrors.ErrConflict):
			c.JSON(http.StatusConflict, gin.H{"error": "Account was modified concurrently, retry the operation"})
		case errors.Is(err, apperrors.ErrValidation):
			logger.Warn("Validation error on "+verb, slog.Int64("account_id", accountID), slog.String("error", err.Error()))
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			logger.Error("Failed to "+verb+" account", slog.Int64("account_id", accountID), slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to " + verb + " account"})
		}
		return
	}

	logger.Info("Balance updated",
		slog.String("operation", verb),
		slog.Int64("account_id", accountID),
		slog.String("amount", req.Amount.String()),
	)
	c.JSON(http.StatusOK, dto.ToAccountResponse(account))
}

func (h *accountHandler) closeAccount(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	accountID, ok := accountIDParam(c)
	if !ok {
		return
	}
	ownerID, ok := middleware.GetOwnerIDFromCtx(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	if err := h.ledgerService.CloseAccount(c.Request.Context(), accountID, ownerID); err != nil {
		switch {
		case errors.Is(err, apperrors.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Account not found"})
		case errors.Is(err, apperrors.ErrConflict):
			c.JSON(http.StatusConflict, gin.H{"error": "Account was modified concurrently, retry the operation"})
		case errors.Is(err, apperrors.ErrValidation):
			logger.Warn("Validation error closing account", slog.Int64("account_id", accountID), slog.String("error", err.Error()))
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			logger.Error("Failed to close account", slog.Int64("account_id", accountID), slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to close account"})
		}
		return
	}

	logger.Info("Account closed", slog.Int64("account_id", accountID))
	c.Status(http.StatusNoContent)
}

func (h *accountHandler) listTransactions(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	accountID, ok := accountIDParam(c)
	if !ok {
		return
	}
	ownerID, ok := middleware.GetOwnerIDFromCtx(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	limit, offset := paginationParams(c)

	txns, err := h.ledgerService.ListTransactions(c.Request.Context(), accountID, ownerID, limit, offset)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Account not found"})
		} else {
			logger.Error("Failed to list transactions", slog.Int64("account_id", accountID), slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list transactions"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": dto.ToTransactionResponses(txns)})
}

// paginationParams reads limit/offset query parameters with defaults.
func paginationParams(c *gin.Context) (limit, offset int) {
	limit = 20
	offset = 0
	if v, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil && v > 0 && v <= 100 {
		limit = v
	}
	if v, err := strconv.Atoi(c.DefaultQuery("offset", "0")); err == nil && v >= 0 {
		offset = v
	}
	return limit, offset
}
