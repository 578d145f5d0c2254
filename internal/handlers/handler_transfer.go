package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/corebanking/ledgersvc/internal/apperrors"
	portssvc "github.com/corebanking/ledgersvc/internal/core/ports/services"
	"github.com/corebanking/ledgersvc/internal/dto"
	"github.com/corebanking/ledgersvc/internal/middleware"
)

// transferHandler handles HTTP requests that move money between accounts.
type transferHandler struct {
	ledgerService portssvc.LedgerSvcFacade
}

func newTransferHandler(ls portssvc.LedgerSvcFacade) *transferHandler {
	return &transferHandler{
		ledgerService: ls,
	}
}

// registerTransferRoutes registers routes related to transfers.
func registerTransferRoutes(rg *gin.RouterGroup, ledgerService portssvc.LedgerSvcFacade) {
	h := newTransferHandler(ledgerService)
	rg.POST("/transfers", h.transfer)
}

func (h *transferHandler) transfer(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for Transfer", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	ownerID, ok := middleware.GetOwnerIDFromCtx(c.Request.Context())
	if !ok {
		logger.Error("Owner ID not found in context")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	if err := h.ledgerService.Transfer(c.Request.Context(), ownerID, req); err != nil {
		switch {
		case errors.Is(err, apperrors.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Account not found"})
		case errors.Is(err, apperrors.ErrForbidden):
			logger.Warn("Blocked client attempted transfer",
				slog.Int64("from_account_id", req.FromAccountID),
				slog.Int64("to_account_id", req.ToAccountID),
			)
			c.JSON(http.StatusForbidden, gin.H{"error": "Operation not allowed"})
		case errors.Is(err, apperrors.ErrConflict):
			c.JSON(http.StatusConflict, gin.H{"error": "Account was modified concurrently, retry the operation"})
		case errors.Is(err, apperrors.ErrValidation):
			logger.Warn("Validation error on transfer", slog.String("error", err.Error()))
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			logger.Error("Failed to transfer", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to transfer"})
		}
		return
	}

	logger.Info("Transfer completed",
		slog.Int64("from_account_id", req.FromAccountID),
		slog.Int64("to_account_id", req.ToAccountID),
		slog.String("amount", req.Amount.String()),
	)
	c.Status(http.StatusNoContent)
}
