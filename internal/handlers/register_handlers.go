package handlers

import (
	"github.com/gin-gonic/gin"

	portssvc "github.com/corebanking/ledgersvc/internal/core/ports/services"
	"github.com/corebanking/ledgersvc/internal/middleware"
)

// RegisterRoutes sets up all application routes, injecting dependencies using interfaces
func RegisterRoutes(r *gin.Engine, ledgerService portssvc.LedgerSvcFacade) {
	// Add health check route
	r.GET("/health", func(c *gin.Context) {
		c.String(200, "OK")
	})

	setupAPIV1Routes(r, ledgerService)
}

// setupAPIV1Routes configures the /api/v1 group and delegates to specific entity route registrations
func setupAPIV1Routes(r *gin.Engine, ledgerService portssvc.LedgerSvcFacade) {
	v1 := r.Group("/api/v1", middleware.OwnerIdentityMiddleware())

	registerAccountRoutes(v1, ledgerService)
	registerTransferRoutes(v1, ledgerService)
}
