package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// OwnerIDHeader carries the caller's owner id. Identity issuance and token
// verification live in the gateway in front of this service.
const OwnerIDHeader = "X-Owner-ID"

// OwnerIdentityMiddleware extracts and validates the owner id header and
// stores it in the request context for ownership checks downstream.
func OwnerIdentityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(OwnerIDHeader)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing " + OwnerIDHeader + " header"})
			return
		}
		ownerID, err := uuid.Parse(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid " + OwnerIDHeader + " header"})
			return
		}
		c.Request = c.Request.WithContext(ContextWithOwnerID(c.Request.Context(), ownerID))
		c.Next()
	}
}
