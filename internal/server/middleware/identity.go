package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
)

type contextKey string

// ContextKeyOrgID carries the caller's organization id through the request
// context.
const ContextKeyOrgID contextKey = "org_id"

// Identity extracts the X-Org-ID header so handlers can stamp records with
// the owning organization.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID := c.GetHeader("X-Org-ID")
		if orgID != "" {
			ctx := context.WithValue(c.Request.Context(), ContextKeyOrgID, orgID)
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}
}

// OrgID returns the organization id from the request context, empty when the
// caller sent none.
func OrgID(c *gin.Context) string {
	if v, ok := c.Request.Context().Value(ContextKeyOrgID).(string); ok {
		return v
	}
	return ""
}
