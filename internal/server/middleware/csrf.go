package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nulzo/model-control-plane/pkg/api"
)

// AntiForgery requires mutating requests to carry the per-session
// anti-forgery token. The token itself is opaque here: an external
// middleware owns issuing and validating it, this layer only refuses
// requests that dropped it.
func AntiForgery() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
			if c.GetHeader("X-CSRF-Token") == "" {
				c.AbortWithStatusJSON(http.StatusForbidden,
					api.NewProblem(http.StatusForbidden, "Forbidden", "Missing anti-forgery token"))
				return
			}
		}
		c.Next()
	}
}
