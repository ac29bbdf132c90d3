package v1

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nulzo/model-control-plane/internal/server/middleware"
	"github.com/nulzo/model-control-plane/internal/server/validator"
	"github.com/nulzo/model-control-plane/internal/service"
	"github.com/nulzo/model-control-plane/pkg/api"
)

type SecretHandler struct {
	secrets *service.SecretService
}

func NewSecretHandler(secrets *service.SecretService) *SecretHandler {
	return &SecretHandler{secrets: secrets}
}

// Add stores a secret. The value is accepted once here and never appears in
// any response, including this one.
//
// POST /v1/teams/:teamId/secrets
func (h *SecretHandler) Add(c *gin.Context) {
	var req api.AddSecretRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(api.ValidationError(validator.ParseValidationError(err)))
		return
	}

	teamID := c.Param("teamId")
	secret, err := h.secrets.Add(c.Request.Context(), middleware.OrgID(c), teamID, req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, api.MutationResponse{
		ID:       secret.ID,
		Redirect: fmt.Sprintf("/%s/secrets", teamID),
	})
}

// List returns the team's secrets, values omitted.
//
// GET /v1/teams/:teamId/secrets
func (h *SecretHandler) List(c *gin.Context) {
	secrets, err := h.secrets.ListByTeam(c.Request.Context(), c.Param("teamId"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"secrets": secrets})
}

// PUT /v1/teams/:teamId/secrets/:secretId
func (h *SecretHandler) Edit(c *gin.Context) {
	var req api.EditSecretRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(api.ValidationError(validator.ParseValidationError(err)))
		return
	}

	if err := h.secrets.Edit(c.Request.Context(), c.Param("teamId"), c.Param("secretId"), req); err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, api.MutationResponse{})
}

// DELETE /v1/teams/:teamId/secrets/:secretId
func (h *SecretHandler) Delete(c *gin.Context) {
	if err := h.secrets.Delete(c.Request.Context(), c.Param("teamId"), c.Param("secretId")); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, api.MutationResponse{})
}
