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

type CredentialHandler struct {
	credentials *service.CredentialService
}

func NewCredentialHandler(credentials *service.CredentialService) *CredentialHandler {
	return &CredentialHandler{credentials: credentials}
}

// POST /v1/teams/:teamId/credentials
func (h *CredentialHandler) Add(c *gin.Context) {
	var req api.AddCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(api.ValidationError(validator.ParseValidationError(err)))
		return
	}

	teamID := c.Param("teamId")
	credential, err := h.credentials.Add(c.Request.Context(), middleware.OrgID(c), teamID, req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, api.MutationResponse{
		ID:       credential.ID,
		Redirect: fmt.Sprintf("/%s/credentials", teamID),
	})
}

// List returns the team's credentials with auth material omitted.
//
// GET /v1/teams/:teamId/credentials
func (h *CredentialHandler) List(c *gin.Context) {
	credentials, err := h.credentials.ListByTeam(c.Request.Context(), c.Param("teamId"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"credentials": credentials})
}

// GET /v1/teams/:teamId/credentials/:credentialId
func (h *CredentialHandler) Get(c *gin.Context) {
	credential, err := h.credentials.Get(c.Request.Context(), c.Param("teamId"), c.Param("credentialId"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"credential": credential})
}

// DELETE /v1/teams/:teamId/credentials/:credentialId
func (h *CredentialHandler) Delete(c *gin.Context) {
	if err := h.credentials.Delete(c.Request.Context(), c.Param("teamId"), c.Param("credentialId")); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, api.MutationResponse{})
}
