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

type ModelHandler struct {
	models *service.ModelService
}

func NewModelHandler(models *service.ModelService) *ModelHandler {
	return &ModelHandler{models: models}
}

// Add registers a model for the team.
//
// POST /v1/teams/:teamId/models
func (h *ModelHandler) Add(c *gin.Context) {
	var req api.AddModelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(api.ValidationError(validator.ParseValidationError(err)))
		return
	}

	teamID := c.Param("teamId")
	m, err := h.models.Add(c.Request.Context(), middleware.OrgID(c), teamID, req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, api.MutationResponse{
		ID:       m.ID,
		Redirect: fmt.Sprintf("/%s/models", teamID),
	})
}

// List returns the team's models. Derived fields are included; credential
// auth material is not.
//
// GET /v1/teams/:teamId/models
func (h *ModelHandler) List(c *gin.Context) {
	models, err := h.models.ListByTeam(c.Request.Context(), c.Param("teamId"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"models": models})
}

// GET /v1/teams/:teamId/models/:modelId
func (h *ModelHandler) Get(c *gin.Context) {
	m, err := h.models.Get(c.Request.Context(), c.Param("teamId"), c.Param("modelId"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"model": m})
}

// PUT /v1/teams/:teamId/models/:modelId
func (h *ModelHandler) Edit(c *gin.Context) {
	var req api.EditModelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(api.ValidationError(validator.ParseValidationError(err)))
		return
	}

	if err := h.models.Edit(c.Request.Context(), c.Param("teamId"), c.Param("modelId"), req); err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, api.MutationResponse{})
}

// Delete removes a model and reports the cleanup fan-out.
//
// DELETE /v1/teams/:teamId/models/:modelId
func (h *ModelHandler) Delete(c *gin.Context) {
	report, err := h.models.Delete(c.Request.Context(), c.Param("teamId"), c.Param("modelId"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"report": report})
}
