package handler

import (
	"github.com/gin-gonic/gin"
	lettingapp "github.com/letably/backend/internal/application/letting"
)

// AgencyHandler handles agency onboarding and lookup API endpoints
type AgencyHandler struct {
	BaseHandler
	agencyService *lettingapp.AgencyService
}

// NewAgencyHandler creates a new AgencyHandler
func NewAgencyHandler(agencyService *lettingapp.AgencyService) *AgencyHandler {
	return &AgencyHandler{
		agencyService: agencyService,
	}
}

// CreateAgencyRequest represents a request to register an agency
type CreateAgencyRequest struct {
	Name string `json:"name" binding:"required,min=1,max=200"`
	Code string `json:"code" binding:"required,min=2,max=20,alphanum"`
}

// Create registers a new agency. Onboarding runs before any agency context
// exists, so this route sits outside the agency-scoped group.
func (h *AgencyHandler) Create(c *gin.Context) {
	var req CreateAgencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	agency, err := h.agencyService.CreateAgency(c.Request.Context(), req.Name, req.Code)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, agency)
}

// GetCurrent returns the agency resolved for the request
func (h *AgencyHandler) GetCurrent(c *gin.Context) {
	agencyID, err := getAgencyID(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	agency, err := h.agencyService.GetAgency(c.Request.Context(), agencyID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, agency)
}
