package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	lettingapp "github.com/letably/backend/internal/application/letting"
	"github.com/letably/backend/internal/domain/letting"
	"github.com/letably/backend/internal/domain/shared"
	"github.com/letably/backend/internal/interfaces/http/dto"
)

// TenancyHandler handles tenancy lifecycle API endpoints
type TenancyHandler struct {
	BaseHandler
	tenancyService *lettingapp.TenancyService
}

// NewTenancyHandler creates a new TenancyHandler
func NewTenancyHandler(tenancyService *lettingapp.TenancyService) *TenancyHandler {
	return &TenancyHandler{
		tenancyService: tenancyService,
	}
}

// TenancyMemberRequest represents a member in a tenancy request
type TenancyMemberRequest struct {
	FullName  string  `json:"full_name" binding:"required,min=1,max=200"`
	Email     string  `json:"email" binding:"omitempty,email,max=200"`
	RentShare float64 `json:"rent_share" binding:"min=0"`
}

// CreateTenancyRequest represents a request to create a tenancy
type CreateTenancyRequest struct {
	PropertyRef string                 `json:"property_ref" binding:"required,min=1,max=200"`
	StartDate   string                 `json:"start_date" binding:"required,datetime=2006-01-02"`
	EndDate     string                 `json:"end_date" binding:"required,datetime=2006-01-02"`
	RentAmount  float64                `json:"rent_amount" binding:"required,gt=0"`
	RentDueDay  int                    `json:"rent_due_day" binding:"required,min=1,max=28"`
	Members     []TenancyMemberRequest `json:"members" binding:"omitempty,dive"`
}

// ListTenanciesRequest represents tenancy list query parameters
type ListTenanciesRequest struct {
	dto.ListRequest
	Status      string `form:"status" binding:"omitempty,oneof=pending awaiting_signatures active expired"`
	PropertyRef string `form:"property_ref" binding:"omitempty,max=200"`
}

// Create creates a tenancy in pending state
func (h *TenancyHandler) Create(c *gin.Context) {
	agencyID, err := getAgencyID(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	var req CreateTenancyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	startDate, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		h.BadRequest(c, "Invalid start date format")
		return
	}
	endDate, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		h.BadRequest(c, "Invalid end date format")
		return
	}

	members := make([]lettingapp.MemberInput, 0, len(req.Members))
	for _, m := range req.Members {
		members = append(members, lettingapp.MemberInput{
			FullName:  m.FullName,
			Email:     m.Email,
			RentShare: toDecimal(m.RentShare),
		})
	}

	tenancy, err := h.tenancyService.CreateTenancy(c.Request.Context(), lettingapp.CreateTenancyInput{
		AgencyID:    agencyID,
		PropertyRef: req.PropertyRef,
		StartDate:   startDate,
		EndDate:     endDate,
		RentAmount:  toDecimal(req.RentAmount),
		RentDueDay:  req.RentDueDay,
		Members:     members,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, tenancy)
}

// GetByID retrieves a tenancy with its members
func (h *TenancyHandler) GetByID(c *gin.Context) {
	agencyID, err := getAgencyID(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	tenancyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid tenancy ID format")
		return
	}

	tenancy, err := h.tenancyService.GetTenancy(c.Request.Context(), agencyID, tenancyID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, tenancy)
}

// List returns tenancies for the agency with pagination and filters
func (h *TenancyHandler) List(c *gin.Context) {
	agencyID, err := getAgencyID(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	req := ListTenanciesRequest{ListRequest: dto.DefaultListRequest()}
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	filter := letting.TenancyFilter{
		Filter: shared.Filter{
			Page:     req.Page,
			PageSize: req.PageSize,
			OrderBy:  req.OrderBy,
			OrderDir: req.OrderDir,
			Search:   req.Search,
		},
	}
	if req.Status != "" {
		st := letting.TenancyStatus(req.Status)
		filter.Status = &st
	}
	if req.PropertyRef != "" {
		filter.PropertyRef = &req.PropertyRef
	}

	page, err := h.tenancyService.ListTenancies(c.Request.Context(), agencyID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// AddMember adds a member to a tenancy that has not expired
func (h *TenancyHandler) AddMember(c *gin.Context) {
	agencyID, err := getAgencyID(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	tenancyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid tenancy ID format")
		return
	}

	var req TenancyMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	member, err := h.tenancyService.AddMember(c.Request.Context(), agencyID, tenancyID, lettingapp.MemberInput{
		FullName:  req.FullName,
		Email:     req.Email,
		RentShare: toDecimal(req.RentShare),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, member)
}

// SendForSignatures moves a pending tenancy to awaiting_signatures
func (h *TenancyHandler) SendForSignatures(c *gin.Context) {
	h.transition(c, h.tenancyService.SendForSignatures)
}

// Expire moves an active tenancy to expired
func (h *TenancyHandler) Expire(c *gin.Context) {
	h.transition(c, h.tenancyService.Expire)
}

// Activate activates a tenancy and generates its rent schedules. The
// activation commits even if generation fails; generation can be retried.
func (h *TenancyHandler) Activate(c *gin.Context) {
	agencyID, err := getAgencyID(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	tenancyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid tenancy ID format")
		return
	}

	result, err := h.tenancyService.Activate(c.Request.Context(), agencyID, tenancyID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// transition applies a status transition identified by the route
func (h *TenancyHandler) transition(c *gin.Context, apply func(ctx context.Context, agencyID, tenancyID uuid.UUID) (*letting.Tenancy, error)) {
	agencyID, err := getAgencyID(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	tenancyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid tenancy ID format")
		return
	}

	tenancy, err := apply(c.Request.Context(), agencyID, tenancyID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, tenancy)
}
