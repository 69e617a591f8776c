package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	ledgerapp "github.com/letably/backend/internal/application/ledger"
	"github.com/letably/backend/internal/domain/ledger"
	"github.com/letably/backend/internal/domain/shared"
	"github.com/letably/backend/internal/interfaces/http/dto"
)

// ScheduleHandler handles payment schedule API endpoints
type ScheduleHandler struct {
	BaseHandler
	scheduleService *ledgerapp.ScheduleService
}

// NewScheduleHandler creates a new ScheduleHandler
func NewScheduleHandler(scheduleService *ledgerapp.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{
		scheduleService: scheduleService,
	}
}

// CreateScheduleRequest represents a request to create a manual schedule
type CreateScheduleRequest struct {
	TenancyID   string  `json:"tenancy_id" binding:"required,uuid"`
	MemberID    string  `json:"member_id" binding:"required,uuid"`
	PaymentType string  `json:"payment_type" binding:"required,oneof=rent deposit utilities fees other"`
	Description string  `json:"description" binding:"max=500"`
	DueDate     string  `json:"due_date" binding:"required,datetime=2006-01-02"`
	AmountDue   float64 `json:"amount_due" binding:"required"`
}

// UpdateScheduleRequest represents a request to update a schedule's terms
type UpdateScheduleRequest struct {
	PaymentType string  `json:"payment_type" binding:"required,oneof=rent deposit utilities fees other"`
	Description string  `json:"description" binding:"max=500"`
	DueDate     string  `json:"due_date" binding:"required,datetime=2006-01-02"`
	AmountDue   float64 `json:"amount_due" binding:"required"`
}

// ListSchedulesRequest represents schedule list query parameters
type ListSchedulesRequest struct {
	dto.ListRequest
	TenancyID   string `form:"tenancy_id" binding:"omitempty,uuid"`
	MemberID    string `form:"member_id" binding:"omitempty,uuid"`
	PaymentType string `form:"payment_type" binding:"omitempty,oneof=rent deposit utilities fees other"`
	Status      string `form:"status" binding:"omitempty,oneof=pending partial paid overdue"`
	Type        string `form:"type" binding:"omitempty,oneof=automated manual"`
	DueFrom     string `form:"due_from" binding:"omitempty,datetime=2006-01-02"`
	DueTo       string `form:"due_to" binding:"omitempty,datetime=2006-01-02"`
	Overdue     *bool  `form:"overdue"`
}

// Create creates a manual payment schedule
func (h *ScheduleHandler) Create(c *gin.Context) {
	agencyID, err := getAgencyID(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	var req CreateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	dueDate, err := time.Parse("2006-01-02", req.DueDate)
	if err != nil {
		h.BadRequest(c, "Invalid due date format")
		return
	}

	result, err := h.scheduleService.CreateManualSchedule(c.Request.Context(), ledgerapp.CreateScheduleInput{
		AgencyID:    agencyID,
		TenancyID:   uuid.MustParse(req.TenancyID),
		MemberID:    uuid.MustParse(req.MemberID),
		PaymentType: ledger.PaymentType(req.PaymentType),
		Description: req.Description,
		DueDate:     dueDate,
		AmountDue:   toDecimal(req.AmountDue),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, result)
}

// GetByID retrieves a schedule with its payments and derived amounts
func (h *ScheduleHandler) GetByID(c *gin.Context) {
	agencyID, err := getAgencyID(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	scheduleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid schedule ID format")
		return
	}

	result, err := h.scheduleService.GetSchedule(c.Request.Context(), agencyID, scheduleID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// List returns schedules for the agency with pagination and filters
func (h *ScheduleHandler) List(c *gin.Context) {
	agencyID, err := getAgencyID(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	req := ListSchedulesRequest{ListRequest: dto.DefaultListRequest()}
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	filter, err := scheduleFilterFromRequest(req)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	page, err := h.scheduleService.ListSchedules(c.Request.Context(), agencyID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// Update updates a schedule's terms. Updating an automated schedule converts
// it to manual.
func (h *ScheduleHandler) Update(c *gin.Context) {
	agencyID, err := getAgencyID(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	scheduleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid schedule ID format")
		return
	}

	var req UpdateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	dueDate, err := time.Parse("2006-01-02", req.DueDate)
	if err != nil {
		h.BadRequest(c, "Invalid due date format")
		return
	}

	result, err := h.scheduleService.UpdateSchedule(c.Request.Context(), agencyID, scheduleID, ledgerapp.UpdateScheduleInput{
		AmountDue:   toDecimal(req.AmountDue),
		DueDate:     dueDate,
		PaymentType: ledger.PaymentType(req.PaymentType),
		Description: req.Description,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// Delete removes a schedule. A schedule with recorded payments cannot be
// deleted; revert it first.
func (h *ScheduleHandler) Delete(c *gin.Context) {
	agencyID, err := getAgencyID(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	scheduleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid schedule ID format")
		return
	}

	if err := h.scheduleService.DeleteSchedule(c.Request.Context(), agencyID, scheduleID); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}

// GenerateForTenancy generates the automated rent schedules for a tenancy's
// lease term
func (h *ScheduleHandler) GenerateForTenancy(c *gin.Context) {
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

	schedules, err := h.scheduleService.GenerateForTenancy(c.Request.Context(), agencyID, tenancyID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, gin.H{
		"schedules_generated": len(schedules),
		"schedules":           schedules,
	})
}

// scheduleFilterFromRequest converts validated query parameters to the domain
// filter
func scheduleFilterFromRequest(req ListSchedulesRequest) (ledger.ScheduleFilter, error) {
	filter := ledger.ScheduleFilter{
		Filter: shared.Filter{
			Page:     req.Page,
			PageSize: req.PageSize,
			OrderBy:  req.OrderBy,
			OrderDir: req.OrderDir,
			Search:   req.Search,
		},
		Overdue: req.Overdue,
	}

	if req.TenancyID != "" {
		id := uuid.MustParse(req.TenancyID)
		filter.TenancyID = &id
	}
	if req.MemberID != "" {
		id := uuid.MustParse(req.MemberID)
		filter.MemberID = &id
	}
	if req.PaymentType != "" {
		pt := ledger.PaymentType(req.PaymentType)
		filter.PaymentType = &pt
	}
	if req.Status != "" {
		st := ledger.ScheduleStatus(req.Status)
		filter.Status = &st
	}
	if req.Type != "" {
		ty := ledger.ScheduleType(req.Type)
		filter.Type = &ty
	}
	if req.DueFrom != "" {
		from, err := time.Parse("2006-01-02", req.DueFrom)
		if err != nil {
			return filter, err
		}
		filter.DueFrom = &from
	}
	if req.DueTo != "" {
		to, err := time.Parse("2006-01-02", req.DueTo)
		if err != nil {
			return filter, err
		}
		filter.DueTo = &to
	}

	return filter, nil
}
