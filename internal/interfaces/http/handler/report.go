package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	reportapp "github.com/letably/backend/internal/application/report"
	"github.com/letably/backend/internal/domain/shared"
	"github.com/letably/backend/internal/interfaces/http/dto"
)

// ReportHandler handles ledger reporting API endpoints
type ReportHandler struct {
	BaseHandler
	reportService *reportapp.ReportService
}

// NewReportHandler wires the reporting endpoints to the report service.
func NewReportHandler(reportService *reportapp.ReportService) *ReportHandler {
	return &ReportHandler{
		reportService: reportService,
	}
}

// ListPaymentsRequest represents payment report query parameters
type ListPaymentsRequest struct {
	dto.ListRequest
	From string `form:"from" binding:"omitempty,datetime=2006-01-02"`
	To   string `form:"to" binding:"omitempty,datetime=2006-01-02"`
}

// Summary returns the agency's ledger totals: outstanding, overdue, and
// collected amounts
func (h *ReportHandler) Summary(c *gin.Context) {
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

	summary, err := h.reportService.LedgerSummary(c.Request.Context(), agencyID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, summary)
}

// Schedules returns the schedule report with per-row derived amounts and
// statuses
func (h *ReportHandler) Schedules(c *gin.Context) {
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

	page, err := h.reportService.ListSchedules(c.Request.Context(), agencyID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// Arrears returns the overdue schedules for the agency
func (h *ReportHandler) Arrears(c *gin.Context) {
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

	page, err := h.reportService.ListOverdueSchedules(c.Request.Context(), agencyID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// Payments returns recorded payments for the agency, optionally bounded by
// date range
func (h *ReportHandler) Payments(c *gin.Context) {
	agencyID, err := getAgencyID(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	req := ListPaymentsRequest{ListRequest: dto.DefaultListRequest()}
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	var from, to *time.Time
	if req.From != "" {
		t, err := time.Parse("2006-01-02", req.From)
		if err != nil {
			h.BadRequest(c, "Invalid from date format")
			return
		}
		from = &t
	}
	if req.To != "" {
		t, err := time.Parse("2006-01-02", req.To)
		if err != nil {
			h.BadRequest(c, "Invalid to date format")
			return
		}
		to = &t
	}

	filter := shared.Filter{
		Page:     req.Page,
		PageSize: req.PageSize,
		OrderBy:  req.OrderBy,
		OrderDir: req.OrderDir,
		Search:   req.Search,
	}

	page, err := h.reportService.ListPayments(c.Request.Context(), agencyID, from, to, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}
