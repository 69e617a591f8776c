package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	ledgerapp "github.com/letably/backend/internal/application/ledger"
)

// IdempotencyKeyHeader carries the client's idempotency key for payment
// recording. Optional; when present, a repeated submission with the same key
// is rejected with a conflict instead of recorded twice.
const IdempotencyKeyHeader = "Idempotency-Key"

// PaymentHandler handles payment recording API endpoints
type PaymentHandler struct {
	BaseHandler
	paymentService *ledgerapp.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(paymentService *ledgerapp.PaymentService) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
	}
}

// RecordPaymentRequest represents a request to record a payment against a
// schedule. Amount sign follows the schedule: positive amounts settle
// charges, negative amounts settle credits.
type RecordPaymentRequest struct {
	Amount    float64 `json:"amount" binding:"required"`
	Date      string  `json:"date" binding:"required,datetime=2006-01-02"`
	Reference string  `json:"reference" binding:"max=200"`
}

// AmendPaymentRequest represents a request to amend a recorded payment
type AmendPaymentRequest struct {
	Amount    float64 `json:"amount" binding:"required"`
	Date      string  `json:"date" binding:"required,datetime=2006-01-02"`
	Reference string  `json:"reference" binding:"max=200"`
}

// Record records a payment against a schedule
func (h *PaymentHandler) Record(c *gin.Context) {
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

	var req RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		h.BadRequest(c, "Invalid payment date format")
		return
	}

	result, err := h.paymentService.RecordPayment(c.Request.Context(), agencyID, scheduleID, ledgerapp.RecordPaymentInput{
		Amount:         toDecimal(req.Amount),
		Date:           date,
		Reference:      req.Reference,
		IdempotencyKey: c.GetHeader(IdempotencyKeyHeader),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, result)
}

// Amend updates a recorded payment's amount, date, or reference. The balance
// rule is re-checked against the other payments on the schedule.
func (h *PaymentHandler) Amend(c *gin.Context) {
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

	paymentID, err := uuid.Parse(c.Param("paymentID"))
	if err != nil {
		h.BadRequest(c, "Invalid payment ID format")
		return
	}

	var req AmendPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		h.BadRequest(c, "Invalid payment date format")
		return
	}

	result, err := h.paymentService.AmendPayment(c.Request.Context(), agencyID, scheduleID, paymentID, ledgerapp.AmendPaymentInput{
		Amount:    toDecimal(req.Amount),
		Date:      date,
		Reference: req.Reference,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// Delete removes a recorded payment and re-derives the schedule status
func (h *PaymentHandler) Delete(c *gin.Context) {
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

	paymentID, err := uuid.Parse(c.Param("paymentID"))
	if err != nil {
		h.BadRequest(c, "Invalid payment ID format")
		return
	}

	result, err := h.paymentService.DeletePayment(c.Request.Context(), agencyID, scheduleID, paymentID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// Revert removes all payments from a schedule and resets its status.
// Idempotent; reverting an already-reverted schedule succeeds.
func (h *PaymentHandler) Revert(c *gin.Context) {
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

	result, err := h.paymentService.RevertSchedule(c.Request.Context(), agencyID, scheduleID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}
