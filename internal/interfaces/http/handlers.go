package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/fpfinfo/sosfu/internal/application/engine"
	"github.com/fpfinfo/sosfu/internal/application/messaging"
	"github.com/fpfinfo/sosfu/internal/application/port"
	"github.com/fpfinfo/sosfu/internal/application/service"
	"github.com/fpfinfo/sosfu/internal/application/validation"
	"github.com/fpfinfo/sosfu/internal/domain/entity"
	"github.com/fpfinfo/sosfu/internal/domain/workflow"
	"github.com/fpfinfo/sosfu/internal/export"
	"go.uber.org/zap"
)

// userIDHeader carries the authenticated portal user, injected by the
// gateway in front of this service.
const userIDHeader = "X-User-ID"

// Handlers contains all HTTP request handlers
type Handlers struct {
	requests       service.RequestService
	reimbursements service.ReimbursementService
	engine         engine.Engine
	validator      validation.Validator
	messages       messaging.Service
	attachments    port.AttachmentStore
	logger         *zap.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	requests service.RequestService,
	reimbursements service.ReimbursementService,
	eng engine.Engine,
	validator validation.Validator,
	messages messaging.Service,
	attachments port.AttachmentStore,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		requests:       requests,
		reimbursements: reimbursements,
		engine:         eng,
		validator:      validator,
		messages:       messages,
		attachments:    attachments,
		logger:         logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// TransitionRequest is the body of a transition action
type TransitionRequest struct {
	Target workflow.State `json:"target" binding:"required"`
	Reason string         `json:"reason"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: gin.H{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// CreateRequest handles POST /api/requests
func (h *Handlers) CreateRequest(c *gin.Context) {
	userID, ok := h.actingUser(c)
	if !ok {
		return
	}

	var input service.CreateRequestInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}

	req, err := h.requests.CreateDraft(c.Request.Context(), userID, input)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: req})
}

// GetRequest handles GET /api/requests/:id
func (h *Handlers) GetRequest(c *gin.Context) {
	req, err := h.requests.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: req})
}

// ListRequests handles GET /api/requests
func (h *Handlers) ListRequests(c *gin.Context) {
	filter, ok := h.bindFilter(c)
	if !ok {
		return
	}

	requests, err := h.requests.List(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: requests})
}

// ExportRequests handles GET /api/requests/export, streaming the filtered
// listing as a spreadsheet
func (h *Handlers) ExportRequests(c *gin.Context) {
	filter, ok := h.bindFilter(c)
	if !ok {
		return
	}

	requests, err := h.requests.List(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}

	workbook, err := export.ListingWorkbook(requests)
	if err != nil {
		h.respondError(c, err)
		return
	}
	defer workbook.Close()

	c.Header("Content-Disposition", `attachment; filename="requests.xlsx"`)
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if _, err := workbook.WriteTo(c.Writer); err != nil {
		h.logger.Error("Failed to stream export", zap.Error(err))
	}
}

// SubmitRequest handles POST /api/requests/:id/submit
func (h *Handlers) SubmitRequest(c *gin.Context) {
	userID, ok := h.actingUser(c)
	if !ok {
		return
	}

	req, err := h.requests.Submit(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: req})
}

// TransitionRequestStatus handles POST /api/requests/:id/transition
func (h *Handlers) TransitionRequestStatus(c *gin.Context) {
	userID, ok := h.actingUser(c)
	if !ok {
		return
	}

	var body TransitionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}

	req, err := h.engine.TransitionRequest(c.Request.Context(), c.Param("id"), body.Target, userID, body.Reason)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: req})
}

// RequestActions handles GET /api/requests/:id/actions
func (h *Handlers) RequestActions(c *gin.Context) {
	userID, ok := h.actingUser(c)
	if !ok {
		return
	}

	actions, err := h.engine.AvailableActions(c.Request.Context(), workflow.KindRequest, c.Param("id"), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: actions})
}

// RequestHistory handles GET /api/requests/:id/history
func (h *Handlers) RequestHistory(c *gin.Context) {
	entries, err := h.engine.History(c.Request.Context(), workflow.KindRequest, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: entries})
}

// SubmitReport handles POST /api/requests/:id/report
func (h *Handlers) SubmitReport(c *gin.Context) {
	userID, ok := h.actingUser(c)
	if !ok {
		return
	}

	var input service.ReportInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}

	req, err := h.requests.SubmitReport(c.Request.Context(), c.Param("id"), userID, input)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: req})
}

// CorrectReport handles PUT /api/requests/:id/report
func (h *Handlers) CorrectReport(c *gin.Context) {
	userID, ok := h.actingUser(c)
	if !ok {
		return
	}

	var input service.ReportInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}

	req, err := h.requests.CorrectReport(c.Request.Context(), c.Param("id"), userID, input)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: req})
}

// ValidateReport handles POST /api/requests/:id/report/validation
func (h *Handlers) ValidateReport(c *gin.Context) {
	if _, ok := h.actingUser(c); !ok {
		return
	}

	req, err := h.requests.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	results, err := h.validator.ValidateReport(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: results})
}

// ReportValidationResults handles GET /api/requests/:id/report/validation
func (h *Handlers) ReportValidationResults(c *gin.Context) {
	if _, ok := h.actingUser(c); !ok {
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    h.validator.Results(c.Param("id")),
	})
}

// CreateReimbursement handles POST /api/reimbursements
func (h *Handlers) CreateReimbursement(c *gin.Context) {
	userID, ok := h.actingUser(c)
	if !ok {
		return
	}

	var input service.CreateReimbursementInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}

	reimb, err := h.reimbursements.CreateDraft(c.Request.Context(), userID, input)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: reimb})
}

// GetReimbursement handles GET /api/reimbursements/:id
func (h *Handlers) GetReimbursement(c *gin.Context) {
	reimb, err := h.reimbursements.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: reimb})
}

// ListReimbursements handles GET /api/reimbursements
func (h *Handlers) ListReimbursements(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	items, err := h.reimbursements.List(c.Request.Context(), limit, offset)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: items})
}

// SubmitReimbursement handles POST /api/reimbursements/:id/submit
func (h *Handlers) SubmitReimbursement(c *gin.Context) {
	userID, ok := h.actingUser(c)
	if !ok {
		return
	}

	reimb, err := h.reimbursements.Submit(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: reimb})
}

// TransitionReimbursementStatus handles POST /api/reimbursements/:id/transition
func (h *Handlers) TransitionReimbursementStatus(c *gin.Context) {
	userID, ok := h.actingUser(c)
	if !ok {
		return
	}

	var body TransitionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}

	reimb, err := h.engine.TransitionReimbursement(c.Request.Context(), c.Param("id"), body.Target, userID, body.Reason)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: reimb})
}

// ReimbursementActions handles GET /api/reimbursements/:id/actions
func (h *Handlers) ReimbursementActions(c *gin.Context) {
	userID, ok := h.actingUser(c)
	if !ok {
		return
	}

	actions, err := h.engine.AvailableActions(c.Request.Context(), workflow.KindReimbursement, c.Param("id"), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: actions})
}

// ReimbursementHistory handles GET /api/reimbursements/:id/history
func (h *Handlers) ReimbursementHistory(c *gin.Context) {
	entries, err := h.engine.History(c.Request.Context(), workflow.KindReimbursement, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: entries})
}

// UploadAttachment handles POST /api/attachments. The returned reference
// is what request and report payloads embed.
func (h *Handlers) UploadAttachment(c *gin.Context) {
	if _, ok := h.actingUser(c); !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		h.badRequest(c, "a multipart 'file' field is required")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.respondError(c, err)
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		h.respondError(c, err)
		return
	}

	ref, err := h.attachments.Save(c.Request.Context(), uuid.New().String(), fileHeader.Filename, content)
	if err != nil {
		h.respondError(c, err)
		return
	}

	url, err := h.attachments.URL(c.Request.Context(), *ref)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: gin.H{
		"attachment": ref,
		"url":        url,
	}})
}

// DownloadAttachment handles GET /api/attachments/:id
func (h *Handlers) DownloadAttachment(c *gin.Context) {
	if _, ok := h.actingUser(c); !ok {
		return
	}

	name := c.Query("name")
	if name == "" {
		h.badRequest(c, "the 'name' query parameter is required")
		return
	}

	ref := entity.AttachmentRef{ID: c.Param("id"), Name: name}
	content, mimeType, err := h.attachments.Read(c.Request.Context(), ref)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, mimeType, content)
}

// SendMessage handles POST /api/messages
func (h *Handlers) SendMessage(c *gin.Context) {
	userID, ok := h.actingUser(c)
	if !ok {
		return
	}

	var input messaging.SendInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}

	msg, err := h.messages.Send(c.Request.Context(), userID, input)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: msg})
}

// GetConversation handles GET /api/conversations/:userId
func (h *Handlers) GetConversation(c *gin.Context) {
	userID, ok := h.actingUser(c)
	if !ok {
		return
	}

	conv, err := h.messages.Conversation(c.Request.Context(), userID, c.Param("userId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: conv})
}

func (h *Handlers) bindFilter(c *gin.Context) (entity.RequestFilter, bool) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	return entity.RequestFilter{
		Status:      workflow.State(c.Query("status")),
		RequesterID: c.Query("requester_id"),
		Category:    c.Query("category"),
		SortBy:      c.Query("sort_by"),
		Descending:  c.Query("order") == "desc",
		Limit:       limit,
		Offset:      offset,
	}, true
}

func (h *Handlers) actingUser(c *gin.Context) (string, bool) {
	userID := c.GetHeader(userIDHeader)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, Response{Success: false, Error: "missing " + userIDHeader + " header"})
		return "", false
	}
	return userID, true
}

func (h *Handlers) badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Response{Success: false, Error: msg})
}

// respondError maps the domain error taxonomy onto HTTP statuses
func (h *Handlers) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, workflow.ErrNotFound):
		c.JSON(http.StatusNotFound, Response{Success: false, Error: err.Error()})
	case errors.Is(err, workflow.ErrIllegalTransition), errors.Is(err, workflow.ErrVersionConflict):
		c.JSON(http.StatusConflict, Response{Success: false, Error: err.Error()})
	case errors.Is(err, workflow.ErrValidation):
		c.JSON(http.StatusUnprocessableEntity, Response{Success: false, Error: err.Error()})
	default:
		h.logger.Error("Unhandled request error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "internal error"})
	}
}
