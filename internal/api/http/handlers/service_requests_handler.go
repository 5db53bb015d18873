package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jonboulle/clockwork"

	"github.com/spec-kit/service-request-desk/internal/api/dto"
	"github.com/spec-kit/service-request-desk/internal/auth"
	"github.com/spec-kit/service-request-desk/internal/domain"
	"github.com/spec-kit/service-request-desk/internal/service"
	"github.com/spec-kit/service-request-desk/internal/storage"
	apperrors "github.com/spec-kit/service-request-desk/pkg/util"
)

const attachmentField = "attachment"

// ServiceRequestsHandler manages service request endpoints.
type ServiceRequestsHandler struct {
	service *service.TicketService
	clock   clockwork.Clock
}

// NewServiceRequestsHandler constructs handler. The clock drives the slaBreached flag in responses.
func NewServiceRequestsHandler(ticketService *service.TicketService, clk clockwork.Clock) *ServiceRequestsHandler {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	return &ServiceRequestsHandler{service: ticketService, clock: clk}
}

// Create POST /service-requests.
func (h *ServiceRequestsHandler) Create(c *fiber.Ctx) error {
	user := auth.UserFromContext(c)
	if user == nil {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.CreateServiceRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	input := service.TicketCreateInput{
		Category:    req.Category,
		Description: req.Description,
		LeadID:      req.LeadID,
	}
	if isMultipart(c) {
		header, err := c.FormFile(attachmentField)
		if err == nil {
			file, err := header.Open()
			if err != nil {
				return apperrors.NewValidationError("unreadable attachment", nil)
			}
			defer file.Close()
			input.Attachment = &storage.File{
				OriginalName: header.Filename,
				ContentType:  header.Header.Get(fiber.HeaderContentType),
				Size:         header.Size,
				Body:         file,
			}
		}
	}

	ticket, err := h.service.CreateTicket(c.UserContext(), user, input)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": serviceRequestResponse(ticket, h.clock.Now())})
}

// List GET /service-requests.
func (h *ServiceRequestsHandler) List(c *fiber.Ctx) error {
	user := auth.UserFromContext(c)
	if user == nil {
		return apperrors.NewUnauthorized("user required")
	}
	filter, page, pageSize := parseServiceRequestQuery(c)
	tickets, err := h.service.ListTickets(c.UserContext(), user, filter)
	if err != nil {
		return err
	}
	now := h.clock.Now()
	items := make([]dto.ServiceRequestResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, serviceRequestResponse(&tickets[i], now))
	}
	return c.JSON(fiber.Map{
		"data": items,
		"meta": fiber.Map{"page": page, "page_size": pageSize},
	})
}

// Get GET /service-requests/:id.
func (h *ServiceRequestsHandler) Get(c *fiber.Ctx) error {
	user := auth.UserFromContext(c)
	if user == nil {
		return apperrors.NewUnauthorized("user required")
	}
	ticket, err := h.service.GetTicket(c.UserContext(), user, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": serviceRequestResponse(ticket, h.clock.Now())})
}

// Update PATCH /service-requests/:id.
func (h *ServiceRequestsHandler) Update(c *fiber.Ctx) error {
	user := auth.UserFromContext(c)
	if user == nil {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.UpdateServiceRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.UpdateTicket(c.UserContext(), user, c.Params("id"), service.TicketUpdateInput{
		Status:   req.Status,
		Note:     req.Note,
		AssignTo: req.AssignTo,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": serviceRequestResponse(ticket, h.clock.Now())})
}

// Resolve POST /service-requests/:id/resolve.
func (h *ServiceRequestsHandler) Resolve(c *fiber.Ctx) error {
	user := auth.UserFromContext(c)
	if user == nil {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.ResolveServiceRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	ticket, err := h.service.ResolveTicket(c.UserContext(), user, c.Params("id"), req.ResolutionNote)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": serviceRequestResponse(ticket, h.clock.Now())})
}

// History GET /service-requests/:id/history.
func (h *ServiceRequestsHandler) History(c *fiber.Ctx) error {
	user := auth.UserFromContext(c)
	if user == nil {
		return apperrors.NewUnauthorized("user required")
	}
	entries, err := h.service.History(c.UserContext(), user, c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.TicketHistoryResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, dto.TicketHistoryResponse{
			ID:         entry.ID,
			ChangedBy:  entry.ChangedBy,
			ChangeType: entry.ChangeType,
			OldValue:   entry.OldValue,
			NewValue:   entry.NewValue,
			CreatedAt:  entry.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

func isMultipart(c *fiber.Ctx) bool {
	return strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm)
}

func parseServiceRequestQuery(c *fiber.Ctx) (service.TicketListFilter, int, int) {
	filter := service.TicketListFilter{}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			filter.Statuses = append(filter.Statuses, domain.TicketStatus(strings.TrimSpace(part)))
		}
	}
	if categoryStr := c.Query("category"); categoryStr != "" {
		for _, part := range strings.Split(categoryStr, ",") {
			filter.Categories = append(filter.Categories, domain.TicketCategory(strings.TrimSpace(part)))
		}
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	if pageSize > 100 {
		pageSize = 100
	}
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter, page, pageSize
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func serviceRequestResponse(ticket *domain.Ticket, now time.Time) dto.ServiceRequestResponse {
	notes := ticket.InternalNotes
	if notes == nil {
		notes = []domain.InternalNote{}
	}
	return dto.ServiceRequestResponse{
		ID:                ticket.ID,
		TicketID:          ticket.TicketID,
		RaisedBy:          ticket.RaisedBy,
		LeadID:            ticket.LeadID,
		Category:          ticket.Category,
		Description:       ticket.Description,
		Attachment:        ticket.Attachment,
		Status:            ticket.Status,
		Priority:          ticket.Priority,
		EscalationLevel:   int(ticket.EscalationLevel),
		AssignedRole:      ticket.AssignedRole,
		AssignedTo:        ticket.AssignedTo,
		SLATimerStartedAt: ticket.SLATimerStartedAt,
		SLADeadline:       ticket.SLADeadline,
		SLABreached:       !ticket.IsResolved() && ticket.SLABreached(now),
		InternalNotes:     notes,
		ResolvedBy:        ticket.ResolvedBy,
		ResolutionNote:    ticket.ResolutionNote,
		ResolvedAt:        ticket.ResolvedAt,
		CreatedAt:         ticket.CreatedAt,
		UpdatedAt:         ticket.UpdatedAt,
	}
}
