package chat

import (
	"errors"
	"time"

	"github.com/docverse/core/internal/middleware"
	"github.com/docverse/core/internal/models"
	"github.com/docverse/core/internal/pkg/pagination"
	"github.com/docverse/core/internal/pkg/response"
	"github.com/gin-gonic/gin"
)

type AskDTO struct {
	Question string `json:"question" binding:"required"`
}

type messageResponse struct {
	ID       string               `json:"id"`
	Role     string               `json:"role"`
	Content  string               `json:"content"`
	Status   models.MessageStatus `json:"status"`
	Sources  []string             `json:"sources"`
	Created  time.Time            `json:"created"`
	Modified time.Time            `json:"modified"`
}

func toMessageResponse(m *models.ChatMessageModel) messageResponse {
	sources := m.Sources
	if sources == nil {
		sources = []string{}
	}
	return messageResponse{
		ID:       m.ID,
		Role:     m.Role,
		Content:  m.Content,
		Status:   m.Status,
		Sources:  sources,
		Created:  m.CreatedAt,
		Modified: m.UpdatedAt,
	}
}

type Handler struct {
	svc         *Service
	coordinator *Coordinator
}

func NewHandler(svc *Service, coordinator *Coordinator) *Handler {
	return &Handler{svc: svc, coordinator: coordinator}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/chat", authMW)
	g.GET("/messages", h.history)
	g.GET("/messages/:id", h.get)
	g.DELETE("/messages", h.clear)
	g.POST("/ask", h.ask)
	g.POST("/stop", h.stop)
}

func (h *Handler) history(c *gin.Context) {
	q := pagination.FromContext(c)
	messages, pag, err := h.svc.History(c.Request.Context(),
		middleware.CurrentGroupID(c), middleware.CurrentUserID(c), q)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	out := make([]messageResponse, len(messages))
	for i, m := range messages {
		out[i] = toMessageResponse(&m)
	}
	response.Paged(c, out, pag)
}

func (h *Handler) get(c *gin.Context) {
	msg, err := h.svc.GetMessage(c.Request.Context(),
		middleware.CurrentGroupID(c), middleware.CurrentUserID(c), c.Param("id"))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if msg == nil {
		response.NotFound(c)
		return
	}
	response.OK(c, toMessageResponse(msg))
}

func (h *Handler) clear(c *gin.Context) {
	deleted, err := h.svc.ClearHistory(c.Request.Context(),
		middleware.CurrentGroupID(c), middleware.CurrentUserID(c))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, gin.H{"deleted": deleted})
}

func (h *Handler) ask(c *gin.Context) {
	var dto AskDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	receipt, err := h.coordinator.Ask(c.Request.Context(),
		middleware.CurrentGroupID(c), middleware.CurrentUserID(c), dto.Question)
	if err != nil {
		switch {
		case errors.Is(err, ErrEmptyQuestion):
			response.BadRequest(c, err.Error())
		case errors.Is(err, ErrGenerationInProgress):
			response.Conflict(c, err.Error())
		default:
			response.InternalError(c, err)
		}
		return
	}
	response.Created(c, gin.H{
		"question": toMessageResponse(receipt.Question),
		"answer":   toMessageResponse(receipt.Answer),
	})
}

func (h *Handler) stop(c *gin.Context) {
	stopped := h.coordinator.Stop(middleware.CurrentGroupID(c), middleware.CurrentUserID(c))
	response.OK(c, gin.H{"stopped": stopped})
}
