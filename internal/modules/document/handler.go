package document

import (
	"errors"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/docverse/core/internal/middleware"
	"github.com/docverse/core/internal/models"
	"github.com/docverse/core/internal/pkg/pagination"
	"github.com/docverse/core/internal/pkg/response"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const maxUploadBytes = 10 << 20

var (
	errUploadTooLarge = errors.New("uploaded file exceeds 10MB")
	errEmptyUpload    = errors.New("uploaded file needs a title and non-empty text")
)

type documentResponse struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Filename     string    `json:"filename"`
	Format       string    `json:"format"`
	Indexed      bool      `json:"indexed"`
	PassageCount int       `json:"passage_count"`
	Created      time.Time `json:"created"`
	Modified     time.Time `json:"modified"`
}

type documentDetailResponse struct {
	documentResponse
	Text string `json:"text"`
}

func toResponse(d *models.DocumentModel) documentResponse {
	return documentResponse{
		ID:           d.ID,
		Title:        d.Title,
		Filename:     d.Filename,
		Format:       d.Format,
		Indexed:      d.Indexed,
		PassageCount: d.PassageCount,
		Created:      d.CreatedAt,
		Modified:     d.UpdatedAt,
	}
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/documents", authMW)
	g.GET("", h.list)
	g.GET("/stats", h.stats)
	g.GET("/:id", h.get)
	g.POST("", h.create)
	g.POST("/:id/reindex", h.reindex)
	g.DELETE("/:id", h.delete)
}

func (h *Handler) list(c *gin.Context) {
	q := pagination.FromContext(c)
	docs, pag, err := h.svc.List(c.Request.Context(), middleware.CurrentGroupID(c), q)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	out := make([]documentResponse, len(docs))
	for i, d := range docs {
		out[i] = toResponse(&d)
	}
	response.Paged(c, out, pag)
}

func (h *Handler) get(c *gin.Context) {
	doc, err := h.svc.GetByID(c.Request.Context(), middleware.CurrentGroupID(c), c.Param("id"))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if doc == nil {
		response.NotFound(c)
		return
	}
	response.OK(c, documentDetailResponse{
		documentResponse: toResponse(doc),
		Text:             doc.Text,
	})
}

func (h *Handler) create(c *gin.Context) {
	dto, err := bindCreateDTO(c)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	doc, err := h.svc.Create(c.Request.Context(),
		middleware.CurrentGroupID(c), middleware.CurrentUserID(c), dto)
	if err != nil {
		if errors.Is(err, ErrInvalidFormat) {
			response.UnprocessableEntity(c, err.Error())
			return
		}
		response.InternalError(c, err)
		return
	}
	response.Created(c, toResponse(doc))
}

func (h *Handler) reindex(c *gin.Context) {
	doc, err := h.svc.Reindex(c.Request.Context(), middleware.CurrentGroupID(c), c.Param("id"))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if doc == nil {
		response.NotFound(c)
		return
	}
	response.OK(c, toResponse(doc))
}

func (h *Handler) delete(c *gin.Context) {
	err := h.svc.Delete(c.Request.Context(), middleware.CurrentGroupID(c), c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c)
			return
		}
		response.InternalError(c, err)
		return
	}
	response.NoContent(c)
}

func (h *Handler) stats(c *gin.Context) {
	stats, err := h.svc.Stats(c.Request.Context(), middleware.CurrentGroupID(c))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, stats)
}

// bindCreateDTO accepts either a JSON body or a multipart form with a
// "file" part holding the extracted text.
func bindCreateDTO(c *gin.Context) (*CreateDocumentDTO, error) {
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		var dto CreateDocumentDTO
		if err := c.ShouldBindJSON(&dto); err != nil {
			return nil, err
		}
		return &dto, nil
	}

	header, err := c.FormFile("file")
	if err != nil {
		return nil, err
	}
	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()

	raw, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		return nil, err
	}
	if len(raw) > maxUploadBytes {
		return nil, errUploadTooLarge
	}

	dto := &CreateDocumentDTO{
		Title:    c.PostForm("title"),
		Filename: header.Filename,
		Format:   c.PostForm("format"),
		Text:     string(raw),
	}
	if dto.Title == "" {
		dto.Title = strings.TrimSuffix(header.Filename, filepath.Ext(header.Filename))
	}
	if dto.Format == "" && isMarkdownFilename(header.Filename) {
		dto.Format = models.FormatMarkdown
	}
	if strings.TrimSpace(dto.Title) == "" || strings.TrimSpace(dto.Text) == "" {
		return nil, errEmptyUpload
	}
	return dto, nil
}

func isMarkdownFilename(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md", ".markdown":
		return true
	}
	return false
}
