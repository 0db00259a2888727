package document

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/docverse/core/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func multipartContext(t *testing.T, filename, content string, fields map[string]string) *gin.Context {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/documents", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = req
	return c
}

func TestBindCreateDTOMultipart(t *testing.T) {
	c := multipartContext(t, "policies.md", "# Policies\n\nBody.", nil)

	dto, err := bindCreateDTO(c)
	require.NoError(t, err)
	assert.Equal(t, "policies", dto.Title)
	assert.Equal(t, "policies.md", dto.Filename)
	assert.Equal(t, models.FormatMarkdown, dto.Format)
	assert.Equal(t, "# Policies\n\nBody.", dto.Text)
}

func TestBindCreateDTOMultipartExplicitFields(t *testing.T) {
	c := multipartContext(t, "notes.txt", "plain body", map[string]string{
		"title":  "Release Notes",
		"format": models.FormatText,
	})

	dto, err := bindCreateDTO(c)
	require.NoError(t, err)
	assert.Equal(t, "Release Notes", dto.Title)
	assert.Equal(t, models.FormatText, dto.Format)
}

func TestBindCreateDTOMultipartEmptyFile(t *testing.T) {
	c := multipartContext(t, "empty.txt", "   ", nil)

	_, err := bindCreateDTO(c)
	assert.ErrorIs(t, err, errEmptyUpload)
}

func TestBindCreateDTOJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/documents",
		bytes.NewBufferString(`{"title": "Handbook", "text": "content"}`))
	req.Header.Set("Content-Type", "application/json")

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = req

	dto, err := bindCreateDTO(c)
	require.NoError(t, err)
	assert.Equal(t, "Handbook", dto.Title)
	assert.Equal(t, "content", dto.Text)
}

func TestIsMarkdownFilename(t *testing.T) {
	assert.True(t, isMarkdownFilename("readme.md"))
	assert.True(t, isMarkdownFilename("GUIDE.MARKDOWN"))
	assert.False(t, isMarkdownFilename("notes.txt"))
	assert.False(t, isMarkdownFilename("md"))
}
