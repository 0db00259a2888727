package models

const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
)

// DocumentModel is an uploaded document scoped to a group.
// Text holds the already-extracted plain text; extraction happens upstream.
type DocumentModel struct {
	Base
	GroupID      string `json:"group_id"      gorm:"index;not null"`
	UploaderID   string `json:"uploader_id"   gorm:"index;not null"`
	Title        string `json:"title"         gorm:"not null"`
	Filename     string `json:"filename"`
	Format       string `json:"format"` // FormatText | FormatMarkdown
	Text         string `json:"-"             gorm:"type:longtext"`
	Indexed      bool   `json:"indexed"       gorm:"index;default:false"`
	PassageCount int    `json:"passage_count"`
}

func (DocumentModel) TableName() string { return "documents" }
