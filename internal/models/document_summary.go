package models

// DocumentSummaryModel caches the generated synopsis and topic list of a document.
// At most one row exists per document; its lifecycle is independent from the
// passages (summary generation may fail without blocking passage indexing).
type DocumentSummaryModel struct {
	Base
	DocumentID string      `json:"document_id" gorm:"uniqueIndex;not null"`
	GroupID    string      `json:"group_id"    gorm:"index;not null"`
	Summary    string      `json:"summary"     gorm:"type:text;not null"`
	Topics     StringArray `json:"topics"      gorm:"type:text"`
	Embedding  Vector      `json:"-"           gorm:"type:longtext;not null"`
}

func (DocumentSummaryModel) TableName() string { return "document_summaries" }
