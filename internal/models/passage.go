package models

// PassageModel is one overlapping window of a document's text plus its embedding.
// Passages are index-ordered and immutable once written; they are removed only
// when the owning document is deleted.
type PassageModel struct {
	Base
	DocumentID string `json:"document_id" gorm:"index;not null"`
	GroupID    string `json:"group_id"    gorm:"index;not null"`
	Idx        int    `json:"idx"         gorm:"not null"`
	Content    string `json:"content"     gorm:"type:text;not null"`
	Embedding  Vector `json:"-"           gorm:"type:longtext;not null"`
}

func (PassageModel) TableName() string { return "passages" }
