package models

// MessageStatus is the lifecycle state of a chat message.
type MessageStatus string

const (
	// MessageGenerating marks a placeholder whose answer is still streaming in.
	MessageGenerating MessageStatus = "generating"
	// MessageActive marks a message whose content is final.
	MessageActive MessageStatus = "active"
	// MessageCancelled marks a message whose generation was stopped; content is
	// whatever was produced before the stop signal was observed.
	MessageCancelled MessageStatus = "cancelled"
)

// Terminal reports whether the status allows no further transitions.
func (s MessageStatus) Terminal() bool {
	return s == MessageActive || s == MessageCancelled
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessageModel belongs to the private conversation of a (group, user) pair.
// At most one message per pair may be in the generating state at any instant.
type ChatMessageModel struct {
	Base
	GroupID string        `json:"group_id" gorm:"index:idx_messages_group_user;not null"`
	UserID  string        `json:"user_id"  gorm:"index:idx_messages_group_user;not null"`
	Role    string        `json:"role"     gorm:"not null"`
	Content string        `json:"content"  gorm:"type:longtext"`
	Status  MessageStatus `json:"status"   gorm:"index;not null;default:'active'"`
	Sources StringArray   `json:"sources"  gorm:"type:text"`
}

func (ChatMessageModel) TableName() string { return "chat_messages" }
