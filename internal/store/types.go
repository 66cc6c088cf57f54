package store

// Table names used by the change feed.
const (
	TableProfiles      = "profiles"
	TableConversations = "conversations"
	TableMembers       = "members"
	TableMessages      = "messages"
)

// Profile represents a registered user.
type Profile struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	CreatedAt    int64
}

// ProfileSuggestion is a search hit for the contact search box.
type ProfileSuggestion struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// Conversation represents a conversation row. An empty Title means the
// UI falls back to a generic direct-chat label.
type Conversation struct {
	ID        string `json:"id"`
	Title     string `json:"title,omitempty"`
	IsGroup   bool   `json:"is_group"`
	CreatedAt int64  `json:"created_at"`
}

// Membership links a user to a conversation.
type Membership struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	Role           string `json:"role"`
	LastReadAt     int64  `json:"last_read_at,omitempty"`
}

// Message represents a message row. EditedAt and DeletedAt are zero when
// the message was never edited or soft-deleted.
type Message struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	SenderID       string `json:"sender_id"`
	Content        string `json:"content"`
	CreatedAt      int64  `json:"created_at"`
	EditedAt       int64  `json:"edited_at,omitempty"`
	DeletedAt      int64  `json:"deleted_at,omitempty"`
	IsRead         bool   `json:"is_read"`
}
