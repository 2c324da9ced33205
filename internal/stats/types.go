package stats

// Overview holds aggregate counters across the whole chat corpus.
type Overview struct {
	TotalChats     int64 `json:"total_chats"`
	TotalMessages  int64 `json:"total_messages"`
	TotalModels    int64 `json:"total_models"`
	TotalFeedbacks int64 `json:"total_feedbacks"`
}

// DailyPoint is the activity of exactly one civil day.
type DailyPoint struct {
	Date         string `json:"date"` // YYYY-MM-DD in the store's calendar
	ChatCount    int64  `json:"chat_count"`
	MessageCount int64  `json:"message_count"`
	UserCount    int64  `json:"user_count"`
}

// WorkspaceRow is one workspace's usage in the workspace ranking.
// A workspace appears here iff at least one chat references it AND it has an
// identity row in the model table; rows failing the identity join are dropped
// silently (data-quality tolerance, not an error).
type WorkspaceRow struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	DeveloperEmail string `json:"developer_email"`
	UserCount      int64  `json:"user_count"`
	ChatCount      int64  `json:"chat_count"`
	MessageCount   int64  `json:"message_count"`
	Positive       int64  `json:"positive"`
	Negative       int64  `json:"negative"`
}

// DeveloperRow aggregates a developer's owned workspaces. Every user owning at
// least one workspace appears, even with zero activity across all of them.
type DeveloperRow struct {
	UserID         string  `json:"user_id"`
	UserName       *string `json:"user_name"`
	Email          string  `json:"email"`
	WorkspaceCount int64   `json:"workspace_count"`
	TotalUsers     int64   `json:"total_users"`
	TotalChats     int64   `json:"total_chats"`
	TotalMessages  int64   `json:"total_messages"`
	TotalPositive  int64   `json:"total_positive"`
	TotalNegative  int64   `json:"total_negative"`
}

// GroupRow aggregates usage across a group's members. Per-member rates are
// nil when the group has no members (undefined, never a division error).
type GroupRow struct {
	GroupID           string   `json:"group_id"`
	GroupName         string   `json:"group_name"`
	MemberCount       int64    `json:"member_count"`
	TotalChats        int64    `json:"total_chats"`
	TotalMessages     int64    `json:"total_messages"`
	TotalFeedbacks    int64    `json:"total_feedbacks"`
	ChatsPerMember    *float64 `json:"chats_per_member"`
	MessagesPerMember *float64 `json:"messages_per_member"`
}
