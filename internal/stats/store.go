package stats

import (
	"database/sql"
	"time"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("github.com/sbiochat/dashboard/internal/stats")

// Store computes read-only usage statistics over the chat application's
// operational tables (chat, "user", model, "group", group_member, feedback).
// Those tables are owned by the chat application; this store never writes them.
type Store struct {
	db  *sql.DB
	loc *time.Location
}

// NewStore creates a statistics store.
//
// loc is the organization's civil calendar used for attributing epoch-second
// event timestamps to local days (Asia/Seoul in production). It is injected
// here rather than read from ambient state so every aggregation in one
// process agrees on the calendar.
func NewStore(db *sql.DB, loc *time.Location) *Store {
	if loc == nil {
		loc = time.UTC
	}
	return &Store{db: db, loc: loc}
}

// Location returns the civil calendar the store attributes daily activity to.
func (s *Store) Location() *time.Location {
	return s.loc
}

// offsetSeconds is the fixed UTC offset of the store's calendar.
// The organizational calendar has no DST, so sampling one instant is enough.
func (s *Store) offsetSeconds() int {
	_, off := time.Date(2024, 1, 1, 0, 0, 0, 0, s.loc).Zone()
	return off
}

// messageCountExpr counts messages in a chat's JSON payload, treating a
// missing or malformed message list as zero. Shape is validated here at the
// query boundary so the aggregations above never see nulls.
const messageCountExpr = `CASE WHEN json_typeof(c.chat->'messages') = 'array'
	THEN json_array_length(c.chat->'messages') ELSE 0 END`

// chatWorkspacesCTE expands each chat into one row per referenced workspace.
// A chat listing N workspaces contributes its full chat/message counts to all
// N of them; chats with a missing or malformed workspace list contribute
// nothing. The type guard sits inside the lateral call because the function
// would raise on a scalar before an outer WHERE could filter the row.
const chatWorkspacesCTE = `
	chat_workspaces AS (
		SELECT
			c.user_id,
			m.value AS workspace_id,
			` + messageCountExpr + ` AS message_count
		FROM chat c
		CROSS JOIN LATERAL json_array_elements_text(
			CASE WHEN json_typeof(c.chat->'models') = 'array'
				THEN c.chat->'models' ELSE '[]'::json END
		) AS m(value)
	)`

// feedbackRatingsCTE normalizes feedback payloads: the referenced workspace id
// and a safe integer rating (non-numeric ratings count as 0, which belongs to
// neither the positive nor the negative bucket).
const feedbackRatingsCTE = `
	feedback_ratings AS (
		SELECT
			f.user_id,
			f.data->>'model_id' AS workspace_id,
			CASE WHEN f.data->>'rating' ~ '^-?[0-9]+$'
				THEN (f.data->>'rating')::int ELSE 0 END AS rating
		FROM feedback f
	)`
