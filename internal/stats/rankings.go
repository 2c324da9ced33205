package stats

import (
	"context"
	"database/sql"
	"sort"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// GetWorkspaceRanking ranks workspaces by chat volume. Each query produces the
// full ordered set and the window is applied in-process, so the reported total
// and the page items always come from the same consistent read.
func (s *Store) GetWorkspaceRanking(ctx context.Context, p PageParams) (*Page[WorkspaceRow], error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "stats.workspace_ranking",
		trace.WithAttributes(
			attribute.Int("offset", p.Offset),
			attribute.Int("limit", p.Limit),
		))
	defer span.End()

	// Ranking keys off chat activity: the inner join against workspace
	// identity drops metric rows for deleted/unknown workspaces, and
	// feedback-only workspaces never enter the set at all.
	query := `
		WITH ` + chatWorkspacesCTE + `,
		` + feedbackRatingsCTE + `,
		workspace_chats AS (
			SELECT
				workspace_id,
				count(*) AS chat_count,
				sum(message_count) AS message_count,
				count(DISTINCT user_id) AS user_count
			FROM chat_workspaces
			GROUP BY workspace_id
		),
		workspace_feedback AS (
			SELECT
				workspace_id,
				count(*) FILTER (WHERE rating > 0) AS positive,
				count(*) FILTER (WHERE rating < 0) AS negative
			FROM feedback_ratings
			GROUP BY workspace_id
		),
		workspace_info AS (
			SELECT m.id, m.name, u.email AS developer_email
			FROM model m
			LEFT JOIN "user" u ON m.user_id = u.id
		)
		SELECT
			wc.workspace_id,
			COALESCE(wi.name, wc.workspace_id) AS name,
			wi.developer_email,
			wc.user_count,
			wc.chat_count,
			wc.message_count,
			COALESCE(wf.positive, 0) AS positive,
			COALESCE(wf.negative, 0) AS negative
		FROM workspace_chats wc
		JOIN workspace_info wi ON wc.workspace_id = wi.id
		LEFT JOIN workspace_feedback wf ON wc.workspace_id = wf.workspace_id
		ORDER BY wc.chat_count DESC, wc.workspace_id ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var all []WorkspaceRow
	for rows.Next() {
		var r WorkspaceRow
		var email sql.NullString
		if err := rows.Scan(
			&r.ID,
			&r.Name,
			&email,
			&r.UserCount,
			&r.ChatCount,
			&r.MessageCount,
			&r.Positive,
			&r.Negative,
		); err != nil {
			return nil, err
		}
		r.DeveloperEmail = email.String
		all = append(all, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	page := NewPage(all, p)
	return &page, nil
}

// GetDeveloperRanking ranks workspace owners by total chats across all
// workspaces they own. Owners of zero-activity workspaces still appear with
// their workspace count and zeroed totals.
func (s *Store) GetDeveloperRanking(ctx context.Context, p PageParams) (*Page[DeveloperRow], error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "stats.developer_ranking",
		trace.WithAttributes(
			attribute.Int("offset", p.Offset),
			attribute.Int("limit", p.Limit),
		))
	defer span.End()

	query := `
		WITH ` + chatWorkspacesCTE + `,
		` + feedbackRatingsCTE + `,
		workspace_metrics AS (
			SELECT
				workspace_id,
				count(*) AS chat_count,
				sum(message_count) AS message_count,
				count(DISTINCT user_id) AS user_count
			FROM chat_workspaces
			GROUP BY workspace_id
		),
		workspace_feedback AS (
			SELECT
				workspace_id,
				count(*) FILTER (WHERE rating > 0) AS positive,
				count(*) FILTER (WHERE rating < 0) AS negative
			FROM feedback_ratings
			GROUP BY workspace_id
		)
		SELECT
			u.id AS user_id,
			u.name AS user_name,
			u.email,
			count(DISTINCT m.id) AS workspace_count,
			COALESCE(sum(wm.user_count), 0) AS total_users,
			COALESCE(sum(wm.chat_count), 0) AS total_chats,
			COALESCE(sum(wm.message_count), 0) AS total_messages,
			COALESCE(sum(wf.positive), 0) AS total_positive,
			COALESCE(sum(wf.negative), 0) AS total_negative
		FROM model m
		JOIN "user" u ON m.user_id = u.id
		LEFT JOIN workspace_metrics wm ON m.id = wm.workspace_id
		LEFT JOIN workspace_feedback wf ON m.id = wf.workspace_id
		GROUP BY u.id, u.name, u.email
		ORDER BY total_chats DESC, u.id ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var all []DeveloperRow
	for rows.Next() {
		var r DeveloperRow
		var name sql.NullString
		if err := rows.Scan(
			&r.UserID,
			&name,
			&r.Email,
			&r.WorkspaceCount,
			&r.TotalUsers,
			&r.TotalChats,
			&r.TotalMessages,
			&r.TotalPositive,
			&r.TotalNegative,
		); err != nil {
			return nil, err
		}
		if name.Valid {
			r.UserName = &name.String
		}
		all = append(all, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	page := NewPage(all, p)
	return &page, nil
}

// GetGroupRanking ranks organizational groups by chats per member. Totals are
// summed across each member's individual usage; feedback is restricted to
// workspaces present in the identity table. Groups with no members appear
// with nil rates and sort after every group with a defined rate.
func (s *Store) GetGroupRanking(ctx context.Context, p PageParams) (*Page[GroupRow], error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "stats.group_ranking",
		trace.WithAttributes(
			attribute.Int("offset", p.Offset),
			attribute.Int("limit", p.Limit),
		))
	defer span.End()

	query := `
		WITH ` + chatWorkspacesCTE + `,
		` + feedbackRatingsCTE + `,
		group_sizes AS (
			SELECT g.id, count(gm.user_id) AS member_count
			FROM "group" g
			LEFT JOIN group_member gm ON g.id = gm.group_id
			GROUP BY g.id
		),
		user_usage AS (
			SELECT
				user_id,
				count(*) AS chat_count,
				sum(message_count) AS message_count
			FROM chat_workspaces
			GROUP BY user_id
		),
		user_fb AS (
			SELECT fr.user_id, count(*) AS total_feedbacks
			FROM feedback_ratings fr
			WHERE fr.workspace_id IN (SELECT id FROM model)
			GROUP BY fr.user_id
		)
		SELECT
			g.id AS group_id,
			g.name AS group_name,
			gs.member_count,
			COALESCE(sum(uu.chat_count), 0) AS total_chats,
			COALESCE(sum(uu.message_count), 0) AS total_messages,
			COALESCE(sum(ufb.total_feedbacks), 0) AS total_feedbacks
		FROM "group" g
		JOIN group_sizes gs ON g.id = gs.id
		LEFT JOIN group_member gm ON g.id = gm.group_id
		LEFT JOIN user_usage uu ON gm.user_id = uu.user_id
		LEFT JOIN user_fb ufb ON gm.user_id = ufb.user_id
		GROUP BY g.id, g.name, gs.member_count
		ORDER BY g.id ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var all []GroupRow
	for rows.Next() {
		var r GroupRow
		if err := rows.Scan(
			&r.GroupID,
			&r.GroupName,
			&r.MemberCount,
			&r.TotalChats,
			&r.TotalMessages,
			&r.TotalFeedbacks,
		); err != nil {
			return nil, err
		}
		r.ChatsPerMember = perMemberRate(r.TotalChats, r.MemberCount)
		r.MessagesPerMember = perMemberRate(r.TotalMessages, r.MemberCount)
		all = append(all, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sortGroupRows(all)
	page := NewPage(all, p)
	return &page, nil
}

// perMemberRate is total/members rounded to one decimal place, or nil when
// the group is empty (undefined, never a division error).
func perMemberRate(total, members int64) *float64 {
	if members <= 0 {
		return nil
	}
	rate, _ := decimal.NewFromInt(total).
		Div(decimal.NewFromInt(members)).
		Round(1).
		Float64()
	return &rate
}

// sortGroupRows orders by chats per member descending with undefined rates
// last, ties broken by group id ascending for stable pagination.
func sortGroupRows(rows []GroupRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].ChatsPerMember, rows[j].ChatsPerMember
		switch {
		case a != nil && b != nil && *a != *b:
			return *a > *b
		case a != nil && b == nil:
			return true
		case a == nil && b != nil:
			return false
		default:
			return rows[i].GroupID < rows[j].GroupID
		}
	})
}
