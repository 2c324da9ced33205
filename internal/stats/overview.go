package stats

import "context"

// GetOverview returns aggregate totals across all chats, referenced
// workspaces, and feedback entries. total_models counts distinct workspace
// references in chat payloads, matching the dashboard's headline number even
// when a referenced workspace has since been deleted.
func (s *Store) GetOverview(ctx context.Context) (*Overview, error) {
	ctx, span := tracer.Start(ctx, "stats.get_overview")
	defer span.End()

	query := `
		WITH ` + chatWorkspacesCTE + `,
		chat_stats AS (
			SELECT
				count(*) AS total_chats,
				COALESCE(sum(` + messageCountExpr + `), 0) AS total_messages
			FROM chat c
		),
		model_stats AS (
			SELECT count(DISTINCT workspace_id) AS total_models FROM chat_workspaces
		),
		feedback_stats AS (
			SELECT count(*) AS total_feedbacks FROM feedback
		)
		SELECT cs.total_chats, cs.total_messages, ms.total_models, fs.total_feedbacks
		FROM chat_stats cs, model_stats ms, feedback_stats fs
	`

	var o Overview
	err := s.db.QueryRowContext(ctx, query).Scan(
		&o.TotalChats,
		&o.TotalMessages,
		&o.TotalModels,
		&o.TotalFeedbacks,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}
