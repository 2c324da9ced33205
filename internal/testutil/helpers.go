package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
)

// SeedUser inserts a chat platform user and returns its id.
func (e *TestEnvironment) SeedUser(t *testing.T, name, email string) string {
	t.Helper()
	id := uuid.New().String()
	_, err := e.DB.Conn().ExecContext(context.Background(),
		`INSERT INTO "user" (id, name, email) VALUES ($1, $2, $3)`, id, name, email)
	if err != nil {
		t.Fatalf("Failed to seed user: %v", err)
	}
	return id
}

// SeedWorkspace inserts a model (workspace) owned by the given user and
// returns its id.
func (e *TestEnvironment) SeedWorkspace(t *testing.T, name, ownerID string) string {
	t.Helper()
	id := uuid.New().String()
	_, err := e.DB.Conn().ExecContext(context.Background(),
		`INSERT INTO model (id, name, user_id) VALUES ($1, $2, $3)`, id, name, ownerID)
	if err != nil {
		t.Fatalf("Failed to seed workspace: %v", err)
	}
	return id
}

// SeedChat inserts a chat by userID that used the given workspaces and
// holds messageCount messages, created at createdAt.
func (e *TestEnvironment) SeedChat(t *testing.T, userID string, workspaces []string, messageCount int, createdAt time.Time) string {
	t.Helper()

	messages := make([]map[string]string, messageCount)
	for i := range messages {
		messages[i] = map[string]string{"role": "user", "content": fmt.Sprintf("message %d", i)}
	}
	payload, err := json.Marshal(map[string]any{
		"models":   workspaces,
		"messages": messages,
	})
	if err != nil {
		t.Fatalf("Failed to marshal chat payload: %v", err)
	}

	id := uuid.New().String()
	_, err = e.DB.Conn().ExecContext(context.Background(),
		`INSERT INTO chat (id, user_id, chat, created_at) VALUES ($1, $2, $3, $4)`,
		id, userID, string(payload), createdAt.Unix())
	if err != nil {
		t.Fatalf("Failed to seed chat: %v", err)
	}
	return id
}

// SeedRawChat inserts a chat with an arbitrary JSON payload, for malformed
// payload cases.
func (e *TestEnvironment) SeedRawChat(t *testing.T, userID, payload string, createdAt time.Time) string {
	t.Helper()
	id := uuid.New().String()
	_, err := e.DB.Conn().ExecContext(context.Background(),
		`INSERT INTO chat (id, user_id, chat, created_at) VALUES ($1, $2, $3, $4)`,
		id, userID, payload, createdAt.Unix())
	if err != nil {
		t.Fatalf("Failed to seed raw chat: %v", err)
	}
	return id
}

// SeedGroup inserts a group with the given members and returns its id.
func (e *TestEnvironment) SeedGroup(t *testing.T, name string, memberIDs ...string) string {
	t.Helper()
	ctx := context.Background()

	id := uuid.New().String()
	_, err := e.DB.Conn().ExecContext(ctx,
		`INSERT INTO "group" (id, name) VALUES ($1, $2)`, id, name)
	if err != nil {
		t.Fatalf("Failed to seed group: %v", err)
	}
	for _, memberID := range memberIDs {
		_, err := e.DB.Conn().ExecContext(ctx,
			`INSERT INTO group_member (group_id, user_id) VALUES ($1, $2)`, id, memberID)
		if err != nil {
			t.Fatalf("Failed to seed group member: %v", err)
		}
	}
	return id
}

// SeedFeedback inserts a feedback entry by userID on the given workspace
// with the given rating.
func (e *TestEnvironment) SeedFeedback(t *testing.T, userID, workspaceID string, rating int) string {
	t.Helper()

	payload, err := json.Marshal(map[string]any{
		"model_id": workspaceID,
		"rating":   fmt.Sprintf("%d", rating),
	})
	if err != nil {
		t.Fatalf("Failed to marshal feedback payload: %v", err)
	}

	id := uuid.New().String()
	_, err = e.DB.Conn().ExecContext(context.Background(),
		`INSERT INTO feedback (id, user_id, data, created_at) VALUES ($1, $2, $3, $4)`,
		id, userID, string(payload), time.Now().Unix())
	if err != nil {
		t.Fatalf("Failed to seed feedback: %v", err)
	}
	return id
}
