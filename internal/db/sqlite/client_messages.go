package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/trustdesk/backend/internal/db"
)

func (c *sqliteClient) InsertMessage(ctx context.Context, message *db.Message) error {
	if message.ID == "" {
		message.ID = db.NewID()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO messages (id, org_id, user_action_id, appeal_id, from_id, subject, text, type, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := c.q.ExecContext(ctx, query,
		message.ID,
		message.OrgID,
		message.UserActionID,
		message.AppealID,
		message.FromID,
		message.Subject,
		message.Text,
		message.Type,
		message.Status,
		message.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// AttachMessagesToAppeal re-points every message tied to the user action at
// the given appeal, picking up pre-appeal history like the suspension notice.
func (c *sqliteClient) AttachMessagesToAppeal(ctx context.Context, orgID, userActionID, appealID string) (int64, error) {
	query := `
		UPDATE messages
		SET appeal_id = ?
		WHERE org_id = ? AND user_action_id = ?
	`
	res, err := c.q.ExecContext(ctx, query, appealID, orgID, userActionID)
	if err != nil {
		return 0, fmt.Errorf("attach messages to appeal: %w", err)
	}
	return res.RowsAffected()
}

func (c *sqliteClient) ListAppealMessages(ctx context.Context, orgID, appealID string) ([]*db.Message, error) {
	var messages []*db.Message
	err := c.q.SelectContext(ctx, &messages, `
		SELECT * FROM messages
		WHERE org_id = ? AND appeal_id = ?
		ORDER BY created_at ASC
	`, orgID, appealID)
	return messages, err
}

func (c *sqliteClient) ListUserMessagesSince(ctx context.Context, orgID, userRecordID string, since time.Time) ([]*db.Message, error) {
	var messages []*db.Message
	err := c.q.SelectContext(ctx, &messages, `
		SELECT * FROM messages
		WHERE org_id = ? AND from_id = ? AND created_at >= ?
		ORDER BY created_at DESC
	`, orgID, userRecordID, since)
	return messages, err
}

func (c *sqliteClient) CountUnattachedMessages(ctx context.Context, orgID, userActionID string) (int, error) {
	var count int
	err := c.q.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM messages
		WHERE org_id = ? AND user_action_id = ? AND appeal_id IS NULL
	`, orgID, userActionID)
	return count, err
}
