package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iamwavecut/tool"

	"github.com/trustdesk/backend/internal/db"
	apperrors "github.com/trustdesk/backend/internal/errors"
)

func (c *sqliteClient) UpsertUserRecord(ctx context.Context, record *db.UserRecord) error {
	now := time.Now().UTC()
	if record.ID == "" {
		record.ID = db.NewID()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	query := `
		INSERT INTO user_records (id, org_id, client_id, name, email, metadata, protected, created_at, updated_at)
		VALUES (:id, :org_id, :client_id, :name, :email, :metadata, :protected, :created_at, :updated_at)
		ON CONFLICT(org_id, client_id) DO UPDATE SET
		name=excluded.name,
		email=excluded.email,
		metadata=excluded.metadata,
		updated_at=excluded.updated_at;
	`
	return tool.Err(c.q.NamedExecContext(ctx, query, record))
}

func (c *sqliteClient) GetUserRecord(ctx context.Context, id string) (*db.UserRecord, error) {
	var record db.UserRecord
	err := c.q.GetContext(ctx, &record, `SELECT * FROM user_records WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

func (c *sqliteClient) GetUserRecordByClientID(ctx context.Context, orgID, clientID string) (*db.UserRecord, error) {
	var record db.UserRecord
	err := c.q.GetContext(ctx, &record, `
		SELECT * FROM user_records
		WHERE org_id = ? AND client_id = ?
	`, orgID, clientID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

func (c *sqliteClient) ListUserRecords(ctx context.Context, orgID string) ([]*db.UserRecord, error) {
	var records []*db.UserRecord
	err := c.q.SelectContext(ctx, &records, `
		SELECT * FROM user_records
		WHERE org_id = ?
		ORDER BY created_at ASC
	`, orgID)
	return records, err
}

func (c *sqliteClient) InsertUserAction(ctx context.Context, action *db.UserAction) error {
	if err := action.Validate(); err != nil {
		return err
	}
	if action.ID == "" {
		action.ID = db.NewID()
	}
	if action.CreatedAt.IsZero() {
		action.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO user_actions (id, org_id, user_record_id, status, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := c.q.ExecContext(ctx, query,
		action.ID,
		action.OrgID,
		action.UserRecordID,
		action.Status,
		action.Reason,
		action.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert user action: %w", err)
	}
	return nil
}

// GetLatestUserAction returns the user's current moderation action, or nil
// when the user has no action history.
func (c *sqliteClient) GetLatestUserAction(ctx context.Context, orgID, userRecordID string) (*db.UserAction, error) {
	var action db.UserAction
	err := c.q.GetContext(ctx, &action, `
		SELECT * FROM user_actions
		WHERE org_id = ? AND user_record_id = ?
		ORDER BY created_at DESC
		LIMIT 1
	`, orgID, userRecordID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &action, nil
}

func (c *sqliteClient) GetUserAction(ctx context.Context, orgID, id string) (*db.UserAction, error) {
	var action db.UserAction
	err := c.q.GetContext(ctx, &action, `
		SELECT * FROM user_actions
		WHERE org_id = ? AND id = ?
	`, orgID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &action, nil
}

func (c *sqliteClient) ListUserActionsSince(ctx context.Context, orgID, userRecordID string, since time.Time) ([]*db.UserAction, error) {
	var actions []*db.UserAction
	err := c.q.SelectContext(ctx, &actions, `
		SELECT * FROM user_actions
		WHERE org_id = ? AND user_record_id = ? AND created_at >= ?
		ORDER BY created_at DESC
	`, orgID, userRecordID, since)
	return actions, err
}
