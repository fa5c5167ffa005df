package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/trustdesk/backend/internal/db"
	apperrors "github.com/trustdesk/backend/internal/errors"
)

// InsertAppeal creates the appeal row without a denormalized status; the
// caller fills it in once the initial appeal action exists. The unique index
// on (org_id, user_action_id) is the real one-appeal-per-suspension
// guarantee, a violation surfaces as ErrAppealExists.
func (c *sqliteClient) InsertAppeal(ctx context.Context, appeal *db.Appeal) error {
	now := time.Now().UTC()
	if appeal.ID == "" {
		appeal.ID = db.NewID()
	}
	if appeal.CreatedAt.IsZero() {
		appeal.CreatedAt = now
	}
	appeal.UpdatedAt = now

	query := `
		INSERT INTO appeals (id, org_id, user_action_id, action_status, action_status_created_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := c.q.ExecContext(ctx, query,
		appeal.ID,
		appeal.OrgID,
		appeal.UserActionID,
		appeal.ActionStatus,
		appeal.ActionStatusCreatedAt,
		appeal.CreatedAt,
		appeal.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrAppealExists
		}
		return fmt.Errorf("insert appeal: %w", err)
	}
	return nil
}

func (c *sqliteClient) GetAppeal(ctx context.Context, orgID, id string) (*db.Appeal, error) {
	var appeal db.Appeal
	err := c.q.GetContext(ctx, &appeal, `
		SELECT * FROM appeals
		WHERE org_id = ? AND id = ?
	`, orgID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &appeal, nil
}

// GetAppealByUserAction returns nil when no appeal exists yet; that is the
// normal state before a suspended user appeals.
func (c *sqliteClient) GetAppealByUserAction(ctx context.Context, orgID, userActionID string) (*db.Appeal, error) {
	var appeal db.Appeal
	err := c.q.GetContext(ctx, &appeal, `
		SELECT * FROM appeals
		WHERE org_id = ? AND user_action_id = ?
	`, orgID, userActionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &appeal, nil
}

// SetAppealActionStatus syncs the denormalized status mirror with the latest
// appeal action.
func (c *sqliteClient) SetAppealActionStatus(ctx context.Context, orgID, appealID, status string, at time.Time) error {
	query := `
		UPDATE appeals
		SET action_status = ?,
			action_status_created_at = ?,
			updated_at = ?
		WHERE org_id = ? AND id = ?
	`
	res, err := c.q.ExecContext(ctx, query, status, at, time.Now().UTC(), orgID, appealID)
	if err != nil {
		return fmt.Errorf("set appeal action status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// CountOpenAppeals counts against the denormalized mirror only; it must not
// recompute from the appeal action history.
func (c *sqliteClient) CountOpenAppeals(ctx context.Context, orgID string) (int, error) {
	var count int
	err := c.q.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM appeals
		WHERE org_id = ? AND action_status = ?
	`, orgID, db.AppealStatusOpen)
	return count, err
}

func (c *sqliteClient) InsertAppealAction(ctx context.Context, action *db.AppealAction) error {
	if action.ID == "" {
		action.ID = db.NewID()
	}
	if action.CreatedAt.IsZero() {
		action.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO appeal_actions (id, org_id, appeal_id, status, via, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := c.q.ExecContext(ctx, query,
		action.ID,
		action.OrgID,
		action.AppealID,
		action.Status,
		action.Via,
		action.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert appeal action: %w", err)
	}
	return nil
}

func (c *sqliteClient) ListAppealActions(ctx context.Context, orgID, appealID string) ([]*db.AppealAction, error) {
	var actions []*db.AppealAction
	err := c.q.SelectContext(ctx, &actions, `
		SELECT * FROM appeal_actions
		WHERE org_id = ? AND appeal_id = ?
		ORDER BY created_at ASC
	`, orgID, appealID)
	return actions, err
}
