// Package appeals implements the appeal lifecycle: the transactional state
// machine that opens an appeal against a suspension, the inbox aggregate and
// the review-context read API.
package appeals

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/trustdesk/backend/internal/db"
	apperrors "github.com/trustdesk/backend/internal/errors"
	"github.com/trustdesk/backend/internal/observability"
	"github.com/trustdesk/backend/internal/token"
)

type Service struct {
	store    db.Client
	codec    *token.Codec
	notifier Notifier
	lookback time.Duration
	logger   *log.Entry
	tracer   trace.Tracer
}

func NewService(store db.Client, codec *token.Codec, notifier Notifier, lookback time.Duration) *Service {
	return &Service{
		store:    store,
		codec:    codec,
		notifier: notifier,
		lookback: lookback,
		logger:   log.WithField("service", "appeals"),
		tracer:   otel.Tracer("appeals"),
	}
}

// IssueToken mints the capability token embedded in the link a suspended
// user receives.
func (s *Service) IssueToken(userRecordID string) string {
	return s.codec.Issue(userRecordID)
}

// CreateAppealFromToken verifies the bearer token and opens an appeal for
// its subject. Storage is never touched for an invalid token.
func (s *Service) CreateAppealFromToken(ctx context.Context, tok, text string) (*db.Appeal, error) {
	ok, subjectID := s.codec.Verify(tok)
	if !ok {
		observability.RecordAppealFailure(apperrors.Reason(apperrors.ErrInvalidToken))
		return nil, apperrors.ErrInvalidToken
	}
	return s.CreateAppeal(ctx, subjectID, text)
}

// CreateAppeal runs the NoAppeal -> Open transition for the user's current
// suspension as one transaction:
//
//  1. load the user and their latest moderation action
//  2. reject banned users, then anyone not currently suspended
//  3. reject when an appeal already exists for the action
//  4. insert the appeal, its initial Open action, and sync the appeal's
//     denormalized status with it
//  5. re-point the action's existing messages at the appeal and add the
//     appellant's inbound message
//
// The unique index on (org_id, user_action_id) settles concurrent duplicate
// submissions: exactly one commits, the rest fail with ErrAppealExists.
// The status-changed event goes out after commit, best-effort.
func (s *Service) CreateAppeal(ctx context.Context, userRecordID, text string) (*db.Appeal, error) {
	ctx, span := s.tracer.Start(ctx, "appeals.create")
	defer span.End()
	stop := observability.StartAppealCreate()
	defer stop()

	entry := s.logger.WithField("method", "CreateAppeal")

	var appeal *db.Appeal
	var action *db.AppealAction
	err := s.store.InTx(ctx, func(tx db.Client) error {
		record, err := tx.GetUserRecord(ctx, userRecordID)
		if err != nil {
			return err
		}

		latest, err := tx.GetLatestUserAction(ctx, record.OrgID, record.ID)
		if err != nil {
			return err
		}
		if latest == nil {
			return apperrors.ErrNoAction
		}
		// Banned is checked before the suspension check on purpose: banned
		// users are categorically barred, whatever else their history says.
		if latest.Status == db.UserStatusBanned {
			return apperrors.ErrBanned
		}
		if latest.Status != db.UserStatusSuspended {
			return apperrors.ErrNotSuspended
		}

		existing, err := tx.GetAppealByUserAction(ctx, record.OrgID, latest.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return apperrors.ErrAppealExists
		}

		appeal = &db.Appeal{
			OrgID:        record.OrgID,
			UserActionID: latest.ID,
		}
		if err := tx.InsertAppeal(ctx, appeal); err != nil {
			return err
		}

		action = &db.AppealAction{
			OrgID:    record.OrgID,
			AppealID: appeal.ID,
			Status:   db.AppealStatusOpen,
			Via:      db.ViaInbound,
		}
		if err := tx.InsertAppealAction(ctx, action); err != nil {
			return err
		}

		// Sync the denormalized mirror with the action just inserted.
		if err := tx.SetAppealActionStatus(ctx, record.OrgID, appeal.ID, action.Status, action.CreatedAt); err != nil {
			return err
		}
		appeal.ActionStatus = &action.Status
		appeal.ActionStatusCreatedAt = &action.CreatedAt

		if _, err := tx.AttachMessagesToAppeal(ctx, record.OrgID, latest.ID, appeal.ID); err != nil {
			return err
		}

		return tx.InsertMessage(ctx, &db.Message{
			OrgID:        record.OrgID,
			UserActionID: &latest.ID,
			AppealID:     &appeal.ID,
			FromID:       record.ID,
			Text:         text,
			Type:         db.ViaInbound,
			Status:       db.MessageStatusDelivered,
		})
	})
	if err != nil {
		reason := apperrors.Reason(err)
		entry.WithField("reason", reason).WithError(err).Warn("appeal rejected")
		observability.RecordAppealFailure(reason)
		return nil, err
	}

	observability.RecordAppealCreated()
	entry.WithField("appeal_id", appeal.ID).Info("appeal created")

	if err := s.notifier.StatusChanged(ctx, StatusChanged{
		OrganizationID: appeal.OrgID,
		AppealActionID: action.ID,
		AppealID:       appeal.ID,
		Status:         action.Status,
		LastStatus:     nil,
	}); err != nil {
		// Storage already committed; dispatch is advisory.
		entry.WithError(err).Error("cant dispatch status-changed event")
		observability.RecordNotifierResult(false)
	}

	return appeal, nil
}

// InboxCount reports open appeals for the dashboard badge, straight off the
// denormalized status mirror.
func (s *Service) InboxCount(ctx context.Context, orgID string) (int, error) {
	return s.store.CountOpenAppeals(ctx, orgID)
}
