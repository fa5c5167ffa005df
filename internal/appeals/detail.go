package appeals

import (
	"context"
	"time"

	"github.com/trustdesk/backend/internal/db"
	apperrors "github.com/trustdesk/backend/internal/errors"
)

type (
	// AppealDetail is the staff review view: the appeal, the contested
	// action and its user, the full review timeline and the conversation.
	AppealDetail struct {
		Appeal     *db.Appeal           `json:"appeal"`
		UserAction *db.UserAction       `json:"userAction"`
		UserRecord *db.UserRecord       `json:"userRecord"`
		Actions    []*db.AppealAction   `json:"actions"`
		Messages   []*MessageWithSender `json:"messages"`
	}

	MessageWithSender struct {
		*db.Message
		Sender *db.UserRecord `json:"sender,omitempty"`
	}

	// ActivityReport is the lookback context shown next to an appeal under
	// review: the user's recent moderation actions and messages.
	ActivityReport struct {
		UserRecord *db.UserRecord   `json:"userRecord"`
		Since      time.Time        `json:"since"`
		Actions    []*db.UserAction `json:"actions"`
		Messages   []*db.Message    `json:"messages"`
	}
)

func (s *Service) GetAppealDetail(ctx context.Context, orgID, appealID string) (*AppealDetail, error) {
	appeal, err := s.store.GetAppeal(ctx, orgID, appealID)
	if err != nil {
		return nil, err
	}

	userAction, err := s.store.GetUserAction(ctx, orgID, appeal.UserActionID)
	if err != nil {
		return nil, err
	}

	record, err := s.store.GetUserRecord(ctx, userAction.UserRecordID)
	if err != nil {
		return nil, err
	}

	actions, err := s.store.ListAppealActions(ctx, orgID, appealID)
	if err != nil {
		return nil, err
	}

	messages, err := s.store.ListAppealMessages(ctx, orgID, appealID)
	if err != nil {
		return nil, err
	}

	withSenders := make([]*MessageWithSender, 0, len(messages))
	senders := map[string]*db.UserRecord{record.ID: record}
	for _, message := range messages {
		sender, ok := senders[message.FromID]
		if !ok && message.FromID != "" {
			// Staff sender ids have no user record; leave the sender empty.
			sender, _ = s.store.GetUserRecord(ctx, message.FromID)
			senders[message.FromID] = sender
		}
		if sender != nil && sender.OrgID != orgID {
			sender = nil
		}
		withSenders = append(withSenders, &MessageWithSender{Message: message, Sender: sender})
	}

	return &AppealDetail{
		Appeal:     appeal,
		UserAction: userAction,
		UserRecord: record,
		Actions:    actions,
		Messages:   withSenders,
	}, nil
}

// UserActivity returns the user's moderation and message history inside the
// configured lookback window.
func (s *Service) UserActivity(ctx context.Context, orgID, userRecordID string) (*ActivityReport, error) {
	record, err := s.store.GetUserRecord(ctx, userRecordID)
	if err != nil {
		return nil, err
	}
	if record.OrgID != orgID {
		return nil, apperrors.ErrNotFound
	}

	since := time.Now().UTC().Add(-s.lookback)

	actions, err := s.store.ListUserActionsSince(ctx, orgID, record.ID, since)
	if err != nil {
		return nil, err
	}

	messages, err := s.store.ListUserMessagesSince(ctx, orgID, record.ID, since)
	if err != nil {
		return nil, err
	}

	return &ActivityReport{
		UserRecord: record,
		Since:      since,
		Actions:    actions,
		Messages:   messages,
	}, nil
}
