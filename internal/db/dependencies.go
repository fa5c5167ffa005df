package db

import (
	"context"
	"time"
)

// Client is the org-scoped persistence contract for the appeal lifecycle.
// Every read/write that touches org-owned rows takes the org id explicitly;
// the only exception is GetUserRecord, whose id arrives from a verified
// appeal token and whose row carries the authoritative org id.
//
// InTx runs fn against a Client bound to a single database transaction.
// Calling InTx on an already transactional Client reuses the ambient
// transaction.
type Client interface {
	Close() error
	InTx(ctx context.Context, fn func(tx Client) error) error

	// User records (written by the external ingestion collaborator).
	UpsertUserRecord(ctx context.Context, record *UserRecord) error
	GetUserRecord(ctx context.Context, id string) (*UserRecord, error)
	GetUserRecordByClientID(ctx context.Context, orgID, clientID string) (*UserRecord, error)
	ListUserRecords(ctx context.Context, orgID string) ([]*UserRecord, error)

	// User actions (written by the external moderation pipeline).
	InsertUserAction(ctx context.Context, action *UserAction) error
	GetLatestUserAction(ctx context.Context, orgID, userRecordID string) (*UserAction, error)
	GetUserAction(ctx context.Context, orgID, id string) (*UserAction, error)
	ListUserActionsSince(ctx context.Context, orgID, userRecordID string, since time.Time) ([]*UserAction, error)

	// Appeals.
	InsertAppeal(ctx context.Context, appeal *Appeal) error
	GetAppeal(ctx context.Context, orgID, id string) (*Appeal, error)
	GetAppealByUserAction(ctx context.Context, orgID, userActionID string) (*Appeal, error)
	SetAppealActionStatus(ctx context.Context, orgID, appealID, status string, at time.Time) error
	CountOpenAppeals(ctx context.Context, orgID string) (int, error)

	// Appeal actions.
	InsertAppealAction(ctx context.Context, action *AppealAction) error
	ListAppealActions(ctx context.Context, orgID, appealID string) ([]*AppealAction, error)

	// Messages.
	InsertMessage(ctx context.Context, message *Message) error
	AttachMessagesToAppeal(ctx context.Context, orgID, userActionID, appealID string) (int64, error)
	ListAppealMessages(ctx context.Context, orgID, appealID string) ([]*Message, error)
	ListUserMessagesSince(ctx context.Context, orgID, userRecordID string, since time.Time) ([]*Message, error)
	CountUnattachedMessages(ctx context.Context, orgID, userActionID string) (int, error)
}
