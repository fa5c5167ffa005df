// Command seed populates a development database with a demo organization:
// a few user records, their moderation actions, some pre-appeal messages,
// and an opened appeal for the suspended user. It prints the appeal token
// so the submission endpoint can be exercised by hand.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/trustdesk/backend/internal/appeals"
	"github.com/trustdesk/backend/internal/config"
	"github.com/trustdesk/backend/internal/db"
	"github.com/trustdesk/backend/internal/db/sqlite"
	"github.com/trustdesk/backend/internal/infra"
	"github.com/trustdesk/backend/internal/token"
)

const demoOrgID = "org-demo"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatalln("cant load config")
	}
	log.SetFormatter(&config.TdFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.Level(cfg.LogLevel))

	ctx := context.Background()
	store, err := sqlite.NewSQLiteClient(ctx, infra.GetWorkDir(), cfg.DBPath)
	if err != nil {
		log.WithError(err).Fatalln("cant open database")
	}
	defer func() {
		_ = store.Close()
	}()

	suspended, err := seedUsers(ctx, store)
	if err != nil {
		log.WithError(err).Fatalln("cant seed users")
	}

	// Webhook dispatch stays disabled here; nothing listens during seeding.
	notifier := appeals.NewWebhookNotifier(config.Webhook{})
	service := appeals.NewService(store, token.NewCodec(cfg.SecretKey), notifier, cfg.Lookback)

	tok := service.IssueToken(suspended.ID)
	appeal, err := service.CreateAppeal(ctx, suspended.ID, "I believe this suspension was a mistake.")
	if err != nil {
		log.WithError(err).Fatalln("cant open demo appeal")
	}

	fmt.Printf("org:          %s\n", demoOrgID)
	fmt.Printf("suspended:    %s (%s)\n", suspended.Name, suspended.ID)
	fmt.Printf("appeal:       %s\n", appeal.ID)
	fmt.Printf("appeal token: %s\n", tok)
}

// seedUsers writes the demo fixtures and returns the suspended user, the only
// one eligible to appeal.
func seedUsers(ctx context.Context, store db.Client) (*db.UserRecord, error) {
	now := time.Now().UTC()

	users := []struct {
		record  db.UserRecord
		status  string
		reason  string
		message string
	}{
		{
			record: db.UserRecord{
				OrgID:    demoOrgID,
				ClientID: "client-1001",
				Name:     "Dana Reyes",
				Email:    "dana@example.com",
				Metadata: db.Metadata{"plan": "pro"},
			},
			status:  db.UserStatusSuspended,
			reason:  "spam reports exceeded threshold",
			message: "Please review my account, I did not send spam.",
		},
		{
			record: db.UserRecord{
				OrgID:    demoOrgID,
				ClientID: "client-1002",
				Name:     "Miko Tanaka",
				Email:    "miko@example.com",
			},
			status: db.UserStatusBanned,
			reason: "repeated terms of service violations",
		},
		{
			record: db.UserRecord{
				OrgID:    demoOrgID,
				ClientID: "client-1003",
				Name:     "Ari Lindqvist",
				Email:    "ari@example.com",
			},
			status: db.UserStatusCompliant,
		},
	}

	var suspended *db.UserRecord
	err := store.InTx(ctx, func(tx db.Client) error {
		for i := range users {
			u := &users[i]
			if err := tx.UpsertUserRecord(ctx, &u.record); err != nil {
				return err
			}
			record, err := tx.GetUserRecordByClientID(ctx, demoOrgID, u.record.ClientID)
			if err != nil {
				return err
			}

			action := &db.UserAction{
				OrgID:        demoOrgID,
				UserRecordID: record.ID,
				Status:       u.status,
				Reason:       u.reason,
				CreatedAt:    now.Add(-time.Duration(i+1) * time.Hour),
			}
			if err := tx.InsertUserAction(ctx, action); err != nil {
				return err
			}

			if u.message != "" {
				if err := tx.InsertMessage(ctx, &db.Message{
					OrgID:        demoOrgID,
					UserActionID: &action.ID,
					FromID:       record.ID,
					Subject:      "Account suspension",
					Text:         u.message,
					Type:         db.ViaInbound,
					Status:       db.MessageStatusDelivered,
				}); err != nil {
					return err
				}
			}

			if u.status == db.UserStatusSuspended {
				suspended = record
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return suspended, nil
}
