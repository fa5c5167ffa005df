package appeals

import (
	"context"
	"errors"
	"testing"

	"github.com/trustdesk/backend/internal/db"
	apperrors "github.com/trustdesk/backend/internal/errors"
)

func TestGetAppealDetail(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	service, store, _ := newTestService(t)
	record := seedUser(t, store, db.UserStatusSuspended)

	appeal, err := service.CreateAppeal(ctx, record.ID, "please review")
	if err != nil {
		t.Fatalf("create appeal: %v", err)
	}

	detail, err := service.GetAppealDetail(ctx, testOrgID, appeal.ID)
	if err != nil {
		t.Fatalf("get appeal detail: %v", err)
	}
	if detail.Appeal.ID != appeal.ID {
		t.Fatalf("unexpected appeal: %#v", detail.Appeal)
	}
	if detail.UserRecord.ID != record.ID {
		t.Fatalf("unexpected user record: %#v", detail.UserRecord)
	}
	if detail.UserAction.Status != db.UserStatusSuspended {
		t.Fatalf("unexpected user action: %#v", detail.UserAction)
	}
	if len(detail.Actions) != 1 || detail.Actions[0].Status != db.AppealStatusOpen {
		t.Fatalf("unexpected actions: %#v", detail.Actions)
	}
	if len(detail.Messages) != 1 {
		t.Fatalf("want 1 message, got %d", len(detail.Messages))
	}
	if detail.Messages[0].Sender == nil || detail.Messages[0].Sender.ID != record.ID {
		t.Fatalf("message sender not resolved: %#v", detail.Messages[0])
	}
}

func TestGetAppealDetailForeignOrg(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	service, store, _ := newTestService(t)
	record := seedUser(t, store, db.UserStatusSuspended)

	appeal, err := service.CreateAppeal(ctx, record.ID, "please review")
	if err != nil {
		t.Fatalf("create appeal: %v", err)
	}

	if _, err := service.GetAppealDetail(ctx, "org-other", appeal.ID); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestUserActivity(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	service, store, _ := newTestService(t)
	record := seedUser(t, store, db.UserStatusSuspended)

	if err := store.InsertMessage(ctx, &db.Message{
		OrgID:  testOrgID,
		FromID: record.ID,
		Text:   "hello",
		Type:   db.ViaInbound,
		Status: db.MessageStatusDelivered,
	}); err != nil {
		t.Fatalf("insert message: %v", err)
	}

	report, err := service.UserActivity(ctx, testOrgID, record.ID)
	if err != nil {
		t.Fatalf("user activity: %v", err)
	}
	if report.UserRecord.ID != record.ID {
		t.Fatalf("unexpected user record: %#v", report.UserRecord)
	}
	if len(report.Actions) != 1 {
		t.Fatalf("want 1 action in window, got %d", len(report.Actions))
	}
	if len(report.Messages) != 1 {
		t.Fatalf("want 1 message in window, got %d", len(report.Messages))
	}

	if _, err := service.UserActivity(ctx, "org-other", record.ID); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("want ErrNotFound for foreign org, got %v", err)
	}
}
