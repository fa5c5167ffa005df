package appeals

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/trustdesk/backend/internal/db"
	"github.com/trustdesk/backend/internal/db/sqlite"
	apperrors "github.com/trustdesk/backend/internal/errors"
	"github.com/trustdesk/backend/internal/token"
)

const testOrgID = "org-test"

type recordingNotifier struct {
	mu     sync.Mutex
	events []StatusChanged
	err    error
}

func (n *recordingNotifier) StatusChanged(ctx context.Context, evt StatusChanged) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.events = append(n.events, evt)
	return nil
}

func (n *recordingNotifier) received() []StatusChanged {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]StatusChanged(nil), n.events...)
}

func newTestService(t *testing.T) (*Service, db.Client, *recordingNotifier) {
	t.Helper()

	store, err := sqlite.NewSQLiteClient(context.Background(), t.TempDir(), "test.db")
	if err != nil {
		t.Fatalf("new sqlite client: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	notifier := &recordingNotifier{}
	service := NewService(store, token.NewCodec("test-root-secret"), notifier, 7*24*time.Hour)
	return service, store, notifier
}

func seedUser(t *testing.T, store db.Client, status string) *db.UserRecord {
	t.Helper()

	ctx := context.Background()
	record := &db.UserRecord{
		OrgID:    testOrgID,
		ClientID: "client-" + db.NewID(),
		Name:     "Test User",
		Email:    "user@example.com",
	}
	if err := store.UpsertUserRecord(ctx, record); err != nil {
		t.Fatalf("upsert user record: %v", err)
	}
	if status != "" {
		if err := store.InsertUserAction(ctx, &db.UserAction{
			OrgID:        testOrgID,
			UserRecordID: record.ID,
			Status:       status,
			Reason:       "test fixture",
		}); err != nil {
			t.Fatalf("insert user action: %v", err)
		}
	}
	return record
}

func TestCreateAppealOpensAppealWithInitialAction(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	service, store, notifier := newTestService(t)
	record := seedUser(t, store, db.UserStatusSuspended)

	appeal, err := service.CreateAppeal(ctx, record.ID, "please reconsider")
	if err != nil {
		t.Fatalf("create appeal: %v", err)
	}

	if appeal.ActionStatus == nil || *appeal.ActionStatus != db.AppealStatusOpen {
		t.Fatalf("unexpected action status: %#v", appeal.ActionStatus)
	}
	if appeal.ActionStatusCreatedAt == nil {
		t.Fatal("action status timestamp not set")
	}

	actions, err := store.ListAppealActions(ctx, testOrgID, appeal.ID)
	if err != nil {
		t.Fatalf("list appeal actions: %v", err)
	}
	if len(actions) != 1 {
		t.Fatalf("want exactly one appeal action, got %d", len(actions))
	}
	if actions[0].Status != db.AppealStatusOpen || actions[0].Via != db.ViaInbound {
		t.Fatalf("unexpected initial action: %#v", actions[0])
	}

	stored, err := store.GetAppeal(ctx, testOrgID, appeal.ID)
	if err != nil {
		t.Fatalf("get stored appeal: %v", err)
	}
	if stored.ActionStatus == nil || *stored.ActionStatus != db.AppealStatusOpen {
		t.Fatalf("stored status mirror not synced: %#v", stored.ActionStatus)
	}

	events := notifier.received()
	if len(events) != 1 {
		t.Fatalf("want one status-changed event, got %d", len(events))
	}
	evt := events[0]
	if evt.AppealID != appeal.ID || evt.Status != db.AppealStatusOpen || evt.LastStatus != nil {
		t.Fatalf("unexpected event: %#v", evt)
	}
	if evt.OrganizationID != testOrgID || evt.AppealActionID != actions[0].ID {
		t.Fatalf("unexpected event scope: %#v", evt)
	}
}

func TestCreateAppealAttachesConversation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	service, store, _ := newTestService(t)
	record := seedUser(t, store, db.UserStatusSuspended)

	latest, err := store.GetLatestUserAction(ctx, testOrgID, record.ID)
	if err != nil || latest == nil {
		t.Fatalf("get latest action: %v %#v", err, latest)
	}
	for i := 0; i < 2; i++ {
		if err := store.InsertMessage(ctx, &db.Message{
			OrgID:        testOrgID,
			UserActionID: &latest.ID,
			FromID:       record.ID,
			Text:         "pre-appeal plea",
			Type:         db.ViaInbound,
			Status:       db.MessageStatusDelivered,
		}); err != nil {
			t.Fatalf("insert message: %v", err)
		}
	}

	appeal, err := service.CreateAppeal(ctx, record.ID, "formal appeal text")
	if err != nil {
		t.Fatalf("create appeal: %v", err)
	}

	messages, err := store.ListAppealMessages(ctx, testOrgID, appeal.ID)
	if err != nil {
		t.Fatalf("list appeal messages: %v", err)
	}
	// Two pre-existing messages plus the appellant's new one.
	if len(messages) != 3 {
		t.Fatalf("want 3 messages on appeal, got %d", len(messages))
	}

	unattached, err := store.CountUnattachedMessages(ctx, testOrgID, latest.ID)
	if err != nil {
		t.Fatalf("count unattached: %v", err)
	}
	if unattached != 0 {
		t.Fatalf("want 0 unattached messages, got %d", unattached)
	}
}

func TestCreateAppealEligibility(t *testing.T) {
	t.Parallel()

	for name, tc := range map[string]struct {
		status  string
		wantErr error
	}{
		"banned users are barred":      {db.UserStatusBanned, apperrors.ErrBanned},
		"compliant users cant appeal":  {db.UserStatusCompliant, apperrors.ErrNotSuspended},
		"flagged users cant appeal":    {db.UserStatusFlagged, apperrors.ErrNotSuspended},
		"users without action history": {"", apperrors.ErrNoAction},
	} {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			service, store, notifier := newTestService(t)
			record := seedUser(t, store, tc.status)

			if _, err := service.CreateAppeal(ctx, record.ID, "plea"); !errors.Is(err, tc.wantErr) {
				t.Fatalf("want %v, got %v", tc.wantErr, err)
			}

			// Nothing may be left behind by a rejected submission.
			count, err := service.InboxCount(ctx, testOrgID)
			if err != nil {
				t.Fatalf("inbox count: %v", err)
			}
			if count != 0 {
				t.Fatalf("rejected submission left %d open appeals", count)
			}
			if len(notifier.received()) != 0 {
				t.Fatal("rejected submission dispatched an event")
			}
		})
	}
}

func TestCreateAppealUnknownUser(t *testing.T) {
	t.Parallel()

	service, _, _ := newTestService(t)
	if _, err := service.CreateAppeal(context.Background(), "missing-user", "plea"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestCreateAppealIsSingular(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	service, store, _ := newTestService(t)
	record := seedUser(t, store, db.UserStatusSuspended)

	if _, err := service.CreateAppeal(ctx, record.ID, "first"); err != nil {
		t.Fatalf("create first appeal: %v", err)
	}
	if _, err := service.CreateAppeal(ctx, record.ID, "second"); !errors.Is(err, apperrors.ErrAppealExists) {
		t.Fatalf("want ErrAppealExists, got %v", err)
	}

	count, err := service.InboxCount(ctx, testOrgID)
	if err != nil {
		t.Fatalf("inbox count: %v", err)
	}
	if count != 1 {
		t.Fatalf("want exactly one open appeal, got %d", count)
	}
}

func TestCreateAppealConcurrentDuplicates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	service, store, notifier := newTestService(t)
	record := seedUser(t, store, db.UserStatusSuspended)

	const attempts = 8
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.CreateAppeal(ctx, record.ID, "race")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var successes, conflicts int
	for err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, apperrors.ErrAppealExists):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 1 || conflicts != attempts-1 {
		t.Fatalf("want 1 success and %d conflicts, got %d and %d", attempts-1, successes, conflicts)
	}

	count, err := service.InboxCount(ctx, testOrgID)
	if err != nil {
		t.Fatalf("inbox count: %v", err)
	}
	if count != 1 {
		t.Fatalf("want exactly one open appeal, got %d", count)
	}
	if len(notifier.received()) != 1 {
		t.Fatalf("want exactly one status-changed event, got %d", len(notifier.received()))
	}
}

func TestCreateAppealSurvivesNotifierFailure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	service, store, notifier := newTestService(t)
	notifier.err = errors.New("webhook down")
	record := seedUser(t, store, db.UserStatusSuspended)

	appeal, err := service.CreateAppeal(ctx, record.ID, "plea")
	if err != nil {
		t.Fatalf("create appeal: %v", err)
	}

	stored, err := store.GetAppeal(ctx, testOrgID, appeal.ID)
	if err != nil {
		t.Fatalf("get stored appeal: %v", err)
	}
	if stored.ActionStatus == nil || *stored.ActionStatus != db.AppealStatusOpen {
		t.Fatalf("appeal not committed despite notifier failure: %#v", stored)
	}
}

func TestCreateAppealFromToken(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	service, store, _ := newTestService(t)
	record := seedUser(t, store, db.UserStatusSuspended)

	tok := service.IssueToken(record.ID)
	appeal, err := service.CreateAppealFromToken(ctx, tok, "plea")
	if err != nil {
		t.Fatalf("create appeal from token: %v", err)
	}
	if appeal == nil || appeal.OrgID != testOrgID {
		t.Fatalf("unexpected appeal: %#v", appeal)
	}
}

func TestCreateAppealFromTokenRejectsForgery(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	service, store, _ := newTestService(t)
	record := seedUser(t, store, db.UserStatusSuspended)

	tok := service.IssueToken(record.ID)
	forged := tok[:len(tok)-1] + flipHexChar(tok[len(tok)-1])

	if _, err := service.CreateAppealFromToken(ctx, forged, "plea"); !errors.Is(err, apperrors.ErrInvalidToken) {
		t.Fatalf("want ErrInvalidToken, got %v", err)
	}

	// Storage must stay untouched for invalid tokens.
	count, err := service.InboxCount(ctx, testOrgID)
	if err != nil {
		t.Fatalf("inbox count: %v", err)
	}
	if count != 0 {
		t.Fatalf("forged token created %d appeals", count)
	}
}

func flipHexChar(c byte) string {
	if c == '0' {
		return "1"
	}
	return "0"
}

func TestInboxCountPerOrg(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	service, store, _ := newTestService(t)
	record := seedUser(t, store, db.UserStatusSuspended)

	if _, err := service.CreateAppeal(ctx, record.ID, "plea"); err != nil {
		t.Fatalf("create appeal: %v", err)
	}

	count, err := service.InboxCount(ctx, testOrgID)
	if err != nil {
		t.Fatalf("inbox count: %v", err)
	}
	if count != 1 {
		t.Fatalf("want 1 open appeal, got %d", count)
	}

	other, err := service.InboxCount(ctx, "org-other")
	if err != nil {
		t.Fatalf("inbox count other org: %v", err)
	}
	if other != 0 {
		t.Fatalf("foreign org sees %d appeals", other)
	}
}
