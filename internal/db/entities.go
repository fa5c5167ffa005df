package db

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pborman/uuid"
	"github.com/pkg/errors"
)

// User moderation statuses, as produced by the external moderation pipeline.
// The most recent UserAction carries the user's current status.
const (
	UserStatusCompliant = "Compliant"
	UserStatusFlagged   = "Flagged"
	UserStatusSuspended = "Suspended"
	UserStatusBanned    = "Banned"
)

// Appeal review statuses. This core only ever writes Open; the rest belong to
// the downstream review flow but are part of the shared vocabulary.
const (
	AppealStatusOpen     = "Open"
	AppealStatusApproved = "Approved"
	AppealStatusRejected = "Rejected"
)

// Direction of an appeal action or message.
const (
	ViaInbound   = "Inbound"
	ViaModerator = "Moderator"
)

// Message delivery statuses.
const (
	MessageStatusQueued    = "Queued"
	MessageStatusDelivered = "Delivered"
	MessageStatusFailed    = "Failed"
)

type (
	UserRecord struct {
		ID        string   `db:"id"`
		OrgID     string   `db:"org_id"`
		ClientID  string   `db:"client_id"`
		Name      string   `db:"name"`
		Email     string   `db:"email"`
		Metadata  Metadata `db:"metadata"`
		Protected bool     `db:"protected"`

		CreatedAt time.Time `db:"created_at"`
		UpdatedAt time.Time `db:"updated_at"`
	}

	// UserAction is an immutable moderation decision applied to a user at a
	// point in time.
	UserAction struct {
		ID           string    `db:"id"`
		OrgID        string    `db:"org_id"`
		UserRecordID string    `db:"user_record_id"`
		Status       string    `db:"status"`
		Reason       string    `db:"reason"`
		CreatedAt    time.Time `db:"created_at"`
	}

	// Appeal contests exactly one UserAction. ActionStatus and
	// ActionStatusCreatedAt mirror the latest AppealAction so reads never
	// join against the action history.
	Appeal struct {
		ID           string `db:"id"`
		OrgID        string `db:"org_id"`
		UserActionID string `db:"user_action_id"`

		ActionStatus          *string    `db:"action_status"`
		ActionStatusCreatedAt *time.Time `db:"action_status_created_at"`

		CreatedAt time.Time `db:"created_at"`
		UpdatedAt time.Time `db:"updated_at"`
	}

	// AppealAction is an immutable status event in an appeal's review
	// timeline.
	AppealAction struct {
		ID        string    `db:"id"`
		OrgID     string    `db:"org_id"`
		AppealID  string    `db:"appeal_id"`
		Status    string    `db:"status"`
		Via       string    `db:"via"`
		CreatedAt time.Time `db:"created_at"`
	}

	Message struct {
		ID           string  `db:"id"`
		OrgID        string  `db:"org_id"`
		UserActionID *string `db:"user_action_id"`
		AppealID     *string `db:"appeal_id"`
		FromID       string  `db:"from_id"`
		Subject      string  `db:"subject"`
		Text         string  `db:"text"`
		Type         string  `db:"type"`
		Status       string  `db:"status"`

		CreatedAt time.Time `db:"created_at"`
	}

	Metadata map[string]string
)

func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	return json.Marshal(m)
}

func (m *Metadata) Scan(v interface{}) error {
	if v == nil {
		return nil
	}
	switch data := v.(type) {
	case string:
		return json.Unmarshal([]byte(data), m)
	case []byte:
		return json.Unmarshal(data, m)
	default:
		return fmt.Errorf("cannot scan type %t into Metadata", v)
	}
}

// NewID returns a fresh 32-char lowercase hex identifier. Ids are dash-free
// on purpose: appeal tokens are "<id>-<signature>" and the verifier splits on
// the first dash.
func NewID() string {
	return strings.ReplaceAll(uuid.NewRandom().String(), "-", "")
}

// Validate checks the invariants every stored user action must hold.
func (a *UserAction) Validate() error {
	if a.OrgID == "" {
		return errors.New("user action requires an org id")
	}
	if a.UserRecordID == "" {
		return errors.New("user action requires a user record id")
	}
	switch a.Status {
	case UserStatusCompliant, UserStatusFlagged, UserStatusSuspended, UserStatusBanned:
		return nil
	default:
		return errors.Errorf("unknown user action status %q", a.Status)
	}
}
