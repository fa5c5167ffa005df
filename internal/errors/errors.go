package errors

import (
	"errors"
)

// Common error types
var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrDatabaseError = errors.New("database error")
	ErrNotFound      = errors.New("not found")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrInternal      = errors.New("internal error")
)

// Appeal lifecycle errors. The eligibility failures stay distinct so logs and
// metrics can tell them apart even where the public response is deliberately
// uniform.
var (
	ErrInvalidToken = errors.New("invalid appeal token")
	ErrNoAction     = errors.New("user has no moderation action")
	ErrNotSuspended = errors.New("user is not suspended")
	ErrBanned       = errors.New("banned users may not appeal")
	ErrAppealExists = errors.New("appeal already exists")
)

// Reason returns a short stable label for an appeal failure, used as a
// metrics dimension and structured log field.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrNoAction):
		return "no_action"
	case errors.Is(err, ErrNotSuspended):
		return "not_suspended"
	case errors.Is(err, ErrBanned):
		return "banned"
	case errors.Is(err, ErrAppealExists):
		return "conflict"
	default:
		return "internal"
	}
}
