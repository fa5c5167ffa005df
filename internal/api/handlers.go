package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/trustdesk/backend/internal/appeals"
	apperrors "github.com/trustdesk/backend/internal/errors"
	"github.com/trustdesk/backend/internal/i18n"
)

const (
	msgCantProcess   = "Unable to process your appeal at this time."
	msgAppealExists  = "An appeal for this suspension already exists."
	msgInvalidToken  = "Invalid or expired appeal link."
	msgAppealCreated = "Your appeal has been submitted."
)

type handlers struct {
	appeals *appeals.Service
	lang    string
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.WithError(err).Errorln("cant encode response")
	}
}

type submitAppealRequest struct {
	Token string `json:"token"`
	Text  string `json:"text"`
}

type submitAppealResponse struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// SubmitAppeal is the public token-bearing endpoint. Eligibility failures
// all map to the same response so the endpoint can't be used to probe
// which user ids exist or what state they are in; the precise reason only
// reaches the logs and metrics.
func (h *handlers) SubmitAppeal(w http.ResponseWriter, r *http.Request) {
	var req submitAppealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: i18n.Get(msgInvalidToken, h.lang)})
		return
	}

	appeal, err := h.appeals.CreateAppealFromToken(r.Context(), req.Token, req.Text)
	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrInvalidToken):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: i18n.Get(msgInvalidToken, h.lang)})
		return
	case errors.Is(err, apperrors.ErrAppealExists):
		writeJSON(w, http.StatusConflict, errorResponse{Error: i18n.Get(msgAppealExists, h.lang)})
		return
	case errors.Is(err, apperrors.ErrNotFound),
		errors.Is(err, apperrors.ErrNoAction),
		errors.Is(err, apperrors.ErrNotSuspended),
		errors.Is(err, apperrors.ErrBanned):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: i18n.Get(msgCantProcess, h.lang)})
		return
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: i18n.Get(msgCantProcess, h.lang)})
		return
	}

	status := ""
	if appeal.ActionStatus != nil {
		status = *appeal.ActionStatus
	}
	writeJSON(w, http.StatusCreated, submitAppealResponse{
		ID:      appeal.ID,
		Status:  status,
		Message: i18n.Get(msgAppealCreated, h.lang),
	})
}

func (h *handlers) GetAppeal(w http.ResponseWriter, r *http.Request) {
	orgID := orgFromContext(r.Context())
	appealID := chi.URLParam(r, "appealID")

	detail, err := h.appeals.GetAppealDetail(r.Context(), orgID, appealID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "appeal not found"})
			return
		}
		log.WithError(err).Errorln("cant load appeal")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

type inboxCountResponse struct {
	Count int `json:"count"`
}

func (h *handlers) InboxCount(w http.ResponseWriter, r *http.Request) {
	orgID := orgFromContext(r.Context())

	count, err := h.appeals.InboxCount(r.Context(), orgID)
	if err != nil {
		log.WithError(err).Errorln("cant count open appeals")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, inboxCountResponse{Count: count})
}

func (h *handlers) UserActivity(w http.ResponseWriter, r *http.Request) {
	orgID := orgFromContext(r.Context())
	userRecordID := chi.URLParam(r, "userRecordID")

	report, err := h.appeals.UserActivity(r.Context(), orgID, userRecordID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "user not found"})
			return
		}
		log.WithError(err).Errorln("cant load user activity")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type issueTokenResponse struct {
	Token string `json:"token"`
}

// IssueToken mints an appeal link token for a user. The org scope check
// rides on UserActivity's rule: a record outside the caller's org reads as
// not found.
func (h *handlers) IssueToken(w http.ResponseWriter, r *http.Request) {
	orgID := orgFromContext(r.Context())
	userRecordID := chi.URLParam(r, "userRecordID")

	if _, err := h.appeals.UserActivity(r.Context(), orgID, userRecordID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "user not found"})
			return
		}
		log.WithError(err).Errorln("cant issue appeal token")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	writeJSON(w, http.StatusCreated, issueTokenResponse{Token: h.appeals.IssueToken(userRecordID)})
}
