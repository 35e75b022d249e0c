package rest

import (
	"encoding/json"
	"net/http"

	"github.com/bwise1/campus_voice/internal/identity"
	"github.com/bwise1/campus_voice/internal/portal"
	"github.com/bwise1/campus_voice/internal/store"
	"github.com/bwise1/campus_voice/util"
	"github.com/bwise1/campus_voice/util/storage"
	"github.com/bwise1/campus_voice/util/tracing"
	"github.com/bwise1/campus_voice/util/values"
	"github.com/pkg/errors"
)

type ServerResponse struct {
	Err        error             `json:"-"`
	Message    string            `json:"message"`
	Status     string            `json:"status"`
	StatusCode int               `json:"-"`
	Context    *tracing.Context  `json:"-"`
	Data       interface{}       `json:"data,omitempty"`
	Errors     map[string]string `json:"errors,omitempty"`
}

func respondWithError(err error, message, status string, tc *tracing.Context) *ServerResponse {
	return &ServerResponse{
		Err:        err,
		Message:    message,
		Status:     status,
		StatusCode: util.StatusCode(status),
		Context:    tc,
	}
}

func respondWithData(data interface{}, message, status string) *ServerResponse {
	return &ServerResponse{
		Message:    message,
		Status:     status,
		StatusCode: util.StatusCode(status),
		Data:       data,
	}
}

// respondWithDomainError maps errors from the portal and its backends onto
// response statuses.
func respondWithDomainError(err error, tc *tracing.Context) *ServerResponse {
	var verr *portal.ValidationError
	if errors.As(err, &verr) {
		resp := respondWithError(err, "validation failed", values.Unprocessable, tc)
		resp.Errors = verr.Fields
		return resp
	}

	switch {
	case errors.Is(err, identity.ErrInvalidCredentials):
		return respondWithError(err, "invalid email or password", values.NotAuthorised, tc)
	case errors.Is(err, identity.ErrInvalidToken), errors.Is(err, portal.ErrNoViewer):
		return respondWithError(err, "invalid-token", values.NotAuthorised, tc)
	case errors.Is(err, portal.ErrRoleMismatch):
		return respondWithError(err, "this account cannot sign in with the selected role", values.NotAllowed, tc)
	case errors.Is(err, portal.ErrProfileNotFound):
		return respondWithError(err, "no profile exists for this account", values.NotFound, tc)
	case errors.Is(err, identity.ErrDuplicateAccount):
		return respondWithError(err, "an account with this email already exists", values.Conflict, tc)
	case errors.Is(err, identity.ErrWeakCredential):
		resp := respondWithError(err, "password is too weak", values.Unprocessable, tc)
		resp.Errors = map[string]string{"password": err.Error()}
		return resp
	case errors.Is(err, store.ErrNotFound):
		return respondWithError(err, "ticket not found", values.NotFound, tc)
	case errors.Is(err, store.ErrDuplicate):
		return respondWithError(err, "upvote state changed elsewhere; refresh and retry", values.Conflict, tc)
	case errors.Is(err, portal.ErrUpdate):
		return respondWithError(err, "status update was rejected", values.Error, tc)
	case errors.Is(err, portal.ErrSubmission):
		return respondWithError(err, "ticket could not be submitted", values.Error, tc)
	case errors.Is(err, portal.ErrStoreUnavailable), errors.Is(err, store.ErrUnavailable):
		return respondWithError(err, "service temporarily unavailable", values.Unavailable, tc)
	case errors.Is(err, storage.ErrInvalidPath):
		return respondWithError(err, "invalid attachment path", values.BadRequestBody, tc)
	}
	return respondWithError(err, values.SystemErr, values.SystemErr, tc)
}

func writeJSONResponse(w http.ResponseWriter, content []byte, statusCode int) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	_, _ = w.Write(content)
}

func writeErrorResponse(w http.ResponseWriter, err error, status, message string) {
	resp := respondWithError(err, message, status, nil)
	content, _ := json.Marshal(resp)
	writeJSONResponse(w, content, resp.StatusCode)
}
