package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/oshaberi-app/oshaberi/internal/chat"
	"github.com/oshaberi-app/oshaberi/internal/domain"
	"github.com/oshaberi-app/oshaberi/internal/fn"
	"github.com/oshaberi-app/oshaberi/internal/llm"
	"github.com/oshaberi-app/oshaberi/internal/session"
	"github.com/oshaberi-app/oshaberi/internal/store"
)

// errorPayload is the wire shape of every error response.
type errorPayload struct {
	Errors []string `json:"errors"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msgs ...string) {
	writeJSON(w, status, errorPayload{Errors: msgs})
}

// writeDomainError maps an error from the service layer to an HTTP response.
func writeDomainError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		writeError(w, http.StatusBadRequest, verr.Message)
		return
	}
	if errors.Is(err, fn.ErrNotFound) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if errors.Is(err, session.ErrNotFound) || errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if errors.Is(err, session.ErrExists) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if errors.Is(err, chat.ErrBusy) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if errors.Is(err, chat.ErrEmptyMessage) || errors.Is(err, chat.ErrNothingToResend) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var perr *llm.ProviderError
	if errors.As(err, &perr) {
		status := perr.Code
		if status < 400 || status > 599 {
			status = http.StatusBadGateway
		}
		writeError(w, status, perr.Message)
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}
