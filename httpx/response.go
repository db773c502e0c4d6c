package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/diewo77/go-pedidos/result"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	var body []byte
	var err error
	if payload != nil {
		body, err = json.Marshal(payload)
		if err != nil {
			// best-effort error response; avoid writing partial JSON
			http.Error(w, `{"error":"encode_error"}`, http.StatusInternalServerError)
			return
		}
	} else {
		body = []byte("null")
	}
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		// nothing we can do at this point
		_ = err
	}
}

func JSONError(w http.ResponseWriter, status int, msg string, details any) {
	JSON(w, status, ErrorResponse{Error: msg, Details: details})
}

// StatusFor maps a result error onto the status of the local API.
func StatusFor(e *result.Error) int {
	if e == nil {
		return http.StatusInternalServerError
	}
	switch e.Code {
	case result.CodeValidation:
		return http.StatusUnprocessableEntity
	case result.CodeOffline, result.CodeNetwork:
		return http.StatusServiceUnavailable
	case result.CodeSyncInProgress:
		return http.StatusConflict
	case result.CodeReservationFailed, result.CodeSyncAborted:
		return http.StatusBadGateway
	case result.CodeLocalStorage:
		return http.StatusInternalServerError
	}
	if e.Status == http.StatusUnauthorized || e.Status == http.StatusNotFound {
		return e.Status
	}
	if e.Status >= 400 {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// WriteError writes a result error as {"error", "details": {code, message}}.
func WriteError(w http.ResponseWriter, e *result.Error) {
	JSONError(w, StatusFor(e), e.Message, e)
}

// WriteResult writes the value of a successful result with status, or the
// mapped error.
func WriteResult[T any](w http.ResponseWriter, status int, r result.Result[T]) {
	if !r.OK {
		WriteError(w, r.Err)
		return
	}
	JSON(w, status, r.Value)
}
