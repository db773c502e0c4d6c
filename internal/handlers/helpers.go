package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/diewo77/go-pedidos/httpx"
	"github.com/diewo77/go-pedidos/internal/services"
	"github.com/diewo77/go-pedidos/result"
)

const maxBody = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	if err := dec.Decode(dst); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (uint, bool) {
	id, err := strconv.ParseUint(r.PathValue(name), 10, 64)
	if err != nil || id == 0 {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_"+name, nil)
		return 0, false
	}
	return uint(id), true
}

// respond writes r and ends the session when the remote service rejected
// the token.
func respond[T any](w http.ResponseWriter, req *http.Request, state *services.AppState, status int, r result.Result[T]) {
	if !r.OK {
		state.ExpireOn(req.Context(), r.Err)
	}
	httpx.WriteResult(w, status, r)
}

func storageError(err error) *result.Error {
	if re, ok := result.As(err); ok {
		return re
	}
	return result.LocalStorage(err)
}
