// internal/app/features/errors/render.go
package errors

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/globaltrotter/globaltrotter/internal/app/system/limits"
	"github.com/globaltrotter/globaltrotter/internal/domain/apperr"
)

// WriteJSON writes v with status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// DecodeJSON reads a single JSON value from the request body into dst.
// The request must declare Content-Type application/json; browsers cannot
// send that cross-origin without a preflight, so form posts from other sites
// never reach a handler. A missing or different type is
// apperr.ErrUnsupportedMediaType; malformed bodies are
// apperr.ErrValidationFailed.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if !IsJSON(r) {
		return apperr.ErrUnsupportedMediaType
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, limits.MaxJSONBody))
	if err := dec.Decode(dst); err != nil {
		if err == io.EOF {
			return apperr.Invalid("", "required", "Request body is empty.")
		}
		return apperr.Invalid("", "json", fmt.Sprintf("Request body is not valid JSON: %v", err))
	}
	return nil
}

// IsJSON reports whether r declares an application/json body.
func IsJSON(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}
