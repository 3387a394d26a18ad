package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/starford/ansuz/internal/validate"
)

// writeJSON writes v as the response body with the canonical content type.
// Encoding failures are logged rather than surfaced; the status line has
// already been committed.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

// errResponse is the error envelope for non-validation failures.
type errResponse struct {
	Error string `json:"error" validate:"required"`
}

// writeError writes the standard error envelope.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errResponse{Error: msg})
}

// writeDiagnostics writes a 422 carrying the full accumulated diagnostic
// list of a rejected article write, so an author sees every problem at once.
func writeDiagnostics(w http.ResponseWriter, ds validate.Diagnostics) {
	writeJSON(w, http.StatusUnprocessableEntity, ValidationErrorResponse{
		Error:       "frontmatter validation failed",
		Diagnostics: ds,
	})
}
