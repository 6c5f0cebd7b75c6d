package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/hirewell/profile-ingest/internal/apierr"
)

// errorBody is the structured failure body of §7: a stable code, a
// human-safe message, and optional per-field details (used for validation
// failures).
type errorBody struct {
	Code    apierr.Code    `json:"error_code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zap.L().Warn("api: failed to encode response body", zap.Error(err))
	}
}

// writeError translates any error into the §7 error taxonomy body and logs
// the full cause chain server-side via apierr.Error.Trace, which is never
// sent to the client.
func writeError(w http.ResponseWriter, err error) {
	apiErr := apierr.From(err)
	if apiErr.HTTPStatus() >= http.StatusInternalServerError {
		zap.L().Error("api: request failed", zap.String("code", string(apiErr.Code)), zap.String("trace", apiErr.Trace()))
	}
	writeJSON(w, apiErr.HTTPStatus(), errorBody{Code: apiErr.Code, Message: apiErr.Message, Details: apiErr.Details})
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apierr.New(apierr.ValidationError, "malformed request body", err, nil)
	}
	return nil
}
