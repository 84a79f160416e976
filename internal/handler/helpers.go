package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/epinnock/scry-storybook-upload-service-sub001/internal/model"
)

// maxJSONBody caps request bodies on the JSON management surface. Bundle
// uploads carry their own limit; nothing here is legitimately large.
const maxJSONBody = 1 << 20

// writeJSON serializes v as JSON and writes it to the response with the given
// HTTP status code. The Content-Type header is set to application/json.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes the standard error envelope. The optional ctx map
// carries additional machine-readable context fields.
func writeError(w http.ResponseWriter, code int, message string, ctx ...map[string]interface{}) {
	detail := model.ErrorDetail{Code: code, Message: message}
	if len(ctx) > 0 {
		detail.Context = ctx[0]
	}
	writeJSON(w, code, model.ErrorResponse{Error: detail})
}

// readJSON decodes the request body as JSON into v, truncating at
// maxJSONBody so an oversized body surfaces as a decode error rather than
// unbounded reads. The body is closed either way.
func readJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(v)
}

// stringsToResources converts a list of strings into a resource array:
// [{"key": "value1"}, {"key": "value2"}, ...].
func stringsToResources(key string, values []string) []map[string]interface{} {
	out := make([]map[string]interface{}, len(values))
	for i, v := range values {
		out[i] = map[string]interface{}{key: v}
	}
	return out
}
