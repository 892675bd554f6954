package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/contentpilot/engine/utils"
	"go.uber.org/zap"
)

// maxRequestBody bounds request bodies at 1 MiB; prompts never legitimately
// exceed that
const maxRequestBody = 1 << 20

// decodeJSON decodes a request body into dst, rejecting unknown fields.
// Returns false after writing the 400 response itself.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}, logger *zap.Logger) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if err := utils.WriteBadRequest(w, "invalid request body: "+err.Error(), nil); err != nil {
			logger.Error("failed to write bad request response", zap.Error(err))
		}
		return false
	}
	return true
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}, logger *zap.Logger) {
	if err := utils.WriteJSON(w, statusCode, data); err != nil {
		logger.Error("failed to write response", zap.Error(err))
	}
}
