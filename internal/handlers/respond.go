package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/jason-s-yu/arcade/internal/apperrors"
	"github.com/sirupsen/logrus"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError converts err to the {"error": msg} body with the status carried
// by an AppError, or 500.
func writeError(w http.ResponseWriter, logger *logrus.Logger, err error) {
	code := apperrors.Code(err)
	if code >= http.StatusInternalServerError {
		logger.WithError(err).Error("request failed")
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

// decodeBody reads a JSON object into dst. An empty body leaves dst zeroed.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return apperrors.BadRequest("Invalid JSON")
	}
	return nil
}
