package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/marmos91/tgcloud/internal/logger"
	"github.com/marmos91/tgcloud/pkg/engine"
	"github.com/marmos91/tgcloud/pkg/store"
)

// Response is the standard API response wrapper.
type Response struct {
	Status    string      `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// writeJSON writes a JSON response with the given status code. Encoding goes
// to a buffer first so an encoding failure can still produce an error
// response before headers are sent.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", "error", err)
		http.Error(w, `{"status":"error","error":"failed to encode response"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// writeError maps engine and store errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	var deleteErr *engine.DeleteError
	var integrityErr *engine.IntegrityError
	switch {
	case errors.Is(err, store.ErrFileNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrFileExists):
		status = http.StatusConflict
	case errors.As(err, &deleteErr):
		status = http.StatusBadGateway
	case errors.As(err, &integrityErr):
		status = http.StatusBadGateway
	}

	writeJSON(w, status, Response{
		Status:    "error",
		Timestamp: time.Now().UTC(),
		Error:     err.Error(),
	})
}

func writeData(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, Response{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Data:      data,
	})
}
