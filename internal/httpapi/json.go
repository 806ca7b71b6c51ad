package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/YiberMelo/ChronosSuite/internal/service"
	"github.com/YiberMelo/ChronosSuite/internal/store"

	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Success bool `json:"success"`
	Error   struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeOK renders fields under a success envelope.
func writeOK(w http.ResponseWriter, status int, fields map[string]any) {
	body := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		body[k] = v
	}
	body["success"] = true
	writeJSON(w, status, body)
}

func writeError(w http.ResponseWriter, status int, code string, msg string) {
	var res errorResponse
	res.Error.Code = code
	res.Error.Message = msg
	writeJSON(w, status, res)
}

func readJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON")
		return false
	}
	return true
}

var kindStatus = map[service.Kind]int{
	service.KindNotFound:           http.StatusNotFound,
	service.KindUserNotFound:       http.StatusNotFound,
	service.KindInvalidFormat:      http.StatusBadRequest,
	service.KindInvalidSchedule:    http.StatusBadRequest,
	service.KindMissingSecret:      http.StatusBadRequest,
	service.KindDuplicateVisit:     http.StatusConflict,
	service.KindAlreadyEntered:     http.StatusConflict,
	service.KindNotYetEntered:      http.StatusConflict,
	service.KindAlreadyExited:      http.StatusConflict,
	service.KindAlreadyReported:    http.StatusConflict,
	service.KindAlreadyEnrolled:    http.StatusConflict,
	service.KindAlreadyExists:      http.StatusConflict,
	service.KindInvalidCredentials: http.StatusUnauthorized,
	service.KindInvalidCode:        http.StatusUnauthorized,
	service.KindNotEnrolled:        http.StatusUnauthorized,
	service.KindStorageFailure:     http.StatusServiceUnavailable,
	service.KindInternal:           http.StatusInternalServerError,
}

// writeServiceError renders err with the status of its kind. Store errors
// reaching the handler directly (directory routes) are mapped as well.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var svcErr *service.Error
	switch {
	case errors.As(err, &svcErr):
		status, ok := kindStatus[svcErr.Kind]
		if !ok {
			status = http.StatusInternalServerError
		}
		msg := svcErr.Message
		if svcErr.Kind == service.KindStorageFailure {
			msg = "storage is unavailable, try again later"
		}
		writeError(w, status, string(svcErr.Kind), msg)
	case errors.Is(err, store.ErrInvalid):
		writeError(w, http.StatusBadRequest, string(service.KindInvalidFormat), err.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, string(service.KindNotFound), "record not found")
	case errors.Is(err, store.ErrConflict):
		writeError(w, http.StatusConflict, string(service.KindAlreadyExists), "record already exists")
	default:
		s.log.Error("request failed",
			zap.String("request_id", r.Header.Get(requestIDHeader)),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusServiceUnavailable, string(service.KindStorageFailure), "storage is unavailable, try again later")
	}
}
