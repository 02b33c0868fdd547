package scheduler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/JamesWheadon/Carbon-Intensity/core/monitoring"
	coresched "github.com/JamesWheadon/Carbon-Intensity/core/scheduler"
)

// MsgNoData is returned when a query window holds no admissible slot.
const MsgNoData = "No data for time slot"

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// statusFor maps scheduler errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case coresched.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, coresched.ErrUntrainedDuration), errors.Is(err, coresched.ErrNoIntensities):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeSchedulerError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		monitoring.CaptureException(err, map[string]string{"route": r.URL.Path})
	}
	writeError(w, status, err.Error())
}
