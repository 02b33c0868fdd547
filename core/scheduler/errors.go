package scheduler

import "errors"

var (
	// ErrUntrainedDuration is returned when a query targets a bucket that has
	// not been trained against the current forecast.
	ErrUntrainedDuration = errors.New("Duration has not been trained")
	// ErrNoIntensities is returned when an operation needs a forecast and none
	// is loaded.
	ErrNoIntensities = errors.New("No intensity data for scheduler")
	// ErrWindowOutOfRange is returned by the environment for windows that do
	// not fit inside the forecast.
	ErrWindowOutOfRange = errors.New("window outside forecast horizon")
)

// ValidationError reports a request the caller must correct.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationf(msg string) error { return &ValidationError{Msg: msg} }

// IsValidation reports whether err is or wraps a *ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
