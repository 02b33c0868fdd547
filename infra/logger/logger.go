package logger

import corelogger "github.com/JamesWheadon/Carbon-Intensity/core/logger"

// Logger mirrors the core logger interface.
type Logger = corelogger.Logger

// NopLogger implements Logger with no-op methods.
type NopLogger = corelogger.Nop

// New returns a Logger for the given component. APP_ENV=dev switches to a
// human readable console writer and LOG_LEVEL sets the minimum level.
func New(component string) Logger {
	return NewZerologLogger(component)
}
