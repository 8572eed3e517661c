package logger

import (
	"errors"
	"fmt"
	"io"
	"os"
)

var (
	// ErrAppNameIsEmpty is returned by Init without log.appName.
	ErrAppNameIsEmpty = errors.New("log.appName must be set")

	// ErrServiceNameIsEmpty is returned by Init without log.serviceName.
	ErrServiceNameIsEmpty = errors.New("log.serviceName must be set")

	// ErrFilePathIsEmpty is returned by Init when file logging is enabled without log.file.path.
	ErrFilePathIsEmpty = errors.New("log.file.path must be set when file logging is enabled")
)

// errorOutput receives the reports of ErrorHandler.
var errorOutput io.Writer = os.Stderr //nolint:gochecknoglobals

// ErrorHandler is installed as zerolog.ErrorHandler. A statement that could not be
// written is reported on stderr and counted in adminauth_log_dropped_total.
func ErrorHandler(err error) {
	droppedCounter().Inc()

	_, _ = fmt.Fprintf(errorOutput, "adminauth: dropped log statement: %v\n", err)
}
