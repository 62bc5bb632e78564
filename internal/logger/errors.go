package logger

import (
	"errors"
	"fmt"
	"os"
)

var (
	// ErrAppNameIsEmpty is returned if log.appName is not set.
	ErrAppNameIsEmpty = errors.New("log.appName must not be empty")

	// ErrServiceNameIsEmpty is returned if log.serviceName is not set.
	ErrServiceNameIsEmpty = errors.New("log.serviceName must not be empty")

	// ErrLogPathIsEmpty is returned if file logging is enabled without a directory.
	ErrLogPathIsEmpty = errors.New("log.file.path must not be empty when file logging is enabled")
)

// writeErrorHandler reports events zerolog failed to write. Installed by Init.
func writeErrorHandler(err error) {
	_, _ = fmt.Fprintf(os.Stderr, "revdal: dropped log event: %v\n", err)
}
