package cli

import (
	"errors"
	"fmt"
	"os"
)

// Error codes reported in CLIError.Code.
const (
	ErrCodeCompileFailed   = "E001" // diagnostics with error severity
	ErrCodeNotFound        = "E002" // directory or file not found
	ErrCodeNotDirectory    = "E003" // path is not a directory
	ErrCodeTraceDB         = "E004" // trace database could not be opened or read
	ErrCodeSessionNotFound = "E005" // no recorded session with that id
	ErrCodeScenario        = "E006" // scenario could not be loaded or run
	ErrCodeConfig          = "E007" // config file could not be read
)

// LoadError is a failure to locate or read command input.
type LoadError struct {
	Code    string
	Message string
	Path    string
}

func (e *LoadError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Path, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsLoadError reports whether err is a LoadError.
func IsLoadError(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}

// checkDir verifies that dir exists and is a directory.
func checkDir(dir string) error {
	info, err := os.Stat(dir)
	if errors.Is(err, os.ErrNotExist) {
		return &LoadError{Code: ErrCodeNotFound, Message: "directory not found", Path: dir}
	}
	if err != nil {
		return &LoadError{Code: ErrCodeNotFound, Message: err.Error(), Path: dir}
	}
	if !info.IsDir() {
		return &LoadError{Code: ErrCodeNotDirectory, Message: "not a directory", Path: dir}
	}
	return nil
}

// reportLoadError writes a LoadError through the formatter and converts it to
// an ExitCommandError.
func reportLoadError(f *OutputFormatter, err error) error {
	var le *LoadError
	if !errors.As(err, &le) {
		return err
	}
	_ = f.Error(le.Code, le.Message, map[string]string{"path": le.Path})
	return WrapExitError(ExitCommandError, le.Message, err)
}
