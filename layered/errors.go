package layered

import (
	"errors"
	"fmt"
)

var (
	// ErrNoFiles is returned when a config is constructed without any source files.
	ErrNoFiles = errors.New("at least one configuration file is required")
	// ErrFileNotFound is returned when a source file does not exist.
	ErrFileNotFound = errors.New("configuration file not found")
	// ErrParse is returned when a source file is not a valid YAML mapping.
	ErrParse = errors.New("configuration file could not be parsed")
	// ErrKeyNotFound is returned by Decode when the requested key is absent.
	ErrKeyNotFound = errors.New("configuration key not found")
)

// LoadError reports which source file failed to load.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
