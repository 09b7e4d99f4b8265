package layered

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// loadFile reads and parses a single YAML source file.
func loadFile(path string) (map[string]any, error) {
	// #nosec G304 -- configuration file paths are provided by the caller
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &LoadError{Path: path, Err: fmt.Errorf("%w: %w", ErrFileNotFound, err)}
		}
		return nil, &LoadError{Path: path, Err: fmt.Errorf("read file: %w", err)}
	}

	doc, err := parseYAML(data)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	return doc, nil
}

// parseYAML decodes a single YAML document whose top level is a mapping.
// Empty input, or input holding only comments, yields an empty mapping.
func parseYAML(data []byte) (map[string]any, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))

	var doc any
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}

	var trailing any
	if err := dec.Decode(&trailing); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: file contains multiple documents or trailing content", ErrParse)
	}

	switch top := normalize(doc).(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return top, nil
	default:
		return nil, fmt.Errorf("%w: top level must be a mapping, got %s", ErrParse, KindOf(top))
	}
}
