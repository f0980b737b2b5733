// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package detection

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// ReadManifest reads examples from JSON lines: one JSON object per line, as accepted by Example.UnmarshalJSON.
// Empty lines and lines starting with "#" are skipped. Examples are validated.
func ReadManifest(r io.Reader) ([]*Example, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	var examples []*Example
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		e := &Example{}
		if err := json.Unmarshal([]byte(line), e); err != nil {
			return nil, errors.Wrapf(ErrSchema, "manifest line %d: %v", lineNum, err)
		}
		if err := e.Validate(); err != nil {
			return nil, errors.WithMessagef(err, "manifest line %d", lineNum)
		}
		examples = append(examples, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read manifest")
	}
	return examples, nil
}

// ReadManifestFile reads the manifest at path. See ReadManifest.
func ReadManifestFile(path string) ([]*Example, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open manifest %q", path)
	}
	defer func() { _ = f.Close() }()
	examples, err := ReadManifest(f)
	if err != nil {
		return nil, errors.WithMessagef(err, "manifest %q", path)
	}
	return examples, nil
}

// WriteManifest writes the examples as JSON lines. The image bytes are not included.
func WriteManifest(w io.Writer, examples []*Example) error {
	enc := json.NewEncoder(w)
	for _, e := range examples {
		if err := enc.Encode(e); err != nil {
			return errors.Wrapf(err, "failed to write example %q to manifest", e.ImageID)
		}
	}
	return nil
}
