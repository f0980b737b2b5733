// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package labelmap reads and writes the label map companion file of detection records: a text protobuf
// ("pbtxt") with one `item { id: ..., name: '...', display_name: '...' }` block per class.
package labelmap

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/partialdata/partialdata/pkg/support/fsutil"
	"github.com/partialdata/partialdata/pkg/support/xslices"
	"github.com/pkg/errors"
)

// Item describes one class of the label map.
type Item struct {
	ID          int64
	Name        string
	DisplayName string
}

// quoteEscaper escapes the characters that would end or break a single-quoted text protobuf string.
var quoteEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`)

// Format returns the pbtxt block of the item.
func (item Item) Format() string {
	return fmt.Sprintf("item {\n  id: %d\n  name: '%s'\n  display_name: '%s'\n}",
		item.ID, quoteEscaper.Replace(item.Name), quoteEscaper.Replace(item.DisplayName))
}

// Write the items to w, in the given order, separated by a blank line and with no trailing new line.
func Write(w io.Writer, items []Item) error {
	_, err := io.WriteString(w, strings.Join(xslices.Map(items, Item.Format), "\n\n"))
	return errors.Wrap(err, "failed to write label map")
}

// WriteFile writes the items to the file at path, creating its parent directory if needed.
func WriteFile(path string, items []Item) error {
	if err := fsutil.EnsureParentDir(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create label map file %q", path)
	}
	if err = Write(f, items); err != nil {
		_ = f.Close()
		return errors.WithMessagef(err, "label map file %q", path)
	}
	return errors.Wrapf(f.Close(), "failed to close label map file %q", path)
}

// ReadFile parses the label map file at path. See Parse.
func ReadFile(path string) ([]Item, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open label map file %q", path)
	}
	defer func() { _ = f.Close() }()
	items, err := Parse(f)
	if err != nil {
		return nil, errors.WithMessagef(err, "label map file %q", path)
	}
	return items, nil
}

// Names returns a map of class id to class name.
func Names(items []Item) map[int64]string {
	names := make(map[int64]string, len(items))
	for _, item := range items {
		names[item.ID] = item.Name
	}
	return names
}
