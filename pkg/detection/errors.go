// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package detection

import "github.com/pkg/errors"

// Error kinds returned (wrapped with context) by the record codec and the masked loss.
// Use errors.Is to test for them.
var (
	// ErrImageRead is returned when an image file can't be opened or decoded. It is fatal to the
	// example, and batch writers may be configured to skip it.
	ErrImageRead = errors.New("image read error")

	// ErrSchema is returned for malformed or misaligned input arrays, or records missing required fields.
	ErrSchema = errors.New("schema error")

	// ErrMaskResolution is returned when a class mask can't be resolved against the loss inputs:
	// wrong batch size or class count, or class indices out of range.
	ErrMaskResolution = errors.New("class mask resolution error")
)
