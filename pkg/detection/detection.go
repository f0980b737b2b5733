// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package detection defines the partially-labeled object detection example: an image with normalized
// bounding boxes, their class labels, and the set of classes that were actively labeled for the image.
//
// It also defines the error kinds shared by the record codec and the masked loss, and the conversion
// of labeled classes to dense class masks used to suppress the loss of classes not labeled.
package detection

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

// Example is one image with its annotated boxes.
//
// Box i is described by index i of WMin, HMin, WMax, HMax, CategoryName and CategoryID.
// Coordinates are normalized to [0, 1] relative to the image width (W*) and height (H*).
//
// Examples are built once per image and should be treated as immutable afterward.
type Example struct {
	// ImageID is an opaque identifier, unique per image. In JSON it may be given as a string or an integer.
	ImageID string `json:"image_id"`

	// ImageFilepath is the local path of the image. After decoding a record it holds only the
	// stored file name, since the directory is not serialized.
	ImageFilepath string `json:"image_filepath"`

	WMin []float32 `json:"wmin"`
	HMin []float32 `json:"hmin"`
	WMax []float32 `json:"wmax"`
	HMax []float32 `json:"hmax"`

	CategoryName []string `json:"category_name"`
	CategoryID   []int64  `json:"category_id"`

	// LabeledClasses is Unknown unless the annotation says which classes were labeled for this image.
	LabeledClasses LabeledClasses `json:"labeled_classes"`

	// Image holds the image metadata (and bytes) read from the image file or from a record.
	// It is nil before encoding.
	Image *ImageInfo `json:"image,omitempty"`
}

// ImageInfo is the image metadata derived from the image bytes.
type ImageInfo struct {
	Height int64 `json:"height"`
	Width  int64 `json:"width"`

	// Filename is the final path component of the image file.
	Filename string `json:"filename"`

	// Key is the SHA-256 hex digest of Encoded.
	Key string `json:"key"`

	// Format is the file type tag read from the image header, e.g.: "JPEG", "PNG".
	Format string `json:"format"`

	// Encoded are the raw (encoded) image bytes.
	Encoded []byte `json:"-"`
}

// NumBoxes returns the number of boxes in the example. Call Validate to make sure all arrays agree.
func (e *Example) NumBoxes() int { return len(e.WMin) }

// Validate checks that the box and class arrays are aligned and that boxes are well-formed.
// It returns an error wrapping ErrSchema otherwise.
func (e *Example) Validate() error {
	n := len(e.WMin)
	if len(e.HMin) != n || len(e.WMax) != n || len(e.HMax) != n {
		return errors.Wrapf(ErrSchema, "image %q: box coordinate arrays have mismatched lengths (wmin=%d, hmin=%d, wmax=%d, hmax=%d)",
			e.ImageID, len(e.WMin), len(e.HMin), len(e.WMax), len(e.HMax))
	}
	if len(e.CategoryName) != n || len(e.CategoryID) != n {
		return errors.Wrapf(ErrSchema, "image %q: %d boxes but %d category names and %d category ids",
			e.ImageID, n, len(e.CategoryName), len(e.CategoryID))
	}
	for ii := range n {
		if e.WMin[ii] > e.WMax[ii] || e.HMin[ii] > e.HMax[ii] {
			return errors.Wrapf(ErrSchema, "image %q: box #%d has min > max (wmin=%g, wmax=%g, hmin=%g, hmax=%g)",
				e.ImageID, ii, e.WMin[ii], e.WMax[ii], e.HMin[ii], e.HMax[ii])
		}
	}
	return nil
}

// UnmarshalJSON implements json.Unmarshaler. Besides the field names in the struct tags, it accepts an integer
// "image_id" and "labeled_cat_ids" as an alias to "labeled_classes".
func (e *Example) UnmarshalJSON(data []byte) error {
	type exampleAlias Example
	var aux struct {
		*exampleAlias
		ImageID       json.RawMessage `json:"image_id"`
		LabeledCatIDs *LabeledClasses `json:"labeled_cat_ids"`
	}
	aux.exampleAlias = (*exampleAlias)(e)
	if err := json.Unmarshal(data, &aux); err != nil {
		return errors.Wrap(err, "failed to parse detection example")
	}
	id, err := parseImageID(aux.ImageID)
	if err != nil {
		return err
	}
	e.ImageID = id
	if !e.LabeledClasses.IsKnown() && aux.LabeledCatIDs != nil {
		e.LabeledClasses = *aux.LabeledCatIDs
	}
	return nil
}

// parseImageID accepts a JSON string or number.
func parseImageID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	if raw[0] == '"' {
		var id string
		if err := json.Unmarshal(raw, &id); err != nil {
			return "", errors.Wrap(err, "invalid image_id")
		}
		return id, nil
	}
	var number json.Number
	if err := json.Unmarshal(raw, &number); err != nil {
		return "", errors.Wrapf(err, "image_id must be a string or a number, got %s", raw)
	}
	return strings.TrimSpace(number.String()), nil
}
