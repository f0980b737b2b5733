// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package record

import (
	"github.com/partialdata/partialdata/pkg/support/sets"
	"github.com/partialdata/partialdata/pkg/tfexample"
)

// Feature keys of the TensorFlow object detection record schema.
const (
	KeyHeight   = "image/height"
	KeyWidth    = "image/width"
	KeyFilename = "image/filename"
	KeySourceID = "image/source_id"
	KeySHA256   = "image/key/sha256"
	KeyEncoded  = "image/encoded"
	KeyFormat   = "image/format"

	KeyBBoxXMin = "image/object/bbox/xmin"
	KeyBBoxXMax = "image/object/bbox/xmax"
	KeyBBoxYMin = "image/object/bbox/ymin"
	KeyBBoxYMax = "image/object/bbox/ymax"

	KeyClassText  = "image/object/class/text"
	KeyClassLabel = "image/object/class/label"

	// KeyLabeledClasses holds the ids of the classes labeled for the image. Its absence means the
	// labeled classes are unknown, and its presence with an empty list means no class was labeled.
	KeyLabeledClasses = "image/class/labeled_classes"
)

// Other keys of the TensorFlow object detection schema, not written by Encode.
// They are recognized by UnknownKeys when inspecting records produced elsewhere.
const (
	KeyChannels       = "image/channels"
	KeyClassLabelImg  = "image/class/label"
	KeyClassTextImg   = "image/class/text"
	KeyDifficult      = "image/object/difficult"
	KeyGroupOf        = "image/object/group_of"
	KeyWeight         = "image/object/weight"
	KeyIsCrowd        = "image/object/is_crowd"
	KeyArea           = "image/object/area"
	KeyMask           = "image/object/mask"
	KeyNegativeIDs    = "image/neg_category_ids"
	KeyNotExhaustive  = "image/not_exhaustive_category_ids"
	KeyKeypointsX     = "image/object/keypoint/x"
	KeyKeypointsY     = "image/object/keypoint/y"
	KeyKeypointsCount = "image/object/keypoint/num"
)

var schemaKeys = sets.MakeWith(
	KeyHeight, KeyWidth, KeyFilename, KeySourceID, KeySHA256, KeyEncoded, KeyFormat,
	KeyBBoxXMin, KeyBBoxXMax, KeyBBoxYMin, KeyBBoxYMax, KeyClassText, KeyClassLabel, KeyLabeledClasses,
	KeyChannels, KeyClassLabelImg, KeyClassTextImg, KeyDifficult, KeyGroupOf, KeyWeight, KeyIsCrowd,
	KeyArea, KeyMask, KeyNegativeIDs, KeyNotExhaustive, KeyKeypointsX, KeyKeypointsY, KeyKeypointsCount,
)

// UnknownKeys returns the sorted feature keys of rec that are not part of the object detection schema.
func UnknownKeys(rec *tfexample.Example) []string {
	var unknown []string
	for _, key := range rec.Keys() {
		if !schemaKeys.Has(key) {
			unknown = append(unknown, key)
		}
	}
	return unknown
}
