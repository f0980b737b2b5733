// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package record converts detection examples to and from serialized training records
// (`tensorflow.Example` protos with the TensorFlow object detection feature keys).
//
// The optional "image/class/labeled_classes" feature carries the set of classes labeled for the image,
// so training can suppress the loss of the classes not labeled.
package record

import (
	"os"
	"path/filepath"

	"github.com/partialdata/partialdata/pkg/detection"
	"github.com/partialdata/partialdata/pkg/support/xslices"
	"github.com/partialdata/partialdata/pkg/tfexample"
	"github.com/pkg/errors"
)

// Encoder converts detection examples to records. The zero value reads images with os.ReadFile.
type Encoder struct {
	// ReadFile is used to read the image files. If nil, os.ReadFile is used.
	ReadFile func(path string) ([]byte, error)
}

// Encode the example with the default Encoder.
func Encode(example *detection.Example) (*tfexample.Example, error) {
	return (&Encoder{}).Encode(example)
}

// EncodeBytes encodes the example with the default Encoder and serializes the record.
func EncodeBytes(example *detection.Example) ([]byte, error) {
	return (&Encoder{}).EncodeBytes(example)
}

// EncodeBytes encodes the example and serializes the record.
func (enc *Encoder) EncodeBytes(example *detection.Example) ([]byte, error) {
	rec, err := enc.Encode(example)
	if err != nil {
		return nil, err
	}
	return rec.Marshal(), nil
}

// Encode validates the example, reads and decodes its image and builds the record.
//
// If example.Image holds the encoded bytes (e.g.: the example came from Decode), they are used
// instead of reading example.ImageFilepath, but the metadata is still derived from the bytes.
//
// Errors wrap detection.ErrSchema for malformed examples and detection.ErrImageRead for images
// that can't be read or decoded. The example is not modified.
func (enc *Encoder) Encode(example *detection.Example) (*tfexample.Example, error) {
	if err := example.Validate(); err != nil {
		return nil, err
	}
	info, err := enc.imageInfo(example)
	if err != nil {
		return nil, errors.WithMessagef(err, "example %q", example.ImageID)
	}

	rec := tfexample.New().
		Set(KeyHeight, tfexample.Int64Feature(info.Height)).
		Set(KeyWidth, tfexample.Int64Feature(info.Width)).
		Set(KeyFilename, tfexample.StringsFeature(info.Filename)).
		Set(KeySourceID, tfexample.StringsFeature(example.ImageID)).
		Set(KeySHA256, tfexample.StringsFeature(info.Key)).
		Set(KeyEncoded, tfexample.BytesFeature(info.Encoded)).
		Set(KeyFormat, tfexample.StringsFeature(info.Format)).
		Set(KeyBBoxXMin, tfexample.FloatFeature(example.WMin...)).
		Set(KeyBBoxXMax, tfexample.FloatFeature(example.WMax...)).
		Set(KeyBBoxYMin, tfexample.FloatFeature(example.HMin...)).
		Set(KeyBBoxYMax, tfexample.FloatFeature(example.HMax...)).
		Set(KeyClassText, tfexample.StringsFeature(example.CategoryName...)).
		Set(KeyClassLabel, tfexample.Int64Feature(example.CategoryID...))
	if example.LabeledClasses.IsKnown() {
		// IDs is sorted and non-nil for known classes, so an empty set is still written.
		rec.Set(KeyLabeledClasses, tfexample.Int64Feature(example.LabeledClasses.IDs()...))
	}
	return rec, nil
}

func (enc *Encoder) imageInfo(example *detection.Example) (*detection.ImageInfo, error) {
	if example.Image != nil && len(example.Image.Encoded) > 0 {
		info, err := ImageInfoFromBytes(example.Image.Encoded)
		if err != nil {
			return nil, err
		}
		info.Filename = example.Image.Filename
		if info.Filename == "" {
			info.Filename = filepath.Base(example.ImageFilepath)
		}
		return info, nil
	}
	if example.ImageFilepath == "" {
		return nil, errors.Wrap(detection.ErrImageRead, "no image file path given")
	}
	readFile := enc.ReadFile
	if readFile == nil {
		readFile = os.ReadFile
	}
	return ReadImageInfo(example.ImageFilepath, readFile)
}

// DecodeBytes parses the serialized record and decodes it. See Decode.
func DecodeBytes(data []byte) (*detection.Example, error) {
	rec, err := tfexample.Unmarshal(data)
	if err != nil {
		return nil, errors.Wrapf(detection.ErrSchema, "failed to parse record: %v", err)
	}
	return Decode(rec)
}

// Decode converts a record back to a detection example. It is the inverse of Encode.
//
// ImageFilepath is set to the stored file name, and Image is filled with the stored metadata and bytes.
// LabeledClasses is Unknown if the record has no labeled classes feature.
//
// Missing or mistyped required fields, and misaligned box arrays return an error wrapping detection.ErrSchema.
func Decode(rec *tfexample.Example) (*detection.Example, error) {
	d := &decoder{rec: rec}
	info := &detection.ImageInfo{
		Height:   d.int64Scalar(KeyHeight),
		Width:    d.int64Scalar(KeyWidth),
		Filename: string(d.bytesScalar(KeyFilename)),
		Key:      string(d.bytesScalar(KeySHA256)),
		Format:   string(d.bytesScalar(KeyFormat)),
		Encoded:  d.bytesScalar(KeyEncoded),
	}
	example := &detection.Example{
		ImageID:       string(d.bytesScalar(KeySourceID)),
		ImageFilepath: info.Filename,
		WMin:          d.floats(KeyBBoxXMin),
		WMax:          d.floats(KeyBBoxXMax),
		HMin:          d.floats(KeyBBoxYMin),
		HMax:          d.floats(KeyBBoxYMax),
		CategoryName:  d.strings(KeyClassText),
		CategoryID:    d.int64s(KeyClassLabel),
		Image:         info,
	}
	if rec.Has(KeyLabeledClasses) {
		example.LabeledClasses = detection.KnownClasses(d.int64s(KeyLabeledClasses)...)
	}
	if d.err != nil {
		return nil, d.err
	}
	if err := example.Validate(); err != nil {
		return nil, err
	}
	return example, nil
}

// decoder keeps the first error found while reading features, to keep Decode linear.
type decoder struct {
	rec *tfexample.Example
	err error
}

func (d *decoder) feature(key string, kind tfexample.Kind, required bool) (tfexample.Feature, bool) {
	if d.err != nil {
		return tfexample.Feature{}, false
	}
	f, found := d.rec.Get(key)
	if !found {
		if required {
			d.err = errors.Wrapf(detection.ErrSchema, "record missing required feature %q", key)
		}
		return tfexample.Feature{}, false
	}
	if f.Kind != kind {
		d.err = errors.Wrapf(detection.ErrSchema, "record feature %q is of kind %s, expected %s", key, f.Kind, kind)
		return tfexample.Feature{}, false
	}
	return f, true
}

func (d *decoder) checkScalar(key string, f tfexample.Feature) bool {
	if f.Len() != 1 {
		d.err = errors.Wrapf(detection.ErrSchema, "record feature %q should hold exactly one value, got %d", key, f.Len())
		return false
	}
	return true
}

func (d *decoder) int64Scalar(key string) int64 {
	f, ok := d.feature(key, tfexample.KindInt64, true)
	if !ok || !d.checkScalar(key, f) {
		return 0
	}
	return f.Int64s[0]
}

func (d *decoder) bytesScalar(key string) []byte {
	f, ok := d.feature(key, tfexample.KindBytes, true)
	if !ok || !d.checkScalar(key, f) {
		return nil
	}
	return f.Bytes[0]
}

// Box and class lists may be missing in records with no boxes.

func (d *decoder) floats(key string) []float32 {
	f, ok := d.feature(key, tfexample.KindFloat, false)
	if !ok {
		return []float32{}
	}
	return f.Floats
}

func (d *decoder) int64s(key string) []int64 {
	f, ok := d.feature(key, tfexample.KindInt64, false)
	if !ok {
		return []int64{}
	}
	return f.Int64s
}

func (d *decoder) strings(key string) []string {
	f, ok := d.feature(key, tfexample.KindBytes, false)
	if !ok {
		return []string{}
	}
	return xslices.Map(f.Bytes, func(v []byte) string { return string(v) })
}
