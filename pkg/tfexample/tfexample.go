// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package tfexample implements the `tensorflow.Example` protocol buffer message: a flat mapping of feature
// names to lists of bytes, floats or int64 values.
//
// It encodes and decodes the wire format directly, without generated code: only the messages
// Example, Features, Feature, BytesList, FloatList and Int64List are involved.
//
// Marshal is deterministic (features are written in key order), so serializing the same Example twice
// yields the same bytes.
package tfexample

import (
	"fmt"
	"slices"
	"strings"

	"github.com/partialdata/partialdata/pkg/support/xslices"
	"github.com/pkg/errors"
)

// ErrMalformed is returned (wrapped) when the bytes can't be parsed as a tf.Example.
var ErrMalformed = errors.New("malformed tf.Example")

// Kind of values held by a Feature.
type Kind int

const (
	// KindNone is a feature with no list set. It is valid in the wire format, but carries no values.
	KindNone Kind = iota
	KindBytes
	KindFloat
	KindInt64
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindBytes:
		return "bytes"
	case KindFloat:
		return "float"
	case KindInt64:
		return "int64"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Feature holds exactly one list of values, selected by Kind.
// An empty list of a given Kind is distinct from KindNone and from an absent feature.
type Feature struct {
	Kind   Kind
	Bytes  [][]byte
	Floats []float32
	Int64s []int64
}

// BytesFeature creates a bytes list feature.
func BytesFeature(values ...[]byte) Feature {
	return Feature{Kind: KindBytes, Bytes: values}
}

// StringsFeature creates a bytes list feature from strings.
func StringsFeature(values ...string) Feature {
	return BytesFeature(xslices.Map(values, func(s string) []byte { return []byte(s) })...)
}

// FloatFeature creates a float list feature.
func FloatFeature(values ...float32) Feature {
	return Feature{Kind: KindFloat, Floats: values}
}

// Int64Feature creates an int64 list feature.
func Int64Feature(values ...int64) Feature {
	return Feature{Kind: KindInt64, Int64s: values}
}

// Len returns the number of values in the feature.
func (f Feature) Len() int {
	switch f.Kind {
	case KindBytes:
		return len(f.Bytes)
	case KindFloat:
		return len(f.Floats)
	case KindInt64:
		return len(f.Int64s)
	}
	return 0
}

// Example is a `tensorflow.Example`: a mapping of feature names to features.
type Example struct {
	Features map[string]Feature
}

// New creates an empty Example.
func New() *Example {
	return &Example{Features: make(map[string]Feature)}
}

// Set the feature for the key, replacing any previous one. It returns the Example itself, so calls can be chained.
func (e *Example) Set(key string, f Feature) *Example {
	if e.Features == nil {
		e.Features = make(map[string]Feature)
	}
	e.Features[key] = f
	return e
}

// Get returns the feature for key and whether it is present.
func (e *Example) Get(key string) (Feature, bool) {
	f, found := e.Features[key]
	return f, found
}

// Has returns whether the key is present, regardless of the number of values it holds.
func (e *Example) Has(key string) bool {
	_, found := e.Features[key]
	return found
}

// Keys returns the feature names in sorted order.
func (e *Example) Keys() []string {
	keys := make([]string, 0, len(e.Features))
	for key := range e.Features {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

// Int64s returns the values of an int64 feature. It returns an error if the key is missing or of another kind.
func (e *Example) Int64s(key string) ([]int64, error) {
	f, err := e.feature(key, KindInt64)
	return f.Int64s, err
}

// Floats returns the values of a float feature. It returns an error if the key is missing or of another kind.
func (e *Example) Floats(key string) ([]float32, error) {
	f, err := e.feature(key, KindFloat)
	return f.Floats, err
}

// Bytes returns the values of a bytes feature. It returns an error if the key is missing or of another kind.
func (e *Example) Bytes(key string) ([][]byte, error) {
	f, err := e.feature(key, KindBytes)
	return f.Bytes, err
}

// Strings returns the values of a bytes feature converted to strings.
func (e *Example) Strings(key string) ([]string, error) {
	values, err := e.Bytes(key)
	if err != nil {
		return nil, err
	}
	return xslices.Map(values, func(v []byte) string { return string(v) }), nil
}

func (e *Example) feature(key string, kind Kind) (Feature, error) {
	f, found := e.Features[key]
	if !found {
		return Feature{}, errors.Errorf("feature %q not present", key)
	}
	if f.Kind != kind {
		return Feature{}, errors.Errorf("feature %q is of kind %s, wanted %s", key, f.Kind, kind)
	}
	return f, nil
}

// String returns a multi-line human-readable summary of the features, one per line, in key order.
// Long lists and large byte values are truncated.
func (e *Example) String() string {
	const maxValues = 8
	const maxBytes = 32
	var sb strings.Builder
	for _, key := range e.Keys() {
		f := e.Features[key]
		fmt.Fprintf(&sb, "%s: %s[%d]", key, f.Kind, f.Len())
		n := min(f.Len(), maxValues)
		switch f.Kind {
		case KindBytes:
			parts := make([]string, n)
			for ii := range n {
				v := f.Bytes[ii]
				if len(v) > maxBytes {
					parts[ii] = fmt.Sprintf("<%d bytes>", len(v))
				} else {
					parts[ii] = fmt.Sprintf("%q", v)
				}
			}
			fmt.Fprintf(&sb, " %s", strings.Join(parts, " "))
		case KindFloat:
			fmt.Fprintf(&sb, " %v", f.Floats[:n])
		case KindInt64:
			fmt.Fprintf(&sb, " %v", f.Int64s[:n])
		}
		if f.Len() > n {
			sb.WriteString(" ...")
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
