// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tfexample

import (
	"math"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the tensorflow/core/example/{example,feature}.proto messages.
const (
	exampleFeaturesField = 1 // Example.features
	featuresFeatureField = 1 // Features.feature (map<string, Feature>)
	mapKeyField          = 1
	mapValueField        = 2
	bytesListField       = 1 // Feature.bytes_list
	floatListField       = 2 // Feature.float_list
	int64ListField       = 3 // Feature.int64_list
	listValueField       = 1 // {Bytes,Float,Int64}List.value
)

// Marshal serializes the Example in the protocol buffer wire format, with features in key order.
// Numeric lists are packed, as the reference protobuf implementations do for proto3.
func (e *Example) Marshal() []byte {
	var features []byte
	for _, key := range e.Keys() {
		var entry []byte
		entry = protowire.AppendTag(entry, mapKeyField, protowire.BytesType)
		entry = protowire.AppendString(entry, key)
		entry = protowire.AppendTag(entry, mapValueField, protowire.BytesType)
		entry = protowire.AppendBytes(entry, marshalFeature(e.Features[key]))
		features = protowire.AppendTag(features, featuresFeatureField, protowire.BytesType)
		features = protowire.AppendBytes(features, entry)
	}
	var buf []byte
	buf = protowire.AppendTag(buf, exampleFeaturesField, protowire.BytesType)
	buf = protowire.AppendBytes(buf, features)
	return buf
}

func marshalFeature(f Feature) []byte {
	var list []byte
	var field protowire.Number
	switch f.Kind {
	case KindNone:
		return nil
	case KindBytes:
		field = bytesListField
		for _, v := range f.Bytes {
			list = protowire.AppendTag(list, listValueField, protowire.BytesType)
			list = protowire.AppendBytes(list, v)
		}
	case KindFloat:
		field = floatListField
		if len(f.Floats) > 0 {
			packed := make([]byte, 0, 4*len(f.Floats))
			for _, v := range f.Floats {
				packed = protowire.AppendFixed32(packed, math.Float32bits(v))
			}
			list = protowire.AppendTag(list, listValueField, protowire.BytesType)
			list = protowire.AppendBytes(list, packed)
		}
	case KindInt64:
		field = int64ListField
		if len(f.Int64s) > 0 {
			var packed []byte
			for _, v := range f.Int64s {
				packed = protowire.AppendVarint(packed, uint64(v))
			}
			list = protowire.AppendTag(list, listValueField, protowire.BytesType)
			list = protowire.AppendBytes(list, packed)
		}
	}
	// An empty list is still written, so the presence of the kind is preserved.
	var buf []byte
	buf = protowire.AppendTag(buf, field, protowire.BytesType)
	buf = protowire.AppendBytes(buf, list)
	return buf
}

// Unmarshal parses a serialized `tensorflow.Example`.
// Unknown fields are skipped, and numeric lists may be packed or not.
// For repeated keys or oneof fields the last one wins, following protobuf merge semantics.
func Unmarshal(data []byte) (*Example, error) {
	e := New()
	err := forEachField(data, func(num protowire.Number, typ protowire.Type, value []byte) error {
		if num != exampleFeaturesField || typ != protowire.BytesType {
			return nil
		}
		return forEachField(value, func(num protowire.Number, typ protowire.Type, entry []byte) error {
			if num != featuresFeatureField || typ != protowire.BytesType {
				return nil
			}
			key, f, err := unmarshalMapEntry(entry)
			if err != nil {
				return err
			}
			e.Features[key] = f
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

func unmarshalMapEntry(entry []byte) (key string, f Feature, err error) {
	err = forEachField(entry, func(num protowire.Number, typ protowire.Type, value []byte) error {
		if typ != protowire.BytesType {
			return nil
		}
		switch num {
		case mapKeyField:
			key = string(value)
		case mapValueField:
			var featureErr error
			f, featureErr = unmarshalFeature(value)
			return featureErr
		}
		return nil
	})
	if err != nil {
		err = errors.WithMessagef(err, "feature %q", key)
	}
	return
}

func unmarshalFeature(data []byte) (f Feature, err error) {
	err = forEachField(data, func(num protowire.Number, typ protowire.Type, list []byte) error {
		if typ != protowire.BytesType {
			return nil
		}
		switch num {
		case bytesListField:
			f = Feature{Kind: KindBytes, Bytes: [][]byte{}}
			return forEachField(list, func(num protowire.Number, typ protowire.Type, value []byte) error {
				if num == listValueField && typ == protowire.BytesType {
					f.Bytes = append(f.Bytes, append([]byte{}, value...))
				}
				return nil
			})
		case floatListField:
			f = Feature{Kind: KindFloat, Floats: []float32{}}
			return forEachNumeric(list, protowire.Fixed32Type, func(v uint64) {
				f.Floats = append(f.Floats, math.Float32frombits(uint32(v)))
			})
		case int64ListField:
			f = Feature{Kind: KindInt64, Int64s: []int64{}}
			return forEachNumeric(list, protowire.VarintType, func(v uint64) {
				f.Int64s = append(f.Int64s, int64(v))
			})
		}
		return nil
	})
	return
}

// forEachField calls fn for every field of the message. Values of fixed and varint fields are passed
// as their raw wire bytes.
func forEachField(data []byte, fn func(num protowire.Number, typ protowire.Type, value []byte) error) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return errors.Wrapf(ErrMalformed, "invalid tag: %v", protowire.ParseError(n))
		}
		data = data[n:]
		var value []byte
		if typ == protowire.BytesType {
			v, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return errors.Wrapf(ErrMalformed, "field %d: %v", num, protowire.ParseError(m))
			}
			value, n = v, m
		} else {
			n = protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return errors.Wrapf(ErrMalformed, "field %d: %v", num, protowire.ParseError(n))
			}
			value = data[:n]
		}
		data = data[n:]
		if err := fn(num, typ, value); err != nil {
			return err
		}
	}
	return nil
}

// forEachNumeric parses the `value` field of a FloatList (elemType=Fixed32Type) or Int64List
// (elemType=VarintType), either packed or not.
func forEachNumeric(list []byte, elemType protowire.Type, fn func(v uint64)) error {
	return forEachField(list, func(num protowire.Number, typ protowire.Type, value []byte) error {
		if num != listValueField {
			return nil
		}
		if typ == elemType {
			_, err := consumeNumeric(value, elemType, fn)
			return err
		}
		if typ != protowire.BytesType {
			return errors.Wrapf(ErrMalformed, "unexpected wire type %d for numeric list", typ)
		}
		for len(value) > 0 {
			n, err := consumeNumeric(value, elemType, fn)
			if err != nil {
				return err
			}
			value = value[n:]
		}
		return nil
	})
}

func consumeNumeric(b []byte, elemType protowire.Type, fn func(v uint64)) (int, error) {
	var v uint64
	var n int
	if elemType == protowire.Fixed32Type {
		var v32 uint32
		v32, n = protowire.ConsumeFixed32(b)
		v = uint64(v32)
	} else {
		v, n = protowire.ConsumeVarint(b)
	}
	if n < 0 {
		return 0, errors.Wrapf(ErrMalformed, "packed values: %v", protowire.ParseError(n))
	}
	fn(v)
	return n, nil
}
