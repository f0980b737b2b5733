// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tfexample

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestMarshalWireBytes(t *testing.T) {
	e := New().Set("a", Int64Feature(1))
	want := []byte{
		0x0a, 0x0c, // Example.features
		0x0a, 0x0a, // Features.feature map entry
		0x0a, 0x01, 'a', // key
		0x12, 0x05, // value: Feature
		0x1a, 0x03, // Feature.int64_list
		0x0a, 0x01, 0x01, // packed values
	}
	assert.Equal(t, want, e.Marshal())
}

func TestRoundTrip(t *testing.T) {
	e := New().
		Set("image/height", Int64Feature(480)).
		Set("image/object/bbox/xmin", FloatFeature(0.1, 0.25, float32(math.Inf(1)), -0.0)).
		Set("image/object/class/label", Int64Feature(-3, 0, 1<<40)).
		Set("image/object/class/text", StringsFeature("chair", "", "sink")).
		Set("image/class/labeled_classes", Int64Feature()).
		Set("empty/floats", FloatFeature()).
		Set("empty/bytes", BytesFeature()).
		Set("none", Feature{})

	data := e.Marshal()
	assert.Equal(t, data, e.Marshal(), "Marshal must be deterministic")

	got, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, e.Keys(), got.Keys())

	floats, err := got.Floats("image/object/bbox/xmin")
	require.NoError(t, err)
	require.Len(t, floats, 4)
	for ii, v := range e.Features["image/object/bbox/xmin"].Floats {
		assert.Equal(t, math.Float32bits(v), math.Float32bits(floats[ii]), "float #%d must be bit-exact", ii)
	}

	labels, err := got.Int64s("image/object/class/label")
	require.NoError(t, err)
	assert.Equal(t, []int64{-3, 0, 1 << 40}, labels)

	texts, err := got.Strings("image/object/class/text")
	require.NoError(t, err)
	assert.Equal(t, []string{"chair", "", "sink"}, texts)

	// Presence is kept for empty lists.
	for _, key := range []string{"image/class/labeled_classes", "empty/floats", "empty/bytes"} {
		f, found := got.Get(key)
		require.True(t, found, "key %q", key)
		assert.Equal(t, 0, f.Len())
		assert.Equal(t, e.Features[key].Kind, f.Kind)
	}
	f, found := got.Get("none")
	require.True(t, found)
	assert.Equal(t, KindNone, f.Kind)
	assert.False(t, got.Has("missing"))

	_, err = got.Int64s("image/object/class/text")
	assert.Error(t, err)
	_, err = got.Floats("missing")
	assert.Error(t, err)
}

func TestUnmarshalUnpacked(t *testing.T) {
	var ints, floats []byte
	for _, v := range []int64{5, -1} {
		ints = protowire.AppendTag(ints, listValueField, protowire.VarintType)
		ints = protowire.AppendVarint(ints, uint64(v))
	}
	for _, v := range []float32{0.5, 2} {
		floats = protowire.AppendTag(floats, listValueField, protowire.Fixed32Type)
		floats = protowire.AppendFixed32(floats, math.Float32bits(v))
	}
	makeEntry := func(key string, listField protowire.Number, list []byte) []byte {
		var feature, entry []byte
		feature = protowire.AppendTag(feature, listField, protowire.BytesType)
		feature = protowire.AppendBytes(feature, list)
		entry = protowire.AppendTag(entry, mapKeyField, protowire.BytesType)
		entry = protowire.AppendString(entry, key)
		entry = protowire.AppendTag(entry, mapValueField, protowire.BytesType)
		entry = protowire.AppendBytes(entry, feature)
		return entry
	}
	var features []byte
	for _, entry := range [][]byte{makeEntry("ints", int64ListField, ints), makeEntry("floats", floatListField, floats)} {
		features = protowire.AppendTag(features, featuresFeatureField, protowire.BytesType)
		features = protowire.AppendBytes(features, entry)
	}
	// Unknown field, to be skipped.
	features = protowire.AppendTag(features, 7, protowire.VarintType)
	features = protowire.AppendVarint(features, 42)
	var data []byte
	data = protowire.AppendTag(data, exampleFeaturesField, protowire.BytesType)
	data = protowire.AppendBytes(data, features)

	e, err := Unmarshal(data)
	require.NoError(t, err)
	gotInts, err := e.Int64s("ints")
	require.NoError(t, err)
	assert.Equal(t, []int64{5, -1}, gotInts)
	gotFloats, err := e.Floats("floats")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 2}, gotFloats)
}

func TestUnmarshalMalformed(t *testing.T) {
	data := New().Set("x", StringsFeature("hello")).Marshal()
	_, err := Unmarshal(data[:len(data)-2])
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformed), "got %v", err)

	_, err = Unmarshal([]byte{0xff})
	assert.True(t, errors.Is(err, ErrMalformed), "got %v", err)

	e, err := Unmarshal(nil)
	require.NoError(t, err)
	assert.Empty(t, e.Keys())
}

func TestString(t *testing.T) {
	e := New().Set("b", Int64Feature(1, 2)).Set("a", StringsFeature("x"))
	assert.Equal(t, "a: bytes[1] \"x\"\nb: int64[2] [1 2]\n", e.String())
}
