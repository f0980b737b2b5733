// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shards

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/partialdata/partialdata/pkg/detection"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShardFileNames(t *testing.T) {
	names, err := ShardFileNames("/tmp/train.record", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"/tmp/train.record"}, names)

	names, err = ShardFileNames("/tmp/train.record", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"/tmp/train.record-00000-of-00003",
		"/tmp/train.record-00001-of-00003",
		"/tmp/train.record-00002-of-00003",
	}, names)

	_, err = ShardFileNames("/tmp/train.record", 0)
	assert.Error(t, err)
	_, err = ShardFileNames("", 2)
	assert.Error(t, err)
}

// makeExamples creates n examples, each with its own small PNG image in dir.
func makeExamples(t *testing.T, dir string, n int) []*detection.Example {
	examples := make([]*detection.Example, n)
	for ii := range n {
		img := image.NewGray(image.Rect(0, 0, 4+ii, 3))
		img.SetGray(0, 0, color.Gray{Y: uint8(ii)})
		var buf bytes.Buffer
		require.NoError(t, png.Encode(&buf, img))
		path := filepath.Join(dir, fmt.Sprintf("%03d.png", ii))
		require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
		examples[ii] = &detection.Example{
			ImageID:        fmt.Sprintf("id-%d", ii),
			ImageFilepath:  path,
			WMin:           []float32{0.1},
			WMax:           []float32{0.2 + float32(ii)/100},
			HMin:           []float32{0.3},
			HMax:           []float32{0.4},
			CategoryName:   []string{"sink"},
			CategoryID:     []int64{int64(ii % 7)},
			LabeledClasses: detection.KnownClasses(int64(ii%7), 1),
		}
	}
	return examples
}

func ids(examples []*detection.Example) []string {
	result := make([]string, len(examples))
	for ii, e := range examples {
		result[ii] = e.ImageID
	}
	return result
}

func TestWriteAndRead(t *testing.T) {
	dir := t.TempDir()
	examples := makeExamples(t, dir, 7)
	base := filepath.Join(dir, "out", "train.record")
	report, err := Write(examples, base, 3, DefaultConfig().WithParallelism(4))
	require.NoError(t, err)
	assert.Equal(t, 7, report.NumExamples)
	assert.Equal(t, 7, report.NumWritten)
	assert.Empty(t, report.Skipped)
	require.Len(t, report.Shards, 3)
	assert.Equal(t, []int{3, 2, 2}, []int{report.Shards[0].NumRecords, report.Shards[1].NumRecords, report.Shards[2].NumRecords})
	for _, shard := range report.Shards {
		info, err := os.Stat(shard.Path)
		require.NoError(t, err)
		assert.Equal(t, info.Size(), shard.NumBytes)
	}
	assert.Contains(t, report.String(), "7 of 7 examples written to 3 shard(s)")

	perShard, err := ReadShards(base, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"id-0", "id-3", "id-6"}, ids(perShard[0]))
	assert.Equal(t, []string{"id-1", "id-4"}, ids(perShard[1]))
	assert.Equal(t, []string{"id-2", "id-5"}, ids(perShard[2]))
	for shardIdx, shard := range perShard {
		for _, e := range shard {
			var ii int
			_, err := fmt.Sscanf(e.ImageID, "id-%d", &ii)
			require.NoError(t, err)
			assert.Equal(t, shardIdx, ShardOf(ii, 3))
		}
	}

	all := Interleave(perShard)
	require.Equal(t, ids(examples), ids(all))
	for ii, got := range all {
		want := examples[ii]
		assert.Equal(t, want.WMax, got.WMax)
		assert.Equal(t, want.CategoryID, got.CategoryID)
		assert.True(t, want.LabeledClasses.Equal(got.LabeledClasses))
		assert.Equal(t, int64(4+ii), got.Image.Width)
	}
}

func TestWriteDeterministic(t *testing.T) {
	dir := t.TempDir()
	examples := makeExamples(t, dir, 11)
	baseA := filepath.Join(dir, "a.record")
	baseB := filepath.Join(dir, "b.record")
	_, err := Write(examples, baseA, 4, DefaultConfig().WithParallelism(0))
	require.NoError(t, err)
	_, err = Write(examples, baseB, 4, DefaultConfig().WithParallelism(-1))
	require.NoError(t, err)

	namesA, _ := ShardFileNames(baseA, 4)
	namesB, _ := ShardFileNames(baseB, 4)
	for ii := range namesA {
		contentsA, err := os.ReadFile(namesA[ii])
		require.NoError(t, err)
		contentsB, err := os.ReadFile(namesB[ii])
		require.NoError(t, err)
		assert.Equal(t, contentsA, contentsB, "shard %d differs", ii)
	}
}

func TestWriteSingleShard(t *testing.T) {
	dir := t.TempDir()
	examples := makeExamples(t, dir, 3)
	base := filepath.Join(dir, "all.record")
	_, err := WriteWithDefaults(examples, base, 1)
	require.NoError(t, err)
	got, err := ReadExamples(base)
	require.NoError(t, err)
	assert.Equal(t, ids(examples), ids(got))
}

func TestWriteImageErrors(t *testing.T) {
	dir := t.TempDir()
	examples := makeExamples(t, dir, 6)
	examples[2].ImageFilepath = filepath.Join(dir, "missing.png")
	examples[5].ImageFilepath = filepath.Join(dir, "also-missing.png")

	// Abort is the default.
	_, err := Write(examples, filepath.Join(dir, "abort.record"), 2, DefaultConfig())
	require.Error(t, err)
	assert.True(t, errors.Is(err, detection.ErrImageRead), "got %v", err)

	base := filepath.Join(dir, "skip.record")
	report, err := Write(examples, base, 2, DefaultConfig().WithImageErrorPolicy(Skip))
	require.NoError(t, err)
	assert.Equal(t, 4, report.NumWritten)
	require.Len(t, report.Skipped, 2)
	assert.Equal(t, 2, report.Skipped[0].Index)
	assert.Equal(t, "id-5", report.Skipped[1].ImageID)
	assert.True(t, errors.Is(report.Skipped[0].Err, detection.ErrImageRead))
	assert.Contains(t, report.String(), "2 skipped")

	perShard, err := ReadShards(base, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"id-0", "id-4"}, ids(perShard[0]))
	assert.Equal(t, []string{"id-1", "id-3"}, ids(perShard[1]))
}

func TestWriteSchemaErrorAlwaysAborts(t *testing.T) {
	dir := t.TempDir()
	examples := makeExamples(t, dir, 3)
	examples[1].HMax = nil
	_, err := Write(examples, filepath.Join(dir, "bad.record"), 2, DefaultConfig().WithImageErrorPolicy(Skip))
	require.Error(t, err)
	assert.True(t, errors.Is(err, detection.ErrSchema), "got %v", err)
}

func TestInterleave(t *testing.T) {
	e := func(id string) *detection.Example { return &detection.Example{ImageID: id} }
	got := Interleave([][]*detection.Example{{e("0"), e("3")}, {e("1")}, {e("2")}})
	assert.Equal(t, []string{"0", "1", "2", "3"}, ids(got))
	assert.Empty(t, Interleave(nil))
}
