// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package xslices

import (
	"flag"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMap(t *testing.T) {
	assert.Equal(t, []string{"1", "2"}, Map([]int{1, 2}, strconv.Itoa))
	assert.Equal(t, []string{}, Map([]int(nil), strconv.Itoa))
}

func TestSortedKeys(t *testing.T) {
	assert.Equal(t, []int64{1, 5, 9}, SortedKeys(map[int64]bool{9: true, 1: false, 5: true}))
}

func TestSlice3DWithValue(t *testing.T) {
	s := Slice3DWithValue(float32(0.5), 2, 3, 4)
	require.Len(t, s, 2)
	require.Len(t, s[1], 3)
	assert.Equal(t, []float32{0.5, 0.5, 0.5, 0.5}, s[1][2])
	s[0][0] = append(s[0][0], 1) // Capacity is capped, so neighbours are not overwritten.
	assert.Equal(t, float32(0.5), s[0][1][0])
}

func TestFlagVar(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	indices := FlagVar(fs, "indices", nil, "Indices.", strconv.Atoi)
	require.NoError(t, fs.Parse(nil))
	assert.Nil(t, *indices)

	require.NoError(t, fs.Parse([]string{"-indices", "0, 3,5"}))
	assert.Equal(t, []int{0, 3, 5}, *indices)
	assert.Equal(t, "0,3,5", fs.Lookup("indices").Value.String())

	require.NoError(t, fs.Parse([]string{"-indices="}))
	assert.NotNil(t, *indices)
	assert.Empty(t, *indices)

	assert.Error(t, fs.Parse([]string{"-indices", "1,x"}))
}
