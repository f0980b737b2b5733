// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package sets

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSet(t *testing.T) {
	s := Make[int64](10)
	assert.Len(t, s, 0)

	s.Insert(3, 7, 3)
	assert.Len(t, s, 2)
	assert.True(t, s.Has(3))
	assert.True(t, s.Has(7))
	assert.False(t, s.Has(5))

	s2 := MakeWith[int64](5, 7)
	s3 := s.Sub(s2)
	assert.Len(t, s3, 1)
	assert.True(t, s3.Has(3))
	assert.False(t, s.Equal(s2))

	c := s.Clone()
	c.Insert(11)
	assert.Len(t, s, 2, "Clone must not alias the original set")
	assert.Len(t, c, 3)
}

func TestSorted(t *testing.T) {
	assert.Equal(t, []int64{-2, 1, 9}, Sorted(MakeWith[int64](9, 1, -2, 9)))
	assert.Equal(t, []int64{}, Sorted(Make[int64]()))
	assert.Equal(t, []string{}, Sorted[string](nil))

	var nilSet Set[int]
	assert.Nil(t, nilSet.Clone())
}
