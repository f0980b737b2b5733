// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package xslices provide functionality missing from the slices and maps packages.
package xslices

import (
	"cmp"
	"flag"
	"fmt"
	"slices"
	"strings"
)

// Map executes the given function sequentially for every element on in, and returns a mapped slice.
func Map[In, Out any](in []In, fn func(e In) Out) (out []Out) {
	out = make([]Out, len(in))
	for ii, e := range in {
		out[ii] = fn(e)
	}
	return
}

// SortedKeys returns the sorted keys of a map in the form of a slice.
func SortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	s := make([]K, 0, len(m))
	for k := range m {
		s = append(s, k)
	}
	slices.Sort(s)
	return s
}

// Slice3DWithValue creates a 3D-slice of given dimensions filled with the given value.
// All the data is allocated in one slice, and then partitioned accordingly.
func Slice3DWithValue[T any](value T, dim0, dim1, dim2 int) [][][]T {
	data := make([]T, dim0*dim1*dim2)
	for ii := range data {
		data[ii] = value
	}
	rows := make([][]T, dim0*dim1)
	for ii := range rows {
		rows[ii] = data[ii*dim2 : (ii+1)*dim2 : (ii+1)*dim2]
	}
	result := make([][][]T, dim0)
	for ii := range result {
		result[ii] = rows[ii*dim1 : (ii+1)*dim1 : (ii+1)*dim1]
	}
	return result
}

// FlagVar defines a flag for []T in the flag set with the given name, default value and usage.
// Values are given separated by ",", and parserFn parses each individual value.
//
// The returned slice is nil if the flag is not set and defaultValue is nil, and empty if set to "".
func FlagVar[T any](fs *flag.FlagSet, name string, defaultValue []T, usage string,
	parserFn func(valueStr string) (T, error)) *[]T {
	f := &sliceFlag[T]{
		parsedSlice: defaultValue,
		parserFn:    parserFn,
	}
	fs.Var(f, name, usage)
	return &f.parsedSlice
}

// sliceFlag implements flag.Value for a generic type.
type sliceFlag[T any] struct {
	parsedSlice []T
	parserFn    func(valueStr string) (T, error)
}

func (f *sliceFlag[T]) String() string {
	if f == nil || len(f.parsedSlice) == 0 {
		return ""
	}
	return strings.Join(Map(f.parsedSlice, func(e T) string { return fmt.Sprintf("%v", e) }), ",")
}

func (f *sliceFlag[T]) Set(listStr string) error {
	if listStr == "" {
		f.parsedSlice = make([]T, 0)
		return nil
	}
	parts := strings.Split(listStr, ",")
	f.parsedSlice = make([]T, len(parts))
	var err error
	for ii, part := range parts {
		f.parsedSlice[ii], err = f.parserFn(strings.TrimSpace(part))
		if err != nil {
			return err
		}
	}
	return nil
}
