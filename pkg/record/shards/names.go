// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shards

import (
	"fmt"

	"github.com/pkg/errors"
)

// ShardFileNames returns the file names for numShards shards with the given base path:
// base itself if numShards is 1, otherwise "<base>-00000-of-0000N", "<base>-00001-of-0000N", etc.
func ShardFileNames(base string, numShards int) ([]string, error) {
	if numShards < 1 {
		return nil, errors.Errorf("number of shards must be >= 1, got %d", numShards)
	}
	if base == "" {
		return nil, errors.New("empty base path for shards")
	}
	if numShards == 1 {
		return []string{base}, nil
	}
	names := make([]string, numShards)
	for ii := range names {
		names[ii] = fmt.Sprintf("%s-%05d-of-%05d", base, ii, numShards)
	}
	return names, nil
}

// ShardOf returns the shard index of the example at position index of the input.
func ShardOf(index, numShards int) int {
	return index % numShards
}
