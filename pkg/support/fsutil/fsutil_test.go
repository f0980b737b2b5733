// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package fsutil

import (
	"os"
	"os/user"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplaceTildeInDir(t *testing.T) {
	usr, err := user.Current()
	require.NoError(t, err)

	got, err := ReplaceTildeInDir("~/data/records")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(usr.HomeDir, "data/records"), got)

	got, err = ReplaceTildeInDir("/tmp/x")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x", got)

	assert.Equal(t, "", MustReplaceTildeInDir(""))
}

func TestEnsureParentDirAndFileExists(t *testing.T) {
	dir := t.TempDir()
	filePath := filepath.Join(dir, "a", "b", "train.tfrecord")

	exists, err := FileExists(filepath.Dir(filePath))
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, EnsureParentDir(filePath))
	require.NoError(t, os.WriteFile(filePath, []byte("x"), 0o644))
	exists, err = FileExists(filePath)
	require.NoError(t, err)
	assert.True(t, exists)
}
