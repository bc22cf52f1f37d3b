// Copyright (c) 2026 Ace Job Agency. All rights reserved.
// Author: platform@acejobs.sg

package blob

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskStore_SaveOpenRemove(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Save("resume-abc.pdf", strings.NewReader("pdf-bytes")))

	reader, err := store.Open("resume-abc.pdf")
	require.NoError(t, err)
	content, err := io.ReadAll(reader)
	require.NoError(t, reader.Close())
	require.NoError(t, err)
	assert.Equal(t, "pdf-bytes", string(content))

	require.NoError(t, store.Remove("resume-abc.pdf"))

	_, err = store.Open("resume-abc.pdf")
	assert.Error(t, err)
}

func TestDiskStore_RejectsPathTraversalKeys(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	badKeys := []string{"", "../escape.pdf", "a/b.pdf", `a\b.pdf`, ".."}
	for _, key := range badKeys {
		assert.Error(t, store.Save(key, strings.NewReader("x")), "key %q should be rejected", key)
	}
}

func TestDiskStore_RemoveMissingIsNoop(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	assert.NoError(t, store.Remove("never-existed.docx"))
}
