package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	configPath, dirFlag = "", ""

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs(args)
	require.NoError(t, root.Execute())
	return out.String()
}

func TestAppendInspectDump(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(t.TempDir(), "journal.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("name: cli\ncompression: gzip\nsegment_size: 1024\n"), 0o644))

	out := run(t, "--config", cfgPath, "--dir", dir, "append", "first", "second")
	assert.Contains(t, out, "committed 1 in segment 1")
	assert.Contains(t, out, "committed 2 in segment 1")

	out = run(t, "--config", cfgPath, "--dir", dir, "append", "--batch", "-t", "4", "x", "y")
	assert.Contains(t, out, "committed 4 in segment 2")

	out = run(t, "--config", cfgPath, "--dir", dir, "inspect")
	assert.Contains(t, out, "cli-1")
	assert.Contains(t, out, "batch")

	out = run(t, "--config", cfgPath, "--dir", dir, "dump")
	assert.Contains(t, out, "1\tseg=1\ttype=1\tfirst")
	assert.Contains(t, out, "4\tseg=2\ttype=4\ty")
}

func TestRetainKeepsNewest(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 3; i++ {
		run(t, "--dir", dir, "append", "--batch", "v")
	}

	out := run(t, "--dir", dir, "retain", "--keep", "1", "--purge")
	assert.Contains(t, out, "purged 2 files")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "journal-3", entries[0].Name())
}
