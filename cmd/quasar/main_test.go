package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	root := newRootCommand(&out)
	root.SetArgs(args)
	require.NoError(t, root.Execute())
	return out.String()
}

func TestVersionCommand(t *testing.T) {
	out := execute(t, "version")
	assert.Contains(t, out, "Quasar v"+version)
}

func TestStriperCommand(t *testing.T) {
	out := execute(t, "striper", "byhash4", "IBM", "MSFT")
	assert.Contains(t, out, "Striper: byhash4 (4 stripes)")
	assert.Contains(t, out, "[3] hash3of4")
	assert.Contains(t, out, "IBM -> ")
	assert.Contains(t, out, "MSFT -> ")

	var buf bytes.Buffer
	root := newRootCommand(&buf)
	root.SetArgs([]string{"striper", "bymagic"})
	root.SetErr(&buf)
	assert.Error(t, root.Execute())
}

func TestRunAndReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.jsonl.zst")
	out := execute(t, "run", "--log-level", "error",
		"--contract", "stream", "--striper", "byhash2",
		"--agents", "2", "--producers", "1", "--batch-size", "10",
		"--duration", "50ms", "--record", path)
	assert.Contains(t, out, "Feed Profile: feed")
	assert.Contains(t, out, "Processed: ")

	out = execute(t, "replay", "--log-level", "error", "--batch-size", "7", path)
	assert.Contains(t, out, "Replayed ")
	assert.Contains(t, out, path)
}
