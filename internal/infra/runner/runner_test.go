package runner

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Run_Success(t *testing.T) {
	dir := t.TempDir()
	client := NewClient()

	err := client.Run(context.Background(), dir, `echo "test" > output.txt`)

	require.NoError(t, err)
	content, err := os.ReadFile(filepath.Join(dir, "output.txt"))
	require.NoError(t, err)
	assert.Equal(t, "test\n", string(content))
}

func TestClient_Run_ScriptError(t *testing.T) {
	client := NewClient()

	err := client.Run(context.Background(), t.TempDir(), `echo "npm ci failed" >&2; exit 3`)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "execute script")
	assert.Contains(t, err.Error(), "npm ci failed")
}

func TestClient_Run_InvalidCommand(t *testing.T) {
	client := NewClient()

	err := client.Run(context.Background(), t.TempDir(), `nonexistent-command-for-runner-test`)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "execute script")
}

func TestClient_Run_WorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	client := NewClient()

	require.NoError(t, client.Run(context.Background(), dir, `pwd > output.txt`))

	content, err := os.ReadFile(filepath.Join(dir, "output.txt"))
	require.NoError(t, err)
	// pwd may resolve symlinks in the temp path; compare the base name.
	assert.Contains(t, string(content), filepath.Base(dir))
}

func TestClient_Run_Env(t *testing.T) {
	dir := t.TempDir()
	client := NewClient()

	err := client.Run(context.Background(), dir, `printf '%s' "$DELEGATE_TASK_ID" > id.txt`, "DELEGATE_TASK_ID=t7")

	require.NoError(t, err)
	content, err := os.ReadFile(filepath.Join(dir, "id.txt"))
	require.NoError(t, err)
	assert.Equal(t, "t7", string(content))
}

func TestClient_Run_ContextCancel(t *testing.T) {
	client := NewClient()
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := client.Run(ctx, t.TempDir(), `sleep 5`)

	require.Error(t, err)
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestTail(t *testing.T) {
	assert.Equal(t, "short", tail([]byte("  short\n")))

	long := strings.Repeat("a", maxOutputTail) + "END"
	got := tail([]byte(long))
	assert.True(t, strings.HasPrefix(got, "..."))
	assert.True(t, strings.HasSuffix(got, "END"))
	assert.Len(t, got, maxOutputTail+3)
}
