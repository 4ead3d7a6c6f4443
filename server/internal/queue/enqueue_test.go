package queue

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemName(t *testing.T) {
	ts := time.Unix(1700000000, 42)
	a, b := ItemName(ts), ItemName(ts)

	assert.True(t, strings.HasPrefix(a, "report_1700000000000000042_"), a)
	assert.True(t, strings.HasSuffix(a, ".json"), a)
	assert.NotEqual(t, a, b, "same timestamp must still yield distinct names")
}

func TestEnqueue(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "queue")

	path, err := Enqueue(dir, []byte(`{"schoolName":"Test"}`))
	require.NoError(t, err)

	assert.Equal(t, dir, filepath.Dir(path))
	assert.True(t, isItem(path))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"schoolName":"Test"}`, string(raw))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not linger")
}

func TestEnqueue_RejectsNonObjects(t *testing.T) {
	dir := t.TempDir()
	for _, body := range []string{`{ invalid`, `[1]`, `null`, `"x"`} {
		_, err := Enqueue(dir, []byte(body))
		assert.ErrorIs(t, err, ErrNotObject, body)
	}
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
