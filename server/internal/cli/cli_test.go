package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obsidianstack/reportvault/server/internal/docstore"
	"github.com/obsidianstack/reportvault/server/internal/ledger"
	"github.com/obsidianstack/reportvault/server/internal/queue"
)

// workspace writes a config rooted in a temp dir and returns its path and
// the data root.
func workspace(t *testing.T, extra string) (cfgPath, root string) {
	t.Helper()
	root = t.TempDir()
	cfgPath = filepath.Join(root, "config.yaml")
	content := fmt.Sprintf("store:\n  data_root: %s\n%s", filepath.Join(root, "data"), extra)
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o600))
	return cfgPath, filepath.Join(root, "data")
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "vaultctl", cmd.Use)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"enqueue", "status", "get", "collections"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	cfg := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, cfg)
	assert.Equal(t, "c", cfg.Shorthand)
	assert.Equal(t, DefaultConfigPath, cfg.DefValue)

	format := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)
}

func TestInvalidFormat(t *testing.T) {
	_, err := execute(t, "", "--format", "yaml", "status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestMissingExplicitConfig(t *testing.T) {
	_, err := execute(t, "", "--config", filepath.Join(t.TempDir(), "nope.yaml"), "status")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestEnqueueAndStatus(t *testing.T) {
	cfgPath, root := workspace(t, "")
	item := filepath.Join(t.TempDir(), "item.json")
	require.NoError(t, os.WriteFile(item, []byte(`{"schoolName":"North"}`), 0o600))

	out, err := execute(t, "", "-c", cfgPath, "enqueue", item)
	require.NoError(t, err)
	assert.Contains(t, out, "queued "+queue.ItemPrefix)

	out, err = execute(t, `{"schoolName":"South"}`, "-c", cfgPath, "enqueue", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "for reports")

	out, err = execute(t, "", "-c", cfgPath, "--format", "json", "status")
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			QueuePath string `json:"queuePath"`
			FileCount int    `json:"fileCount"`
			Target    string `json:"target"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, filepath.Join(root, "queue"), resp.Data.QueuePath)
	assert.Equal(t, 2, resp.Data.FileCount)
	assert.Equal(t, "reports", resp.Data.Target)
}

func TestEnqueue_RejectsNonObject(t *testing.T) {
	cfgPath, _ := workspace(t, "")
	out, err := execute(t, `[1,2,3]`, "-c", cfgPath, "enqueue", "-")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, ErrCodeInput)
}

func TestStatus_WithLedger(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "ledger.db")
	l, err := ledger.Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, l.Record(context.Background(), queue.Result{File: "a.json", Outcome: queue.Ingested}))
	require.NoError(t, l.Record(context.Background(), queue.Result{File: "b.json", Outcome: queue.Poisoned}))
	require.NoError(t, l.Close())

	cfgPath, _ := workspace(t, fmt.Sprintf("ledger:\n  path: %s\n", dbPath))
	out, err := execute(t, "", "-c", cfgPath, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "1 ingested, 1 poisoned")
}

func TestStatus_MissingLedgerIsNotCreated(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "ledger.db")
	cfgPath, _ := workspace(t, fmt.Sprintf("ledger:\n  path: %s\n", dbPath))

	_, err := execute(t, "", "-c", cfgPath, "status")
	require.NoError(t, err)
	assert.NoFileExists(t, dbPath)
}

func TestGetAndCollections(t *testing.T) {
	cfgPath, root := workspace(t, "")
	st, err := docstore.New(root, docstore.Options{})
	require.NoError(t, err)
	require.NoError(t, st.WriteCollection("schools", []docstore.Document{
		{"id": "s1", "name": "North"},
		{"id": "s2", "name": "South"},
	}))

	out, err := execute(t, "", "-c", cfgPath, "collections")
	require.NoError(t, err)
	assert.Equal(t, "schools\n", out)

	out, err = execute(t, "", "-c", cfgPath, "get", "schools")
	require.NoError(t, err)
	var docs []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &docs))
	assert.Len(t, docs, 2)

	out, err = execute(t, "", "-c", cfgPath, "get", "schools", "s2")
	require.NoError(t, err)
	assert.Contains(t, out, `"name": "South"`)

	out, err = execute(t, "", "-c", cfgPath, "--format", "json", "get", "schools", "s9")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
}

func TestGet_InvalidName(t *testing.T) {
	cfgPath, _ := workspace(t, "")
	_, err := execute(t, "", "-c", cfgPath, "get", "../etc")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(assert.AnError))
	assert.Equal(t, ExitCommandError, GetExitCode(&ExitError{Code: ExitCommandError, Message: "x"}))
}
