package docstore

import (
	"os"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"
)

// The on-disk layout is a contract with operators who diff and hand-edit
// collection files; keep it pinned.
func TestCollectionFileFormat(t *testing.T) {
	s := newTestStore(t, Options{})
	require.NoError(t, s.WriteCollection("reports", []Document{
		{"id": "r-1", "schoolName": "Test", "score": 92.5},
		{"id": "r-2", "tags": []any{"a", "b"}},
	}))

	raw, err := os.ReadFile(s.Path("reports"))
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "collection_format", raw)
}
