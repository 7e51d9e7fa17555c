package ingest_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/argos-kg/argos/pkg/ingest"
	"github.com/argos-kg/argos/pkg/types"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadChunks(t *testing.T) {
	content := `{"articleId": "a1", "chunkId": "a1-c0", "seq": 0, "text": "first"}

{"articleId": "a1", "chunkId": "a1-c1", "seq": 1, "text": "second"}
not json at all
{"articleId": "a1", "chunkId": "a1-c2", "seq": 2, "text": "third"}
`
	path := writeFile(t, t.TempDir(), "a1.jsonl", content)

	chunks, err := ingest.ReadChunks(path, testLogger())
	require.NoError(t, err)
	// Blank and malformed lines are skipped, not fatal.
	require.Len(t, chunks, 3)
	assert.Equal(t, "a1-c0", chunks[0].ChunkID)
	assert.Equal(t, "third", chunks[2].Text)
}

func TestReadChunksMissingFile(t *testing.T) {
	_, err := ingest.ReadChunks(filepath.Join(t.TempDir(), "absent.jsonl"), testLogger())
	assert.Error(t, err)
}

func TestLoadMeta(t *testing.T) {
	content := `{"articleId": "a1", "title": "On Rising Times", "year": 1972, "authors": ["Jane Doe"]}`
	path := writeFile(t, t.TempDir(), "a1.meta.json", content)

	meta, err := ingest.LoadMeta(path)
	require.NoError(t, err)
	assert.Equal(t, "a1", meta.ArticleID)
	assert.Equal(t, "On Rising Times", meta.Title)
	require.NotNil(t, meta.Year)
	assert.Equal(t, 1972, *meta.Year)
	require.Len(t, meta.Authors, 1)
	assert.Equal(t, "Jane Doe", meta.Authors[0].Name)
}

func TestSingleArticleID(t *testing.T) {
	tests := []struct {
		name    string
		chunks  []types.ChunkRecord
		want    string
		wantErr bool
	}{
		{
			name: "single id",
			chunks: []types.ChunkRecord{
				{ArticleID: "a1", ChunkID: "c0"},
				{ArticleID: "a1", ChunkID: "c1"},
			},
			want: "a1",
		},
		{
			name: "mixed ids",
			chunks: []types.ChunkRecord{
				{ArticleID: "a1", ChunkID: "c0"},
				{ArticleID: "a2", ChunkID: "c1"},
			},
			wantErr: true,
		},
		{
			name:    "no chunks",
			chunks:  nil,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := ingest.SingleArticleID(tt.chunks)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, id)
		})
	}
}
