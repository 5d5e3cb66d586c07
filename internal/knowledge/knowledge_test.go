package knowledge

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/support-router/backend/internal/embedding"
)

type failingEmbedder struct{ *embedding.HashingEmbedder }

func (failingEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("model unavailable")
}

func TestNewStoreEmbedsOnce(t *testing.T) {
	e, err := embedding.NewHashingEmbedder(128)
	require.NoError(t, err)

	docs := DefaultDocuments()
	store, err := NewStore(context.Background(), e, docs)
	require.NoError(t, err)

	assert.Equal(t, 5, store.Len())
	for _, d := range store.Documents() {
		assert.Len(t, d.Embedding, 128, d.ID)
	}
	// the input slice is not modified
	assert.Nil(t, docs[0].Embedding)
}

func TestNewStoreEmpty(t *testing.T) {
	e, _ := embedding.NewHashingEmbedder(16)
	store, err := NewStore(context.Background(), e, nil)
	require.NoError(t, err)
	assert.Zero(t, store.Len())
	assert.Empty(t, store.Documents())
}

func TestNewStoreEmbeddingFailure(t *testing.T) {
	h, _ := embedding.NewHashingEmbedder(16)
	_, err := NewStore(context.Background(), failingEmbedder{h}, DefaultDocuments())
	assert.ErrorContains(t, err, "model unavailable")
}

func TestParse(t *testing.T) {
	data := []byte(`
documents:
  - id: kb-1
    title: Two-factor codes
    category: Technical
    content: "  Codes expire after 30 seconds.  "
  - id: kb-2
    title: Refund window
    html: |
      <html><head><style>p{}</style></head>
      <body><nav>Menu</nav><h1>Refunds</h1><p>Refunds are issued within 14 days.</p><script>x()</script></body></html>
  - id: kb-3
    content: Generic answer
`)

	docs, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, docs, 3)

	assert.Equal(t, "Codes expire after 30 seconds.", docs[0].Content)
	assert.Equal(t, "technical", docs[0].Category)

	assert.Equal(t, "Refunds Refunds are issued within 14 days.", docs[1].Content)
	assert.Equal(t, "general", docs[1].Category)

	assert.Equal(t, "general", docs[2].Category)
}

func TestParseErrors(t *testing.T) {
	tests := map[string]string{
		"missing id":   "documents:\n  - content: x\n",
		"duplicate id": "documents:\n  - id: a\n    content: x\n  - id: a\n    content: y\n",
		"no content":   "documents:\n  - id: a\n",
		"bad yaml":     "documents: [",
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(in))
			assert.Error(t, err)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kb.yaml")
	require.NoError(t, os.WriteFile(path, []byte("documents:\n  - id: a\n    content: hello\n"), 0o644))

	docs, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "hello", docs[0].Content)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
