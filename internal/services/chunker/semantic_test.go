package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/memoro/internal/common"
)

func newTestChunker(t *testing.T) *SemanticChunker {
	t.Helper()
	cfg := &common.ChunkingConfig{MinChunkChars: 50, Threshold: 0.15}
	return NewSemanticChunker(cfg, common.GetLogger()).(*SemanticChunker)
}

func TestChunk_EmptyInput(t *testing.T) {
	c := newTestChunker(t)

	assert.Empty(t, c.Chunk(""))
	assert.Empty(t, c.Chunk("   \n\n  \t "))
}

func TestChunk_ChunksAreTrimmedAndNonEmpty(t *testing.T) {
	c := newTestChunker(t)

	text := "  The quick brown fox jumps over the lazy dog near the river.  \n\n  Quantum computers use qubits instead of classical bits for computation.  "
	chunks := c.Chunk(text)

	require.NotEmpty(t, chunks)
	for _, chunk := range chunks {
		assert.NotEmpty(t, chunk)
		assert.Equal(t, strings.TrimSpace(chunk), chunk)
	}
}

func TestChunk_ParagraphsAreHardBoundaries(t *testing.T) {
	c := newTestChunker(t)

	para1 := "Solar panels convert sunlight into electricity using photovoltaic cells arranged in large arrays."
	para2 := "Medieval castles were fortified residences built with thick stone walls and defensive towers everywhere."
	chunks := c.Chunk(para1 + "\n\n" + para2)

	require.Len(t, chunks, 2)
	assert.Equal(t, para1, chunks[0])
	assert.Equal(t, para2, chunks[1])
}

func TestChunk_DistinctTopicsProduceMultipleChunks(t *testing.T) {
	c := newTestChunker(t)

	// One paragraph, two clearly different topics with no shared vocabulary.
	topicA := "Solar energy production depends on sunlight intensity. Photovoltaic panels generate electricity from solar radiation. Panel efficiency determines electricity output."
	topicB := "French cuisine emphasizes butter and fresh herbs. Traditional recipes require careful sauce preparation. Chefs practice sauce techniques during culinary training."
	chunks := c.Chunk(topicA + " " + topicB)

	assert.GreaterOrEqual(t, len(chunks), 2, "expected a chunk boundary between unrelated topics")
}

func TestChunk_CohesiveTextStaysTogether(t *testing.T) {
	c := newTestChunker(t)

	text := "The database stores document records. Each database record holds document metadata. Document metadata includes the database key."
	chunks := c.Chunk(text)

	assert.Len(t, chunks, 1, "lexically cohesive sentences should share a chunk")
}

func TestChunk_ShortFragmentsMergeIntoPredecessor(t *testing.T) {
	c := newTestChunker(t)

	text := "Distributed systems replicate state across machines for fault tolerance and availability.\n\nYes."
	chunks := c.Chunk(text)

	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0], "Yes.")
}

func TestChunk_SingleShortTextStandsAlone(t *testing.T) {
	c := newTestChunker(t)

	chunks := c.Chunk("Short note.")
	require.Len(t, chunks, 1)
	assert.Equal(t, "Short note.", chunks[0])
}

func TestChunk_Deterministic(t *testing.T) {
	c := newTestChunker(t)

	text := "Solar energy production depends on sunlight intensity. Photovoltaic panels generate electricity. French cuisine emphasizes butter and herbs. Traditional recipes need careful preparation."
	first := c.Chunk(text)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, c.Chunk(text))
	}
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "simple sentences",
			input: "First sentence. Second sentence! Third sentence?",
			want:  []string{"First sentence.", "Second sentence!", "Third sentence?"},
		},
		{
			name:  "no terminal punctuation",
			input: "A trailing fragment without punctuation",
			want:  []string{"A trailing fragment without punctuation"},
		},
		{
			name:  "abbreviation-like token not split",
			input: "Version 2.5 shipped today. It works.",
			want:  []string{"Version 2.5 shipped today.", "It works."},
		},
		{
			name:  "punctuation runs",
			input: "Really?! Yes... Done.",
			want:  []string{"Really?!", "Yes...", "Done."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, splitSentences(tt.input))
		})
	}
}

func TestJaccard(t *testing.T) {
	a := map[string]struct{}{"solar": {}, "panel": {}, "energy": {}}
	b := map[string]struct{}{"solar": {}, "panel": {}, "output": {}}

	assert.InDelta(t, 0.5, jaccard(a, b), 0.0001)
	assert.Equal(t, 0.0, jaccard(a, map[string]struct{}{}))
	assert.Equal(t, 1.0, jaccard(a, a))
}
