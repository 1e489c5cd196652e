// -----------------------------------------------------------------------
// Last Modified: Tuesday, 9th June 2026 10:17:32 am
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package chunker

import (
	"strings"
	"unicode"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/memoro/internal/common"
	"github.com/ternarybob/memoro/internal/interfaces"
)

// SemanticChunker splits text into topically coherent chunks.
//
// Paragraph breaks are hard boundaries. Within a paragraph run, sentences
// are compared by lexical overlap of their content words; a drop in
// overlap below the threshold starts a new chunk. Chunks shorter than
// MinChunkChars are merged into the preceding chunk so retrieval never
// sees fragments too small to carry meaning.
type SemanticChunker struct {
	minChunkChars int
	threshold     float64
	logger        arbor.ILogger
}

// NewSemanticChunker creates a chunker from configuration.
func NewSemanticChunker(cfg *common.ChunkingConfig, logger arbor.ILogger) interfaces.Chunker {
	minChars := cfg.MinChunkChars
	if minChars <= 0 {
		minChars = 50
	}
	threshold := cfg.Threshold
	if threshold <= 0 {
		threshold = 0.15
	}
	return &SemanticChunker{
		minChunkChars: minChars,
		threshold:     threshold,
		logger:        logger,
	}
}

// Chunk splits text into ordered, trimmed, non-empty chunks.
func (c *SemanticChunker) Chunk(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var chunks []string
	for _, paragraph := range splitParagraphs(text) {
		chunks = append(chunks, c.chunkParagraph(paragraph)...)
	}

	chunks = c.mergeShort(chunks)

	c.logger.Debug().
		Int("text_length", len(text)).
		Int("chunk_count", len(chunks)).
		Msg("Text chunked")

	return chunks
}

// chunkParagraph splits one paragraph at topic shifts.
func (c *SemanticChunker) chunkParagraph(paragraph string) []string {
	sentences := splitSentences(paragraph)
	if len(sentences) == 0 {
		return nil
	}
	if len(sentences) == 1 {
		return []string{sentences[0]}
	}

	var chunks []string
	current := []string{sentences[0]}
	currentWords := contentWords(sentences[0])

	for _, sentence := range sentences[1:] {
		words := contentWords(sentence)
		if jaccard(currentWords, words) < c.threshold {
			chunks = append(chunks, strings.Join(current, " "))
			current = current[:0]
			currentWords = make(map[string]struct{})
		}
		current = append(current, sentence)
		for w := range words {
			currentWords[w] = struct{}{}
		}
	}
	chunks = append(chunks, strings.Join(current, " "))

	return chunks
}

// mergeShort folds undersized chunks into their predecessor.
func (c *SemanticChunker) mergeShort(chunks []string) []string {
	var merged []string
	for _, chunk := range chunks {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			continue
		}
		if len(merged) > 0 && len(chunk) < c.minChunkChars {
			merged[len(merged)-1] = merged[len(merged)-1] + " " + chunk
			continue
		}
		merged = append(merged, chunk)
	}

	// A lone undersized chunk still stands on its own.
	return merged
}

// splitParagraphs splits on blank lines.
func splitParagraphs(text string) []string {
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	var paragraphs []string
	for _, p := range strings.Split(normalized, "\n\n") {
		p = strings.TrimSpace(p)
		if p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	return paragraphs
}

// splitSentences segments a paragraph into sentences on terminal
// punctuation followed by whitespace. Single newlines inside a paragraph
// are treated as spaces.
func splitSentences(paragraph string) []string {
	paragraph = strings.Join(strings.Fields(paragraph), " ")

	var sentences []string
	start := 0
	runes := []rune(paragraph)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		// Consume trailing punctuation runs like "?!" or "..."
		for i+1 < len(runes) && (runes[i+1] == '.' || runes[i+1] == '!' || runes[i+1] == '?') {
			i++
		}
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		sentence := strings.TrimSpace(string(runes[start : i+1]))
		if sentence != "" {
			sentences = append(sentences, sentence)
		}
		start = i + 1
	}
	if tail := strings.TrimSpace(string(runes[start:])); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}

// stopwords excluded from lexical overlap scoring.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"but": {}, "by": {}, "for": {}, "from": {}, "had": {}, "has": {},
	"have": {}, "he": {}, "her": {}, "his": {}, "i": {}, "in": {}, "is": {},
	"it": {}, "its": {}, "of": {}, "on": {}, "or": {}, "she": {}, "that": {},
	"the": {}, "their": {}, "they": {}, "this": {}, "to": {}, "was": {},
	"we": {}, "were": {}, "which": {}, "will": {}, "with": {}, "you": {},
}

// contentWords extracts the lowercased content-word set of a sentence.
func contentWords(sentence string) map[string]struct{} {
	words := make(map[string]struct{})
	for _, field := range strings.FieldsFunc(strings.ToLower(sentence), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}) {
		if len(field) < 3 {
			continue
		}
		if _, skip := stopwords[field]; skip {
			continue
		}
		words[field] = struct{}{}
	}
	return words
}

// jaccard computes set overlap between two word sets.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for w := range a {
		if _, ok := b[w]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
