// -----------------------------------------------------------------------
// Last Modified: Tuesday, 14th July 2026 3:22:18 pm
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package models

// NoResultsContext is the context string used when retrieval finds nothing.
const NoResultsContext = "No relevant documents found."

// RetrievedChunk is one retrieval result with its text and source resolved.
type RetrievedChunk struct {
	DocID      string  `json:"doc_id"`
	ChunkIndex int     `json:"chunk_index"`
	Filename   string  `json:"filename"`
	Text       string  `json:"text"`
	Distance   float32 `json:"distance"`
}

// RAGResult is the complete outcome of a retrieval-augmented query.
// Chunks and Context are always populated from retrieval; Answer and
// LLMError reflect the generation step.
type RAGResult struct {
	Query    string           `json:"query"`
	Chunks   []RetrievedChunk `json:"chunks"`
	Context  string           `json:"context"`
	Answer   string           `json:"answer"`
	LLMError bool             `json:"llm_error"`
}

// Stream event types emitted during a streamed query.
const (
	StreamEventChunks = "chunks"
	StreamEventToken  = "token"
	StreamEventDone   = "done"
	StreamEventError  = "error"
)

// StreamEvent is a single event in a streamed query response.
// The first event is always "chunks"; a stream terminates with either
// "done" or "error", never both.
type StreamEvent struct {
	Type   string           `json:"type"`
	Chunks []RetrievedChunk `json:"chunks,omitempty"`
	Token  string           `json:"token,omitempty"`
	Answer string           `json:"answer,omitempty"` // Full answer, set on "done"
	Error  string           `json:"error,omitempty"`
}
