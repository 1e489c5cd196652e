package models

// Intent routing targets for voice and chat input.
const (
	RouteAnalyzeScreen  = "analyze_screen"
	RouteQueryDocuments = "query_documents"
	RouteGeneralChat    = "general_chat"
)

// RouteDecision is the router's verdict for a single utterance.
type RouteDecision struct {
	Tool      string `json:"tool"`
	Reasoning string `json:"reasoning,omitempty"`
	Fallback  bool   `json:"fallback,omitempty"` // True when keyword fallback decided, not the model
}

// Transcription is the result of converting audio to text.
type Transcription struct {
	Text     string  `json:"text"`
	Duration float64 `json:"duration,omitempty"` // Audio duration in seconds, if reported
}
