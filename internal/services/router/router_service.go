package router

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/memoro/internal/common"
	"github.com/ternarybob/memoro/internal/interfaces"
	"github.com/ternarybob/memoro/internal/models"
)

const routePrompt = `You route a user's utterance to exactly one tool. Respond with only a JSON object, no prose:
{"tool": "<tool>", "reasoning": "<one short sentence>"}

Tools:
- "analyze_screen": the user asks about what is currently on their screen or display
- "query_documents": the user asks about their stored documents, files, or records
- "general_chat": anything else

Utterance: %s`

// Keyword sets for the fallback path when the model output is unusable.
var (
	screenKeywords   = []string{"screen", "display", "monitor", "see", "looking"}
	documentKeywords = []string{"document", "file", "claim", "record", "search", "find"}
)

// Service routes utterances to tools with an LLM, falling back to keyword
// matching when the model response cannot be parsed.
type Service struct {
	llm    interfaces.LLMService
	logger arbor.ILogger
}

// NewService creates an intent router backed by the LLM service.
func NewService(llm interfaces.LLMService, logger arbor.ILogger) interfaces.Router {
	return &Service{
		llm:    llm,
		logger: logger,
	}
}

// Route decides which tool should handle the utterance.
func (s *Service) Route(ctx context.Context, text string) (*models.RouteDecision, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: utterance is required", common.ErrInvalidInput)
	}

	messages := []interfaces.Message{
		{Role: "user", Content: fmt.Sprintf(routePrompt, text)},
	}

	response, err := s.llm.Chat(ctx, messages)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Routing model call failed, using keyword fallback")
		return s.keywordRoute(text), nil
	}

	decision, err := parseDecision(response)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("response", truncate(response, 200)).
			Msg("Unparseable routing response, using keyword fallback")
		return s.keywordRoute(text), nil
	}

	s.logger.Debug().
		Str("tool", decision.Tool).
		Str("reasoning", decision.Reasoning).
		Msg("Utterance routed")

	return decision, nil
}

// parseDecision extracts the JSON decision from the model response. Models
// sometimes wrap JSON in code fences or prose, so scan for the outermost
// object before unmarshalling.
func parseDecision(response string) (*models.RouteDecision, error) {
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in response")
	}

	var decision models.RouteDecision
	if err := json.Unmarshal([]byte(response[start:end+1]), &decision); err != nil {
		return nil, fmt.Errorf("invalid routing JSON: %w", err)
	}

	switch decision.Tool {
	case models.RouteAnalyzeScreen, models.RouteQueryDocuments, models.RouteGeneralChat:
		return &decision, nil
	default:
		return nil, fmt.Errorf("unknown tool %q", decision.Tool)
	}
}

// keywordRoute is the deterministic fallback: screen keywords win over
// document keywords, and anything else is general chat.
func (s *Service) keywordRoute(text string) *models.RouteDecision {
	lowered := strings.ToLower(text)

	for _, keyword := range screenKeywords {
		if containsWord(lowered, keyword) {
			return &models.RouteDecision{
				Tool:      models.RouteAnalyzeScreen,
				Reasoning: fmt.Sprintf("keyword match: %q", keyword),
				Fallback:  true,
			}
		}
	}
	for _, keyword := range documentKeywords {
		if containsWord(lowered, keyword) {
			return &models.RouteDecision{
				Tool:      models.RouteQueryDocuments,
				Reasoning: fmt.Sprintf("keyword match: %q", keyword),
				Fallback:  true,
			}
		}
	}
	return &models.RouteDecision{
		Tool:      models.RouteGeneralChat,
		Reasoning: "no routing keywords matched",
		Fallback:  true,
	}
}

// containsWord matches whole words only, so "files" matches "file" but
// "profile" does not.
func containsWord(text, word string) bool {
	for _, field := range strings.FieldsFunc(text, func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	}) {
		if field == word || strings.TrimSuffix(field, "s") == word {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
