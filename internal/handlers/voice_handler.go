// -----------------------------------------------------------------------
// Last Modified: Tuesday, 11th August 2026 4:55:19 pm
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/memoro/internal/common"
	"github.com/ternarybob/memoro/internal/interfaces"
	"github.com/ternarybob/memoro/internal/models"
	"golang.org/x/time/rate"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// VoiceMessage is a client-to-server control frame on the voice socket.
// Audio arrives as binary frames; everything else is JSON text frames.
type VoiceMessage struct {
	Type     string `json:"type"`               // "end", "query", "reset", "screenshot"
	Text     string `json:"text,omitempty"`     // Query text for "query"
	Image    string `json:"image,omitempty"`    // Base64 PNG for "screenshot"
	Question string `json:"question,omitempty"` // Optional question with "screenshot"
}

// VoiceResponse is a server-to-client frame.
type VoiceResponse struct {
	Type       string                  `json:"type"`
	Text       string                  `json:"text,omitempty"`
	Tool       string                  `json:"tool,omitempty"`
	Chunks     []models.RetrievedChunk `json:"chunks,omitempty"`
	Token      string                  `json:"token,omitempty"`
	Answer     string                  `json:"answer,omitempty"`
	Error      string                  `json:"error,omitempty"`
	SessionID  string                  `json:"session_id,omitempty"`
	AudioBytes int                     `json:"audio_bytes,omitempty"`
}

// VoiceHandler owns the /ws/voice WebSocket endpoint. Each connection is
// one voice session: binary frames accumulate WAV audio until an "end"
// frame triggers transcribe, route, and act.
type VoiceHandler struct {
	transcriber interfaces.Transcriber
	router      interfaces.Router
	rag         interfaces.RAGService
	llm         interfaces.LLMService
	config      *common.VoiceConfig
	logger      arbor.ILogger
}

// voiceSession is per-connection state. The write mutex serializes all
// frames onto the socket; gorilla connections do not allow concurrent writes.
type voiceSession struct {
	id           string
	conn         *websocket.Conn
	writeMu      sync.Mutex
	writeTimeout time.Duration
	audio        []byte
	screenshot   string // Last received base64 PNG, empty if none
}

func NewVoiceHandler(transcriber interfaces.Transcriber, router interfaces.Router, rag interfaces.RAGService, llm interfaces.LLMService, config *common.VoiceConfig, logger arbor.ILogger) *VoiceHandler {
	return &VoiceHandler{
		transcriber: transcriber,
		router:      router,
		rag:         rag,
		llm:         llm,
		config:      config,
		logger:      logger,
	}
}

// HandleVoice upgrades the connection and runs the session loop.
func (h *VoiceHandler) HandleVoice(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	writeTimeout := 10 * time.Second
	if h.config.WriteTimeout != "" {
		if parsed, err := time.ParseDuration(h.config.WriteTimeout); err == nil {
			writeTimeout = parsed
		}
	}

	session := &voiceSession{
		id:           uuid.New().String(),
		conn:         conn,
		writeTimeout: writeTimeout,
	}

	h.logger.Info().
		Str("session_id", session.id).
		Str("remote", r.RemoteAddr).
		Msg("Voice session opened")

	h.send(session, VoiceResponse{Type: "ready", SessionID: session.id})

	limiter := rate.NewLimiter(rate.Limit(h.config.MessageRate), h.config.MessageBurst)

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn().Err(err).Str("session_id", session.id).Msg("Voice session read error")
			}
			break
		}

		if !limiter.Allow() {
			h.send(session, VoiceResponse{Type: "error", Error: "rate limit exceeded, slow down"})
			continue
		}

		switch msgType {
		case websocket.BinaryMessage:
			h.appendAudio(session, data)
		case websocket.TextMessage:
			h.handleControl(r.Context(), session, data)
		}
	}

	h.logger.Info().Str("session_id", session.id).Msg("Voice session closed")
}

// appendAudio buffers an audio frame, enforcing the session cap.
func (h *VoiceHandler) appendAudio(session *voiceSession, data []byte) {
	if len(session.audio)+len(data) > h.config.MaxAudioBytes {
		h.send(session, VoiceResponse{
			Type:  "error",
			Error: fmt.Sprintf("audio buffer limit exceeded (%d bytes)", h.config.MaxAudioBytes),
		})
		session.audio = nil
		return
	}
	session.audio = append(session.audio, data...)
}

// handleControl dispatches one JSON control frame.
func (h *VoiceHandler) handleControl(ctx context.Context, session *voiceSession, data []byte) {
	var msg VoiceMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		h.send(session, VoiceResponse{Type: "error", Error: "invalid control message"})
		return
	}

	switch msg.Type {
	case "end":
		h.handleUtteranceEnd(ctx, session)
	case "query":
		h.handleUtterance(ctx, session, msg.Text)
	case "reset":
		session.audio = nil
		h.send(session, VoiceResponse{Type: "reset_ack"})
	case "screenshot":
		h.handleScreenshot(ctx, session, &msg)
	default:
		h.send(session, VoiceResponse{Type: "error", Error: fmt.Sprintf("unknown message type %q", msg.Type)})
	}
}

// handleUtteranceEnd transcribes the buffered audio and processes the text.
func (h *VoiceHandler) handleUtteranceEnd(ctx context.Context, session *voiceSession) {
	audio := session.audio
	session.audio = nil

	if len(audio) == 0 {
		h.send(session, VoiceResponse{Type: "error", Error: "no audio buffered"})
		return
	}

	transcription, err := h.transcriber.Transcribe(ctx, audio)
	if err != nil {
		h.logger.Warn().Err(err).Str("session_id", session.id).Msg("Transcription failed")
		h.send(session, VoiceResponse{Type: "error", Error: "transcription failed"})
		return
	}

	h.send(session, VoiceResponse{
		Type:       "transcript",
		Text:       transcription.Text,
		AudioBytes: len(audio),
	})

	if transcription.Text == "" {
		h.send(session, VoiceResponse{Type: "error", Error: "no speech detected"})
		return
	}

	h.handleUtterance(ctx, session, transcription.Text)
}

// handleUtterance routes the text and dispatches to the chosen tool.
func (h *VoiceHandler) handleUtterance(ctx context.Context, session *voiceSession, text string) {
	if text == "" {
		h.send(session, VoiceResponse{Type: "error", Error: "empty query"})
		return
	}

	decision, err := h.router.Route(ctx, text)
	if err != nil {
		h.send(session, VoiceResponse{Type: "error", Error: "routing failed"})
		return
	}

	h.send(session, VoiceResponse{Type: "route", Tool: decision.Tool})

	switch decision.Tool {
	case models.RouteAnalyzeScreen:
		h.analyzeScreen(ctx, session, text)
	case models.RouteQueryDocuments:
		h.queryDocuments(ctx, session, text)
	default:
		h.generalChat(ctx, session, text)
	}
}

// analyzeScreen answers a question about the most recent screenshot. When
// no screenshot has arrived yet, the client is asked to capture one.
func (h *VoiceHandler) analyzeScreen(ctx context.Context, session *voiceSession, question string) {
	if session.screenshot == "" {
		h.send(session, VoiceResponse{Type: "screenshot_request", Text: question})
		return
	}

	answer, err := h.llm.AnalyzeImage(ctx, session.screenshot, question)
	if err != nil {
		h.logger.Warn().Err(err).Str("session_id", session.id).Msg("Image analysis failed")
		h.send(session, VoiceResponse{Type: "error", Error: "image analysis failed"})
		return
	}
	h.send(session, VoiceResponse{Type: "done", Answer: answer})
}

// queryDocuments runs the RAG pipeline, streaming tokens when configured.
func (h *VoiceHandler) queryDocuments(ctx context.Context, session *voiceSession, query string) {
	if h.config.StreamingAnswer {
		err := h.rag.QueryStream(ctx, query, 0, func(event models.StreamEvent) error {
			return h.send(session, VoiceResponse{
				Type:   event.Type,
				Chunks: event.Chunks,
				Token:  event.Token,
				Answer: event.Answer,
				Error:  event.Error,
			})
		})
		if err != nil {
			h.logger.Warn().Err(err).Str("session_id", session.id).Msg("Streamed query failed")
		}
		return
	}

	result, err := h.rag.Query(ctx, query, 0)
	if err != nil {
		h.send(session, VoiceResponse{Type: "error", Error: "query failed"})
		return
	}
	if result.LLMError {
		h.send(session, VoiceResponse{Type: "error", Chunks: result.Chunks, Error: "answer generation failed"})
		return
	}
	h.send(session, VoiceResponse{Type: "done", Chunks: result.Chunks, Answer: result.Answer})
}

// generalChat answers without document context.
func (h *VoiceHandler) generalChat(ctx context.Context, session *voiceSession, text string) {
	answer, err := h.llm.Chat(ctx, []interfaces.Message{
		{Role: "system", Content: "You are a concise, helpful voice assistant."},
		{Role: "user", Content: text},
	})
	if err != nil {
		h.logger.Warn().Err(err).Str("session_id", session.id).Msg("Chat failed")
		h.send(session, VoiceResponse{Type: "error", Error: "chat failed"})
		return
	}
	h.send(session, VoiceResponse{Type: "done", Answer: answer})
}

// handleScreenshot stores the image and optionally answers a question
// about it immediately.
func (h *VoiceHandler) handleScreenshot(ctx context.Context, session *voiceSession, msg *VoiceMessage) {
	if msg.Image == "" {
		h.send(session, VoiceResponse{Type: "error", Error: "screenshot message missing image"})
		return
	}
	session.screenshot = msg.Image
	h.send(session, VoiceResponse{Type: "screenshot_ack"})

	if msg.Question != "" {
		h.analyzeScreen(ctx, session, msg.Question)
	}
}

// send writes one frame under the session write mutex with a deadline.
func (h *VoiceHandler) send(session *voiceSession, resp VoiceResponse) error {
	session.writeMu.Lock()
	defer session.writeMu.Unlock()

	session.conn.SetWriteDeadline(time.Now().Add(session.writeTimeout))
	if err := session.conn.WriteJSON(resp); err != nil {
		h.logger.Debug().Err(err).Str("session_id", session.id).Msg("WebSocket write failed")
		return err
	}
	return nil
}
