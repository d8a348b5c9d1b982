package httpserver

import (
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/hosseinshamlooo/lexi-ai/internal/analytics"
	"github.com/hosseinshamlooo/lexi-ai/internal/insights"
	"github.com/hosseinshamlooo/lexi-ai/internal/situation"
	"github.com/hosseinshamlooo/lexi-ai/internal/translate"
	"github.com/hosseinshamlooo/lexi-ai/internal/voice"
)

// maxAudioUpload caps a single voice chunk upload at 25 MB, the Whisper
// API's own file limit.
const maxAudioUpload = 25 << 20

// vocabularyLimit bounds the word list shown on the feedback page.
const vocabularyLimit = 20

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server bundles the Echo router and the app services behind it.
type Server struct {
	Echo *echo.Echo

	sessions   *SessionManager
	analyzer   *analytics.Analyzer
	translator *translate.Client
	store      insights.Store
}

// New constructs the configured Echo server with all routes registered.
func New(sessions *SessionManager, analyzer *analytics.Analyzer, translator *translate.Client, store insights.Store) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	s := &Server{
		Echo:       e,
		sessions:   sessions,
		analyzer:   analyzer,
		translator: translator,
		store:      store,
	}
	s.register()
	return s
}

func (s *Server) register() {
	e := s.Echo
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	e.GET("/api/situations", s.listSituations)
	e.POST("/api/sessions", s.createSession)
	e.GET("/api/sessions/:id/progress", s.sessionProgress)
	e.DELETE("/api/sessions/:id", s.deleteSession)
	e.POST("/api/voice/process", s.processVoice)
	e.POST("/api/analyze-conversation", s.analyzeConversation)
	e.POST("/api/analyze-conversation-detailed", s.analyzeDetailed)
	e.POST("/api/translate", s.translateText)
	e.GET("/api/insights", s.listInsights)
	e.POST("/api/insights", s.saveInsights)
	e.GET("/api/insights/:id", s.getInsights)
	e.DELETE("/api/insights", s.clearInsights)
	e.GET("/ws/:session", s.streamTranscript)
}

func (s *Server) listSituations(c echo.Context) error {
	return c.JSON(http.StatusOK, situation.All())
}

type createSessionRequest struct {
	Situation string `json:"situation"`
	Language  string `json:"language"`
}

type createSessionResponse struct {
	ID        string              `json:"id"`
	Situation situation.Situation `json:"situation"`
	Language  string              `json:"language"`
	Messages  []voice.ChatMessage `json:"messages"`
}

func (s *Server) createSession(c echo.Context) error {
	var req createSessionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	sess, err := s.sessions.Create(c.Request().Context(), req.Situation, req.Language)
	if err != nil {
		log.Printf("create session failed: %v", err)
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	return c.JSON(http.StatusCreated, createSessionResponse{
		ID:        sess.ID,
		Situation: sess.Situation,
		Language:  sess.Language,
		Messages:  sess.Messages(),
	})
}

type sessionProgressResponse struct {
	Progress   analytics.Progress `json:"progress"`
	Vocabulary []string           `json:"vocabulary"`
}

// sessionProgress reports speaking share, word counts, and the student's
// vocabulary for the feedback page, derived from the live transcript.
func (s *Server) sessionProgress(c echo.Context) error {
	sess, ok := s.sessions.Get(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown session"})
	}
	msgs := sess.Messages()
	return c.JSON(http.StatusOK, sessionProgressResponse{
		Progress:   analytics.ComputeProgress(msgs),
		Vocabulary: analytics.Vocabulary(msgs, vocabularyLimit),
	})
}

func (s *Server) deleteSession(c echo.Context) error {
	s.sessions.Delete(c.Param("id"))
	return c.NoContent(http.StatusNoContent)
}

type processVoiceResponse struct {
	Text     string `json:"text"`
	Response string `json:"response"`
}

// processVoice accepts one recorded chunk as multipart form data, transcribes
// it, and returns both the transcription and the assistant reply. Both sides
// of the exchange land in the session transcript and its websocket stream.
func (s *Server) processVoice(c echo.Context) error {
	sessionID := c.FormValue("session")
	sess, ok := s.sessions.Get(sessionID)
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown session"})
	}
	sess.touch()

	fh, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing audio file"})
	}
	if fh.Size > maxAudioUpload {
		return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{"error": "audio file too large"})
	}
	f, err := fh.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unreadable audio file"})
	}
	defer f.Close()
	audio, err := io.ReadAll(f)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unreadable audio file"})
	}

	language := c.FormValue("language")
	if language == "" {
		language = sess.Language
	}
	prompt := c.FormValue("prompt")
	if prompt == "" {
		prompt = sess.Situation.Prompt
	}

	text, reply, err := sess.gw.Process(c.Request().Context(), audio, language, prompt)
	if err != nil {
		log.Printf("voice processing failed for session %s: %v", sessionID, err)
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "voice processing failed"})
	}

	if text != "" {
		sess.Append(voice.KindUserMessage, voice.RoleUser, text)
	}
	if reply != "" {
		sess.Append(voice.KindAssistantMessage, voice.RoleAssistant, reply)
	}
	return c.JSON(http.StatusOK, processVoiceResponse{Text: text, Response: reply})
}

type analyzeRequest struct {
	Conversation string `json:"conversation"`
	Language     string `json:"language"`
}

func (s *Server) analyzeConversation(c echo.Context) error {
	var req analyzeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.Conversation == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "conversation is required"})
	}
	recap, err := s.analyzer.Recap(c.Request().Context(), req.Conversation, req.Language)
	if err != nil {
		log.Printf("conversation analysis failed: %v", err)
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "analysis failed"})
	}
	return c.JSON(http.StatusOK, recap)
}

func (s *Server) analyzeDetailed(c echo.Context) error {
	var req analyzeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.Conversation == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "conversation is required"})
	}
	detailed, err := s.analyzer.Detailed(c.Request().Context(), req.Conversation, req.Language)
	if err != nil {
		log.Printf("detailed analysis failed: %v", err)
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "analysis failed"})
	}
	return c.JSON(http.StatusOK, detailed)
}

type translateRequest struct {
	Text   string `json:"text"`
	Source string `json:"source"`
	Target string `json:"target"`
}

func (s *Server) translateText(c echo.Context) error {
	var req translateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.Text == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "text is required"})
	}
	res, err := s.translator.Translate(c.Request().Context(), req.Text, req.Source, req.Target)
	if err != nil {
		log.Printf("translation failed: %v", err)
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "translation failed"})
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) listInsights(c echo.Context) error {
	records, err := s.store.History()
	if err != nil {
		log.Printf("listing insights failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not load insights"})
	}
	return c.JSON(http.StatusOK, records)
}

type saveInsightsRequest struct {
	insights.ConversationInsights
	// SessionID optionally names a live session whose transcript fills in the
	// progress and vocabulary feedback server-side.
	SessionID string `json:"sessionId,omitempty"`
}

func (s *Server) saveInsights(c echo.Context) error {
	var req saveInsightsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	rec := req.ConversationInsights
	if req.SessionID != "" {
		if sess, ok := s.sessions.Get(req.SessionID); ok {
			fillFeedback(&rec, sess.Messages())
		}
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Date.IsZero() {
		rec.Date = time.Now()
	}
	if err := s.store.Save(rec); err != nil {
		log.Printf("saving insights failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not save insights"})
	}
	return c.JSON(http.StatusCreated, rec)
}

// fillFeedback derives the feedback-page numbers from a transcript: speaking
// share, word counts, vocabulary, and the raw user messages. Values already
// present on the record are kept.
func fillFeedback(rec *insights.ConversationInsights, msgs []voice.ChatMessage) {
	if rec.FeedbackData == nil {
		p := analytics.ComputeProgress(msgs)
		fd := &insights.FeedbackData{Vocabulary: analytics.Vocabulary(msgs, vocabularyLimit)}
		fd.Progress.SpeakingTime.Student = p.SpeakingShare.Student
		fd.Progress.SpeakingTime.Teacher = p.SpeakingShare.Teacher
		fd.Progress.TotalWords = p.TotalWords
		fd.Progress.NewWords = p.NewWords
		rec.FeedbackData = fd
	}
	if len(rec.UserMessages) == 0 {
		for _, m := range msgs {
			if m.Kind == voice.KindUserMessage {
				rec.UserMessages = append(rec.UserMessages, m.Content)
			}
		}
	}
}

func (s *Server) getInsights(c echo.Context) error {
	rec, ok, err := s.store.ByID(c.Param("id"))
	if err != nil {
		log.Printf("loading insights failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not load insights"})
	}
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown insight"})
	}
	return c.JSON(http.StatusOK, rec)
}

func (s *Server) clearInsights(c echo.Context) error {
	if err := s.store.Clear(); err != nil {
		log.Printf("clearing insights failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not clear insights"})
	}
	return c.NoContent(http.StatusNoContent)
}

// streamTranscript upgrades to a websocket and pushes every transcript
// message for the session, starting with a replay of what exists so far.
func (s *Server) streamTranscript(c echo.Context) error {
	sess, ok := s.sessions.Get(c.Param("session"))
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown session"})
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	if err := sess.Subscribe(conn); err != nil {
		_ = conn.Close()
		return nil
	}
	defer func() {
		sess.Unsubscribe(conn)
		_ = conn.Close()
	}()

	// Inbound frames are ignored; the read loop only detects disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return nil
		}
	}
}
