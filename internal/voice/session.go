package voice

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Status is the session connection state.
type Status string

const (
	StatusIdle         Status = "idle"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
)

const (
	userTypingText      = "You're speaking..."
	assistantTypingText = "Lexi is thinking..."

	defaultLevelInterval = 50 * time.Millisecond
)

// ChunkPolicy controls how a recording cycle is bounded.
type ChunkPolicy struct {
	// MaxChunk ends a recording cycle after the given duration even if the user
	// has not muted, and starts a new one while still unmuted. Zero means a
	// cycle ends only on mute.
	MaxChunk time.Duration
}

// Options configures a Session.
type Options struct {
	// Language is the BCP-47 tag sent with every gateway call and used for
	// voice selection.
	Language string
	// OnMessage is invoked after a real (non-indicator) message lands in the
	// transcript. Optional.
	OnMessage func()
	// OnError receives every recoverable and connect-time failure. Optional.
	OnError func(error)
	// InterruptOnUnmute cancels any playing or queued speech as soon as the
	// user unmutes, so the assistant never talks over them.
	InterruptOnUnmute bool
	Chunk             ChunkPolicy
	// LevelInterval is the mic-level publish tick. Default 50ms.
	LevelInterval time.Duration
}

// ConnectConfig carries the per-call situation.
type ConnectConfig struct {
	Voice    string
	Greeting string
	Prompt   string
}

// Session coordinates the microphone, the gateway, the speaker, and the
// transcript for one conversation. At most one recording/response cycle is
// outstanding at any time; all shared state is mutated under a single mutex
// with whole-value replacements so readers never observe partial edits.
type Session struct {
	capture Capture
	gw      Gateway
	speaker Speaker
	opts    Options

	mu           sync.Mutex
	status       Status
	muted        bool
	recording    bool // a chunk is currently open
	cycleBusy    bool // a cycle is outstanding (recording or awaiting response)
	generation   uint64
	activePrompt string
	log          transcript
	micLevels    []float64
	levelDone    chan struct{}
	chunkTimer   *time.Timer
}

// NewSession constructs an idle, muted session.
func NewSession(capture Capture, gw Gateway, speaker Speaker, opts Options) *Session {
	if opts.LevelInterval <= 0 {
		opts.LevelInterval = defaultLevelInterval
	}
	return &Session{
		capture: capture,
		gw:      gw,
		speaker: speaker,
		opts:    opts,
		status:  StatusIdle,
		muted:   true,
	}
}

// Connect acquires the microphone, speaks the greeting (before any network
// round trip), primes the gateway with the silent situation prompt, and moves
// the session to Connected. On failure the session lands in Disconnected and
// the error is returned as well as reported through OnError.
func (s *Session) Connect(ctx context.Context, cfg ConnectConfig) error {
	s.mu.Lock()
	if s.status != StatusIdle {
		cur := s.status
		s.mu.Unlock()
		return fmt.Errorf("connect: session is %s, reset first", cur)
	}
	s.status = StatusConnecting
	s.mu.Unlock()

	if err := s.capture.Start(ctx); err != nil {
		err = Tag(ErrDeviceUnavailable, err)
		s.failConnect(err)
		return err
	}

	if cfg.Greeting != "" {
		s.SendAssistantMessage(cfg.Greeting)
	}
	if cfg.Prompt != "" {
		s.mu.Lock()
		s.activePrompt = cfg.Prompt
		s.mu.Unlock()
		if err := s.gw.Prime(ctx, s.opts.Language, cfg.Prompt); err != nil {
			err = Tag(ErrTransportFailure, err)
			_ = s.capture.Close()
			s.failConnect(err)
			return err
		}
	}

	s.mu.Lock()
	s.status = StatusConnected
	s.levelDone = make(chan struct{})
	done := s.levelDone
	s.mu.Unlock()
	go s.levelLoop(done)
	return nil
}

func (s *Session) failConnect(err error) {
	s.mu.Lock()
	s.status = StatusDisconnected
	s.mu.Unlock()
	s.report(err)
}

// Unmute opens the microphone and begins a recording cycle. Calling it while a
// cycle is already outstanding is a no-op, so two unmutes never start two
// concurrent cycles. Ignored unless the session is connected, so a stray
// unmute never leaks into a later connect.
func (s *Session) Unmute() {
	s.mu.Lock()
	if s.status != StatusConnected {
		s.mu.Unlock()
		return
	}
	s.muted = false
	s.mu.Unlock()
	if s.opts.InterruptOnUnmute {
		s.speaker.CancelAll()
	}
	s.beginCycle()
}

// Mute stops the in-progress recording cycle, if any, and sends the captured
// audio. It never fails; capture errors roll back the cycle and go through
// OnError.
func (s *Session) Mute() {
	s.mu.Lock()
	s.muted = true
	s.micLevels = nil
	if !s.recording {
		s.mu.Unlock()
		return
	}
	s.recording = false
	s.stopChunkTimerLocked()
	gen := s.generation
	s.mu.Unlock()
	s.finishChunk(gen, false)
}

// beginCycle appends the user typing indicator and opens a chunk, provided the
// session is connected, unmuted, and no cycle is outstanding.
func (s *Session) beginCycle() {
	s.mu.Lock()
	if s.status != StatusConnected || s.muted || s.cycleBusy {
		s.mu.Unlock()
		return
	}
	s.cycleBusy = true
	s.recording = true
	s.log.append(KindTypingIndicator, RoleUser, userTypingText)
	gen := s.generation
	s.mu.Unlock()

	if err := s.capture.BeginChunk(); err != nil {
		s.rollbackCycle(gen)
		s.report(Tag(ErrDeviceUnavailable, err))
		return
	}
	s.armChunkTimer(gen)
}

func (s *Session) armChunkTimer(gen uint64) {
	if s.opts.Chunk.MaxChunk <= 0 {
		return
	}
	s.mu.Lock()
	if gen == s.generation && s.recording {
		s.chunkTimer = time.AfterFunc(s.opts.Chunk.MaxChunk, func() { s.chunkDeadline(gen) })
	}
	s.mu.Unlock()
}

// chunkDeadline fires when a fixed-duration chunk elapses: the open chunk is
// sent and, if the user is still unmuted, a fresh cycle starts after the
// response is applied.
func (s *Session) chunkDeadline(gen uint64) {
	s.mu.Lock()
	if gen != s.generation || !s.recording {
		s.mu.Unlock()
		return
	}
	s.recording = false
	s.chunkTimer = nil
	s.mu.Unlock()
	s.finishChunk(gen, true)
}

func (s *Session) stopChunkTimerLocked() {
	if s.chunkTimer != nil {
		s.chunkTimer.Stop()
		s.chunkTimer = nil
	}
}

func (s *Session) finishChunk(gen uint64, restart bool) {
	data, err := s.capture.EndChunk()
	if err != nil {
		s.rollbackCycle(gen)
		s.report(Tag(ErrDeviceUnavailable, err))
		return
	}
	go s.processChunk(gen, data, restart)
}

// processChunk performs the single network suspension of a cycle and applies
// the response. A response that arrives after Disconnect or Reset carries a
// stale generation and is discarded without touching the transcript.
func (s *Session) processChunk(gen uint64, data []byte, restart bool) {
	s.mu.Lock()
	lang := s.opts.Language
	prompt := s.activePrompt
	s.mu.Unlock()

	text, reply, err := s.gw.Process(context.Background(), data, lang, prompt)

	s.mu.Lock()
	if gen != s.generation || s.status != StatusConnected {
		s.mu.Unlock()
		return
	}
	if err != nil {
		s.log.removeTrailingTyping(RoleAssistant)
		s.log.removeTrailingTyping(RoleUser)
		s.cycleBusy = false
		s.mu.Unlock()
		s.report(Tag(ErrTransportFailure, err))
		return
	}

	// User replacement is applied before the assistant indicator, and the
	// assistant replacement before TTS starts.
	if text != "" {
		s.log.replaceTrailingTyping(RoleUser, KindUserMessage, text)
		if reply != "" {
			s.log.append(KindTypingIndicator, RoleAssistant, assistantTypingText)
		}
	} else {
		s.log.removeTrailingTyping(RoleUser)
	}
	var speak string
	if reply != "" {
		s.log.replaceTrailingTyping(RoleAssistant, KindAssistantMessage, reply)
		speak = reply
	} else {
		s.log.removeTrailingTyping(RoleAssistant)
	}
	s.cycleBusy = false
	notify := s.opts.OnMessage
	s.mu.Unlock()

	if notify != nil && (text != "" || reply != "") {
		notify()
	}
	if speak != "" {
		s.speaker.Speak(speak)
	}
	if restart {
		s.beginCycle()
	}
}

func (s *Session) rollbackCycle(gen uint64) {
	s.mu.Lock()
	if gen == s.generation {
		s.log.removeTrailingTyping(RoleAssistant)
		s.log.removeTrailingTyping(RoleUser)
		s.recording = false
		s.cycleBusy = false
	}
	s.mu.Unlock()
}

// Disconnect stops recording, releases the microphone, cancels pending speech,
// and clears mic levels. It is idempotent and never fails; an in-flight
// gateway response is orphaned by bumping the generation.
func (s *Session) Disconnect() {
	s.mu.Lock()
	if s.status == StatusIdle || s.status == StatusDisconnected {
		s.mu.Unlock()
		return
	}
	s.generation++
	s.status = StatusDisconnected
	s.recording = false
	s.cycleBusy = false
	s.micLevels = nil
	s.stopChunkTimerLocked()
	if s.levelDone != nil {
		close(s.levelDone)
		s.levelDone = nil
	}
	s.log.removeTrailingTyping(RoleAssistant)
	s.log.removeTrailingTyping(RoleUser)
	s.mu.Unlock()

	_ = s.capture.Close()
	s.speaker.CancelAll()
}

// Reset performs Disconnect side effects, clears the transcript, forces mute,
// and returns the session to Idle so it can connect again.
func (s *Session) Reset() {
	s.Disconnect()
	s.mu.Lock()
	s.log.clear()
	s.muted = true
	s.micLevels = nil
	s.status = StatusIdle
	s.mu.Unlock()
}

// SendMessage appends a user message without a recording cycle.
func (s *Session) SendMessage(content string) {
	s.mu.Lock()
	s.log.append(KindUserMessage, RoleUser, content)
	notify := s.opts.OnMessage
	s.mu.Unlock()
	if notify != nil {
		notify()
	}
}

// SendAssistantMessage resolves a pending assistant indicator (or appends) and
// speaks the text.
func (s *Session) SendAssistantMessage(text string) {
	s.mu.Lock()
	s.log.replaceTrailingTyping(RoleAssistant, KindAssistantMessage, text)
	notify := s.opts.OnMessage
	s.mu.Unlock()
	if notify != nil {
		notify()
	}
	s.speaker.Speak(text)
}

// SendPromptToLLM replaces the active situation prompt and forwards it to the
// gateway without creating a visible message.
func (s *Session) SendPromptToLLM(ctx context.Context, prompt string) error {
	s.mu.Lock()
	s.activePrompt = prompt
	s.mu.Unlock()
	if err := s.gw.Prime(ctx, s.opts.Language, prompt); err != nil {
		err = Tag(ErrTransportFailure, err)
		s.report(err)
		return err
	}
	return nil
}

// PlayTTS speaks arbitrary text with the session's language voice.
func (s *Session) PlayTTS(text string) {
	if text == "" {
		return
	}
	s.speaker.Speak(text)
}

// levelLoop publishes mic levels while the session stays connected. It stops
// scheduling itself as soon as the session leaves Connected.
func (s *Session) levelLoop(done chan struct{}) {
	ticker := time.NewTicker(s.opts.LevelInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			s.mu.Lock()
			if s.status != StatusConnected {
				s.mu.Unlock()
				return
			}
			if s.muted {
				s.micLevels = nil
				s.mu.Unlock()
				continue
			}
			s.mu.Unlock()

			levels := s.capture.Levels()

			s.mu.Lock()
			if s.status == StatusConnected && !s.muted {
				s.micLevels = levels
			}
			s.mu.Unlock()
		}
	}
}

// Messages returns a read-only copy of the transcript.
func (s *Session) Messages() []ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log.snapshot()
}

// Status returns the current connection state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// IsMuted reports the mute flag.
func (s *Session) IsMuted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

// MicLevels returns the last published normalized magnitude samples. Empty
// whenever capture is inactive or muted.
func (s *Session) MicLevels() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]float64, len(s.micLevels))
	copy(out, s.micLevels)
	return out
}

func (s *Session) report(err error) {
	if err == nil {
		return
	}
	if s.opts.OnError != nil {
		s.opts.OnError(err)
	}
}
