package voice

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeCapture struct {
	mu       sync.Mutex
	started  bool
	closed   int
	begins   int
	ends     int
	startErr error
	beginErr error
	endErr   error
	data     []byte
	levels   []float64
}

func (f *fakeCapture) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.started = true
	return nil
}

func (f *fakeCapture) BeginChunk() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.beginErr != nil {
		return f.beginErr
	}
	f.begins++
	return nil
}

func (f *fakeCapture) EndChunk() ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.endErr != nil {
		return nil, f.endErr
	}
	f.ends++
	return f.data, nil
}

func (f *fakeCapture) Levels() []float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.levels
}

func (f *fakeCapture) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeCapture) beginCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.begins
}

type fakeGateway struct {
	mu       sync.Mutex
	primes   []string
	calls    int
	text     string
	reply    string
	err      error
	primeErr error
	release  chan struct{} // when non-nil, Process blocks until closed
}

func (f *fakeGateway) Prime(ctx context.Context, language, prompt string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.primeErr != nil {
		return f.primeErr
	}
	f.primes = append(f.primes, prompt)
	return nil
}

func (f *fakeGateway) Process(ctx context.Context, audio []byte, language, prompt string) (string, string, error) {
	f.mu.Lock()
	f.calls++
	release := f.release
	text, reply, err := f.text, f.reply, f.err
	f.mu.Unlock()
	if release != nil {
		<-release
	}
	return text, reply, err
}

func (f *fakeGateway) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeSpeaker struct {
	mu        sync.Mutex
	spoken    []string
	cancelled int
}

func (f *fakeSpeaker) Speak(text string) {
	f.mu.Lock()
	f.spoken = append(f.spoken, text)
	f.mu.Unlock()
}

func (f *fakeSpeaker) CancelAll() {
	f.mu.Lock()
	f.cancelled++
	f.mu.Unlock()
}

func (f *fakeSpeaker) spokenTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.spoken))
	copy(out, f.spoken)
	return out
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func connected(t *testing.T, cap *fakeCapture, gw *fakeGateway, spk *fakeSpeaker, opts Options) *Session {
	t.Helper()
	s := NewSession(cap, gw, spk, opts)
	err := s.Connect(context.Background(), ConnectConfig{Greeting: "Welcome!", Prompt: "be a waitress"})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	return s
}

func TestConnect_SpeaksGreetingAndPrimes(t *testing.T) {
	cap := &fakeCapture{}
	gw := &fakeGateway{}
	spk := &fakeSpeaker{}
	s := connected(t, cap, gw, spk, Options{Language: "en"})
	defer s.Disconnect()

	if s.Status() != StatusConnected {
		t.Fatalf("expected connected, got %s", s.Status())
	}
	if got := spk.spokenTexts(); len(got) != 1 || got[0] != "Welcome!" {
		t.Fatalf("expected greeting spoken, got %v", got)
	}
	if len(gw.primes) != 1 || gw.primes[0] != "be a waitress" {
		t.Fatalf("expected prompt primed, got %v", gw.primes)
	}
	msgs := s.Messages()
	if len(msgs) != 1 || msgs[0].Kind != KindAssistantMessage || msgs[0].Content != "Welcome!" {
		t.Fatalf("expected greeting in transcript, got %v", msgs)
	}
	if !s.IsMuted() {
		t.Fatalf("expected session to start muted")
	}
}

func TestConnect_CaptureFailure(t *testing.T) {
	cap := &fakeCapture{startErr: errors.New("device busy")}
	gw := &fakeGateway{}
	spk := &fakeSpeaker{}
	var reported error
	s := NewSession(cap, gw, spk, Options{OnError: func(err error) { reported = err }})

	err := s.Connect(context.Background(), ConnectConfig{Greeting: "hi"})
	if err == nil {
		t.Fatalf("expected connect error")
	}
	if KindOf(err) != ErrDeviceUnavailable {
		t.Fatalf("expected device unavailable, got %s", KindOf(err))
	}
	if s.Status() != StatusDisconnected {
		t.Fatalf("expected disconnected, got %s", s.Status())
	}
	if reported == nil {
		t.Fatalf("expected error reported through OnError")
	}
}

func TestConnect_RejectsWhenNotIdle(t *testing.T) {
	cap := &fakeCapture{}
	gw := &fakeGateway{}
	spk := &fakeSpeaker{}
	s := connected(t, cap, gw, spk, Options{})
	defer s.Disconnect()

	if err := s.Connect(context.Background(), ConnectConfig{}); err == nil {
		t.Fatalf("expected second connect to fail")
	}
}

func TestCycle_AppendsExchangeAndSpeaks(t *testing.T) {
	cap := &fakeCapture{data: []byte{1, 2}}
	gw := &fakeGateway{text: "hello there", reply: "hi, how are you?"}
	spk := &fakeSpeaker{}
	s := connected(t, cap, gw, spk, Options{Language: "en"})
	defer s.Disconnect()

	s.Unmute()
	msgs := s.Messages()
	last := msgs[len(msgs)-1]
	if last.Kind != KindTypingIndicator || last.Role != RoleUser {
		t.Fatalf("expected trailing user typing indicator, got %+v", last)
	}

	s.Mute()
	waitFor(t, "exchange", func() bool { return len(s.Messages()) == 3 })

	msgs = s.Messages()
	if msgs[1].Kind != KindUserMessage || msgs[1].Content != "hello there" {
		t.Fatalf("expected user message, got %+v", msgs[1])
	}
	if msgs[2].Kind != KindAssistantMessage || msgs[2].Content != "hi, how are you?" {
		t.Fatalf("expected assistant message, got %+v", msgs[2])
	}
	for _, m := range msgs {
		if m.Kind == KindTypingIndicator {
			t.Fatalf("indicator left in transcript: %+v", m)
		}
	}
	waitFor(t, "reply spoken", func() bool {
		got := spk.spokenTexts()
		return len(got) == 2 && got[1] == "hi, how are you?"
	})
}

func TestUnmute_WhileCycleOutstanding_IsNoOp(t *testing.T) {
	cap := &fakeCapture{data: []byte{1}}
	gw := &fakeGateway{text: "x", reply: "y", release: make(chan struct{})}
	spk := &fakeSpeaker{}
	s := connected(t, cap, gw, spk, Options{})
	defer s.Disconnect()

	s.Unmute()
	s.Mute()
	waitFor(t, "gateway call", func() bool { return gw.callCount() == 1 })

	// The response is still in flight; a new unmute must not open a chunk.
	s.Unmute()
	if n := cap.beginCount(); n != 1 {
		t.Fatalf("expected 1 chunk begin, got %d", n)
	}
	close(gw.release)
}

func TestEmptyTranscription_LeavesTranscriptUntouched(t *testing.T) {
	cap := &fakeCapture{}
	gw := &fakeGateway{text: "", reply: ""}
	spk := &fakeSpeaker{}
	s := connected(t, cap, gw, spk, Options{})
	defer s.Disconnect()

	s.Unmute()
	s.Mute()
	waitFor(t, "indicator removed", func() bool {
		msgs := s.Messages()
		return len(msgs) == 1 && msgs[0].Kind == KindAssistantMessage
	})
	if got := spk.spokenTexts(); len(got) != 1 {
		t.Fatalf("expected no extra speech, got %v", got)
	}
}

func TestReplyWithoutTranscription_AppendsAssistantOnly(t *testing.T) {
	cap := &fakeCapture{}
	gw := &fakeGateway{text: "", reply: "could you repeat that?"}
	spk := &fakeSpeaker{}
	s := connected(t, cap, gw, spk, Options{})
	defer s.Disconnect()

	s.Unmute()
	s.Mute()
	waitFor(t, "assistant message", func() bool {
		msgs := s.Messages()
		return len(msgs) == 2 && msgs[1].Kind == KindAssistantMessage
	})

	msgs := s.Messages()
	if msgs[1].Kind != KindAssistantMessage || msgs[1].Content != "could you repeat that?" {
		t.Fatalf("expected assistant-only exchange, got %+v", msgs[1])
	}
	for _, m := range msgs {
		if m.Role == RoleUser {
			t.Fatalf("no user message expected, got %+v", m)
		}
	}
}

func TestTranscriptionWithoutReply_AppendsUserOnly(t *testing.T) {
	cap := &fakeCapture{}
	gw := &fakeGateway{text: "um, hello?", reply: ""}
	spk := &fakeSpeaker{}
	s := connected(t, cap, gw, spk, Options{})
	defer s.Disconnect()

	s.Unmute()
	s.Mute()
	waitFor(t, "user message", func() bool {
		msgs := s.Messages()
		return len(msgs) == 2 && msgs[1].Kind == KindUserMessage
	})

	msgs := s.Messages()
	if msgs[1].Kind != KindUserMessage || msgs[1].Content != "um, hello?" {
		t.Fatalf("expected user-only exchange, got %+v", msgs[1])
	}
	if got := spk.spokenTexts(); len(got) != 1 {
		t.Fatalf("nothing new to speak, got %v", got)
	}
}

func TestGatewayFailure_RollsBackIndicators(t *testing.T) {
	cap := &fakeCapture{data: []byte{1}}
	gw := &fakeGateway{err: errors.New("upstream 500")}
	spk := &fakeSpeaker{}
	errs := make(chan error, 4)
	s := connected(t, cap, gw, spk, Options{OnError: func(err error) { errs <- err }})
	defer s.Disconnect()

	s.Unmute()
	s.Mute()

	select {
	case err := <-errs:
		if KindOf(err) != ErrTransportFailure {
			t.Fatalf("expected transport failure, got %s", KindOf(err))
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for error")
	}
	waitFor(t, "rollback", func() bool { return len(s.Messages()) == 1 })

	// The cycle is no longer outstanding, so the next unmute records again.
	s.Unmute()
	waitFor(t, "second chunk", func() bool { return cap.beginCount() == 2 })
}

func TestDisconnect_DiscardsInFlightResponse(t *testing.T) {
	cap := &fakeCapture{data: []byte{1}}
	gw := &fakeGateway{text: "late", reply: "too late", release: make(chan struct{})}
	spk := &fakeSpeaker{}
	s := connected(t, cap, gw, spk, Options{})

	s.Unmute()
	s.Mute()
	waitFor(t, "gateway call", func() bool { return gw.callCount() == 1 })

	s.Disconnect()
	close(gw.release)

	// Give the orphaned response a chance to land, then check it did not.
	time.Sleep(50 * time.Millisecond)
	for _, m := range s.Messages() {
		if m.Content == "late" || m.Content == "too late" {
			t.Fatalf("stale response applied after disconnect: %+v", m)
		}
	}
	if s.Status() != StatusDisconnected {
		t.Fatalf("expected disconnected, got %s", s.Status())
	}
	if cap.closed == 0 {
		t.Fatalf("expected capture closed")
	}
	if spk.cancelled == 0 {
		t.Fatalf("expected pending speech cancelled")
	}
}

func TestDisconnect_Idempotent(t *testing.T) {
	cap := &fakeCapture{}
	gw := &fakeGateway{}
	spk := &fakeSpeaker{}
	s := connected(t, cap, gw, spk, Options{})

	s.Disconnect()
	s.Disconnect()
	if cap.closed != 1 {
		t.Fatalf("expected close once, got %d", cap.closed)
	}
}

func TestReset_ReturnsToIdleAndReconnects(t *testing.T) {
	cap := &fakeCapture{}
	gw := &fakeGateway{text: "a", reply: "b"}
	spk := &fakeSpeaker{}
	s := connected(t, cap, gw, spk, Options{})

	s.Unmute()
	s.Mute()
	waitFor(t, "exchange", func() bool { return len(s.Messages()) == 3 })

	s.Reset()
	if s.Status() != StatusIdle {
		t.Fatalf("expected idle after reset, got %s", s.Status())
	}
	if len(s.Messages()) != 0 {
		t.Fatalf("expected empty transcript, got %v", s.Messages())
	}
	if !s.IsMuted() {
		t.Fatalf("expected muted after reset")
	}

	if err := s.Connect(context.Background(), ConnectConfig{Greeting: "again"}); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	defer s.Disconnect()
	if s.Status() != StatusConnected {
		t.Fatalf("expected connected after reconnect, got %s", s.Status())
	}
}

func TestFixedChunkPolicy_RestartsWhileUnmuted(t *testing.T) {
	cap := &fakeCapture{data: []byte{1}}
	gw := &fakeGateway{text: "chunk", reply: "ok"}
	spk := &fakeSpeaker{}
	s := connected(t, cap, gw, spk, Options{Chunk: ChunkPolicy{MaxChunk: 20 * time.Millisecond}})
	defer s.Disconnect()

	s.Unmute()
	waitFor(t, "second cycle", func() bool { return cap.beginCount() >= 2 })
	if s.IsMuted() {
		t.Fatalf("expected session still unmuted")
	}
	s.Mute()
}

func TestUnmute_InterruptsSpeech(t *testing.T) {
	cap := &fakeCapture{}
	gw := &fakeGateway{}
	spk := &fakeSpeaker{}
	s := connected(t, cap, gw, spk, Options{InterruptOnUnmute: true})
	defer s.Disconnect()

	s.Unmute()
	if spk.cancelled != 1 {
		t.Fatalf("expected speech cancelled on unmute, got %d", spk.cancelled)
	}
}

func TestMute_WithoutRecording_IsNoOp(t *testing.T) {
	cap := &fakeCapture{}
	gw := &fakeGateway{}
	spk := &fakeSpeaker{}
	s := connected(t, cap, gw, spk, Options{})
	defer s.Disconnect()

	s.Mute()
	if gw.callCount() != 0 {
		t.Fatalf("expected no gateway call, got %d", gw.callCount())
	}
}

func TestReset_TwiceInARow(t *testing.T) {
	cap := &fakeCapture{}
	gw := &fakeGateway{}
	spk := &fakeSpeaker{}
	s := connected(t, cap, gw, spk, Options{})

	s.Reset()
	s.Reset()
	if s.Status() != StatusIdle {
		t.Fatalf("expected idle after double reset, got %s", s.Status())
	}
	if cap.closed != 1 {
		t.Fatalf("expected capture closed once, got %d", cap.closed)
	}
	if err := s.Connect(context.Background(), ConnectConfig{Greeting: "hi"}); err != nil {
		t.Fatalf("reconnect after double reset: %v", err)
	}
	defer s.Disconnect()
}

func TestSendPromptToLLM_SwapsActivePrompt(t *testing.T) {
	cap := &fakeCapture{data: []byte{1}}
	gw := &fakeGateway{text: "hi", reply: "hello"}
	spk := &fakeSpeaker{}
	s := connected(t, cap, gw, spk, Options{})
	defer s.Disconnect()

	if err := s.SendPromptToLLM(context.Background(), "now be a barista"); err != nil {
		t.Fatalf("send prompt: %v", err)
	}
	if len(gw.primes) != 2 || gw.primes[1] != "now be a barista" {
		t.Fatalf("expected new prompt primed, got %v", gw.primes)
	}
	// No visible message is created.
	if msgs := s.Messages(); len(msgs) != 1 {
		t.Fatalf("prompt change must stay silent, got %v", msgs)
	}
}

func TestSendPromptToLLM_Failure(t *testing.T) {
	cap := &fakeCapture{}
	gw := &fakeGateway{primeErr: errors.New("upstream down")}
	spk := &fakeSpeaker{}
	var reported error
	s := NewSession(cap, gw, spk, Options{OnError: func(err error) { reported = err }})

	err := s.SendPromptToLLM(context.Background(), "prompt")
	if err == nil {
		t.Fatalf("expected error")
	}
	if KindOf(err) != ErrTransportFailure {
		t.Fatalf("expected transport failure, got %s", KindOf(err))
	}
	if reported == nil || KindOf(reported) != ErrTransportFailure {
		t.Fatalf("expected failure reported through OnError, got %v", reported)
	}
}

func TestPlayTTS(t *testing.T) {
	cap := &fakeCapture{}
	gw := &fakeGateway{}
	spk := &fakeSpeaker{}
	s := connected(t, cap, gw, spk, Options{})
	defer s.Disconnect()

	s.PlayTTS("écoutez bien")
	got := spk.spokenTexts()
	if len(got) != 2 || got[1] != "écoutez bien" {
		t.Fatalf("expected text spoken, got %v", got)
	}
	// Nothing lands in the transcript and empty text is ignored.
	s.PlayTTS("")
	if msgs := s.Messages(); len(msgs) != 1 {
		t.Fatalf("playback must not touch the transcript, got %v", msgs)
	}
	if got := spk.spokenTexts(); len(got) != 2 {
		t.Fatalf("empty text must not be spoken, got %v", got)
	}
}

func TestUnmute_BeforeConnect_IsIgnored(t *testing.T) {
	cap := &fakeCapture{}
	gw := &fakeGateway{}
	spk := &fakeSpeaker{}
	s := NewSession(cap, gw, spk, Options{})

	s.Unmute()
	if !s.IsMuted() {
		t.Fatalf("unmute before connect must not stick")
	}
	if err := s.Connect(context.Background(), ConnectConfig{Greeting: "hi"}); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer s.Disconnect()
	if !s.IsMuted() {
		t.Fatalf("expected session still muted after connect")
	}
	if n := cap.beginCount(); n != 0 {
		t.Fatalf("expected no recording cycle, got %d", n)
	}
}

func TestSendMessage_AppendsUserMessage(t *testing.T) {
	cap := &fakeCapture{}
	gw := &fakeGateway{}
	spk := &fakeSpeaker{}
	notified := 0
	s := connected(t, cap, gw, spk, Options{OnMessage: func() { notified++ }})
	defer s.Disconnect()

	s.SendMessage("typed instead")
	msgs := s.Messages()
	last := msgs[len(msgs)-1]
	if last.Kind != KindUserMessage || last.Content != "typed instead" {
		t.Fatalf("expected user message, got %+v", last)
	}
	if notified == 0 {
		t.Fatalf("expected OnMessage callback")
	}
}

func TestMicLevels_PublishedOnlyWhileUnmuted(t *testing.T) {
	cap := &fakeCapture{levels: []float64{0.1, 0.5, 0.9}}
	gw := &fakeGateway{release: make(chan struct{})}
	spk := &fakeSpeaker{}
	s := connected(t, cap, gw, spk, Options{LevelInterval: 5 * time.Millisecond})
	defer s.Disconnect()
	defer close(gw.release)

	if got := s.MicLevels(); len(got) != 0 {
		t.Fatalf("expected no levels while muted, got %v", got)
	}

	s.Unmute()
	waitFor(t, "levels", func() bool { return len(s.MicLevels()) == 3 })

	s.Mute()
	waitFor(t, "levels cleared", func() bool { return len(s.MicLevels()) == 0 })
}
