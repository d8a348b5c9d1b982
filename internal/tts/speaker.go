// Package tts plays assistant replies aloud through a speech-synthesis
// backend, selecting a voice that matches the session language.
package tts

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"
)

// Voice is one entry in a synthesizer's catalogue. An empty Lang marks a
// multilingual voice that matches any language.
type Voice struct {
	ID     string
	Name   string
	Lang   string
	Engine string
}

// Synthesizer is the platform speech-synthesis capability.
type Synthesizer interface {
	// Voices lists the available catalogue. It may legitimately be empty until
	// the backend has loaded it.
	Voices(ctx context.Context) ([]Voice, error)
	// Speak synthesizes and plays text with the given voice, blocking until
	// playback completes or ctx is cancelled.
	Speak(ctx context.Context, text string, v Voice) error
}

// Speaker serializes utterances for one session through a single playback
// queue and exposes CancelAll for teardown. If the voice catalogue has not
// loaded yet, the first utterance is deferred and spoken exactly once when
// the catalogue becomes available.
type Speaker struct {
	synth        Synthesizer
	language     string
	preferEngine string
	preferred    string // explicit voice id from the connect config, optional

	mu       sync.Mutex
	voices   []Voice
	pending  []string // utterances waiting for the catalogue, in speak order
	waiting  bool
	current  context.CancelFunc
	queue    chan utterance
	loopOnce sync.Once
	closed   bool
}

type utterance struct {
	text  string
	voice Voice
}

// NewSpeaker builds a speaker for one session.
func NewSpeaker(synth Synthesizer, language, preferEngine, preferredVoice string) *Speaker {
	return &Speaker{
		synth:        synth,
		language:     language,
		preferEngine: preferEngine,
		preferred:    preferredVoice,
		queue:        make(chan utterance, 16),
	}
}

// Speak queues text for playback. Fire and forget; playback errors are logged,
// not surfaced, since a failed utterance never invalidates the session.
func (s *Speaker) Speak(text string) {
	if text == "" {
		return
	}
	s.loopOnce.Do(func() { go s.playLoop() })

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if len(s.voices) == 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		vs, err := s.synth.Voices(ctx)
		cancel()
		if err == nil && len(vs) > 0 {
			s.voices = vs
		}
	}
	if len(s.voices) == 0 {
		// Catalogue not loaded yet: hold the utterance and watch for it once.
		s.pending = append(s.pending, text)
		if !s.waiting {
			s.waiting = true
			go s.awaitVoices()
		}
		s.mu.Unlock()
		return
	}
	v := selectVoice(s.voices, s.language, s.preferEngine, s.preferred)
	s.mu.Unlock()
	s.enqueue(utterance{text: text, voice: v})
}

// awaitVoices polls the backend until the catalogue appears, then speaks the
// pending utterances in the order they arrived.
func (s *Speaker) awaitVoices() {
	for {
		time.Sleep(200 * time.Millisecond)
		s.mu.Lock()
		if s.closed || len(s.pending) == 0 {
			s.waiting = false
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		vs, err := s.synth.Voices(ctx)
		cancel()
		if err != nil || len(vs) == 0 {
			continue
		}

		s.mu.Lock()
		s.voices = vs
		texts := s.pending
		s.pending = nil
		s.waiting = false
		v := selectVoice(vs, s.language, s.preferEngine, s.preferred)
		s.mu.Unlock()
		for _, text := range texts {
			s.enqueue(utterance{text: text, voice: v})
		}
		return
	}
}

func (s *Speaker) enqueue(u utterance) {
	select {
	case s.queue <- u:
	default:
		log.Printf("tts: queue full, dropping utterance")
	}
}

func (s *Speaker) playLoop() {
	for u := range s.queue {
		ctx, cancel := context.WithCancel(context.Background())
		s.mu.Lock()
		s.current = cancel
		s.mu.Unlock()

		if err := s.synth.Speak(ctx, u.text, u.voice); err != nil && ctx.Err() == nil {
			log.Printf("tts: speak failed: %v", err)
		}

		s.mu.Lock()
		s.current = nil
		s.mu.Unlock()
		cancel()
	}
}

// CancelAll drops every queued utterance, any pending deferred ones, and
// interrupts the one currently playing. Used by disconnect and reset.
func (s *Speaker) CancelAll() {
	s.mu.Lock()
	s.pending = nil
	cancel := s.current
	s.mu.Unlock()
	for {
		select {
		case <-s.queue:
		default:
			if cancel != nil {
				cancel()
			}
			return
		}
	}
}

// Close stops the playback loop. The speaker cannot be reused afterwards.
func (s *Speaker) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	s.CancelAll()
	close(s.queue)
}

// selectVoice picks a voice for the language: an explicit id wins, then a
// case-insensitive prefix match on the language tag with a preferred engine
// breaking ties, then the first match, then the first voice at all. A voice
// with an empty Lang matches any language.
func selectVoice(voices []Voice, language, preferEngine, preferredID string) Voice {
	if preferredID != "" {
		for _, v := range voices {
			if v.ID == preferredID {
				return v
			}
		}
	}
	lang := strings.ToLower(language)
	var matching []Voice
	for _, v := range voices {
		if v.Lang == "" || strings.HasPrefix(strings.ToLower(v.Lang), lang) {
			matching = append(matching, v)
		}
	}
	if preferEngine != "" {
		for _, v := range matching {
			if strings.Contains(v.Engine, preferEngine) {
				return v
			}
		}
	}
	if len(matching) > 0 {
		return matching[0]
	}
	return voices[0]
}
