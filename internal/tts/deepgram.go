package tts

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	msginterfaces "github.com/deepgram/deepgram-go-sdk/pkg/api/speak/v1/websocket/interfaces"
	clientinterfaces "github.com/deepgram/deepgram-go-sdk/pkg/client/interfaces/v1"
	"github.com/deepgram/deepgram-go-sdk/pkg/client/speak"
)

// auraCatalogue is the Deepgram Aura voice set offered to the language
// matcher. Aura model ids carry the language tag as a suffix.
var auraCatalogue = []Voice{
	{ID: "aura-2-thalia-en", Name: "Thalia", Lang: "en", Engine: "aura-2"},
	{ID: "aura-2-andromeda-en", Name: "Andromeda", Lang: "en", Engine: "aura-2"},
	{ID: "aura-2-orion-en", Name: "Orion", Lang: "en", Engine: "aura-2"},
	{ID: "aura-asteria-en", Name: "Asteria", Lang: "en", Engine: "aura"},
	{ID: "aura-2-celeste-es", Name: "Celeste", Lang: "es", Engine: "aura-2"},
	{ID: "aura-2-estrella-es", Name: "Estrella", Lang: "es", Engine: "aura-2"},
	{ID: "aura-2-diana-fr", Name: "Diana", Lang: "fr", Engine: "aura-2"},
}

// DeepgramSynth streams Aura TTS audio over websocket into a PCM sink.
type DeepgramSynth struct {
	apiKey     string
	sink       Sink
	sampleRate int
	encoding   string
}

// NewDeepgramSynth constructs the Deepgram backend. The sink must accept
// 48kHz s16le PCM.
func NewDeepgramSynth(apiKey string, sink Sink) *DeepgramSynth {
	return &DeepgramSynth{apiKey: apiKey, sink: sink, sampleRate: 48000, encoding: "linear16"}
}

// Voices returns the Aura catalogue. It is static, so the speaker's deferred
// path only triggers for backends with remote catalogues.
func (d *DeepgramSynth) Voices(_ context.Context) ([]Voice, error) {
	if d.apiKey == "" {
		return nil, fmt.Errorf("deepgram: API key missing")
	}
	out := make([]Voice, len(auraCatalogue))
	copy(out, auraCatalogue)
	return out, nil
}

// Speak synthesizes text with the given Aura voice and plays it through the
// sink. It returns once the stream has drained or ctx is cancelled.
func (d *DeepgramSynth) Speak(ctx context.Context, text string, v Voice) error {
	if d.apiKey == "" {
		return fmt.Errorf("deepgram: API key missing")
	}
	if text == "" {
		return nil
	}

	options := &clientinterfaces.WSSpeakOptions{
		Model:      v.ID,
		Encoding:   d.encoding,
		SampleRate: d.sampleRate,
	}

	var lastRecvUnix int64
	var seenAudio int32

	cb := &speakCallback{onBinary: func(data []byte) error {
		if len(data) == 0 {
			return nil
		}
		atomic.StoreInt64(&lastRecvUnix, time.Now().UnixNano())
		atomic.StoreInt32(&seenAudio, 1)
		b := make([]byte, len(data))
		copy(b, data)
		d.sink.WritePCM(b)
		return nil
	}}

	dg, err := speak.NewWSUsingCallback(ctx, d.apiKey, &clientinterfaces.ClientOptions{}, options, cb)
	if err != nil {
		return fmt.Errorf("deepgram: create ws client: %w", err)
	}

	stopped := false
	stopClient := func() {
		if !stopped {
			stopped = true
			dg.Stop()
		}
	}
	defer stopClient()

	if ok := dg.Connect(); !ok {
		return fmt.Errorf("deepgram: connect failed")
	}

	if err := dg.SpeakWithText(text); err != nil {
		return fmt.Errorf("deepgram: speak text: %w", err)
	}
	if err := dg.Flush(); err != nil {
		log.Printf("deepgram: flush error: %v", err)
	}

	// The websocket has no explicit end-of-stream signal; finish once audio
	// has been idle for a window, bounded by a hard deadline.
	idleWindow := 400 * time.Millisecond
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.Now().Add(12 * time.Second)
	for {
		select {
		case <-ctx.Done():
			d.sink.Reset()
			return ctx.Err()
		case <-ticker.C:
			if atomic.LoadInt32(&seenAudio) == 1 {
				last := time.Unix(0, atomic.LoadInt64(&lastRecvUnix))
				if !last.IsZero() && time.Since(last) > idleWindow {
					return nil
				}
			}
			if time.Now().After(deadline) {
				return nil
			}
		}
	}
}

type speakCallback struct{ onBinary func([]byte) error }

func (s *speakCallback) Open(*msginterfaces.OpenResponse) error         { return nil }
func (s *speakCallback) Metadata(*msginterfaces.MetadataResponse) error { return nil }
func (s *speakCallback) Flush(*msginterfaces.FlushedResponse) error     { return nil }
func (s *speakCallback) Clear(*msginterfaces.ClearedResponse) error     { return nil }
func (s *speakCallback) Close(*msginterfaces.CloseResponse) error       { return nil }
func (s *speakCallback) Warning(*msginterfaces.WarningResponse) error   { return nil }
func (s *speakCallback) Error(*msginterfaces.ErrorResponse) error       { return nil }
func (s *speakCallback) UnhandledEvent([]byte) error                    { return nil }
func (s *speakCallback) Binary(byMsg []byte) error {
	if s.onBinary != nil {
		return s.onBinary(byMsg)
	}
	return nil
}
