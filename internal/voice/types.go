package voice

import "context"

// Capture owns the microphone stream for one session. Implementations must make
// Close idempotent and safe to call on a capture that never started.
type Capture interface {
	// Start acquires the input stream. It may fail with a permission or device
	// error, which ends the connection attempt.
	Start(ctx context.Context) error
	// BeginChunk starts recording a new audio chunk.
	BeginChunk() error
	// EndChunk stops recording and returns the captured audio, encoded in a
	// container the gateway accepts.
	EndChunk() ([]byte, error)
	// Levels returns a snapshot of normalized 0..1 frequency magnitudes.
	Levels() []float64
	Close() error
}

// Gateway is the remote transcription + chat-completion service. Text is the
// recognized user speech and reply is the generated response; either may be
// empty.
type Gateway interface {
	// Prime forwards a silent system prompt without creating a visible message.
	Prime(ctx context.Context, language, prompt string) error
	Process(ctx context.Context, audio []byte, language, prompt string) (text, reply string, err error)
}

// Speaker plays assistant replies aloud. Speak is fire-and-forget; utterances
// are serialized by the speaker's own queue.
type Speaker interface {
	Speak(text string)
	CancelAll()
}
