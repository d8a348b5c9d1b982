package tts

import (
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"
)

// Sink consumes s16le PCM bytes and performs delivery to the audio device.
// Reset drops any queued audio immediately (used when speech is cancelled).
type Sink interface {
	WritePCM(pcm []byte)
	Reset()
}

// FFplaySink plays PCM through an ffplay child process reading stdin. The
// process is spawned lazily on first write and respawned after Reset.
type FFplaySink struct {
	command    string
	sampleRate int

	mu    sync.Mutex
	stdin io.WriteCloser
	cmd   *exec.Cmd
}

// NewFFplaySink builds a sink for the given sample rate.
func NewFFplaySink(command string, sampleRate int) *FFplaySink {
	if command == "" {
		command = "ffplay"
	}
	return &FFplaySink{command: command, sampleRate: sampleRate}
}

func (s *FFplaySink) spawnLocked() error {
	cmd := exec.Command(s.command,
		"-hide_banner", "-loglevel", "error",
		"-f", "s16le",
		"-ar", strconv.Itoa(s.sampleRate),
		"-ch_layout", "mono",
		"-nodisp", "-autoexit",
		"-",
	)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create ffplay stdin pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffplay: %w", err)
	}
	s.cmd = cmd
	s.stdin = stdin
	go func() { _ = cmd.Wait() }()
	return nil
}

// WritePCM delivers a chunk to the player. Delivery is best effort; a dead
// player is dropped and respawned on the next utterance.
func (s *FFplaySink) WritePCM(pcm []byte) {
	if len(pcm) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stdin == nil {
		if err := s.spawnLocked(); err != nil {
			return
		}
	}
	if _, err := s.stdin.Write(pcm); err != nil {
		_ = s.stdin.Close()
		s.stdin = nil
		s.cmd = nil
	}
}

// Reset kills the player so queued audio stops immediately.
func (s *FFplaySink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stdin != nil {
		_ = s.stdin.Close()
		s.stdin = nil
	}
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
		s.cmd = nil
	}
}
