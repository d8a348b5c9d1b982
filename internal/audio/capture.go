package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hosseinshamlooo/lexi-ai/internal/voice"
)

// Config describes the microphone capture format.
type Config struct {
	SampleRate  int    // default 16000
	Channels    int    // default 1 (mono, what the transcriber expects)
	InputFormat string // ffmpeg -f, e.g. "pulse", "alsa", "avfoundation"
	InputDevice string // default "default"
	Command     string // ffmpeg binary, default "ffmpeg"
}

// FFmpegCapture implements the session's Capture by reading s16le PCM from an
// ffmpeg child process attached to the default input device.
type FFmpegCapture struct {
	cfg      Config
	analyser *Analyser

	mu      sync.Mutex
	process *os.Process
	stdout  io.ReadCloser
	stderr  *bytes.Buffer
	waitErr <-chan error
	started bool
	chunk   *bytes.Buffer // nil while not recording
	readErr error
}

// NewFFmpegCapture builds a capture with defaults filled in.
func NewFFmpegCapture(cfg Config) *FFmpegCapture {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.InputFormat == "" {
		cfg.InputFormat = "pulse"
	}
	if cfg.InputDevice == "" {
		cfg.InputDevice = "default"
	}
	if cfg.Command == "" {
		cfg.Command = "ffmpeg"
	}
	return &FFmpegCapture{cfg: cfg, analyser: NewAnalyser(2048, 32)}
}

// Start launches ffmpeg and begins pumping PCM into the analyser. Failure to
// open the device ends the connection attempt.
func (c *FFmpegCapture) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return nil
	}

	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", c.cfg.InputFormat,
		"-i", c.cfg.InputDevice,
		"-ac", strconv.Itoa(c.cfg.Channels),
		"-ar", strconv.Itoa(c.cfg.SampleRate),
		"-f", "s16le",
		"-",
	}
	// The process must outlive ctx, which only bounds the connect attempt;
	// teardown happens in Close.
	cmd := exec.Command(c.cfg.Command, args...)
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return voice.Tag(voice.ErrDeviceUnavailable, fmt.Errorf("start ffmpeg: %w", err))
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	// Catch immediate exits (missing device, denied access) before reporting
	// the capture as live.
	select {
	case err := <-waitErr:
		return classifyStartFailure(err, stderr.String())
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-waitErr
		return voice.Tag(voice.ErrDeviceUnavailable, ctx.Err())
	case <-time.After(250 * time.Millisecond):
	}

	c.process = cmd.Process
	c.stdout = stdout
	c.stderr = stderr
	c.waitErr = waitErr
	c.started = true
	c.analyser.reset()
	go c.pump(stdout)
	return nil
}

func classifyStartFailure(err error, stderr string) error {
	msg := strings.ToLower(stderr)
	wrapped := fmt.Errorf("ffmpeg exited before capture started: %w: %s", err, strings.TrimSpace(stderr))
	if err == nil {
		wrapped = fmt.Errorf("ffmpeg exited before capture started: %s", strings.TrimSpace(stderr))
	}
	if strings.Contains(msg, "permission denied") || strings.Contains(msg, "access denied") {
		return voice.Tag(voice.ErrPermissionDenied, wrapped)
	}
	return voice.Tag(voice.ErrDeviceUnavailable, wrapped)
}

// pump reads 20ms frames, feeds the analyser, and appends to an open chunk.
func (c *FFmpegCapture) pump(r io.Reader) {
	frame := make([]byte, c.cfg.SampleRate*2/50)
	for {
		n, err := io.ReadFull(r, frame)
		if n > 0 {
			samples := make([]int16, n/2)
			for i := range samples {
				samples[i] = int16(binary.LittleEndian.Uint16(frame[2*i:]))
			}
			c.analyser.Write(samples)
			c.mu.Lock()
			if c.chunk != nil {
				c.chunk.Write(frame[:n])
			}
			c.mu.Unlock()
		}
		if err != nil {
			c.mu.Lock()
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
				c.readErr = err
			}
			c.mu.Unlock()
			return
		}
	}
}

// BeginChunk starts buffering PCM for the current recording cycle.
func (c *FFmpegCapture) BeginChunk() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return errors.New("capture not started")
	}
	if c.readErr != nil {
		return fmt.Errorf("capture stream failed: %w", c.readErr)
	}
	c.chunk = &bytes.Buffer{}
	return nil
}

// EndChunk stops buffering and returns the recorded audio as a WAV payload.
func (c *FFmpegCapture) EndChunk() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.chunk == nil {
		return nil, errors.New("no chunk in progress")
	}
	pcm := c.chunk.Bytes()
	c.chunk = nil
	return EncodeWAV(pcm, c.cfg.SampleRate), nil
}

// Levels returns the analyser's current magnitude snapshot.
func (c *FFmpegCapture) Levels() []float64 {
	return c.analyser.Levels()
}

// Close stops ffmpeg and releases the stream. Idempotent; safe to call on a
// capture that never started.
func (c *FFmpegCapture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return nil
	}
	c.started = false
	c.chunk = nil
	if c.process != nil {
		_ = c.process.Signal(os.Interrupt)
	}
	select {
	case <-c.waitErr:
	case <-time.After(1200 * time.Millisecond):
		if c.process != nil {
			_ = c.process.Kill()
		}
		<-c.waitErr
	}
	c.process = nil
	if c.stdout != nil {
		_ = c.stdout.Close()
		c.stdout = nil
	}
	c.analyser.reset()
	return nil
}
