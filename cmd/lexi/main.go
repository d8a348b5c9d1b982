// Command lexi is a terminal client for practicing a conversation out loud:
// it records the microphone while unmuted, sends each chunk through the
// transcription gateway, and speaks the tutor's replies.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/hosseinshamlooo/lexi-ai/internal/audio"
	"github.com/hosseinshamlooo/lexi-ai/internal/config"
	"github.com/hosseinshamlooo/lexi-ai/internal/gateway"
	"github.com/hosseinshamlooo/lexi-ai/internal/situation"
	"github.com/hosseinshamlooo/lexi-ai/internal/tts"
	"github.com/hosseinshamlooo/lexi-ai/internal/voice"
)


func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	cfg := config.Load()

	sit := situation.Default()
	if len(os.Args) > 1 {
		s, ok := situation.ByID(os.Args[1])
		if !ok {
			fmt.Fprintf(os.Stderr, "unknown situation %q, available:\n", os.Args[1])
			for _, s := range situation.All() {
				fmt.Fprintf(os.Stderr, "  %s - %s\n", s.ID, s.Description)
			}
			os.Exit(1)
		}
		sit = s
	}

	capture := audio.NewFFmpegCapture(audio.Config{})
	gw := gateway.NewOpenAI(cfg.OpenAIKey, cfg.ChatModelID, cfg.TranscribeModel)

	var synth tts.Synthesizer
	preferredVoice := ""
	if cfg.DeepgramKey != "" {
		// Aura streams 48kHz s16le; the OpenAI speech endpoint streams 24kHz.
		sink := tts.NewFFplaySink("ffplay", 48000)
		synth = tts.NewDeepgramSynth(cfg.DeepgramKey, sink)
		preferredVoice = cfg.DeepgramTTSModel
	} else {
		sink := tts.NewFFplaySink("ffplay", 24000)
		synth = tts.NewOpenAISynth(cfg.OpenAIKey, cfg.SpeechModelID, sink)
	}
	speaker := tts.NewSpeaker(synth, cfg.Language, "", preferredVoice)
	defer speaker.Close()

	session := voice.NewSession(capture, gw, speaker, voice.Options{
		Language:          cfg.Language,
		InterruptOnUnmute: true,
		OnError: func(err error) {
			log.Printf("session error (%s): %v", voice.KindOf(err), err)
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err := session.Connect(ctx, voice.ConnectConfig{
		Greeting: sit.Greeting,
		Prompt:   sit.Prompt,
	})
	cancel()
	if err != nil {
		log.Fatalf("connect failed (%s): %v", voice.KindOf(err), err)
	}
	defer session.Disconnect()

	fmt.Printf("Connected. Scenario: %s (%s)\n", sit.Description, sit.Role)
	fmt.Println("Commands: unmute, mute, say <text>, transcript, reset, quit")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		cmd, rest, _ := strings.Cut(line, " ")
		switch cmd {
		case "unmute":
			session.Unmute()
			fmt.Println("recording...")
		case "mute":
			session.Mute()
		case "say":
			if rest != "" {
				session.SendMessage(rest)
			}
		case "transcript":
			for _, m := range session.Messages() {
				fmt.Printf("[%s] %s: %s\n", m.ReceivedAt.Format("15:04:05"), m.Role, m.Content)
			}
		case "reset":
			session.Reset()
			fmt.Println("session reset")
		case "quit", "exit":
			return
		case "":
		default:
			fmt.Printf("unknown command %q\n", cmd)
		}
	}
}
