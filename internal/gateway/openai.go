// Package gateway is the request/response boundary to the remote
// transcription + chat-completion service.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/hosseinshamlooo/lexi-ai/internal/voice"
)

const defaultSystemPrompt = "You are Lexi, a friendly conversation partner helping the user practice speaking a new language. Answer clearly and briefly."

// OpenAI transcribes recorded audio with Whisper and generates replies with a
// chat model. One instance holds one conversation's history; create a new
// instance per session rather than sharing one across users.
type OpenAI struct {
	client          oai.Client
	chatModel       string
	transcribeModel string

	mu      sync.Mutex
	system  string
	history []oai.ChatCompletionMessageParamUnion
}

// Option configures the OpenAI gateway.
type Option func(*clientConfig)

type clientConfig struct {
	baseURL string
}

// WithBaseURL overrides the API base URL (used in tests).
func WithBaseURL(url string) Option {
	return func(c *clientConfig) { c.baseURL = url }
}

// NewOpenAI constructs a gateway for one conversation.
func NewOpenAI(apiKey, chatModel, transcribeModel string, opts ...Option) *OpenAI {
	cfg := &clientConfig{}
	for _, o := range opts {
		o(cfg)
	}
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if chatModel == "" {
		chatModel = "gpt-4o-mini"
	}
	if transcribeModel == "" {
		transcribeModel = "whisper-1"
	}
	return &OpenAI{
		client:          oai.NewClient(reqOpts...),
		chatModel:       chatModel,
		transcribeModel: transcribeModel,
	}
}

// Prime installs the silent situation prompt as the conversation's system
// message. It is applied on the next completion; no visible message is created.
func (g *OpenAI) Prime(_ context.Context, language, prompt string) error {
	g.mu.Lock()
	g.system = prompt
	_ = language
	g.mu.Unlock()
	return nil
}

// Process transcribes audio and, when speech was recognized, generates a
// reply in the conversation's context. Either returned string may be empty.
func (g *OpenAI) Process(ctx context.Context, audio []byte, language, prompt string) (string, string, error) {
	if len(audio) == 0 {
		return "", "", nil
	}

	params := oai.AudioTranscriptionNewParams{
		Model: oai.AudioModel(g.transcribeModel),
		File:  oai.File(bytes.NewReader(audio), "recording.wav", "audio/wav"),
	}
	if language != "" {
		params.Language = oai.String(language)
	}
	tr, err := g.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", "", classify(fmt.Errorf("transcription: %w", err))
	}
	text := strings.TrimSpace(tr.Text)
	if text == "" {
		return "", "", nil
	}

	reply, err := g.reply(ctx, prompt, text)
	if err != nil {
		return "", "", err
	}
	return text, reply, nil
}

// reply runs one completion turn and records the exchange in the history.
func (g *OpenAI) reply(ctx context.Context, prompt, userText string) (string, error) {
	g.mu.Lock()
	system := g.system
	if prompt != "" {
		system = prompt
	}
	if system == "" {
		system = defaultSystemPrompt
	}
	messages := make([]oai.ChatCompletionMessageParamUnion, 0, len(g.history)+2)
	messages = append(messages, oai.SystemMessage(system))
	messages = append(messages, g.history...)
	messages = append(messages, oai.UserMessage(userText))
	g.mu.Unlock()

	resp, err := g.client.Chat.Completions.New(ctx, oai.ChatCompletionNewParams{
		Model:    shared.ChatModel(g.chatModel),
		Messages: messages,
	})
	if err != nil {
		return "", classify(fmt.Errorf("chat completion: %w", err))
	}
	if len(resp.Choices) == 0 {
		return "", voice.Tag(voice.ErrMalformedResponse, errors.New("chat completion: empty choices"))
	}
	reply := strings.TrimSpace(resp.Choices[0].Message.Content)

	g.mu.Lock()
	g.history = append(g.history, oai.UserMessage(userText))
	if reply != "" {
		g.history = append(g.history, oai.AssistantMessage(reply))
	}
	g.mu.Unlock()
	return reply, nil
}

// Complete runs a single stateless completion, used by the post-call analysis
// flows. It does not touch the conversation history.
func (g *OpenAI) Complete(ctx context.Context, system, user string, maxTokens int) (string, error) {
	params := oai.ChatCompletionNewParams{
		Model: shared.ChatModel(g.chatModel),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(system),
			oai.UserMessage(user),
		},
	}
	if maxTokens > 0 {
		params.MaxCompletionTokens = oai.Int(int64(maxTokens))
	}
	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", classify(fmt.Errorf("chat completion: %w", err))
	}
	if len(resp.Choices) == 0 {
		return "", voice.Tag(voice.ErrMalformedResponse, errors.New("chat completion: empty choices"))
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// classify maps SDK and network failures onto the session error taxonomy:
// a decode failure of a success response is malformed, everything else
// (non-success status, unreachable host) is a transport failure.
func classify(err error) error {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return voice.Tag(voice.ErrMalformedResponse, err)
	}
	return voice.Tag(voice.ErrTransportFailure, err)
}
