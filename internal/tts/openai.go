package tts

import (
	"context"
	"fmt"
	"io"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// openAIVoices are multilingual; an empty Lang lets them match any session
// language.
var openAIVoices = []Voice{
	{ID: "alloy", Name: "Alloy", Engine: "tts-1"},
	{ID: "nova", Name: "Nova", Engine: "tts-1"},
	{ID: "shimmer", Name: "Shimmer", Engine: "tts-1"},
	{ID: "echo", Name: "Echo", Engine: "tts-1"},
	{ID: "onyx", Name: "Onyx", Engine: "tts-1"},
	{ID: "fable", Name: "Fable", Engine: "tts-1"},
}

// OpenAISynth synthesizes speech with the OpenAI audio endpoint, streaming
// 24kHz s16le PCM into the sink.
type OpenAISynth struct {
	client oai.Client
	model  string
	sink   Sink
}

// NewOpenAISynth constructs the OpenAI backend. The sink must accept 24kHz
// s16le PCM.
func NewOpenAISynth(apiKey, model string, sink Sink) *OpenAISynth {
	if model == "" {
		model = "tts-1"
	}
	return &OpenAISynth{
		client: oai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
		sink:   sink,
	}
}

func (o *OpenAISynth) Voices(_ context.Context) ([]Voice, error) {
	out := make([]Voice, len(openAIVoices))
	copy(out, openAIVoices)
	return out, nil
}

func (o *OpenAISynth) Speak(ctx context.Context, text string, v Voice) error {
	if text == "" {
		return nil
	}
	resp, err := o.client.Audio.Speech.New(ctx, oai.AudioSpeechNewParams{
		Model:          oai.SpeechModel(o.model),
		Voice:          oai.AudioSpeechNewParamsVoice(v.ID),
		Input:          text,
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormatPCM,
	})
	if err != nil {
		return fmt.Errorf("openai speech: %w", err)
	}
	defer resp.Body.Close()

	buf := make([]byte, 4096)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			out := make([]byte, n)
			copy(out, buf[:n])
			o.sink.WritePCM(out)
		}
		if rerr != nil {
			if rerr == io.EOF {
				return nil
			}
			if ctx.Err() != nil {
				o.sink.Reset()
				return ctx.Err()
			}
			return fmt.Errorf("openai speech read: %w", rerr)
		}
	}
}
