package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	HTTPAddress      string
	OpenAIKey        string
	ChatModelID      string
	TranscribeModel  string
	SpeechModelID    string
	DeepgramKey      string
	DeepgramTTSModel string
	LingvaBaseURL    string
	SupabaseURL      string
	SupabaseKey      string
	SupabaseBucket   string
	Language         string
}

// Load reads environment variables and returns Config with sane defaults.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using process environment")
	}

	addr := os.Getenv("HTTP_ADDRESS")
	if addr == "" {
		addr = ":8080"
	}

	openAIKey := os.Getenv("OPENAI_API_KEY")
	if openAIKey == "" {
		log.Println("Warning: OPENAI_API_KEY not set - transcription and replies will not work")
	}

	chatModel := os.Getenv("OPENAI_MODEL_ID")
	if chatModel == "" {
		chatModel = "gpt-4o-mini"
	}
	transcribeModel := os.Getenv("OPENAI_TRANSCRIBE_MODEL_ID")
	if transcribeModel == "" {
		transcribeModel = "whisper-1"
	}
	speechModel := os.Getenv("OPENAI_SPEECH_MODEL_ID")
	if speechModel == "" {
		speechModel = "tts-1"
	}

	deepgramKey := os.Getenv("DEEPGRAM_API_KEY")
	deepgramModel := os.Getenv("DEEPGRAM_TTS_MODEL")
	if deepgramModel == "" {
		deepgramModel = "aura-2-thalia-en"
	}

	lingva := os.Getenv("LINGVA_BASE_URL")
	if lingva == "" {
		lingva = "https://lingva.ml"
	}

	supabaseURL := os.Getenv("SUPABASE_URL")
	supabaseKey := os.Getenv("SUPABASE_SERVICE_ROLE_KEY")
	bucket := os.Getenv("SUPABASE_BUCKET")
	if bucket == "" {
		bucket = "insights"
	}
	if supabaseURL == "" || supabaseKey == "" {
		log.Println("Warning: SUPABASE_URL or SUPABASE_SERVICE_ROLE_KEY not set - insights persist in memory only")
	}

	language := os.Getenv("LEXI_LANGUAGE")
	if language == "" {
		language = "en"
	}

	log.Printf("config: HTTP_ADDRESS=%s language=%s chat=%s", addr, language, chatModel)
	return Config{
		HTTPAddress:      addr,
		OpenAIKey:        openAIKey,
		ChatModelID:      chatModel,
		TranscribeModel:  transcribeModel,
		SpeechModelID:    speechModel,
		DeepgramKey:      deepgramKey,
		DeepgramTTSModel: deepgramModel,
		LingvaBaseURL:    lingva,
		SupabaseURL:      supabaseURL,
		SupabaseKey:      supabaseKey,
		SupabaseBucket:   bucket,
		Language:         language,
	}
}
