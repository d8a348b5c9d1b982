// Package translate resolves hover translations through a Lingva instance.
package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Result carries the full translated sentence plus a word-level map keyed by
// the cleaned (lowercased, punctuation-stripped) source word.
type Result struct {
	TranslatedText string            `json:"translatedText"`
	Translations   map[string]string `json:"translations"`
}

type lingvaResponse struct {
	Translation string `json:"translation"`
}

// Client is a Lingva translation client with a full-sentence cache. Safe for
// concurrent use.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	mu    sync.RWMutex
	cache map[string]string
}

// NewClient builds a client for the given Lingva base URL.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "https://lingva.ml"
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
		cache:      make(map[string]string),
	}
}

// Translate returns the translated sentence and a positional word map. An
// upstream failure falls back to the source text rather than failing the
// request; the fallback is cached like a real translation.
func (c *Client) Translate(ctx context.Context, text, sourceLang, targetLang string) (Result, error) {
	if strings.TrimSpace(text) == "" {
		return Result{}, fmt.Errorf("empty text")
	}
	if sourceLang == "" {
		sourceLang = "fr"
	}
	if targetLang == "" {
		targetLang = "en"
	}

	c.mu.RLock()
	translated, ok := c.cache[text]
	c.mu.RUnlock()
	if !ok {
		translated = c.fetch(ctx, text, sourceLang, targetLang)
		c.mu.Lock()
		c.cache[text] = translated
		c.mu.Unlock()
	}

	return Result{
		TranslatedText: translated,
		Translations:   wordMap(text, translated),
	}, nil
}

func (c *Client) fetch(ctx context.Context, text, sourceLang, targetLang string) string {
	endpoint := fmt.Sprintf("%s/api/v1/%s/%s/%s", c.BaseURL, sourceLang, targetLang, url.PathEscape(text))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return text
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return text
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return text
	}
	var lr lingvaResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil || lr.Translation == "" {
		return text
	}
	return lr.Translation
}

// wordMap aligns source and translated words positionally for hover lookups.
func wordMap(text, translated string) map[string]string {
	originalWords := strings.Fields(text)
	translatedWords := strings.Fields(translated)

	out := make(map[string]string, len(originalWords))
	for i, w := range originalWords {
		clean := strings.ToLower(strings.Map(stripPunct, w))
		if clean == "" {
			continue
		}
		if i < len(translatedWords) {
			out[clean] = translatedWords[i]
		} else {
			out[clean] = w
		}
	}
	return out
}

func stripPunct(r rune) rune {
	switch r {
	case '.', ',', '!', '?', ';', ':', '"', '\'', '(', ')':
		return -1
	}
	return r
}
