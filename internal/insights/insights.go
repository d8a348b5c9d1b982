// Package insights persists post-conversation analytics so the feedback pages
// can show past sessions.
package insights

import (
	"sync"
	"time"
)

// Situation describes the role-play scenario a conversation used.
type Situation struct {
	Role        string `json:"role"`
	Description string `json:"description"`
	Greeting    string `json:"greeting"`
	Prompt      string `json:"prompt"`
	Image       string `json:"image,omitempty"`
}

// FeedbackItem is one piece of grammar or pronunciation feedback.
type FeedbackItem struct {
	Type      string `json:"type"`
	Text      string `json:"text"`
	Highlight string `json:"highlight"`
}

// FeedbackData bundles the feedback page payload.
type FeedbackData struct {
	Recap    []string `json:"recap"`
	Progress struct {
		SpeakingTime struct {
			Student int `json:"student"`
			Teacher int `json:"teacher"`
		} `json:"speakingTime"`
		TotalWords int `json:"totalWords"`
		NewWords   int `json:"newWords"`
	} `json:"progress"`
	Feedback   []FeedbackItem `json:"feedback"`
	Vocabulary []string       `json:"vocabulary"`
}

// ConversationInsights is one saved conversation record.
type ConversationInsights struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Date      time.Time `json:"date"`
	Situation Situation `json:"situation"`
	Language  string    `json:"language"`
	Summary   *struct {
		Summary     string   `json:"summary"`
		RecapPoints []string `json:"recapPoints"`
	} `json:"summary,omitempty"`
	Analysis *struct {
		Summary string `json:"summary"`
		Level   string `json:"level"`
		Topics  []struct {
			Title  string   `json:"title"`
			Points []string `json:"points"`
		} `json:"topics"`
	} `json:"analysis,omitempty"`
	UserMessages []string      `json:"userMessages"`
	FeedbackData *FeedbackData `json:"feedbackData,omitempty"`
}

// Store holds insight records, newest first, de-duplicated by ID.
type Store interface {
	Save(in ConversationInsights) error
	History() ([]ConversationInsights, error)
	ByID(id string) (ConversationInsights, bool, error)
	Clear() error
}

// MemStore is an in-memory Store, used in tests and when no persistence
// backend is configured.
type MemStore struct {
	mu      sync.Mutex
	records []ConversationInsights
}

// NewMemStore constructs an empty in-memory store.
func NewMemStore() *MemStore { return &MemStore{} }

func (s *MemStore) Save(in ConversationInsights) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = prepend(s.records, in)
	return nil
}

func (s *MemStore) History() ([]ConversationInsights, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ConversationInsights, len(s.records))
	copy(out, s.records)
	return out, nil
}

func (s *MemStore) ByID(id string) (ConversationInsights, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.ID == id {
			return r, true, nil
		}
	}
	return ConversationInsights{}, false, nil
}

func (s *MemStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	return nil
}

// prepend puts in at the front, dropping any older record with the same ID.
func prepend(records []ConversationInsights, in ConversationInsights) []ConversationInsights {
	out := make([]ConversationInsights, 0, len(records)+1)
	out = append(out, in)
	for _, r := range records {
		if r.ID != in.ID {
			out = append(out, r)
		}
	}
	return out
}
