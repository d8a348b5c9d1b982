package insights

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/supabase-community/supabase-go"
)

// SupabaseConfig locates the storage bucket insight records live in.
type SupabaseConfig struct {
	URL            string
	ServiceRoleKey string
	Bucket         string
}

// SupabaseStore keeps the full history as a single JSON object in Supabase
// storage, mirrored in memory so reads do not hit the network on every call.
type SupabaseStore struct {
	client *supabase.Client
	bucket string

	mu     sync.Mutex
	cache  []ConversationInsights
	loaded bool
}

const historyObject = "conversation-insights.json"

// NewSupabaseStore connects to the configured project.
func NewSupabaseStore(cfg SupabaseConfig) (*SupabaseStore, error) {
	client, err := supabase.NewClient(cfg.URL, cfg.ServiceRoleKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("create supabase client: %w", err)
	}
	return &SupabaseStore{client: client, bucket: cfg.Bucket}, nil
}

func (s *SupabaseStore) loadLocked() error {
	if s.loaded {
		return nil
	}
	data, err := s.client.Storage.DownloadFile(s.bucket, historyObject)
	if err != nil {
		// Missing object means an empty history, not a failure.
		s.cache = nil
		s.loaded = true
		return nil
	}
	var records []ConversationInsights
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("decode insights history: %w", err)
	}
	s.cache = records
	s.loaded = true
	return nil
}

func (s *SupabaseStore) flushLocked() error {
	data, err := json.Marshal(s.cache)
	if err != nil {
		return fmt.Errorf("encode insights history: %w", err)
	}
	if _, err := s.client.Storage.UpdateFile(s.bucket, historyObject, bytes.NewReader(data)); err != nil {
		if _, err := s.client.Storage.UploadFile(s.bucket, historyObject, bytes.NewReader(data)); err != nil {
			return fmt.Errorf("upload insights history: %w", err)
		}
	}
	return nil
}

func (s *SupabaseStore) Save(in ConversationInsights) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return err
	}
	s.cache = prepend(s.cache, in)
	return s.flushLocked()
}

func (s *SupabaseStore) History() ([]ConversationInsights, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return nil, err
	}
	out := make([]ConversationInsights, len(s.cache))
	copy(out, s.cache)
	return out, nil
}

func (s *SupabaseStore) ByID(id string) (ConversationInsights, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return ConversationInsights{}, false, err
	}
	for _, r := range s.cache {
		if r.ID == id {
			return r, true, nil
		}
	}
	return ConversationInsights{}, false, nil
}

func (s *SupabaseStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = nil
	s.loaded = true
	return s.flushLocked()
}
