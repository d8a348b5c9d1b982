package httpserver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/hosseinshamlooo/lexi-ai/internal/gateway"
	"github.com/hosseinshamlooo/lexi-ai/internal/situation"
	"github.com/hosseinshamlooo/lexi-ai/internal/voice"
)

// Session is one server-side conversation: its own gateway (so chat history
// never leaks between users), the chosen scenario, and the transcript fanned
// out to websocket subscribers.
type Session struct {
	ID        string              `json:"id"`
	Situation situation.Situation `json:"situation"`
	Language  string              `json:"language"`

	gw *gateway.OpenAI

	mu           sync.Mutex
	messages     []voice.ChatMessage
	subs         map[*websocket.Conn]bool
	lastActivity time.Time
}

// Gateway returns the session's private transcription/chat gateway.
func (s *Session) Gateway() *gateway.OpenAI { return s.gw }

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// Append records a message and pushes it to every websocket subscriber.
// Subscribers whose write fails are dropped.
func (s *Session) Append(kind voice.MessageKind, role voice.Role, content string) voice.ChatMessage {
	s.mu.Lock()
	msg := voice.ChatMessage{Kind: kind, Role: role, Content: content, ReceivedAt: time.Now()}
	s.messages = append(s.messages, msg)
	s.lastActivity = time.Now()
	var dead []*websocket.Conn
	for conn := range s.subs {
		if err := conn.WriteJSON(msg); err != nil {
			dead = append(dead, conn)
		}
	}
	for _, conn := range dead {
		delete(s.subs, conn)
		_ = conn.Close()
	}
	s.mu.Unlock()
	return msg
}

// Messages returns a copy of the transcript so far.
func (s *Session) Messages() []voice.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]voice.ChatMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

// Subscribe registers a websocket connection and replays the transcript so
// late joiners see the whole conversation.
func (s *Session) Subscribe(conn *websocket.Conn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, msg := range s.messages {
		if err := conn.WriteJSON(msg); err != nil {
			return err
		}
	}
	if s.subs == nil {
		s.subs = make(map[*websocket.Conn]bool)
	}
	s.subs[conn] = true
	return nil
}

// Unsubscribe removes a websocket connection without closing it.
func (s *Session) Unsubscribe(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.subs, conn)
	s.mu.Unlock()
}

func (s *Session) closeSubs() {
	s.mu.Lock()
	for conn := range s.subs {
		_ = conn.Close()
	}
	s.subs = nil
	s.mu.Unlock()
}

// GatewayFactory builds a fresh gateway for each new session.
type GatewayFactory func() *gateway.OpenAI

// SessionManager tracks live sessions and reaps ones idle past the TTL.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	newGw    GatewayFactory
	ttl      time.Duration
	done     chan struct{}
	once     sync.Once
}

// NewSessionManager starts a manager whose reaper wakes at ttl/2 intervals.
// A ttl of zero disables reaping.
func NewSessionManager(factory GatewayFactory, ttl time.Duration) *SessionManager {
	m := &SessionManager{
		sessions: make(map[string]*Session),
		newGw:    factory,
		ttl:      ttl,
		done:     make(chan struct{}),
	}
	if ttl > 0 {
		go m.reap()
	}
	return m
}

// Create starts a session for the given scenario, primes its gateway, and
// seeds the transcript with the scenario greeting.
func (m *SessionManager) Create(ctx context.Context, situationID, language string) (*Session, error) {
	sit, ok := situation.ByID(situationID)
	if !ok {
		if situationID != "" {
			return nil, fmt.Errorf("unknown situation %q", situationID)
		}
		sit = situation.Default()
	}

	s := &Session{
		ID:           uuid.NewString(),
		Situation:    sit,
		Language:     language,
		gw:           m.newGw(),
		subs:         make(map[*websocket.Conn]bool),
		lastActivity: time.Now(),
	}
	if err := s.gw.Prime(ctx, language, sit.Prompt); err != nil {
		return nil, err
	}
	s.messages = append(s.messages, voice.ChatMessage{
		Kind:       voice.KindAssistantMessage,
		Role:       voice.RoleAssistant,
		Content:    sit.Greeting,
		ReceivedAt: time.Now(),
	})

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s, nil
}

// Get looks up a live session by ID.
func (m *SessionManager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Delete ends a session and closes its websocket subscribers.
func (m *SessionManager) Delete(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		s.closeSubs()
	}
}

// Len reports the number of live sessions.
func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close stops the reaper and ends every session.
func (m *SessionManager) Close() {
	m.once.Do(func() { close(m.done) })
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		all = append(all, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	for _, s := range all {
		s.closeSubs()
	}
}

func (m *SessionManager) reap() {
	ticker := time.NewTicker(m.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-m.ttl)
			m.mu.Lock()
			var expired []*Session
			for id, s := range m.sessions {
				s.mu.Lock()
				idle := s.lastActivity.Before(cutoff)
				s.mu.Unlock()
				if idle {
					expired = append(expired, s)
					delete(m.sessions, id)
				}
			}
			m.mu.Unlock()
			for _, s := range expired {
				s.closeSubs()
			}
		}
	}
}
