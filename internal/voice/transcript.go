package voice

import (
	"time"
)

// MessageKind tags a transcript entry. A typing indicator is a placeholder that
// is always resolved to a real message or removed before the cycle ends.
type MessageKind string

const (
	KindUserMessage      MessageKind = "user_message"
	KindAssistantMessage MessageKind = "assistant_message"
	KindTypingIndicator  MessageKind = "typing_indicator"
)

// Role is the semantic speaker, independent of kind.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one entry in the conversation transcript.
type ChatMessage struct {
	Kind       MessageKind `json:"type"`
	Role       Role        `json:"role"`
	Content    string      `json:"content"`
	ReceivedAt time.Time   `json:"receivedAt"`
}

// transcript is an append-only message log. At most one trailing typing
// indicator of a given role may exist at the tail at any time. Not safe for
// concurrent use; the session serializes access under its mutex.
type transcript struct {
	msgs   []ChatMessage
	lastAt time.Time
}

// stamp returns a timestamp that never goes backwards within a session.
func (t *transcript) stamp() time.Time {
	now := time.Now()
	if now.Before(t.lastAt) {
		now = t.lastAt
	}
	t.lastAt = now
	return now
}

func (t *transcript) append(kind MessageKind, role Role, content string) {
	t.msgs = append(t.msgs, ChatMessage{Kind: kind, Role: role, Content: content, ReceivedAt: t.stamp()})
}

// trailingTyping reports whether the tail entry is a typing indicator for role.
func (t *transcript) trailingTyping(role Role) bool {
	if len(t.msgs) == 0 {
		return false
	}
	last := t.msgs[len(t.msgs)-1]
	return last.Kind == KindTypingIndicator && last.Role == role
}

// replaceTrailingTyping swaps the trailing typing indicator for role with a real
// message. When no such indicator exists the message is appended instead, so the
// real content is never lost. The slice is rebuilt rather than edited in place.
func (t *transcript) replaceTrailingTyping(role Role, kind MessageKind, content string) {
	if t.trailingTyping(role) {
		replaced := make([]ChatMessage, len(t.msgs))
		copy(replaced, t.msgs[:len(t.msgs)-1])
		replaced[len(replaced)-1] = ChatMessage{Kind: kind, Role: role, Content: content, ReceivedAt: t.stamp()}
		t.msgs = replaced
		return
	}
	t.append(kind, role, content)
}

// removeTrailingTyping drops the trailing typing indicator for role, if present.
func (t *transcript) removeTrailingTyping(role Role) {
	if !t.trailingTyping(role) {
		return
	}
	trimmed := make([]ChatMessage, len(t.msgs)-1)
	copy(trimmed, t.msgs[:len(t.msgs)-1])
	t.msgs = trimmed
}

// snapshot returns a read-only copy of the transcript.
func (t *transcript) snapshot() []ChatMessage {
	out := make([]ChatMessage, len(t.msgs))
	copy(out, t.msgs)
	return out
}

func (t *transcript) clear() {
	t.msgs = nil
}
