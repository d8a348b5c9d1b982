package analytics

import (
	"testing"

	"github.com/hosseinshamlooo/lexi-ai/internal/voice"
)

func msg(kind voice.MessageKind, role voice.Role, content string) voice.ChatMessage {
	return voice.ChatMessage{Kind: kind, Role: role, Content: content}
}

func TestComputeProgress(t *testing.T) {
	msgs := []voice.ChatMessage{
		msg(voice.KindAssistantMessage, voice.RoleAssistant, "Hello there, welcome in"), // 4 words
		msg(voice.KindUserMessage, voice.RoleUser, "hello I would like coffee please"),  // 6 words
		msg(voice.KindTypingIndicator, voice.RoleUser, "You're speaking..."),
		msg(voice.KindUserMessage, voice.RoleUser, "coffee please"), // repeats
	}

	p := ComputeProgress(msgs)
	if p.TotalWords != 8 {
		t.Fatalf("expected 8 student words, got %d", p.TotalWords)
	}
	if p.NewWords != 6 {
		t.Fatalf("expected 6 distinct words, got %d", p.NewWords)
	}
	if p.SpeakingShare.Student+p.SpeakingShare.Teacher != 100 {
		t.Fatalf("shares must sum to 100, got %d/%d", p.SpeakingShare.Student, p.SpeakingShare.Teacher)
	}
	if p.SpeakingShare.Student != 8*100/12 {
		t.Fatalf("unexpected student share %d", p.SpeakingShare.Student)
	}
}

func TestComputeProgress_EmptyTranscript(t *testing.T) {
	p := ComputeProgress(nil)
	if p.TotalWords != 0 || p.SpeakingShare.Student != 0 || p.SpeakingShare.Teacher != 0 {
		t.Fatalf("expected zero progress, got %+v", p)
	}
}

func TestVocabulary(t *testing.T) {
	msgs := []voice.ChatMessage{
		msg(voice.KindUserMessage, voice.RoleUser, "I ordered a croissant, please!"),
		msg(voice.KindAssistantMessage, voice.RoleAssistant, "excellent choice indeed"),
		msg(voice.KindUserMessage, voice.RoleUser, "croissant again"),
	}

	words := Vocabulary(msgs, 10)
	if len(words) == 0 || words[0] != "croissant" {
		t.Fatalf("expected longest word first, got %v", words)
	}
	for _, w := range words {
		if w == "excellent" {
			t.Fatalf("assistant words must not count: %v", words)
		}
		if w == "i" || w == "a" {
			t.Fatalf("short words must be dropped: %v", words)
		}
	}
	// "croissant" appears twice in the transcript but once in the list.
	count := 0
	for _, w := range words {
		if w == "croissant" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected deduplication, got %v", words)
	}
}

func TestVocabulary_Limit(t *testing.T) {
	msgs := []voice.ChatMessage{
		msg(voice.KindUserMessage, voice.RoleUser, "alpha bravo charlie delta echo"),
	}
	words := Vocabulary(msgs, 2)
	if len(words) != 2 {
		t.Fatalf("expected limit applied, got %v", words)
	}
}

func TestCleanWord(t *testing.T) {
	if got := cleanWord("Håller!"); got != "håller" {
		t.Fatalf("expected unicode-aware trim, got %q", got)
	}
	if got := cleanWord("..."); got != "" {
		t.Fatalf("expected empty for punctuation, got %q", got)
	}
}
