package voice

import "testing"

func TestTranscript_ReplaceTrailingTyping(t *testing.T) {
	var tr transcript
	tr.append(KindTypingIndicator, RoleUser, userTypingText)
	tr.replaceTrailingTyping(RoleUser, KindUserMessage, "hello")

	msgs := tr.snapshot()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].Kind != KindUserMessage || msgs[0].Content != "hello" {
		t.Fatalf("expected replaced message, got %+v", msgs[0])
	}
}

func TestTranscript_ReplaceAppendsWhenNoIndicator(t *testing.T) {
	var tr transcript
	tr.append(KindUserMessage, RoleUser, "hi")
	tr.replaceTrailingTyping(RoleAssistant, KindAssistantMessage, "hello")

	msgs := tr.snapshot()
	if len(msgs) != 2 {
		t.Fatalf("expected append, got %d messages", len(msgs))
	}
	if msgs[1].Kind != KindAssistantMessage {
		t.Fatalf("expected assistant message, got %+v", msgs[1])
	}
}

func TestTranscript_ReplaceIgnoresOtherRolesIndicator(t *testing.T) {
	var tr transcript
	tr.append(KindTypingIndicator, RoleUser, userTypingText)
	tr.replaceTrailingTyping(RoleAssistant, KindAssistantMessage, "hello")

	msgs := tr.snapshot()
	if len(msgs) != 2 {
		t.Fatalf("expected indicator kept plus append, got %d", len(msgs))
	}
	if msgs[0].Kind != KindTypingIndicator || msgs[0].Role != RoleUser {
		t.Fatalf("user indicator was clobbered: %+v", msgs[0])
	}
}

func TestTranscript_RemoveTrailingTyping(t *testing.T) {
	var tr transcript
	tr.append(KindUserMessage, RoleUser, "hi")
	tr.append(KindTypingIndicator, RoleAssistant, assistantTypingText)

	tr.removeTrailingTyping(RoleAssistant)
	msgs := tr.snapshot()
	if len(msgs) != 1 || msgs[0].Content != "hi" {
		t.Fatalf("expected only real message left, got %v", msgs)
	}

	// Removing again, or for a role with no indicator, changes nothing.
	tr.removeTrailingTyping(RoleAssistant)
	tr.removeTrailingTyping(RoleUser)
	if len(tr.snapshot()) != 1 {
		t.Fatalf("remove on non-indicator tail mutated transcript")
	}
}

func TestTranscript_TimestampsMonotonic(t *testing.T) {
	var tr transcript
	for i := 0; i < 50; i++ {
		tr.append(KindUserMessage, RoleUser, "m")
	}
	msgs := tr.snapshot()
	for i := 1; i < len(msgs); i++ {
		if msgs[i].ReceivedAt.Before(msgs[i-1].ReceivedAt) {
			t.Fatalf("timestamps went backwards at %d", i)
		}
	}
}

func TestTranscript_SnapshotIsCopy(t *testing.T) {
	var tr transcript
	tr.append(KindUserMessage, RoleUser, "hi")
	msgs := tr.snapshot()
	msgs[0].Content = "mutated"
	if tr.snapshot()[0].Content != "hi" {
		t.Fatalf("snapshot aliases internal slice")
	}
}
