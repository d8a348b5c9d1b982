package analytics

import (
	"sort"
	"strings"
	"unicode"

	"github.com/hosseinshamlooo/lexi-ai/internal/voice"
)

// Progress summarizes how much of the conversation each side carried.
type Progress struct {
	SpeakingShare struct {
		Student int `json:"student"`
		Teacher int `json:"teacher"`
	} `json:"speakingTime"`
	TotalWords int `json:"totalWords"`
	NewWords   int `json:"newWords"`
}

// ComputeProgress derives speaking share and word counts from the transcript.
// Typing indicators are skipped; the share is a word-count percentage.
func ComputeProgress(messages []voice.ChatMessage) Progress {
	var p Progress
	var studentWords, teacherWords int
	seen := make(map[string]bool)

	for _, m := range messages {
		if m.Kind == voice.KindTypingIndicator {
			continue
		}
		words := strings.Fields(m.Content)
		switch m.Role {
		case voice.RoleUser:
			studentWords += len(words)
			for _, w := range words {
				clean := cleanWord(w)
				if clean != "" && !seen[clean] {
					seen[clean] = true
				}
			}
		case voice.RoleAssistant:
			teacherWords += len(words)
		}
	}

	total := studentWords + teacherWords
	p.TotalWords = studentWords
	p.NewWords = len(seen)
	if total > 0 {
		p.SpeakingShare.Student = studentWords * 100 / total
		p.SpeakingShare.Teacher = 100 - p.SpeakingShare.Student
	}
	return p
}

// Vocabulary lists the distinct words the student produced, longest first so
// the most substantial vocabulary shows up at the top of the feedback page.
func Vocabulary(messages []voice.ChatMessage, limit int) []string {
	seen := make(map[string]bool)
	var words []string
	for _, m := range messages {
		if m.Kind != voice.KindUserMessage {
			continue
		}
		for _, w := range strings.Fields(m.Content) {
			clean := cleanWord(w)
			if len(clean) < 3 || seen[clean] {
				continue
			}
			seen[clean] = true
			words = append(words, clean)
		}
	}
	sort.SliceStable(words, func(i, j int) bool { return len(words[i]) > len(words[j]) })
	if limit > 0 && len(words) > limit {
		words = words[:limit]
	}
	return words
}

func cleanWord(w string) string {
	return strings.ToLower(strings.TrimFunc(w, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}))
}
