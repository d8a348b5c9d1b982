package analytics

import (
	"context"
	"errors"
	"testing"
)

type fakeCompleter struct {
	response string
	err      error
	system   string
	user     string
}

func (f *fakeCompleter) Complete(ctx context.Context, system, user string, maxTokens int) (string, error) {
	f.system = system
	f.user = user
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func TestRecap_ParsesJSON(t *testing.T) {
	llm := &fakeCompleter{response: `{"summary":"In this conversation, you talked about food.","recapPoints":["Ordering","Small talk"]}`}
	a := NewAnalyzer(llm)

	recap, err := a.Recap(context.Background(), "user: hi", "en")
	if err != nil {
		t.Fatalf("recap: %v", err)
	}
	if recap.Summary != "In this conversation, you talked about food." {
		t.Fatalf("unexpected summary: %q", recap.Summary)
	}
	if len(recap.RecapPoints) != 2 {
		t.Fatalf("expected 2 points, got %v", recap.RecapPoints)
	}
}

func TestRecap_StripsCodeFence(t *testing.T) {
	llm := &fakeCompleter{response: "```json\n{\"summary\":\"In this conversation, you talked about travel.\",\"recapPoints\":[\"Trips\"]}\n```"}
	a := NewAnalyzer(llm)

	recap, err := a.Recap(context.Background(), "t", "en")
	if err != nil {
		t.Fatalf("recap: %v", err)
	}
	if recap.Summary == "" || recap.RecapPoints[0] != "Trips" {
		t.Fatalf("fenced JSON not parsed: %+v", recap)
	}
}

func TestRecap_FallsBackOnGarbage(t *testing.T) {
	llm := &fakeCompleter{response: "I could not produce JSON, sorry."}
	a := NewAnalyzer(llm)

	recap, err := a.Recap(context.Background(), "t", "fr")
	if err != nil {
		t.Fatalf("recap: %v", err)
	}
	if recap.Summary == "" || len(recap.RecapPoints) == 0 {
		t.Fatalf("expected fallback recap, got %+v", recap)
	}
	if recap.Summary[:4] != "Dans" {
		t.Fatalf("expected french fallback, got %q", recap.Summary)
	}
}

func TestRecap_LanguageSelectsPrompt(t *testing.T) {
	llm := &fakeCompleter{response: `{"summary":"s","recapPoints":["p"]}`}
	a := NewAnalyzer(llm)

	if _, err := a.Recap(context.Background(), "t", "fr"); err != nil {
		t.Fatalf("recap: %v", err)
	}
	if llm.system != recapSystemFR {
		t.Fatalf("expected french system prompt")
	}
}

func TestRecap_PropagatesCompletionError(t *testing.T) {
	llm := &fakeCompleter{err: errors.New("upstream down")}
	a := NewAnalyzer(llm)

	if _, err := a.Recap(context.Background(), "t", "en"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestDetailed_ParsesTopics(t *testing.T) {
	llm := &fakeCompleter{response: `Summary: You practiced ordering at a restaurant.
Topics:
1. Ordering food
   - Asked about the menu
   - Chose a main course
2. Small talk
   - Talked about the weather`}
	a := NewAnalyzer(llm)

	d, err := a.Detailed(context.Background(), "t", "en")
	if err != nil {
		t.Fatalf("detailed: %v", err)
	}
	if d.Summary != "You practiced ordering at a restaurant." {
		t.Fatalf("unexpected summary: %q", d.Summary)
	}
	if len(d.Topics) != 2 {
		t.Fatalf("expected 2 topics, got %+v", d.Topics)
	}
	if d.Topics[0].Title != "Ordering food" || len(d.Topics[0].Points) != 2 {
		t.Fatalf("first topic broken: %+v", d.Topics[0])
	}
	if d.Topics[1].Points[0] != "Talked about the weather" {
		t.Fatalf("second topic broken: %+v", d.Topics[1])
	}
}

func TestParseDetailed_NoTopicsSection(t *testing.T) {
	d := parseDetailed("Summary: short chat.\nNothing else.")
	if d.Summary != "short chat." {
		t.Fatalf("unexpected summary: %q", d.Summary)
	}
	if len(d.Topics) != 0 {
		t.Fatalf("expected no topics, got %+v", d.Topics)
	}
}

func TestParseDetailed_Empty(t *testing.T) {
	d := parseDetailed("")
	if d.Summary != "" || len(d.Topics) != 0 {
		t.Fatalf("expected zero value, got %+v", d)
	}
}
