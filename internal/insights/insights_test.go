package insights

import (
	"testing"
	"time"
)

func record(id, title string) ConversationInsights {
	return ConversationInsights{
		ID:       id,
		Title:    title,
		Date:     time.Now(),
		Language: "en",
		Situation: Situation{
			Role:        "Waitress",
			Description: "Order food at a restaurant",
		},
	}
}

func TestMemStore_NewestFirst(t *testing.T) {
	s := NewMemStore()
	if err := s.Save(record("a", "first")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Save(record("b", "second")); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.History()
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(got) != 2 || got[0].ID != "b" || got[1].ID != "a" {
		t.Fatalf("expected newest first, got %v", got)
	}
}

func TestMemStore_SaveDeduplicatesByID(t *testing.T) {
	s := NewMemStore()
	_ = s.Save(record("a", "old title"))
	_ = s.Save(record("b", "other"))
	_ = s.Save(record("a", "new title"))

	got, _ := s.History()
	if len(got) != 2 {
		t.Fatalf("expected dedupe, got %d records", len(got))
	}
	if got[0].ID != "a" || got[0].Title != "new title" {
		t.Fatalf("expected updated record at front, got %+v", got[0])
	}
}

func TestMemStore_ByID(t *testing.T) {
	s := NewMemStore()
	_ = s.Save(record("a", "one"))

	r, ok, err := s.ByID("a")
	if err != nil || !ok || r.Title != "one" {
		t.Fatalf("expected record, got %+v %v %v", r, ok, err)
	}
	if _, ok, _ := s.ByID("missing"); ok {
		t.Fatalf("expected miss for unknown id")
	}
}

func TestMemStore_Clear(t *testing.T) {
	s := NewMemStore()
	_ = s.Save(record("a", "one"))
	if err := s.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	got, _ := s.History()
	if len(got) != 0 {
		t.Fatalf("expected empty history, got %v", got)
	}
}

func TestMemStore_HistoryReturnsCopy(t *testing.T) {
	s := NewMemStore()
	_ = s.Save(record("a", "one"))
	got, _ := s.History()
	got[0].Title = "mutated"
	again, _ := s.History()
	if again[0].Title != "one" {
		t.Fatalf("history aliases internal slice")
	}
}
