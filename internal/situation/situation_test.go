package situation

import "testing"

func TestByID(t *testing.T) {
	s, ok := ByID("restaurant")
	if !ok || s.Role != "Waitress" {
		t.Fatalf("expected restaurant scenario, got %+v %v", s, ok)
	}
	if _, ok := ByID("spaceship"); ok {
		t.Fatalf("expected miss for unknown id")
	}
}

func TestAllReturnsCopy(t *testing.T) {
	all := All()
	if len(all) == 0 {
		t.Fatalf("expected builtin scenarios")
	}
	all[0].Greeting = "mutated"
	if fresh := All(); fresh[0].Greeting == "mutated" {
		t.Fatalf("All aliases the builtin slice")
	}
}

func TestDefaultHasPromptAndGreeting(t *testing.T) {
	d := Default()
	if d.Greeting == "" || d.Prompt == "" {
		t.Fatalf("default scenario incomplete: %+v", d)
	}
}
