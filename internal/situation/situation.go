// Package situation holds the built-in role-play scenarios.
package situation

// Situation is one role-play scenario: the greeting spoken at connect time
// and the silent system prompt steering the model's persona.
type Situation struct {
	ID          string `json:"id"`
	Role        string `json:"role"`
	Description string `json:"description"`
	Greeting    string `json:"greeting"`
	Prompt      string `json:"prompt"`
}

var builtins = []Situation{
	{
		ID:          "restaurant",
		Role:        "Waitress",
		Description: "Order food at a restaurant",
		Greeting:    "Hello! Welcome to Lexi's! I'll be your waitress for today. Are you ready to order?",
		Prompt:      "You are a waitress at a restaurant helping the user practice their English.",
	},
	{
		ID:          "cafe",
		Role:        "Barista",
		Description: "Order a drink at a café",
		Greeting:    "Hi there! What can I get started for you today?",
		Prompt:      "You are a barista at a café helping the user practice ordering in a new language. Keep the conversation going with follow-up questions.",
	},
	{
		ID:          "directions",
		Role:        "Local",
		Description: "Ask a local for directions",
		Greeting:    "Oh, hello! You look a bit lost. Can I help you find something?",
		Prompt:      "You are a friendly local giving directions, helping the user practice asking for and understanding directions in a new language.",
	},
}

// All returns the scenario catalogue.
func All() []Situation {
	out := make([]Situation, len(builtins))
	copy(out, builtins)
	return out
}

// ByID looks up a scenario; ok is false when the id is unknown.
func ByID(id string) (Situation, bool) {
	for _, s := range builtins {
		if s.ID == id {
			return s, true
		}
	}
	return Situation{}, false
}

// Default is the scenario used when the caller does not pick one.
func Default() Situation { return builtins[0] }
