// Package analytics turns a finished conversation transcript into recap and
// progress data. Pure transformation over already-collected text; generation
// goes through the same completion gateway as the live conversation.
package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Completer runs a single stateless chat completion.
type Completer interface {
	Complete(ctx context.Context, system, user string, maxTokens int) (string, error)
}

// Recap is the short post-call summary.
type Recap struct {
	Summary     string   `json:"summary"`
	RecapPoints []string `json:"recapPoints"`
}

// Topic is one discussed subject in the detailed analysis.
type Topic struct {
	Title  string   `json:"title"`
	Points []string `json:"points"`
}

// Detailed is the long-form analysis with per-topic points.
type Detailed struct {
	Summary string  `json:"summary"`
	Topics  []Topic `json:"topics"`
}

// Analyzer produces post-call analytics for one language.
type Analyzer struct {
	llm Completer
}

// NewAnalyzer constructs an Analyzer over the given completion gateway.
func NewAnalyzer(llm Completer) *Analyzer {
	return &Analyzer{llm: llm}
}

const (
	recapSystemEN = `You are an assistant that analyzes language learning conversations.
Analyze this conversation and provide:
1. A one-sentence summary that starts with "In this conversation, you talked about..."
2. 3-5 recap points of the main topics discussed

Respond in JSON with this structure:
{
  "summary": "In this conversation, you talked about...",
  "recapPoints": ["Point 1", "Point 2", "Point 3"]
}`
	recapSystemFR = `Tu es un assistant qui analyse les conversations d'apprentissage de langues.
Analyse cette conversation et fournis:
1. Un résumé en une phrase qui commence par "Dans cette conversation, vous avez parlé de..."
2. 3-5 points de récapitulatif des sujets principaux discutés

Réponds en JSON avec cette structure:
{
  "summary": "Dans cette conversation, vous avez parlé de...",
  "recapPoints": ["Point 1", "Point 2", "Point 3"]
}`
)

// Recap summarizes the transcript. When the model's output is not valid JSON
// the result falls back to a generic recap rather than failing.
func (a *Analyzer) Recap(ctx context.Context, transcript, language string) (Recap, error) {
	system := recapSystemEN
	if language == "fr" {
		system = recapSystemFR
	}
	user := fmt.Sprintf("Please analyze this conversation transcript:\n\n%s", transcript)

	raw, err := a.llm.Complete(ctx, system, user, 300)
	if err != nil {
		return Recap{}, err
	}

	var recap Recap
	if jsonErr := json.Unmarshal([]byte(stripCodeFence(raw)), &recap); jsonErr != nil || recap.Summary == "" {
		return fallbackRecap(language), nil
	}
	return recap, nil
}

func fallbackRecap(language string) Recap {
	if language == "fr" {
		return Recap{
			Summary:     "Dans cette conversation, vous avez eu un échange intéressant.",
			RecapPoints: []string{"Échange de conversation", "Pratique de la langue", "Interaction naturelle"},
		}
	}
	return Recap{
		Summary:     "In this conversation, you had an interesting exchange.",
		RecapPoints: []string{"Conversation exchange", "Language practice", "Natural interaction"},
	}
}

// stripCodeFence drops a ```json fence if the model wrapped its output in one.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

const (
	detailedSystemEN = `You are a helpful assistant that analyzes conversations and provides detailed summaries. Analyze the conversation and provide:
1. A one-sentence summary of the conversation
2. 3-5 main topics discussed, each with 2-3 detailed points

Response format:
Summary: [one-sentence summary]
Topics:
1. [Topic title]
   - [Point 1]
   - [Point 2]
   - [Point 3]

etc.`
	detailedSystemFR = `Vous êtes un assistant utile qui analyse les conversations et fournit des résumés détaillés. Analysez la conversation et fournissez:
1. Un résumé d'une phrase de la conversation
2. 3-5 sujets principaux discutés, chacun avec 2-3 points détaillés

Format de réponse:
Summary: [résumé d'une phrase]
Topics:
1. [Titre du sujet]
   - [Point 1]
   - [Point 2]
   - [Point 3]

etc.`
)

var (
	summaryRe  = regexp.MustCompile(`(?i)Summary:\s*(.*?)(\n|$)`)
	topicsRe   = regexp.MustCompile(`(?i)Topics:\s*([\s\S]*)`)
	topicNumRe = regexp.MustCompile(`\d+\.\s+`)
)

// Detailed produces the long-form analysis parsed from the model's structured
// plain-text response.
func (a *Analyzer) Detailed(ctx context.Context, transcript, language string) (Detailed, error) {
	system := detailedSystemEN
	if language == "fr" {
		system = detailedSystemFR
	}
	user := fmt.Sprintf("Conversation Transcript:\n%s\n\nBased on the above conversation, provide a detailed analysis with summary and topics.", transcript)

	content, err := a.llm.Complete(ctx, system, user, 1000)
	if err != nil {
		return Detailed{}, err
	}
	return parseDetailed(content), nil
}

func parseDetailed(content string) Detailed {
	var out Detailed
	if m := summaryRe.FindStringSubmatch(content); m != nil {
		out.Summary = strings.TrimSpace(m[1])
	}
	m := topicsRe.FindStringSubmatch(content)
	if m == nil {
		return out
	}
	sections := topicNumRe.Split(m[1], -1)
	for _, section := range sections {
		section = strings.TrimSpace(section)
		if section == "" {
			continue
		}
		lines := strings.Split(section, "\n")
		topic := Topic{Title: strings.TrimSpace(lines[0])}
		for _, line := range lines[1:] {
			point := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "-"))
			if point != "" {
				topic.Points = append(topic.Points, point)
			}
		}
		out.Topics = append(out.Topics, topic)
	}
	return out
}
